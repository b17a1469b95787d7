package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix: PETTRACE_PORT, PETTRACE_STORAGE_DRIVER, ...
// Los nombres sin prefijo (PORT, DB_DSN, LOG_LEVEL) siguen funcionando.
const EnvPrefix = "pettrace"

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageBolt     = "bolt"

	TokenMemory = "memory"
	TokenEVM    = "evm"

	AuthDev    = "dev"
	AuthWallet = "wallet"
)

// DefaultCustody es la dirección de custodia del modo in-memory.
const DefaultCustody = "0x000000000000000000000000000000000000fEEd"

type Config struct {
	App  string `yaml:"app"  envconfig:"APP_NAME"`
	Port string `yaml:"port" envconfig:"PORT"`

	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Registry RegistryConfig `yaml:"registry"`
	Token    TokenConfig    `yaml:"token"`
	Auth     AuthConfig     `yaml:"auth"`
	Events   EventsConfig   `yaml:"events"`

	// DevFaucet habilita POST /wallets/mint (solo ledger in-memory).
	DevFaucet bool `yaml:"devFaucet" split_words:"true"`

	// MaxBodyBytes limita el cuerpo de cada request.
	MaxBodyBytes int64 `yaml:"maxBodyBytes" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level"  envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

type StorageConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"      envconfig:"DB_DSN"`
	BoltPath string `yaml:"boltPath" split_words:"true"`
}

type RegistryConfig struct {
	// Custody es la dirección que retiene los fondos en escrow.
	Custody        string `yaml:"custody"`
	NativeSymbol   string `yaml:"nativeSymbol"   split_words:"true"`
	NativeDecimals int32  `yaml:"nativeDecimals" split_words:"true"`
	TokenSymbol    string `yaml:"tokenSymbol"    split_words:"true"`
	TokenDecimals  int32  `yaml:"tokenDecimals"  split_words:"true"`
}

type TokenConfig struct {
	Backend         string        `yaml:"backend"`
	RPCURL          string        `yaml:"rpcUrl"          envconfig:"RPC_URL"`
	ContractAddress string        `yaml:"contractAddress" split_words:"true"`
	PrivateKey      string        `yaml:"privateKey"      split_words:"true"`
	ReceiptTimeout  time.Duration `yaml:"receiptTimeout"  split_words:"true"`
}

type AuthConfig struct {
	Mode         string        `yaml:"mode"`
	SignatureTTL time.Duration `yaml:"signatureTtl" envconfig:"SIGNATURE_TTL"`
}

type EventsConfig struct {
	AMQPURL    string `yaml:"amqpUrl"    envconfig:"AMQP_URL"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routingKey" split_words:"true"`
	WebhookURL string `yaml:"webhookUrl" envconfig:"WEBHOOK_URL"`
}

// DefaultMaxBodyBytes alcanza de sobra para un aviso con descripción larga.
const DefaultMaxBodyBytes = 64 << 10

func Default() *Config {
	return &Config{
		App:          "pettrace",
		Port:         "8080",
		MaxBodyBytes: DefaultMaxBodyBytes,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Driver:   StorageMemory,
			BoltPath: "pettrace.db",
		},
		Registry: RegistryConfig{
			Custody:        DefaultCustody,
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			TokenSymbol:    "USDC",
			TokenDecimals:  6,
		},
		Token: TokenConfig{
			Backend:        TokenMemory,
			ReceiptTimeout: 2 * time.Minute,
		},
		Auth: AuthConfig{
			Mode:         AuthDev,
			SignatureTTL: 5 * time.Minute,
		},
		Events: EventsConfig{
			Exchange:   "pettrace",
			RoutingKey: "registry.events",
		},
	}
}

// Load arma la configuración: defaults -> archivo YAML (opcional) -> env.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	// DB_DSN sin driver explícito => postgres (como antes)
	if cfg.Storage.DSN != "" && os.Getenv("PETTRACE_STORAGE_DRIVER") == "" && cfg.Storage.Driver == StorageMemory {
		cfg.Storage.Driver = StoragePostgres
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("config: storage.dsn is required for postgres")
		}
	case StorageBolt:
		if strings.TrimSpace(c.Storage.BoltPath) == "" {
			return errors.New("config: storage.boltPath is required for bolt")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	c.Token.Backend = strings.ToLower(strings.TrimSpace(c.Token.Backend))
	switch c.Token.Backend {
	case TokenMemory:
	case TokenEVM:
		if c.Token.RPCURL == "" || c.Token.PrivateKey == "" {
			return errors.New("config: token.rpcUrl and token.privateKey are required for evm")
		}
		if !common.IsHexAddress(c.Token.ContractAddress) {
			return fmt.Errorf("config: invalid token contract address %q", c.Token.ContractAddress)
		}
	default:
		return fmt.Errorf("config: unknown token backend %q", c.Token.Backend)
	}

	if !common.IsHexAddress(c.Registry.Custody) {
		return fmt.Errorf("config: invalid custody address %q", c.Registry.Custody)
	}
	if c.Registry.NativeDecimals < 0 || c.Registry.TokenDecimals < 0 {
		return errors.New("config: decimals must be >= 0")
	}

	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	switch c.Auth.Mode {
	case AuthDev, AuthWallet:
	default:
		return fmt.Errorf("config: unknown auth mode %q", c.Auth.Mode)
	}
	if c.Auth.Mode == AuthWallet && c.Auth.SignatureTTL <= 0 {
		return errors.New("config: auth.signatureTtl must be positive")
	}

	if c.MaxBodyBytes <= 0 {
		return errors.New("config: maxBodyBytes must be positive")
	}

	if strings.TrimSpace(c.Port) == "" {
		c.Port = "8080"
	}
	return nil
}

// Addr devuelve ":<port>" para http.Server.
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func (c *Config) CustodyAddress() common.Address {
	return common.HexToAddress(c.Registry.Custody)
}
