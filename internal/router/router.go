package router

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pettrace/internal/adapters/auth/walletsig"
	amqpsink "pettrace/internal/adapters/events/amqp"
	"pettrace/internal/adapters/events/webhook"
	"pettrace/internal/adapters/funds/evmtoken"
	memfunds "pettrace/internal/adapters/funds/memory"
	"pettrace/internal/adapters/storage/boltdb"
	mem "pettrace/internal/adapters/storage/memory"
	pg "pettrace/internal/adapters/storage/postgres"
	"pettrace/internal/domain/events"
	"pettrace/internal/domain/reports"
	"pettrace/internal/domain/wallets"
	"pettrace/internal/middleware"
	"pettrace/internal/platform/config"
	"pettrace/internal/platform/logger"
	"pettrace/internal/platform/metrics"
	"pettrace/internal/platform/units"
	"pettrace/internal/ports/auth"
	"pettrace/internal/ports/funds"

	_ "pettrace/docs"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	// Config nil => config.Default() (memoria, modo dev).
	Config *config.Config

	// AuthVerifier tiene prioridad sobre Config.Auth.Mode. nil + modo dev => X-Debug-Caller.
	AuthVerifier auth.AuthVerifier

	Logger   logger.Logger
	Registry *prometheus.Registry

	// Opcional: si viene, usa esta DB para postgres en vez de abrir Config.Storage.DSN.
	DB *sql.DB

	// Opcionales, para tests: reemplazan los ledgers que arma la config.
	Native funds.NativeLedger
	Token  funds.TokenLedger
}

// App es el handler HTTP más los recursos que hay que cerrar al apagar.
type App struct {
	http.Handler

	Reports *reports.Service
	Events  *events.Service
	Wallets *wallets.Service

	closers []func() error
}

// Close cierra en orden inverso al de apertura (primero eventos, después storage).
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func New(ctx context.Context, opts Options) (_ *App, err error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	log := opts.Logger
	if log == nil {
		log = logger.New(logger.Options{
			Level:  logger.ParseLevel(cfg.Log.Level),
			Format: logger.ParseFormat(cfg.Log.Format),
			App:    cfg.App,
		})
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.New(reg)

	app := &App{}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	// Storage
	var (
		reportRepo reports.Repository
		eventRepo  events.Repository

		// Saldos de custodia en el mismo store que los avisos.
		bookNative funds.NativeLedger
		bookToken  funds.TokenLedger
	)
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db := opts.DB
		if db == nil {
			db, err = pg.Open(cfg.Storage.DSN)
			if err != nil {
				return nil, fmt.Errorf("open postgres: %w", err)
			}
			app.closers = append(app.closers, db.Close)
		}
		if err = pg.EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		reportRepo = pg.NewReportsRepo(db)
		eventRepo = pg.NewEventsRepo(db)
		bookNative = pg.NewNativeBook(db)
		bookToken = pg.NewToken(db)

	case config.StorageBolt:
		db, err := boltdb.Open(cfg.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		reportRepo = boltdb.NewReportsRepo(db)
		eventRepo = boltdb.NewEventsRepo(db)
		bookNative = boltdb.NewNativeBook(db)
		bookToken = boltdb.NewToken(db)

	default:
		reportRepo = mem.NewReportRepo()
		eventRepo = mem.NewEventRepo()
		bookNative = memfunds.NewBook()
		bookToken = memfunds.NewToken()
	}
	log.Info("storage ready", map[string]any{"driver": cfg.Storage.Driver})

	// Fondos. La moneda nativa siempre es un libro local, persistido en el storage.
	custody := cfg.CustodyAddress()
	native := opts.Native
	if native == nil {
		native = bookNative
	}
	token := opts.Token
	if token == nil {
		switch cfg.Token.Backend {
		case config.TokenEVM:
			l, err := evmtoken.Dial(ctx, cfg.Token.RPCURL, evmtoken.Options{
				Contract:       common.HexToAddress(cfg.Token.ContractAddress),
				PrivateKey:     cfg.Token.PrivateKey,
				ReceiptTimeout: cfg.Token.ReceiptTimeout,
			})
			if err != nil {
				return nil, err
			}
			if l.Custody() != custody {
				log.Warn("custody overridden by token key", map[string]any{
					"configured": custody.Hex(),
					"custody":    l.Custody().Hex(),
				})
			}
			custody = l.Custody()
			token = l
		default:
			token = bookToken
		}
	}

	// Sinks de eventos
	var sinks []events.Sink
	if cfg.Events.AMQPURL != "" {
		p, err := amqpsink.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.RoutingKey)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, p)
	}
	if cfg.Events.WebhookURL != "" {
		sinks = append(sinks, webhook.New(cfg.Events.WebhookURL, 5*time.Second, 2))
	}

	// Services por módulo
	eventsSvc := events.NewService(eventRepo, events.Options{
		Sinks:   sinks,
		Logger:  log.With(map[string]any{"module": "events"}),
		Metrics: m,
	})
	app.closers = append(app.closers, eventsSvc.Close)

	reportsSvc := reports.NewService(reportRepo, reports.Options{
		Custody:   custody,
		Native:    native,
		Token:     token,
		Publisher: eventsSvc,
		Logger:    log.With(map[string]any{"module": "reports"}),
		Metrics:   m,
	})

	walletsSvc := wallets.NewService(native, token, wallets.Options{
		Custody: custody,
		Faucet:  cfg.DevFaucet,
		Logger:  log.With(map[string]any{"module": "wallets"}),
	})

	display := reports.Display{
		Native: units.Native(cfg.Registry.NativeSymbol, cfg.Registry.NativeDecimals),
		Token:  units.Token(cfg.Registry.TokenSymbol, cfg.Registry.TokenDecimals),
	}

	verifier := opts.AuthVerifier
	if verifier == nil && cfg.Auth.Mode == config.AuthWallet {
		verifier = walletsig.NewVerifier(cfg.Auth.SignatureTTL)
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log))
	r.Use(chimw.Recoverer)
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = config.DefaultMaxBodyBytes
	}
	r.Use(chimw.RequestSize(maxBody))

	r.Use(middleware.AuthContext(verifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Rutas por módulo
	reports.RegisterRoutes(r, reportsSvc, display)
	events.RegisterRoutes(r, eventsSvc, reportsSvc, display)
	wallets.RegisterRoutes(r, walletsSvc, display)

	app.Handler = r
	app.Reports = reportsSvc
	app.Events = eventsSvc
	app.Wallets = walletsSvc
	return app, nil
}
