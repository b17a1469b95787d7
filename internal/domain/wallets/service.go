// Package wallets expone saldos y las operaciones auxiliares de los ledgers
// (approve hacia la custodia y faucet de desarrollo).
package wallets

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"pettrace/internal/platform/logger"
	"pettrace/internal/ports/funds"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrFaucetDisabled = errors.New("dev faucet disabled")
)

type Balances struct {
	Address common.Address
	Native  *big.Int
	Token   *big.Int
	// Allowance del address hacia la custodia del registro.
	Allowance *big.Int
}

type Options struct {
	Custody common.Address
	Faucet  bool
	Logger  logger.Logger
}

type Service struct {
	native  funds.NativeLedger
	token   funds.TokenLedger
	custody common.Address
	faucet  bool
	log     logger.Logger
}

func NewService(native funds.NativeLedger, token funds.TokenLedger, opts Options) *Service {
	s := &Service{
		native:  native,
		token:   token,
		custody: opts.Custody,
		faucet:  opts.Faucet,
		log:     opts.Logger,
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

func (s *Service) Balances(ctx context.Context, addr common.Address) (Balances, error) {
	if addr == (common.Address{}) {
		return Balances{}, ErrInvalidInput
	}

	native, err := s.native.BalanceOf(ctx, addr)
	if err != nil {
		return Balances{}, fmt.Errorf("native balance: %w", err)
	}
	token, err := s.token.BalanceOf(ctx, addr)
	if err != nil {
		return Balances{}, fmt.Errorf("token balance: %w", err)
	}
	allowance, err := s.token.Allowance(ctx, addr, s.custody)
	if err != nil {
		return Balances{}, fmt.Errorf("token allowance: %w", err)
	}

	return Balances{Address: addr, Native: native, Token: token, Allowance: allowance}, nil
}

// ApproveCustody fija la allowance del owner hacia la custodia.
// Solo ledgers que lo permitan (en cadena el dueño firma su propio approve).
func (s *Service) ApproveCustody(ctx context.Context, owner common.Address, amount *big.Int) error {
	if owner == (common.Address{}) || amount == nil || amount.Sign() < 0 {
		return ErrInvalidInput
	}
	approver, ok := s.token.(funds.Approver)
	if !ok {
		return funds.ErrUnsupported
	}
	if err := approver.Approve(ctx, owner, s.custody, amount); err != nil {
		return err
	}

	s.log.Info("custody approved", map[string]any{
		"owner":  owner.Hex(),
		"amount": amount.String(),
	})
	return nil
}

// Mint acredita fondos de prueba. Montos en cero se ignoran.
func (s *Service) Mint(ctx context.Context, to common.Address, native, token *big.Int) error {
	if !s.faucet {
		return ErrFaucetDisabled
	}
	if to == (common.Address{}) {
		return ErrInvalidInput
	}
	if (native == nil || native.Sign() == 0) && (token == nil || token.Sign() == 0) {
		return ErrInvalidInput
	}

	if native != nil && native.Sign() > 0 {
		m, ok := s.native.(funds.Minter)
		if !ok {
			return funds.ErrUnsupported
		}
		if err := m.Mint(ctx, to, native); err != nil {
			return fmt.Errorf("mint native: %w", err)
		}
	}
	if token != nil && token.Sign() > 0 {
		m, ok := s.token.(funds.Minter)
		if !ok {
			return funds.ErrUnsupported
		}
		if err := m.Mint(ctx, to, token); err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
	}

	s.log.Debug("faucet mint", map[string]any{
		"to":     to.Hex(),
		"native": amountString(native),
		"token":  amountString(token),
	})
	return nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
