// Package funds define los puertos de custodia: moneda nativa y token fungible.
package funds

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrUnsupported           = errors.New("operation not supported by ledger")

	// ErrPending: la transferencia se envió pero no se sabe si se aplicó.
	// Quien la recibe no debe asumir que los fondos no se movieron.
	ErrPending = errors.New("transfer submitted, outcome unknown")
)

// PendingError lleva el hash de la transacción enviada. errors.Is(err, ErrPending) es true.
type PendingError struct {
	Tx  common.Hash
	Err error
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("%v: tx %s: %v", ErrPending, e.Tx.Hex(), e.Err)
}

func (e *PendingError) Unwrap() error { return e.Err }

func (e *PendingError) Is(target error) bool { return target == ErrPending }

// IsPending indica si err deja una transferencia sin resultado conocido.
func IsPending(err error) bool { return errors.Is(err, ErrPending) }

// NativeLedger mueve la moneda nativa (el "value" adjunto a una transacción).
type NativeLedger interface {
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// TokenLedger sigue el patrón approve/transferFrom de ERC-20.
type TokenLedger interface {
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error
}

// Approver es opcional: solo ledgers donde el servicio puede aprobar en nombre del dueño.
type Approver interface {
	Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error
}

// Minter es opcional (faucet de desarrollo).
type Minter interface {
	Mint(ctx context.Context, to common.Address, amount *big.Int) error
}
