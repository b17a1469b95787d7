// Package memory implementa los ledgers de fondos en memoria:
// un libro de moneda nativa y un token estilo ERC-20 con allowances.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"pettrace/internal/ports/funds"

	"github.com/ethereum/go-ethereum/common"
)

// Book es un libro de saldos. Sirve como ledger nativo.
type Book struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

func NewBook() *Book {
	return &Book{balances: make(map[common.Address]*big.Int)}
}

func (b *Book) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balanceLocked(account)), nil
}

func (b *Book) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transferLocked(from, to, amount)
}

func (b *Book) Mint(_ context.Context, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return funds.ErrZeroAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[to] = new(big.Int).Add(b.balanceLocked(to), amount)
	return nil
}

func (b *Book) balanceLocked(a common.Address) *big.Int {
	if v, ok := b.balances[a]; ok {
		return v
	}
	return new(big.Int)
}

func (b *Book) transferLocked(from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if from == (common.Address{}) || to == (common.Address{}) {
		return funds.ErrZeroAddress
	}
	bal := b.balanceLocked(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", funds.ErrInsufficientBalance, from.Hex(), bal, amount)
	}
	b.balances[from] = new(big.Int).Sub(bal, amount)
	b.balances[to] = new(big.Int).Add(b.balanceLocked(to), amount)
	return nil
}

// Token agrega allowances al libro (approve / transferFrom).
type Token struct {
	*Book
	allowances map[common.Address]map[common.Address]*big.Int
}

func NewToken() *Token {
	return &Token{
		Book:       NewBook(),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (t *Token) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.allowanceLocked(owner, spender)), nil
}

// Approve reemplaza la allowance (no suma), como ERC-20.
func (t *Token) Approve(_ context.Context, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return funds.ErrInvalidAmount
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return funds.ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(amount)
	return nil
}

// TransferFrom: guard balances[from] >= amount && allowances[from][spender] >= amount.
func (t *Token) TransferFrom(_ context.Context, spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowanceLocked(from, spender)
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s approved %s, needs %s", funds.ErrInsufficientAllowance, from.Hex(), allowed, amount)
	}
	if err := t.transferLocked(from, to, amount); err != nil {
		return err
	}
	t.allowances[from][spender] = new(big.Int).Sub(allowed, amount)
	return nil
}

func (t *Token) allowanceLocked(owner, spender common.Address) *big.Int {
	if m, ok := t.allowances[owner]; ok {
		if v, ok := m[spender]; ok {
			return v
		}
	}
	return new(big.Int)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return funds.ErrInvalidAmount
	}
	return nil
}

var (
	_ funds.NativeLedger = (*Book)(nil)
	_ funds.Minter       = (*Book)(nil)
	_ funds.TokenLedger  = (*Token)(nil)
	_ funds.Approver     = (*Token)(nil)
	_ funds.Minter       = (*Token)(nil)
)
