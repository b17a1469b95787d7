package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"pettrace/internal/ports/funds"

	"github.com/ethereum/go-ethereum/common"
)

const (
	AssetNative = "native"
	AssetToken  = "token"
)

// Book guarda saldos en ledger_balances para un asset. Las transferencias
// bloquean la fila del origen (FOR UPDATE) dentro de una tx.
type Book struct {
	db    *sql.DB
	asset string
}

func NewNativeBook(db *sql.DB) *Book {
	return &Book{db: db, asset: AssetNative}
}

func (b *Book) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var raw string
	err := b.db.QueryRowContext(ctx, `
SELECT amount::text FROM ledger_balances WHERE asset = $1 AND account = $2
`, b.asset, account.Hex()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseNumeric(raw)
}

func (b *Book) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if err := checkTransfer(from, to, amount); err != nil {
		return err
	}
	return withTx(ctx, b.db, func(tx *sql.Tx) error {
		return b.transferTx(ctx, tx, from, to, amount)
	})
}

func (b *Book) Mint(ctx context.Context, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return funds.ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return funds.ErrZeroAddress
	}
	_, err := b.db.ExecContext(ctx, creditSQL, b.asset, to.Hex(), numeric(amount))
	return err
}

const creditSQL = `
INSERT INTO ledger_balances (asset, account, amount) VALUES ($1, $2, $3::numeric)
ON CONFLICT (asset, account) DO UPDATE SET amount = ledger_balances.amount + EXCLUDED.amount
`

func (b *Book) transferTx(ctx context.Context, tx *sql.Tx, from, to common.Address, amount *big.Int) error {
	var raw string
	err := tx.QueryRowContext(ctx, `
SELECT amount::text FROM ledger_balances WHERE asset = $1 AND account = $2 FOR UPDATE
`, b.asset, from.Hex()).Scan(&raw)
	bal := new(big.Int)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		if bal, err = parseNumeric(raw); err != nil {
			return err
		}
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", funds.ErrInsufficientBalance, from.Hex(), bal, amount)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE ledger_balances SET amount = amount - $3::numeric WHERE asset = $1 AND account = $2
`, b.asset, from.Hex(), numeric(amount)); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, creditSQL, b.asset, to.Hex(), numeric(amount))
	return err
}

// Token agrega ledger_allowances al libro del token.
type Token struct {
	*Book
}

func NewToken(db *sql.DB) *Token {
	return &Token{Book: &Book{db: db, asset: AssetToken}}
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	var raw string
	err := t.db.QueryRowContext(ctx, `
SELECT amount::text FROM ledger_allowances WHERE owner = $1 AND spender = $2
`, owner.Hex(), spender.Hex()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseNumeric(raw)
}

func (t *Token) Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return funds.ErrInvalidAmount
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return funds.ErrZeroAddress
	}
	_, err := t.db.ExecContext(ctx, `
INSERT INTO ledger_allowances (owner, spender, amount) VALUES ($1, $2, $3::numeric)
ON CONFLICT (owner, spender) DO UPDATE SET amount = EXCLUDED.amount
`, owner.Hex(), spender.Hex(), numeric(amount))
	return err
}

func (t *Token) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error {
	if err := checkTransfer(from, to, amount); err != nil {
		return err
	}
	return withTx(ctx, t.db, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx, `
SELECT amount::text FROM ledger_allowances WHERE owner = $1 AND spender = $2 FOR UPDATE
`, from.Hex(), spender.Hex()).Scan(&raw)
		allowed := new(big.Int)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			if allowed, err = parseNumeric(raw); err != nil {
				return err
			}
		}
		if allowed.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s approved %s, needs %s", funds.ErrInsufficientAllowance, from.Hex(), allowed, amount)
		}

		if err := t.transferTx(ctx, tx, from, to, amount); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
UPDATE ledger_allowances SET amount = amount - $3::numeric WHERE owner = $1 AND spender = $2
`, from.Hex(), spender.Hex(), numeric(amount))
		return err
	})
}

func checkTransfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return funds.ErrInvalidAmount
	}
	if from == (common.Address{}) || to == (common.Address{}) {
		return funds.ErrZeroAddress
	}
	return nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

var (
	_ funds.NativeLedger = (*Book)(nil)
	_ funds.Minter       = (*Book)(nil)
	_ funds.TokenLedger  = (*Token)(nil)
	_ funds.Approver     = (*Token)(nil)
	_ funds.Minter       = (*Token)(nil)
)
