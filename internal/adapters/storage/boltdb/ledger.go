package boltdb

import (
	"context"
	"fmt"
	"math/big"

	"pettrace/internal/ports/funds"

	bolt "github.com/boltdb/bolt"
	"github.com/ethereum/go-ethereum/common"
)

// Book es un libro de saldos en un bucket (clave: dirección, valor: entero decimal).
// Cada operación corre en una sola tx de escritura.
type Book struct {
	db     *bolt.DB
	bucket []byte
}

// NewNativeBook guarda los saldos de moneda nativa junto a los avisos, así el
// escrow sobrevive a un reinicio.
func NewNativeBook(db *bolt.DB) *Book {
	return &Book{db: db, bucket: nativeBalancesBucket}
}

func (b *Book) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	var out *big.Int
	err := b.db.View(func(tx *bolt.Tx) error {
		v, err := balanceOf(tx.Bucket(b.bucket), account)
		out = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Book) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	if err := checkTransfer(from, to, amount); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return transfer(tx.Bucket(b.bucket), from, to, amount)
	})
}

func (b *Book) Mint(_ context.Context, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return funds.ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return funds.ErrZeroAddress
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		cur, err := balanceOf(bk, to)
		if err != nil {
			return err
		}
		return putBalance(bk, to, cur.Add(cur, amount))
	})
}

// Token agrega allowances (approve / transferFrom) al libro del token.
type Token struct {
	*Book
}

func NewToken(db *bolt.DB) *Token {
	return &Token{Book: &Book{db: db, bucket: tokenBalancesBucket}}
}

func (t *Token) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	var out *big.Int
	err := t.db.View(func(tx *bolt.Tx) error {
		v, err := parseAmount(string(tx.Bucket(allowancesBucket).Get(allowanceKey(owner, spender))))
		out = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Approve reemplaza la allowance, como ERC-20.
func (t *Token) Approve(_ context.Context, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return funds.ErrInvalidAmount
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return funds.ErrZeroAddress
	}
	return t.db.Update(func(tx *bolt.Tx) error {
		return putAllowance(tx.Bucket(allowancesBucket), owner, spender, amount)
	})
}

// TransferFrom descuenta allowance y saldo en la misma tx.
func (t *Token) TransferFrom(_ context.Context, spender, from, to common.Address, amount *big.Int) error {
	if err := checkTransfer(from, to, amount); err != nil {
		return err
	}
	return t.db.Update(func(tx *bolt.Tx) error {
		ab := tx.Bucket(allowancesBucket)
		allowed, err := parseAmount(string(ab.Get(allowanceKey(from, spender))))
		if err != nil {
			return err
		}
		if allowed.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s approved %s, needs %s", funds.ErrInsufficientAllowance, from.Hex(), allowed, amount)
		}
		if err := transfer(tx.Bucket(t.bucket), from, to, amount); err != nil {
			return err
		}
		return putAllowance(ab, from, spender, allowed.Sub(allowed, amount))
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

func transfer(bk *bolt.Bucket, from, to common.Address, amount *big.Int) error {
	bal, err := balanceOf(bk, from)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", funds.ErrInsufficientBalance, from.Hex(), bal, amount)
	}
	if err := putBalance(bk, from, bal.Sub(bal, amount)); err != nil {
		return err
	}
	dst, err := balanceOf(bk, to)
	if err != nil {
		return err
	}
	return putBalance(bk, to, dst.Add(dst, amount))
}

func balanceOf(bk *bolt.Bucket, a common.Address) (*big.Int, error) {
	return parseAmount(string(bk.Get(a.Bytes())))
}

// Saldo cero => sin clave.
func putBalance(bk *bolt.Bucket, a common.Address, v *big.Int) error {
	if v.Sign() == 0 {
		return bk.Delete(a.Bytes())
	}
	return bk.Put(a.Bytes(), []byte(v.String()))
}

func allowanceKey(owner, spender common.Address) []byte {
	k := make([]byte, 0, 2*common.AddressLength)
	k = append(k, owner.Bytes()...)
	return append(k, spender.Bytes()...)
}

func putAllowance(bk *bolt.Bucket, owner, spender common.Address, v *big.Int) error {
	if v.Sign() == 0 {
		return bk.Delete(allowanceKey(owner, spender))
	}
	return bk.Put(allowanceKey(owner, spender), []byte(v.String()))
}

var (
	_ funds.NativeLedger = (*Book)(nil)
	_ funds.Minter       = (*Book)(nil)
	_ funds.TokenLedger  = (*Token)(nil)
	_ funds.Approver     = (*Token)(nil)
	_ funds.Minter       = (*Token)(nil)
)
