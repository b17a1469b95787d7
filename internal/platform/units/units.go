// Package units convierte montos en unidades base (wei, unidades del token)
// a decimales legibles y viceversa.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxBits es el ancho de un uint256, el tipo de los montos on-chain.
const MaxBits = 256

// maxDigits: 2^256-1 tiene 78 dígitos decimales.
const maxDigits = 78

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrTooPrecise    = errors.New("amount has more decimals than the currency supports")
	ErrTooLarge      = fmt.Errorf("%w: does not fit in %d bits", ErrInvalidAmount, MaxBits)
)

// Currency describe una moneda con su símbolo y decimales on-chain.
type Currency struct {
	Symbol   string
	Decimals int32
	// Places es la cantidad de decimales a mostrar.
	Places int32
}

// Native: 18 decimales, se muestra con 4. Token: 6 decimales, se muestra con 2.
func Native(symbol string, decimals int32) Currency {
	return Currency{Symbol: symbol, Decimals: decimals, Places: 4}
}

func Token(symbol string, decimals int32) Currency {
	return Currency{Symbol: symbol, Decimals: decimals, Places: 2}
}

// FromBase convierte unidades base a decimal (1e18 wei => 1).
func FromBase(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// ToBase convierte un decimal a unidades base. Falla si queda parte fraccionaria
// o si el resultado no entra en un uint256. El tamaño se acota antes de escalar.
func ToBase(d decimal.Decimal, decimals int32) (*big.Int, error) {
	if d.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if d.IsZero() {
		return new(big.Int), nil
	}
	if intDigits(d)+int64(decimals) > maxDigits {
		return nil, ErrTooLarge
	}
	if -int64(d.Exponent()) > int64(decimals)+maxDigits {
		return nil, ErrTooPrecise
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, ErrTooPrecise
	}
	v := shifted.BigInt()
	if v.BitLen() > MaxBits {
		return nil, ErrTooLarge
	}
	return v, nil
}

// intDigits cuenta los dígitos de la parte entera sin materializar el número.
func intDigits(d decimal.Decimal) int64 {
	return int64(len(d.Coefficient().Text(10))) + int64(d.Exponent())
}

// Parse acepta "0.5" o "12" y devuelve unidades base. No acepta notación científica.
func Parse(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	if len(s) > 2*maxDigits+2 || strings.ContainsAny(s, "eE") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, truncate(s))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return ToBase(d, decimals)
}

// ParseBaseUnits acepta un entero decimal en unidades base ("1000000").
func ParseBaseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	if len(s) > maxDigits {
		return nil, ErrTooLarge
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if v.BitLen() > MaxBits {
		return nil, ErrTooLarge
	}
	return v, nil
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}

// Format devuelve p.ej. "0.0001 ETH" o "1.00 USDC".
func (c Currency) Format(amount *big.Int) string {
	return FromBase(amount, c.Decimals).StringFixed(c.Places) + " " + c.Symbol
}

func (c Currency) Parse(s string) (*big.Int, error) {
	return Parse(s, c.Decimals)
}
