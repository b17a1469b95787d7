package reports

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Currency clasifica por qué camino se financió la recompensa.
type Currency string

const (
	CurrencyNone   Currency = "none"
	CurrencyNative Currency = "native"
	CurrencyToken  Currency = "token"
	CurrencyMixed  Currency = "mixed"
)

// Bounty es el monto en escrow, en unidades base. Ambos pueden ser cero.
type Bounty struct {
	Native *big.Int
	Token  *big.Int
}

// NewBounty copia los montos; nil se toma como cero.
func NewBounty(native, token *big.Int) Bounty {
	return Bounty{Native: copyInt(native), Token: copyInt(token)}
}

func (b Bounty) Currency() Currency {
	n := b.Native != nil && b.Native.Sign() > 0
	t := b.Token != nil && b.Token.Sign() > 0
	switch {
	case n && t:
		return CurrencyMixed
	case n:
		return CurrencyNative
	case t:
		return CurrencyToken
	default:
		return CurrencyNone
	}
}

func (b Bounty) IsZero() bool {
	return b.Currency() == CurrencyNone
}

func (b Bounty) Clone() Bounty {
	return NewBounty(b.Native, b.Token)
}

// Status es el estado derivado del reporte.
type Status string

const (
	StatusCreated       Status = "created"
	StatusFinderClaimed Status = "finder_claimed"
	StatusFound         Status = "found"
	StatusSettled       Status = "settled"
	StatusCancelled     Status = "cancelled"
)

// PetDetails son los datos descriptivos; inmutables tras la creación.
type PetDetails struct {
	Name             string
	Breed            string
	Gender           string
	SizeCm           uint64
	AgeMonths        uint64
	DateTimeLost     string
	Description      string
	ImageURL         string
	LastSeenLocation string
}

type Contact struct {
	Name  string
	Phone string
	Email string
}

// PetReport es un aviso de mascota perdida con su recompensa en escrow.
type PetReport struct {
	ID    uint64
	Owner common.Address

	Pet     PetDetails
	Contact Contact

	Bounty Bounty

	IsFound bool
	// Finder es la dirección cero hasta que alguien marca la mascota como encontrada.
	Finder common.Address

	OwnerConfirmed bool
	// FinderConfirmed se conserva en el modelo pero ninguna operación lo setea.
	FinderConfirmed bool

	BountyClaimed bool
	Cancelled     bool

	// Version se incrementa en cada mutación (CAS en los repos).
	Version uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r PetReport) HasFinder() bool {
	return r.Finder != (common.Address{})
}

func (r PetReport) Status() Status {
	switch {
	case r.Cancelled:
		return StatusCancelled
	case r.BountyClaimed:
		return StatusSettled
	case r.IsFound:
		return StatusFound
	case r.HasFinder():
		return StatusFinderClaimed
	default:
		return StatusCreated
	}
}

// Clone evita compartir los *big.Int entre copias.
func (r PetReport) Clone() PetReport {
	r.Bounty = r.Bounty.Clone()
	return r
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
