package events

import (
	"math/big"
	"time"

	"pettrace/internal/domain/reports"

	"github.com/ethereum/go-ethereum/common"
)

// RegistryEvent es una entrada inmutable del log de eventos del registro.
type RegistryEvent struct {
	ID       string
	ReportID uint64

	Type  reports.EventType
	Actor common.Address

	NativeAmount *big.Int
	TokenAmount  *big.Int

	OccurredAt time.Time
	RecordedAt time.Time
}

func fromRegistry(id string, e reports.Event, recordedAt time.Time) RegistryEvent {
	b := e.Bounty.Clone()
	return RegistryEvent{
		ID:           id,
		ReportID:     e.ReportID,
		Type:         e.Type,
		Actor:        e.Actor,
		NativeAmount: b.Native,
		TokenAmount:  b.Token,
		OccurredAt:   e.OccurredAt,
		RecordedAt:   recordedAt,
	}
}

// Envelope es la forma que viaja a los sinks externos. Montos en unidades base.
type Envelope struct {
	ID           string    `json:"id"`
	ReportID     uint64    `json:"report_id"`
	Type         string    `json:"type"`
	Actor        string    `json:"actor"`
	NativeAmount string    `json:"native_amount"`
	TokenAmount  string    `json:"token_amount"`
	OccurredAt   time.Time `json:"occurred_at"`
	RecordedAt   time.Time `json:"recorded_at"`
}

func NewEnvelope(e RegistryEvent) Envelope {
	return Envelope{
		ID:           e.ID,
		ReportID:     e.ReportID,
		Type:         string(e.Type),
		Actor:        e.Actor.Hex(),
		NativeAmount: amount(e.NativeAmount),
		TokenAmount:  amount(e.TokenAmount),
		OccurredAt:   e.OccurredAt,
		RecordedAt:   e.RecordedAt,
	}
}
