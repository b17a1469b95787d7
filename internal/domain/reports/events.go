package reports

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type EventType string

const (
	EventPetPosted       EventType = "pet_posted"
	EventFoundClaimed    EventType = "found_claimed"
	EventOwnerConfirmed  EventType = "owner_confirmed"
	EventBountyClaimed   EventType = "bounty_claimed"
	EventReportCancelled EventType = "report_cancelled"
)

// Event se emite después de cada transición confirmada.
type Event struct {
	Type     EventType
	ReportID uint64
	Actor    common.Address
	// Bounty: montos movidos (post, claim, cancel); cero en el resto.
	Bounty     Bounty
	OccurredAt time.Time
}

// Publisher recibe los eventos del registro. Un error no revierte la transición.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
