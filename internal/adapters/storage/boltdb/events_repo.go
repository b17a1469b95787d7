package boltdb

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"pettrace/internal/domain/events"
	"pettrace/internal/domain/reports"

	bolt "github.com/boltdb/bolt"
)

type eventRecord struct {
	ID           string    `json:"id"`
	ReportID     uint64    `json:"report_id"`
	Type         string    `json:"type"`
	Actor        string    `json:"actor"`
	NativeAmount string    `json:"native_amount"`
	TokenAmount  string    `json:"token_amount"`
	OccurredAt   time.Time `json:"occurred_at"`
	RecordedAt   time.Time `json:"recorded_at"`
}

func toEventRecord(e events.RegistryEvent) eventRecord {
	return eventRecord{
		ID:           e.ID,
		ReportID:     e.ReportID,
		Type:         string(e.Type),
		Actor:        e.Actor.Hex(),
		NativeAmount: amountText(e.NativeAmount),
		TokenAmount:  amountText(e.TokenAmount),
		OccurredAt:   e.OccurredAt,
		RecordedAt:   e.RecordedAt,
	}
}

func (rec eventRecord) toDomain() (events.RegistryEvent, error) {
	native, err := parseAmount(rec.NativeAmount)
	if err != nil {
		return events.RegistryEvent{}, err
	}
	token, err := parseAmount(rec.TokenAmount)
	if err != nil {
		return events.RegistryEvent{}, err
	}
	return events.RegistryEvent{
		ID:           rec.ID,
		ReportID:     rec.ReportID,
		Type:         reports.EventType(rec.Type),
		Actor:        parseAddress(rec.Actor),
		NativeAmount: native,
		TokenAmount:  token,
		OccurredAt:   rec.OccurredAt,
		RecordedAt:   rec.RecordedAt,
	}, nil
}

// EventsRepo guarda el log en orden de inserción (clave = secuencia)
// y un índice id -> secuencia para GetByID.
type EventsRepo struct {
	db *bolt.DB
}

func NewEventsRepo(db *bolt.DB) *EventsRepo {
	return &EventsRepo{db: db}
}

var _ events.Repository = (*EventsRepo)(nil)

func (r *EventsRepo) Create(ctx context.Context, e events.RegistryEvent) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		idx := tx.Bucket(eventIDsBucket)

		if idx.Get([]byte(e.ID)) != nil {
			return nil
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(toEventRecord(e))
		if err != nil {
			return err
		}
		if err := b.Put(itob(seq), data); err != nil {
			return err
		}
		return idx.Put([]byte(e.ID), itob(seq))
	})
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (events.RegistryEvent, error) {
	var out events.RegistryEvent

	err := r.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(eventIDsBucket).Get([]byte(id))
		if key == nil {
			return events.ErrNotFound
		}
		raw := tx.Bucket(eventsBucket).Get(key)
		if raw == nil {
			return events.ErrNotFound
		}
		var rec eventRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		e, err := rec.toDomain()
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return events.RegistryEvent{}, err
	}
	return out, nil
}

func (r *EventsRepo) ListByReport(ctx context.Context, reportID uint64, filter events.ListFilter) ([]events.RegistryEvent, error) {
	return r.list(func(e events.RegistryEvent) bool {
		return e.ReportID == reportID && filter.Match(e)
	}, filter.EffectiveLimit())
}

func (r *EventsRepo) List(ctx context.Context, filter events.ListFilter) ([]events.RegistryEvent, error) {
	return r.list(filter.Match, filter.EffectiveLimit())
}

func (r *EventsRepo) list(match func(events.RegistryEvent) bool, limit int) ([]events.RegistryEvent, error) {
	out := make([]events.RegistryEvent, 0)

	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(eventsBucket).ForEach(func(k, v []byte) error {
			var rec eventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			e, err := rec.toDomain()
			if err != nil {
				return err
			}
			if match(e) {
				out = append(out, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Estable: a igual OccurredAt queda el orden de inserción.
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
