package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pettrace/internal/domain/events"
	"pettrace/internal/domain/reports"
)

type EventsRepo struct {
	db *sql.DB
}

func NewEventsRepo(db *sql.DB) *EventsRepo {
	return &EventsRepo{db: db}
}

func (r *EventsRepo) Create(ctx context.Context, e events.RegistryEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO registry_events (
			id, report_id, type, actor,
			native_amount, token_amount,
			occurred_at, recorded_at
		) VALUES ($1, $2, $3, $4, $5::text::numeric, $6::text::numeric, $7, $8)
	`,
		e.ID,
		int64(e.ReportID),
		string(e.Type),
		e.Actor.Hex(),
		numeric(e.NativeAmount),
		numeric(e.TokenAmount),
		e.OccurredAt,
		e.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

const eventColumns = `
	id::text, report_id, type, actor,
	native_amount::text, token_amount::text,
	occurred_at, recorded_at`

func (r *EventsRepo) GetByID(ctx context.Context, id string) (events.RegistryEvent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM registry_events WHERE id = $1`, id)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return events.RegistryEvent{}, events.ErrNotFound
		}
		return events.RegistryEvent{}, err
	}
	return e, nil
}

func (r *EventsRepo) ListByReport(ctx context.Context, reportID uint64, filter events.ListFilter) ([]events.RegistryEvent, error) {
	return r.list(ctx, &reportID, filter)
}

func (r *EventsRepo) List(ctx context.Context, filter events.ListFilter) ([]events.RegistryEvent, error) {
	return r.list(ctx, nil, filter)
}

func (r *EventsRepo) list(ctx context.Context, reportID *uint64, filter events.ListFilter) ([]events.RegistryEvent, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + eventColumns + ` FROM registry_events WHERE TRUE`)

	args := []any{}
	argN := 1

	if reportID != nil {
		sb.WriteString(fmt.Sprintf(" AND report_id = $%d", argN))
		args = append(args, int64(*reportID))
		argN++
	}

	// types filter
	if len(filter.Types) > 0 {
		placeholders := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argN))
			args = append(args, string(t))
			argN++
		}
		sb.WriteString(" AND type IN (" + strings.Join(placeholders, ",") + ")")
	}

	// from/to
	if filter.From != nil {
		sb.WriteString(fmt.Sprintf(" AND occurred_at >= $%d", argN))
		args = append(args, *filter.From)
		argN++
	}
	if filter.To != nil {
		sb.WriteString(fmt.Sprintf(" AND occurred_at <= $%d", argN))
		args = append(args, *filter.To)
		argN++
	}

	sb.WriteString(" ORDER BY occurred_at ASC, recorded_at ASC")
	sb.WriteString(fmt.Sprintf(" LIMIT $%d", argN))
	args = append(args, filter.EffectiveLimit())

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]events.RegistryEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(s scanner) (events.RegistryEvent, error) {
	var (
		e                   events.RegistryEvent
		reportID            int64
		typ, actor          string
		nativeRaw, tokenRaw string
	)
	if err := s.Scan(
		&e.ID,
		&reportID,
		&typ,
		&actor,
		&nativeRaw,
		&tokenRaw,
		&e.OccurredAt,
		&e.RecordedAt,
	); err != nil {
		return events.RegistryEvent{}, err
	}

	native, err := parseNumeric(nativeRaw)
	if err != nil {
		return events.RegistryEvent{}, err
	}
	token, err := parseNumeric(tokenRaw)
	if err != nil {
		return events.RegistryEvent{}, err
	}

	e.ReportID = uint64(reportID)
	e.Type = reports.EventType(typ)
	e.Actor = parseAddress(actor)
	e.NativeAmount = native
	e.TokenAmount = token
	return e, nil
}
