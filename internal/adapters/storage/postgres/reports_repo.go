package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pettrace/internal/domain/reports"
)

type ReportsRepo struct {
	db *sql.DB
}

func NewReportsRepo(db *sql.DB) *ReportsRepo {
	return &ReportsRepo{db: db}
}

const reportColumns = `
	id, owner,
	name, breed, gender, size_cm, age_months, date_time_lost,
	description, image_url, last_seen_location,
	contact_name, contact_phone, contact_email,
	native_bounty::text, token_bounty::text,
	is_found, finder, owner_confirmed, finder_confirmed,
	bounty_claimed, cancelled,
	version, created_at, updated_at`

// Append asigna id = max(id)+1 (0 para la tabla vacía) en el mismo INSERT.
// Un id solo se consume si la fila se inserta.
func (r *ReportsRepo) Append(ctx context.Context, p reports.PetReport) (reports.PetReport, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO pet_reports (
			id, owner,
			name, breed, gender, size_cm, age_months, date_time_lost,
			description, image_url, last_seen_location,
			contact_name, contact_phone, contact_email,
			native_bounty, token_bounty,
			is_found, finder, owner_confirmed, finder_confirmed,
			bounty_claimed, cancelled,
			version, created_at, updated_at
		) VALUES (
			(SELECT COALESCE(MAX(id) + 1, 0) FROM pet_reports), $1,
			$2, $3, $4, $5, $6, $7,
			$8, $9, $10,
			$11, $12, $13,
			$14::text::numeric, $15::text::numeric,
			$16, $17, $18, $19,
			$20, $21,
			$22, $23, $24
		)
		RETURNING id
	`,
		p.Owner.Hex(),
		p.Pet.Name,
		p.Pet.Breed,
		p.Pet.Gender,
		int64(p.Pet.SizeCm),
		int64(p.Pet.AgeMonths),
		p.Pet.DateTimeLost,
		p.Pet.Description,
		p.Pet.ImageURL,
		p.Pet.LastSeenLocation,
		p.Contact.Name,
		p.Contact.Phone,
		p.Contact.Email,
		numeric(p.Bounty.Native),
		numeric(p.Bounty.Token),
		p.IsFound,
		addressText(p.Finder),
		p.OwnerConfirmed,
		p.FinderConfirmed,
		p.BountyClaimed,
		p.Cancelled,
		int64(p.Version),
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return reports.PetReport{}, fmt.Errorf("insert report: %w", err)
	}

	p.ID = uint64(id)
	return p.Clone(), nil
}

// Update solo toca los campos mutables; compare-and-swap sobre version.
func (r *ReportsRepo) Update(ctx context.Context, p reports.PetReport, expectedVersion uint64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pet_reports
		SET
			is_found = $2,
			finder = $3,
			owner_confirmed = $4,
			finder_confirmed = $5,
			bounty_claimed = $6,
			cancelled = $7,
			version = $8,
			updated_at = $9
		WHERE id = $1 AND version = $10
	`,
		int64(p.ID),
		p.IsFound,
		addressText(p.Finder),
		p.OwnerConfirmed,
		p.FinderConfirmed,
		p.BountyClaimed,
		p.Cancelled,
		int64(p.Version),
		p.UpdatedAt,
		int64(expectedVersion),
	)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		return nil
	}

	// 0 filas: no existe o la versión cambió
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM pet_reports WHERE id = $1`, int64(p.ID)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return reports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check report: %w", err)
	}
	return reports.ErrConflict
}

func (r *ReportsRepo) GetByID(ctx context.Context, id uint64) (reports.PetReport, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM pet_reports WHERE id = $1`, int64(id))

	p, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reports.PetReport{}, reports.ErrNotFound
		}
		return reports.PetReport{}, err
	}
	return p, nil
}

func (r *ReportsRepo) List(ctx context.Context, page reports.Page) ([]reports.PetReport, error) {
	query := `SELECT ` + reportColumns + ` FROM pet_reports ORDER BY id ASC OFFSET $1`
	args := []any{int64(max(page.Offset, 0))}
	if page.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, int64(page.Limit))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]reports.PetReport, 0)
	for rows.Next() {
		p, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (reports.PetReport, error) {
	var (
		p                         reports.PetReport
		id, size, age, version    int64
		owner, finder             string
		nativeBounty, tokenBounty string
		createdAt, updatedAt      time.Time
	)
	if err := s.Scan(
		&id,
		&owner,
		&p.Pet.Name,
		&p.Pet.Breed,
		&p.Pet.Gender,
		&size,
		&age,
		&p.Pet.DateTimeLost,
		&p.Pet.Description,
		&p.Pet.ImageURL,
		&p.Pet.LastSeenLocation,
		&p.Contact.Name,
		&p.Contact.Phone,
		&p.Contact.Email,
		&nativeBounty,
		&tokenBounty,
		&p.IsFound,
		&finder,
		&p.OwnerConfirmed,
		&p.FinderConfirmed,
		&p.BountyClaimed,
		&p.Cancelled,
		&version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return reports.PetReport{}, err
	}

	native, err := parseNumeric(nativeBounty)
	if err != nil {
		return reports.PetReport{}, err
	}
	token, err := parseNumeric(tokenBounty)
	if err != nil {
		return reports.PetReport{}, err
	}

	p.ID = uint64(id)
	p.Owner = parseAddress(owner)
	p.Finder = parseAddress(finder)
	p.Pet.SizeCm = uint64(size)
	p.Pet.AgeMonths = uint64(age)
	p.Bounty = reports.NewBounty(native, token)
	p.Version = uint64(version)
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	return p, nil
}
