package boltdb

import (
	"context"
	"encoding/json"
	"time"

	"pettrace/internal/domain/reports"

	bolt "github.com/boltdb/bolt"
)

// reportRecord es la forma persistida; montos como texto decimal.
type reportRecord struct {
	ID    uint64 `json:"id"`
	Owner string `json:"owner"`

	Name             string `json:"name"`
	Breed            string `json:"breed"`
	Gender           string `json:"gender"`
	SizeCm           uint64 `json:"size_cm"`
	AgeMonths        uint64 `json:"age_months"`
	DateTimeLost     string `json:"date_time_lost"`
	Description      string `json:"description"`
	ImageURL         string `json:"image_url"`
	LastSeenLocation string `json:"last_seen_location"`

	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`

	NativeBounty string `json:"native_bounty"`
	TokenBounty  string `json:"token_bounty"`

	IsFound         bool   `json:"is_found"`
	Finder          string `json:"finder,omitempty"`
	OwnerConfirmed  bool   `json:"owner_confirmed"`
	FinderConfirmed bool   `json:"finder_confirmed"`
	BountyClaimed   bool   `json:"bounty_claimed"`
	Cancelled       bool   `json:"cancelled"`

	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toReportRecord(p reports.PetReport) reportRecord {
	return reportRecord{
		ID:               p.ID,
		Owner:            p.Owner.Hex(),
		Name:             p.Pet.Name,
		Breed:            p.Pet.Breed,
		Gender:           p.Pet.Gender,
		SizeCm:           p.Pet.SizeCm,
		AgeMonths:        p.Pet.AgeMonths,
		DateTimeLost:     p.Pet.DateTimeLost,
		Description:      p.Pet.Description,
		ImageURL:         p.Pet.ImageURL,
		LastSeenLocation: p.Pet.LastSeenLocation,
		ContactName:      p.Contact.Name,
		ContactPhone:     p.Contact.Phone,
		ContactEmail:     p.Contact.Email,
		NativeBounty:     amountText(p.Bounty.Native),
		TokenBounty:      amountText(p.Bounty.Token),
		IsFound:          p.IsFound,
		Finder:           addressText(p.Finder),
		OwnerConfirmed:   p.OwnerConfirmed,
		FinderConfirmed:  p.FinderConfirmed,
		BountyClaimed:    p.BountyClaimed,
		Cancelled:        p.Cancelled,
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (rec reportRecord) toDomain() (reports.PetReport, error) {
	native, err := parseAmount(rec.NativeBounty)
	if err != nil {
		return reports.PetReport{}, err
	}
	token, err := parseAmount(rec.TokenBounty)
	if err != nil {
		return reports.PetReport{}, err
	}

	return reports.PetReport{
		ID:    rec.ID,
		Owner: parseAddress(rec.Owner),
		Pet: reports.PetDetails{
			Name:             rec.Name,
			Breed:            rec.Breed,
			Gender:           rec.Gender,
			SizeCm:           rec.SizeCm,
			AgeMonths:        rec.AgeMonths,
			DateTimeLost:     rec.DateTimeLost,
			Description:      rec.Description,
			ImageURL:         rec.ImageURL,
			LastSeenLocation: rec.LastSeenLocation,
		},
		Contact: reports.Contact{
			Name:  rec.ContactName,
			Phone: rec.ContactPhone,
			Email: rec.ContactEmail,
		},
		Bounty:          reports.Bounty{Native: native, Token: token},
		IsFound:         rec.IsFound,
		Finder:          parseAddress(rec.Finder),
		OwnerConfirmed:  rec.OwnerConfirmed,
		FinderConfirmed: rec.FinderConfirmed,
		BountyClaimed:   rec.BountyClaimed,
		Cancelled:       rec.Cancelled,
		Version:         rec.Version,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}, nil
}

type ReportsRepo struct {
	db *bolt.DB
}

func NewReportsRepo(db *bolt.DB) *ReportsRepo {
	return &ReportsRepo{db: db}
}

var _ reports.Repository = (*ReportsRepo)(nil)

// Append usa la secuencia del bucket; el primer id es 0.
func (r *ReportsRepo) Append(ctx context.Context, p reports.PetReport) (reports.PetReport, error) {
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(reportsBucket)

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		p.ID = seq - 1

		data, err := json.Marshal(toReportRecord(p))
		if err != nil {
			return err
		}
		return b.Put(itob(p.ID), data)
	})
	if err != nil {
		return reports.PetReport{}, err
	}
	return p.Clone(), nil
}

func (r *ReportsRepo) Update(ctx context.Context, p reports.PetReport, expectedVersion uint64) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(reportsBucket)

		raw := b.Get(itob(p.ID))
		if raw == nil {
			return reports.ErrNotFound
		}
		var current reportRecord
		if err := json.Unmarshal(raw, &current); err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return reports.ErrConflict
		}

		data, err := json.Marshal(toReportRecord(p))
		if err != nil {
			return err
		}
		return b.Put(itob(p.ID), data)
	})
}

func (r *ReportsRepo) GetByID(ctx context.Context, id uint64) (reports.PetReport, error) {
	var out reports.PetReport

	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(reportsBucket).Get(itob(id))
		if raw == nil {
			return reports.ErrNotFound
		}
		var rec reportRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		p, err := rec.toDomain()
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return reports.PetReport{}, err
	}
	return out, nil
}

func (r *ReportsRepo) List(ctx context.Context, page reports.Page) ([]reports.PetReport, error) {
	out := make([]reports.PetReport, 0)
	if page.Offset < 0 {
		return out, nil
	}

	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(reportsBucket).Cursor()
		for k, v := c.Seek(itob(uint64(page.Offset))); k != nil; k, v = c.Next() {
			if page.Limit > 0 && len(out) >= page.Limit {
				break
			}
			var rec reportRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			p, err := rec.toDomain()
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
