package boltdb

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"pettrace/internal/domain/events"
	"pettrace/internal/domain/reports"

	bolt "github.com/boltdb/bolt"
	"github.com/ethereum/go-ethereum/common"
)

func openTestDB(t *testing.T) (*bolt.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pettrace.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db, path
}

var (
	owner  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	finder = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestReportsRepo_AppendUpdateList(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	defer db.Close()
	repo := NewReportsRepo(db)

	bounty, _ := new(big.Int).SetString("1000000000000000000000", 10)
	for i := 0; i < 3; i++ {
		got, err := repo.Append(ctx, reports.PetReport{
			Owner:   owner,
			Pet:     reports.PetDetails{Name: "Luna", SizeCm: 40},
			Bounty:  reports.NewBounty(bounty, big.NewInt(int64(i))),
			Version: 1,
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if got.ID != uint64(i) {
			t.Fatalf("expected id %d, got %d", i, got.ID)
		}
	}

	cur, err := repo.GetByID(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cur.Owner != owner || cur.Bounty.Native.Cmp(bounty) != 0 || cur.Bounty.Token.Int64() != 2 {
		t.Fatalf("unexpected report: %+v", cur)
	}
	if cur.HasFinder() {
		t.Fatalf("expected no finder")
	}

	next := cur.Clone()
	next.IsFound = true
	next.Finder = finder
	next.Version = 2
	if err := repo.Update(ctx, next, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.Update(ctx, next, 1); !errors.Is(err, reports.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := repo.Update(ctx, reports.PetReport{ID: 7}, 0); !errors.Is(err, reports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByID(ctx, 7); !errors.Is(err, reports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	page, err := repo.List(ctx, reports.Page{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 1 || page[0].ID != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	all, _ := repo.List(ctx, reports.Page{})
	if len(all) != 3 || all[2].Finder != finder || all[2].Version != 2 {
		t.Fatalf("unexpected list: %+v", all)
	}
	empty, _ := repo.List(ctx, reports.Page{Offset: 10})
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", empty)
	}
}

func TestReportsRepo_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	db, path := openTestDB(t)

	if _, err := NewReportsRepo(db).Append(ctx, reports.PetReport{Owner: owner, Version: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	db.Close()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	repo := NewReportsRepo(db)
	if _, err := repo.GetByID(ctx, 0); err != nil {
		t.Fatalf("expected report after reopen, got %v", err)
	}
	got, err := repo.Append(ctx, reports.PetReport{Owner: owner, Version: 1})
	if err != nil || got.ID != 1 {
		t.Fatalf("expected next id 1, got %d %v", got.ID, err)
	}
}

func TestEventsRepo(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	defer db.Close()
	repo := NewEventsRepo(db)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	in := []events.RegistryEvent{
		{ID: "a", ReportID: 0, Type: reports.EventPetPosted, Actor: owner, NativeAmount: big.NewInt(5), OccurredAt: base},
		{ID: "b", ReportID: 1, Type: reports.EventPetPosted, Actor: owner, OccurredAt: base.Add(time.Second)},
		{ID: "c", ReportID: 0, Type: reports.EventFoundClaimed, Actor: finder, OccurredAt: base.Add(2 * time.Second)},
	}
	for _, e := range in {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := repo.GetByID(ctx, "c")
	if err != nil || got.Actor != finder || got.Type != reports.EventFoundClaimed {
		t.Fatalf("unexpected event: %+v %v", got, err)
	}
	if _, err := repo.GetByID(ctx, "zzz"); !errors.Is(err, events.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	byReport, _ := repo.ListByReport(ctx, 0, events.ListFilter{})
	if len(byReport) != 2 || byReport[0].ID != "a" || byReport[1].ID != "c" {
		t.Fatalf("unexpected report events: %+v", byReport)
	}
	if byReport[0].NativeAmount.Int64() != 5 || byReport[0].TokenAmount.Sign() != 0 {
		t.Fatalf("unexpected amounts: %+v", byReport[0])
	}

	posted, _ := repo.List(ctx, events.ListFilter{Types: []reports.EventType{reports.EventPetPosted}, Limit: 1})
	if len(posted) != 1 || posted[0].ID != "a" {
		t.Fatalf("unexpected filtered list: %+v", posted)
	}
}
