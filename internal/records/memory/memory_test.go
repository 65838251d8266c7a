package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"buchhaltung/internal/aggregate"
	"buchhaltung/internal/core"
)

func fixedClock() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }

func TestCreateListGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(fixedClock))

	ack, err := s.CreateHandover(ctx, core.HandoverFields{AsOfDate: core.String("2026-03-31")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(ack.ID) != 24 {
		t.Fatalf("expected 24 hex id, got %q", ack.ID)
	}
	if _, ok := core.ExtractRecordID(s.CostGroupRef(ack.ID)); !ok {
		t.Fatalf("generated ids must be extractable from references")
	}

	h, err := s.GetHandover(ctx, ack.ID)
	if err != nil || h.CreatedAt != "2026-04-01T12:00:00" || h.UpdatedAt != nil {
		t.Fatalf("unexpected handover %+v err=%v", h, err)
	}

	list, _ := s.ListHandovers(ctx)
	if len(list) != 1 {
		t.Fatalf("expected 1 handover, got %d", len(list))
	}

	if err := s.DeleteHandover(ctx, ack.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetHandover(ctx, ack.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteHandover(ctx, ack.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUpdateIsPartial(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(fixedClock))
	amount, _ := core.ParseAmount("99,90")
	ack, _ := s.CreateReceipt(ctx, core.ReceiptFields{
		Number: core.String("B-1"),
		Amount: &amount,
		Notes:  core.String("bar bezahlt"),
	})

	if _, err := s.UpdateReceipt(ctx, ack.ID, core.ReceiptFields{Number: core.String("B-2"), Notes: core.String("")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	r, _ := s.GetReceipt(ctx, ack.ID)
	if core.Deref(r.Number) != "B-2" || core.Deref(r.Notes) != "bar bezahlt" || r.Amount.String() != "99.9" {
		t.Fatalf("unexpected receipt after partial update: %+v", r)
	}
	if r.UpdatedAt == nil {
		t.Fatalf("update must stamp updatedat")
	}

	if _, err := s.UpdateReceipt(ctx, "000000000000000000000000", core.ReceiptFields{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoredValuesAreNotAliased(t *testing.T) {
	ctx := context.Background()
	s := New()
	name := "Porto"
	ack, _ := s.CreateCostGroup(ctx, core.CostGroupFields{Name: &name})
	name = "geändert"
	cg, _ := s.GetCostGroup(ctx, ack.ID)
	if cg.DisplayName() != "Porto" {
		t.Fatalf("store must copy input, got %q", cg.DisplayName())
	}
}

func TestReceiptResolvesCreatedCostGroup(t *testing.T) {
	ctx := context.Background()
	s := New()
	cgAck, _ := s.CreateCostGroup(ctx, core.CostGroupFields{Name: core.String("Reisekosten")})
	_, _ = s.CreateReceipt(ctx, core.ReceiptFields{
		Number:       core.String("R-9"),
		CostGroupRef: core.String(s.CostGroupRef(cgAck.ID)),
	})

	groups, _ := s.ListCostGroups(ctx)
	receipts, _ := s.ListReceipts(ctx)
	idx := aggregate.IndexCostGroups(groups)
	if got := aggregate.ResolveCostGroupName(receipts[0].CostGroupRef, idx); got != "Reisekosten" {
		t.Fatalf("expected reference to resolve, got %q", got)
	}

	if err := s.DeleteCostGroup(ctx, cgAck.ID); err != nil {
		t.Fatalf("deleting a referenced cost group must not fail: %v", err)
	}
	groups, _ = s.ListCostGroups(ctx)
	receipts, _ = s.ListReceipts(ctx)
	if got := aggregate.ResolveCostGroupName(receipts[0].CostGroupRef, aggregate.IndexCostGroups(groups)); got != aggregate.NoMatch {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	groups, _ := s.ListCostGroups(context.Background())
	if len(groups) == 0 {
		t.Fatalf("expected defaults when seed file is missing")
	}

	content := "# Nummer;Name\n4930;Bürobedarf\n4930;Bürobedarf\n\nTelefon\n4600;\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_kostengruppen.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFiles(dir)
	groups, _ = s.ListCostGroups(context.Background())
	if len(groups) != 2 {
		t.Fatalf("expected 2 seeded groups, got %d", len(groups))
	}
	names := map[string]string{}
	for _, g := range groups {
		names[g.DisplayName()] = core.Deref(g.Number)
	}
	if names["Bürobedarf"] != "4930" || names["Telefon"] != "" {
		t.Fatalf("unexpected seeds: %v", names)
	}
}

func TestListIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewFromFiles(t.TempDir())
	a, _ := s.ListCostGroups(ctx)
	b, _ := s.ListCostGroups(ctx)
	if len(a) != len(b) {
		t.Fatalf("lists differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].DisplayName() != b[i].DisplayName() {
			t.Fatalf("lists differ at %d", i)
		}
	}
}
