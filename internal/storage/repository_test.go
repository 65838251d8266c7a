package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buchhaltung/internal/core"
)

const (
	testBase = "https://my.living-apps.de/rest"
	testApp  = "698db1e550eb37f16846d889"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"), testBase, testApp)
	require.NoError(t, err)
	repo.now = func() time.Time { return time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	v1, err := RunMigrations(path)
	require.NoError(t, err)
	v2, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v1)
	assert.Equal(t, v1, v2)
}

func TestReceiptRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	amount, err := core.ParseAmount("-12,34")
	require.NoError(t, err)
	k := core.KindCreditNote
	ack, err := repo.CreateReceipt(ctx, core.ReceiptFields{
		Date:         core.String("2026-03-15"),
		Number:       core.String("G-7"),
		Amount:       &amount,
		Kind:         &k,
		CostGroupRef: core.String(repo.CostGroupRef("aaaaaaaaaaaaaaaaaaaaaaa1")),
	})
	require.NoError(t, err)
	assert.Len(t, ack.ID, 24)

	got, err := repo.GetReceipt(ctx, ack.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-01T09:30:00", got.CreatedAt)
	assert.Nil(t, got.UpdatedAt)
	assert.Equal(t, "-12.34", got.Amount.String())
	assert.Equal(t, core.KindCreditNote, got.KindOrEmpty())
	assert.Nil(t, got.Notes)

	id, ok := core.ExtractRecordID(core.Deref(got.CostGroupRef))
	require.True(t, ok)
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaa1", id)
}

func TestUnknownKindIsPreserved(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	k := core.Kind("spendenquittung")
	ack, err := repo.CreateReceipt(ctx, core.ReceiptFields{Kind: &k})
	require.NoError(t, err)

	got, err := repo.GetReceipt(ctx, ack.ID)
	require.NoError(t, err)
	assert.Equal(t, "spendenquittung", got.KindOrEmpty().Label())
}

func TestUpdateIsPartial(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	ack, err := repo.CreateCostGroup(ctx, core.CostGroupFields{
		Name:        core.String("Bürobedarf"),
		Number:      core.String("4930"),
		Description: core.String("Papier, Toner"),
	})
	require.NoError(t, err)

	_, err = repo.UpdateCostGroup(ctx, ack.ID, core.CostGroupFields{Name: core.String("Büromaterial")})
	require.NoError(t, err)

	got, err := repo.GetCostGroup(ctx, ack.ID)
	require.NoError(t, err)
	assert.Equal(t, "Büromaterial", got.DisplayName())
	assert.Equal(t, "4930", core.Deref(got.Number))
	assert.Equal(t, "Papier, Toner", core.Deref(got.Description))
	require.NotNil(t, got.UpdatedAt)
}

func TestMissingRecordsReportNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	missing := "ffffffffffffffffffffffff"

	_, err := repo.GetHandover(ctx, missing)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = repo.UpdateHandover(ctx, missing, core.HandoverFields{Remarks: core.String("x")})
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.True(t, errors.Is(repo.DeleteHandover(ctx, missing), core.ErrNotFound))
	assert.True(t, errors.Is(repo.DeleteReceipt(ctx, missing), core.ErrNotFound))
	assert.True(t, errors.Is(repo.DeleteCostGroup(ctx, missing), core.ErrNotFound))
}

func TestDeleteHandover(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	ack, err := repo.CreateHandover(ctx, core.HandoverFields{
		AsOfDate:    core.String("2026-03-31"),
		PeriodStart: core.String("2026-03-01"),
		PeriodEnd:   core.String("2026-03-31"),
	})
	require.NoError(t, err)

	list, err := repo.ListHandovers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.DeleteHandover(ctx, ack.ID))
	list, err = repo.ListHandovers(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReplaceAllAndSyncStatus(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.CreateReceipt(ctx, core.ReceiptFields{Number: core.String("local")})
	require.NoError(t, err)

	amount, _ := core.ParseAmount("250")
	snap := Snapshot{
		CostGroups: []core.CostGroup{{
			Meta:            core.Meta{ID: "aaaaaaaaaaaaaaaaaaaaaaa1", CreatedAt: "2026-01-01T00:00:00"},
			CostGroupFields: core.CostGroupFields{Name: core.String("Miete")},
		}},
		Receipts: []core.Receipt{
			{
				Meta:          core.Meta{ID: "bbbbbbbbbbbbbbbbbbbbbbb1", CreatedAt: "2026-01-02T00:00:00"},
				ReceiptFields: core.ReceiptFields{Date: core.String("2026-01-02"), Amount: &amount},
			},
			{
				Meta:          core.Meta{ID: "bbbbbbbbbbbbbbbbbbbbbbb2", CreatedAt: "2026-02-02T00:00:00"},
				ReceiptFields: core.ReceiptFields{Date: core.String("2026-02-10T08:00")},
			},
		},
	}
	require.NoError(t, repo.ReplaceAll(ctx, snap))

	receipts, err := repo.ListReceipts(ctx)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbb1", receipts[0].ID)

	status, err := repo.SyncStatus(ctx)
	require.NoError(t, err)
	require.Len(t, status, 3)
	counts := map[string]int{}
	for _, s := range status {
		counts[s.Collection] = s.RecordCount
		assert.Equal(t, "2026-04-01T09:30:00", s.SyncedAt)
	}
	assert.Equal(t, map[string]int{CollectionCostGroups: 1, CollectionReceipts: 2, CollectionHandovers: 0}, counts)

	feb, err := repo.ListReceiptsBetween(ctx, "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	require.Len(t, feb, 1)
	assert.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbb2", feb[0].ID)
}

func TestUpsertOverwritesMirroredRecord(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	cg := core.CostGroup{
		Meta:            core.Meta{ID: "aaaaaaaaaaaaaaaaaaaaaaa1", CreatedAt: "2026-01-01T00:00:00"},
		CostGroupFields: core.CostGroupFields{Name: core.String("Alt")},
	}
	require.NoError(t, repo.UpsertCostGroup(ctx, cg))
	cg.Name = core.String("Neu")
	require.NoError(t, repo.UpsertCostGroup(ctx, cg))

	groups, err := repo.ListCostGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Neu", groups[0].DisplayName())
}
