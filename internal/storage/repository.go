package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/records"

	_ "modernc.org/sqlite"
)

const timestampLayout = "2006-01-02T15:04:05"

// Collection names used in mirror_state.
const (
	CollectionCostGroups = "cost_groups"
	CollectionReceipts   = "receipts"
	CollectionHandovers  = "handovers"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time

	refBase string
	refApp  string
}

var _ records.Backend = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (or creates) the database at dbPath and applies
// pending migrations. refBase and refApp are used to build cost group
// references, so mirrored receipts keep resolving against local ids.
func NewSQLiteRepository(dbPath, refBase, refApp string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", log.FieldComponent, log.ComponentStorage, "path", dbPath, "version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
		refBase: refBase,
		refApp:  refApp,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CostGroupRef(id string) string {
	return core.RecordURL(r.refBase, r.refApp, id)
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(timestampLayout)
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, core.ErrNotFound)
}

// Cost groups

func (r *SQLiteRepository) ListCostGroups(ctx context.Context) ([]core.CostGroup, error) {
	rows, err := r.queries.ListCostGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cost groups: %w", err)
	}
	out := make([]core.CostGroup, 0, len(rows))
	for _, row := range rows {
		out = append(out, costGroupFromRow(row))
	}
	return out, nil
}

func (r *SQLiteRepository) GetCostGroup(ctx context.Context, id string) (core.CostGroup, error) {
	row, err := r.queries.GetCostGroup(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CostGroup{}, notFound("cost group", id)
	}
	if err != nil {
		return core.CostGroup{}, fmt.Errorf("get cost group: %w", err)
	}
	return costGroupFromRow(row), nil
}

func (r *SQLiteRepository) CreateCostGroup(ctx context.Context, f core.CostGroupFields) (core.Ack, error) {
	row := costGroupToRow(core.CostGroup{Meta: core.Meta{ID: core.NewRecordID(), CreatedAt: r.stamp()}, CostGroupFields: f})
	if err := r.queries.UpsertCostGroup(ctx, row); err != nil {
		return core.Ack{}, fmt.Errorf("create cost group: %w", err)
	}
	return core.Ack{ID: row.ID}, nil
}

func (r *SQLiteRepository) UpdateCostGroup(ctx context.Context, id string, f core.CostGroupFields) (core.Ack, error) {
	row := costGroupToRow(core.CostGroup{Meta: core.Meta{ID: id}, CostGroupFields: f})
	row.UpdatedAt = nullString(ptr(r.stamp()))
	n, err := r.queries.PatchCostGroup(ctx, row)
	if err != nil {
		return core.Ack{}, fmt.Errorf("update cost group: %w", err)
	}
	if n == 0 {
		return core.Ack{}, notFound("cost group", id)
	}
	return core.Ack{ID: id}, nil
}

func (r *SQLiteRepository) DeleteCostGroup(ctx context.Context, id string) error {
	n, err := r.queries.DeleteCostGroup(ctx, id)
	if err != nil {
		return fmt.Errorf("delete cost group: %w", err)
	}
	if n == 0 {
		return notFound("cost group", id)
	}
	return nil
}

// Receipts

func (r *SQLiteRepository) ListReceipts(ctx context.Context) ([]core.Receipt, error) {
	rows, err := r.queries.ListReceipts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receiptsFromRows(rows)
}

// ListReceiptsBetween returns the receipts whose date lies within the
// inclusive ISO date range. Undated receipts are never included.
func (r *SQLiteRepository) ListReceiptsBetween(ctx context.Context, from, to string) ([]core.Receipt, error) {
	rows, err := r.queries.ListReceiptsBetween(ctx, core.DatePart(from), core.DatePart(to))
	if err != nil {
		return nil, fmt.Errorf("list receipts between %s and %s: %w", from, to, err)
	}
	return receiptsFromRows(rows)
}

func (r *SQLiteRepository) GetReceipt(ctx context.Context, id string) (core.Receipt, error) {
	row, err := r.queries.GetReceipt(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Receipt{}, notFound("receipt", id)
	}
	if err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt: %w", err)
	}
	return receiptFromRow(row)
}

func (r *SQLiteRepository) CreateReceipt(ctx context.Context, f core.ReceiptFields) (core.Ack, error) {
	row := receiptToRow(core.Receipt{Meta: core.Meta{ID: core.NewRecordID(), CreatedAt: r.stamp()}, ReceiptFields: f})
	if err := r.queries.UpsertReceipt(ctx, row); err != nil {
		return core.Ack{}, fmt.Errorf("create receipt: %w", err)
	}
	return core.Ack{ID: row.ID}, nil
}

func (r *SQLiteRepository) UpdateReceipt(ctx context.Context, id string, f core.ReceiptFields) (core.Ack, error) {
	row := receiptToRow(core.Receipt{Meta: core.Meta{ID: id}, ReceiptFields: f})
	row.UpdatedAt = nullString(ptr(r.stamp()))
	n, err := r.queries.PatchReceipt(ctx, row)
	if err != nil {
		return core.Ack{}, fmt.Errorf("update receipt: %w", err)
	}
	if n == 0 {
		return core.Ack{}, notFound("receipt", id)
	}
	return core.Ack{ID: id}, nil
}

func (r *SQLiteRepository) DeleteReceipt(ctx context.Context, id string) error {
	n, err := r.queries.DeleteReceipt(ctx, id)
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	if n == 0 {
		return notFound("receipt", id)
	}
	return nil
}

// Handovers

func (r *SQLiteRepository) ListHandovers(ctx context.Context) ([]core.Handover, error) {
	rows, err := r.queries.ListHandovers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list handovers: %w", err)
	}
	out := make([]core.Handover, 0, len(rows))
	for _, row := range rows {
		out = append(out, handoverFromRow(row))
	}
	return out, nil
}

func (r *SQLiteRepository) GetHandover(ctx context.Context, id string) (core.Handover, error) {
	row, err := r.queries.GetHandover(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Handover{}, notFound("handover", id)
	}
	if err != nil {
		return core.Handover{}, fmt.Errorf("get handover: %w", err)
	}
	return handoverFromRow(row), nil
}

func (r *SQLiteRepository) CreateHandover(ctx context.Context, f core.HandoverFields) (core.Ack, error) {
	row := handoverToRow(core.Handover{Meta: core.Meta{ID: core.NewRecordID(), CreatedAt: r.stamp()}, HandoverFields: f})
	if err := r.queries.UpsertHandover(ctx, row); err != nil {
		return core.Ack{}, fmt.Errorf("create handover: %w", err)
	}
	return core.Ack{ID: row.ID}, nil
}

func (r *SQLiteRepository) UpdateHandover(ctx context.Context, id string, f core.HandoverFields) (core.Ack, error) {
	row := handoverToRow(core.Handover{Meta: core.Meta{ID: id}, HandoverFields: f})
	row.UpdatedAt = nullString(ptr(r.stamp()))
	n, err := r.queries.PatchHandover(ctx, row)
	if err != nil {
		return core.Ack{}, fmt.Errorf("update handover: %w", err)
	}
	if n == 0 {
		return core.Ack{}, notFound("handover", id)
	}
	return core.Ack{ID: id}, nil
}

func (r *SQLiteRepository) DeleteHandover(ctx context.Context, id string) error {
	n, err := r.queries.DeleteHandover(ctx, id)
	if err != nil {
		return fmt.Errorf("delete handover: %w", err)
	}
	if n == 0 {
		return notFound("handover", id)
	}
	return nil
}

// Mirror

// Snapshot is a full copy of the three hosted collections.
type Snapshot struct {
	CostGroups []core.CostGroup
	Receipts   []core.Receipt
	Handovers  []core.Handover
}

// ReplaceAll swaps the local contents for snap in a single transaction and
// records the sync time per collection.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, snap Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, table := range []string{CollectionCostGroups, CollectionReceipts, CollectionHandovers} {
		if err := q.DeleteAll(ctx, table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, cg := range snap.CostGroups {
		if err := q.UpsertCostGroup(ctx, costGroupToRow(cg)); err != nil {
			return fmt.Errorf("mirror cost group %s: %w", cg.ID, err)
		}
	}
	for _, rc := range snap.Receipts {
		if err := q.UpsertReceipt(ctx, receiptToRow(rc)); err != nil {
			return fmt.Errorf("mirror receipt %s: %w", rc.ID, err)
		}
	}
	for _, h := range snap.Handovers {
		if err := q.UpsertHandover(ctx, handoverToRow(h)); err != nil {
			return fmt.Errorf("mirror handover %s: %w", h.ID, err)
		}
	}

	syncedAt := r.stamp()
	counts := map[string]int{
		CollectionCostGroups: len(snap.CostGroups),
		CollectionReceipts:   len(snap.Receipts),
		CollectionHandovers:  len(snap.Handovers),
	}
	for collection, n := range counts {
		if err := q.MarkSynced(ctx, collection, syncedAt, int64(n)); err != nil {
			return fmt.Errorf("mark %s synced: %w", collection, err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) UpsertCostGroup(ctx context.Context, cg core.CostGroup) error {
	return r.queries.UpsertCostGroup(ctx, costGroupToRow(cg))
}

func (r *SQLiteRepository) UpsertReceipt(ctx context.Context, rc core.Receipt) error {
	return r.queries.UpsertReceipt(ctx, receiptToRow(rc))
}

func (r *SQLiteRepository) UpsertHandover(ctx context.Context, h core.Handover) error {
	return r.queries.UpsertHandover(ctx, handoverToRow(h))
}

// SyncState reports when a collection was last mirrored.
type SyncState struct {
	Collection  string
	SyncedAt    string
	RecordCount int
}

func (r *SQLiteRepository) SyncStatus(ctx context.Context) ([]SyncState, error) {
	rows, err := r.queries.ListMirrorState(ctx)
	if err != nil {
		return nil, fmt.Errorf("read mirror state: %w", err)
	}
	out := make([]SyncState, 0, len(rows))
	for _, row := range rows {
		out = append(out, SyncState{Collection: row.Collection, SyncedAt: row.SyncedAt, RecordCount: int(row.RecordCount)})
	}
	return out, nil
}

// Row conversion

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return ptr(ns.String)
}

func ptr[T any](v T) *T { return &v }

func costGroupToRow(cg core.CostGroup) CostGroupRow {
	return CostGroupRow{
		ID:          cg.ID,
		CreatedAt:   cg.CreatedAt,
		UpdatedAt:   nullString(cg.UpdatedAt),
		Name:        nullString(cg.Name),
		Number:      nullString(cg.Number),
		Description: nullString(cg.Description),
		Image:       nullString(cg.Image),
	}
}

func costGroupFromRow(row CostGroupRow) core.CostGroup {
	return core.CostGroup{
		Meta: core.Meta{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: stringPtr(row.UpdatedAt)},
		CostGroupFields: core.CostGroupFields{
			Name:        stringPtr(row.Name),
			Number:      stringPtr(row.Number),
			Description: stringPtr(row.Description),
			Image:       stringPtr(row.Image),
		},
	}
}

func receiptToRow(rc core.Receipt) ReceiptRow {
	row := ReceiptRow{
		ID:           rc.ID,
		CreatedAt:    rc.CreatedAt,
		UpdatedAt:    nullString(rc.UpdatedAt),
		ReceiptDate:  nullString(rc.Date),
		Number:       nullString(rc.Number),
		Description:  nullString(rc.Description),
		CostGroupRef: nullString(rc.CostGroupRef),
		Attachment:   nullString(rc.Attachment),
		Notes:        nullString(rc.Notes),
	}
	if rc.Amount != nil {
		row.Amount = sql.NullString{String: rc.Amount.String(), Valid: true}
	}
	if rc.Kind != nil {
		row.Kind = sql.NullString{String: string(*rc.Kind), Valid: true}
	}
	return row
}

func receiptFromRow(row ReceiptRow) (core.Receipt, error) {
	rc := core.Receipt{
		Meta: core.Meta{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: stringPtr(row.UpdatedAt)},
		ReceiptFields: core.ReceiptFields{
			Date:         stringPtr(row.ReceiptDate),
			Number:       stringPtr(row.Number),
			Description:  stringPtr(row.Description),
			CostGroupRef: stringPtr(row.CostGroupRef),
			Attachment:   stringPtr(row.Attachment),
			Notes:        stringPtr(row.Notes),
		},
	}
	if row.Amount.Valid {
		a, err := decimal.NewFromString(row.Amount.String)
		if err != nil {
			return core.Receipt{}, fmt.Errorf("receipt %s amount %q: %w", row.ID, row.Amount.String, core.ErrInvalidAmount)
		}
		rc.Amount = &a
	}
	if row.Kind.Valid {
		k := core.Kind(row.Kind.String)
		rc.Kind = &k
	}
	return rc, nil
}

func receiptsFromRows(rows []ReceiptRow) ([]core.Receipt, error) {
	out := make([]core.Receipt, 0, len(rows))
	for _, row := range rows {
		rc, err := receiptFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, nil
}

func handoverToRow(h core.Handover) HandoverRow {
	return HandoverRow{
		ID:                   h.ID,
		CreatedAt:            h.CreatedAt,
		UpdatedAt:            nullString(h.UpdatedAt),
		AsOfDate:             nullString(h.AsOfDate),
		PeriodStart:          nullString(h.PeriodStart),
		PeriodEnd:            nullString(h.PeriodEnd),
		DeliveredReceiptsRef: nullString(h.DeliveredReceiptsRef),
		Remarks:              nullString(h.Remarks),
	}
}

func handoverFromRow(row HandoverRow) core.Handover {
	return core.Handover{
		Meta: core.Meta{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: stringPtr(row.UpdatedAt)},
		HandoverFields: core.HandoverFields{
			AsOfDate:             stringPtr(row.AsOfDate),
			PeriodStart:          stringPtr(row.PeriodStart),
			PeriodEnd:            stringPtr(row.PeriodEnd),
			DeliveredReceiptsRef: stringPtr(row.DeliveredReceiptsRef),
			Remarks:              stringPtr(row.Remarks),
		},
	}
}
