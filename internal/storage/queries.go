package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type CostGroupRow struct {
	ID          string
	CreatedAt   string
	UpdatedAt   sql.NullString
	Name        sql.NullString
	Number      sql.NullString
	Description sql.NullString
	Image       sql.NullString
}

type ReceiptRow struct {
	ID           string
	CreatedAt    string
	UpdatedAt    sql.NullString
	ReceiptDate  sql.NullString
	Number       sql.NullString
	Description  sql.NullString
	Amount       sql.NullString
	Kind         sql.NullString
	CostGroupRef sql.NullString
	Attachment   sql.NullString
	Notes        sql.NullString
}

type HandoverRow struct {
	ID                   string
	CreatedAt            string
	UpdatedAt            sql.NullString
	AsOfDate             sql.NullString
	PeriodStart          sql.NullString
	PeriodEnd            sql.NullString
	DeliveredReceiptsRef sql.NullString
	Remarks              sql.NullString
}

const listCostGroups = `SELECT id, created_at, updated_at, name, number, description, image
FROM cost_groups ORDER BY id`

func (q *Queries) ListCostGroups(ctx context.Context) ([]CostGroupRow, error) {
	rows, err := q.db.QueryContext(ctx, listCostGroups)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CostGroupRow
	for rows.Next() {
		var i CostGroupRow
		if err := rows.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &i.Name, &i.Number, &i.Description, &i.Image); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getCostGroup = `SELECT id, created_at, updated_at, name, number, description, image
FROM cost_groups WHERE id = ?`

func (q *Queries) GetCostGroup(ctx context.Context, id string) (CostGroupRow, error) {
	var i CostGroupRow
	err := q.db.QueryRowContext(ctx, getCostGroup, id).Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &i.Name, &i.Number, &i.Description, &i.Image)
	return i, err
}

const upsertCostGroup = `INSERT INTO cost_groups (id, created_at, updated_at, name, number, description, image)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    created_at = excluded.created_at,
    updated_at = excluded.updated_at,
    name = excluded.name,
    number = excluded.number,
    description = excluded.description,
    image = excluded.image`

func (q *Queries) UpsertCostGroup(ctx context.Context, r CostGroupRow) error {
	_, err := q.db.ExecContext(ctx, upsertCostGroup, r.ID, r.CreatedAt, r.UpdatedAt, r.Name, r.Number, r.Description, r.Image)
	return err
}

// NULL parameters keep the stored value.
const patchCostGroup = `UPDATE cost_groups SET
    updated_at = ?,
    name = COALESCE(?, name),
    number = COALESCE(?, number),
    description = COALESCE(?, description),
    image = COALESCE(?, image)
WHERE id = ?`

func (q *Queries) PatchCostGroup(ctx context.Context, r CostGroupRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, patchCostGroup, r.UpdatedAt, r.Name, r.Number, r.Description, r.Image, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCostGroup = `DELETE FROM cost_groups WHERE id = ?`

func (q *Queries) DeleteCostGroup(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCostGroup, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listReceipts = `SELECT id, created_at, updated_at, receipt_date, number, description, amount, kind, cost_group_ref, attachment, notes
FROM receipts ORDER BY id`

func scanReceipt(sc interface{ Scan(...any) error }) (ReceiptRow, error) {
	var i ReceiptRow
	err := sc.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &i.ReceiptDate, &i.Number, &i.Description,
		&i.Amount, &i.Kind, &i.CostGroupRef, &i.Attachment, &i.Notes)
	return i, err
}

func (q *Queries) ListReceipts(ctx context.Context) ([]ReceiptRow, error) {
	rows, err := q.db.QueryContext(ctx, listReceipts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReceiptRow
	for rows.Next() {
		i, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listReceiptsBetween = `SELECT id, created_at, updated_at, receipt_date, number, description, amount, kind, cost_group_ref, attachment, notes
FROM receipts
WHERE substr(receipt_date, 1, 10) >= ? AND substr(receipt_date, 1, 10) <= ?
ORDER BY receipt_date, id`

// ListReceiptsBetween returns receipts dated within [from, to], both ISO
// dates, inclusive.
func (q *Queries) ListReceiptsBetween(ctx context.Context, from, to string) ([]ReceiptRow, error) {
	rows, err := q.db.QueryContext(ctx, listReceiptsBetween, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReceiptRow
	for rows.Next() {
		i, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getReceipt = `SELECT id, created_at, updated_at, receipt_date, number, description, amount, kind, cost_group_ref, attachment, notes
FROM receipts WHERE id = ?`

func (q *Queries) GetReceipt(ctx context.Context, id string) (ReceiptRow, error) {
	return scanReceipt(q.db.QueryRowContext(ctx, getReceipt, id))
}

const upsertReceipt = `INSERT INTO receipts (id, created_at, updated_at, receipt_date, number, description, amount, kind, cost_group_ref, attachment, notes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    created_at = excluded.created_at,
    updated_at = excluded.updated_at,
    receipt_date = excluded.receipt_date,
    number = excluded.number,
    description = excluded.description,
    amount = excluded.amount,
    kind = excluded.kind,
    cost_group_ref = excluded.cost_group_ref,
    attachment = excluded.attachment,
    notes = excluded.notes`

func (q *Queries) UpsertReceipt(ctx context.Context, r ReceiptRow) error {
	_, err := q.db.ExecContext(ctx, upsertReceipt, r.ID, r.CreatedAt, r.UpdatedAt, r.ReceiptDate, r.Number,
		r.Description, r.Amount, r.Kind, r.CostGroupRef, r.Attachment, r.Notes)
	return err
}

const patchReceipt = `UPDATE receipts SET
    updated_at = ?,
    receipt_date = COALESCE(?, receipt_date),
    number = COALESCE(?, number),
    description = COALESCE(?, description),
    amount = COALESCE(?, amount),
    kind = COALESCE(?, kind),
    cost_group_ref = COALESCE(?, cost_group_ref),
    attachment = COALESCE(?, attachment),
    notes = COALESCE(?, notes)
WHERE id = ?`

func (q *Queries) PatchReceipt(ctx context.Context, r ReceiptRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, patchReceipt, r.UpdatedAt, r.ReceiptDate, r.Number, r.Description,
		r.Amount, r.Kind, r.CostGroupRef, r.Attachment, r.Notes, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteReceipt = `DELETE FROM receipts WHERE id = ?`

func (q *Queries) DeleteReceipt(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteReceipt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listHandovers = `SELECT id, created_at, updated_at, as_of_date, period_start, period_end, delivered_receipts_ref, remarks
FROM handovers ORDER BY id`

func (q *Queries) ListHandovers(ctx context.Context) ([]HandoverRow, error) {
	rows, err := q.db.QueryContext(ctx, listHandovers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []HandoverRow
	for rows.Next() {
		var i HandoverRow
		if err := rows.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &i.AsOfDate, &i.PeriodStart, &i.PeriodEnd, &i.DeliveredReceiptsRef, &i.Remarks); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getHandover = `SELECT id, created_at, updated_at, as_of_date, period_start, period_end, delivered_receipts_ref, remarks
FROM handovers WHERE id = ?`

func (q *Queries) GetHandover(ctx context.Context, id string) (HandoverRow, error) {
	var i HandoverRow
	err := q.db.QueryRowContext(ctx, getHandover, id).Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &i.AsOfDate,
		&i.PeriodStart, &i.PeriodEnd, &i.DeliveredReceiptsRef, &i.Remarks)
	return i, err
}

const upsertHandover = `INSERT INTO handovers (id, created_at, updated_at, as_of_date, period_start, period_end, delivered_receipts_ref, remarks)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    created_at = excluded.created_at,
    updated_at = excluded.updated_at,
    as_of_date = excluded.as_of_date,
    period_start = excluded.period_start,
    period_end = excluded.period_end,
    delivered_receipts_ref = excluded.delivered_receipts_ref,
    remarks = excluded.remarks`

func (q *Queries) UpsertHandover(ctx context.Context, r HandoverRow) error {
	_, err := q.db.ExecContext(ctx, upsertHandover, r.ID, r.CreatedAt, r.UpdatedAt, r.AsOfDate, r.PeriodStart,
		r.PeriodEnd, r.DeliveredReceiptsRef, r.Remarks)
	return err
}

const patchHandover = `UPDATE handovers SET
    updated_at = ?,
    as_of_date = COALESCE(?, as_of_date),
    period_start = COALESCE(?, period_start),
    period_end = COALESCE(?, period_end),
    delivered_receipts_ref = COALESCE(?, delivered_receipts_ref),
    remarks = COALESCE(?, remarks)
WHERE id = ?`

func (q *Queries) PatchHandover(ctx context.Context, r HandoverRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, patchHandover, r.UpdatedAt, r.AsOfDate, r.PeriodStart, r.PeriodEnd,
		r.DeliveredReceiptsRef, r.Remarks, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteHandover = `DELETE FROM handovers WHERE id = ?`

func (q *Queries) DeleteHandover(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteHandover, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAll empties one of the record tables. table must be a constant.
func (q *Queries) DeleteAll(ctx context.Context, table string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM "+table)
	return err
}

const markSynced = `INSERT INTO mirror_state (collection, synced_at, record_count)
VALUES (?, ?, ?)
ON CONFLICT(collection) DO UPDATE SET synced_at = excluded.synced_at, record_count = excluded.record_count`

func (q *Queries) MarkSynced(ctx context.Context, collection, syncedAt string, count int64) error {
	_, err := q.db.ExecContext(ctx, markSynced, collection, syncedAt, count)
	return err
}

type MirrorStateRow struct {
	Collection  string
	SyncedAt    string
	RecordCount int64
}

const listMirrorState = `SELECT collection, synced_at, record_count FROM mirror_state ORDER BY collection`

func (q *Queries) ListMirrorState(ctx context.Context) ([]MirrorStateRow, error) {
	rows, err := q.db.QueryContext(ctx, listMirrorState)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MirrorStateRow
	for rows.Next() {
		var i MirrorStateRow
		if err := rows.Scan(&i.Collection, &i.SyncedAt, &i.RecordCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
