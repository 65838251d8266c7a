package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"buchhaltung/internal/amqp"
	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/records"
	"buchhaltung/internal/storage"
)

// Target is the local copy the mirror writes into. *storage.SQLiteRepository
// satisfies it.
type Target interface {
	ReplaceAll(ctx context.Context, snap storage.Snapshot) error
	UpsertCostGroup(ctx context.Context, cg core.CostGroup) error
	UpsertReceipt(ctx context.Context, r core.Receipt) error
	UpsertHandover(ctx context.Context, h core.Handover) error
	DeleteCostGroup(ctx context.Context, id string) error
	DeleteReceipt(ctx context.Context, id string) error
	DeleteHandover(ctx context.Context, id string) error
}

// Source is read-only access to the hosted collections.
type Source interface {
	ListCostGroups(ctx context.Context) ([]core.CostGroup, error)
	GetCostGroup(ctx context.Context, id string) (core.CostGroup, error)
	ListReceipts(ctx context.Context) ([]core.Receipt, error)
	GetReceipt(ctx context.Context, id string) (core.Receipt, error)
	ListHandovers(ctx context.Context) ([]core.Handover, error)
	GetHandover(ctx context.Context, id string) (core.Handover, error)
}

// Mirror copies the hosted collections into a local store.
type Mirror struct {
	source  Source
	target  Target
	timeout time.Duration
}

func NewMirror(source Source, target Target, timeout time.Duration) *Mirror {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Mirror{source: source, target: target, timeout: timeout}
}

// SyncAll fetches all three collections concurrently and replaces the local
// copy in one transaction. If any fetch fails nothing is written.
func (m *Mirror) SyncAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	var snap storage.Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.CostGroups, err = m.source.ListCostGroups(gctx)
		if err != nil {
			return fmt.Errorf("fetch cost groups: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap.Receipts, err = m.source.ListReceipts(gctx)
		if err != nil {
			return fmt.Errorf("fetch receipts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap.Handovers, err = m.source.ListHandovers(gctx)
		if err != nil {
			return fmt.Errorf("fetch handovers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := m.target.ReplaceAll(ctx, snap); err != nil {
		return fmt.Errorf("replace local copy: %w", err)
	}

	slog.InfoContext(ctx, "Mirror sync completed",
		log.FieldComponent, log.ComponentWorker,
		log.FieldOperation, log.OpSync,
		"cost_groups", len(snap.CostGroups),
		"receipts", len(snap.Receipts),
		"handovers", len(snap.Handovers),
		log.FieldDurationHuman, time.Since(start).Round(time.Millisecond).String())

	return nil
}

// HandleRecordChanged applies a single change event. Created and updated
// records are re-read from the source; a record that is gone by then is
// removed locally.
func (m *Mirror) HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	slog.InfoContext(ctx, "Processing record change",
		"entity", msg.Entity,
		"id", msg.ID,
		"action", msg.Action)

	if msg.Action == amqp.ActionDeleted {
		return m.remove(ctx, msg.Entity, msg.ID)
	}

	var err error
	switch msg.Entity {
	case records.EntityCostGroup:
		var cg core.CostGroup
		if cg, err = m.source.GetCostGroup(ctx, msg.ID); err == nil {
			err = m.target.UpsertCostGroup(ctx, cg)
		}
	case records.EntityReceipt:
		var r core.Receipt
		if r, err = m.source.GetReceipt(ctx, msg.ID); err == nil {
			err = m.target.UpsertReceipt(ctx, r)
		}
	case records.EntityHandover:
		var h core.Handover
		if h, err = m.source.GetHandover(ctx, msg.ID); err == nil {
			err = m.target.UpsertHandover(ctx, h)
		}
	default:
		slog.WarnContext(ctx, "Ignoring change for unknown entity", "entity", msg.Entity)
		return nil
	}

	if errors.Is(err, core.ErrNotFound) {
		return m.remove(ctx, msg.Entity, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("mirror %s %s: %w", msg.Entity, msg.ID, err)
	}
	return nil
}

func (m *Mirror) remove(ctx context.Context, entity, id string) error {
	var err error
	switch entity {
	case records.EntityCostGroup:
		err = m.target.DeleteCostGroup(ctx, id)
	case records.EntityReceipt:
		err = m.target.DeleteReceipt(ctx, id)
	case records.EntityHandover:
		err = m.target.DeleteHandover(ctx, id)
	default:
		return nil
	}
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("remove %s %s: %w", entity, id, err)
	}
	return nil
}
