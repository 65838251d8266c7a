// Package dashboard holds the interaction state of the bookkeeping dashboard:
// the combined load of the three collections, dialog and delete state per
// entity type, and the create/update/delete flows with their notifications.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/records"
)

// Controller is safe for concurrent use by HTTP handlers.
type Controller struct {
	backend   records.Backend
	now       func() time.Time
	dailyDays int
	logger    *log.Logger
	audit     *log.StructuredLogger

	mu         sync.RWMutex
	state      LoadState
	loadErr    error
	costGroups []core.CostGroup
	receipts   []core.Receipt
	handovers  []core.Handover

	kindFilter core.Kind
	expanded   map[Section]bool

	receiptUI   entityUI[core.Receipt, ReceiptForm]
	costGroupUI entityUI[core.CostGroup, CostGroupForm]
	handoverUI  entityUI[core.Handover, HandoverForm]
}

type Option func(*Controller)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithDailyDays sets how many booking days the daily series keeps.
func WithDailyDays(n int) Option {
	return func(c *Controller) { c.dailyDays = n }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(backend records.Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:   backend,
		now:       time.Now,
		dailyDays: 30,
		logger:    log.New(log.DefaultConfig()).WithComponent(log.ComponentDashboard),
		expanded:  map[Section]bool{},
	}
	for _, o := range opts {
		o(c)
	}
	c.audit = log.NewStructuredLogger(c.logger)
	return c
}

// State returns the current load state.
func (c *Controller) State() LoadState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Load fetches all three collections concurrently. Any failure fails the
// whole load; nothing is kept from the partial results.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.state = Loading
	c.loadErr = nil
	c.mu.Unlock()

	var (
		costGroups []core.CostGroup
		receipts   []core.Receipt
		handovers  []core.Handover
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		costGroups, err = c.backend.ListCostGroups(gctx)
		return err
	})
	g.Go(func() (err error) {
		receipts, err = c.backend.ListReceipts(gctx)
		return err
	})
	g.Go(func() (err error) {
		handovers, err = c.backend.ListHandovers(gctx)
		return err
	})
	err := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = Failed
		c.loadErr = err
		c.logger.ErrorContext(ctx, "Dashboard load failed", log.FieldError, err)
		return fmt.Errorf("load dashboard: %w", err)
	}
	c.costGroups, c.receipts, c.handovers = costGroups, receipts, handovers
	c.state = Loaded
	c.logger.DebugContext(ctx, "Dashboard loaded",
		"cost_groups", len(costGroups),
		"receipts", len(receipts),
		"handovers", len(handovers))
	return nil
}

// Retry re-runs the combined load.
func (c *Controller) Retry(ctx context.Context) error {
	return c.Load(ctx)
}

// EnsureLoaded loads once; later calls are no-ops until a load failed.
func (c *Controller) EnsureLoaded(ctx context.Context) error {
	if s := c.State(); s == Loaded || s == Loading {
		return nil
	}
	return c.Load(ctx)
}

// refetch reloads one collection after a mutation.
func (c *Controller) refetch(ctx context.Context, entity string) {
	var err error
	switch entity {
	case records.EntityCostGroup:
		var list []core.CostGroup
		if list, err = c.backend.ListCostGroups(ctx); err == nil {
			c.mu.Lock()
			c.costGroups = list
			c.mu.Unlock()
		}
	case records.EntityReceipt:
		var list []core.Receipt
		if list, err = c.backend.ListReceipts(ctx); err == nil {
			c.mu.Lock()
			c.receipts = list
			c.mu.Unlock()
		}
	case records.EntityHandover:
		var list []core.Handover
		if list, err = c.backend.ListHandovers(ctx); err == nil {
			c.mu.Lock()
			c.handovers = list
			c.mu.Unlock()
		}
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "Refetch failed", log.FieldEntity, entity, log.FieldError, err)
		c.mu.Lock()
		c.state = Failed
		c.loadErr = err
		c.mu.Unlock()
	}
}

// SetKindFilter restricts the receipt list to one kind; "" or "all" clears it.
func (c *Controller) SetKindFilter(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == "" || kind == "all" {
		c.kindFilter = ""
		return
	}
	c.kindFilter = core.ParseKind(kind)
}

// Toggle flips the "show more" state of a section and returns the new value.
func (c *Controller) Toggle(s Section) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expanded[s] = !c.expanded[s]
	return c.expanded[s]
}

type messages struct {
	entity       string
	created      string
	updated      string
	createFailed string
	updateFailed string
	deleted      string
}

func (m messages) failedPrefix(editing bool) string {
	if editing {
		return m.updateFailed
	}
	return m.createFailed
}

const deleteFailed = "Fehler beim Löschen: "

var (
	receiptMessages = messages{
		entity:       records.EntityReceipt,
		created:      "Beleg erstellt",
		updated:      "Beleg aktualisiert",
		createFailed: "Fehler beim Erstellen: ",
		updateFailed: "Fehler beim Speichern: ",
		deleted:      "Beleg gelöscht",
	}
	costGroupMessages = messages{
		entity:       records.EntityCostGroup,
		created:      "Kostengruppe erstellt",
		updated:      "Kostengruppe aktualisiert",
		createFailed: "Fehler: ",
		updateFailed: "Fehler: ",
		deleted:      "Kostengruppe gelöscht",
	}
	handoverMessages = messages{
		entity:       records.EntityHandover,
		created:      "Übergabe erstellt",
		updated:      "Übergabe aktualisiert",
		createFailed: "Fehler: ",
		updateFailed: "Fehler: ",
		deleted:      "Übergabe gelöscht",
	}
)

// find returns a copy of the loaded record with the given id. An empty id
// means "create" and yields nil.
func find[T any](c *Controller, items func() []T, idOf func(T) string, id string) (*T, error) {
	if id == "" {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range items() {
		if idOf(it) == id {
			rec := it
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("record %s: %w", id, core.ErrNotFound)
}

// submit runs one create or update. The dialog is (re)opened on record with
// the submitted form, so a failure leaves it open with the user's input.
func submit[T, F any](ctx context.Context, c *Controller, ui *entityUI[T, F], record *T, form F, msgs messages, invalid error, write func(context.Context) (core.Ack, error)) (Notification, error) {
	editing := record != nil
	prefix := msgs.failedPrefix(editing)

	c.mu.Lock()
	if ui.submitting {
		c.mu.Unlock()
		return failure(prefix, ErrBusy), ErrBusy
	}
	ui.open(record, form)
	if invalid != nil {
		c.mu.Unlock()
		return failure(prefix, invalid), invalid
	}
	ui.submitting = true
	c.mu.Unlock()

	ack, err := write(ctx)

	c.mu.Lock()
	ui.submitting = false
	if err != nil {
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "Save failed", log.FieldEntity, msgs.entity, log.FieldError, err)
		return failure(prefix, err), err
	}
	ui.close()
	c.mu.Unlock()

	c.refetch(ctx, msgs.entity)
	if editing {
		c.audit.LogRecordMutation(ctx, log.OpUpdate, msgs.entity, ack.ID)
		return success(msgs.updated), nil
	}
	c.audit.LogRecordMutation(ctx, log.OpCreate, msgs.entity, ack.ID)
	return success(msgs.created), nil
}

// confirmDelete deletes the pending delete target of ui.
func confirmDelete[T, F any](ctx context.Context, c *Controller, ui *entityUI[T, F], msgs messages, idOf func(T) string, del func(context.Context, string) error) (Notification, error) {
	c.mu.Lock()
	if ui.deleteTarget == nil {
		c.mu.Unlock()
		return failure(deleteFailed, ErrNoDeleteTarget), ErrNoDeleteTarget
	}
	if ui.deleting {
		c.mu.Unlock()
		return failure(deleteFailed, ErrBusy), ErrBusy
	}
	id := idOf(*ui.deleteTarget)
	ui.deleting = true
	c.mu.Unlock()

	err := del(ctx, id)

	c.mu.Lock()
	ui.deleting = false
	if err != nil {
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "Delete failed", log.FieldEntity, msgs.entity, log.FieldRecordID, id, log.FieldError, err)
		return failure(deleteFailed, err), err
	}
	ui.deleteTarget = nil
	if ui.editing != nil && idOf(*ui.editing) == id {
		ui.close()
	}
	c.mu.Unlock()

	c.refetch(ctx, msgs.entity)
	c.audit.LogRecordMutation(ctx, log.OpDelete, msgs.entity, id)
	return success(msgs.deleted), nil
}

func receiptID(r core.Receipt) string     { return r.ID }
func costGroupID(cg core.CostGroup) string { return cg.ID }
func handoverID(h core.Handover) string    { return h.ID }

func (c *Controller) findReceipt(id string) (*core.Receipt, error) {
	return find(c, func() []core.Receipt { return c.receipts }, receiptID, id)
}

func (c *Controller) findCostGroup(id string) (*core.CostGroup, error) {
	return find(c, func() []core.CostGroup { return c.costGroups }, costGroupID, id)
}

func (c *Controller) findHandover(id string) (*core.Handover, error) {
	return find(c, func() []core.Handover { return c.handovers }, handoverID, id)
}

// OpenReceiptDialog opens the receipt dialog; an empty id opens a blank
// form for a new receipt.
func (c *Controller) OpenReceiptDialog(id string) error {
	r, err := c.findReceipt(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiptUI.open(r, NewReceiptForm(r, c.now()))
	return nil
}

func (c *Controller) CloseReceiptDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiptUI.close()
}

// SubmitReceipt creates (id == "") or updates a receipt from form.
func (c *Controller) SubmitReceipt(ctx context.Context, id string, form ReceiptForm) (Notification, error) {
	r, err := c.findReceipt(id)
	if err != nil {
		return failure(receiptMessages.updateFailed, err), err
	}
	fields, invalid := form.Fields(c.backend)
	return submit(ctx, c, &c.receiptUI, r, form, receiptMessages, invalid, func(ctx context.Context) (core.Ack, error) {
		if r == nil {
			return c.backend.CreateReceipt(ctx, fields)
		}
		return c.backend.UpdateReceipt(ctx, r.ID, fields)
	})
}

// RequestReceiptDelete opens the delete confirmation for a receipt.
func (c *Controller) RequestReceiptDelete(id string) error {
	r, err := c.findReceipt(id)
	if err != nil {
		return err
	}
	if r == nil {
		return ErrNoDeleteTarget
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiptUI.deleteTarget = r
	return nil
}

func (c *Controller) CancelReceiptDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiptUI.deleteTarget = nil
}

func (c *Controller) ConfirmReceiptDelete(ctx context.Context) (Notification, error) {
	return confirmDelete(ctx, c, &c.receiptUI, receiptMessages, receiptID, c.backend.DeleteReceipt)
}

func (c *Controller) OpenCostGroupDialog(id string) error {
	cg, err := c.findCostGroup(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.costGroupUI.open(cg, NewCostGroupForm(cg))
	return nil
}

func (c *Controller) CloseCostGroupDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.costGroupUI.close()
}

func (c *Controller) SubmitCostGroup(ctx context.Context, id string, form CostGroupForm) (Notification, error) {
	cg, err := c.findCostGroup(id)
	if err != nil {
		return failure(costGroupMessages.updateFailed, err), err
	}
	fields, invalid := form.Fields()
	return submit(ctx, c, &c.costGroupUI, cg, form, costGroupMessages, invalid, func(ctx context.Context) (core.Ack, error) {
		if cg == nil {
			return c.backend.CreateCostGroup(ctx, fields)
		}
		return c.backend.UpdateCostGroup(ctx, cg.ID, fields)
	})
}

func (c *Controller) RequestCostGroupDelete(id string) error {
	cg, err := c.findCostGroup(id)
	if err != nil {
		return err
	}
	if cg == nil {
		return ErrNoDeleteTarget
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.costGroupUI.deleteTarget = cg
	return nil
}

func (c *Controller) CancelCostGroupDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.costGroupUI.deleteTarget = nil
}

// ConfirmCostGroupDelete deletes the pending cost group. Receipts that still
// reference it fall into the unassigned bucket.
func (c *Controller) ConfirmCostGroupDelete(ctx context.Context) (Notification, error) {
	return confirmDelete(ctx, c, &c.costGroupUI, costGroupMessages, costGroupID, c.backend.DeleteCostGroup)
}

func (c *Controller) OpenHandoverDialog(id string) error {
	h, err := c.findHandover(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handoverUI.open(h, NewHandoverForm(h, c.now()))
	return nil
}

func (c *Controller) CloseHandoverDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handoverUI.close()
}

func (c *Controller) SubmitHandover(ctx context.Context, id string, form HandoverForm) (Notification, error) {
	h, err := c.findHandover(id)
	if err != nil {
		return failure(handoverMessages.updateFailed, err), err
	}
	fields, invalid := form.Fields()
	return submit(ctx, c, &c.handoverUI, h, form, handoverMessages, invalid, func(ctx context.Context) (core.Ack, error) {
		if h == nil {
			return c.backend.CreateHandover(ctx, fields)
		}
		return c.backend.UpdateHandover(ctx, h.ID, fields)
	})
}

func (c *Controller) RequestHandoverDelete(id string) error {
	h, err := c.findHandover(id)
	if err != nil {
		return err
	}
	if h == nil {
		return ErrNoDeleteTarget
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handoverUI.deleteTarget = h
	return nil
}

func (c *Controller) CancelHandoverDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handoverUI.deleteTarget = nil
}

func (c *Controller) ConfirmHandoverDelete(ctx context.Context) (Notification, error) {
	return confirmDelete(ctx, c, &c.handoverUI, handoverMessages, handoverID, c.backend.DeleteHandover)
}

// Handover returns a loaded handover by id.
func (c *Controller) Handover(id string) (core.Handover, error) {
	h, err := c.findHandover(id)
	if err != nil {
		return core.Handover{}, err
	}
	if h == nil {
		return core.Handover{}, core.ErrNotFound
	}
	return *h, nil
}

// Collections returns copies of the loaded collections.
func (c *Controller) Collections() ([]core.CostGroup, []core.Receipt, []core.Handover) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.CostGroup(nil), c.costGroups...),
		append([]core.Receipt(nil), c.receipts...),
		append([]core.Handover(nil), c.handovers...)
}
