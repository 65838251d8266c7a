package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buchhaltung/internal/aggregate"
	"buchhaltung/internal/core"
	"buchhaltung/internal/records/memory"
)

func fixedNow() time.Time { return time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC) }

// flakyBackend fails or blocks selected calls of an in-memory store.
type flakyBackend struct {
	*memory.Store
	listErr  error
	writeErr error
	block    chan struct{}
}

func (b *flakyBackend) ListHandovers(ctx context.Context) ([]core.Handover, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.Store.ListHandovers(ctx)
}

func (b *flakyBackend) UpdateReceipt(ctx context.Context, id string, f core.ReceiptFields) (core.Ack, error) {
	if b.block != nil {
		<-b.block
	}
	if b.writeErr != nil {
		return core.Ack{}, b.writeErr
	}
	return b.Store.UpdateReceipt(ctx, id, f)
}

func (b *flakyBackend) DeleteCostGroup(ctx context.Context, id string) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	return b.Store.DeleteCostGroup(ctx, id)
}

func newBackend() *flakyBackend {
	return &flakyBackend{Store: memory.New(memory.WithClock(fixedNow))}
}

func newController(t *testing.T, b *flakyBackend) *Controller {
	t.Helper()
	c := New(b, WithClock(fixedNow))
	require.NoError(t, c.Load(context.Background()))
	return c
}

func amount(s string) *core.Amount {
	a, err := core.ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return &a
}

func TestLoadStateMachine(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	_, err := b.CreateReceipt(ctx, core.ReceiptFields{Date: core.String("2026-04-14"), Amount: amount("12,50"), Kind: ptrKind(core.KindReceiptSimple)})
	require.NoError(t, err)

	c := New(b, WithClock(fixedNow))
	assert.Equal(t, Idle, c.State())
	assert.Empty(t, c.View().Receipts)

	require.NoError(t, c.Load(ctx))
	assert.Equal(t, Loaded, c.State())

	v := c.View()
	assert.Equal(t, 1, v.Summary.ReceiptCount)
	assert.Equal(t, 1, v.Summary.ThisWeekCount)
	assert.True(t, v.Summary.Expense.Equal(*amount("12.5")))
	assert.Len(t, v.Monthly, 1)
	assert.Len(t, v.KindOptions, len(core.KnownKinds))
}

func TestLoadFailsAsWhole(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	_, _ = b.CreateReceipt(ctx, core.ReceiptFields{Number: core.String("B-1")})
	b.listErr = errors.New("Sitzung abgelaufen")

	c := New(b, WithClock(fixedNow))
	err := c.Load(ctx)
	require.Error(t, err)
	assert.Equal(t, Failed, c.State())

	v := c.View()
	assert.Equal(t, "Sitzung abgelaufen", v.Error)
	assert.Empty(t, v.Receipts, "nothing is rendered from a partial load")
	assert.Zero(t, v.Summary.ReceiptCount)

	b.listErr = nil
	require.NoError(t, c.Retry(ctx))
	assert.Equal(t, Loaded, c.State())
	assert.Empty(t, c.View().Error)
	assert.Len(t, c.View().Receipts, 1)
}

func TestEnsureLoadedLoadsOnce(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	c := New(b, WithClock(fixedNow))
	require.NoError(t, c.EnsureLoaded(ctx))

	_, _ = b.CreateReceipt(ctx, core.ReceiptFields{Number: core.String("B-1")})
	require.NoError(t, c.EnsureLoaded(ctx))
	assert.Empty(t, c.View().Receipts)
}

func TestCreateReceipt(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	cg, err := b.CreateCostGroup(ctx, core.CostGroupFields{Name: core.String("Porto")})
	require.NoError(t, err)
	c := newController(t, b)

	require.NoError(t, c.OpenReceiptDialog(""))
	v := c.View()
	assert.True(t, v.ReceiptDialog.Open)
	assert.False(t, v.ReceiptDialog.Editing)
	assert.Equal(t, "2026-04-15", v.ReceiptDialog.Form.Date)

	n, err := c.SubmitReceipt(ctx, "", ReceiptForm{
		Date:        "2026-04-10",
		Number:      "Q-17",
		Amount:      "4,20",
		Kind:        "quittung",
		CostGroupID: cg.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, Notification{Kind: NotifySuccess, Message: "Beleg erstellt"}, n)

	v = c.View()
	assert.False(t, v.ReceiptDialog.Open)
	require.Len(t, v.Receipts, 1, "receipts are refetched after a create")
	assert.Equal(t, "Porto", v.Receipts[0].CostGroupName)
	assert.Nil(t, v.Receipts[0].Description, "blank optional input stays unset")
	assert.Equal(t, b.CostGroupRef(cg.ID), core.Deref(v.Receipts[0].CostGroupRef))
	require.Len(t, v.CostGroups, 1)
	assert.Equal(t, 1, v.CostGroups[0].Bookings)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	c := newController(t, b)

	n, err := c.SubmitReceipt(ctx, "", ReceiptForm{Date: "2026-04-10", Amount: "1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMissingField))
	assert.Equal(t, "Fehler beim Erstellen: Pflichtfeld fehlt: Belegnummer", n.Message)
	assert.Equal(t, NotifyError, n.Kind)

	v := c.View()
	assert.True(t, v.ReceiptDialog.Open, "dialog stays open")
	assert.Equal(t, "2026-04-10", v.ReceiptDialog.Form.Date, "user input is kept")
	assert.False(t, v.ReceiptDialog.Submitting)

	_, err = c.SubmitReceipt(ctx, "", ReceiptForm{Date: "2026-04-10", Number: "1", Amount: "zwölf"})
	assert.True(t, errors.Is(err, core.ErrInvalidAmount))

	_, err = c.SubmitCostGroup(ctx, "", CostGroupForm{Number: "4930"})
	assert.True(t, errors.Is(err, core.ErrMissingField))

	_, err = c.SubmitHandover(ctx, "", HandoverForm{AsOfDate: "2026-04-15", PeriodStart: "2026-04-10", PeriodEnd: "2026-04-01"})
	assert.True(t, errors.Is(err, core.ErrInvalidDate))

	receipts, _ := b.ListReceipts(ctx)
	assert.Empty(t, receipts)
}

func TestEditKeepsOmittedFields(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	ack, err := b.CreateReceipt(ctx, core.ReceiptFields{
		Date:        core.String("2026-04-01"),
		Number:      core.String("B-1"),
		Amount:      amount("10"),
		Notes:       core.String("bar bezahlt"),
		Description: core.String("Briefmarken"),
	})
	require.NoError(t, err)
	c := newController(t, b)

	require.NoError(t, c.OpenReceiptDialog(ack.ID))
	form := c.View().ReceiptDialog.Form
	assert.Equal(t, "B-1", form.Number)
	assert.Equal(t, "10", form.Amount)

	form.Notes = ""
	form.Amount = "11"
	n, err := c.SubmitReceipt(ctx, ack.ID, form)
	require.NoError(t, err)
	assert.Equal(t, "Beleg aktualisiert", n.Message)

	got, err := b.GetReceipt(ctx, ack.ID)
	require.NoError(t, err)
	assert.Equal(t, "bar bezahlt", core.Deref(got.Notes), "blank field does not clear the stored value")
	assert.Equal(t, "Briefmarken", core.Deref(got.Description))
	assert.True(t, got.Amount.Equal(*amount("11")))
}

func TestSubmitFailureKeepsDialogOpen(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	ack, _ := b.CreateReceipt(ctx, core.ReceiptFields{Number: core.String("B-1")})
	c := newController(t, b)
	b.writeErr = errors.New(`{"error":"Feld betrag ungültig"}`)

	n, err := c.SubmitReceipt(ctx, ack.ID, ReceiptForm{Date: "2026-04-01", Number: "B-1", Amount: "1"})
	require.Error(t, err)
	assert.Equal(t, `Fehler beim Speichern: {"error":"Feld betrag ungültig"}`, n.Message)

	v := c.View()
	assert.True(t, v.ReceiptDialog.Open)
	assert.True(t, v.ReceiptDialog.Editing)
	assert.Equal(t, ack.ID, v.ReceiptDialog.RecordID)
	assert.False(t, v.ReceiptDialog.Submitting)
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	ack, _ := b.CreateReceipt(ctx, core.ReceiptFields{Number: core.String("B-1")})
	c := newController(t, b)
	b.block = make(chan struct{})

	form := ReceiptForm{Date: "2026-04-01", Number: "B-2", Amount: "1"}
	done := make(chan error, 1)
	go func() {
		_, err := c.SubmitReceipt(ctx, ack.ID, form)
		done <- err
	}()
	require.Eventually(t, func() bool { return c.View().ReceiptDialog.Submitting }, time.Second, 5*time.Millisecond)

	_, err := c.SubmitReceipt(ctx, ack.ID, form)
	assert.ErrorIs(t, err, ErrBusy)

	close(b.block)
	require.NoError(t, <-done)
	assert.False(t, c.View().ReceiptDialog.Open)
}

func TestDeleteCostGroup(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	cg, _ := b.CreateCostGroup(ctx, core.CostGroupFields{Name: core.String("Kfz-Kosten")})
	_, _ = b.CreateReceipt(ctx, core.ReceiptFields{Amount: amount("30"), CostGroupRef: core.String(b.CostGroupRef(cg.ID))})
	c := newController(t, b)

	_, err := c.ConfirmCostGroupDelete(ctx)
	assert.ErrorIs(t, err, ErrNoDeleteTarget)

	require.NoError(t, c.RequestCostGroupDelete(cg.ID))
	d := c.View().CostGroupDelete
	assert.True(t, d.Open)
	assert.Equal(t, "Kfz-Kosten", d.Name)

	b.writeErr = errors.New("403 Forbidden")
	n, err := c.ConfirmCostGroupDelete(ctx)
	require.Error(t, err)
	assert.Equal(t, "Fehler beim Löschen: 403 Forbidden", n.Message)
	assert.True(t, c.View().CostGroupDelete.Open, "failed delete keeps the confirmation")

	b.writeErr = nil
	n, err = c.ConfirmCostGroupDelete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Kostengruppe gelöscht", n.Message)

	v := c.View()
	assert.False(t, v.CostGroupDelete.Open)
	assert.Empty(t, v.CostGroups)
	require.Len(t, v.Breakdown, 1)
	assert.Equal(t, aggregate.Unassigned, v.Breakdown[0].Name)
	assert.Equal(t, aggregate.NoMatch, v.Receipts[0].CostGroupName)
}

func TestHandoverFlow(t *testing.T) {
	ctx := context.Background()
	c := newController(t, newBackend())

	require.NoError(t, c.OpenHandoverDialog(""))
	form := c.View().HandoverDialog.Form
	assert.Equal(t, HandoverForm{AsOfDate: "2026-04-15", PeriodStart: "2026-04-01", PeriodEnd: "2026-04-15"}, form)

	n, err := c.SubmitHandover(ctx, "", form)
	require.NoError(t, err)
	assert.Equal(t, "Übergabe erstellt", n.Message)

	v := c.View()
	require.Len(t, v.Handovers, 1)
	id := v.Handovers[0].ID

	h, err := c.Handover(id)
	require.NoError(t, err)
	assert.Equal(t, "Übergabe vom 15.04.2026", h.DisplayName())

	require.NoError(t, c.RequestHandoverDelete(id))
	c.CancelHandoverDelete()
	assert.False(t, c.View().HandoverDelete.Open)

	require.NoError(t, c.RequestHandoverDelete(id))
	n, err = c.ConfirmHandoverDelete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Übergabe gelöscht", n.Message)
	assert.Empty(t, c.View().Handovers)

	_, err = c.Handover(id)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, c.OpenHandoverDialog(id), core.ErrNotFound)
}

func TestCostGroupEdit(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	cg, _ := b.CreateCostGroup(ctx, core.CostGroupFields{Name: core.String("Porto"), Number: core.String("4910")})
	c := newController(t, b)

	require.NoError(t, c.OpenCostGroupDialog(cg.ID))
	assert.Equal(t, CostGroupForm{Name: "Porto", Number: "4910"}, c.View().CostGroupDialog.Form)
	c.CloseCostGroupDialog()
	assert.False(t, c.View().CostGroupDialog.Open)

	n, err := c.SubmitCostGroup(ctx, cg.ID, CostGroupForm{Name: "Porto und Versand"})
	require.NoError(t, err)
	assert.Equal(t, "Kostengruppe aktualisiert", n.Message)

	v := c.View()
	require.Len(t, v.CostGroups, 1)
	assert.Equal(t, "Porto und Versand", v.CostGroups[0].DisplayName())
	assert.Equal(t, "4910", core.Deref(v.CostGroups[0].Number))
	assert.Equal(t, []SelectOption{{Value: cg.ID, Label: "4910 Porto und Versand"}}, v.GroupOptions)
}

func TestKindFilterAndShowMore(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	for i := 1; i <= 7; i++ {
		k := core.KindBankReceipt
		if i%2 == 0 {
			k = core.KindOutgoingInvoice
		}
		_, _ = b.CreateReceipt(ctx, core.ReceiptFields{
			Date: core.String(time.Date(2026, 4, i, 0, 0, 0, 0, time.UTC).Format(core.ISODate)),
			Kind: ptrKind(k),
		})
	}
	c := newController(t, b)

	v := c.View()
	assert.Len(t, v.Receipts, PreviewLimit)
	assert.True(t, v.HasMore)
	assert.Equal(t, 7, v.ReceiptCount)
	assert.Equal(t, "2026-04-07", core.Deref(v.Receipts[0].Date), "newest first")

	assert.True(t, c.Toggle(SectionReceipts))
	v = c.View()
	assert.Len(t, v.Receipts, 7)
	assert.False(t, v.HasMore)

	c.SetKindFilter("outgoing_invoice")
	v = c.View()
	assert.Equal(t, core.KindOutgoingInvoice, v.KindFilter)
	assert.Len(t, v.Receipts, 3)

	c.SetKindFilter("all")
	assert.Len(t, c.View().Receipts, 7)

	assert.False(t, c.Toggle(SectionReceipts))
}

func ptrKind(k core.Kind) *core.Kind { return &k }
