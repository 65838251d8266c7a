package dashboard

import (
	"fmt"
	"strings"
	"time"

	"buchhaltung/internal/core"
	"buchhaltung/internal/records"
)

// noSelection is the select value for "nothing chosen".
const noSelection = "none"

// FieldError reports a form field that failed validation. It unwraps to the
// matching core sentinel.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	switch e.Err {
	case core.ErrMissingField:
		return fmt.Sprintf("Pflichtfeld fehlt: %s", e.Field)
	case core.ErrInvalidDate:
		return fmt.Sprintf("Ungültiges Datum: %s", e.Field)
	case core.ErrInvalidAmount:
		return fmt.Sprintf("Ungültiger Betrag: %s", e.Field)
	default:
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
}

func (e *FieldError) Unwrap() error { return e.Err }

func requireDate(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Err: core.ErrMissingField}
	}
	if _, ok := core.ParseDate(value); !ok {
		return &FieldError{Field: field, Err: core.ErrInvalidDate}
	}
	return nil
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Err: core.ErrMissingField}
	}
	return nil
}

// ReceiptForm is the editable state of a receipt dialog.
type ReceiptForm struct {
	Date        string
	Number      string
	Description string
	Amount      string
	Kind        string
	CostGroupID string
	Notes       string
}

// NewReceiptForm seeds the form from r, or with today's date when r is nil.
func NewReceiptForm(r *core.Receipt, now time.Time) ReceiptForm {
	if r == nil {
		return ReceiptForm{Date: core.Today(now), CostGroupID: noSelection}
	}
	f := ReceiptForm{
		Date:        core.DatePart(core.Deref(r.Date)),
		Number:      core.Deref(r.Number),
		Description: core.Deref(r.Description),
		Kind:        string(r.KindOrEmpty()),
		CostGroupID: noSelection,
		Notes:       core.Deref(r.Notes),
	}
	if r.Amount != nil {
		f.Amount = r.Amount.String()
	}
	if id, ok := core.ExtractRecordID(core.Deref(r.CostGroupRef)); ok {
		f.CostGroupID = id
	}
	return f
}

// Fields validates the form and converts it into receipt fields. Blank
// optional inputs become nil so an update leaves the stored value alone.
func (f ReceiptForm) Fields(refs records.References) (core.ReceiptFields, error) {
	if err := requireDate("Belegdatum", f.Date); err != nil {
		return core.ReceiptFields{}, err
	}
	if err := requireText("Belegnummer", f.Number); err != nil {
		return core.ReceiptFields{}, err
	}
	if err := requireText("Betrag", f.Amount); err != nil {
		return core.ReceiptFields{}, err
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.ReceiptFields{}, &FieldError{Field: "Betrag", Err: err}
	}

	out := core.ReceiptFields{
		Date:        core.String(f.Date),
		Number:      core.String(f.Number),
		Description: core.String(f.Description),
		Amount:      &amount,
		Notes:       core.String(f.Notes),
	}
	if k := strings.TrimSpace(f.Kind); k != "" && k != noSelection {
		kind := core.ParseKind(k)
		out.Kind = &kind
	}
	if id := strings.TrimSpace(f.CostGroupID); id != "" && id != noSelection {
		out.CostGroupRef = core.String(refs.CostGroupRef(id))
	}
	return out, nil
}

// CostGroupForm is the editable state of a cost group dialog.
type CostGroupForm struct {
	Name        string
	Number      string
	Description string
}

func NewCostGroupForm(c *core.CostGroup) CostGroupForm {
	if c == nil {
		return CostGroupForm{}
	}
	return CostGroupForm{
		Name:        core.Deref(c.Name),
		Number:      core.Deref(c.Number),
		Description: core.Deref(c.Description),
	}
}

func (f CostGroupForm) Fields() (core.CostGroupFields, error) {
	if err := requireText("Name", f.Name); err != nil {
		return core.CostGroupFields{}, err
	}
	return core.CostGroupFields{
		Name:        core.String(f.Name),
		Number:      core.String(f.Number),
		Description: core.String(f.Description),
	}, nil
}

// HandoverForm is the editable state of a handover dialog. The delivered
// receipts reference is never edited here.
type HandoverForm struct {
	AsOfDate    string
	PeriodStart string
	PeriodEnd   string
	Remarks     string
}

// NewHandoverForm seeds the form from h, or with the current month up to
// today when h is nil.
func NewHandoverForm(h *core.Handover, now time.Time) HandoverForm {
	if h == nil {
		return HandoverForm{
			AsOfDate:    core.Today(now),
			PeriodStart: core.FirstOfMonth(now),
			PeriodEnd:   core.Today(now),
		}
	}
	return HandoverForm{
		AsOfDate:    core.DatePart(core.Deref(h.AsOfDate)),
		PeriodStart: core.DatePart(core.Deref(h.PeriodStart)),
		PeriodEnd:   core.DatePart(core.Deref(h.PeriodEnd)),
		Remarks:     core.Deref(h.Remarks),
	}
}

func (f HandoverForm) Fields() (core.HandoverFields, error) {
	for _, check := range []struct{ field, value string }{
		{"Stichtag", f.AsOfDate},
		{"Periode von", f.PeriodStart},
		{"Periode bis", f.PeriodEnd},
	} {
		if err := requireDate(check.field, check.value); err != nil {
			return core.HandoverFields{}, err
		}
	}
	if core.DatePart(f.PeriodEnd) < core.DatePart(f.PeriodStart) {
		return core.HandoverFields{}, &FieldError{Field: "Periode bis", Err: core.ErrInvalidDate}
	}
	return core.HandoverFields{
		AsOfDate:    core.String(f.AsOfDate),
		PeriodStart: core.String(f.PeriodStart),
		PeriodEnd:   core.String(f.PeriodEnd),
		Remarks:     core.String(f.Remarks),
	}, nil
}
