package core

import (
	"errors"
	"strings"
)

// UnnamedCostGroup is shown wherever a cost group has no name.
const UnnamedCostGroup = "Unbenannt"

type (
	// Meta carries the server-assigned identity of a record.
	Meta struct {
		ID        string
		CreatedAt string
		UpdatedAt *string
	}

	CostGroupFields struct {
		Name        *string
		Number      *string
		Description *string
		Image       *string // opaque, never interpreted
	}

	CostGroup struct {
		Meta
		CostGroupFields
	}

	ReceiptFields struct {
		Date         *string // ISO date or date-time, kept verbatim
		Number       *string
		Description  *string
		Amount       *Amount
		Kind         *Kind
		CostGroupRef *string // absolute record URL of a CostGroup
		Attachment   *string // opaque, never interpreted
		Notes        *string
	}

	Receipt struct {
		Meta
		ReceiptFields
	}

	HandoverFields struct {
		AsOfDate             *string
		PeriodStart          *string
		PeriodEnd            *string
		DeliveredReceiptsRef *string // single opaque reference
		Remarks              *string
	}

	Handover struct {
		Meta
		HandoverFields
	}

	// Ack is what a store hands back after a successful create or update.
	Ack struct {
		ID string
	}
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrMissingField  = errors.New("missing required field")
)

// DisplayName returns the cost group name or the "Unbenannt" fallback.
func (c CostGroup) DisplayName() string {
	if c.Name == nil || strings.TrimSpace(*c.Name) == "" {
		return UnnamedCostGroup
	}
	return *c.Name
}

// AmountOrZero treats an absent amount as zero.
func (r Receipt) AmountOrZero() Amount {
	if r.Amount == nil {
		return Zero
	}
	return *r.Amount
}

// KindOrEmpty returns the receipt kind, or the empty kind when unset.
func (r Receipt) KindOrEmpty() Kind {
	if r.Kind == nil {
		return ""
	}
	return *r.Kind
}

// SortKey is the receipt date, or the creation timestamp for undated receipts.
func (r Receipt) SortKey() string {
	if d := Deref(r.Date); d != "" {
		return d
	}
	return r.CreatedAt
}

// DisplayName is the receipt number, falling back to its description.
func (r Receipt) DisplayName() string {
	if n := Deref(r.Number); n != "" {
		return n
	}
	if d := Deref(r.Description); d != "" {
		return d
	}
	return r.ID
}

// DisplayName is the as-of date of the handover.
func (h Handover) DisplayName() string {
	if d, ok := ParseDate(Deref(h.AsOfDate)); ok {
		return "Übergabe vom " + FormatDate(d)
	}
	return "Übergabe"
}

// String returns a pointer to s, or nil when s is blank.
func String(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
