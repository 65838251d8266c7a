package core

// Kind is the receipt classification as stored by the hosted service.
//
// It is an open value: the seven known wire values have labels and a
// classification, anything else is carried verbatim and rendered as is.
type Kind string

const (
	KindOutgoingInvoice Kind = "ausgangsrechnung"
	KindReceiptSimple   Kind = "quittung"
	KindCashReceipt     Kind = "kassenbeleg"
	KindBankReceipt     Kind = "bankbeleg"
	KindCreditNote      Kind = "gutschrift"
	KindIncomingInvoice Kind = "eingangsrechnung"
	KindOther           Kind = "sonstiger_beleg"
)

// Class groups kinds for the income/expense totals.
type Class int

const (
	Unclassified Class = iota
	Income
	Expense
)

type kindInfo struct {
	name  string
	label string
	class Class
}

var kinds = map[Kind]kindInfo{
	KindOutgoingInvoice: {"outgoing_invoice", "Ausgangsrechnung", Income},
	KindReceiptSimple:   {"receipt_simple", "Quittung", Expense},
	KindCashReceipt:     {"cash_receipt", "Kassenbeleg", Expense},
	KindBankReceipt:     {"bank_receipt", "Bankbeleg", Expense},
	KindCreditNote:      {"credit_note", "Gutschrift", Income},
	KindIncomingInvoice: {"incoming_invoice", "Eingangsrechnung", Expense},
	KindOther:           {"other", "Sonstiger Beleg", Expense},
}

// KnownKinds lists the known kinds in form order.
var KnownKinds = []Kind{
	KindOutgoingInvoice,
	KindReceiptSimple,
	KindCashReceipt,
	KindBankReceipt,
	KindCreditNote,
	KindIncomingInvoice,
	KindOther,
}

// ParseKind accepts a wire value ("bankbeleg") or a domain name
// ("bank_receipt"). Unknown input is kept as a raw kind.
func ParseKind(s string) Kind {
	if _, ok := kinds[Kind(s)]; ok {
		return Kind(s)
	}
	for k, info := range kinds {
		if info.name == s {
			return k
		}
	}
	return Kind(s)
}

// Known reports whether k is one of the seven known kinds.
func (k Kind) Known() bool {
	_, ok := kinds[k]
	return ok
}

// Name is the domain name of a known kind, or the raw value.
func (k Kind) Name() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return string(k)
}

// Label is the German display label, or the raw value for unknown kinds.
func (k Kind) Label() string {
	if info, ok := kinds[k]; ok {
		return info.label
	}
	return string(k)
}

// Class reports whether k counts as income, expense or neither.
func (k Kind) Class() Class {
	return kinds[k].class
}
