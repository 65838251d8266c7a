// Package export turns the receipts covered by a handover into tabular rows
// for the tax accountant, written as CSV or into a Google Sheet.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"buchhaltung/internal/aggregate"
	"buchhaltung/internal/core"
)

// Header is the first row of every export.
var Header = []string{"Belegdatum", "Belegnummer", "Beschreibung", "Belegart", "Kostengruppe", "Betrag"}

// Period is an inclusive range of ISO dates. An empty bound is open.
type Period struct {
	From string
	To   string
}

// HandoverPeriod derives the covered period: periode_von..periode_bis, with
// the as-of date standing in for a missing end.
func HandoverPeriod(h core.Handover) Period {
	p := Period{
		From: core.DatePart(core.Deref(h.PeriodStart)),
		To:   core.DatePart(core.Deref(h.PeriodEnd)),
	}
	if p.To == "" {
		p.To = core.DatePart(core.Deref(h.AsOfDate))
	}
	return p
}

func (p Period) contains(date string) bool {
	if date == "" {
		return false
	}
	if p.From != "" && date < p.From {
		return false
	}
	if p.To != "" && date > p.To {
		return false
	}
	return true
}

// Filename is the download name for a handover export.
func (p Period) Filename() string {
	from, to := p.From, p.To
	if from == "" {
		from = "anfang"
	}
	if to == "" {
		to = "heute"
	}
	return fmt.Sprintf("uebergabe_%s_%s.csv", from, to)
}

// ReceiptsInPeriod returns the dated receipts inside p, oldest first.
func ReceiptsInPeriod(receipts []core.Receipt, p Period) []core.Receipt {
	var out []core.Receipt
	for _, r := range receipts {
		if p.contains(core.DatePart(core.Deref(r.Date))) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := core.Deref(out[i].Date), core.Deref(out[j].Date)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Rows renders receipts as table rows, header first, with a closing total.
func Rows(receipts []core.Receipt, costGroups []core.CostGroup) [][]string {
	idx := aggregate.IndexCostGroups(costGroups)
	rows := [][]string{append([]string(nil), Header...)}
	for _, r := range receipts {
		kind := ""
		if r.Kind != nil {
			kind = r.Kind.Label()
		}
		rows = append(rows, []string{
			core.FormatDateString(core.Deref(r.Date)),
			safeText(core.Deref(r.Number)),
			safeText(core.Deref(r.Description)),
			safeText(kind),
			safeText(aggregate.ResolveCostGroupName(r.CostGroupRef, idx)),
			germanDecimal(r.AmountOrZero()),
		})
	}
	rows = append(rows, []string{"", "", "Summe", "", "", germanDecimal(aggregate.TotalAmount(receipts))})
	return rows
}

// safeText quotes free text that a spreadsheet would read as a formula.
func safeText(s string) string {
	if len(s) > 1 && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// germanDecimal renders a plain amount with a decimal comma and no grouping,
// the format spreadsheet imports in de-DE expect.
func germanDecimal(a core.Amount) string {
	return strings.Replace(core.RoundCents(a).StringFixed(2), ".", ",", 1)
}

// WriteCSV writes rows semicolon separated.
func WriteCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
