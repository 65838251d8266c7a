package http

import (
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/core"
	"buchhaltung/internal/dashboard"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// bar is one row of a CSS bar chart.
type bar struct {
	Label   string
	Amount  string
	Count   int
	Percent int
}

// percentOf scales v against max to 0..100, keeping non-zero values visible.
func percentOf(v, max core.Amount) int {
	if !max.IsPositive() || !v.IsPositive() {
		return 0
	}
	p := int(v.Div(max).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	if p < 1 {
		p = 1
	}
	if p > 100 {
		p = 100
	}
	return p
}

func seriesBars(points []core.SeriesPoint) []bar {
	max := core.Zero
	for _, p := range points {
		if p.Total.GreaterThan(max) {
			max = p.Total
		}
	}
	out := make([]bar, len(points))
	for i, p := range points {
		out[i] = bar{Label: p.Label, Amount: core.FormatEuro(p.Total), Percent: percentOf(p.Total, max)}
	}
	return out
}

func groupBars(groups []core.GroupTotal) []bar {
	max := core.Zero
	for _, g := range groups {
		if g.Total.GreaterThan(max) {
			max = g.Total
		}
	}
	out := make([]bar, len(groups))
	for i, g := range groups {
		out[i] = bar{Label: g.Name, Amount: core.FormatEuro(g.Total), Count: g.Count, Percent: percentOf(g.Total, max)}
	}
	return out
}

func kindLabel(k *core.Kind) string {
	if k == nil {
		return "-"
	}
	return k.Label()
}

func kindClass(k *core.Kind) string {
	if k == nil {
		return ""
	}
	switch k.Class() {
	case core.Income:
		return "income"
	case core.Expense:
		return "expense"
	default:
		return ""
	}
}

// confirm is the data of a delete confirmation dialog.
type confirm struct {
	Base   string
	Title  string
	Text   string
	Dialog dashboard.DeleteDialog
}

func confirmOf(base, title, text string, d dashboard.DeleteDialog) confirm {
	return confirm{Base: base, Title: title, Text: text, Dialog: d}
}

// templateFuncs are available to every template.
var templateFuncs = template.FuncMap{
	"euro":       core.FormatEuro,
	"date":       func(s *string) string { return core.FormatDateString(core.Deref(s)) },
	"deref":      core.Deref,
	"kindLabel":  kindLabel,
	"kindClass":  kindClass,
	"seriesBars": seriesBars,
	"groupBars":  groupBars,
	"confirmOf":  confirmOf,
	"isExpanded": func(m map[dashboard.Section]bool, s string) bool { return m[dashboard.Section(s)] },
}
