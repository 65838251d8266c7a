// Package aggregate computes the dashboard figures from the record
// collections. Every function is pure: same input, same output, no I/O.
package aggregate

import (
	"time"

	"buchhaltung/internal/core"
)

// TotalAmount sums all receipt amounts; absent amounts count as zero.
func TotalAmount(receipts []core.Receipt) core.Amount {
	total := core.Zero
	for _, r := range receipts {
		total = total.Add(r.AmountOrZero())
	}
	return total
}

// IncomeTotal sums receipts whose kind is classified as income.
func IncomeTotal(receipts []core.Receipt) core.Amount {
	return sumClass(receipts, core.Income)
}

// ExpenseTotal sums receipts whose kind is classified as expense.
// Receipts without a kind or with an unknown kind are in neither total.
func ExpenseTotal(receipts []core.Receipt) core.Amount {
	return sumClass(receipts, core.Expense)
}

func sumClass(receipts []core.Receipt, class core.Class) core.Amount {
	total := core.Zero
	for _, r := range receipts {
		if r.KindOrEmpty().Class() == class {
			total = total.Add(r.AmountOrZero())
		}
	}
	return total
}

// ThisWeekCount counts receipts dated inside the ISO week (Mon-Sun) that
// contains now. Undated or unparsable receipts are not counted.
func ThisWeekCount(receipts []core.Receipt, now time.Time) int {
	start, end := core.WeekBounds(now)
	startDay := start.Format(core.ISODate)
	endDay := end.Format(core.ISODate)
	n := 0
	for _, r := range receipts {
		d, ok := core.ParseDate(core.Deref(r.Date))
		if !ok {
			continue
		}
		day := d.Format(core.ISODate)
		if day >= startDay && day < endDay {
			n++
		}
	}
	return n
}

// Summarize bundles the headline figures.
func Summarize(receipts []core.Receipt, costGroups []core.CostGroup, now time.Time) core.Summary {
	return core.Summary{
		ReceiptCount:   len(receipts),
		CostGroupCount: len(costGroups),
		ThisWeekCount:  ThisWeekCount(receipts, now),
		Total:          TotalAmount(receipts),
		Income:         IncomeTotal(receipts),
		Expense:        ExpenseTotal(receipts),
	}
}
