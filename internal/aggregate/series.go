package aggregate

import (
	"sort"

	"buchhaltung/internal/core"
)

// MonthlySeries buckets dated receipts by YYYY-MM, ascending, with sums
// rounded to cents. Undated receipts are left out.
func MonthlySeries(receipts []core.Receipt) []core.SeriesPoint {
	sums := map[string]core.Amount{}
	labels := map[string]string{}
	for _, r := range receipts {
		d, ok := core.ParseDate(core.Deref(r.Date))
		if !ok {
			continue
		}
		key := d.Format("2006-01")
		if _, seen := sums[key]; !seen {
			sums[key] = core.Zero
			labels[key] = core.MonthLabel(d.Year(), d.Month())
		}
		sums[key] = sums[key].Add(r.AmountOrZero())
	}
	return toSeries(sums, labels, 0)
}

// DefaultDailyDays is how many booking days the daily chart shows.
const DefaultDailyDays = 30

// DailySeries sums receipts per calendar day and keeps the last limit
// distinct days. Undated receipts are placed on their creation day.
func DailySeries(receipts []core.Receipt, limit int) []core.SeriesPoint {
	sums := map[string]core.Amount{}
	labels := map[string]string{}
	for _, r := range receipts {
		d, ok := core.ParseDate(r.SortKey())
		if !ok {
			continue
		}
		key := d.Format(core.ISODate)
		if _, seen := sums[key]; !seen {
			sums[key] = core.Zero
			labels[key] = d.Format("02.01")
		}
		sums[key] = sums[key].Add(r.AmountOrZero())
	}
	return toSeries(sums, labels, limit)
}

func toSeries(sums map[string]core.Amount, labels map[string]string, limit int) []core.SeriesPoint {
	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[len(keys)-limit:]
	}
	out := make([]core.SeriesPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, core.SeriesPoint{Key: k, Label: labels[k], Total: core.RoundCents(sums[k])})
	}
	return out
}
