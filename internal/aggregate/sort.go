package aggregate

import (
	"sort"

	"buchhaltung/internal/core"
)

// FilterAndSortReceipts keeps receipts of the given kind ("" keeps all) and
// orders them newest first. Dates are compared as raw strings; undated
// receipts sort by their creation timestamp. The input is not modified.
func FilterAndSortReceipts(receipts []core.Receipt, kind core.Kind) []core.Receipt {
	out := make([]core.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if kind != "" && r.KindOrEmpty() != kind {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortKey() > out[j].SortKey()
	})
	return out
}

// SortHandovers orders handovers by as-of date, newest first, comparing raw
// strings. The input is not modified.
func SortHandovers(handovers []core.Handover) []core.Handover {
	out := make([]core.Handover, len(handovers))
	copy(out, handovers)
	sort.SliceStable(out, func(i, j int) bool {
		return core.Deref(out[i].AsOfDate) > core.Deref(out[j].AsOfDate)
	})
	return out
}

// SortCostGroups orders cost groups by number, then name.
func SortCostGroups(costGroups []core.CostGroup) []core.CostGroup {
	out := make([]core.CostGroup, len(costGroups))
	copy(out, costGroups)
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := core.Deref(out[i].Number), core.Deref(out[j].Number)
		if ni != nj {
			return ni < nj
		}
		return out[i].DisplayName() < out[j].DisplayName()
	})
	return out
}
