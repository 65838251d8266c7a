package aggregate

import (
	"sort"

	"buchhaltung/internal/core"
)

const (
	// Unassigned labels receipts whose cost group is missing or unknown.
	Unassigned = "Ohne Kostengruppe"
	// NoMatch is rendered where a reference does not resolve.
	NoMatch = "-"
)

// CostGroupIndex looks up cost groups by id.
type CostGroupIndex map[string]core.CostGroup

// IndexCostGroups builds a lookup table over costGroups.
func IndexCostGroups(costGroups []core.CostGroup) CostGroupIndex {
	idx := make(CostGroupIndex, len(costGroups))
	for _, cg := range costGroups {
		idx[cg.ID] = cg
	}
	return idx
}

// Resolve returns the cost group a reference points at, if it still exists.
func (idx CostGroupIndex) Resolve(ref *string) (core.CostGroup, bool) {
	id, ok := core.ExtractRecordID(core.Deref(ref))
	if !ok {
		return core.CostGroup{}, false
	}
	cg, ok := idx[id]
	return cg, ok
}

// ResolveCostGroupName returns the display name of the referenced cost group,
// or NoMatch when the reference is empty or dangling.
func ResolveCostGroupName(ref *string, idx CostGroupIndex) string {
	cg, ok := idx.Resolve(ref)
	if !ok {
		return NoMatch
	}
	return cg.DisplayName()
}

// CostGroupBreakdown sums receipts per resolved cost group, largest first.
// Receipts without a resolvable group land in one trailing Unassigned entry,
// which is dropped when its total is zero.
func CostGroupBreakdown(receipts []core.Receipt, costGroups []core.CostGroup) []core.GroupTotal {
	idx := IndexCostGroups(costGroups)
	byID := map[string]*core.GroupTotal{}
	unassigned := core.GroupTotal{Name: Unassigned, Total: core.Zero}

	for _, r := range receipts {
		cg, ok := idx.Resolve(r.CostGroupRef)
		if !ok {
			unassigned.Total = unassigned.Total.Add(r.AmountOrZero())
			unassigned.Count++
			continue
		}
		gt, seen := byID[cg.ID]
		if !seen {
			gt = &core.GroupTotal{GroupID: cg.ID, Name: cg.DisplayName(), Total: core.Zero}
			byID[cg.ID] = gt
		}
		gt.Total = gt.Total.Add(r.AmountOrZero())
		gt.Count++
	}

	out := make([]core.GroupTotal, 0, len(byID)+1)
	for _, gt := range byID {
		out = append(out, *gt)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].GroupID < out[j].GroupID
	})
	if !unassigned.Total.IsZero() {
		out = append(out, unassigned)
	}
	return out
}

// BookingsPerCostGroup counts receipts per referenced cost group id,
// whether or not the group still exists.
func BookingsPerCostGroup(receipts []core.Receipt) map[string]int {
	counts := map[string]int{}
	for _, r := range receipts {
		if id, ok := core.ExtractRecordID(core.Deref(r.CostGroupRef)); ok {
			counts[id]++
		}
	}
	return counts
}
