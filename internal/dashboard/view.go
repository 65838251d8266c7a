package dashboard

import (
	"time"

	"buchhaltung/internal/aggregate"
	"buchhaltung/internal/core"
)

// PreviewLimit is how many entries a collapsed list shows.
const PreviewLimit = 5

// ReceiptItem is a receipt with its cost group resolved for display.
type ReceiptItem struct {
	core.Receipt
	CostGroupName string
}

// CostGroupItem is a cost group with its booking count.
type CostGroupItem struct {
	core.CostGroup
	Bookings int
}

// SelectOption is a select entry.
type SelectOption struct {
	Value string
	Label string
}

// View is an immutable snapshot of everything the dashboard renders.
type View struct {
	State LoadState
	Error string
	Now   time.Time

	Summary   core.Summary
	Breakdown []core.GroupTotal
	Monthly   []core.SeriesPoint
	Daily     []core.SeriesPoint

	KindFilter    core.Kind
	Receipts      []ReceiptItem
	ReceiptCount  int
	ShowAll       bool
	HasMore       bool
	CostGroups    []CostGroupItem
	MoreGroups    bool
	Handovers     []core.Handover
	HandoverCount int
	MoreHandovers bool
	Expanded      map[Section]bool
	KindOptions   []SelectOption
	GroupOptions  []SelectOption

	ReceiptDialog   Dialog[ReceiptForm]
	CostGroupDialog Dialog[CostGroupForm]
	HandoverDialog  Dialog[HandoverForm]
	ReceiptDelete   DeleteDialog
	CostGroupDelete DeleteDialog
	HandoverDelete  DeleteDialog
}

func dialogOf[T, F any](ui entityUI[T, F], idOf func(T) string) Dialog[F] {
	d := Dialog[F]{Open: ui.dialogOpen, Form: ui.form, Submitting: ui.submitting}
	if ui.editing != nil {
		d.Editing = true
		d.RecordID = idOf(*ui.editing)
	}
	return d
}

func deleteOf[T, F any](ui entityUI[T, F], idOf func(T) string, name func(T) string) DeleteDialog {
	if ui.deleteTarget == nil {
		return DeleteDialog{}
	}
	return DeleteDialog{
		Open:     true,
		RecordID: idOf(*ui.deleteTarget),
		Name:     name(*ui.deleteTarget),
		Deleting: ui.deleting,
	}
}

// View computes the render snapshot. Aggregates are only filled once the
// dashboard is Loaded.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	v := View{
		State:      c.state,
		Now:        now,
		KindFilter: c.kindFilter,
		Expanded:   make(map[Section]bool, len(c.expanded)),
		ShowAll:    c.expanded[SectionReceipts],

		ReceiptDialog:   dialogOf(c.receiptUI, receiptID),
		CostGroupDialog: dialogOf(c.costGroupUI, costGroupID),
		HandoverDialog:  dialogOf(c.handoverUI, handoverID),
		ReceiptDelete:   deleteOf(c.receiptUI, receiptID, core.Receipt.DisplayName),
		CostGroupDelete: deleteOf(c.costGroupUI, costGroupID, core.CostGroup.DisplayName),
		HandoverDelete:  deleteOf(c.handoverUI, handoverID, core.Handover.DisplayName),
	}
	for s, open := range c.expanded {
		v.Expanded[s] = open
	}
	if c.loadErr != nil {
		v.Error = c.loadErr.Error()
	}
	for _, k := range core.KnownKinds {
		v.KindOptions = append(v.KindOptions, SelectOption{Value: string(k), Label: k.Label()})
	}
	if c.state != Loaded {
		return v
	}

	v.Summary = aggregate.Summarize(c.receipts, c.costGroups, now)
	v.Breakdown = aggregate.CostGroupBreakdown(c.receipts, c.costGroups)
	v.Monthly = aggregate.MonthlySeries(c.receipts)
	v.Daily = aggregate.DailySeries(c.receipts, c.dailyDays)

	idx := aggregate.IndexCostGroups(c.costGroups)
	filtered := aggregate.FilterAndSortReceipts(c.receipts, c.kindFilter)
	v.ReceiptCount = len(filtered)
	if !v.ShowAll && len(filtered) > PreviewLimit {
		filtered = filtered[:PreviewLimit]
		v.HasMore = true
	}
	v.Receipts = make([]ReceiptItem, len(filtered))
	for i, r := range filtered {
		v.Receipts[i] = ReceiptItem{Receipt: r, CostGroupName: aggregate.ResolveCostGroupName(r.CostGroupRef, idx)}
	}

	bookings := aggregate.BookingsPerCostGroup(c.receipts)
	for _, cg := range aggregate.SortCostGroups(c.costGroups) {
		v.CostGroups = append(v.CostGroups, CostGroupItem{CostGroup: cg, Bookings: bookings[cg.ID]})
		label := cg.DisplayName()
		if n := core.Deref(cg.Number); n != "" {
			label = n + " " + label
		}
		v.GroupOptions = append(v.GroupOptions, SelectOption{Value: cg.ID, Label: label})
	}
	if !c.expanded[SectionCostGroups] && len(v.CostGroups) > PreviewLimit {
		v.CostGroups = v.CostGroups[:PreviewLimit]
		v.MoreGroups = true
	}

	v.Handovers = aggregate.SortHandovers(c.handovers)
	v.HandoverCount = len(v.Handovers)
	if !c.expanded[SectionHandovers] && len(v.Handovers) > PreviewLimit {
		v.Handovers = v.Handovers[:PreviewLimit]
		v.MoreHandovers = true
	}
	return v
}

// Loaded reports whether the collections are available for rendering.
func (v View) Loaded() bool { return v.State == Loaded }

// Failed reports whether the last load failed.
func (v View) Failed() bool { return v.State == Failed }

// Dialogs reports whether any dialog is open.
func (v View) Dialogs() bool {
	return v.ReceiptDialog.Open || v.CostGroupDialog.Open || v.HandoverDialog.Open ||
		v.ReceiptDelete.Open || v.CostGroupDelete.Open || v.HandoverDelete.Open
}
