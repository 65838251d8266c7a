package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"buchhaltung/internal/aggregate"
	"buchhaltung/internal/core"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeReceipts(w io.Writer, receipts []core.Receipt, costGroups []core.CostGroup) error {
	idx := aggregate.IndexCostGroups(costGroups)
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATUM\tNUMMER\tBELEGART\tKOSTENGRUPPE\tBETRAG")
	for _, r := range receipts {
		kind := "-"
		if r.Kind != nil {
			kind = r.Kind.Label()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			core.FormatDateString(core.Deref(r.Date)),
			core.Deref(r.Number),
			kind,
			aggregate.ResolveCostGroupName(r.CostGroupRef, idx),
			core.FormatEuro(r.AmountOrZero()))
	}
	return tw.Flush()
}

func writeCostGroups(w io.Writer, costGroups []core.CostGroup, receipts []core.Receipt) error {
	counts := aggregate.BookingsPerCostGroup(receipts)
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNUMMER\tNAME\tBUCHUNGEN")
	for _, cg := range aggregate.SortCostGroups(costGroups) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", cg.ID, core.Deref(cg.Number), cg.DisplayName(), counts[cg.ID])
	}
	return tw.Flush()
}

func writeHandovers(w io.Writer, handovers []core.Handover) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTICHTAG\tVON\tBIS\tBEMERKUNGEN")
	for _, h := range aggregate.SortHandovers(handovers) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			h.ID,
			core.FormatDateString(core.Deref(h.AsOfDate)),
			core.FormatDateString(core.Deref(h.PeriodStart)),
			core.FormatDateString(core.Deref(h.PeriodEnd)),
			core.Deref(h.Remarks))
	}
	return tw.Flush()
}

func writeSummary(w io.Writer, s core.Summary, groups []core.GroupTotal, months []core.SeriesPoint) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Belege\t%d\n", s.ReceiptCount)
	fmt.Fprintf(tw, "Kostengruppen\t%d\n", s.CostGroupCount)
	fmt.Fprintf(tw, "Diese Woche\t%d\n", s.ThisWeekCount)
	fmt.Fprintf(tw, "Gesamtbetrag\t%s\n", core.FormatEuro(s.Total))
	fmt.Fprintf(tw, "Einnahmen\t%s\n", core.FormatEuro(s.Income))
	fmt.Fprintf(tw, "Ausgaben\t%s\n", core.FormatEuro(s.Expense))

	if len(groups) > 0 {
		fmt.Fprintln(tw, "\nKOSTENGRUPPE\tBUCHUNGEN\tSUMME")
		for _, g := range groups {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", g.Name, g.Count, core.FormatEuro(g.Total))
		}
	}
	if len(months) > 0 {
		fmt.Fprintln(tw, "\nMONAT\tSUMME")
		for _, m := range months {
			fmt.Fprintf(tw, "%s\t%s\n", m.Label, core.FormatEuro(m.Total))
		}
	}
	return tw.Flush()
}
