package core

// GroupTotal is an amount aggregated by cost group.
// GroupID is empty for the unassigned bucket.
type GroupTotal struct {
	GroupID string
	Name    string
	Total   Amount
	Count   int
}

// SeriesPoint is one bucket of a time series.
type SeriesPoint struct {
	Key   string // YYYY-MM or YYYY-MM-DD
	Label string
	Total Amount
}

// Summary bundles the headline figures of the dashboard.
type Summary struct {
	ReceiptCount   int
	CostGroupCount int
	ThisWeekCount  int
	Total          Amount
	Income         Amount
	Expense        Amount
}
