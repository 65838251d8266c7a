package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buchhaltung/internal/core"
	"buchhaltung/internal/dashboard"
	"buchhaltung/internal/log"
	"buchhaltung/internal/records/memory"
)

func fixedNow() time.Time { return time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC) }

type fakeSheets struct {
	rows [][]string
	err  error
}

func (f *fakeSheets) Export(_ context.Context, rows [][]string) error {
	f.rows = rows
	return f.err
}

type fixture struct {
	srv       *Server
	store     *memory.Store
	costGroup string
	receipt   string
	handover  string
	sheets    *fakeSheets
}

func newFixture(t *testing.T, mutate ...func(*Deps)) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New(memory.WithClock(fixedNow))

	cg, err := store.CreateCostGroup(ctx, core.CostGroupFields{Name: core.String("Bürobedarf"), Number: core.String("4930")})
	require.NoError(t, err)
	amount, err := core.ParseAmount("119,00")
	require.NoError(t, err)
	kind := core.KindIncomingInvoice
	rc, err := store.CreateReceipt(ctx, core.ReceiptFields{
		Date:         core.String("2026-04-10"),
		Number:       core.String("RE-1"),
		Description:  core.String("Druckerpapier"),
		Amount:       &amount,
		Kind:         &kind,
		CostGroupRef: core.String(store.CostGroupRef(cg.ID)),
	})
	require.NoError(t, err)
	ho, err := store.CreateHandover(ctx, core.HandoverFields{
		AsOfDate:    core.String("2026-04-30"),
		PeriodStart: core.String("2026-04-01"),
		PeriodEnd:   core.String("2026-04-30"),
	})
	require.NoError(t, err)

	sheets := &fakeSheets{}
	deps := Deps{
		Dashboard: dashboard.New(store, dashboard.WithClock(fixedNow)),
		Probe:     store,
		Sheets:    sheets,
		Logger:    log.New(log.Config{Output: io.Discard}),
	}
	for _, m := range mutate {
		m(&deps)
	}
	srv, err := NewServer(":0", deps)
	require.NoError(t, err)
	t.Cleanup(func() { srv.limiter.Stop() })

	return fixture{srv: srv, store: store, costGroup: cg.ID, receipt: rc.ID, handover: ho.ID, sheets: sheets}
}

func (f fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.RemoteAddr = "203.0.113.5:1234"
	rec := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestIndexAndHealth(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Buchhaltungs-Manager")
	assert.Contains(t, body, "RE-1")
	assert.Contains(t, body, "4930 Bürobedarf")
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"backend":"ok"`)

	rr = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "requests_total")
	assert.Contains(t, rr.Body.String(), "dashboard_loaded 1")
}

func TestCreateReceiptValidationAndSuccess(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/", "")

	rr := f.do(t, http.MethodGet, "/ui/receipts/new", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Neuen Beleg erfassen")
	assert.Contains(t, rr.Body.String(), `value="2026-04-15"`)

	// missing receipt number
	rr = f.do(t, http.MethodPost, "/ui/receipts", "belegdatum=2026-04-12&betrag=10")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), `"type":"error"`)
	assert.NotContains(t, rr.Header().Get("HX-Trigger"), EventRefresh)
	assert.Contains(t, rr.Body.String(), "<dialog")

	rr = f.do(t, http.MethodPost, "/ui/receipts",
		"belegdatum=2026-04-12&belegnummer=RE-2&betrag=12,50&belegart=quittung&kostengruppe="+f.costGroup)
	require.Equal(t, http.StatusOK, rr.Code)
	trigger := rr.Header().Get("HX-Trigger")
	assert.Contains(t, trigger, "Beleg erstellt")
	assert.Contains(t, trigger, EventRefresh)
	assert.NotContains(t, rr.Body.String(), "<dialog")

	rr = f.do(t, http.MethodGet, "/ui/receipts", "")
	assert.Contains(t, rr.Body.String(), "RE-2")
	assert.Contains(t, rr.Body.String(), "Quittung")
}

func TestEditReceipt(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/", "")

	rr := f.do(t, http.MethodGet, "/ui/receipts/"+f.receipt+"/edit", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Beleg bearbeiten")
	assert.Contains(t, rr.Body.String(), `value="RE-1"`)

	rr = f.do(t, http.MethodPut, "/ui/receipts/"+f.receipt, "belegdatum=2026-04-10&belegnummer=RE-1a&betrag=119")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "Beleg aktualisiert")

	got, err := f.store.GetReceipt(context.Background(), f.receipt)
	require.NoError(t, err)
	assert.Equal(t, "RE-1a", core.Deref(got.Number))

	rr = f.do(t, http.MethodGet, "/ui/receipts/unknown/edit", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteCostGroup(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/", "")

	rr := f.do(t, http.MethodPost, "/ui/cost-groups/delete/confirm", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(t, http.MethodGet, "/ui/cost-groups/"+f.costGroup+"/delete", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Kostengruppe löschen?")
	assert.Contains(t, rr.Body.String(), "Bürobedarf")

	rr = f.do(t, http.MethodPost, "/ui/cost-groups/delete/confirm", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "Kostengruppe gelöscht")

	rr = f.do(t, http.MethodGet, "/ui/charts", "")
	assert.Contains(t, rr.Body.String(), "Ohne Kostengruppe")
}

func TestCancelAndCloseDialogs(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/", "")

	f.do(t, http.MethodGet, "/ui/handovers/new", "")
	rr := f.do(t, http.MethodPost, "/ui/handovers/close", "")
	assert.NotContains(t, rr.Body.String(), "<dialog")

	f.do(t, http.MethodGet, "/ui/handovers/"+f.handover+"/delete", "")
	rr = f.do(t, http.MethodPost, "/ui/handovers/delete/cancel", "")
	assert.NotContains(t, rr.Body.String(), "<dialog")
}

func TestToggleAndFilter(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/", "")

	rr := f.do(t, http.MethodPost, "/ui/toggle/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodPost, "/ui/toggle/receipts", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `id="receipts"`)

	rr = f.do(t, http.MethodGet, "/ui/receipts?kind=quittung", "")
	assert.Contains(t, rr.Body.String(), "Keine Buchungen")

	rr = f.do(t, http.MethodGet, "/ui/receipts?kind=all", "")
	assert.Contains(t, rr.Body.String(), "RE-1")
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/export/handovers/"+f.handover+".csv", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "uebergabe_2026-04-01_2026-04-30.csv")
	body := rr.Body.String()
	assert.Contains(t, body, "Belegdatum;Belegnummer")
	assert.Contains(t, body, "10.04.2026;RE-1;Druckerpapier;Eingangsrechnung;Bürobedarf;119,00")

	rr = f.do(t, http.MethodGet, "/export/handovers/missing.csv", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestExportSheets(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/export/handovers/"+f.handover+"/sheets", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), `"type":"success"`)
	require.Len(t, f.sheets.rows, 3)
	assert.Equal(t, "RE-1", f.sheets.rows[1][1])

	f.sheets.err = errors.New("quota exceeded")
	rr = f.do(t, http.MethodPost, "/export/handovers/"+f.handover+"/sheets", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "quota exceeded")

	off := newFixture(t, func(d *Deps) { d.Sheets = nil })
	rr = off.do(t, http.MethodPost, "/export/handovers/"+off.handover+"/sheets", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestChartData(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/api/charts", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `"state":"loaded"`)
	assert.Contains(t, rr.Body.String(), `"ReceiptCount":1`)
}

func TestMutationsAreRateLimited(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.RateLimitPerMinute = 1 })

	rr := f.do(t, http.MethodPost, "/ui/receipts/close", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodPost, "/ui/receipts/close", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// reads are never throttled
	rr = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
