package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"buchhaltung/internal/core"
)

func receipt(id, date, number, amount string, k core.Kind, ref string) core.Receipt {
	r := core.Receipt{Meta: core.Meta{ID: id}}
	r.Date = core.String(date)
	r.Number = core.String(number)
	if amount != "" {
		a, err := core.ParseAmount(amount)
		if err != nil {
			panic(err)
		}
		r.Amount = &a
	}
	if k != "" {
		r.Kind = &k
	}
	r.CostGroupRef = core.String(ref)
	return r
}

func TestHandoverPeriod(t *testing.T) {
	h := core.Handover{HandoverFields: core.HandoverFields{
		AsOfDate:    core.String("2026-04-05"),
		PeriodStart: core.String("2026-03-01"),
	}}
	p := HandoverPeriod(h)
	assert.Equal(t, Period{From: "2026-03-01", To: "2026-04-05"}, p)
	assert.Equal(t, "uebergabe_2026-03-01_2026-04-05.csv", p.Filename())

	h.PeriodEnd = core.String("2026-03-31T00:00:00")
	assert.Equal(t, "2026-03-31", HandoverPeriod(h).To)

	assert.Equal(t, "uebergabe_anfang_heute.csv", Period{}.Filename())
}

func TestReceiptsInPeriod(t *testing.T) {
	receipts := []core.Receipt{
		receipt("c", "2026-03-31T18:00", "3", "1", "", ""),
		receipt("a", "2026-03-01", "1", "1", "", ""),
		receipt("x", "2026-02-28", "0", "1", "", ""),
		receipt("u", "", "9", "1", "", ""),
		receipt("b", "2026-03-15", "2", "1", "", ""),
		receipt("y", "2026-04-01", "4", "1", "", ""),
	}
	got := ReceiptsInPeriod(receipts, Period{From: "2026-03-01", To: "2026-03-31"})
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	assert.Len(t, ReceiptsInPeriod(receipts, Period{}), 5, "open period keeps every dated receipt")
}

func TestRowsAndCSV(t *testing.T) {
	const app = "698db1e550eb37f16846d889"
	groups := []core.CostGroup{{
		Meta:            core.Meta{ID: "aaaaaaaaaaaaaaaaaaaaaaa1"},
		CostGroupFields: core.CostGroupFields{Name: core.String("Bürobedarf")},
	}}
	receipts := []core.Receipt{
		receipt("1", "2026-03-02", "Q-1", "1234,5", core.KindReceiptSimple,
			core.RecordURL("https://my.living-apps.de/rest", app, "aaaaaaaaaaaaaaaaaaaaaaa1")),
		receipt("2", "2026-03-03", "X-1", "", core.Kind("spende"), ""),
	}

	rows := Rows(receipts, groups)
	require.Len(t, rows, 4)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"02.03.2026", "Q-1", "", "Quittung", "Bürobedarf", "1234,50"}, rows[1])
	assert.Equal(t, []string{"03.03.2026", "X-1", "", "spende", "-", "0,00"}, rows[2])
	assert.Equal(t, "1234,50", rows[3][5])

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Belegdatum;Belegnummer;Beschreibung;Belegart;Kostengruppe;Betrag", lines[0])
	assert.Equal(t, "02.03.2026;Q-1;;Quittung;Bürobedarf;1234,50", lines[1])
}

func TestRowsQuoteFormulaText(t *testing.T) {
	r := receipt("1", "2026-03-02", "+49", "-12,5", core.Kind("@typ"), "")
	r.Description = core.String(`=HYPERLINK("http://example.com")`)

	rows := Rows([]core.Receipt{r}, nil)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"02.03.2026", "'+49", `'=HYPERLINK("http://example.com")`, "'@typ", "-", "-12,50"}, rows[1])
	assert.Equal(t, "-12,50", rows[2][5])
}

func TestSheetsExporter(t *testing.T) {
	var (
		mu      sync.Mutex
		calls   []string
		written gsheet.ValueRange
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
			io.WriteString(w, `{"spreadsheetId":"sheet-1"}`)
		case r.Method == http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&written); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			io.WriteString(w, `{"updatedCells":4}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	exp, err := NewSheetsExporter(ctx, "sheet-1", "Übergabe",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	rows := [][]string{{"Belegnummer", "Betrag"}, {"Q-1", "12,50"}}
	require.NoError(t, exp.Export(ctx, rows))

	require.Len(t, calls, 2)
	assert.True(t, strings.HasPrefix(calls[0], "POST /v4/spreadsheets/sheet-1/values/"), calls[0])
	assert.True(t, strings.HasPrefix(calls[1], "PUT /v4/spreadsheets/sheet-1/values/"), calls[1])
	require.Len(t, written.Values, 2)
	assert.Equal(t, "Q-1", written.Values[1][0])
}

func TestSheetsExporterValidation(t *testing.T) {
	ctx := context.Background()
	_, err := NewSheetsExporter(ctx, "", "Übergabe")
	assert.Error(t, err)
	_, err = NewSheetsExporter(ctx, "id", " ")
	assert.Error(t, err)
	_, err = NewSheetsExporterFromCredentials(ctx, "id", "Übergabe", "", "")
	assert.ErrorContains(t, err, "missing service account credentials")
}
