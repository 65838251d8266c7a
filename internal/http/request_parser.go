package http

// This file parses the dialog forms. Bodies may be form-encoded (htmx) or
// JSON (scripts, belegctl); both map onto the same dashboard form types.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"buchhaltung/internal/dashboard"
)

// maxBodyBytes bounds dialog submissions.
const maxBodyBytes = 64 << 10

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]interface{}
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errors.New("request body too large")
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
		}
		return p.err
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Form field names. They match the wire names of the hosted apps.
const (
	fieldReceiptDate        = "belegdatum"
	fieldReceiptNumber      = "belegnummer"
	fieldReceiptDescription = "belegbeschreibung"
	fieldReceiptAmount      = "betrag"
	fieldReceiptKind        = "belegart"
	fieldReceiptCostGroup   = "kostengruppe"
	fieldReceiptNotes       = "notizen"

	fieldCostGroupName        = "kostengruppenname"
	fieldCostGroupNumber      = "kostengruppennummer"
	fieldCostGroupDescription = "beschreibung"

	fieldHandoverAsOf    = "stichtag"
	fieldHandoverFrom    = "periode_von"
	fieldHandoverTo      = "periode_bis"
	fieldHandoverRemarks = "bemerkungen"
)

func ParseReceiptForm(r *http.Request) (dashboard.ReceiptForm, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return dashboard.ReceiptForm{}, err
	}
	return dashboard.ReceiptForm{
		Date:        p.Get(fieldReceiptDate),
		Number:      p.Get(fieldReceiptNumber),
		Description: p.Get(fieldReceiptDescription),
		Amount:      p.Get(fieldReceiptAmount),
		Kind:        p.Get(fieldReceiptKind),
		CostGroupID: p.Get(fieldReceiptCostGroup),
		Notes:       p.Get(fieldReceiptNotes),
	}, nil
}

func ParseCostGroupForm(r *http.Request) (dashboard.CostGroupForm, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return dashboard.CostGroupForm{}, err
	}
	return dashboard.CostGroupForm{
		Name:        p.Get(fieldCostGroupName),
		Number:      p.Get(fieldCostGroupNumber),
		Description: p.Get(fieldCostGroupDescription),
	}, nil
}

func ParseHandoverForm(r *http.Request) (dashboard.HandoverForm, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return dashboard.HandoverForm{}, err
	}
	return dashboard.HandoverForm{
		AsOfDate:    p.Get(fieldHandoverAsOf),
		PeriodStart: p.Get(fieldHandoverFrom),
		PeriodEnd:   p.Get(fieldHandoverTo),
		Remarks:     p.Get(fieldHandoverRemarks),
	}, nil
}
