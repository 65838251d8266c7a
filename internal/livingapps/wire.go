package livingapps

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
)

// wireRecord is one record as the REST API returns it.
type wireRecord struct {
	ID        string          `json:"id,omitempty"`
	Fields    json.RawMessage `json:"fields"`
	CreatedAt *string         `json:"createdat"`
	UpdatedAt *string         `json:"updatedat"`
}

func (w wireRecord) meta() core.Meta {
	return core.Meta{ID: w.ID, CreatedAt: core.Deref(w.CreatedAt), UpdatedAt: w.UpdatedAt}
}

func (w wireRecord) decodeFields(dst any) error {
	if len(w.Fields) == 0 || string(w.Fields) == "null" {
		return nil
	}
	return json.Unmarshal(w.Fields, dst)
}

// flattenRecords turns the id-keyed list response into a slice, attaching
// each key as the record id. Order is by id so repeated lists compare equal.
func flattenRecords(data map[string]wireRecord) []wireRecord {
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]wireRecord, 0, len(ids))
	for _, id := range ids {
		rec := data[id]
		rec.ID = id
		out = append(out, rec)
	}
	return out
}

type fieldsEnvelope struct {
	Fields any `json:"fields"`
}

type ackResponse struct {
	ID string `json:"id"`
}

type costGroupWire struct {
	Kostengruppenbild   *string `json:"kostengruppenbild,omitempty"`
	Kostengruppenname   *string `json:"kostengruppenname,omitempty"`
	Kostengruppennummer *string `json:"kostengruppennummer,omitempty"`
	Beschreibung        *string `json:"beschreibung,omitempty"`
}

func costGroupToWire(f core.CostGroupFields) costGroupWire {
	return costGroupWire{
		Kostengruppenbild:   f.Image,
		Kostengruppenname:   f.Name,
		Kostengruppennummer: f.Number,
		Beschreibung:        f.Description,
	}
}

func costGroupFromWire(m core.Meta, w costGroupWire) (core.CostGroup, error) {
	return core.CostGroup{
		Meta: m,
		CostGroupFields: core.CostGroupFields{
			Name:        w.Kostengruppenname,
			Number:      w.Kostengruppennummer,
			Description: w.Beschreibung,
			Image:       w.Kostengruppenbild,
		},
	}, nil
}

// wireAmount is the betrag field. It is written as a JSON number; on read
// anything is accepted and kept as text, since stored records are not
// validated by the service.
type wireAmount string

func (a wireAmount) MarshalJSON() ([]byte, error) {
	return []byte(a), nil
}

func (a *wireAmount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = wireAmount(strings.TrimSpace(s))
		return nil
	}
	*a = wireAmount(b)
	return nil
}

type receiptWire struct {
	Belegdatum        *string     `json:"belegdatum,omitempty"`
	Belegnummer       *string     `json:"belegnummer,omitempty"`
	Belegbeschreibung *string     `json:"belegbeschreibung,omitempty"`
	Betrag            *wireAmount `json:"betrag,omitempty"`
	Belegart          *string     `json:"belegart,omitempty"`
	Kostengruppe      *string     `json:"kostengruppe,omitempty"`
	Belegdatei        *string     `json:"belegdatei,omitempty"`
	Notizen           *string     `json:"notizen,omitempty"`
}

func receiptToWire(f core.ReceiptFields) receiptWire {
	w := receiptWire{
		Belegdatum:        f.Date,
		Belegnummer:       f.Number,
		Belegbeschreibung: f.Description,
		Kostengruppe:      f.CostGroupRef,
		Belegdatei:        f.Attachment,
		Notizen:           f.Notes,
	}
	if f.Amount != nil {
		a := wireAmount(f.Amount.String())
		w.Betrag = &a
	}
	if f.Kind != nil {
		k := string(*f.Kind)
		w.Belegart = &k
	}
	return w
}

func receiptFromWire(m core.Meta, w receiptWire) (core.Receipt, error) {
	r := core.Receipt{
		Meta: m,
		ReceiptFields: core.ReceiptFields{
			Date:         w.Belegdatum,
			Number:       w.Belegnummer,
			Description:  w.Belegbeschreibung,
			CostGroupRef: w.Kostengruppe,
			Attachment:   w.Belegdatei,
			Notes:        w.Notizen,
		},
	}
	if w.Betrag != nil && *w.Betrag != "" {
		if d, err := decimal.NewFromString(string(*w.Betrag)); err == nil {
			r.Amount = &d
		} else {
			slog.Warn("Ignoring unreadable receipt amount",
				log.FieldComponent, log.ComponentGateway,
				log.FieldRecordID, m.ID,
				"betrag", string(*w.Betrag))
		}
	}
	if w.Belegart != nil && *w.Belegart != "" {
		k := core.Kind(*w.Belegart)
		r.Kind = &k
	}
	return r, nil
}

type handoverWire struct {
	Stichtag             *string `json:"stichtag,omitempty"`
	PeriodeVon           *string `json:"periode_von,omitempty"`
	PeriodeBis           *string `json:"periode_bis,omitempty"`
	UebergebeneBuchungen *string `json:"uebergebene_buchungen,omitempty"`
	Bemerkungen          *string `json:"bemerkungen,omitempty"`
}

func handoverToWire(f core.HandoverFields) handoverWire {
	return handoverWire{
		Stichtag:             f.AsOfDate,
		PeriodeVon:           f.PeriodStart,
		PeriodeBis:           f.PeriodEnd,
		UebergebeneBuchungen: f.DeliveredReceiptsRef,
		Bemerkungen:          f.Remarks,
	}
}

func handoverFromWire(m core.Meta, w handoverWire) (core.Handover, error) {
	return core.Handover{
		Meta: m,
		HandoverFields: core.HandoverFields{
			AsOfDate:             w.Stichtag,
			PeriodStart:          w.PeriodeVon,
			PeriodEnd:            w.PeriodeBis,
			DeliveredReceiptsRef: w.UebergebeneBuchungen,
			Remarks:              w.Bemerkungen,
		},
	}, nil
}
