package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"buchhaltung/internal/core"
	"buchhaltung/internal/dashboard"
	"buchhaltung/internal/export"
	"buchhaltung/internal/log"
	"buchhaltung/internal/records"
)

// handoverRows builds the export rows for the receipts of one handover.
func (s *Server) handoverRows(r *http.Request, id string) (export.Period, [][]string, error) {
	if err := s.dash.EnsureLoaded(r.Context()); err != nil {
		return export.Period{}, nil, err
	}
	h, err := s.dash.Handover(id)
	if err != nil {
		return export.Period{}, nil, err
	}
	costGroups, receipts, _ := s.dash.Collections()
	p := export.HandoverPeriod(h)
	return p, export.Rows(export.ReceiptsInPeriod(receipts, p), costGroups), nil
}

// handleExportCSV downloads the receipts of a handover period as CSV. The
// path segment is the handover id, optionally with a .csv suffix.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(r.PathValue("file"), ".csv")
	p, rows, err := s.handoverRows(r, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("Übergabe nicht gefunden").Write(w)
			return
		}
		s.audit.LogError(r.Context(), "Export failed", err, log.ComponentExport, log.OpExport,
			log.NewFields().WithRecord(records.EntityHandover, id))
		ErrorResponse(http.StatusBadGateway, "Export fehlgeschlagen").Write(w)
		return
	}

	var buf bytes.Buffer
	buf.WriteString("\ufeff") // spreadsheet apps detect UTF-8 by the BOM
	if err := export.WriteCSV(&buf, rows); err != nil {
		InternalServerError("Export fehlgeschlagen").Write(w)
		return
	}

	NewHTMXResponse().
		Header("Content-Type", "text/csv; charset=utf-8").
		Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Filename())).
		Body(buf.Bytes()).
		Write(w)
}

// handleExportSheets writes the receipts of a handover period into the
// configured Google Sheet.
func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if s.sheets == nil {
		NewHTMXResponse().
			Status(http.StatusServiceUnavailable).
			TriggerNotify(dashboard.Notification{Kind: dashboard.NotifyError, Message: "Google-Sheets-Export ist nicht eingerichtet"}).
			Write(w)
		return
	}

	id := r.PathValue("id")
	_, rows, err := s.handoverRows(r, id)
	if err == nil {
		err = s.sheets.Export(r.Context(), rows)
	}
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, core.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.audit.LogError(r.Context(), "Sheets export failed", err, log.ComponentExport, log.OpExport,
			log.NewFields().WithRecord(records.EntityHandover, id))
		NewHTMXResponse().
			Status(status).
			TriggerNotify(dashboard.Notification{Kind: dashboard.NotifyError, Message: "Fehler beim Export: " + err.Error()}).
			Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Handover exported",
		log.FieldRecordID, id, log.FieldCount, len(rows)-2)
	NewHTMXResponse().
		TriggerNotify(dashboard.Notification{Kind: dashboard.NotifySuccess, Message: "Übergabe nach Google Sheets exportiert"}).
		Write(w)
}
