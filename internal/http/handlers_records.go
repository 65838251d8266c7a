package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"buchhaltung/internal/core"
	"buchhaltung/internal/dashboard"
	"buchhaltung/internal/log"
	"buchhaltung/internal/records"
)

var errMalformedBody = errors.New("ungültige Anfrage")

// entityRoutes binds the dialog operations of one record type to a URL prefix.
type entityRoutes struct {
	base   string
	entity string

	open          func(id string) error
	close         func()
	submit        func(ctx context.Context, id string, r *http.Request) (dashboard.Notification, error)
	requestDelete func(id string) error
	cancelDelete  func()
	confirmDelete func(ctx context.Context) (dashboard.Notification, error)
}

func malformed(err error) (dashboard.Notification, error) {
	err = fmt.Errorf("%w: %v", errMalformedBody, err)
	return dashboard.Notification{Kind: dashboard.NotifyError, Message: "Fehler: " + errMalformedBody.Error()}, err
}

func (s *Server) entities() []entityRoutes {
	d := s.dash
	return []entityRoutes{
		{
			base:   "/ui/receipts",
			entity: records.EntityReceipt,
			open:   d.OpenReceiptDialog,
			close:  d.CloseReceiptDialog,
			submit: func(ctx context.Context, id string, r *http.Request) (dashboard.Notification, error) {
				form, err := ParseReceiptForm(r)
				if err != nil {
					return malformed(err)
				}
				return d.SubmitReceipt(ctx, id, form)
			},
			requestDelete: d.RequestReceiptDelete,
			cancelDelete:  d.CancelReceiptDelete,
			confirmDelete: d.ConfirmReceiptDelete,
		},
		{
			base:   "/ui/cost-groups",
			entity: records.EntityCostGroup,
			open:   d.OpenCostGroupDialog,
			close:  d.CloseCostGroupDialog,
			submit: func(ctx context.Context, id string, r *http.Request) (dashboard.Notification, error) {
				form, err := ParseCostGroupForm(r)
				if err != nil {
					return malformed(err)
				}
				return d.SubmitCostGroup(ctx, id, form)
			},
			requestDelete: d.RequestCostGroupDelete,
			cancelDelete:  d.CancelCostGroupDelete,
			confirmDelete: d.ConfirmCostGroupDelete,
		},
		{
			base:   "/ui/handovers",
			entity: records.EntityHandover,
			open:   d.OpenHandoverDialog,
			close:  d.CloseHandoverDialog,
			submit: func(ctx context.Context, id string, r *http.Request) (dashboard.Notification, error) {
				form, err := ParseHandoverForm(r)
				if err != nil {
					return malformed(err)
				}
				return d.SubmitHandover(ctx, id, form)
			},
			requestDelete: d.RequestHandoverDelete,
			cancelDelete:  d.CancelHandoverDelete,
			confirmDelete: d.ConfirmHandoverDelete,
		},
	}
}

// registerEntity mounts the dialog routes of e. Every route answers with the
// re-rendered dialogs region.
func (s *Server) registerEntity(e entityRoutes) {
	s.handle("GET "+e.base+"/new", func(w http.ResponseWriter, r *http.Request) {
		s.respondOpen(w, r, e.open(""))
	})
	s.handle("GET "+e.base+"/{id}/edit", func(w http.ResponseWriter, r *http.Request) {
		s.respondOpen(w, r, e.open(r.PathValue("id")))
	})
	s.handle("POST "+e.base+"/close", func(w http.ResponseWriter, r *http.Request) {
		e.close()
		s.writeView(w, r, NewHTMXResponse(), "dialogs")
	})
	s.handle("POST "+e.base, func(w http.ResponseWriter, r *http.Request) {
		n, err := e.submit(r.Context(), "", r)
		s.respondMutation(w, r, e.entity, n, err)
	})
	s.handle("PUT "+e.base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		n, err := e.submit(r.Context(), r.PathValue("id"), r)
		s.respondMutation(w, r, e.entity, n, err)
	})
	s.handle("GET "+e.base+"/{id}/delete", func(w http.ResponseWriter, r *http.Request) {
		s.respondOpen(w, r, e.requestDelete(r.PathValue("id")))
	})
	s.handle("POST "+e.base+"/delete/cancel", func(w http.ResponseWriter, r *http.Request) {
		e.cancelDelete()
		s.writeView(w, r, NewHTMXResponse(), "dialogs")
	})
	s.handle("POST "+e.base+"/delete/confirm", func(w http.ResponseWriter, r *http.Request) {
		n, err := e.confirmDelete(r.Context())
		s.respondMutation(w, r, e.entity, n, err)
	})
}

func (s *Server) respondOpen(w http.ResponseWriter, r *http.Request, err error) {
	b := NewHTMXResponse()
	if err != nil {
		b.Status(statusFor(err)).
			TriggerNotify(dashboard.Notification{Kind: dashboard.NotifyError, Message: "Eintrag nicht gefunden"})
	}
	s.writeView(w, r, b, "dialogs")
}

// respondMutation reports a submit or delete outcome as a toast. Success
// also refreshes every section.
func (s *Server) respondMutation(w http.ResponseWriter, r *http.Request, entity string, n dashboard.Notification, err error) {
	b := NewHTMXResponse().TriggerNotify(n)
	if err == nil {
		b.TriggerRefresh()
	} else {
		status := statusFor(err)
		logger := log.FromContext(r.Context())
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), "Record mutation failed", log.FieldEntity, entity, log.FieldError, err)
		} else {
			logger.InfoContext(r.Context(), "Record mutation rejected", log.FieldEntity, entity, log.FieldError, err)
		}
		b.Status(status)
	}
	s.writeView(w, r, b, "dialogs")
}

func statusFor(err error) int {
	var fe *dashboard.FieldError
	switch {
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.As(err, &fe),
		errors.Is(err, core.ErrMissingField),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrBusy), errors.Is(err, dashboard.ErrNoDeleteTarget):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
