package dashboard

import (
	"errors"
	"fmt"
)

// LoadState is the lifecycle of a collection (and of the dashboard as a
// whole): Idle → Loading → Loaded | Failed.
type LoadState int

const (
	Idle LoadState = iota
	Loading
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

// NotificationKind is "success" or "error".
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Notification is a toast for the user.
type Notification struct {
	Kind    NotificationKind `json:"type"`
	Message string           `json:"message"`
}

func success(msg string) Notification { return Notification{Kind: NotifySuccess, Message: msg} }

func failure(prefix string, err error) Notification {
	msg := "Unbekannter Fehler"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Notification{Kind: NotifyError, Message: prefix + msg}
}

var (
	// ErrBusy rejects a submit while the previous one is still outstanding.
	ErrBusy = errors.New("Vorgang läuft bereits")
	// ErrNoDeleteTarget is returned by a confirm without a pending delete.
	ErrNoDeleteTarget = errors.New("kein Eintrag zum Löschen ausgewählt")
)

// entityUI is the discrete UI state of one entity type. It holds at most one
// create/edit dialog and at most one delete confirmation.
type entityUI[T, F any] struct {
	dialogOpen bool
	editing    *T // nil while creating
	form       F
	submitting bool

	deleteTarget *T
	deleting     bool
}

func (u *entityUI[T, F]) open(record *T, form F) {
	u.dialogOpen = true
	u.editing = record
	u.form = form
}

func (u *entityUI[T, F]) close() {
	var zero F
	u.dialogOpen = false
	u.editing = nil
	u.form = zero
}

// Dialog is the render state of a create/edit dialog.
type Dialog[F any] struct {
	Open       bool
	Editing    bool
	RecordID   string
	Form       F
	Submitting bool
}

// DeleteDialog is the render state of a delete confirmation.
type DeleteDialog struct {
	Open     bool
	RecordID string
	Name     string
	Deleting bool
}

// Section names a collapsible list of the dashboard.
type Section string

const (
	SectionReceipts   Section = "receipts"
	SectionCostGroups Section = "cost-groups"
	SectionHandovers  Section = "handovers"
)
