// Package records defines the storage ports every record backend satisfies:
// the hosted Living Apps gateway, the local SQLite store and the in-memory
// store used for development and tests.
package records

import (
	"context"

	"buchhaltung/internal/core"
)

// Ports for outbound adapters. Update has partial semantics in every
// implementation: nil fields are left untouched.
type (
	CostGroupStore interface {
		ListCostGroups(ctx context.Context) ([]core.CostGroup, error)
		GetCostGroup(ctx context.Context, id string) (core.CostGroup, error)
		CreateCostGroup(ctx context.Context, f core.CostGroupFields) (core.Ack, error)
		UpdateCostGroup(ctx context.Context, id string, f core.CostGroupFields) (core.Ack, error)
		DeleteCostGroup(ctx context.Context, id string) error
	}

	ReceiptStore interface {
		ListReceipts(ctx context.Context) ([]core.Receipt, error)
		GetReceipt(ctx context.Context, id string) (core.Receipt, error)
		CreateReceipt(ctx context.Context, f core.ReceiptFields) (core.Ack, error)
		UpdateReceipt(ctx context.Context, id string, f core.ReceiptFields) (core.Ack, error)
		DeleteReceipt(ctx context.Context, id string) error
	}

	HandoverStore interface {
		ListHandovers(ctx context.Context) ([]core.Handover, error)
		GetHandover(ctx context.Context, id string) (core.Handover, error)
		CreateHandover(ctx context.Context, f core.HandoverFields) (core.Ack, error)
		UpdateHandover(ctx context.Context, id string, f core.HandoverFields) (core.Ack, error)
		DeleteHandover(ctx context.Context, id string) error
	}

	// References builds the URL a receipt stores to point at a cost group.
	References interface {
		CostGroupRef(id string) string
	}

	Backend interface {
		CostGroupStore
		ReceiptStore
		HandoverStore
		References
	}
)

// Entity names used in events and logs.
const (
	EntityCostGroup = "cost_group"
	EntityReceipt   = "receipt"
	EntityHandover  = "handover"
)
