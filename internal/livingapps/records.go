package livingapps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"buchhaltung/internal/core"
)

func list[W any, E any](ctx context.Context, c *Client, appID string, conv func(core.Meta, W) (E, error)) ([]E, error) {
	var data map[string]wireRecord
	if err := c.call(ctx, http.MethodGet, c.recordsPath(appID), nil, &data); err != nil {
		return nil, err
	}
	recs := flattenRecords(data)
	out := make([]E, 0, len(recs))
	for _, rec := range recs {
		var w W
		if err := rec.decodeFields(&w); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
		e, err := conv(rec.meta(), w)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func get[W any, E any](ctx context.Context, c *Client, appID, id string, conv func(core.Meta, W) (E, error)) (E, error) {
	var zero E
	var rec wireRecord
	if err := c.call(ctx, http.MethodGet, c.recordPath(appID, id), nil, &rec); err != nil {
		if IsNotFound(err) {
			return zero, fmt.Errorf("%w: %w", core.ErrNotFound, err)
		}
		return zero, err
	}
	if rec.ID == "" {
		rec.ID = id
	}
	var w W
	if err := rec.decodeFields(&w); err != nil {
		return zero, fmt.Errorf("decode record %s: %w", id, err)
	}
	return conv(rec.meta(), w)
}

func (c *Client) create(ctx context.Context, appID string, fields any) (core.Ack, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPost, c.recordsPath(appID), fieldsEnvelope{Fields: fields}, &raw); err != nil {
		return core.Ack{}, err
	}
	return parseAck(raw, ""), nil
}

func (c *Client) update(ctx context.Context, appID, id string, fields any) (core.Ack, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPatch, c.recordPath(appID, id), fieldsEnvelope{Fields: fields}, &raw); err != nil {
		return core.Ack{}, err
	}
	return parseAck(raw, id), nil
}

// parseAck reads the record id out of a write response, which is either a
// record object or a record URL. Anything else falls back to the given id.
func parseAck(raw json.RawMessage, fallback string) core.Ack {
	var ack ackResponse
	if err := json.Unmarshal(raw, &ack); err == nil && ack.ID != "" {
		return core.Ack{ID: ack.ID}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if id, ok := core.ExtractRecordID(s); ok {
			return core.Ack{ID: id}
		}
	}
	return core.Ack{ID: fallback}
}

func (c *Client) remove(ctx context.Context, appID, id string) error {
	return c.call(ctx, http.MethodDelete, c.recordPath(appID, id), nil, nil)
}

func (c *Client) ListCostGroups(ctx context.Context) ([]core.CostGroup, error) {
	return list(ctx, c, c.apps.CostGroups, costGroupFromWire)
}

func (c *Client) GetCostGroup(ctx context.Context, id string) (core.CostGroup, error) {
	return get(ctx, c, c.apps.CostGroups, id, costGroupFromWire)
}

func (c *Client) CreateCostGroup(ctx context.Context, f core.CostGroupFields) (core.Ack, error) {
	return c.create(ctx, c.apps.CostGroups, costGroupToWire(f))
}

func (c *Client) UpdateCostGroup(ctx context.Context, id string, f core.CostGroupFields) (core.Ack, error) {
	return c.update(ctx, c.apps.CostGroups, id, costGroupToWire(f))
}

func (c *Client) DeleteCostGroup(ctx context.Context, id string) error {
	return c.remove(ctx, c.apps.CostGroups, id)
}

func (c *Client) ListReceipts(ctx context.Context) ([]core.Receipt, error) {
	return list(ctx, c, c.apps.Receipts, receiptFromWire)
}

func (c *Client) GetReceipt(ctx context.Context, id string) (core.Receipt, error) {
	return get(ctx, c, c.apps.Receipts, id, receiptFromWire)
}

func (c *Client) CreateReceipt(ctx context.Context, f core.ReceiptFields) (core.Ack, error) {
	return c.create(ctx, c.apps.Receipts, receiptToWire(f))
}

func (c *Client) UpdateReceipt(ctx context.Context, id string, f core.ReceiptFields) (core.Ack, error) {
	return c.update(ctx, c.apps.Receipts, id, receiptToWire(f))
}

func (c *Client) DeleteReceipt(ctx context.Context, id string) error {
	return c.remove(ctx, c.apps.Receipts, id)
}

func (c *Client) ListHandovers(ctx context.Context) ([]core.Handover, error) {
	return list(ctx, c, c.apps.Handovers, handoverFromWire)
}

func (c *Client) GetHandover(ctx context.Context, id string) (core.Handover, error) {
	return get(ctx, c, c.apps.Handovers, id, handoverFromWire)
}

func (c *Client) CreateHandover(ctx context.Context, f core.HandoverFields) (core.Ack, error) {
	return c.create(ctx, c.apps.Handovers, handoverToWire(f))
}

func (c *Client) UpdateHandover(ctx context.Context, id string, f core.HandoverFields) (core.Ack, error) {
	return c.update(ctx, c.apps.Handovers, id, handoverToWire(f))
}

func (c *Client) DeleteHandover(ctx context.Context, id string) error {
	return c.remove(ctx, c.apps.Handovers, id)
}
