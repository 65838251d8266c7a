package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"buchhaltung/internal/amqp"
	"buchhaltung/internal/core"
	"buchhaltung/internal/records"
)

// Publisher announces record changes. *amqp.Client satisfies it.
type Publisher interface {
	PublishRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error
	Close() error
}

// RecordService decorates a backend: mutations go to the backend first and
// a change event is published afterwards. Publishing is best effort; the
// mutation result never depends on it.
type RecordService struct {
	records.Backend
	publisher Publisher
	closers   []func() error
}

var _ records.Backend = (*RecordService)(nil)

// NewRecordService wraps backend. publisher may be nil. closers run on Close
// after the publisher is closed.
func NewRecordService(backend records.Backend, publisher Publisher, closers ...func() error) *RecordService {
	return &RecordService{Backend: backend, publisher: publisher, closers: closers}
}

func (s *RecordService) publish(ctx context.Context, entity, id string, action amqp.Action) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewRecordChangedMessage(entity, id, action)
	if err := s.publisher.PublishRecordChanged(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Failed to publish record change",
			"entity", entity,
			"id", id,
			"action", action,
			"error", err)
	}
}

func (s *RecordService) CreateCostGroup(ctx context.Context, f core.CostGroupFields) (core.Ack, error) {
	ack, err := s.Backend.CreateCostGroup(ctx, f)
	if err != nil {
		return ack, err
	}
	s.publish(ctx, records.EntityCostGroup, ack.ID, amqp.ActionCreated)
	return ack, nil
}

func (s *RecordService) UpdateCostGroup(ctx context.Context, id string, f core.CostGroupFields) (core.Ack, error) {
	ack, err := s.Backend.UpdateCostGroup(ctx, id, f)
	if err != nil {
		return ack, err
	}
	s.publish(ctx, records.EntityCostGroup, id, amqp.ActionUpdated)
	return ack, nil
}

func (s *RecordService) DeleteCostGroup(ctx context.Context, id string) error {
	if err := s.Backend.DeleteCostGroup(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, records.EntityCostGroup, id, amqp.ActionDeleted)
	return nil
}

func (s *RecordService) CreateReceipt(ctx context.Context, f core.ReceiptFields) (core.Ack, error) {
	ack, err := s.Backend.CreateReceipt(ctx, f)
	if err != nil {
		return ack, err
	}
	s.publish(ctx, records.EntityReceipt, ack.ID, amqp.ActionCreated)
	return ack, nil
}

func (s *RecordService) UpdateReceipt(ctx context.Context, id string, f core.ReceiptFields) (core.Ack, error) {
	ack, err := s.Backend.UpdateReceipt(ctx, id, f)
	if err != nil {
		return ack, err
	}
	s.publish(ctx, records.EntityReceipt, id, amqp.ActionUpdated)
	return ack, nil
}

func (s *RecordService) DeleteReceipt(ctx context.Context, id string) error {
	if err := s.Backend.DeleteReceipt(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, records.EntityReceipt, id, amqp.ActionDeleted)
	return nil
}

func (s *RecordService) CreateHandover(ctx context.Context, f core.HandoverFields) (core.Ack, error) {
	ack, err := s.Backend.CreateHandover(ctx, f)
	if err != nil {
		return ack, err
	}
	s.publish(ctx, records.EntityHandover, ack.ID, amqp.ActionCreated)
	return ack, nil
}

func (s *RecordService) UpdateHandover(ctx context.Context, id string, f core.HandoverFields) (core.Ack, error) {
	ack, err := s.Backend.UpdateHandover(ctx, id, f)
	if err != nil {
		return ack, err
	}
	s.publish(ctx, records.EntityHandover, id, amqp.ActionUpdated)
	return ack, nil
}

func (s *RecordService) DeleteHandover(ctx context.Context, id string) error {
	if err := s.Backend.DeleteHandover(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, records.EntityHandover, id, amqp.ActionDeleted)
	return nil
}

// Close releases the publisher and any backend resources.
func (s *RecordService) Close() error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close record service: %w", errors.Join(errs...))
	}
	return nil
}
