package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action names what happened to a record.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// RecordChangedMessage announces a successful mutation. It carries only the
// entity and id; consumers fetch the current state themselves.
type RecordChangedMessage struct {
	Entity    string    `json:"entity"`
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordChangedMessage(entity, id string, action Action) *RecordChangedMessage {
	return &RecordChangedMessage{
		Entity:    entity,
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Entity == "" || msg.ID == "" {
		return nil, fmt.Errorf("record changed message without entity or id")
	}
	switch msg.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	return &msg, nil
}
