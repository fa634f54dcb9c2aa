package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// StaleViewsMessage tells other processes that some of an owner's read views
// changed. It carries only view names; receivers drop their cached copies and
// reload on the next read.
type StaleViewsMessage struct {
	Owner     string    `json:"owner"`
	Views     []string  `json:"views"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStaleViewsMessage creates a message stamped with the current time
func NewStaleViewsMessage(owner string, views []string) *StaleViewsMessage {
	return &StaleViewsMessage{
		Owner:     owner,
		Views:     views,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *StaleViewsMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StaleViewsMessageFromJSON decodes a message. Messages without an owner are
// rejected since they cannot be routed to any cache.
func StaleViewsMessageFromJSON(data []byte) (*StaleViewsMessage, error) {
	var msg StaleViewsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Owner == "" {
		return nil, errors.New("stale views message without owner")
	}
	return &msg, nil
}
