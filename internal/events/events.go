// Package events publishes ledger changes to interested consumers.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// EventType is also the AMQP routing key of the event.
type EventType string

const (
	TransactionRecorded EventType = "transaction.recorded"
	TransactionUpdated  EventType = "transaction.updated"
	TransactionDeleted  EventType = "transaction.deleted"
)

// AllTypes lists every event type the ledger emits.
var AllTypes = []EventType{TransactionRecorded, TransactionUpdated, TransactionDeleted}

// LedgerEvent describes a committed change to a transaction and its effect
// on the account balance.
type LedgerEvent struct {
	Type          EventType `json:"type"`
	UserID        string    `json:"user_id"`
	AccountID     string    `json:"account_id"`
	TransactionID string    `json:"transaction_id"`
	Kind          string    `json:"kind,omitempty"`
	Amount        float64   `json:"amount"`
	BalanceDelta  float64   `json:"balance_delta"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewLedgerEvent stamps the event with the current UTC time.
func NewLedgerEvent(eventType EventType, userID, accountID, transactionID, kind string, amount, delta float64) LedgerEvent {
	return LedgerEvent{
		Type:          eventType,
		UserID:        userID,
		AccountID:     accountID,
		TransactionID: transactionID,
		Kind:          kind,
		Amount:        amount,
		BalanceDelta:  delta,
		OccurredAt:    time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event published by ToJSON.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	err := json.Unmarshal(data, &e)
	return e, err
}

// Publisher delivers ledger events.
type Publisher interface {
	Publish(ctx context.Context, event LedgerEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, LedgerEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }
