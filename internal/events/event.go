// Package events publishes a feed of ledger mutations for other consumers.
// Publishing is best effort: a failure never undoes the mutation.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"ledgerbook/internal/core"
)

type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// LedgerEvent describes one successful mutation.
type LedgerEvent struct {
	Op        Op              `json:"op"`
	LedgerID  core.ID         `json:"ledger_id"`
	UserID    core.ID         `json:"user_id,omitempty"`
	Type      core.EntryType  `json:"type,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewLedgerEvent builds an event for l stamped with the current time.
func NewLedgerEvent(op Op, l core.Ledger, userID core.ID) LedgerEvent {
	if userID.IsZero() {
		userID = l.UserID
	}
	return LedgerEvent{
		Op:        op,
		LedgerID:  l.ID,
		UserID:    userID,
		Type:      l.Type,
		Amount:    l.Amount,
		Timestamp: time.Now().UTC(),
	}
}

// RoutingKey is the topic suffix for the event, e.g. "ledger.events.created".
func (e LedgerEvent) RoutingKey(prefix string) string {
	return prefix + "." + string(e.Op)
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	err := json.Unmarshal(data, &e)
	return e, err
}

type Publisher interface {
	Publish(ctx context.Context, e LedgerEvent) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, LedgerEvent) error { return nil }

func (Nop) Close() error { return nil }
