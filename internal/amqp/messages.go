package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"mybudget/internal/core"
)

// LedgerEventMessage is the wire form of a ledger event. It carries ids
// and the header amount only; consumers read everything else from the
// store.
type LedgerEventMessage struct {
	core.LedgerEvent
	PublishedAt time.Time `json:"published_at"`
}

func NewLedgerEventMessage(ev core.LedgerEvent) *LedgerEventMessage {
	return &LedgerEventMessage{LedgerEvent: ev, PublishedAt: time.Now().UTC()}
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON decodes and sanity-checks a message body.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("ledger event without event_id")
	}
	if msg.BudgetID <= 0 || msg.TransactionID <= 0 {
		return nil, errors.New("ledger event without budget or transaction id")
	}
	return &msg, nil
}
