// Package events relays committed ledger events to journals and brokers.
package events

import (
	"context"
	"strings"
	"time"

	"rubyscore/internal/ledger"
)

// Message is the wire form of a ledger event. Amounts are decimal wei
// strings.
type Message struct {
	Seq       uint64    `json:"seq"`
	Kind      string    `json:"kind"`
	Recipient string    `json:"recipient"`
	Amount    string    `json:"amount"`
	Tax       string    `json:"tax,omitempty"`
	At        time.Time `json:"at"`
}

func FromLedger(e ledger.Event) Message {
	m := Message{
		Seq:       e.Seq,
		Kind:      string(e.Kind),
		Recipient: e.Recipient.Hex(),
		At:        e.At,
	}
	if e.Amount != nil {
		m.Amount = e.Amount.Dec()
	}
	if e.Tax != nil {
		m.Tax = e.Tax.Dec()
	}
	return m
}

// Subject is the broker routing suffix for the message kind.
func (m Message) Subject() string {
	return strings.ToLower(m.Kind)
}

// Publisher delivers messages in order. Publish may be called again with
// the same messages after a failure.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, msgs []Message) error
}

// Journal is a Publisher whose history can be read back.
type Journal interface {
	Publisher
	List(ctx context.Context, since uint64, limit int) ([]Message, error)
}
