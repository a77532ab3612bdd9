package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type EventKind string

const (
	EventDeposit    EventKind = "Deposit"
	EventWithdrawal EventKind = "Withdrawal"
	EventClaimed    EventKind = "Claimed"
)

// Event is emitted once per successful mutation. For withdrawals Amount is
// the net amount paid out and Tax the part kept in the reserve.
type Event struct {
	Seq       uint64         `json:"seq"`
	Kind      EventKind      `json:"kind"`
	Recipient common.Address `json:"recipient"`
	Amount    *uint256.Int   `json:"amount"`
	Tax       *uint256.Int   `json:"tax,omitempty"`
	At        time.Time      `json:"at"`
}

// Sink receives committed events in order. Record is called with the ledger
// lock held and must not block.
type Sink interface {
	Record(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Record(e Event) { f(e) }
