package ledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Payout moves native asset out of the reserve.
type Payout struct {
	To     common.Address
	Amount *uint256.Int
}

// Transferor is the native-asset rail. Transfer applies all payouts of one
// ledger call or none of them.
type Transferor interface {
	Transfer(payouts []Payout) error
}

// Wallets is an in-memory Transferor that tracks what external accounts
// received.
type Wallets struct {
	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
}

func NewWallets() *Wallets {
	return &Wallets{balances: make(map[common.Address]*uint256.Int)}
}

func (w *Wallets) Transfer(payouts []Payout) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	staged := make(map[common.Address]*uint256.Int, len(payouts))
	for _, p := range payouts {
		current, ok := staged[p.To]
		if !ok {
			current = w.balanceWithoutLocking(p.To)
		}
		next, overflow := new(uint256.Int).AddOverflow(current, p.Amount)
		if overflow {
			return fmt.Errorf("credit %s: %w", p.To.Hex(), ErrOverflow)
		}
		staged[p.To] = next
	}
	for addr, bal := range staged {
		w.balances[addr] = bal
	}
	return nil
}

func (w *Wallets) BalanceOf(addr common.Address) *uint256.Int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balanceWithoutLocking(addr)
}

func (w *Wallets) balanceWithoutLocking(addr common.Address) *uint256.Int {
	if bal, ok := w.balances[addr]; ok {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}
