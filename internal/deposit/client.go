package deposit

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rubyscore/internal/access"
	"rubyscore/internal/claimsig"
	"rubyscore/internal/ledger"
)

var (
	ErrReadOnly = errors.New("client is read-only")
	ErrReverted = errors.New("transaction reverted")
	ErrPending  = errors.New("transaction pending")
)

// PendingError reports a write that was broadcast but whose outcome is not
// known yet. Sending it again would apply it twice.
type PendingError struct {
	TxHash string
	Err    error
}

func (e *PendingError) Error() string {
	return "tx " + e.TxHash + " pending: " + e.Err.Error()
}

func (e *PendingError) Unwrap() error { return e.Err }

func (e *PendingError) Is(target error) bool { return target == ErrPending }

// Client abstracts the deposit contract. Writes are sent from the client's
// own account.
type Client interface {
	Deposit(ctx context.Context, amount *uint256.Int) (TxResult, error)
	DepositFor(ctx context.Context, recipient common.Address, amount *uint256.Int) (TxResult, error)
	Withdraw(ctx context.Context, w ledger.Withdrawal) (TxResult, error)
	WithdrawBatch(ctx context.Context, ws []ledger.Withdrawal) (TxResult, error)
	RemoveFunds(ctx context.Context, to common.Address, amount *uint256.Int) (TxResult, error)
	AddFunds(ctx context.Context, amount *uint256.Int) (TxResult, error)
	ClaimProfit(ctx context.Context, params claimsig.ClaimParams, signature []byte) (TxResult, error)
	GrantRole(ctx context.Context, role access.Role, account common.Address) (TxResult, error)
	RevokeRole(ctx context.Context, role access.Role, account common.Address) (TxResult, error)

	UserDeposit(ctx context.Context, account common.Address) (*uint256.Int, error)
	UserNonce(ctx context.Context, account common.Address) (uint64, error)
	HasRole(ctx context.Context, role access.Role, account common.Address) (bool, error)
}

// HealthChecker is implemented by clients with a remote dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type TxResult struct {
	TxHash string         `json:"txHash"`
	Events []ledger.Event `json:"events,omitempty"`
}

// Retryable reports whether a failed call may succeed if sent again.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case ledger.IsRejection(err),
		errors.Is(err, ErrReverted),
		errors.Is(err, ErrReadOnly),
		errors.Is(err, ErrPending),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func splitWithdrawals(ws []ledger.Withdrawal) (froms, tos []common.Address, amounts, taxes []*uint256.Int) {
	froms = make([]common.Address, len(ws))
	tos = make([]common.Address, len(ws))
	amounts = make([]*uint256.Int, len(ws))
	taxes = make([]*uint256.Int, len(ws))
	for i, w := range ws {
		froms[i], tos[i], amounts[i], taxes[i] = w.From, w.To, w.Amount, w.Tax
	}
	return froms, tos, amounts, taxes
}
