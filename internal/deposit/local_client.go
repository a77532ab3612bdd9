package deposit

import (
	"context"
	"encoding/binary"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"rubyscore/internal/access"
	"rubyscore/internal/claimsig"
	"rubyscore/internal/ledger"
)

// LocalClient drives an in-process ledger as a fixed caller. Transaction
// hashes are derived from the caller, the method and a per-client counter.
type LocalClient struct {
	ledger *ledger.Ledger
	caller common.Address
	calls  atomic.Uint64
}

func NewLocalClient(l *ledger.Ledger, caller common.Address) *LocalClient {
	return &LocalClient{ledger: l, caller: caller}
}

func (c *LocalClient) Ledger() *ledger.Ledger { return c.ledger }

func (c *LocalClient) Caller() common.Address { return c.caller }

func (c *LocalClient) Deposit(ctx context.Context, amount *uint256.Int) (TxResult, error) {
	return c.DepositFor(ctx, c.caller, amount)
}

func (c *LocalClient) DepositFor(ctx context.Context, recipient common.Address, amount *uint256.Int) (TxResult, error) {
	if err := ctx.Err(); err != nil {
		return TxResult{}, err
	}
	return c.result("deposit", func() ([]ledger.Event, error) {
		return c.ledger.DepositFor(c.caller, recipient, amount)
	})
}

func (c *LocalClient) Withdraw(ctx context.Context, w ledger.Withdrawal) (TxResult, error) {
	if err := ctx.Err(); err != nil {
		return TxResult{}, err
	}
	return c.result("withdraw", func() ([]ledger.Event, error) {
		return c.ledger.Withdraw(c.caller, w)
	})
}

func (c *LocalClient) WithdrawBatch(ctx context.Context, ws []ledger.Withdrawal) (TxResult, error) {
	if err := ctx.Err(); err != nil {
		return TxResult{}, err
	}
	froms, tos, amounts, taxes := splitWithdrawals(ws)
	return c.result("withdrawBatch", func() ([]ledger.Event, error) {
		return c.ledger.WithdrawBatch(c.caller, froms, tos, amounts, taxes)
	})
}

func (c *LocalClient) RemoveFunds(ctx context.Context, to common.Address, amount *uint256.Int) (TxResult, error) {
	if err := ctx.Err(); err != nil {
		return TxResult{}, err
	}
	return c.result("removeFunds", func() ([]ledger.Event, error) {
		return c.ledger.RemoveFunds(c.caller, to, amount)
	})
}

func (c *LocalClient) AddFunds(ctx context.Context, amount *uint256.Int) (TxResult, error) {
	if err := ctx.Err(); err != nil {
		return TxResult{}, err
	}
	return c.result("addFunds", func() ([]ledger.Event, error) {
		return c.ledger.AddFunds(c.caller, amount)
	})
}

func (c *LocalClient) ClaimProfit(ctx context.Context, params claimsig.ClaimParams, signature []byte) (TxResult, error) {
	if err := ctx.Err(); err != nil {
		return TxResult{}, err
	}
	return c.result("claimProfit", func() ([]ledger.Event, error) {
		return c.ledger.ClaimProfit(c.caller, params, signature)
	})
}

func (c *LocalClient) GrantRole(ctx context.Context, role access.Role, account common.Address) (TxResult, error) {
	if err := ctx.Err(); err != nil {
		return TxResult{}, err
	}
	return c.result("grantRole", func() ([]ledger.Event, error) {
		return nil, c.ledger.GrantRole(c.caller, role, account)
	})
}

func (c *LocalClient) RevokeRole(ctx context.Context, role access.Role, account common.Address) (TxResult, error) {
	if err := ctx.Err(); err != nil {
		return TxResult{}, err
	}
	return c.result("revokeRole", func() ([]ledger.Event, error) {
		return nil, c.ledger.RevokeRole(c.caller, role, account)
	})
}

func (c *LocalClient) UserDeposit(ctx context.Context, account common.Address) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.ledger.UserDeposit(account), nil
}

func (c *LocalClient) UserNonce(ctx context.Context, account common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.ledger.UserNonce(account), nil
}

func (c *LocalClient) HasRole(ctx context.Context, role access.Role, account common.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.ledger.HasRole(role, account), nil
}

func (c *LocalClient) result(method string, call func() ([]ledger.Event, error)) (TxResult, error) {
	events, err := call()
	if err != nil {
		return TxResult{}, err
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], c.calls.Add(1))
	hash := crypto.Keccak256Hash([]byte(method), c.caller.Bytes(), n[:])
	return TxResult{TxHash: hash.Hex(), Events: events}, nil
}
