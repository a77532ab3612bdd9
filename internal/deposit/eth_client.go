package deposit

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"rubyscore/internal/access"
	"rubyscore/internal/claimsig"
	"rubyscore/internal/contracts"
	"rubyscore/internal/ledger"
)

// EthClient sends transactions to a deployed Rubyscore_Deposit contract.
type EthClient struct {
	client    *ethclient.Client
	contract  *bind.BoundContract
	abi       abi.ABI
	address   common.Address
	chainID   *big.Int
	transacts *bind.TransactOpts
	waitMined bool
}

type EthClientConfig struct {
	RPCURL        string
	PrivateKeyHex string
	Contract      string
	// WaitMined makes writes block until the receipt is available and turns
	// a failed receipt into ErrReverted.
	WaitMined bool
}

// NewEthClient dials the RPC endpoint. Without a private key the client is
// read-only.
func NewEthClient(ctx context.Context, cfg EthClientConfig) (*EthClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("deposit contract address is required")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(contracts.DepositABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	address := common.HexToAddress(cfg.Contract)
	c := &EthClient{
		client:    cli,
		contract:  bind.NewBoundContract(address, parsedABI, cli, cli, cli),
		abi:       parsedABI,
		address:   address,
		chainID:   chainID,
		waitMined: cfg.WaitMined,
	}

	if cfg.PrivateKeyHex != "" {
		pk, err := ParsePrivateKey(cfg.PrivateKeyHex)
		if err != nil {
			return nil, err
		}
		c.transacts, err = bind.NewKeyedTransactorWithChainID(pk, chainID)
		if err != nil {
			return nil, fmt.Errorf("transactor: %w", err)
		}
	}
	return c, nil
}

func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func (c *EthClient) Address() common.Address { return c.address }

func (c *EthClient) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

func (c *EthClient) Close() { c.client.Close() }

func (c *EthClient) Deposit(ctx context.Context, amount *uint256.Int) (TxResult, error) {
	return c.transact(ctx, toBig(amount), "deposit")
}

func (c *EthClient) DepositFor(ctx context.Context, recipient common.Address, amount *uint256.Int) (TxResult, error) {
	return c.transact(ctx, toBig(amount), "deposit0", recipient)
}

func (c *EthClient) Withdraw(ctx context.Context, w ledger.Withdrawal) (TxResult, error) {
	return c.transact(ctx, nil, "withdraw", w.From, w.To, toBig(w.Amount), toBig(w.Tax))
}

func (c *EthClient) WithdrawBatch(ctx context.Context, ws []ledger.Withdrawal) (TxResult, error) {
	froms, tos, amounts, taxes := splitWithdrawals(ws)
	return c.transact(ctx, nil, "withdrawBatch", froms, tos, toBigs(amounts), toBigs(taxes))
}

func (c *EthClient) RemoveFunds(ctx context.Context, to common.Address, amount *uint256.Int) (TxResult, error) {
	return c.transact(ctx, nil, "removeFunds", to, toBig(amount))
}

func (c *EthClient) AddFunds(ctx context.Context, amount *uint256.Int) (TxResult, error) {
	return c.transact(ctx, toBig(amount), "addFunds")
}

// claimTuple mirrors the ClaimParams struct argument of claimProfit.
type claimTuple struct {
	Recipient common.Address
	Amount    *big.Int
	UserNonce *big.Int
}

func (c *EthClient) ClaimProfit(ctx context.Context, params claimsig.ClaimParams, signature []byte) (TxResult, error) {
	tuple := claimTuple{
		Recipient: params.Recipient,
		Amount:    toBig(params.Amount),
		UserNonce: toBig(params.UserNonce),
	}
	return c.transact(ctx, nil, "claimProfit", tuple, signature)
}

func (c *EthClient) GrantRole(ctx context.Context, role access.Role, account common.Address) (TxResult, error) {
	return c.transact(ctx, nil, "grantRole", [32]byte(role), account)
}

func (c *EthClient) RevokeRole(ctx context.Context, role access.Role, account common.Address) (TxResult, error) {
	return c.transact(ctx, nil, "revokeRole", [32]byte(role), account)
}

func (c *EthClient) UserDeposit(ctx context.Context, account common.Address) (*uint256.Int, error) {
	v, err := c.callUint(ctx, "getUserDeposit", account)
	if err != nil {
		return nil, err
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("getUserDeposit: %w", ledger.ErrOverflow)
	}
	return out, nil
}

func (c *EthClient) UserNonce(ctx context.Context, account common.Address) (uint64, error) {
	v, err := c.callUint(ctx, "getUserNonce", account)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("getUserNonce: nonce %s out of range", v)
	}
	return v.Uint64(), nil
}

func (c *EthClient) HasRole(ctx context.Context, role access.Role, account common.Address) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "hasRole", [32]byte(role), account); err != nil {
		return false, fmt.Errorf("hasRole call: %w", mapRevert(err))
	}
	ok, _ := out[0].(bool)
	return ok, nil
}

func (c *EthClient) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := c.client.BlockNumber(ctx)
	return err
}

func (c *EthClient) transact(ctx context.Context, value *big.Int, method string, args ...interface{}) (TxResult, error) {
	if c.transacts == nil {
		return TxResult{}, ErrReadOnly
	}

	opts := *c.transacts
	opts.Context = ctx
	opts.Value = value

	tx, err := c.contract.Transact(&opts, method, args...)
	if err != nil {
		return TxResult{}, fmt.Errorf("%s tx: %w", method, mapRevert(err))
	}
	result := TxResult{TxHash: tx.Hash().Hex()}
	if !c.waitMined {
		return result, nil
	}

	receipt, err := WaitForReceipt(ctx, c.client, tx.Hash())
	if err != nil {
		return result, &PendingError{TxHash: result.TxHash, Err: fmt.Errorf("%s receipt: %w", method, err)}
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return result, fmt.Errorf("%s %s: %w", method, result.TxHash, ErrReverted)
	}
	return result, nil
}

func (c *EthClient) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s call: %w", method, mapRevert(err))
	}
	if len(out) == 0 {
		return nil, errors.New(method + ": empty result")
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected result %T", method, out[0])
	}
	return v, nil
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

func toBigs(vs []*uint256.Int) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = toBig(v)
	}
	return out
}
