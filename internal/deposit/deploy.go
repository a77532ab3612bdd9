package deposit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"rubyscore/internal/ledger"
)

var receiptPollInterval = 2 * time.Second

// Artifact is the subset of a Hardhat build artifact needed to deploy.
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

func LoadArtifact(path string) (Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return Artifact{}, fmt.Errorf("decode artifact: %w", err)
	}
	return a, nil
}

func (a Artifact) parse() (abi.ABI, []byte, error) {
	if len(a.ABI) == 0 {
		return abi.ABI{}, nil, errors.New("artifact has no abi")
	}
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, nil, fmt.Errorf("parse artifact abi: %w", err)
	}
	code, err := hexutil.Decode(a.Bytecode)
	if err != nil || len(code) == 0 {
		return abi.ABI{}, nil, fmt.Errorf("artifact bytecode is missing or malformed")
	}
	return parsed, code, nil
}

type DeployConfig struct {
	RPCURL        string
	PrivateKeyHex string
}

type Deployment struct {
	Contract string         `json:"contract"`
	Address  common.Address `json:"address"`
	TxHash   common.Hash    `json:"txHash"`
	ChainID  *big.Int       `json:"chainId"`
	Block    uint64         `json:"block"`
	Admin    common.Address `json:"admin"`
	Operator common.Address `json:"operator"`
}

// Deploy sends the constructor transaction and waits for it to be mined.
func Deploy(ctx context.Context, cfg DeployConfig, artifact Artifact, admin, operator common.Address) (Deployment, error) {
	if admin == (common.Address{}) || operator == (common.Address{}) {
		return Deployment{}, ledger.ErrInvalidAddress
	}
	parsed, code, err := artifact.parse()
	if err != nil {
		return Deployment{}, err
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return Deployment{}, fmt.Errorf("dial rpc: %w", err)
	}
	defer cli.Close()

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return Deployment{}, fmt.Errorf("fetch chain id: %w", err)
	}
	key, err := ParsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return Deployment{}, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return Deployment{}, fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx

	address, tx, _, err := bind.DeployContract(opts, parsed, code, cli, admin, operator)
	if err != nil {
		return Deployment{}, fmt.Errorf("deploy tx: %w", mapRevert(err))
	}

	receipt, err := WaitForReceipt(ctx, cli, tx.Hash())
	if err != nil {
		return Deployment{}, fmt.Errorf("deploy receipt: %w", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return Deployment{}, fmt.Errorf("deploy %s: %w", tx.Hash().Hex(), ErrReverted)
	}

	return Deployment{
		Contract: artifact.ContractName,
		Address:  address,
		TxHash:   tx.Hash(),
		ChainID:  chainID,
		Block:    receipt.BlockNumber.Uint64(),
		Admin:    admin,
		Operator: operator,
	}, nil
}

type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// WaitForReceipt polls until the transaction is mined or context cancelled.
func WaitForReceipt(ctx context.Context, client ReceiptReader, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
