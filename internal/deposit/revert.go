package deposit

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"rubyscore/internal/ledger"
)

// revertReasons maps contract require() messages to ledger errors. Order
// matters: the first match wins.
var revertReasons = []struct {
	reason string
	err    error
}{
	{"Zero address check", ledger.ErrInvalidAddress},
	{"Value should equal highest zero", ledger.ErrZeroAmount},
	{"Zero amount to claim", ledger.ErrZeroAmount},
	{"Insufficient funds", ledger.ErrInsufficientFunds},
	{"INSUFFICIENT_BALANCE", ledger.ErrInsufficientBalance},
	{"Nonce is invalid", ledger.ErrNonceMismatch},
	{"ECDSAInvalidSignature", ledger.ErrInvalidSignature},
	{"AccessControlUnauthorizedAccount", ledger.ErrUnauthorized},
}

var unauthorizedSelector = crypto.Keccak256([]byte("AccessControlUnauthorizedAccount(address,bytes32)"))[:4]

// mapRevert translates a node error into the matching ledger error while
// keeping the original message.
func mapRevert(err error) error {
	if err == nil {
		return nil
	}

	if sentinel := matchReason(err.Error()); sentinel != nil {
		return fmt.Errorf("%w: %v", sentinel, err)
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		hexData, ok := dataErr.ErrorData().(string)
		if !ok {
			return err
		}
		data := common.FromHex(hexData)
		if len(data) >= 4 && bytes.Equal(data[:4], unauthorizedSelector) {
			return fmt.Errorf("%w: %v", ledger.ErrUnauthorized, err)
		}
		if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
			if sentinel := matchReason(reason); sentinel != nil {
				return fmt.Errorf("%w: %s", sentinel, reason)
			}
		}
	}
	return err
}

func matchReason(msg string) error {
	for _, r := range revertReasons {
		if strings.Contains(msg, r.reason) {
			return r.err
		}
	}
	return nil
}
