package contracts

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositABIParses(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(DepositABI))
	require.NoError(t, err)

	for _, name := range []string{
		"deposit", "deposit0", "withdraw", "withdrawBatch", "removeFunds", "addFunds",
		"claimProfit", "getUserDeposit", "getUserNonce", "hasRole", "grantRole", "revokeRole",
	} {
		assert.Contains(t, parsed.Methods, name)
	}
	assert.Empty(t, parsed.Methods["deposit"].Inputs)
	assert.Len(t, parsed.Methods["deposit0"].Inputs, 1)
	assert.Equal(t, "claimProfit((address,uint256,uint256),bytes)", parsed.Methods["claimProfit"].Sig)

	for _, name := range []string{"Deposit", "Withdrawal", "Claimed"} {
		assert.Contains(t, parsed.Events, name)
	}
	assert.Contains(t, parsed.Errors, "AccessControlUnauthorizedAccount")
}
