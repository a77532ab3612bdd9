package access

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = common.HexToAddress("0x0d0D5Ff3cFeF8B7B2b1cAC6B6C27Fd0846c09361")
	operator = common.HexToAddress("0x381c031baa5995d0cc52386508050ac947780815")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func TestNewTableAssignsFoundingRoles(t *testing.T) {
	table := NewTable(admin, operator)

	assert.True(t, table.HasRole(DefaultAdminRole, admin))
	assert.True(t, table.HasRole(OperatorRole, operator))
	assert.False(t, table.HasRole(OperatorRole, admin))
	assert.False(t, table.HasRole(DefaultAdminRole, operator))
}

func TestOperatorRoleHash(t *testing.T) {
	assert.Equal(t,
		"0x97667070c54ef182b0f5858b034beac1b6f3089aa2d3188bb1e8929f4fa9b929",
		common.Hash(OperatorRole).Hex())
}

func TestGrantRequiresAdmin(t *testing.T) {
	table := NewTable(admin, operator)

	_, err := table.GrantRole(operator, OperatorRole, stranger)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	var unauthorized *UnauthorizedError
	require.True(t, errors.As(err, &unauthorized))
	assert.Equal(t, operator, unauthorized.Account)
	assert.Equal(t, DefaultAdminRole, unauthorized.Role)

	changed, err := table.GrantRole(admin, OperatorRole, stranger)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, table.HasRole(OperatorRole, stranger))

	changed, err = table.GrantRole(admin, OperatorRole, stranger)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRevokeAndRenounce(t *testing.T) {
	table := NewTable(admin, operator)

	_, err := table.RevokeRole(stranger, OperatorRole, operator)
	assert.ErrorIs(t, err, ErrUnauthorized)

	changed, err := table.RevokeRole(admin, OperatorRole, operator)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.ErrorIs(t, table.CheckRole(OperatorRole, operator), ErrUnauthorized)

	_, err = table.RenounceRole(stranger, DefaultAdminRole, admin)
	assert.ErrorIs(t, err, ErrUnauthorized)

	changed, err = table.RenounceRole(admin, DefaultAdminRole, admin)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, table.HasRole(DefaultAdminRole, admin))
}

func TestAssignmentsRoundTrip(t *testing.T) {
	table := NewTable(admin, operator)
	_, err := table.GrantRole(admin, OperatorRole, stranger)
	require.NoError(t, err)

	restored := NewTable(stranger, stranger)
	restored.Replace(table.Assignments())

	assert.True(t, restored.HasRole(DefaultAdminRole, admin))
	assert.True(t, restored.HasRole(OperatorRole, operator))
	assert.True(t, restored.HasRole(OperatorRole, stranger))
	assert.False(t, restored.HasRole(DefaultAdminRole, stranger))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("operator")
	require.NoError(t, err)
	assert.Equal(t, OperatorRole, role)

	role, err = ParseRole(common.Hash(OperatorRole).Hex())
	require.NoError(t, err)
	assert.Equal(t, OperatorRole, role)

	_, err = ParseRole("minter")
	assert.Error(t, err)
}
