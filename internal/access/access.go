package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Role is a 32-byte role tag, compatible with on-chain AccessControl roles.
type Role [32]byte

var (
	// DefaultAdminRole administers every role, including itself.
	DefaultAdminRole = Role{}
	// OperatorRole may trigger withdrawals and co-sign claims.
	OperatorRole = Role(crypto.Keccak256Hash([]byte("OPERATOR_ROLE")))
)

var ErrUnauthorized = errors.New("unauthorized")

func (r Role) String() string {
	switch r {
	case DefaultAdminRole:
		return "DEFAULT_ADMIN_ROLE"
	case OperatorRole:
		return "OPERATOR_ROLE"
	}
	return common.Hash(r).Hex()
}

// ParseRole accepts the short names used by the API and CLI as well as a
// 0x-prefixed 32-byte hex tag.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin", "DEFAULT_ADMIN_ROLE":
		return DefaultAdminRole, nil
	case "operator", "OPERATOR_ROLE":
		return OperatorRole, nil
	}
	if len(s) == 66 && s[:2] == "0x" {
		return Role(common.HexToHash(s)), nil
	}
	return Role{}, fmt.Errorf("unknown role %q", s)
}

// UnauthorizedError reports an account missing a required role.
type UnauthorizedError struct {
	Account common.Address
	Role    Role
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("account %s is missing role %s", e.Account.Hex(), e.Role)
}

func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// Table is the authorization table. The zero value is not usable; use NewTable.
type Table struct {
	mu      sync.RWMutex
	members map[Role]map[common.Address]struct{}
}

// NewTable returns a table where admin holds DefaultAdminRole and operator
// holds OperatorRole.
func NewTable(admin, operator common.Address) *Table {
	t := &Table{members: make(map[Role]map[common.Address]struct{})}
	t.grant(DefaultAdminRole, admin)
	t.grant(OperatorRole, operator)
	return t
}

// AdminOf returns the role allowed to manage role. Every role is administered
// by DefaultAdminRole.
func (t *Table) AdminOf(Role) Role {
	return DefaultAdminRole
}

func (t *Table) HasRole(role Role, account common.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hasRoleWithoutLocking(role, account)
}

func (t *Table) hasRoleWithoutLocking(role Role, account common.Address) bool {
	_, ok := t.members[role][account]
	return ok
}

// CheckRole returns an *UnauthorizedError when account lacks role.
func (t *Table) CheckRole(role Role, account common.Address) error {
	if !t.HasRole(role, account) {
		return &UnauthorizedError{Account: account, Role: role}
	}
	return nil
}

// GrantRole adds account to role. Granting an already held role is a no-op.
func (t *Table) GrantRole(caller common.Address, role Role, account common.Address) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	admin := t.AdminOf(role)
	if !t.hasRoleWithoutLocking(admin, caller) {
		return false, &UnauthorizedError{Account: caller, Role: admin}
	}
	return t.grant(role, account), nil
}

// RevokeRole removes account from role.
func (t *Table) RevokeRole(caller common.Address, role Role, account common.Address) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	admin := t.AdminOf(role)
	if !t.hasRoleWithoutLocking(admin, caller) {
		return false, &UnauthorizedError{Account: caller, Role: admin}
	}
	return t.revoke(role, account), nil
}

// RenounceRole lets an account drop one of its own roles.
func (t *Table) RenounceRole(caller common.Address, role Role, account common.Address) (bool, error) {
	if caller != account {
		return false, fmt.Errorf("%w: can only renounce roles for self", ErrUnauthorized)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.revoke(role, account), nil
}

// Assignments returns a copy of every role membership, for snapshots.
func (t *Table) Assignments() map[Role][]common.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[Role][]common.Address, len(t.members))
	for role, set := range t.members {
		for addr := range set {
			out[role] = append(out[role], addr)
		}
	}
	return out
}

// Replace swaps the whole membership set, used when restoring a snapshot.
func (t *Table) Replace(assignments map[Role][]common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.members = make(map[Role]map[common.Address]struct{}, len(assignments))
	for role, addrs := range assignments {
		for _, addr := range addrs {
			t.grant(role, addr)
		}
	}
}

func (t *Table) grant(role Role, account common.Address) bool {
	set, ok := t.members[role]
	if !ok {
		set = make(map[common.Address]struct{})
		t.members[role] = set
	}
	if _, held := set[account]; held {
		return false
	}
	set[account] = struct{}{}
	return true
}

func (t *Table) revoke(role Role, account common.Address) bool {
	set := t.members[role]
	if _, held := set[account]; !held {
		return false
	}
	delete(set, account)
	return true
}
