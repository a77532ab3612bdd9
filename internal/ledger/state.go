package ledger

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"rubyscore/internal/access"
)

// State is a point-in-time copy of everything the ledger owns apart from its
// retained event log.
type State struct {
	Balances      map[common.Address]*uint256.Int  `json:"balances"`
	Nonces        map[common.Address]uint64        `json:"nonces"`
	Reserve       *uint256.Int                     `json:"reserve"`
	TotalDeposits *uint256.Int                     `json:"totalDeposits"`
	Roles         map[common.Hash][]common.Address `json:"roles"`
	NextSeq       uint64                           `json:"nextSeq"`
}

func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := State{
		Balances:      make(map[common.Address]*uint256.Int, len(l.balances)),
		Nonces:        make(map[common.Address]uint64, len(l.nonces)),
		Reserve:       new(uint256.Int).Set(l.reserve),
		TotalDeposits: new(uint256.Int).Set(l.totalDeposits),
		Roles:         make(map[common.Hash][]common.Address),
		NextSeq:       l.nextSeq,
	}
	for addr, bal := range l.balances {
		st.Balances[addr] = new(uint256.Int).Set(bal)
	}
	for addr, nonce := range l.nonces {
		st.Nonces[addr] = nonce
	}
	for role, members := range l.roles.Assignments() {
		st.Roles[common.Hash(role)] = members
	}
	return st
}

// Restore replaces the ledger state with st and clears the retained events.
// An empty role set in st leaves the founding roles in place. Each of
// operators holds OperatorRole afterwards whatever the snapshot says, so a
// service whose signing key changed across a restart keeps its role.
func (l *Ledger) Restore(st State, operators ...common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = make(map[common.Address]*uint256.Int, len(st.Balances))
	for addr, bal := range st.Balances {
		if bal != nil && !bal.IsZero() {
			l.balances[addr] = new(uint256.Int).Set(bal)
		}
	}
	l.nonces = make(map[common.Address]uint64, len(st.Nonces))
	for addr, nonce := range st.Nonces {
		l.nonces[addr] = nonce
	}
	l.reserve = new(uint256.Int).Set(orZero(st.Reserve))
	l.totalDeposits = new(uint256.Int).Set(orZero(st.TotalDeposits))

	roles := l.roles.Assignments()
	if len(st.Roles) > 0 {
		roles = make(map[access.Role][]common.Address, len(st.Roles))
		for role, members := range st.Roles {
			roles[access.Role(role)] = members
		}
	}
	for _, op := range operators {
		if !slices.Contains(roles[access.OperatorRole], op) {
			roles[access.OperatorRole] = append(roles[access.OperatorRole], op)
			l.log.Info("operator granted on restore", zap.String("account", op.Hex()))
		}
	}
	l.roles.Replace(roles)

	if st.NextSeq > 0 {
		l.nextSeq = st.NextSeq
	}
	l.eventLog = nil
}
