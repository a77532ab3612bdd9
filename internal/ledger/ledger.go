package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"rubyscore/internal/access"
	"rubyscore/internal/claimsig"
)

const defaultEventLogSize = 10_000

// ClaimVerifier recovers the signer of a claim capability token.
type ClaimVerifier interface {
	Signer(params claimsig.ClaimParams, signature []byte) (common.Address, error)
}

// Ledger is the custodial balance ledger. Every operation runs under one
// lock and either commits all of its effects or none of them.
type Ledger struct {
	mu sync.Mutex

	roles      *access.Table
	verifier   ClaimVerifier
	transferor Transferor
	sink       Sink
	log        *zap.Logger
	now        func() time.Time

	balances      map[common.Address]*uint256.Int
	nonces        map[common.Address]uint64
	reserve       *uint256.Int
	totalDeposits *uint256.Int

	nextSeq      uint64
	eventLog     []Event
	eventLogSize int
}

type Option func(*Ledger)

func WithSink(sink Sink) Option {
	return func(l *Ledger) { l.sink = sink }
}

func WithTransferor(t Transferor) Option {
	return func(l *Ledger) { l.transferor = t }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.log = logger.Named("ledger") }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithEventLogSize bounds how many recent events Events can return.
func WithEventLogSize(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.eventLogSize = n
		}
	}
}

// New grants admin the admin tier and operator the operator tier. Both must
// be non-zero.
func New(admin, operator common.Address, verifier ClaimVerifier, opts ...Option) (*Ledger, error) {
	if admin == (common.Address{}) || operator == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	if verifier == nil {
		return nil, errors.New("claim verifier is required")
	}

	l := &Ledger{
		roles:         access.NewTable(admin, operator),
		verifier:      verifier,
		transferor:    NewWallets(),
		log:           zap.NewNop(),
		now:           time.Now,
		balances:      make(map[common.Address]*uint256.Int),
		nonces:        make(map[common.Address]uint64),
		reserve:       new(uint256.Int),
		totalDeposits: new(uint256.Int),
		nextSeq:       1,
		eventLogSize:  defaultEventLogSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Deposit credits the caller with value.
func (l *Ledger) Deposit(caller common.Address, value *uint256.Int) ([]Event, error) {
	return l.DepositFor(caller, caller, value)
}

// DepositFor credits recipient with value attached by caller.
func (l *Ledger) DepositFor(caller, recipient common.Address, value *uint256.Int) ([]Event, error) {
	if isZero(value) {
		return nil, ErrZeroAmount
	}
	if recipient == (common.Address{}) {
		return nil, ErrInvalidAddress
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cs := l.begin()
	bal, overflow := new(uint256.Int).AddOverflow(cs.balance(recipient), value)
	if overflow {
		return nil, ErrOverflow
	}
	if _, overflow = cs.reserve.AddOverflow(cs.reserve, value); overflow {
		return nil, ErrOverflow
	}
	cs.deposits.Add(cs.deposits, value)
	cs.balances[recipient] = bal
	cs.emit(EventDeposit, recipient, value, nil)

	l.log.Debug("deposit",
		zap.String("caller", caller.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", value.Dec()))
	return l.commit(cs)
}

// Withdrawal is one element of a withdraw call.
type Withdrawal struct {
	From   common.Address
	To     common.Address
	Amount *uint256.Int
	Tax    *uint256.Int
}

// Withdraw debits from by amount and pays amount-tax to to. The tax stays in
// the reserve. Operator tier only.
func (l *Ledger) Withdraw(caller common.Address, w Withdrawal) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.roles.CheckRole(access.OperatorRole, caller); err != nil {
		return nil, err
	}

	cs := l.begin()
	if err := cs.withdraw(w); err != nil {
		return nil, err
	}
	return l.commit(cs)
}

// WithdrawBatch applies the withdrawals described by four parallel lists.
// Either every element applies or none does.
func (l *Ledger) WithdrawBatch(caller common.Address, froms, tos []common.Address, amounts, taxes []*uint256.Int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.roles.CheckRole(access.OperatorRole, caller); err != nil {
		return nil, err
	}
	n := len(froms)
	if len(tos) != n || len(amounts) != n || len(taxes) != n {
		return nil, ErrLengthMismatch
	}

	cs := l.begin()
	for i := 0; i < n; i++ {
		w := Withdrawal{From: froms[i], To: tos[i], Amount: amounts[i], Tax: taxes[i]}
		if err := cs.withdraw(w); err != nil {
			return nil, fmt.Errorf("withdrawal %d: %w", i, err)
		}
	}
	l.log.Debug("withdraw batch", zap.String("caller", caller.Hex()), zap.Int("size", n))
	return l.commit(cs)
}

// RemoveFunds pays amount from the reserve to to without touching any
// balance record. Admin tier only.
func (l *Ledger) RemoveFunds(caller, to common.Address, amount *uint256.Int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.roles.CheckRole(access.DefaultAdminRole, caller); err != nil {
		return nil, err
	}
	if to == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	amount = orZero(amount)

	cs := l.begin()
	if amount.Gt(cs.reserve) {
		return nil, ErrInsufficientBalance
	}
	cs.reserve.Sub(cs.reserve, amount)
	cs.pay(to, amount)

	l.log.Info("funds removed",
		zap.String("caller", caller.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.Dec()))
	return l.commit(cs)
}

// AddFunds tops up the reserve with float that belongs to no account. Admin
// tier only.
func (l *Ledger) AddFunds(caller common.Address, value *uint256.Int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.roles.CheckRole(access.DefaultAdminRole, caller); err != nil {
		return nil, err
	}
	if isZero(value) {
		return nil, ErrZeroAmount
	}

	cs := l.begin()
	if _, overflow := cs.reserve.AddOverflow(cs.reserve, value); overflow {
		return nil, ErrOverflow
	}
	l.log.Info("funds added", zap.String("caller", caller.Hex()), zap.String("amount", value.Dec()))
	return l.commit(cs)
}

// ClaimProfit pays params.Amount to params.Recipient when signature was
// produced by an operator over exactly params and the nonce is current.
// Anyone may submit it.
func (l *Ledger) ClaimProfit(caller common.Address, params claimsig.ClaimParams, signature []byte) ([]Event, error) {
	if isZero(params.Amount) {
		return nil, ErrZeroAmount
	}
	if params.Recipient == (common.Address{}) {
		return nil, ErrInvalidAddress
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	nonce := l.nonces[params.Recipient]
	if params.UserNonce == nil || !params.UserNonce.IsUint64() || params.UserNonce.Uint64() != nonce {
		return nil, ErrNonceMismatch
	}

	signer, err := l.verifier.Signer(params, signature)
	if err != nil {
		return nil, err
	}
	if err := l.roles.CheckRole(access.OperatorRole, signer); err != nil {
		return nil, err
	}

	cs := l.begin()
	// The deployed contract pays claims from its whole balance. Here claims
	// are bounded by the float so user deposits stay fully backed.
	if params.Amount.Gt(cs.float()) {
		return nil, ErrInsufficientBalance
	}
	cs.nonces[params.Recipient] = nonce + 1
	cs.reserve.Sub(cs.reserve, params.Amount)
	cs.pay(params.Recipient, params.Amount)
	cs.emit(EventClaimed, params.Recipient, params.Amount, nil)

	l.log.Debug("claim",
		zap.String("caller", caller.Hex()),
		zap.String("recipient", params.Recipient.Hex()),
		zap.String("amount", params.Amount.Dec()),
		zap.Uint64("nonce", nonce))
	return l.commit(cs)
}

func (l *Ledger) UserDeposit(account common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceOf(account)
}

func (l *Ledger) UserNonce(account common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nonces[account]
}

// Reserve is the liquid native balance held by the ledger.
func (l *Ledger) Reserve() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.reserve)
}

func (l *Ledger) TotalDeposits() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.totalDeposits)
}

func (l *Ledger) HasRole(role access.Role, account common.Address) bool {
	return l.roles.HasRole(role, account)
}

func (l *Ledger) GrantRole(caller common.Address, role access.Role, account common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	changed, err := l.roles.GrantRole(caller, role, account)
	if err == nil && changed {
		l.log.Info("role granted", zap.Stringer("role", role), zap.String("account", account.Hex()))
	}
	return err
}

func (l *Ledger) RevokeRole(caller common.Address, role access.Role, account common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	changed, err := l.roles.RevokeRole(caller, role, account)
	if err == nil && changed {
		l.log.Info("role revoked", zap.Stringer("role", role), zap.String("account", account.Hex()))
	}
	return err
}

func (l *Ledger) RenounceRole(caller common.Address, role access.Role, account common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.roles.RenounceRole(caller, role, account)
	return err
}

// Events returns retained events with a sequence number greater than since.
func (l *Ledger) Events(since uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0)
	for _, e := range l.eventLog {
		if e.Seq > since {
			out = append(out, e)
		}
	}
	return out
}

func (l *Ledger) balanceOf(account common.Address) *uint256.Int {
	if bal, ok := l.balances[account]; ok {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

// changeset stages the effects of one call until commit.
type changeset struct {
	l        *Ledger
	balances map[common.Address]*uint256.Int
	nonces   map[common.Address]uint64
	reserve  *uint256.Int
	deposits *uint256.Int
	payouts  []Payout
	events   []Event
}

func (l *Ledger) begin() *changeset {
	return &changeset{
		l:        l,
		balances: make(map[common.Address]*uint256.Int),
		nonces:   make(map[common.Address]uint64),
		reserve:  new(uint256.Int).Set(l.reserve),
		deposits: new(uint256.Int).Set(l.totalDeposits),
	}
}

func (cs *changeset) balance(account common.Address) *uint256.Int {
	if bal, ok := cs.balances[account]; ok {
		return bal
	}
	return cs.l.balanceOf(account)
}

// float is the part of the reserve not owed to any depositor.
func (cs *changeset) float() *uint256.Int {
	if cs.reserve.Lt(cs.deposits) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(cs.reserve, cs.deposits)
}

func (cs *changeset) withdraw(w Withdrawal) error {
	amount, tax := orZero(w.Amount), orZero(w.Tax)
	if w.To == (common.Address{}) {
		return ErrInvalidAddress
	}
	if tax.Gt(amount) {
		return ErrInvalidTax
	}
	bal := cs.balance(w.From)
	if amount.Gt(bal) {
		return ErrInsufficientFunds
	}
	net := new(uint256.Int).Sub(amount, tax)
	if net.Gt(cs.reserve) {
		return ErrInsufficientBalance
	}

	cs.balances[w.From] = new(uint256.Int).Sub(bal, amount)
	cs.deposits.Sub(cs.deposits, amount)
	cs.reserve.Sub(cs.reserve, net)
	cs.pay(w.To, net)
	cs.emit(EventWithdrawal, w.To, net, tax)
	return nil
}

func (cs *changeset) pay(to common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	cs.payouts = append(cs.payouts, Payout{To: to, Amount: new(uint256.Int).Set(amount)})
}

func (cs *changeset) emit(kind EventKind, recipient common.Address, amount, tax *uint256.Int) {
	e := Event{
		Kind:      kind,
		Recipient: recipient,
		Amount:    new(uint256.Int).Set(amount),
	}
	if tax != nil {
		e.Tax = new(uint256.Int).Set(tax)
	}
	cs.events = append(cs.events, e)
}

// commit hands payouts to the transferor and, if that succeeds, publishes
// the staged state and events.
func (l *Ledger) commit(cs *changeset) ([]Event, error) {
	if len(cs.payouts) > 0 {
		if err := l.transferor.Transfer(cs.payouts); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
	}

	for addr, bal := range cs.balances {
		if bal.IsZero() {
			delete(l.balances, addr)
			continue
		}
		l.balances[addr] = bal
	}
	for addr, nonce := range cs.nonces {
		l.nonces[addr] = nonce
	}
	l.reserve = cs.reserve
	l.totalDeposits = cs.deposits

	at := l.now().UTC()
	for i := range cs.events {
		cs.events[i].Seq = l.nextSeq
		cs.events[i].At = at
		l.nextSeq++
		l.appendEvent(cs.events[i])
		if l.sink != nil {
			l.sink.Record(cs.events[i])
		}
	}
	return cs.events, nil
}

func (l *Ledger) appendEvent(e Event) {
	l.eventLog = append(l.eventLog, e)
	if over := len(l.eventLog) - l.eventLogSize; over > 0 {
		l.eventLog = append(l.eventLog[:0:0], l.eventLog[over:]...)
	}
}

func isZero(v *uint256.Int) bool {
	return v == nil || v.IsZero()
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
