package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"rubyscore/internal/claimsig"
	"rubyscore/internal/config"
	"rubyscore/internal/deposit"
	"rubyscore/internal/hmacauth"
	"rubyscore/internal/idempotency"
	"rubyscore/internal/ledger"
)

const testSecret = "test-secret"

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	alice        = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	bob          = common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")
)

type harness struct {
	srv     *Server
	ledger  *ledger.Ledger
	service common.Address
	key     *ecdsa.PrivateKey
	cfg     *config.AppConfig
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		Service: config.ServiceConfig{
			HTTPPort:          0,
			HMACSecret:        testSecret,
			HMACClockSkew:     time.Minute,
			IdempotencyWindow: time.Minute,
			DLQPath:           t.TempDir(),
		},
		Retry: config.RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Millisecond,
			BackoffMultiplier: 2,
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	service := crypto.PubkeyToAddress(key.PublicKey)
	domain := claimsig.NewDomain(big.NewInt(31337), testContract)

	l, err := ledger.New(service, service, claimsig.NewVerifier(domain))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	cfg := testConfig(t)
	srv := NewServer(cfg, deposit.NewLocalClient(l, service), idempotency.NewMemoryStore(),
		WithClaimSigner(key, domain))

	return &harness{srv: srv, ledger: l, service: service, key: key, cfg: cfg}
}

func (h *harness) post(t *testing.T, path, idemKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	hmacauth.SignRequest(req, testSecret, payload, time.Now())
	if idemKey != "" {
		req.Header.Set("X-Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestDepositIdempotency(t *testing.T) {
	h := newHarness(t)
	body := map[string]string{"recipient": alice.Hex(), "amount": "1.5", "unit": "ether"}

	first := h.post(t, "/api/v1/deposits", "dep-1", body)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", first.Code, first.Body.String())
	}
	if first.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id on the response")
	}

	second := h.post(t, "/api/v1/deposits", "dep-1", body)
	if second.Code != http.StatusCreated {
		t.Fatalf("expected cached 201 got %d", second.Code)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatalf("cached response mismatch")
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay header on cached response")
	}

	want := uint256.MustFromDecimal("1500000000000000000")
	if got := h.ledger.UserDeposit(alice); !got.Eq(want) {
		t.Fatalf("deposit applied more than once: %s", got.Dec())
	}
	if got := testutil.ToFloat64(h.srv.metrics.operationsTotal.WithLabelValues("deposit", "cached")); got != 1 {
		t.Fatalf("expected one cached deposit, got %v", got)
	}
}

func TestIdempotencyKeyReusedWithDifferentBody(t *testing.T) {
	h := newHarness(t)
	if rec := h.post(t, "/api/v1/deposits", "k", map[string]string{"amount": "10"}); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	rec := h.post(t, "/api/v1/deposits", "k", map[string]string{"amount": "11"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	if code := decodeError(t, rec).Code; code != "idempotency_key_reused" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestMutatingRoutesRequireKeyAndSignature(t *testing.T) {
	h := newHarness(t)

	rec := h.post(t, "/api/v1/deposits", "", map[string]string{"amount": "10"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits", bytes.NewReader([]byte(`{"amount":"10"}`)))
	req.Header.Set("X-Idempotency-Key", "unsigned")
	unsigned := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(unsigned, req)
	if unsigned.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", unsigned.Code)
	}
	if !h.ledger.Reserve().IsZero() {
		t.Fatalf("rejected requests must not touch the ledger")
	}
}

func TestWithdrawErrorMapping(t *testing.T) {
	h := newHarness(t)
	if rec := h.post(t, "/api/v1/deposits", "d", map[string]string{"recipient": alice.Hex(), "amount": "100"}); rec.Code != http.StatusCreated {
		t.Fatalf("deposit: %d", rec.Code)
	}

	cases := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{"insufficient", map[string]string{"from": alice.Hex(), "to": bob.Hex(), "amount": "101", "tax": "0"}, http.StatusUnprocessableEntity, "insufficient_funds"},
		{"tax above amount", map[string]string{"from": alice.Hex(), "to": bob.Hex(), "amount": "10", "tax": "11"}, http.StatusBadRequest, "invalid_tax"},
		{"zero address", map[string]string{"from": alice.Hex(), "to": common.Address{}.Hex(), "amount": "10", "tax": "0"}, http.StatusBadRequest, "invalid_address"},
		{"malformed address", map[string]string{"from": "alice", "to": bob.Hex(), "amount": "10"}, http.StatusBadRequest, "bad_request"},
		{"fractional wei", map[string]string{"from": alice.Hex(), "to": bob.Hex(), "amount": "1.5"}, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.post(t, "/api/v1/withdrawals", "w-"+tc.name, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if code := decodeError(t, rec).Code; code != tc.code {
				t.Fatalf("expected code %q got %q", tc.code, code)
			}
		})
	}

	rec := h.post(t, "/api/v1/withdrawals", "w-ok", map[string]string{"from": alice.Hex(), "to": bob.Hex(), "amount": "40", "tax": "4"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got := h.ledger.UserDeposit(alice).Uint64(); got != 60 {
		t.Fatalf("expected 60 left, got %d", got)
	}
}

func TestWithdrawBatchIsAtomic(t *testing.T) {
	h := newHarness(t)
	h.post(t, "/api/v1/deposits", "d", map[string]string{"recipient": alice.Hex(), "amount": "100"})

	rec := h.post(t, "/api/v1/withdrawals/batch", "b1", map[string]any{
		"items": []map[string]string{
			{"from": alice.Hex(), "to": bob.Hex(), "amount": "60", "tax": "0"},
			{"from": alice.Hex(), "to": bob.Hex(), "amount": "60", "tax": "0"},
		},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	if got := h.ledger.UserDeposit(alice).Uint64(); got != 100 {
		t.Fatalf("failed batch changed balance to %d", got)
	}

	rec = h.post(t, "/api/v1/withdrawals/batch", "b2", map[string]any{
		"items": []map[string]string{
			{"from": alice.Hex(), "to": bob.Hex(), "amount": "60", "tax": "6"},
			{"from": alice.Hex(), "to": bob.Hex(), "amount": "40", "tax": "0"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var res deposit.TxResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Events) != 2 {
		t.Fatalf("expected 2 withdrawal events, got %d", len(res.Events))
	}
}

func TestClaimIssueAndSubmit(t *testing.T) {
	h := newHarness(t)
	if rec := h.post(t, "/api/v1/funds/add", "f", map[string]string{"amount": "1000"}); rec.Code != http.StatusOK {
		t.Fatalf("add funds: %d %s", rec.Code, rec.Body.String())
	}

	issued := h.post(t, "/api/v1/claims", "c1", map[string]string{"recipient": alice.Hex(), "amount": "250"})
	if issued.Code != http.StatusCreated {
		t.Fatalf("issue: %d %s", issued.Code, issued.Body.String())
	}
	var token claimToken
	if err := json.Unmarshal(issued.Body.Bytes(), &token); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if token.UserNonce != "0" {
		t.Fatalf("expected nonce 0, got %s", token.UserNonce)
	}
	if got := testutil.ToFloat64(h.srv.metrics.claimsIssuedTotal); got != 1 {
		t.Fatalf("expected claims issued metric 1, got %v", got)
	}

	submitted := h.post(t, "/api/v1/claims/submit", "s1", token)
	if submitted.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", submitted.Code, submitted.Body.String())
	}
	if n := h.ledger.UserNonce(alice); n != 1 {
		t.Fatalf("expected nonce 1 after claim, got %d", n)
	}
	if got := h.ledger.Reserve().Uint64(); got != 750 {
		t.Fatalf("expected reserve 750, got %d", got)
	}

	replay := h.post(t, "/api/v1/claims/submit", "s2", token)
	if replay.Code != http.StatusConflict {
		t.Fatalf("expected 409 on replayed claim, got %d", replay.Code)
	}
	if code := decodeError(t, replay).Code; code != "nonce_mismatch" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestClaimFromFloatOnly(t *testing.T) {
	h := newHarness(t)
	h.post(t, "/api/v1/deposits", "d", map[string]string{"recipient": alice.Hex(), "amount": "500"})

	issued := h.post(t, "/api/v1/claims", "c1", map[string]string{"recipient": bob.Hex(), "amount": "1"})
	var token claimToken
	_ = json.Unmarshal(issued.Body.Bytes(), &token)

	rec := h.post(t, "/api/v1/claims/submit", "s1", token)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 when claim exceeds float, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Code; code != "insufficient_balance" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestRevokedOperatorCannotWithdraw(t *testing.T) {
	h := newHarness(t)
	h.post(t, "/api/v1/deposits", "d", map[string]string{"recipient": alice.Hex(), "amount": "10"})

	rec := h.post(t, "/api/v1/roles/revoke", "r1", map[string]string{"role": "operator", "account": h.service.Hex()})
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke: %d %s", rec.Code, rec.Body.String())
	}

	rec = h.post(t, "/api/v1/withdrawals", "w", map[string]string{"from": alice.Hex(), "to": bob.Hex(), "amount": "1", "tax": "0"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}

	rec = h.post(t, "/api/v1/roles/grant", "g1", map[string]string{"role": "nobody", "account": h.service.Hex()})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", rec.Code)
	}
}

func TestAccountAndEvents(t *testing.T) {
	h := newHarness(t)
	h.post(t, "/api/v1/deposits", "d1", map[string]string{"recipient": alice.Hex(), "amount": "2", "unit": "ether"})
	h.post(t, "/api/v1/deposits", "d2", map[string]string{"recipient": bob.Hex(), "amount": "1"})

	rec := h.get(t, "/api/v1/accounts/"+alice.Hex())
	if rec.Code != http.StatusOK {
		t.Fatalf("account: %d", rec.Code)
	}
	var acct accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &acct); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if acct.DepositEth != "2" || acct.Deposit != "2000000000000000000" || acct.Nonce != 0 {
		t.Fatalf("unexpected account: %+v", acct)
	}

	if rec := h.get(t, "/api/v1/accounts/not-an-address"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad address, got %d", rec.Code)
	}

	rec = h.get(t, "/api/v1/events?since=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("events: %d", rec.Code)
	}
	var evs eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &evs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(evs.Events) != 1 || evs.Events[0].Recipient != bob.Hex() {
		t.Fatalf("unexpected events: %+v", evs.Events)
	}

	if rec := h.get(t, "/api/v1/events?since=x"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad since, got %d", rec.Code)
	}
}

func TestNetworksListed(t *testing.T) {
	h := newHarness(t)
	rec := h.get(t, "/api/v1/networks")
	if rec.Code != http.StatusOK {
		t.Fatalf("networks: %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"localhost"`)) {
		t.Fatalf("expected localhost in registry: %s", rec.Body.String())
	}
}

// flakyClient fails every write with a transport error.
type flakyClient struct {
	deposit.Client
	calls int
}

func (f *flakyClient) Deposit(context.Context, *uint256.Int) (deposit.TxResult, error) {
	f.calls++
	return deposit.TxResult{}, errors.New("dial tcp: connection refused")
}

func TestTransientFailuresRetryThenDLQ(t *testing.T) {
	cfg := testConfig(t)
	client := &flakyClient{}
	srv := NewServer(cfg, client, idempotency.NewMemoryStore())
	h := &harness{srv: srv, cfg: cfg}

	rec := h.post(t, "/api/v1/deposits", "d", map[string]string{"amount": "1"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}
	if client.calls != cfg.Retry.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", cfg.Retry.MaxAttempts, client.calls)
	}

	entries, err := os.ReadDir(cfg.Service.DLQPath)
	if err != nil {
		t.Fatalf("read dlq: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 dlq entry, got %d", len(entries))
	}
	if got := testutil.ToFloat64(srv.metrics.dlqDepth); got != 1 {
		t.Fatalf("expected dlq depth 1, got %v", got)
	}
	if got := testutil.ToFloat64(srv.metrics.retryAttemptsTotal.WithLabelValues("exhausted")); got != 1 {
		t.Fatalf("expected one exhausted retry, got %v", got)
	}
}

func TestRejectionsAreNotRetried(t *testing.T) {
	h := newHarness(t)
	rec := h.post(t, "/api/v1/deposits", "d", map[string]string{"amount": "0"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if got := testutil.ToFloat64(h.srv.metrics.retryAttemptsTotal.WithLabelValues("retry")); got != 0 {
		t.Fatalf("rejection was retried %v times", got)
	}
	entries, _ := os.ReadDir(h.cfg.Service.DLQPath)
	if len(entries) != 0 {
		t.Fatalf("rejections must not reach the dlq")
	}
}

// unconfirmedClient applies withdrawals and then loses the receipt, the way
// EthClient fails when the node drops the connection after broadcast.
type unconfirmedClient struct {
	*deposit.LocalClient
	calls int
}

func (c *unconfirmedClient) Withdraw(ctx context.Context, w ledger.Withdrawal) (deposit.TxResult, error) {
	c.calls++
	res, err := c.LocalClient.Withdraw(ctx, w)
	if err != nil {
		return res, err
	}
	return res, &deposit.PendingError{TxHash: res.TxHash, Err: errors.New("withdraw receipt: read tcp: i/o timeout")}
}

func TestBroadcastWriteIsNotResent(t *testing.T) {
	h := newHarness(t)
	client := &unconfirmedClient{LocalClient: deposit.NewLocalClient(h.ledger, h.service)}
	h.srv = NewServer(h.cfg, client, idempotency.NewMemoryStore())

	if rec := h.post(t, "/api/v1/deposits", "d", map[string]string{"recipient": alice.Hex(), "amount": "100"}); rec.Code != http.StatusCreated {
		t.Fatalf("deposit: %d %s", rec.Code, rec.Body.String())
	}

	body := map[string]string{"from": alice.Hex(), "to": bob.Hex(), "amount": "10", "tax": "0"}
	rec := h.post(t, "/api/v1/withdrawals", "w", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeError(t, rec)
	if resp.Code != "tx_pending" || resp.TxHash == "" {
		t.Fatalf("unexpected pending body: %+v", resp)
	}

	again := h.post(t, "/api/v1/withdrawals", "w", body)
	if again.Code != http.StatusAccepted || again.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed 202, got %d: %s", again.Code, again.Body.String())
	}

	if client.calls != 1 {
		t.Fatalf("withdraw sent %d times", client.calls)
	}
	if got := h.ledger.UserDeposit(alice).Uint64(); got != 90 {
		t.Fatalf("expected 90 left, got %d", got)
	}
	if got := testutil.ToFloat64(h.srv.metrics.retryAttemptsTotal.WithLabelValues("retry")); got != 0 {
		t.Fatalf("pending write was retried %v times", got)
	}
	entries, err := os.ReadDir(h.cfg.Service.DLQPath)
	if err != nil {
		t.Fatalf("read dlq: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected the pending write in the dlq, got %d entries", len(entries))
	}
}

func TestHealthReportsFailingDependency(t *testing.T) {
	cfg := testConfig(t)
	srv := NewServer(cfg, &flakyClient{}, idempotency.NewMemoryStore(),
		WithHealthCheck("broker", func(context.Context) error { return errors.New("down") }))
	h := &harness{srv: srv}

	rec := h.get(t, "/api/v1/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["broker"].Error != "down" {
		t.Fatalf("unexpected health: %+v", resp)
	}

	healthy := newHarness(t).get(t, "/api/v1/health")
	if healthy.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", healthy.Code)
	}
}
