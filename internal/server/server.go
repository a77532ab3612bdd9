package server

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rubyscore/internal/claimsig"
	"rubyscore/internal/config"
	"rubyscore/internal/deposit"
	"rubyscore/internal/events"
	"rubyscore/internal/hmacauth"
	"rubyscore/internal/idempotency"
	"rubyscore/internal/networks"
)

const (
	idempotencyHeader = "X-Idempotency-Key"
	requestIDHeader   = "X-Request-Id"
	maxBodyBytes      = 1 << 20
)

type Server struct {
	cfg        *config.AppConfig
	client     deposit.Client
	store      idempotency.Store
	hmac       *hmacauth.Verifier
	httpServer *http.Server
	metrics    *metricsRegistry
	log        *zap.Logger

	claimKey    *ecdsa.PrivateKey
	claimDomain claimsig.Domain
	journal     events.Journal
	networks    *networks.Registry
	relay       *events.Relay
	checks      map[string]func(context.Context) error
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.log = logger }
}

// WithClaimSigner enables claim issuance. key must hold the operator role
// for issued claims to be accepted.
func WithClaimSigner(key *ecdsa.PrivateKey, domain claimsig.Domain) Option {
	return func(s *Server) {
		s.claimKey = key
		s.claimDomain = domain
	}
}

func WithJournal(j events.Journal) Option {
	return func(s *Server) { s.journal = j }
}

func WithNetworks(r *networks.Registry) Option {
	return func(s *Server) { s.networks = r }
}

// WithRelay exposes the relay metrics and reports its backlog in /health.
func WithRelay(r *events.Relay) Option {
	return func(s *Server) { s.relay = r }
}

// WithHealthCheck adds a named dependency to /health.
func WithHealthCheck(name string, fn func(context.Context) error) Option {
	return func(s *Server) { s.checks[name] = fn }
}

func NewServer(cfg *config.AppConfig, client deposit.Client, store idempotency.Store, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		client: client,
		store:  store,
		hmac: &hmacauth.Verifier{
			Secret:  cfg.Service.HMACSecret,
			MaxSkew: cfg.Service.HMACClockSkew,
		},
		log:      zap.NewNop(),
		networks: networks.Default(),
		checks:   make(map[string]func(context.Context) error),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("server")

	if checker, ok := client.(deposit.HealthChecker); ok {
		s.checks["rpc"] = checker.Ping
	}
	if checker, ok := store.(interface{ Ping(context.Context) error }); ok {
		s.checks["database"] = checker.Ping
	}

	s.metrics = newMetricsRegistry()
	if s.relay != nil {
		s.metrics.register(s.relay.Collectors()...)
	}
	s.hmac.OnReject = func(r *http.Request, err error) {
		s.metrics.incOperation(routeName(r), "unauthenticated")
		s.log.Warn("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/deposits", s.mutating("deposit", s.handleDeposit))
	mux.Handle("POST /api/v1/withdrawals", s.mutating("withdraw", s.handleWithdraw))
	mux.Handle("POST /api/v1/withdrawals/batch", s.mutating("withdrawBatch", s.handleWithdrawBatch))
	mux.Handle("POST /api/v1/claims", s.mutating("issueClaim", s.handleIssueClaim))
	mux.Handle("POST /api/v1/claims/submit", s.mutating("claimProfit", s.handleSubmitClaim))
	mux.Handle("POST /api/v1/funds/add", s.mutating("addFunds", s.handleAddFunds))
	mux.Handle("POST /api/v1/funds/remove", s.mutating("removeFunds", s.handleRemoveFunds))
	mux.Handle("POST /api/v1/roles/grant", s.mutating("grantRole", s.handleGrantRole))
	mux.Handle("POST /api/v1/roles/revoke", s.mutating("revokeRole", s.handleRevokeRole))
	mux.HandleFunc("GET /api/v1/accounts/{address}", s.handleAccount)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/networks", s.handleNetworks)
	mux.Handle("GET /api/v1/metrics", s.metrics.handler())
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           s.requestIDMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.Info("API listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// mutation handles a decoded request body and returns the status and value
// to send back.
type mutation func(r *http.Request, body []byte) (int, any, error)

// mutating wraps h with HMAC verification and idempotent replay keyed by
// X-Idempotency-Key. Successful and pending responses are stored.
func (s *Server) mutating(op string, h mutation) http.Handler {
	return s.hmac.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() { s.metrics.observe(op, time.Since(start)) }()

		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if key == "" {
			s.metrics.incOperation(op, "invalid")
			s.writeError(w, r, badRequest("missing X-Idempotency-Key header"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			s.writeError(w, r, badRequest("unreadable request body"))
			return
		}

		ctx := r.Context()
		fingerprint := idempotency.Fingerprint(r.Method+" "+r.URL.Path, body)
		existing, err := idempotency.Lookup(ctx, s.store, key, fingerprint)
		switch {
		case errors.Is(err, idempotency.ErrKeyReused):
			s.metrics.incOperation(op, "conflict")
			s.writeError(w, r, err)
			return
		case err != nil:
			s.logger(r).Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		case existing != nil:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(existing.StatusCode)
			_, _ = w.Write(existing.Response)
			s.metrics.incOperation(op, "cached")
			return
		}

		// A broadcast write with an unknown outcome is recorded like a
		// success so a replay with the same key cannot send it again.
		result := "ok"
		status, resp, err := h(r, body)
		switch {
		case errors.Is(err, deposit.ErrPending):
			result = outcome(err)
			status, resp = s.errorBody(r, err)
		case err != nil:
			s.metrics.incOperation(op, outcome(err))
			s.writeError(w, r, err)
			return
		}

		b, err := json.Marshal(resp)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		now := time.Now()
		record := idempotency.Record{
			StatusCode:  status,
			Response:    b,
			Fingerprint: fingerprint,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.cfg.Service.IdempotencyWindow),
		}
		if err := s.store.Save(ctx, key, record); err != nil {
			s.logger(r).Warn("idempotency save failed", zap.String("key", key), zap.Error(err))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(b)
		s.metrics.incOperation(op, result)
	}))
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) logger(r *http.Request) *zap.Logger {
	return s.log.With(zap.String("request_id", requestID(r.Context())), zap.String("path", r.URL.Path))
}

func routeName(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/api/v1/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
