package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"rubyscore/internal/deposit"
)

// withRetry calls fn until it succeeds, fails with a non-retryable error, or
// the configured attempts run out. Backoff grows by the configured
// multiplier and is capped at MaxBackoff.
func withRetry[T any](ctx context.Context, s *Server, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := s.cfg.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	backoff := s.cfg.Retry.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	for i := 1; i <= attempts; i++ {
		resp, err := fn(ctx)
		if err == nil {
			if i > 1 {
				s.metrics.incRetry("success")
			}
			return resp, nil
		}
		if !deposit.Retryable(err) {
			return zero, err
		}
		if i == attempts {
			s.metrics.incRetry("exhausted")
			return zero, fmt.Errorf("after %d attempts: %w", attempts, err)
		}

		s.metrics.incRetry("retry")
		sleep := backoff
		if s.cfg.Retry.MaxBackoff > 0 && sleep > s.cfg.Retry.MaxBackoff {
			sleep = s.cfg.Retry.MaxBackoff
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return zero, ctx.Err()
		}

		if s.cfg.Retry.BackoffMultiplier > 1 {
			backoff = backoff * time.Duration(s.cfg.Retry.BackoffMultiplier)
		}
	}

	return zero, fmt.Errorf("exhausted retries")
}

// submit runs a ledger write with retries. Transient failures that survive
// every attempt, and writes left pending after broadcast, are written to the
// dead-letter directory.
func (s *Server) submit(ctx context.Context, op string, payload any, fn func(context.Context) (deposit.TxResult, error)) (deposit.TxResult, error) {
	res, err := withRetry(ctx, s, fn)
	if err != nil && (deposit.Retryable(err) || errors.Is(err, deposit.ErrPending)) {
		s.writeDLQ(ctx, op, payload, err)
	}
	return res, err
}

type dlqEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	RequestID string    `json:"requestId,omitempty"`
	Payload   any       `json:"payload"`
	Error     string    `json:"error"`
}

func (s *Server) writeDLQ(ctx context.Context, op string, payload any, execErr error) {
	if s.cfg.Service.DLQPath == "" {
		return
	}

	entry := dlqEntry{
		Timestamp: time.Now().UTC(),
		Operation: op,
		RequestID: requestID(ctx),
		Payload:   payload,
		Error:     execErr.Error(),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		s.log.Error("dlq marshal", zap.Error(err))
		return
	}

	if err := os.MkdirAll(s.cfg.Service.DLQPath, 0o755); err != nil {
		s.log.Error("dlq mkdir", zap.Error(err))
		return
	}

	filename := fmt.Sprintf("%d-%s.json", time.Now().UnixNano(), op)
	path := filepath.Join(s.cfg.Service.DLQPath, filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		s.log.Error("dlq write", zap.String("path", path), zap.Error(err))
	}

	s.updateDLQDepth()
}

func (s *Server) updateDLQDepth() int {
	depth := s.currentDLQDepth()
	if s.metrics != nil {
		s.metrics.setDLQDepth(depth)
	}
	return depth
}

func (s *Server) currentDLQDepth() int {
	if s.cfg.Service.DLQPath == "" {
		return 0
	}
	entries, err := os.ReadDir(s.cfg.Service.DLQPath)
	if err != nil {
		return 0
	}
	return len(entries)
}
