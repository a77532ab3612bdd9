package server

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"rubyscore/internal/deposit"
	"rubyscore/internal/idempotency"
	"rubyscore/internal/ledger"
)

// requestError is a malformed request caught before the ledger is called.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
	TxHash    string `json:"txHash,omitempty"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{deposit.ErrPending, http.StatusAccepted, "tx_pending"},
	{ledger.ErrZeroAmount, http.StatusBadRequest, "zero_amount"},
	{ledger.ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},
	{ledger.ErrInvalidTax, http.StatusBadRequest, "invalid_tax"},
	{ledger.ErrLengthMismatch, http.StatusBadRequest, "length_mismatch"},
	{ledger.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{ledger.ErrOverflow, http.StatusBadRequest, "overflow"},
	{ledger.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{ledger.ErrNonceMismatch, http.StatusConflict, "nonce_mismatch"},
	{idempotency.ErrKeyReused, http.StatusConflict, "idempotency_key_reused"},
	{ledger.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
	{ledger.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{deposit.ErrReadOnly, http.StatusServiceUnavailable, "read_only"},
	{deposit.ErrReverted, http.StatusBadGateway, "reverted"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

func classify(err error) (int, string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, "bad_request"
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.status, c.code
		}
	}
	return http.StatusBadGateway, "backend_failure"
}

// outcome is the metrics label for a failed operation.
func outcome(err error) string {
	status, _ := classify(err)
	switch {
	case status == http.StatusAccepted:
		return "pending"
	case status == http.StatusBadRequest:
		return "invalid"
	case status < http.StatusInternalServerError:
		return "rejected"
	}
	return "failed"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := s.errorBody(r, err)
	writeJSON(w, status, resp)
}

func (s *Server) errorBody(r *http.Request, err error) (int, errorResponse) {
	status, code := classify(err)
	switch {
	case status >= http.StatusInternalServerError:
		s.logger(r).Error("request failed", zap.String("code", code), zap.Error(err))
	case status == http.StatusAccepted:
		s.logger(r).Warn("transaction outcome unknown", zap.Error(err))
	default:
		s.logger(r).Info("request rejected", zap.String("code", code), zap.Error(err))
	}
	resp := errorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: requestID(r.Context()),
	}
	var pending *deposit.PendingError
	if errors.As(err, &pending) {
		resp.TxHash = pending.TxHash
	}
	return status, resp
}
