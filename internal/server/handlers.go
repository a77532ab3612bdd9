package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"rubyscore/internal/access"
	"rubyscore/internal/claimsig"
	"rubyscore/internal/deposit"
	"rubyscore/internal/events"
	"rubyscore/internal/ledger"
	"rubyscore/internal/units"
)

const defaultEventsLimit = 100

type depositRequest struct {
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount"`
	Unit      string `json:"unit,omitempty"`
}

type withdrawalRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Tax    string `json:"tax"`
	Unit   string `json:"unit,omitempty"`
}

type batchRequest struct {
	Items []withdrawalRequest `json:"items"`
}

type issueClaimRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Unit      string `json:"unit,omitempty"`
}

// claimToken is both the issuance response and the submit request.
type claimToken struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	UserNonce string `json:"userNonce"`
	Signature string `json:"signature"`
}

type fundsRequest struct {
	To     string `json:"to,omitempty"`
	Amount string `json:"amount"`
	Unit   string `json:"unit,omitempty"`
}

type roleRequest struct {
	Role    string `json:"role"`
	Account string `json:"account"`
}

type accountResponse struct {
	Address    string `json:"address"`
	Deposit    string `json:"deposit"`
	DepositEth string `json:"depositEth"`
	Nonce      uint64 `json:"nonce"`
}

type eventsResponse struct {
	Events []events.Message `json:"events"`
}

func (s *Server) handleDeposit(r *http.Request, body []byte) (int, any, error) {
	var req depositRequest
	if err := decode(body, &req); err != nil {
		return 0, nil, err
	}
	amount, err := parseAmount("amount", req.Amount, req.Unit)
	if err != nil {
		return 0, nil, err
	}

	call := func(ctx context.Context) (deposit.TxResult, error) {
		return s.client.Deposit(ctx, amount)
	}
	if req.Recipient != "" {
		recipient, err := parseAddress("recipient", req.Recipient)
		if err != nil {
			return 0, nil, err
		}
		call = func(ctx context.Context) (deposit.TxResult, error) {
			return s.client.DepositFor(ctx, recipient, amount)
		}
	}

	res, err := s.submit(r.Context(), "deposit", req, call)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, res, nil
}

func (s *Server) handleWithdraw(r *http.Request, body []byte) (int, any, error) {
	var req withdrawalRequest
	if err := decode(body, &req); err != nil {
		return 0, nil, err
	}
	w, err := req.toWithdrawal()
	if err != nil {
		return 0, nil, err
	}

	res, err := s.submit(r.Context(), "withdraw", req, func(ctx context.Context) (deposit.TxResult, error) {
		return s.client.Withdraw(ctx, w)
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, res, nil
}

func (s *Server) handleWithdrawBatch(r *http.Request, body []byte) (int, any, error) {
	var req batchRequest
	if err := decode(body, &req); err != nil {
		return 0, nil, err
	}
	ws := make([]ledger.Withdrawal, 0, len(req.Items))
	for i, item := range req.Items {
		w, err := item.toWithdrawal()
		if err != nil {
			return 0, nil, badRequest("items[" + strconv.Itoa(i) + "]: " + err.Error())
		}
		ws = append(ws, w)
	}

	res, err := s.submit(r.Context(), "withdrawBatch", req, func(ctx context.Context) (deposit.TxResult, error) {
		return s.client.WithdrawBatch(ctx, ws)
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, res, nil
}

func (s *Server) handleIssueClaim(r *http.Request, body []byte) (int, any, error) {
	if s.claimKey == nil {
		return 0, nil, deposit.ErrReadOnly
	}
	var req issueClaimRequest
	if err := decode(body, &req); err != nil {
		return 0, nil, err
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		return 0, nil, err
	}
	amount, err := parseAmount("amount", req.Amount, req.Unit)
	if err != nil {
		return 0, nil, err
	}
	if amount.IsZero() {
		return 0, nil, ledger.ErrZeroAmount
	}

	nonce, err := withRetry(r.Context(), s, func(ctx context.Context) (uint64, error) {
		return s.client.UserNonce(ctx, recipient)
	})
	if err != nil {
		return 0, nil, err
	}

	params := claimsig.ClaimParams{
		Recipient: recipient,
		Amount:    amount,
		UserNonce: uint256.NewInt(nonce),
	}
	sig, err := claimsig.Sign(s.claimDomain, params, s.claimKey)
	if err != nil {
		return 0, nil, err
	}
	s.metrics.incClaimsIssued()
	s.logger(r).Info("claim issued",
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", amount.Dec()),
		zap.Uint64("nonce", nonce))

	return http.StatusCreated, claimToken{
		Recipient: recipient.Hex(),
		Amount:    amount.Dec(),
		UserNonce: strconv.FormatUint(nonce, 10),
		Signature: hexutil.Encode(sig),
	}, nil
}

func (s *Server) handleSubmitClaim(r *http.Request, body []byte) (int, any, error) {
	var req claimToken
	if err := decode(body, &req); err != nil {
		return 0, nil, err
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		return 0, nil, err
	}
	amount, err := parseAmount("amount", req.Amount, "")
	if err != nil {
		return 0, nil, err
	}
	nonce, err := parseAmount("userNonce", req.UserNonce, "")
	if err != nil {
		return 0, nil, err
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		return 0, nil, badRequest("signature: " + err.Error())
	}

	params := claimsig.ClaimParams{Recipient: recipient, Amount: amount, UserNonce: nonce}
	res, err := s.submit(r.Context(), "claimProfit", req, func(ctx context.Context) (deposit.TxResult, error) {
		return s.client.ClaimProfit(ctx, params, sig)
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, res, nil
}

func (s *Server) handleAddFunds(r *http.Request, body []byte) (int, any, error) {
	var req fundsRequest
	if err := decode(body, &req); err != nil {
		return 0, nil, err
	}
	amount, err := parseAmount("amount", req.Amount, req.Unit)
	if err != nil {
		return 0, nil, err
	}

	res, err := s.submit(r.Context(), "addFunds", req, func(ctx context.Context) (deposit.TxResult, error) {
		return s.client.AddFunds(ctx, amount)
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, res, nil
}

func (s *Server) handleRemoveFunds(r *http.Request, body []byte) (int, any, error) {
	var req fundsRequest
	if err := decode(body, &req); err != nil {
		return 0, nil, err
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		return 0, nil, err
	}
	amount, err := parseAmount("amount", req.Amount, req.Unit)
	if err != nil {
		return 0, nil, err
	}

	res, err := s.submit(r.Context(), "removeFunds", req, func(ctx context.Context) (deposit.TxResult, error) {
		return s.client.RemoveFunds(ctx, to, amount)
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, res, nil
}

func (s *Server) handleGrantRole(r *http.Request, body []byte) (int, any, error) {
	return s.changeRole(r, body, "grantRole", s.client.GrantRole)
}

func (s *Server) handleRevokeRole(r *http.Request, body []byte) (int, any, error) {
	return s.changeRole(r, body, "revokeRole", s.client.RevokeRole)
}

func (s *Server) changeRole(r *http.Request, body []byte, op string, fn func(context.Context, access.Role, common.Address) (deposit.TxResult, error)) (int, any, error) {
	var req roleRequest
	if err := decode(body, &req); err != nil {
		return 0, nil, err
	}
	role, err := access.ParseRole(req.Role)
	if err != nil {
		return 0, nil, badRequest(err.Error())
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		return 0, nil, err
	}

	res, err := s.submit(r.Context(), op, req, func(ctx context.Context) (deposit.TxResult, error) {
		return fn(ctx, role, account)
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, res, nil
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	bal, err := withRetry(ctx, s, func(ctx context.Context) (*uint256.Int, error) {
		return s.client.UserDeposit(ctx, addr)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	nonce, err := withRetry(ctx, s, func(ctx context.Context) (uint64, error) {
		return s.client.UserNonce(ctx, addr)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{
		Address:    addr.Hex(),
		Deposit:    bal.Dec(),
		DepositEth: units.FormatEther(bal),
		Nonce:      nonce,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since uint64
	if v := q.Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, r, badRequest("since must be an unsigned integer"))
			return
		}
		since = n
	}
	limit := defaultEventsLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, badRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	if s.journal != nil {
		msgs, err := s.journal.List(r.Context(), since, limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, eventsResponse{Events: orEmpty(msgs)})
		return
	}

	local, ok := s.client.(*deposit.LocalClient)
	if !ok {
		s.writeError(w, r, errors.New("no event journal configured"))
		return
	}
	var msgs []events.Message
	for _, e := range local.Ledger().Events(since) {
		if len(msgs) == limit {
			break
		}
		msgs = append(msgs, events.FromLedger(e))
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: orEmpty(msgs)})
}

func (s *Server) handleNetworks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Networks any `json:"networks"`
	}{Networks: s.networks.All()})
}

func (r withdrawalRequest) toWithdrawal() (ledger.Withdrawal, error) {
	from, err := parseAddress("from", r.From)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	to, err := parseAddress("to", r.To)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	amount, err := parseAmount("amount", r.Amount, r.Unit)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	tax := new(uint256.Int)
	if r.Tax != "" {
		if tax, err = parseAmount("tax", r.Tax, r.Unit); err != nil {
			return ledger.Withdrawal{}, err
		}
	}
	return ledger.Withdrawal{From: from, To: to, Amount: amount, Tax: tax}, nil
}

func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid json payload: " + err.Error())
	}
	return nil
}

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, badRequest(field + " is required")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, badRequest(field + " is not a hex address")
	}
	return common.HexToAddress(s), nil
}

func parseAmount(field, s, unit string) (*uint256.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, badRequest(field + " is required")
	}
	v, err := units.Parse(s, unit)
	if err != nil {
		return nil, badRequest(field + ": " + err.Error())
	}
	return v, nil
}

func orEmpty(msgs []events.Message) []events.Message {
	if msgs == nil {
		return []events.Message{}
	}
	return msgs
}
