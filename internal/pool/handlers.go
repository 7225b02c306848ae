package pool

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/volbet/settlement-engine/internal/ledger"
	"github.com/volbet/settlement-engine/internal/oracle"
	"github.com/volbet/settlement-engine/internal/phase"
	"github.com/volbet/settlement-engine/internal/prediction"
)

// Auth headers for gated operations. Token auth stands in for the admin and
// oracle collaborators' own mechanisms.
const (
	AdminTokenHeader  = "X-Admin-Token"
	OracleTokenHeader = "X-Oracle-Token"
)

// --- Request/Response types ---

// DepositRequest is the JSON body for POST /deposit.
type DepositRequest struct {
	Participant string          `json:"participant"`
	Amount      decimal.Decimal `json:"amount"`
}

// WithdrawRequest is the JSON body for POST /withdraw.
type WithdrawRequest struct {
	Participant string `json:"participant"`
}

// PredictionRequest is the JSON body for POST /predictions.
type PredictionRequest struct {
	Participant string `json:"participant"`
	Value       uint64 `json:"value"`
}

// FulfillRequest is the JSON body for POST /oracle/fulfill.
type FulfillRequest struct {
	RequestID string `json:"request_id"`
	Value     uint64 `json:"value"`
}

// SweepRequest is the JSON body for POST /sweep.
type SweepRequest struct {
	To string `json:"to"`
}

// --- HTTP Handlers ---

// HandleDeposit handles POST /api/v1/deposit
func (s *Service) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Participant == "" {
		writeError(w, "participant is required", http.StatusBadRequest)
		return
	}

	if err := s.Deposit(r.Context(), req.Participant, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"participant": req.Participant,
		"balance":     s.Balance(req.Participant).String(),
	})
}

// HandleWithdraw handles POST /api/v1/withdraw
func (s *Service) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Participant == "" {
		writeError(w, "participant is required", http.StatusBadRequest)
		return
	}

	amount, err := s.Withdraw(r.Context(), req.Participant)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"participant": req.Participant,
		"amount":      amount.String(),
	})
}

// HandleSubmitPrediction handles POST /api/v1/predictions
func (s *Service) HandleSubmitPrediction(w http.ResponseWriter, r *http.Request) {
	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Participant == "" {
		writeError(w, "participant is required", http.StatusBadRequest)
		return
	}

	if err := s.SubmitPrediction(r.Context(), req.Participant, req.Value); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"participant": req.Participant,
		"value":       req.Value,
	})
}

// HandleRequestReport handles POST /api/v1/oracle/request (admin).
func (s *Service) HandleRequestReport(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r, AdminTokenHeader, s.adminToken) {
		writeError(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	requestID, err := s.RequestReport(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": requestID})
}

// HandleFulfill handles POST /api/v1/oracle/fulfill (oracle collaborator).
func (s *Service) HandleFulfill(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r, OracleTokenHeader, s.oracleToken) {
		writeError(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	var req FulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RequestID == "" {
		writeError(w, "request_id is required", http.StatusBadRequest)
		return
	}

	if err := s.Fulfill(r.Context(), req.RequestID, req.Value); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": req.RequestID,
		"value":      req.Value,
	})
}

// HandleDeclareWinner handles POST /api/v1/resolve (admin).
func (s *Service) HandleDeclareWinner(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r, AdminTokenHeader, s.adminToken) {
		writeError(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	winner, err := s.DeclareWinner(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"winner": winner})
}

// HandleSweep handles POST /api/v1/sweep (admin).
func (s *Service) HandleSweep(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r, AdminTokenHeader, s.adminToken) {
		writeError(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	var req SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.To == "" {
		writeError(w, "to is required", http.StatusBadRequest)
		return
	}

	total, err := s.Sweep(r.Context(), req.To)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"to": req.To, "amount": total.String()})
}

// HandleStatus handles GET /api/v1/status
func (s *Service) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status(r.Context()))
}

// HandleBalance handles GET /api/v1/balances/{participant}
// Participants are created implicitly, so unknown IDs report a zero balance.
func (s *Service) HandleBalance(w http.ResponseWriter, r *http.Request) {
	participant := chi.URLParam(r, "participant")

	writeJSON(w, http.StatusOK, map[string]string{
		"participant": participant,
		"balance":     s.Balance(participant).String(),
	})
}

// --- Helpers ---

func (s *Service) authorize(r *http.Request, header, want string) bool {
	if want == "" {
		return false
	}
	got := r.Header.Get(header)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// writeDomainError maps core errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrZeroAmount):
		status = http.StatusBadRequest
	case errors.Is(err, phase.ErrInvalidPhase),
		errors.Is(err, phase.ErrNotCalculating),
		errors.Is(err, phase.ErrAlreadyResolved),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, oracle.ErrUnknownRequest),
		errors.Is(err, oracle.ErrDuplicateFulfillment),
		errors.Is(err, prediction.ErrNoWinner):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrTransferFailed):
		status = http.StatusBadGateway
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusUnauthorized
	}
	writeError(w, err.Error(), status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
