/*
handlers.go - HTTP API handlers for the retail ledger

PURPOSE:
  Exposes the ledger core over REST. Handles HTTP request/response, JSON
  serialization, caller authentication and error mapping, and delegates
  every decision to bank.Bank.

ENDPOINTS:
  Users:
    POST   /api/employees                     Register an employee (open)
    POST   /api/customers                     Create a customer (employee)
    POST   /api/users/{id}/authenticate       Presence check by id/kind/first name
    GET    /api/customers/{id}/accounts       Active accounts (self or employee)

  Accounts:
    POST   /api/accounts                      Open an account (employee)
    GET    /api/accounts/{acctNo}/resolve     May the caller run ?operation= on it
    GET    /api/accounts/{acctNo}/balance     View balance
    POST   /api/accounts/{acctNo}/deposit     Deposit (customer, or teller)
    POST   /api/accounts/{acctNo}/withdraw    Withdraw (customer)
    POST   /api/accounts/{acctNo}/pay         Pay credit/loan balance (customer)
    GET    /api/accounts/{acctNo}/audit       Audit trail (employee)

CALLER IDENTITY:
  Protected routes expect X-Actor-ID, X-Actor-Kind (E|C) and
  X-Actor-First-Name. The actor is authenticated on every request; there
  are no sessions. A customer's balance operations are bound to their own
  accounts. An employee acts as a teller: no owner is bound, so deposits
  are limited to Checking/Savings and withdraw/pay are refused.

ERROR HANDLING:
  - 400: Validation errors, invalid input
  - 401: Missing or unknown actor
  - 403: Actor of the wrong kind
  - 404: User or account not found
  - 409: Insufficient funds, lost write race, failed transaction
  - 503: Transient store failure (retryable)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/retail-ledger/bank"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Bank   *bank.Bank
	Audit  bank.AuditQuerier // optional; nil disables the audit endpoint
	Logger *zap.Logger
}

// NewHandler creates a new handler over b.
func NewHandler(b *bank.Bank, audit bank.AuditQuerier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Bank: b, Audit: audit, Logger: logger}
}

// =============================================================================
// ACTOR AUTHENTICATION
// =============================================================================

const (
	HeaderActorID        = "X-Actor-ID"
	HeaderActorKind      = "X-Actor-Kind"
	HeaderActorFirstName = "X-Actor-First-Name"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	ID   bank.UserID
	Kind bank.UserKind
}

type actorCtxKey struct{}

func actorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorCtxKey{}).(Actor)
	return a, ok
}

// RequireActor authenticates the caller from headers. With kinds given,
// only those kinds are admitted.
func (h *Handler) RequireActor(kinds ...bank.UserKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseUint(r.Header.Get(HeaderActorID), 10, 32)
			if err != nil || id == 0 {
				writeError(w, http.StatusUnauthorized, "Missing or invalid "+HeaderActorID, nil)
				return
			}
			kind, err := bank.ParseUserKind(r.Header.Get(HeaderActorKind))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Missing or invalid "+HeaderActorKind, err)
				return
			}

			if err := h.Bank.AuthenticateUser(r.Context(), bank.UserID(id), kind, r.Header.Get(HeaderActorFirstName)); err != nil {
				if bank.IsNotFound(err) || bank.IsValidation(err) {
					writeError(w, http.StatusUnauthorized, "Authentication failed", err)
					return
				}
				h.writeDomainError(w, err)
				return
			}

			if len(kinds) > 0 && !kindIn(kind, kinds) {
				writeError(w, http.StatusForbidden, "Not permitted for "+kind.String()+"s", nil)
				return
			}

			actor := Actor{ID: bank.UserID(id), Kind: kind}
			ctx := context.WithValue(r.Context(), actorCtxKey{}, actor)
			ctx = bank.WithActor(ctx, actor.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func kindIn(k bank.UserKind, kinds []bank.UserKind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}

// owner binds customers to their own accounts; employees act as tellers.
func owner(ctx context.Context) *bank.UserID {
	if a, ok := actorFrom(ctx); ok && a.Kind == bank.KindCustomer {
		return a.ID.Ptr()
	}
	return nil
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateEmployee registers an employee. Open, as at the branch terminal.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	h.createUser(w, r, bank.KindEmployee)
}

// CreateCustomer creates a customer on behalf of an authenticated employee.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	h.createUser(w, r, bank.KindCustomer)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request, kind bank.UserKind) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.Bank.CreateUser(r.Context(), req.FirstName, req.LastName, kind, req.Designation)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dto := UserDTO{
		ID:        uint32(id),
		Kind:      kind.String(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if kind == bank.KindEmployee {
		dto.Designation = req.Designation
	}
	writeJSON(w, http.StatusCreated, dto)
}

// Authenticate checks that an active user matches id, kind and first name.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req AuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	kind, err := bank.ParseUserKind(req.Kind)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.Bank.AuthenticateUser(r.Context(), id, kind, req.FirstName); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthenticateDTO{ID: uint32(id), Kind: kind.String(), Authenticated: true})
}

// ListAccounts returns a customer's active accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if self := owner(r.Context()); self != nil && *self != id {
		writeError(w, http.StatusForbidden, "Customers may only list their own accounts", nil)
		return
	}

	accts, err := h.Bank.ListAccounts(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]AccountDTO, len(accts))
	for i, a := range accts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// AddAccount opens an account for a customer.
func (h *Handler) AddAccount(w http.ResponseWriter, r *http.Request) {
	var req AddAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	typ, err := bank.ParseAccountType(req.Type)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	initial, err := wholeUnits(req.InitialBalance)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid initial_balance", err)
		return
	}

	no, err := h.Bank.AddAccount(r.Context(), bank.UserID(req.OwnerID), req.OwnerFirstName, typ, initial)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountDTO(bank.Account{
		AcctNo:    no,
		OwnerID:   bank.UserID(req.OwnerID),
		Type:      typ,
		Available: initial,
		Status:    bank.StatusActive,
	}))
}

// ResolveAccount reports whether the caller may run ?operation= on the account.
func (h *Handler) ResolveAccount(w http.ResponseWriter, r *http.Request) {
	no, ok := parseAcctNo(w, chi.URLParam(r, "acctNo"))
	if !ok {
		return
	}
	opParam := r.URL.Query().Get("operation")
	if opParam == "" {
		opParam = string(bank.OpView)
	}
	op, err := bank.ParseOperation(opParam)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	a, err := h.Bank.ResolveAccount(r.Context(), owner(r.Context()), no, op)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveDTO{AcctNo: uint32(no), Operation: string(op), Type: string(a.Type), Allowed: true})
}

// GetBalance shows available and remaining balances.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	no, ok := parseAcctNo(w, chi.URLParam(r, "acctNo"))
	if !ok {
		return
	}

	bal, err := h.Bank.ShowBalance(r.Context(), owner(r.Context()), no)
	opsTotal.WithLabelValues(string(bank.TxViewBalance), outcome(err)).Inc()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(bank.Receipt{
		AcctNo:    bal.AcctNo,
		Kind:      bank.TxViewBalance,
		Type:      bal.Type,
		Available: bal.Available,
		Remaining: bal.Remaining,
	}))
}

// Deposit handles POST /api/accounts/{acctNo}/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.transact(w, r, bank.TxDeposit)
}

// Withdraw handles POST /api/accounts/{acctNo}/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.transact(w, r, bank.TxWithdraw)
}

// Pay handles POST /api/accounts/{acctNo}/pay
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	h.transact(w, r, bank.TxPay)
}

func (h *Handler) transact(w http.ResponseWriter, r *http.Request, kind bank.TxKind) {
	no, ok := parseAcctNo(w, chi.URLParam(r, "acctNo"))
	if !ok {
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := wholeUnits(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	receipt, err := h.Bank.Execute(r.Context(), bank.Transaction{
		OwnerID: owner(r.Context()),
		AcctNo:  no,
		Kind:    kind,
		Amount:  amount,
	})
	opsTotal.WithLabelValues(string(kind), outcome(err)).Inc()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// GetAuditTrail lists recent audit events for an account, newest first.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeError(w, http.StatusNotImplemented, "Audit trail is not available with this store", nil)
		return
	}
	no, ok := parseAcctNo(w, chi.URLParam(r, "acctNo"))
	if !ok {
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	events, err := h.Audit.Query(r.Context(), bank.AuditFilter{AcctNo: no, Limit: limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
		return
	}

	dtos := make([]AuditEventDTO, len(events))
	for i, e := range events {
		dtos[i] = toAuditEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseUserID(w http.ResponseWriter, s string) (bank.UserID, bool) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "Invalid user id", err)
		return 0, false
	}
	return bank.UserID(id), true
}

func parseAcctNo(w http.ResponseWriter, s string) (bank.AcctNo, bool) {
	no, err := strconv.ParseUint(s, 10, 32)
	if err != nil || no == 0 {
		writeError(w, http.StatusBadRequest, "Invalid account number", err)
		return 0, false
	}
	return bank.AcctNo(no), true
}

func outcome(err error) string {
	if err != nil {
		return string(bank.OutcomeFailure)
	}
	return string(bank.OutcomeSuccess)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Retryable: bank.IsRetryable(err)}
	status := http.StatusInternalServerError

	switch {
	case bank.IsValidation(err):
		status, resp.Code = http.StatusBadRequest, "validation_error"
		var ve *bank.ValidationError
		if errors.As(err, &ve) {
			resp.Details = map[string]string{"field": ve.Field}
		}
	case bank.IsNotFound(err):
		status, resp.Code = http.StatusNotFound, "not_found"
	case bank.IsInsufficientFunds(err):
		status, resp.Code = http.StatusConflict, "insufficient_funds"
		if errors.Is(err, bank.ErrZeroBalance) {
			resp.Code = "zero_balance"
		}
	case errors.Is(err, bank.ErrConcurrentModification):
		status, resp.Code = http.StatusConflict, "concurrent_modification"
	case errors.Is(err, bank.ErrTransactionFailed):
		status, resp.Code = http.StatusConflict, "transaction_failed"
	case bank.IsRetryable(err):
		status, resp.Code = http.StatusServiceUnavailable, "store_unavailable"
	}

	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, resp)
}
