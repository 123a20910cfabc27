/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Amounts are whole currency units. Requests may send them as JSON numbers
  or strings ("150"); fractional values are rejected. Responses carry the
  integer plus a display string such as "$1234.00".

VALIDATION:
  Validation is done by the ledger core, not in DTOs. DTOs are pure data
  carriers; handlers only check what the JSON itself cannot express.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/warp/retail-ledger/bank"
)

// =============================================================================
// USERS
// =============================================================================

// CreateUserRequest creates an employee (designation required) or a customer.
type CreateUserRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Designation string `json:"designation,omitempty"`
}

type UserDTO struct {
	ID          uint32 `json:"id"`
	Kind        string `json:"kind"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Designation string `json:"designation,omitempty"`
}

type AuthenticateRequest struct {
	Kind      string `json:"kind"`
	FirstName string `json:"first_name"`
}

type AuthenticateDTO struct {
	ID            uint32 `json:"id"`
	Kind          string `json:"kind"`
	Authenticated bool   `json:"authenticated"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type AddAccountRequest struct {
	OwnerID        uint32          `json:"owner_id"`
	OwnerFirstName string          `json:"owner_first_name"`
	Type           string          `json:"type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// AccountDTO is the API representation of an account.
type AccountDTO struct {
	AcctNo           uint32 `json:"acct_no"`
	OwnerID          uint32 `json:"owner_id"`
	Type             string `json:"type"`
	Available        int64  `json:"available"`
	Remaining        int64  `json:"remaining"`
	AvailableDisplay string `json:"available_display"`
	RemainingDisplay string `json:"remaining_display"`
	Status           string `json:"status"`
}

type ResolveDTO struct {
	AcctNo    uint32 `json:"acct_no"`
	Operation string `json:"operation"`
	Type      string `json:"type"`
	Allowed   bool   `json:"allowed"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ReceiptDTO reports the balances after a transaction.
type ReceiptDTO struct {
	AcctNo           uint32 `json:"acct_no"`
	Kind             string `json:"kind"`
	Type             string `json:"type"`
	Amount           int64  `json:"amount,omitempty"`
	Available        int64  `json:"available"`
	Remaining        int64  `json:"remaining"`
	AvailableDisplay string `json:"available_display"`
	RemainingDisplay string `json:"remaining_display"`
	Message          string `json:"message"`
}

// AuditEventDTO is one entry of an account audit trail.
type AuditEventDTO struct {
	ID        string  `json:"id"`
	At        string  `json:"at"`
	Action    string  `json:"action"`
	Outcome   string  `json:"outcome"`
	ActorID   *uint32 `json:"actor_id,omitempty"`
	UserID    *uint32 `json:"user_id,omitempty"`
	AcctNo    uint32  `json:"acct_no,omitempty"`
	Amount    int64   `json:"amount,omitempty"`
	Available *int64  `json:"available,omitempty"`
	Remaining *int64  `json:"remaining,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

var maxUnits = decimal.NewFromInt(math.MaxInt64)

// wholeUnits converts a JSON amount to integer currency units.
// Sign is left to the ledger's validation.
func wholeUnits(d decimal.Decimal) (int64, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("amount %s must be a whole number of currency units", d)
	}
	if d.Abs().GreaterThan(maxUnits) {
		return 0, fmt.Errorf("amount %s is out of range", d)
	}
	return d.IntPart(), nil
}

func display(units int64) string {
	return "$" + decimal.NewFromInt(units).StringFixed(2)
}

func toAccountDTO(a bank.Account) AccountDTO {
	return AccountDTO{
		AcctNo:           uint32(a.AcctNo),
		OwnerID:          uint32(a.OwnerID),
		Type:             string(a.Type),
		Available:        a.Available,
		Remaining:        a.Remaining,
		AvailableDisplay: display(a.Available),
		RemainingDisplay: display(a.Remaining),
		Status:           string(a.Status),
	}
}

func toReceiptDTO(r bank.Receipt) ReceiptDTO {
	return ReceiptDTO{
		AcctNo:           uint32(r.AcctNo),
		Kind:             string(r.Kind),
		Type:             string(r.Type),
		Amount:           r.Amount,
		Available:        r.Available,
		Remaining:        r.Remaining,
		AvailableDisplay: display(r.Available),
		RemainingDisplay: display(r.Remaining),
		Message:          r.Message(),
	}
}

func toAuditEventDTO(e bank.AuditEvent) AuditEventDTO {
	dto := AuditEventDTO{
		ID:        e.ID,
		At:        e.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Action:    string(e.Action),
		Outcome:   string(e.Outcome),
		AcctNo:    uint32(e.AcctNo),
		Amount:    e.Amount,
		Available: e.Available,
		Remaining: e.Remaining,
		Error:     e.Error,
	}
	if e.ActorID != nil {
		id := uint32(*e.ActorID)
		dto.ActorID = &id
	}
	if e.UserID != nil {
		id := uint32(*e.UserID)
		dto.UserID = &id
	}
	return dto
}
