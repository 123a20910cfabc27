/*
store.go - Persistence and audit interfaces

PURPOSE:
  Defines the interface between the ledger core and its collaborators.
  The core never opens a connection or builds a logger itself: a Store and
  an AuditLog are injected at construction.

KEY INTERFACES:
  Store:    find/insert/update over the user and account tables
  AuditLog: append-only record of every operation outcome

ATOMICITY CONTRACT:
  Each Store call is atomic on its own. There are no multi-call
  transactions; the core composes safety out of two primitives:
  - Inserts fail with ErrDuplicateKey when the primary key is taken.
    The identity allocator retries a full cycle on that error.
  - UpdateBalance is a compare-and-swap: it only writes when the row still
    carries the Version that was read. The ledger engine re-reads and
    recomputes when it loses the race.

SCOPED CONNECTIONS:
  SQL implementations acquire a connection per call and release it on every
  exit path (success, no rows, driver error).

PREDICATES:
  Zero-valued filter fields do not constrain the query.

IMPLEMENTATIONS:
  - bank/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL

SEE ALSO:
  - allocator.go: relies on ErrDuplicateKey
  - engine.go: relies on UpdateBalance compare-and-swap
*/
package bank

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Interface for user/account persistence
// =============================================================================

// Store persists users and accounts. Implementations must be safe for
// concurrent use.
type Store interface {
	// FindUsers returns users matching every non-zero field of f.
	FindUsers(ctx context.Context, f UserFilter) ([]User, error)

	// InsertUser returns rows affected, or ErrDuplicateKey if the id exists.
	InsertUser(ctx context.Context, u User) (int64, error)

	// FindAccounts returns accounts matching every non-zero field of f.
	FindAccounts(ctx context.Context, f AccountFilter) ([]Account, error)

	// InsertAccount returns rows affected, or ErrDuplicateKey if the number exists.
	InsertAccount(ctx context.Context, a Account) (int64, error)

	// UpdateBalance writes new balances and bumps the version, but only on an
	// active row whose version equals u.ExpectedVersion (and owner, if set).
	// Returns rows affected: 0 means the row is gone, inactive, or changed.
	UpdateBalance(ctx context.Context, u BalanceUpdate) (int64, error)
}

// UserFilter selects users; zero fields match anything.
type UserFilter struct {
	ID        UserID
	FirstName string // compared case-insensitively
	Kind      UserKind
	Status    Status
}

// AccountFilter selects accounts; zero fields match anything.
type AccountFilter struct {
	AcctNo  AcctNo
	OwnerID UserID
	Status  Status
	Types   []AccountType // empty means any type
}

// Matches applies the filter in memory. SQL stores translate it instead.
func (f AccountFilter) Matches(a Account) bool {
	if f.AcctNo != 0 && a.AcctNo != f.AcctNo {
		return false
	}
	if f.OwnerID != 0 && a.OwnerID != f.OwnerID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if a.Type == t {
			return true
		}
	}
	return false
}

// BalanceUpdate is one compare-and-swap balance write.
type BalanceUpdate struct {
	AcctNo          AcctNo
	OwnerID         UserID // 0 for teller operations
	ExpectedVersion int64
	Available       int64
	Remaining       int64
}

// =============================================================================
// AUDIT LOG - Separate from the ledger, tracks who did what when
// =============================================================================

// AuditAction names the audited operation.
type AuditAction string

const (
	AuditUserCreated     AuditAction = "user_created"
	AuditUserAuth        AuditAction = "user_authenticated"
	AuditAccountCreated  AuditAction = "account_created"
	AuditAccountResolved AuditAction = "account_resolved"
	AuditDeposit         AuditAction = "deposit"
	AuditWithdraw        AuditAction = "withdraw"
	AuditPay             AuditAction = "pay_balance"
	AuditViewBalance     AuditAction = "view_balance"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// AuditEvent records one operation outcome.
type AuditEvent struct {
	ID        string
	At        time.Time
	Action    AuditAction
	Outcome   Outcome
	ActorID   *UserID
	UserID    *UserID // subject user (created/authenticated/owner)
	AcctNo    AcctNo
	Amount    int64
	Available *int64 // balances after a successful operation
	Remaining *int64
	Error     string
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	Record(ctx context.Context, e AuditEvent) error
}

// AuditQuerier is implemented by audit logs that can be read back.
type AuditQuerier interface {
	Query(ctx context.Context, f AuditFilter) ([]AuditEvent, error)
}

// AuditFilter selects events; results are newest first.
type AuditFilter struct {
	AcctNo  AcctNo
	UserID  UserID
	Actions []AuditAction
	Limit   int
}
