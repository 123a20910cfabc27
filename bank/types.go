/*
Package bank provides the ledger and transaction engine of a retail bank.

PURPOSE:
  Users (employees and customers) own accounts of four types. Transactions
  (deposit, withdraw, pay, view balance) read or mutate an account's two
  balance fields under type-dependent rules. Everything that touches
  persistence goes through the injected Store; everything worth remembering
  goes to the injected AuditLog.

KEY CONCEPTS IN THIS FILE (types.go):
  - UserID / AcctNo: numeric identifiers drawn from disjoint ranges
  - User: employee or customer, designation present iff employee
  - Account: Checking/Savings (deposit) or Credit/Loan (credit) with
    Available and Remaining balances
  - Transaction: one ephemeral request against exactly one account
  - Operation: the access class an account is resolved for

BALANCE SEMANTICS:
  Checking/Savings:  Available = spendable funds, Remaining = 0 always
  Credit/Loan:       Available = credit headroom, Remaining = amount owed

USAGE:
  b := bank.New(store, auditLog, bank.Options{})
  id, err := b.CreateUser(ctx, "Amy", "Lee", bank.KindCustomer, "")
  acct, err := b.AddAccount(ctx, id, "Amy", bank.Checking, 500)
  receipt, err := b.Deposit(ctx, &id, acct, 100)

SEE ALSO:
  - engine.go: balance mutation rules
  - store.go: persistence contract
  - bank.go: the public facade
*/
package bank

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// UserID and AcctNo are allocated from disjoint ranges, see IDSpace.
type UserID uint32
type AcctNo uint32

// Ptr returns a pointer to id, for the optional owner/actor arguments.
func (id UserID) Ptr() *UserID { return &id }

// =============================================================================
// USERS
// =============================================================================

// UserKind distinguishes employees from customers. The values are the
// single-letter codes persisted in the user table.
type UserKind string

const (
	KindEmployee UserKind = "E"
	KindCustomer UserKind = "C"
)

func (k UserKind) Valid() bool {
	return k == KindEmployee || k == KindCustomer
}

func (k UserKind) String() string {
	switch k {
	case KindEmployee:
		return "employee"
	case KindCustomer:
		return "customer"
	default:
		return string(k)
	}
}

// ParseUserKind accepts the persisted code or the spelled-out name.
func ParseUserKind(s string) (UserKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "e", "employee":
		return KindEmployee, nil
	case "c", "customer":
		return KindCustomer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Status is ACTIVE or INACTIVE. Only active rows take part in operations.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// User is a bank employee or customer.
// Designation is non-empty iff Kind == KindEmployee.
type User struct {
	ID          UserID
	Kind        UserKind
	FirstName   string
	LastName    string
	Designation string
	Status      Status
	CreatedAt   time.Time
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountType selects the balance rules applied to an account.
type AccountType string

const (
	Checking AccountType = "Checking"
	Savings  AccountType = "Savings"
	Credit   AccountType = "Credit"
	Loan     AccountType = "Loan"
)

// AllAccountTypes lists the account types in menu order.
var AllAccountTypes = []AccountType{Loan, Credit, Checking, Savings}

func (t AccountType) Valid() bool {
	switch t {
	case Checking, Savings, Credit, Loan:
		return true
	}
	return false
}

// IsDeposit reports whether the account holds customer funds (Remaining is always 0).
func (t AccountType) IsDeposit() bool { return t == Checking || t == Savings }

// IsCredit reports whether the account tracks an amount owed in Remaining.
func (t AccountType) IsCredit() bool { return t == Credit || t == Loan }

// ParseAccountType is case-insensitive.
func ParseAccountType(s string) (AccountType, error) {
	for _, t := range AllAccountTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAccountType, s)
}

// Account is one row of the account table.
// Version increments on every balance write and backs compare-and-swap updates.
type Account struct {
	AcctNo    AcctNo
	OwnerID   UserID
	Type      AccountType
	Available int64
	Remaining int64
	Status    Status
	Version   int64
}

// Balance is a self-consistent snapshot of one account row.
type Balance struct {
	AcctNo    AcctNo
	Type      AccountType
	Available int64
	Remaining int64
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TxKind is the kind of a balance transaction.
type TxKind string

const (
	TxDeposit     TxKind = "deposit"
	TxWithdraw    TxKind = "withdraw"
	TxPay         TxKind = "pay"
	TxViewBalance TxKind = "view_balance"
)

// RequiresAmount reports whether the kind carries a transaction amount.
func (k TxKind) RequiresAmount() bool { return k != TxViewBalance }

// Operation returns the access class the account must be resolved for.
func (k TxKind) Operation() Operation {
	switch k {
	case TxDeposit:
		return OpCredit
	case TxWithdraw:
		return OpDebit
	case TxPay:
		return OpPay
	default:
		return OpView
	}
}

// Transaction is one request against exactly one account. It is never
// persisted: the account's balances and the audit trail are the only trace.
type Transaction struct {
	ActorID *UserID // who issued it (employee or customer), if known
	OwnerID *UserID // nil for teller operations
	AcctNo  AcctNo
	Kind    TxKind
	Amount  int64
}

// Receipt describes the outcome of a successful transaction.
type Receipt struct {
	AcctNo    AcctNo
	Kind      TxKind
	Type      AccountType
	Amount    int64
	Available int64
	Remaining int64
}

// Message renders the receipt the way tellers read it back to customers.
func (r Receipt) Message() string {
	switch r.Kind {
	case TxDeposit:
		return fmt.Sprintf("Amount $%d successfully deposited into the account %d, New Balance is $%d",
			r.Amount, r.AcctNo, r.Available)
	case TxWithdraw:
		if r.Type.IsCredit() {
			return fmt.Sprintf("Amount $%d successfully withdrawn from the %s account %d, New available balance is $%d, New payment balance is $%d",
				r.Amount, r.Type, r.AcctNo, r.Available, r.Remaining)
		}
		return fmt.Sprintf("Amount $%d successfully withdrawn from the %s account %d, New available balance is $%d",
			r.Amount, r.Type, r.AcctNo, r.Available)
	case TxPay:
		return fmt.Sprintf("Payment amount $%d successfully posted to the %s account %d, New available balance is $%d, New payment balance is $%d",
			r.Amount, r.Type, r.AcctNo, r.Available, r.Remaining)
	default:
		if r.Type.IsCredit() {
			return fmt.Sprintf("Available balance in %s account %d is $%d and payment balance is $%d",
				r.Type, r.AcctNo, r.Available, r.Remaining)
		}
		return fmt.Sprintf("Available balance in %s account %d is $%d", r.Type, r.AcctNo, r.Available)
	}
}

// =============================================================================
// OPERATIONS (account access classes)
// =============================================================================

// Operation is the access class checked when resolving an account.
type Operation string

const (
	OpCredit Operation = "credit" // deposit
	OpDebit  Operation = "debit"  // withdraw
	OpView   Operation = "view"
	OpPay    Operation = "pay"
)

// ParseOperation accepts an operation name in any case.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case OpCredit, OpDebit, OpView, OpPay:
		return op, nil
	}
	return "", fmt.Errorf("%w: unknown operation %q", ErrInvalidOperation, s)
}
