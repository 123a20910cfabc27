/*
locator.go - Resolving the account a transaction targets

ACCESS RULES:
  Operation  Owner bound (customer)   No owner (teller)
  ---------  -----------------------  ----------------------
  credit     any type                 Checking, Savings only
  debit      any type                 rejected: owner required
  pay        Credit, Loan             rejected: owner required
  view       any type                 any type

  Only active accounts resolve, and exactly one row must match.
*/
package bank

import (
	"context"
	"fmt"
)

// Locator finds the accounts a caller may act on.
type Locator struct {
	Store Store
}

// NewLocator returns a Locator reading from store.
func NewLocator(store Store) *Locator {
	return &Locator{Store: store}
}

// Resolve returns the single active account acctNo that the caller may use
// for op. owner is nil for teller operations.
func (l *Locator) Resolve(ctx context.Context, owner *UserID, acctNo AcctNo, op Operation) (Account, error) {
	f, err := accessFilter(owner, acctNo, op)
	if err != nil {
		return Account{}, err
	}

	accts, err := l.Store.FindAccounts(ctx, f)
	if err != nil {
		return Account{}, storeErr("find accounts", err)
	}
	if len(accts) != 1 {
		return Account{}, fmt.Errorf("%w: %d", ErrAccountNotFound, acctNo)
	}
	return accts[0], nil
}

// ListAccounts returns the owner's active accounts.
func (l *Locator) ListAccounts(ctx context.Context, owner UserID) ([]Account, error) {
	if owner == 0 {
		return nil, invalid("owner_id", ErrInvalidOwner)
	}
	accts, err := l.Store.FindAccounts(ctx, AccountFilter{OwnerID: owner, Status: StatusActive})
	if err != nil {
		return nil, storeErr("find accounts", err)
	}
	return accts, nil
}

func accessFilter(owner *UserID, acctNo AcctNo, op Operation) (AccountFilter, error) {
	if acctNo == 0 {
		return AccountFilter{}, invalid("acct_no", ErrInvalidAccountNo)
	}
	if owner != nil && *owner == 0 {
		return AccountFilter{}, invalid("owner_id", ErrInvalidOwner)
	}

	f := AccountFilter{AcctNo: acctNo, Status: StatusActive}
	if owner != nil {
		f.OwnerID = *owner
	}

	switch op {
	case OpView:
	case OpCredit:
		if owner == nil {
			f.Types = []AccountType{Checking, Savings}
		}
	case OpDebit:
		if owner == nil {
			return AccountFilter{}, invalid("owner_id", ErrOwnerRequired)
		}
	case OpPay:
		if owner == nil {
			return AccountFilter{}, invalid("owner_id", ErrOwnerRequired)
		}
		f.Types = []AccountType{Credit, Loan}
	default:
		return AccountFilter{}, invalid("operation", ErrInvalidOperation)
	}
	return f, nil
}
