/*
engine.go - Balance reads and read-modify-write mutations

PURPOSE:
  Executes deposit, withdraw, pay and view against one account's
  Available/Remaining pair. Rules depend on the account type.

RULES:
  deposit   Available += amt
  withdraw  requires Available > 0 and Available >= amt
            Available -= amt
            Credit/Loan:      Remaining += amt (draw-down)
            Checking/Savings: Remaining = 0 (recomputed on every withdrawal)
  pay       Credit/Loan only
            Available += amt, Remaining -= amt
            Remaining may go negative (overpayment); it is not clamped
  view      pure read of one row version

ATOMICITY:
  Each mutation reads the row, computes new balances, and writes them with
  UpdateBalance conditioned on the version it read. Losing the race (0 rows)
  means someone else wrote first: re-read and recompute against the fresh
  balances, so a withdrawal is always judged on current funds. If the
  re-read finds no active row the operation fails with ErrTransactionFailed.
  After MaxAttempts lost races it fails with ErrConcurrentModification.

  Operations on different accounts never contend.

AMOUNTS:
  Mutations reject non-positive amounts themselves, so calling the Engine
  directly is as safe as going through the Bank pipeline.
*/
package bank

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// DefaultCASAttempts bounds the re-read/re-write cycles of one mutation.
const DefaultCASAttempts = 8

// Engine applies balance operations with optimistic version checks.
type Engine struct {
	Store       Store
	MaxAttempts int
	Logger      *zap.Logger
}

// NewEngine returns an Engine with the default attempt bound and a no-op logger.
func NewEngine(store Store) *Engine {
	return &Engine{Store: store, MaxAttempts: DefaultCASAttempts, Logger: zap.NewNop()}
}

// computeFunc derives the new balances from the row as read.
type computeFunc func(a Account) (available, remaining int64, err error)

// Deposit adds amt to the available balance.
func (e *Engine) Deposit(ctx context.Context, owner *UserID, acctNo AcctNo, amt int64) (Receipt, error) {
	return e.mutate(ctx, TxDeposit, owner, acctNo, amt, func(a Account) (int64, int64, error) {
		if amt > math.MaxInt64-a.Available {
			return 0, 0, invalid("amount", ErrAmountOverflow)
		}
		return a.Available + amt, a.Remaining, nil
	})
}

// Withdraw takes amt out of the available balance. On credit accounts the
// amount becomes owed.
func (e *Engine) Withdraw(ctx context.Context, owner *UserID, acctNo AcctNo, amt int64) (Receipt, error) {
	return e.mutate(ctx, TxWithdraw, owner, acctNo, amt, func(a Account) (int64, int64, error) {
		if a.Available <= 0 || a.Available < amt {
			return 0, 0, &InsufficientFundsError{AcctNo: a.AcctNo, Available: a.Available, Requested: amt}
		}
		remaining := int64(0)
		if a.Type.IsCredit() {
			remaining = a.Remaining + amt
		}
		return a.Available - amt, remaining, nil
	})
}

// PayBalance pays amt toward the owed amount of a credit or loan account.
func (e *Engine) PayBalance(ctx context.Context, owner *UserID, acctNo AcctNo, amt int64) (Receipt, error) {
	return e.mutate(ctx, TxPay, owner, acctNo, amt, func(a Account) (int64, int64, error) {
		if !a.Type.IsCredit() {
			return 0, 0, invalid("type", ErrOperationNotAllowed)
		}
		if amt > math.MaxInt64-a.Available {
			return 0, 0, invalid("amount", ErrAmountOverflow)
		}
		return a.Available + amt, a.Remaining - amt, nil
	})
}

// ShowBalance reads Available, Type and Remaining from a single row version.
func (e *Engine) ShowBalance(ctx context.Context, owner *UserID, acctNo AcctNo) (Balance, error) {
	log := e.Logger.With(zap.String("kind", string(TxViewBalance)), zap.Uint32("acct_no", uint32(acctNo)))
	log.Debug("open")
	defer log.Debug("close")

	a, found, err := e.read(ctx, owner, acctNo)
	if err != nil {
		return Balance{}, err
	}
	if !found {
		return Balance{}, fmt.Errorf("%w: view balance on %d: %w", ErrTransactionFailed, acctNo, ErrAccountNotFound)
	}
	return Balance{AcctNo: a.AcctNo, Type: a.Type, Available: a.Available, Remaining: a.Remaining}, nil
}

func (e *Engine) mutate(ctx context.Context, kind TxKind, owner *UserID, acctNo AcctNo, amt int64, compute computeFunc) (Receipt, error) {
	if amt <= 0 {
		return Receipt{}, invalid("amount", ErrInvalidAmount)
	}

	log := e.Logger.With(zap.String("kind", string(kind)), zap.Uint32("acct_no", uint32(acctNo)))
	log.Debug("open")
	defer log.Debug("close")

	for attempt := 0; attempt < e.attempts(); attempt++ {
		a, found, err := e.read(ctx, owner, acctNo)
		if err != nil {
			return Receipt{}, err
		}
		if !found {
			if attempt == 0 {
				return Receipt{}, fmt.Errorf("%w: %s on %d: %w", ErrTransactionFailed, kind, acctNo, ErrAccountNotFound)
			}
			// Existed a moment ago; it went away under us.
			return Receipt{}, fmt.Errorf("%w: %s on %d", ErrTransactionFailed, kind, acctNo)
		}

		available, remaining, err := compute(a)
		if err != nil {
			return Receipt{}, err
		}

		n, err := e.Store.UpdateBalance(ctx, BalanceUpdate{
			AcctNo:          acctNo,
			OwnerID:         ownerOrZero(owner),
			ExpectedVersion: a.Version,
			Available:       available,
			Remaining:       remaining,
		})
		if err != nil {
			return Receipt{}, storeErr("update balance", err)
		}
		if n == 1 {
			return Receipt{
				AcctNo:    acctNo,
				Kind:      kind,
				Type:      a.Type,
				Amount:    amt,
				Available: available,
				Remaining: remaining,
			}, nil
		}

		log.Debug("balance write lost race, re-reading", zap.Int("attempt", attempt))
	}
	return Receipt{}, fmt.Errorf("%s on %d: %w", kind, acctNo, ErrConcurrentModification)
}

func (e *Engine) read(ctx context.Context, owner *UserID, acctNo AcctNo) (Account, bool, error) {
	accts, err := e.Store.FindAccounts(ctx, AccountFilter{
		AcctNo:  acctNo,
		OwnerID: ownerOrZero(owner),
		Status:  StatusActive,
	})
	if err != nil {
		return Account{}, false, storeErr("find accounts", err)
	}
	if len(accts) != 1 {
		return Account{}, false, nil
	}
	return accts[0], true, nil
}

func (e *Engine) attempts() int {
	if e.MaxAttempts <= 0 {
		return DefaultCASAttempts
	}
	return e.MaxAttempts
}

func ownerOrZero(owner *UserID) UserID {
	if owner == nil {
		return 0
	}
	return *owner
}
