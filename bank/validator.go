/*
validator.go - Precondition pipeline for balance operations

PURPOSE:
  Every balance operation is a Handler. Cross-cutting concerns wrap it as
  Middleware instead of being repeated inside each operation:

    Chain(op, Audited(a), Validate)

  runs Audited first, then Validate, then op. Validate short-circuits
  before any store access when the request is malformed, and Audited still
  records the rejection.
*/
package bank

import "context"

// Handler executes one transaction.
type Handler func(ctx context.Context, tx Transaction) (Receipt, error)

// Middleware wraps a Handler with additional behavior.
type Middleware func(Handler) Handler

// Chain applies mws so that the first one is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Validate rejects malformed transactions before they reach the ledger.
func Validate(next Handler) Handler {
	return func(ctx context.Context, tx Transaction) (Receipt, error) {
		if err := CheckTransaction(tx); err != nil {
			return Receipt{}, err
		}
		return next(ctx, tx)
	}
}

// CheckTransaction applies the preconditions shared by every balance operation.
func CheckTransaction(tx Transaction) error {
	switch tx.Kind {
	case TxDeposit, TxWithdraw, TxPay, TxViewBalance:
	default:
		return invalid("kind", ErrInvalidOperation)
	}
	if tx.OwnerID != nil && *tx.OwnerID == 0 {
		return invalid("owner_id", ErrInvalidOwner)
	}
	if tx.AcctNo == 0 {
		return invalid("acct_no", ErrInvalidAccountNo)
	}
	if tx.Kind.RequiresAmount() && tx.Amount <= 0 {
		return invalid("amount", ErrInvalidAmount)
	}
	return nil
}

var auditActions = map[TxKind]AuditAction{
	TxDeposit:     AuditDeposit,
	TxWithdraw:    AuditWithdraw,
	TxPay:         AuditPay,
	TxViewBalance: AuditViewBalance,
}

// Audited records the outcome of every transaction, successful or not.
func Audited(a *Auditor) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, tx Transaction) (Receipt, error) {
			r, err := next(ctx, tx)

			e := AuditEvent{
				Action:  auditActions[tx.Kind],
				ActorID: tx.ActorID,
				UserID:  tx.OwnerID,
				AcctNo:  tx.AcctNo,
				Amount:  tx.Amount,
			}
			if e.Action == "" {
				e.Action = AuditAction(tx.Kind)
			}
			if err == nil {
				e.Available, e.Remaining = &r.Available, &r.Remaining
			}
			a.Record(ctx, e, err)
			return r, err
		}
	}
}
