package bank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/retail-ledger/bank"
)

func TestChain_FirstMiddlewareIsOutermost(t *testing.T) {
	var order []string
	tag := func(name string) bank.Middleware {
		return func(next bank.Handler) bank.Handler {
			return func(ctx context.Context, tx bank.Transaction) (bank.Receipt, error) {
				order = append(order, name)
				return next(ctx, tx)
			}
		}
	}
	op := func(context.Context, bank.Transaction) (bank.Receipt, error) {
		order = append(order, "op")
		return bank.Receipt{}, nil
	}

	_, err := bank.Chain(op, tag("outer"), tag("inner"))(context.Background(), bank.Transaction{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "op"}, order)
}

func TestValidate_ShortCircuits(t *testing.T) {
	calls := 0
	op := func(context.Context, bank.Transaction) (bank.Receipt, error) {
		calls++
		return bank.Receipt{}, nil
	}
	h := bank.Chain(op, bank.Validate)

	_, err := h(context.Background(), bank.Transaction{Kind: bank.TxDeposit, AcctNo: 100001, Amount: 0})
	assert.ErrorIs(t, err, bank.ErrInvalidAmount)
	assert.Equal(t, 0, calls)

	_, err = h(context.Background(), bank.Transaction{Kind: bank.TxDeposit, AcctNo: 100001, Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCheckTransaction(t *testing.T) {
	zero := bank.UserID(0)
	owner := bank.UserID(5)

	tests := []struct {
		name string
		tx   bank.Transaction
		want error
	}{
		{"valid deposit", bank.Transaction{Kind: bank.TxDeposit, AcctNo: 100001, Amount: 1}, nil},
		{"valid view without amount", bank.Transaction{Kind: bank.TxViewBalance, OwnerID: &owner, AcctNo: 100001}, nil},
		{"unknown kind", bank.Transaction{Kind: "refund", AcctNo: 100001, Amount: 1}, bank.ErrInvalidOperation},
		{"zero owner", bank.Transaction{Kind: bank.TxWithdraw, OwnerID: &zero, AcctNo: 100001, Amount: 1}, bank.ErrInvalidOwner},
		{"zero account", bank.Transaction{Kind: bank.TxWithdraw, OwnerID: &owner, Amount: 1}, bank.ErrInvalidAccountNo},
		{"negative amount", bank.Transaction{Kind: bank.TxPay, OwnerID: &owner, AcctNo: 100001, Amount: -3}, bank.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bank.CheckTransaction(tt.tx)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, bank.IsValidation(err))
		})
	}
}

func TestAudited_RecordsOutcome(t *testing.T) {
	sink := &recordingLog{}
	aud := bank.NewAuditor(sink)
	owner := bank.UserID(9)

	ok := func(_ context.Context, tx bank.Transaction) (bank.Receipt, error) {
		return bank.Receipt{AcctNo: tx.AcctNo, Kind: tx.Kind, Available: 70, Remaining: 30}, nil
	}
	h := bank.Chain(ok, bank.Audited(aud), bank.Validate)

	_, err := h(bank.WithActor(context.Background(), owner), bank.Transaction{
		OwnerID: &owner, AcctNo: 100002, Kind: bank.TxPay, Amount: 30,
	})
	require.NoError(t, err)
	_, err = h(context.Background(), bank.Transaction{AcctNo: 100002, Kind: bank.TxPay})
	require.Error(t, err)

	require.Len(t, sink.events, 2)

	first := sink.events[0]
	assert.Equal(t, bank.AuditPay, first.Action)
	assert.Equal(t, bank.OutcomeSuccess, first.Outcome)
	require.NotNil(t, first.ActorID)
	assert.Equal(t, owner, *first.ActorID)
	require.NotNil(t, first.Remaining)
	assert.Equal(t, int64(30), *first.Remaining)

	second := sink.events[1]
	assert.Equal(t, bank.OutcomeFailure, second.Outcome)
	assert.Nil(t, second.ActorID)
	assert.NotEmpty(t, second.Error)
	assert.NotEqual(t, first.ID, second.ID)
}

type recordingLog struct {
	events []bank.AuditEvent
}

func (r *recordingLog) Record(_ context.Context, e bank.AuditEvent) error {
	r.events = append(r.events, e)
	return nil
}
