package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/retail-ledger/audit"
	"github.com/warp/retail-ledger/bank"
	"github.com/warp/retail-ledger/bank/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLog_LevelFollowsOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := audit.NewZapLog(zap.New(core))
	ctx := context.Background()

	actor := bank.UserID(12)
	avail := int64(600)
	require.NoError(t, sink.Record(ctx, bank.AuditEvent{
		ID: "a", At: time.Now(), Action: bank.AuditDeposit, Outcome: bank.OutcomeSuccess,
		ActorID: &actor, AcctNo: 123456, Amount: 100, Available: &avail,
	}))
	require.NoError(t, sink.Record(ctx, bank.AuditEvent{
		ID: "b", At: time.Now(), Action: bank.AuditWithdraw, Outcome: bank.OutcomeFailure,
		AcctNo: 123456, Amount: 700, Error: "insufficient funds",
	}))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "deposit", entries[0].Message)
	assert.Equal(t, "audit", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	assert.Equal(t, uint32(12), fields["actor_id"])
	assert.Equal(t, uint32(123456), fields["acct_no"])
	assert.Equal(t, int64(600), fields["available"])
	assert.NotContains(t, fields, "remaining")

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "insufficient funds", entries[1].ContextMap()["error"])
}

func TestZapLog_RespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := audit.NewZapLog(zap.New(core))

	require.NoError(t, sink.Record(context.Background(), bank.AuditEvent{Action: bank.AuditViewBalance, Outcome: bank.OutcomeSuccess}))
	assert.Zero(t, logs.Len())
}

type brokenSink struct{}

func (brokenSink) Record(context.Context, bank.AuditEvent) error { return errors.New("disk full") }

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	mem := store.NewMemory()
	core, logs := observer.New(zapcore.InfoLevel)
	m := audit.Multi{mem, brokenSink{}, audit.NewZapLog(zap.New(core))}

	err := m.Record(context.Background(), bank.AuditEvent{ID: "x", Action: bank.AuditPay, Outcome: bank.OutcomeSuccess})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Len(t, mem.Events(), 1)
	assert.Equal(t, 1, logs.Len())
}

func TestMulti_SinkErrorIsLoggedNotReturned(t *testing.T) {
	// GIVEN: A ledger whose audit sink fails
	// WHEN: Running an operation
	// THEN: The operation succeeds and the failure is logged

	core, logs := observer.New(zapcore.ErrorLevel)
	mem := store.NewMemory()
	b := bank.New(mem, audit.Multi{brokenSink{}}, bank.Options{Logger: zap.New(core)})

	_, err := b.CreateUser(context.Background(), "Ann", "Bly", bank.KindCustomer, "")
	require.NoError(t, err)

	failures := logs.FilterMessage("audit record failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "user_created", failures[0].ContextMap()["action"])
}
