// Package audit provides bank.AuditLog sinks.
package audit

import (
	"context"
	"errors"

	"github.com/warp/retail-ledger/bank"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLog writes every event as one structured log entry. Failures are
// logged at Warn, successes at Info.
type ZapLog struct {
	logger *zap.Logger
}

// NewZapLog logs events under the "audit" logger name.
func NewZapLog(logger *zap.Logger) *ZapLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLog{logger: logger.Named("audit")}
}

func (z *ZapLog) Record(_ context.Context, e bank.AuditEvent) error {
	level := zapcore.InfoLevel
	if e.Outcome == bank.OutcomeFailure {
		level = zapcore.WarnLevel
	}
	if ce := z.logger.Check(level, string(e.Action)); ce != nil {
		ce.Write(fields(e)...)
	}
	return nil
}

func fields(e bank.AuditEvent) []zap.Field {
	fs := []zap.Field{
		zap.String("event_id", e.ID),
		zap.Time("at", e.At),
		zap.String("outcome", string(e.Outcome)),
	}
	if e.ActorID != nil {
		fs = append(fs, zap.Uint32("actor_id", uint32(*e.ActorID)))
	}
	if e.UserID != nil {
		fs = append(fs, zap.Uint32("user_id", uint32(*e.UserID)))
	}
	if e.AcctNo != 0 {
		fs = append(fs, zap.Uint32("acct_no", uint32(e.AcctNo)))
	}
	if e.Amount != 0 {
		fs = append(fs, zap.Int64("amount", e.Amount))
	}
	if e.Available != nil {
		fs = append(fs, zap.Int64("available", *e.Available))
	}
	if e.Remaining != nil {
		fs = append(fs, zap.Int64("remaining", *e.Remaining))
	}
	if e.Error != "" {
		fs = append(fs, zap.String("error", e.Error))
	}
	return fs
}

// Multi fans every event out to all sinks and joins their errors.
type Multi []bank.AuditLog

// Record writes e to every sink, even after one fails.
func (m Multi) Record(ctx context.Context, e bank.AuditEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
