package bank

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type actorKey struct{}

// WithActor attaches the authenticated caller to ctx so audit events can name them.
func WithActor(ctx context.Context, id UserID) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// ActorFrom returns the caller attached by WithActor, if any.
func ActorFrom(ctx context.Context) *UserID {
	if id, ok := ctx.Value(actorKey{}).(UserID); ok {
		return &id
	}
	return nil
}

// NopAudit discards every event.
type NopAudit struct{}

// Record does nothing.
func (NopAudit) Record(context.Context, AuditEvent) error { return nil }

// DefaultAuditTimeout bounds one write to the audit sink.
const DefaultAuditTimeout = 5 * time.Second

// Auditor stamps events and never lets a failing audit sink fail the operation.
type Auditor struct {
	Log     AuditLog
	Now     func() time.Time
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewAuditor returns an Auditor writing to log, or discarding when log is nil.
func NewAuditor(log AuditLog) *Auditor {
	if log == nil {
		log = NopAudit{}
	}
	return &Auditor{Log: log, Now: time.Now, Timeout: DefaultAuditTimeout, Logger: zap.NewNop()}
}

// Record completes e (id, time, actor, outcome) from ctx and err and appends it.
func (a *Auditor) Record(ctx context.Context, e AuditEvent, err error) {
	e.ID = uuid.NewString()
	e.At = a.Now().UTC()
	if e.ActorID == nil {
		e.ActorID = ActorFrom(ctx)
	}
	e.Outcome = OutcomeSuccess
	if err != nil {
		e.Outcome = OutcomeFailure
		e.Error = err.Error()
	}

	// The operation is already decided; a cancelled caller must not lose the record.
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultAuditTimeout
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if rerr := a.Log.Record(actx, e); rerr != nil {
		a.Logger.Error("audit record failed",
			zap.String("action", string(e.Action)), zap.String("event_id", e.ID), zap.Error(rerr))
	}
}
