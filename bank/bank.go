/*
bank.go - Public facade over the ledger core

PURPOSE:
  Wires the components together and exposes the operations a front end
  needs. Each call flows:

    Directory (auth, done by the caller) -> Locator -> Validate -> Engine -> Store

  and every outcome is recorded to the AuditLog before returning.

COMPONENTS:
  Allocator:  collision-free ids (allocator.go)
  Directory:  users (directory.go)
  Registry:   accounts (registry.go)
  Locator:    account resolution and access rules (locator.go)
  Engine:     balance mutation (engine.go)

FAILURES:
  Domain failures come back as typed errors (see errors.go); they are never
  panics. A failed operation leaves no partial state.
*/
package bank

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Options tunes a Bank. The zero value is usable.
type Options struct {
	Logger        *zap.Logger
	Now           func() time.Time
	StoreTimeout  time.Duration // per store call and audit write; 0 = store unbounded, audit DefaultAuditTimeout
	AllocAttempts int
	CASAttempts   int
}

// Bank is the entry point for every ledger operation.
type Bank struct {
	Allocator *Allocator
	Directory *Directory
	Registry  *Registry
	Locator   *Locator
	Engine    *Engine

	audit  *Auditor
	logger *zap.Logger

	deposit  Handler
	withdraw Handler
	pay      Handler
	view     Handler
}

// New builds a Bank over store and log. Both are owned by the caller.
func New(store Store, log AuditLog, opts Options) *Bank {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	store = WithTimeout(store, opts.StoreTimeout)

	alloc := NewAllocator(store)
	alloc.Logger = opts.Logger.Named("allocator")
	if opts.AllocAttempts > 0 {
		alloc.MaxAttempts = opts.AllocAttempts
	}

	dir := NewDirectory(store, alloc)
	dir.Now = opts.Now
	dir.Logger = opts.Logger.Named("directory")

	reg := NewRegistry(store, alloc)
	reg.Logger = opts.Logger.Named("registry")

	eng := NewEngine(store)
	eng.Logger = opts.Logger.Named("engine")
	if opts.CASAttempts > 0 {
		eng.MaxAttempts = opts.CASAttempts
	}

	aud := NewAuditor(log)
	aud.Now = opts.Now
	if opts.StoreTimeout > 0 {
		aud.Timeout = opts.StoreTimeout
	}
	aud.Logger = opts.Logger.Named("audit")

	b := &Bank{
		Allocator: alloc,
		Directory: dir,
		Registry:  reg,
		Locator:   NewLocator(store),
		Engine:    eng,
		audit:     aud,
		logger:    opts.Logger,
	}

	guard := []Middleware{Audited(aud), Validate}
	b.deposit = Chain(b.resolved(eng.Deposit), guard...)
	b.withdraw = Chain(b.resolved(eng.Withdraw), guard...)
	b.pay = Chain(b.resolved(eng.PayBalance), guard...)
	b.view = Chain(b.resolvedView, guard...)
	return b
}

// =============================================================================
// USERS AND ACCOUNTS
// =============================================================================

// CreateUser registers an active employee or customer and returns the new id.
func (b *Bank) CreateUser(ctx context.Context, first, last string, kind UserKind, designation string) (UserID, error) {
	id, err := b.Directory.CreateUser(ctx, first, last, kind, designation)
	e := AuditEvent{Action: AuditUserCreated}
	if err == nil {
		e.UserID = &id
	}
	b.audit.Record(ctx, e, err)
	return id, err
}

// AuthenticateUser checks that id, kind and first name name one active user.
func (b *Bank) AuthenticateUser(ctx context.Context, id UserID, kind UserKind, first string) error {
	err := b.Directory.Authenticate(ctx, id, kind, first)
	b.audit.Record(ctx, AuditEvent{Action: AuditUserAuth, UserID: &id}, err)
	return err
}

// AddAccount opens an account for an active customer.
func (b *Bank) AddAccount(ctx context.Context, ownerID UserID, ownerFirst string, typ AccountType, initial int64) (AcctNo, error) {
	no, err := b.Registry.AddAccount(ctx, ownerID, ownerFirst, typ, initial)
	e := AuditEvent{Action: AuditAccountCreated, UserID: &ownerID, AcctNo: no, Amount: initial}
	if err == nil {
		avail, rem := initial, int64(0)
		e.Available, e.Remaining = &avail, &rem
	}
	b.audit.Record(ctx, e, err)
	return no, err
}

// ResolveAccount reports whether the caller may perform op on acctNo.
func (b *Bank) ResolveAccount(ctx context.Context, owner *UserID, acctNo AcctNo, op Operation) (Account, error) {
	a, err := b.Locator.Resolve(ctx, owner, acctNo, op)
	if err != nil {
		b.audit.Record(ctx, AuditEvent{Action: AuditAccountResolved, UserID: owner, AcctNo: acctNo}, err)
	}
	return a, err
}

// ListAccounts returns the owner's active accounts.
func (b *Bank) ListAccounts(ctx context.Context, owner UserID) ([]Account, error) {
	return b.Locator.ListAccounts(ctx, owner)
}

// =============================================================================
// BALANCE OPERATIONS
// =============================================================================

// Deposit credits amt to acctNo. A nil owner is a teller deposit.
func (b *Bank) Deposit(ctx context.Context, owner *UserID, acctNo AcctNo, amt int64) (Receipt, error) {
	return b.deposit(ctx, b.tx(ctx, TxDeposit, owner, acctNo, amt))
}

// Withdraw debits amt from the owner's account.
func (b *Bank) Withdraw(ctx context.Context, owner *UserID, acctNo AcctNo, amt int64) (Receipt, error) {
	return b.withdraw(ctx, b.tx(ctx, TxWithdraw, owner, acctNo, amt))
}

// PayBalance pays amt toward a credit or loan account's owed amount.
func (b *Bank) PayBalance(ctx context.Context, owner *UserID, acctNo AcctNo, amt int64) (Receipt, error) {
	return b.pay(ctx, b.tx(ctx, TxPay, owner, acctNo, amt))
}

// ShowBalance reads the account's current balances.
func (b *Bank) ShowBalance(ctx context.Context, owner *UserID, acctNo AcctNo) (Balance, error) {
	r, err := b.view(ctx, b.tx(ctx, TxViewBalance, owner, acctNo, 0))
	if err != nil {
		return Balance{}, err
	}
	return Balance{AcctNo: r.AcctNo, Type: r.Type, Available: r.Available, Remaining: r.Remaining}, nil
}

// Execute runs an already-built transaction through the same pipeline.
func (b *Bank) Execute(ctx context.Context, tx Transaction) (Receipt, error) {
	if tx.ActorID == nil {
		tx.ActorID = ActorFrom(ctx)
	}
	switch tx.Kind {
	case TxDeposit:
		return b.deposit(ctx, tx)
	case TxWithdraw:
		return b.withdraw(ctx, tx)
	case TxPay:
		return b.pay(ctx, tx)
	default:
		return b.view(ctx, tx)
	}
}

func (b *Bank) tx(ctx context.Context, kind TxKind, owner *UserID, acctNo AcctNo, amt int64) Transaction {
	return Transaction{ActorID: ActorFrom(ctx), OwnerID: owner, AcctNo: acctNo, Kind: kind, Amount: amt}
}

type mutation func(ctx context.Context, owner *UserID, acctNo AcctNo, amt int64) (Receipt, error)

// resolved checks access before handing the transaction to the engine.
func (b *Bank) resolved(m mutation) Handler {
	return func(ctx context.Context, tx Transaction) (Receipt, error) {
		if _, err := b.Locator.Resolve(ctx, tx.OwnerID, tx.AcctNo, tx.Kind.Operation()); err != nil {
			return Receipt{}, err
		}
		return m(ctx, tx.OwnerID, tx.AcctNo, tx.Amount)
	}
}

func (b *Bank) resolvedView(ctx context.Context, tx Transaction) (Receipt, error) {
	if _, err := b.Locator.Resolve(ctx, tx.OwnerID, tx.AcctNo, OpView); err != nil {
		return Receipt{}, err
	}
	bal, err := b.Engine.ShowBalance(ctx, tx.OwnerID, tx.AcctNo)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		AcctNo:    bal.AcctNo,
		Kind:      TxViewBalance,
		Type:      bal.Type,
		Available: bal.Available,
		Remaining: bal.Remaining,
	}, nil
}
