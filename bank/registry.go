package bank

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Registry opens accounts for verified customers.
type Registry struct {
	Store  Store
	Alloc  *Allocator
	Logger *zap.Logger
}

// NewRegistry returns a Registry that allocates account numbers through alloc.
func NewRegistry(store Store, alloc *Allocator) *Registry {
	return &Registry{Store: store, Alloc: alloc, Logger: zap.NewNop()}
}

// AddAccount opens an account for the active customer identified by
// ownerID and first name. For deposit accounts initial is the opening
// deposit; for credit/loan accounts it is the approved limit.
func (r *Registry) AddAccount(ctx context.Context, ownerID UserID, ownerFirst string, typ AccountType, initial int64) (AcctNo, error) {
	r.Logger.Debug("open add account", zap.Uint32("owner_id", uint32(ownerID)))
	defer r.Logger.Debug("close add account", zap.Uint32("owner_id", uint32(ownerID)))

	switch {
	case ownerID == 0:
		return 0, invalid("owner_id", ErrInvalidOwner)
	case initial <= 0:
		return 0, invalid("initial_balance", ErrInvalidAmount)
	case !typ.Valid():
		return 0, invalid("type", ErrInvalidAccountType)
	}

	ownerFirst = strings.TrimSpace(ownerFirst)
	if ownerFirst == "" {
		return 0, ErrOwnerNotFound
	}

	owners, err := r.Store.FindUsers(ctx, UserFilter{
		ID:        ownerID,
		FirstName: ownerFirst,
		Kind:      KindCustomer,
		Status:    StatusActive,
	})
	if err != nil {
		return 0, storeErr("find users", err)
	}
	if len(owners) != 1 {
		return 0, ErrOwnerNotFound
	}

	no, err := r.Alloc.Claim(ctx, AccountSpace, func(ctx context.Context, no uint32) (int64, error) {
		return r.Store.InsertAccount(ctx, Account{
			AcctNo:    AcctNo(no),
			OwnerID:   ownerID,
			Type:      typ,
			Available: initial,
			Remaining: 0,
			Status:    StatusActive,
		})
	})
	if err != nil {
		return 0, err
	}

	r.Logger.Info("account created",
		zap.Uint32("acct_no", no), zap.Uint32("owner_id", uint32(ownerID)), zap.String("type", string(typ)))
	return AcctNo(no), nil
}
