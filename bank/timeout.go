package bank

import (
	"context"
	"time"
)

// WithTimeout bounds every call on s to d. A call that runs out of time
// fails with a transient *StoreError instead of blocking its caller.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &boundedStore{next: s, timeout: d}
}

type boundedStore struct {
	next    Store
	timeout time.Duration
}

func (b *boundedStore) FindUsers(ctx context.Context, f UserFilter) ([]User, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	users, err := b.next.FindUsers(ctx, f)
	return users, storeErr("find users", err)
}

func (b *boundedStore) InsertUser(ctx context.Context, u User) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	n, err := b.next.InsertUser(ctx, u)
	return n, storeErr("insert user", err)
}

func (b *boundedStore) FindAccounts(ctx context.Context, f AccountFilter) ([]Account, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	accts, err := b.next.FindAccounts(ctx, f)
	return accts, storeErr("find accounts", err)
}

func (b *boundedStore) InsertAccount(ctx context.Context, a Account) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	n, err := b.next.InsertAccount(ctx, a)
	return n, storeErr("insert account", err)
}

func (b *boundedStore) UpdateBalance(ctx context.Context, u BalanceUpdate) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	n, err := b.next.UpdateBalance(ctx, u)
	return n, storeErr("update balance", err)
}
