/*
allocator.go - Collision-free identifiers for users and accounts

PURPOSE:
  Draws random numeric identifiers from fixed ranges and claims them in the
  Store. Users live in [1, 100000], accounts in [100001, 1000000], so a user
  id can never be mistaken for an account number.

CLAIM CYCLE:
  1. Draw a candidate, skipping ones the store already holds
  2. Insert the record under that candidate
  3. ErrDuplicateKey on insert means another caller won the race between
     the check and the insert: start a fresh cycle
  4. Any other store failure also restarts the cycle
  After MaxAttempts cycles the allocation fails with a *StoreError
  wrapping ErrAllocationExhausted.

  The pre-check only saves a wasted insert. Uniqueness comes from the
  store's primary key, never from the check.
*/
package bank

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
)

// IDSpace names a disjoint identifier range.
type IDSpace int

const (
	UserSpace IDSpace = iota
	AccountSpace
)

func (s IDSpace) String() string {
	if s == AccountSpace {
		return "accounts"
	}
	return "users"
}

// Range returns the inclusive bounds of the space.
func (s IDSpace) Range() (lo, hi uint32) {
	if s == AccountSpace {
		return 100001, 1000000
	}
	return 1, 100000
}

// DefaultAllocAttempts bounds the claim cycles of one allocation.
const DefaultAllocAttempts = 16

// InsertFunc inserts a record under id and reports rows affected.
type InsertFunc func(ctx context.Context, id uint32) (int64, error)

// Allocator hands out random unused ids and claims them through the store key.
type Allocator struct {
	Store       Store
	MaxAttempts int

	// Rand draws from [lo, hi]. Replaced in tests to force collisions.
	Rand   func(lo, hi uint32) uint32
	Logger *zap.Logger
}

// NewAllocator returns an Allocator drawing uniformly from each space.
func NewAllocator(store Store) *Allocator {
	return &Allocator{
		Store:       store,
		MaxAttempts: DefaultAllocAttempts,
		Rand:        uniform,
		Logger:      zap.NewNop(),
	}
}

func uniform(lo, hi uint32) uint32 {
	return lo + rand.Uint32N(hi-lo+1)
}

// Allocate returns a candidate that no record held at the time of the check.
// Callers that insert must go through Claim.
func (a *Allocator) Allocate(ctx context.Context, space IDSpace) (uint32, error) {
	lo, hi := space.Range()
	for i := 0; i < a.attempts(); i++ {
		id := a.Rand(lo, hi)
		taken, err := a.exists(ctx, space, id)
		if err != nil {
			return 0, storeErr("allocate "+space.String(), err)
		}
		if !taken {
			return id, nil
		}
	}
	return 0, &StoreError{Op: "allocate " + space.String(), Err: ErrAllocationExhausted, Transient: true}
}

// Claim allocates an id and inserts under it, retrying whole cycles on
// collisions and store failures.
func (a *Allocator) Claim(ctx context.Context, space IDSpace, insert InsertFunc) (uint32, error) {
	var lastErr error
	for cycle := 0; cycle < a.attempts(); cycle++ {
		if err := ctx.Err(); err != nil {
			return 0, storeErr("allocate "+space.String(), err)
		}

		id, err := a.Allocate(ctx, space)
		if err != nil {
			lastErr = err
			continue
		}

		n, err := insert(ctx, id)
		switch {
		case errors.Is(err, ErrDuplicateKey):
			a.Logger.Debug("identifier collision, retrying",
				zap.Stringer("space", space), zap.Uint32("id", id), zap.Int("cycle", cycle))
			lastErr = err
			continue
		case err != nil:
			a.Logger.Warn("insert failed during allocation, retrying",
				zap.Stringer("space", space), zap.Error(err), zap.Int("cycle", cycle))
			lastErr = err
			continue
		case n != 1:
			lastErr = fmt.Errorf("insert affected %d rows", n)
			continue
		}
		return id, nil
	}

	return 0, &StoreError{
		Op:        "allocate " + space.String(),
		Err:       errors.Join(ErrAllocationExhausted, lastErr),
		Transient: true,
	}
}

func (a *Allocator) exists(ctx context.Context, space IDSpace, id uint32) (bool, error) {
	if space == AccountSpace {
		accts, err := a.Store.FindAccounts(ctx, AccountFilter{AcctNo: AcctNo(id)})
		return len(accts) > 0, err
	}
	users, err := a.Store.FindUsers(ctx, UserFilter{ID: UserID(id)})
	return len(users) > 0, err
}

func (a *Allocator) attempts() int {
	if a.MaxAttempts <= 0 {
		return DefaultAllocAttempts
	}
	return a.MaxAttempts
}
