package bank_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/retail-ledger/bank"
	"github.com/warp/retail-ledger/bank/store"
)

func insertUser(mem *store.Memory) bank.InsertFunc {
	return func(ctx context.Context, id uint32) (int64, error) {
		return mem.InsertUser(ctx, bank.User{
			ID:        bank.UserID(id),
			Kind:      bank.KindCustomer,
			FirstName: "Test",
			LastName:  "User",
			Status:    bank.StatusActive,
		})
	}
}

// sequence returns the given draws in order, then repeats the last one.
func sequence(draws ...uint32) func(lo, hi uint32) uint32 {
	var (
		mu sync.Mutex
		i  int
	)
	return func(lo, hi uint32) uint32 {
		mu.Lock()
		defer mu.Unlock()
		d := draws[min(i, len(draws)-1)]
		i++
		return d
	}
}

func TestIDSpace_RangesAreDisjoint(t *testing.T) {
	ulo, uhi := bank.UserSpace.Range()
	alo, ahi := bank.AccountSpace.Range()

	assert.Equal(t, uint32(1), ulo)
	assert.Equal(t, uint32(100000), uhi)
	assert.Equal(t, uint32(100001), alo)
	assert.Equal(t, uint32(1000000), ahi)
}

func TestAllocator_DrawsWithinRange(t *testing.T) {
	alloc := bank.NewAllocator(store.NewMemory())
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		id, err := alloc.Allocate(ctx, bank.AccountSpace)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, id, uint32(100001))
		assert.LessOrEqual(t, id, uint32(1000000))
	}
}

func TestAllocator_SkipsTakenCandidates(t *testing.T) {
	mem := store.NewMemory()
	_, err := insertUser(mem)(context.Background(), 7)
	require.NoError(t, err)

	alloc := bank.NewAllocator(mem)
	alloc.Rand = sequence(7, 7, 8)

	id, err := alloc.Allocate(context.Background(), bank.UserSpace)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), id)
}

func TestAllocator_Claim_RetriesLostRace(t *testing.T) {
	// GIVEN: A competitor claims 42 between our check and our insert
	// WHEN: Claiming
	// THEN: The duplicate key starts a fresh cycle, which lands on 43

	mem := store.NewMemory()
	alloc := bank.NewAllocator(mem)
	alloc.Rand = sequence(42, 42, 43)

	raced := false
	insert := func(ctx context.Context, id uint32) (int64, error) {
		if !raced {
			raced = true
			_, err := insertUser(mem)(ctx, id)
			require.NoError(t, err)
		}
		return insertUser(mem)(ctx, id)
	}

	id, err := alloc.Claim(context.Background(), bank.UserSpace, insert)
	require.NoError(t, err)
	assert.Equal(t, uint32(43), id)
}

func TestAllocator_Claim_RetriesStoreFailure(t *testing.T) {
	mem := store.NewMemory()
	alloc := bank.NewAllocator(mem)

	calls := 0
	insert := func(ctx context.Context, id uint32) (int64, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("connection reset by peer")
		}
		return insertUser(mem)(ctx, id)
	}

	_, err := alloc.Claim(context.Background(), bank.UserSpace, insert)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestAllocator_Claim_Exhausted(t *testing.T) {
	mem := store.NewMemory()
	_, err := insertUser(mem)(context.Background(), 5)
	require.NoError(t, err)

	alloc := bank.NewAllocator(mem)
	alloc.MaxAttempts = 3
	alloc.Rand = sequence(5)

	_, err = alloc.Claim(context.Background(), bank.UserSpace, insertUser(mem))
	require.Error(t, err)
	assert.ErrorIs(t, err, bank.ErrAllocationExhausted)
	assert.True(t, bank.IsRetryable(err))

	var se *bank.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "allocate users", se.Op)
}

func TestAllocator_Claim_CancelledContext(t *testing.T) {
	alloc := bank.NewAllocator(store.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := alloc.Claim(ctx, bank.UserSpace, insertUser(store.NewMemory()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAllocator_Claim_UniqueUnderConcurrency(t *testing.T) {
	// GIVEN: Every draw lands on the same id, so callers collide for sure
	// WHEN: Twenty callers claim at once
	// THEN: Exactly one wins; the rest exhaust their cycles

	mem := store.NewMemory()
	alloc := bank.NewAllocator(mem)
	alloc.MaxAttempts = 4
	alloc.Rand = func(lo, hi uint32) uint32 { return lo }

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		won    []uint32
		failed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := alloc.Claim(context.Background(), bank.UserSpace, insertUser(mem))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, bank.ErrAllocationExhausted)
				failed++
				return
			}
			won = append(won, id)
		}()
	}
	wg.Wait()

	assert.Equal(t, []uint32{1}, won)
	assert.Equal(t, 19, failed)
}

func TestAllocator_ConcurrentClaimsAcrossFullRange(t *testing.T) {
	mem := store.NewMemory()
	alloc := bank.NewAllocator(mem)

	var (
		mu  sync.Mutex
		ids = map[uint32]bool{}
		wg  sync.WaitGroup
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := alloc.Claim(context.Background(), bank.UserSpace, insertUser(mem))
			assert.NoError(t, err)
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 100)
	users, err := mem.FindUsers(context.Background(), bank.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 100)
}
