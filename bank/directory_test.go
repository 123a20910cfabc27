package bank_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/retail-ledger/bank"
	"github.com/warp/retail-ledger/bank/store"
)

func newTestDirectory() (*bank.Directory, *store.Memory) {
	mem := store.NewMemory()
	dir := bank.NewDirectory(mem, bank.NewAllocator(mem))
	dir.Now = func() time.Time { return time.Date(2025, time.March, 10, 9, 30, 15, 500, time.UTC) }
	return dir, mem
}

func TestDirectory_CreateThenAuthenticate(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	id, err := dir.CreateUser(ctx, "Amy", "Lee", bank.KindCustomer, "")
	require.NoError(t, err)
	lo, hi := bank.UserSpace.Range()
	assert.GreaterOrEqual(t, uint32(id), lo)
	assert.LessOrEqual(t, uint32(id), hi)

	assert.NoError(t, dir.Authenticate(ctx, id, bank.KindCustomer, "Amy"))
	assert.NoError(t, dir.Authenticate(ctx, id, bank.KindCustomer, "amy"), "first name is case-insensitive")
}

func TestDirectory_AuthenticateFailsOnAnyMismatch(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	id, err := dir.CreateUser(ctx, "Raj", "Patel", bank.KindEmployee, "Manager")
	require.NoError(t, err)

	tests := []struct {
		name  string
		id    bank.UserID
		kind  bank.UserKind
		first string
	}{
		{"wrong id", id + 1, bank.KindEmployee, "Raj"},
		{"wrong kind", id, bank.KindCustomer, "Raj"},
		{"wrong first name", id, bank.KindEmployee, "Roj"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dir.Authenticate(ctx, tt.id, tt.kind, tt.first)
			assert.ErrorIs(t, err, bank.ErrNotFound)
		})
	}
}

func TestDirectory_InactiveUserCannotAuthenticate(t *testing.T) {
	dir, mem := newTestDirectory()
	ctx := context.Background()

	_, err := mem.InsertUser(ctx, bank.User{
		ID: 77, Kind: bank.KindCustomer, FirstName: "Old", LastName: "Timer", Status: bank.StatusInactive,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, dir.Authenticate(ctx, 77, bank.KindCustomer, "Old"), bank.ErrNotFound)
}

func TestDirectory_CreateUser_Validation(t *testing.T) {
	dir, mem := newTestDirectory()
	ctx := context.Background()

	tests := []struct {
		name        string
		first, last string
		kind        bank.UserKind
		designation string
		field       string
		want        error
	}{
		{"empty first name", "", "Lee", bank.KindCustomer, "", "first_name", bank.ErrEmptyField},
		{"blank last name", "Amy", "   ", bank.KindCustomer, "", "last_name", bank.ErrEmptyField},
		{"unknown kind", "Amy", "Lee", bank.UserKind("X"), "", "kind", bank.ErrInvalidKind},
		{"employee without designation", "Amy", "Lee", bank.KindEmployee, "", "designation", bank.ErrMissingDesignation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dir.CreateUser(ctx, tt.first, tt.last, tt.kind, tt.designation)
			require.ErrorIs(t, err, tt.want)

			var ve *bank.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, bank.IsClientError(err))
		})
	}

	users, err := mem.FindUsers(ctx, bank.UserFilter{})
	require.NoError(t, err)
	assert.Empty(t, users, "rejected users are never stored")
}

func TestDirectory_CreateUser_NormalizesFields(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	id, err := dir.CreateUser(ctx, "  Amy ", " Lee", bank.KindCustomer, "Ignored")
	require.NoError(t, err)

	u, err := dir.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Amy", u.FirstName)
	assert.Equal(t, "Lee", u.LastName)
	assert.Empty(t, u.Designation, "customers carry no designation")
	assert.Equal(t, bank.StatusActive, u.Status)
	assert.Equal(t, time.Date(2025, time.March, 10, 9, 30, 15, 0, time.UTC), u.CreatedAt)
}

func TestDirectory_Get_Unknown(t *testing.T) {
	dir, _ := newTestDirectory()
	_, err := dir.Get(context.Background(), 12345)
	assert.ErrorIs(t, err, bank.ErrNotFound)
}

func TestParseUserKind(t *testing.T) {
	k, err := bank.ParseUserKind("employee")
	require.NoError(t, err)
	assert.Equal(t, bank.KindEmployee, k)

	k, err = bank.ParseUserKind("c")
	require.NoError(t, err)
	assert.Equal(t, bank.KindCustomer, k)

	_, err = bank.ParseUserKind("admin")
	assert.ErrorIs(t, err, bank.ErrInvalidKind)
}
