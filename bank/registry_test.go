package bank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/retail-ledger/bank"
)

func TestRegistry_AddAccount(t *testing.T) {
	b, mem := newTestBank(t, bank.Options{})
	ctx := context.Background()

	c := mustUser(t, b, "Lena", "Ng", bank.KindCustomer)

	for _, typ := range bank.AllAccountTypes {
		t.Run(string(typ), func(t *testing.T) {
			no, err := b.Registry.AddAccount(ctx, c, "lena", typ, 750)
			require.NoError(t, err)

			lo, hi := bank.AccountSpace.Range()
			assert.GreaterOrEqual(t, uint32(no), lo)
			assert.LessOrEqual(t, uint32(no), hi)

			accts, err := mem.FindAccounts(ctx, bank.AccountFilter{AcctNo: no})
			require.NoError(t, err)
			require.Len(t, accts, 1)
			assert.Equal(t, bank.Account{
				AcctNo:    no,
				OwnerID:   c,
				Type:      typ,
				Available: 750,
				Remaining: 0,
				Status:    bank.StatusActive,
			}, accts[0])
		})
	}
}

func TestRegistry_AddAccount_OwnerMustBeActiveCustomer(t *testing.T) {
	b, _ := newTestBank(t, bank.Options{})
	ctx := context.Background()

	emp := mustUser(t, b, "Max", "Orr", bank.KindEmployee)
	cust := mustUser(t, b, "Nia", "Poe", bank.KindCustomer)

	tests := []struct {
		name  string
		owner bank.UserID
		first string
	}{
		{"employee", emp, "Max"},
		{"wrong first name", cust, "Nina"},
		{"blank first name", cust, "  "},
		{"unknown id", 99999, "Nia"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Registry.AddAccount(ctx, tt.owner, tt.first, bank.Checking, 100)
			assert.ErrorIs(t, err, bank.ErrOwnerNotFound)
			assert.True(t, bank.IsNotFound(err))
		})
	}
}

func TestRegistry_AddAccount_Validation(t *testing.T) {
	b, _ := newTestBank(t, bank.Options{})
	ctx := context.Background()
	c := mustUser(t, b, "Oli", "Quin", bank.KindCustomer)

	_, err := b.Registry.AddAccount(ctx, 0, "Oli", bank.Checking, 100)
	assert.ErrorIs(t, err, bank.ErrInvalidOwner)

	_, err = b.Registry.AddAccount(ctx, c, "Oli", bank.Checking, 0)
	assert.ErrorIs(t, err, bank.ErrInvalidAmount)

	_, err = b.Registry.AddAccount(ctx, c, "Oli", bank.AccountType("Brokerage"), 100)
	assert.ErrorIs(t, err, bank.ErrInvalidAccountType)
}

func TestParseAccountType(t *testing.T) {
	typ, err := bank.ParseAccountType("savings")
	require.NoError(t, err)
	assert.Equal(t, bank.Savings, typ)
	assert.True(t, typ.IsDeposit())

	typ, err = bank.ParseAccountType("LOAN")
	require.NoError(t, err)
	assert.True(t, typ.IsCredit())

	_, err = bank.ParseAccountType("Brokerage")
	assert.ErrorIs(t, err, bank.ErrInvalidAccountType)
}
