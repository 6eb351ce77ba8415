package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/console-bank/internal/storage"
)

func assertSameAccount(t *testing.T, want, got *Account) {
	t.Helper()
	assert.Equal(t, want.Number(), got.Number())
	assert.Equal(t, want.Type(), got.Type())
	assert.Equal(t, want.pin, got.pin)
	assert.True(t, want.Balance().Equal(got.Balance()), "balance %s != %s", want.Balance(), got.Balance())
	assert.Equal(t, want.Active(), got.Active())
	assert.Equal(t, want.Frozen(), got.Frozen())
	assert.True(t, want.OpenedAt().Equal(got.OpenedAt()))

	wantTxs, gotTxs := want.Transactions(), got.Transactions()
	require.Len(t, gotTxs, len(wantTxs))
	for i := range wantTxs {
		assert.Equal(t, wantTxs[i].ID, gotTxs[i].ID)
		assert.Equal(t, wantTxs[i].Kind, gotTxs[i].Kind)
		assert.True(t, wantTxs[i].Amount.Equal(gotTxs[i].Amount))
		assert.Equal(t, wantTxs[i].Status, gotTxs[i].Status)
		assert.Equal(t, wantTxs[i].Detail, gotTxs[i].Detail)
		assert.Equal(t, wantTxs[i].Timestamp, gotTxs[i].Timestamp, "timestamps must survive exactly")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw := storage.NewMemoryGateway()
	orig := newTestDirectory(t, gw)

	register(t, orig, "ada")
	_, err := orig.RegisterCustomer(ctx, "bob", "pass-bob", Profile{
		Name: "Bob", Address: "2 Engine Rd", DOB: "1791-12-26", Phone: "+44 20 0000", Email: "bob@example.com",
	})
	require.NoError(t, err)

	savings, err := orig.OpenAccount(ctx, "ada", Savings, "1234")
	require.NoError(t, err)
	current, err := orig.OpenAccount(ctx, "ada", Current, "5678")
	require.NoError(t, err)
	_, err = orig.Deposit(ctx, "ada", savings.Number(), "1234", dec("1000.10"))
	require.NoError(t, err)
	_, err = orig.Withdraw(ctx, "ada", savings.Number(), "1234", dec("0.35"))
	require.NoError(t, err)
	require.NoError(t, orig.Transfer(ctx, "ada", savings.Number(), "1234", "ada", current.Number(), dec("250.05")))
	require.NoError(t, orig.FreezeAccount(ctx, "ada", current.Number()))
	require.NoError(t, orig.CloseAccount(ctx, "ada", savings.Number()))

	loaded := NewDirectory(gw, WithClock(fixedClock()))
	require.NoError(t, loaded.Hydrate(ctx))

	assert.Equal(t, orig.ListCustomers(), loaded.ListCustomers())
	for _, username := range orig.ListCustomers() {
		want, err := orig.FindCustomer(username)
		require.NoError(t, err)
		got, err := loaded.FindCustomer(username)
		require.NoError(t, err)

		assert.Equal(t, want.Username(), got.Username())
		assert.Equal(t, want.password, got.password)
		assert.Equal(t, want.Profile(), got.Profile())

		wantAccounts, gotAccounts := want.Accounts(), got.Accounts()
		require.Len(t, gotAccounts, len(wantAccounts))
		for i := range wantAccounts {
			assertSameAccount(t, wantAccounts[i], gotAccounts[i])
		}
	}

	bob, err := loaded.FindCustomer("bob")
	require.NoError(t, err)
	assert.Empty(t, bob.Accounts())

	ada, err := loaded.FindCustomer("ada")
	require.NoError(t, err)
	restoredSavings, err := ada.GetAccount(savings.Number())
	require.NoError(t, err)
	assert.Equal(t, "closed-unfrozen", restoredSavings.State())
	assert.True(t, restoredSavings.Balance().Equal(dec("749.70")))
	restoredCurrent, err := ada.GetAccount(current.Number())
	require.NoError(t, err)
	assert.Equal(t, "active-frozen", restoredCurrent.State())
	assert.True(t, restoredCurrent.CheckPin("5678"))

	_, err = loaded.AuthenticateCustomer("bob", "pass-bob")
	assert.NoError(t, err)
}

func TestSnapshotEncodingIsExactAndOmitsStaff(t *testing.T) {
	ctx := context.Background()
	gw := storage.NewMemoryGateway()
	d := newTestDirectory(t, gw)
	register(t, d, "ada")
	acc, err := d.OpenAccount(ctx, "ada", Savings, "1234")
	require.NoError(t, err)
	_, err = d.Deposit(ctx, "ada", acc.Number(), "1234", dec("0.10"))
	require.NoError(t, err)

	blob, err := gw.Get(ctx, DefaultSnapshotKey)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "admin123")

	var raw struct {
		Meta      snapshotMeta `json:"_meta"`
		Customers []struct {
			Accounts []struct {
				Balance      json.RawMessage `json:"balance"`
				Transactions []struct {
					Amount json.RawMessage `json:"amount"`
				} `json:"transactions"`
			} `json:"accounts"`
		} `json:"customers"`
	}
	require.NoError(t, json.Unmarshal(blob, &raw))
	assert.Equal(t, snapshotStorage, raw.Meta.Storage)
	assert.Equal(t, snapshotVersion, raw.Meta.Version)
	require.Len(t, raw.Customers, 1)
	require.Len(t, raw.Customers[0].Accounts, 1)
	assert.JSONEq(t, `"0.1"`, string(raw.Customers[0].Accounts[0].Balance), "decimals are stored as strings")
	assert.JSONEq(t, `"0.1"`, string(raw.Customers[0].Accounts[0].Transactions[0].Amount))
}
