package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyashhp/sim-exchange/internal/common"
)

func newTestLedger() (*Ledger, *Account) {
	led := New()
	acct := led.Admit("p1", "Alice", 100, map[common.Product]int64{
		"bread": 3, "cheese": 1,
	})
	return led, acct
}

func TestCashAccounting(t *testing.T) {
	led, acct := newTestLedger()

	require.NoError(t, led.CreditCash("p1", 50))
	assert.Equal(t, int64(150), acct.Cash)

	require.NoError(t, led.DebitCash("p1", 150))
	assert.Equal(t, int64(0), acct.Cash)

	assert.ErrorIs(t, led.DebitCash("p1", 1), ErrInsufficientCash)
	assert.Equal(t, int64(0), acct.Cash, "failed debit must not touch the balance")

	assert.ErrorIs(t, led.CreditCash("ghost", 1), ErrUnknownAccount)
}

func TestInventoryAccounting(t *testing.T) {
	led, acct := newTestLedger()

	require.NoError(t, led.CreditInventory("p1", "bread", 2))
	assert.Equal(t, int64(5), acct.Inventory["bread"])

	require.NoError(t, led.DebitInventory("p1", "bread", 5))
	assert.Equal(t, int64(0), acct.Inventory["bread"])

	assert.ErrorIs(t, led.DebitInventory("p1", "bread", 1), ErrInsufficientInventory)
	assert.ErrorIs(t, led.DebitInventory("p1", "veggies", 1), ErrInsufficientInventory)
}

func TestOpenOrderSet(t *testing.T) {
	led, acct := newTestLedger()

	led.AddOpenOrder("p1", "o1")
	led.AddOpenOrder("p1", "o2")
	assert.Len(t, acct.OpenOrders, 2)

	led.RemoveOpenOrder("p1", "o1")
	assert.Len(t, acct.OpenOrders, 1)
	_, ok := acct.OpenOrders["o2"]
	assert.True(t, ok)

	// Unknown ids are a no-op either way.
	led.RemoveOpenOrder("p1", "o1")
	led.RemoveOpenOrder("ghost", "o2")
	assert.Len(t, acct.OpenOrders, 1)
}

func TestNameUniqueness(t *testing.T) {
	led, _ := newTestLedger()

	assert.True(t, led.HasName("alice"), "names compare case-insensitively")
	assert.True(t, led.HasName("ALICE"))
	assert.False(t, led.HasName("bob"))

	// A name freed by a leave is reusable.
	led.Remove("p1")
	assert.False(t, led.HasName("alice"))
}

func TestAdmissionOrder(t *testing.T) {
	led := New()
	led.Admit("a", "A", 0, nil)
	led.Admit("b", "B", 0, nil)
	led.Admit("c", "C", 0, nil)
	led.Remove("b")

	accounts := led.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, "a", accounts[0].ID)
	assert.Equal(t, "c", accounts[1].ID)
}

func TestCompleteSetsAndScrap(t *testing.T) {
	led := New()
	acct := led.Admit("p1", "Alice", 20, map[common.Product]int64{
		"bread": 2, "veggies": 2, "cheese": 1, "meat": 1,
	})

	recipe := map[common.Product]int64{"bread": 1, "veggies": 1, "cheese": 1, "meat": 1}
	scrap := map[common.Product]int64{"bread": 2, "veggies": 4, "cheese": 6, "meat": 8}

	assert.Equal(t, int64(1), acct.CompleteSets(recipe))
	assert.Equal(t, int64(2*2+2*4+6+8), acct.ScrapValue(scrap))
	assert.Equal(t, acct.ScrapValue(scrap), acct.InitialScrapValue(scrap))

	// The initial snapshot is frozen against later mutation.
	require.NoError(t, led.DebitInventory("p1", "meat", 1))
	assert.Equal(t, int64(0), acct.CompleteSets(recipe))
	assert.Equal(t, int64(2*2+2*4+6+8), acct.InitialScrapValue(scrap))
}

func TestCompleteSetsRatioRecipe(t *testing.T) {
	led := New()
	acct := led.Admit("p1", "Alice", 0, map[common.Product]int64{
		"bread": 5, "veggies": 3,
	})
	recipe := map[common.Product]int64{"bread": 2, "veggies": 1}
	assert.Equal(t, int64(2), acct.CompleteSets(recipe))
}
