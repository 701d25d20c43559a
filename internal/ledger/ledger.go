// Package ledger tracks per-participant cash, inventory and open orders.
// All mutation goes through the engine's single writer; the ledger itself
// only refuses to go below zero.
package ledger

import (
	"errors"
	"strings"
	"time"

	"github.com/yyashhp/sim-exchange/internal/common"
)

var (
	ErrInsufficientCash      = errors.New("insufficient cash")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrUnknownAccount        = errors.New("unknown account")
)

// Account is one participant's holdings. Initial* fields are frozen at
// admission and used for endgame PnL.
type Account struct {
	ID       string
	Name     string
	Cash     int64
	Inventory map[common.Product]int64

	OpenOrders map[string]struct{}
	TradeIDs   []string

	InitialCash      int64
	InitialInventory map[common.Product]int64

	AdmitSeq int // Ledger size at admission; leaderboards break ties by Accounts() order
	JoinedAt time.Time
}

type Ledger struct {
	accounts map[string]*Account
	order    []string // Ids in admission order
}

func New() *Ledger {
	return &Ledger{accounts: make(map[string]*Account)}
}

// Admit registers a new account with its starting holdings.
func (l *Ledger) Admit(id, name string, cash int64, inventory map[common.Product]int64) *Account {
	inv := make(map[common.Product]int64, len(inventory))
	initial := make(map[common.Product]int64, len(inventory))
	for p, n := range inventory {
		inv[p] = n
		initial[p] = n
	}
	acct := &Account{
		ID:               id,
		Name:             name,
		Cash:             cash,
		Inventory:        inv,
		OpenOrders:       make(map[string]struct{}),
		InitialCash:      cash,
		InitialInventory: initial,
		AdmitSeq:         len(l.order),
		JoinedAt:         time.Now().UTC(),
	}
	l.accounts[id] = acct
	l.order = append(l.order, id)
	return acct
}

// Remove drops an account. Only legal while the session is in lobby.
func (l *Ledger) Remove(id string) {
	delete(l.accounts, id)
	for i, pid := range l.order {
		if pid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Ledger) Account(id string) (*Account, bool) {
	acct, ok := l.accounts[id]
	return acct, ok
}

// Accounts returns all accounts in admission order.
func (l *Ledger) Accounts() []*Account {
	out := make([]*Account, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.accounts[id])
	}
	return out
}

func (l *Ledger) Len() int { return len(l.accounts) }

// HasName reports whether any current account uses the name,
// case-insensitively. Names freed by a leave are reusable.
func (l *Ledger) HasName(name string) bool {
	for _, acct := range l.accounts {
		if strings.EqualFold(acct.Name, name) {
			return true
		}
	}
	return false
}

func (l *Ledger) CreditCash(id string, n int64) error {
	acct, ok := l.accounts[id]
	if !ok {
		return ErrUnknownAccount
	}
	acct.Cash += n
	return nil
}

func (l *Ledger) DebitCash(id string, n int64) error {
	acct, ok := l.accounts[id]
	if !ok {
		return ErrUnknownAccount
	}
	if acct.Cash < n {
		return ErrInsufficientCash
	}
	acct.Cash -= n
	return nil
}

func (l *Ledger) CreditInventory(id string, p common.Product, n int64) error {
	acct, ok := l.accounts[id]
	if !ok {
		return ErrUnknownAccount
	}
	acct.Inventory[p] += n
	return nil
}

func (l *Ledger) DebitInventory(id string, p common.Product, n int64) error {
	acct, ok := l.accounts[id]
	if !ok {
		return ErrUnknownAccount
	}
	if acct.Inventory[p] < n {
		return ErrInsufficientInventory
	}
	acct.Inventory[p] -= n
	return nil
}

func (l *Ledger) AddOpenOrder(id, orderID string) {
	if acct, ok := l.accounts[id]; ok {
		acct.OpenOrders[orderID] = struct{}{}
	}
}

func (l *Ledger) RemoveOpenOrder(id, orderID string) {
	if acct, ok := l.accounts[id]; ok {
		delete(acct.OpenOrders, orderID)
	}
}

func (l *Ledger) AppendTrade(id, tradeID string) {
	if acct, ok := l.accounts[id]; ok {
		acct.TradeIDs = append(acct.TradeIDs, tradeID)
	}
}

// CompleteSets is the number of whole recipe bundles the inventory covers.
func (a *Account) CompleteSets(recipe map[common.Product]int64) int64 {
	var k int64 = -1
	for p, need := range recipe {
		have := a.Inventory[p] / need
		if k < 0 || have < k {
			k = have
		}
	}
	if k < 0 {
		return 0
	}
	return k
}

// ScrapValue prices the current inventory at per-unit scrap values.
func (a *Account) ScrapValue(scrap map[common.Product]int64) int64 {
	var total int64
	for p, n := range a.Inventory {
		total += n * scrap[p]
	}
	return total
}

// InitialScrapValue prices the admission-time inventory.
func (a *Account) InitialScrapValue(scrap map[common.Product]int64) int64 {
	var total int64
	for p, n := range a.InitialInventory {
		total += n * scrap[p]
	}
	return total
}

// InventoryCopy snapshots the holdings for fan-out payloads.
func (a *Account) InventoryCopy() map[common.Product]int64 {
	out := make(map[common.Product]int64, len(a.Inventory))
	for p, n := range a.Inventory {
		out[p] = n
	}
	return out
}
