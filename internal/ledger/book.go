// Package ledger holds an owner's transactions and wallets and keeps wallet
// balances consistent with the transaction history.
//
// A Book is one owner's state and is not safe for concurrent use. Store wraps
// books with locking, lazy loading and persistence.
package ledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Book is the in-memory ledger of a single owner.
type Book struct {
	snap          core.Snapshot
	defaults      []core.Category
	defaultsDirty bool
}

type effect struct {
	walletID string
	delta    decimal.Decimal
}

// NewBook builds a book from a persisted snapshot. Balances are recomputed
// from the transaction history, so a stale stored balance is corrected here.
func NewBook(snap core.Snapshot, defaults []core.Category) *Book {
	b := &Book{
		snap:     snap.Clone(),
		defaults: slices.Clone(defaults),
	}
	for i := range b.snap.Categories {
		b.snap.Categories[i].IsDefault = false
	}
	for _, t := range b.snap.Transactions {
		b.snap.NextSeq = max(b.snap.NextSeq, t.Seq)
	}
	for i := range b.snap.Transactions {
		if b.snap.Transactions[i].Seq == 0 {
			b.snap.NextSeq++
			b.snap.Transactions[i].Seq = b.snap.NextSeq
		}
	}
	b.Reconcile()
	return b
}

// Clone returns a deep copy of the book.
func (b *Book) Clone() *Book {
	return &Book{
		snap:          b.snap.Clone(),
		defaults:      slices.Clone(b.defaults),
		defaultsDirty: b.defaultsDirty,
	}
}

func (b *Book) OwnerID() string { return b.snap.OwnerID }
func (b *Book) Version() int64  { return b.snap.Version }

// Snapshot returns a copy of the owner's persisted state.
func (b *Book) Snapshot() core.Snapshot { return b.snap.Clone() }

func (b *Book) Transactions() []core.Transaction { return slices.Clone(b.snap.Transactions) }
func (b *Book) Wallets() []core.Wallet           { return slices.Clone(b.snap.Wallets) }
func (b *Book) Budgets() []core.Budget           { return slices.Clone(b.snap.Budgets) }
func (b *Book) Debts() []core.Debt               { return slices.Clone(b.snap.Debts) }
func (b *Book) Assets() []core.Asset             { return slices.Clone(b.snap.Assets) }

// Transaction looks up a transaction by id.
func (b *Book) Transaction(id string) (core.Transaction, bool) {
	i := b.txIndex(id)
	if i < 0 {
		return core.Transaction{}, false
	}
	return b.snap.Transactions[i], true
}

// Wallet looks up a wallet by id.
func (b *Book) Wallet(id string) (core.Wallet, bool) {
	i := b.walletIndex(id)
	if i < 0 {
		return core.Wallet{}, false
	}
	return b.snap.Wallets[i], true
}

// WalletName returns the wallet's name, or core.UnknownLabel for a dangling id.
func (b *Book) WalletName(id string) string {
	if w, ok := b.Wallet(id); ok {
		return w.Name
	}
	return core.UnknownLabel
}

// WalletNames maps every wallet id to its name.
func (b *Book) WalletNames() map[string]string {
	names := make(map[string]string, len(b.snap.Wallets))
	for _, w := range b.snap.Wallets {
		names[w.ID] = w.Name
	}
	return names
}

// ApplyNew validates t and appends it, applying its balance effect.
// Nothing changes when an error is returned.
func (b *Book) ApplyNew(t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	} else if b.txIndex(t.ID) >= 0 {
		return core.Transaction{}, core.Invalid("id", fmt.Errorf("%w: %s", core.ErrDuplicateID, t.ID))
	}
	if err := b.check(&t); err != nil {
		return core.Transaction{}, err
	}
	b.snap.NextSeq++
	t.Seq = b.snap.NextSeq
	b.snap.Transactions = append(b.snap.Transactions, t)
	b.apply(t, 1)
	return t, nil
}

// ApplyEdit replaces the stored transaction identified by old.ID with updated.
// The stored record's effect is reversed before the new one is applied, so
// changes of amount, type or wallets never leave a residue on any balance.
func (b *Book) ApplyEdit(old, updated core.Transaction) (core.Transaction, error) {
	i := b.txIndex(old.ID)
	if i < 0 {
		return core.Transaction{}, &core.NotFoundError{Kind: "transaction", ID: old.ID}
	}
	stored := b.snap.Transactions[i]
	updated.ID = stored.ID
	updated.Seq = stored.Seq
	if err := b.check(&updated); err != nil {
		return core.Transaction{}, err
	}
	b.apply(stored, -1)
	b.apply(updated, 1)
	b.snap.Transactions[i] = updated
	return updated, nil
}

// ApplyDelete removes the transaction and reverses its balance effect.
func (b *Book) ApplyDelete(id string) (core.Transaction, error) {
	i := b.txIndex(id)
	if i < 0 {
		return core.Transaction{}, &core.NotFoundError{Kind: "transaction", ID: id}
	}
	t := b.snap.Transactions[i]
	b.apply(t, -1)
	b.snap.Transactions = slices.Delete(b.snap.Transactions, i, i+1)
	return t, nil
}

// ApplyBatch applies every transaction or none of them.
func (b *Book) ApplyBatch(txs []core.Transaction) ([]core.Transaction, error) {
	work := b.Clone()
	applied := make([]core.Transaction, 0, len(txs))
	for i, t := range txs {
		saved, err := work.ApplyNew(t)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		applied = append(applied, saved)
	}
	*b = *work
	return applied, nil
}

// Reconcile recomputes every wallet balance from its initial balance and the
// full transaction history.
func (b *Book) Reconcile() {
	for i := range b.snap.Wallets {
		b.snap.Wallets[i].Balance = b.snap.Wallets[i].InitialBalance
	}
	for _, t := range b.snap.Transactions {
		b.apply(t, 1)
	}
}

// ComputeBalance derives a wallet balance from its initial value and the
// given history without touching any stored state.
func ComputeBalance(w core.Wallet, txs []core.Transaction) decimal.Decimal {
	bal := w.InitialBalance
	for _, t := range txs {
		for _, e := range effects(t) {
			if e.walletID == w.ID {
				bal = bal.Add(e.delta)
			}
		}
	}
	return bal
}

func effects(t core.Transaction) []effect {
	switch t.Type {
	case core.Income:
		return []effect{{t.WalletID, t.Amount}}
	case core.Expense:
		return []effect{{t.WalletID, t.Amount.Neg()}}
	case core.Transfer:
		return []effect{{t.WalletID, t.Amount.Neg()}, {t.ToWalletID, t.Amount}}
	}
	return nil
}

// apply adds sign*effect of t to the referenced wallets. Wallets that no
// longer exist are skipped.
func (b *Book) apply(t core.Transaction, sign int64) {
	for _, e := range effects(t) {
		i := b.walletIndex(e.walletID)
		if i < 0 {
			continue
		}
		delta := e.delta
		if sign < 0 {
			delta = delta.Neg()
		}
		b.snap.Wallets[i].Balance = b.snap.Wallets[i].Balance.Add(delta)
	}
}

// check validates t against the book and normalizes owner, date and category.
func (b *Book) check(t *core.Transaction) error {
	t.OwnerID = b.snap.OwnerID
	t.Date = t.Date.Midnight()
	if err := t.Validate(); err != nil {
		return err
	}
	if b.walletIndex(t.WalletID) < 0 {
		return core.Invalid("walletId", fmt.Errorf("%w: %s", core.ErrUnknownWallet, t.WalletID))
	}
	if t.Type == core.Transfer && b.walletIndex(t.ToWalletID) < 0 {
		return core.Invalid("toWalletId", fmt.Errorf("%w: %s", core.ErrUnknownWallet, t.ToWalletID))
	}
	b.linkCategory(t)
	return nil
}

// linkCategory keeps the category id and name of t in agreement and stores
// the category's own spelling, so name-based views group it with its budget.
// An id is kept only while it names a category of t's type with the same
// name; otherwise the name is resolved again.
func (b *Book) linkCategory(t *core.Transaction) {
	t.Category = strings.TrimSpace(t.Category)
	if t.CategoryID != "" {
		if c, ok := b.Category(t.CategoryID); ok && c.Type == t.Type && strings.EqualFold(c.Name, t.Category) {
			t.Category = c.Name
			return
		}
		t.CategoryID = ""
	}
	if c, ok := b.categoryByName(t.Category, t.Type); ok {
		t.CategoryID = c.ID
		t.Category = c.Name
	}
}

func (b *Book) txIndex(id string) int {
	return slices.IndexFunc(b.snap.Transactions, func(t core.Transaction) bool { return t.ID == id })
}

func (b *Book) walletIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(b.snap.Wallets, func(w core.Wallet) bool { return w.ID == id })
}
