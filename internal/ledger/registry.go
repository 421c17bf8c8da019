package ledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Categories returns the default categories followed by the owner's own.
func (b *Book) Categories() []core.Category {
	out := make([]core.Category, 0, len(b.defaults)+len(b.snap.Categories))
	out = append(out, b.defaults...)
	return append(out, b.snap.Categories...)
}

// Defaults returns the shared default categories as seen by this book.
func (b *Book) Defaults() []core.Category { return slices.Clone(b.defaults) }

// Category looks up a default or owned category by id.
func (b *Book) Category(id string) (core.Category, bool) {
	if i := categoryIndex(b.defaults, id); i >= 0 {
		return b.defaults[i], true
	}
	if i := categoryIndex(b.snap.Categories, id); i >= 0 {
		return b.snap.Categories[i], true
	}
	return core.Category{}, false
}

// CategoryName resolves a transaction's category label, falling back to
// core.UnknownLabel when it references nothing.
func (b *Book) CategoryName(t core.Transaction) string {
	if t.CategoryID != "" {
		if c, ok := b.Category(t.CategoryID); ok {
			return c.Name
		}
	}
	if strings.TrimSpace(t.Category) == "" {
		return core.UnknownLabel
	}
	return t.Category
}

func (b *Book) categoryByName(name string, typ core.TransactionType) (core.Category, bool) {
	for _, c := range b.Categories() {
		if c.Type == typ && strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return core.Category{}, false
}

// HasCategory reports whether a category of the given name and type exists.
func (b *Book) HasCategory(name string, typ core.TransactionType) bool {
	_, ok := b.categoryByName(name, typ)
	return ok
}

func (b *Book) AddCategory(c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if _, ok := b.Category(c.ID); ok {
		return core.Category{}, core.Invalid("id", core.ErrDuplicateID)
	}
	if b.nameTaken(c.Name, c.Type, "") {
		return core.Category{}, core.Invalid("name", fmt.Errorf("%w: %s", core.ErrDuplicateName, c.Name))
	}
	c.OwnerID = b.snap.OwnerID
	c.IsDefault = false
	b.snap.Categories = append(b.snap.Categories, c)
	return c, nil
}

// EditCategory renames or retypes a category. Default categories can only be
// changed by a privileged caller. Transactions and budgets linked to the
// category follow the new name. An EXPENSE category with budgets keeps its
// type.
func (b *Book) EditCategory(c core.Category, privileged bool) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	list, i := b.locateCategory(c.ID)
	if i < 0 {
		return core.Category{}, &core.NotFoundError{Kind: "category", ID: c.ID}
	}
	prev := (*list)[i]
	if prev.IsDefault && !privileged {
		return core.Category{}, &core.ProtectedEntityError{Kind: "category", ID: prev.ID, Name: prev.Name}
	}
	if b.nameTaken(c.Name, c.Type, c.ID) {
		return core.Category{}, core.Invalid("name", fmt.Errorf("%w: %s", core.ErrDuplicateName, c.Name))
	}
	// Budgets may only track EXPENSE categories.
	if prev.Type == core.Expense && c.Type != core.Expense && b.hasBudgetFor(prev.Name) {
		return core.Category{}, core.Invalid("type", fmt.Errorf("%w: %s", core.ErrCategoryInUse, prev.Name))
	}
	c.IsDefault = prev.IsDefault
	c.OwnerID = prev.OwnerID
	(*list)[i] = c
	if prev.IsDefault {
		b.defaultsDirty = true
	}

	for j, t := range b.snap.Transactions {
		if t.CategoryID == c.ID {
			b.snap.Transactions[j].Category = c.Name
		}
	}
	if prev.Type == core.Expense {
		for j, bu := range b.snap.Budgets {
			if strings.EqualFold(bu.Category, prev.Name) {
				b.snap.Budgets[j].Category = c.Name
			}
		}
	}
	return c, nil
}

// DeleteCategory removes a category. Historical transactions keep their
// label and are never deleted.
func (b *Book) DeleteCategory(id string, privileged bool) (core.Category, error) {
	list, i := b.locateCategory(id)
	if i < 0 {
		return core.Category{}, &core.NotFoundError{Kind: "category", ID: id}
	}
	c := (*list)[i]
	if c.IsDefault && !privileged {
		return core.Category{}, &core.ProtectedEntityError{Kind: "category", ID: c.ID, Name: c.Name}
	}
	*list = slices.Delete(*list, i, i+1)
	if c.IsDefault {
		b.defaultsDirty = true
	}
	return c, nil
}

func (b *Book) locateCategory(id string) (*[]core.Category, int) {
	if i := categoryIndex(b.defaults, id); i >= 0 {
		return &b.defaults, i
	}
	return &b.snap.Categories, categoryIndex(b.snap.Categories, id)
}

func (b *Book) nameTaken(name string, typ core.TransactionType, exceptID string) bool {
	for _, c := range b.Categories() {
		if c.ID != exceptID && c.Type == typ && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func categoryIndex(list []core.Category, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(list, func(c core.Category) bool { return c.ID == id })
}

// AddWallet registers a wallet. Its balance starts at the initial balance.
func (b *Book) AddWallet(w core.Wallet) (core.Wallet, error) {
	if err := w.Validate(); err != nil {
		return core.Wallet{}, err
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	} else if b.walletIndex(w.ID) >= 0 {
		return core.Wallet{}, core.Invalid("id", core.ErrDuplicateID)
	}
	w.OwnerID = b.snap.OwnerID
	w.Balance = ComputeBalance(w, b.snap.Transactions)
	b.snap.Wallets = append(b.snap.Wallets, w)
	return w, nil
}

// EditWallet updates name, type and initial balance, then recomputes the
// balance from history.
func (b *Book) EditWallet(w core.Wallet) (core.Wallet, error) {
	if err := w.Validate(); err != nil {
		return core.Wallet{}, err
	}
	i := b.walletIndex(w.ID)
	if i < 0 {
		return core.Wallet{}, &core.NotFoundError{Kind: "wallet", ID: w.ID}
	}
	w.OwnerID = b.snap.OwnerID
	w.Balance = ComputeBalance(w, b.snap.Transactions)
	b.snap.Wallets[i] = w
	return w, nil
}

// DeleteWallet removes the wallet. Transactions referencing it stay and are
// shown against core.UnknownLabel.
func (b *Book) DeleteWallet(id string) (core.Wallet, error) {
	i := b.walletIndex(id)
	if i < 0 {
		return core.Wallet{}, &core.NotFoundError{Kind: "wallet", ID: id}
	}
	w := b.snap.Wallets[i]
	b.snap.Wallets = slices.Delete(b.snap.Wallets, i, i+1)
	return w, nil
}

func (b *Book) checkBudget(bu *core.Budget) error {
	if err := bu.Validate(); err != nil {
		return err
	}
	c, ok := b.categoryByName(bu.Category, core.Expense)
	if !ok {
		return core.Invalid("category", fmt.Errorf("%w: %s", core.ErrUnknownCategory, bu.Category))
	}
	bu.Category = c.Name
	bu.OwnerID = b.snap.OwnerID
	return nil
}

func (b *Book) AddBudget(bu core.Budget) (core.Budget, error) {
	if err := b.checkBudget(&bu); err != nil {
		return core.Budget{}, err
	}
	if bu.ID == "" {
		bu.ID = uuid.NewString()
	} else if b.budgetIndex(bu.ID) >= 0 {
		return core.Budget{}, core.Invalid("id", core.ErrDuplicateID)
	}
	b.snap.Budgets = append(b.snap.Budgets, bu)
	return bu, nil
}

func (b *Book) EditBudget(bu core.Budget) (core.Budget, error) {
	i := b.budgetIndex(bu.ID)
	if i < 0 {
		return core.Budget{}, &core.NotFoundError{Kind: "budget", ID: bu.ID}
	}
	if err := b.checkBudget(&bu); err != nil {
		return core.Budget{}, err
	}
	b.snap.Budgets[i] = bu
	return bu, nil
}

func (b *Book) DeleteBudget(id string) (core.Budget, error) {
	i := b.budgetIndex(id)
	if i < 0 {
		return core.Budget{}, &core.NotFoundError{Kind: "budget", ID: id}
	}
	bu := b.snap.Budgets[i]
	b.snap.Budgets = slices.Delete(b.snap.Budgets, i, i+1)
	return bu, nil
}

func (b *Book) hasBudgetFor(category string) bool {
	return slices.ContainsFunc(b.snap.Budgets, func(bu core.Budget) bool {
		return strings.EqualFold(bu.Category, category)
	})
}

func (b *Book) budgetIndex(id string) int {
	return slices.IndexFunc(b.snap.Budgets, func(bu core.Budget) bool { return bu.ID == id })
}

// AddDebt records a payable, receivable or bill. An unset remaining amount
// defaults to the full amount.
func (b *Book) AddDebt(d core.Debt) (core.Debt, error) {
	if d.Remaining.IsZero() && !d.IsPaid {
		d.Remaining = d.Amount
	}
	d.DueDate = d.DueDate.Midnight()
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	} else if b.debtIndex(d.ID) >= 0 {
		return core.Debt{}, core.Invalid("id", core.ErrDuplicateID)
	}
	d.OwnerID = b.snap.OwnerID
	b.snap.Debts = append(b.snap.Debts, d)
	return d, nil
}

func (b *Book) EditDebt(d core.Debt) (core.Debt, error) {
	i := b.debtIndex(d.ID)
	if i < 0 {
		return core.Debt{}, &core.NotFoundError{Kind: "debt", ID: d.ID}
	}
	d.DueDate = d.DueDate.Midnight()
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	d.OwnerID = b.snap.OwnerID
	b.snap.Debts[i] = d
	return d, nil
}

// TogglePaid flips the paid flag. Wallet balances are not affected.
func (b *Book) TogglePaid(id string) (core.Debt, error) {
	i := b.debtIndex(id)
	if i < 0 {
		return core.Debt{}, &core.NotFoundError{Kind: "debt", ID: id}
	}
	b.snap.Debts[i].IsPaid = !b.snap.Debts[i].IsPaid
	return b.snap.Debts[i], nil
}

func (b *Book) DeleteDebt(id string) (core.Debt, error) {
	i := b.debtIndex(id)
	if i < 0 {
		return core.Debt{}, &core.NotFoundError{Kind: "debt", ID: id}
	}
	d := b.snap.Debts[i]
	b.snap.Debts = slices.Delete(b.snap.Debts, i, i+1)
	return d, nil
}

func (b *Book) debtIndex(id string) int {
	return slices.IndexFunc(b.snap.Debts, func(d core.Debt) bool { return d.ID == id })
}

func (b *Book) AddAsset(a core.Asset) (core.Asset, error) {
	if err := a.Validate(); err != nil {
		return core.Asset{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	} else if b.assetIndex(a.ID) >= 0 {
		return core.Asset{}, core.Invalid("id", core.ErrDuplicateID)
	}
	a.OwnerID = b.snap.OwnerID
	b.snap.Assets = append(b.snap.Assets, a)
	return a, nil
}

func (b *Book) EditAsset(a core.Asset) (core.Asset, error) {
	i := b.assetIndex(a.ID)
	if i < 0 {
		return core.Asset{}, &core.NotFoundError{Kind: "asset", ID: a.ID}
	}
	if err := a.Validate(); err != nil {
		return core.Asset{}, err
	}
	a.OwnerID = b.snap.OwnerID
	b.snap.Assets[i] = a
	return a, nil
}

func (b *Book) DeleteAsset(id string) (core.Asset, error) {
	i := b.assetIndex(id)
	if i < 0 {
		return core.Asset{}, &core.NotFoundError{Kind: "asset", ID: id}
	}
	a := b.snap.Assets[i]
	b.snap.Assets = slices.Delete(b.snap.Assets, i, i+1)
	return a, nil
}

func (b *Book) assetIndex(id string) int {
	return slices.IndexFunc(b.snap.Assets, func(a core.Asset) bool { return a.ID == id })
}

// TotalBalance sums every wallet balance.
func (b *Book) TotalBalance() decimal.Decimal {
	total := decimal.Zero
	for _, w := range b.snap.Wallets {
		total = total.Add(w.Balance)
	}
	return total
}
