package ledger

import (
	"errors"
	"testing"

	"fintrack/internal/aggregate"
	"fintrack/internal/budget"
	"fintrack/internal/core"
)

func TestDefaultCategoryProtection(t *testing.T) {
	b := newTestBook(t)
	def, ok := b.Category("default-makanan")
	if !ok {
		t.Fatalf("default category missing")
	}

	var perr *core.ProtectedEntityError
	if _, err := b.DeleteCategory(def.ID, false); !errors.As(err, &perr) {
		t.Fatalf("expected ProtectedEntityError on delete, got %v", err)
	}
	renamed := def
	renamed.Name = "Food"
	if _, err := b.EditCategory(renamed, false); !errors.As(err, &perr) {
		t.Fatalf("expected ProtectedEntityError on edit, got %v", err)
	}
	if b.defaultsDirty {
		t.Fatalf("rejected edit marked defaults dirty")
	}

	if _, err := b.EditCategory(renamed, true); err != nil {
		t.Fatalf("privileged edit: %v", err)
	}
	got, _ := b.Category(def.ID)
	if got.Name != "Food" || !got.IsDefault {
		t.Fatalf("privileged edit lost default flag or name: %+v", got)
	}
	if !b.defaultsDirty {
		t.Fatalf("privileged edit must mark defaults dirty")
	}
}

func TestCategoryNamesUniquePerType(t *testing.T) {
	b := newTestBook(t)
	if _, err := b.AddCategory(core.Category{Name: "makanan", Type: core.Expense}); !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("expected duplicate name, got %v", err)
	}
	c, err := b.AddCategory(core.Category{Name: "Makanan", Type: core.Income})
	if err != nil {
		t.Fatalf("same name with other type must be allowed: %v", err)
	}
	if c.IsDefault || c.OwnerID != "u1" {
		t.Fatalf("owned category flags wrong: %+v", c)
	}
}

func TestCategoryRenameFollowsLinkedRecords(t *testing.T) {
	b := newTestBook(t)
	c, _ := b.AddCategory(core.Category{Name: "Kopi", Type: core.Expense})
	spend := tx(core.Expense, 20, "W1", "")
	spend.Category = "Kopi"
	saved, _ := b.ApplyNew(spend)
	if _, err := b.AddBudget(core.Budget{Category: "kopi", Limit: dec(100), Frequency: core.Monthly}); err != nil {
		t.Fatalf("add budget: %v", err)
	}

	c.Name = "Coffee"
	if _, err := b.EditCategory(c, false); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, _ := b.Transaction(saved.ID)
	if got.Category != "Coffee" {
		t.Fatalf("transaction label not updated: %q", got.Category)
	}
	if b.Budgets()[0].Category != "Coffee" {
		t.Fatalf("budget category not updated: %q", b.Budgets()[0].Category)
	}

	if _, err := b.DeleteCategory(c.ID, false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = b.Transaction(saved.ID)
	if b.CategoryName(got) != "Coffee" {
		t.Fatalf("orphaned transaction must keep its label")
	}
	if b.CategoryName(core.Transaction{}) != core.UnknownLabel {
		t.Fatalf("empty category must resolve to Unknown")
	}
}

func TestBudgetRequiresExpenseCategory(t *testing.T) {
	b := newTestBook(t)
	if _, err := b.AddBudget(core.Budget{Category: "Gaji", Limit: dec(100), Frequency: core.Monthly}); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("income category must be rejected, got %v", err)
	}
	if _, err := b.AddBudget(core.Budget{Category: "Makanan", Limit: dec(0), Frequency: core.Monthly}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("zero limit must be rejected, got %v", err)
	}
	bu, err := b.AddBudget(core.Budget{Category: "makanan", Limit: dec(100), Frequency: core.Weekly})
	if err != nil {
		t.Fatalf("add budget: %v", err)
	}
	if bu.Category != "Makanan" {
		t.Fatalf("budget category must be canonicalized, got %q", bu.Category)
	}
	bu.Limit = dec(250)
	if _, err := b.EditBudget(bu); err != nil {
		t.Fatalf("edit budget: %v", err)
	}
	if _, err := b.DeleteBudget(bu.ID); err != nil {
		t.Fatalf("delete budget: %v", err)
	}
	var nf *core.NotFoundError
	if _, err := b.DeleteBudget(bu.ID); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestDebtLifecycle(t *testing.T) {
	b := newTestBook(t)
	d, err := b.AddDebt(core.Debt{
		Person:  "Sari",
		Amount:  dec(500),
		DueDate: core.NewDate(2024, 2, 1),
		Type:    core.Receivable,
	})
	if err != nil {
		t.Fatalf("add debt: %v", err)
	}
	if !d.Remaining.Equal(dec(500)) {
		t.Fatalf("remaining must default to amount, got %s", d.Remaining)
	}

	toggled, err := b.TogglePaid(d.ID)
	if err != nil || !toggled.IsPaid {
		t.Fatalf("toggle: %+v %v", toggled, err)
	}
	assertBalance(t, b, "W1", 1000)
	toggled, _ = b.TogglePaid(d.ID)
	if toggled.IsPaid {
		t.Fatalf("second toggle must unset paid")
	}

	d.Remaining = dec(100)
	if _, err := b.EditDebt(d); err != nil {
		t.Fatalf("edit debt: %v", err)
	}
	if _, err := b.DeleteDebt(d.ID); err != nil {
		t.Fatalf("delete debt: %v", err)
	}
	if len(b.Debts()) != 0 {
		t.Fatalf("debt not removed")
	}
}

func TestAssetCRUD(t *testing.T) {
	b := newTestBook(t)
	a, err := b.AddAsset(core.Asset{Name: "Motor", Value: dec(15000), Type: core.Vehicle})
	if err != nil {
		t.Fatalf("add asset: %v", err)
	}
	a.Value = dec(-1)
	if _, err := b.EditAsset(a); !errors.Is(err, core.ErrNegativeValue) {
		t.Fatalf("expected negative value rejection, got %v", err)
	}
	if _, err := b.DeleteAsset(a.ID); err != nil {
		t.Fatalf("delete asset: %v", err)
	}
}

func TestCategorySpellingFollowsRegistry(t *testing.T) {
	b := newTestBook(t)
	bu, err := b.AddBudget(core.Budget{Category: "makanan", Limit: dec(200), Frequency: core.Monthly})
	if err != nil {
		t.Fatalf("add budget: %v", err)
	}

	lower := tx(core.Expense, 60, "W1", "")
	lower.Category = "  makanan "
	saved, err := b.ApplyNew(lower)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if saved.Category != "Makanan" || saved.CategoryID != "default-makanan" {
		t.Fatalf("saved category = %q (%q), want Makanan (default-makanan)", saved.Category, saved.CategoryID)
	}
	if _, err := b.ApplyNew(tx(core.Expense, 40, "W1", "")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	january := budget.Window{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 31)}
	ev := budget.Evaluate(bu, b.Transactions(), january)
	if !ev.Spent.Equal(dec(100)) || ev.Percent != 50 {
		t.Fatalf("spent %s percent %v, want 100 and 50", ev.Spent, ev.Percent)
	}

	breakdown := aggregate.CategoryBreakdown(b.Transactions(), january.Start, january.End)
	if len(breakdown) != 1 || breakdown[0].Category != "Makanan" || !breakdown[0].Total.Equal(dec(100)) {
		t.Fatalf("breakdown = %+v, want one Makanan entry of 100", breakdown)
	}
}

func TestEditRelinksCategory(t *testing.T) {
	tests := []struct {
		name     string
		typ      core.TransactionType
		category string
		wantName string
		wantID   string
	}{
		{"type and category change", core.Income, "Gaji", "Gaji", "default-gaji"},
		{"category change", core.Expense, "hiburan", "Hiburan", "default-hiburan"},
		{"same category", core.Expense, "Makanan", "Makanan", "default-makanan"},
		{"unknown category drops the link", core.Expense, "Groceries", "Groceries", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBook(t)
			saved, err := b.ApplyNew(tx(core.Expense, 30, "W1", ""))
			if err != nil {
				t.Fatalf("apply: %v", err)
			}

			upd := saved
			upd.Type = tt.typ
			upd.Category = tt.category
			got, err := b.ApplyEdit(saved, upd)
			if err != nil {
				t.Fatalf("edit: %v", err)
			}
			if got.Category != tt.wantName || got.CategoryID != tt.wantID {
				t.Fatalf("category = %q (%q), want %q (%q)", got.Category, got.CategoryID, tt.wantName, tt.wantID)
			}
		})
	}
}

func TestBudgetedCategoryKeepsExpenseType(t *testing.T) {
	b := newTestBook(t)
	c, _ := b.AddCategory(core.Category{Name: "Kopi", Type: core.Expense})
	if _, err := b.AddBudget(core.Budget{Category: "Kopi", Limit: dec(100), Frequency: core.Monthly}); err != nil {
		t.Fatalf("add budget: %v", err)
	}

	retyped := c
	retyped.Type = core.Income
	_, err := b.EditCategory(retyped, false)
	if !errors.Is(err, core.ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
	if got, _ := b.Category(c.ID); got.Type != core.Expense {
		t.Fatalf("rejected edit changed the category: %+v", got)
	}

	free, _ := b.AddCategory(core.Category{Name: "Bonus", Type: core.Expense})
	free.Type = core.Income
	if _, err := b.EditCategory(free, false); err != nil {
		t.Fatalf("retype without budgets: %v", err)
	}
}
