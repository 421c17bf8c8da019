package http

import (
	"context"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/schedule"
)

// createEntity decodes a T from the body and hands it to add.
func createEntity[T any](w http.ResponseWriter, r *http.Request, add func(context.Context, string, T) (T, error)) {
	var v T
	if err := decodeJSON(w, r, &v); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	out, err := add(r.Context(), ownerFrom(r), v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(out).Write(w)
}

// editEntity decodes a T and stamps it with the id from the path.
func editEntity[T any](w http.ResponseWriter, r *http.Request, setID func(*T, string), edit func(context.Context, string, T) (T, error)) {
	var v T
	if err := decodeJSON(w, r, &v); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	setID(&v, r.PathValue("id"))
	out, err := edit(r.Context(), ownerFrom(r), v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(out).Write(w)
}

func deleteEntity[T any](w http.ResponseWriter, r *http.Request, del func(context.Context, string, string) (T, error)) {
	if _, err := del(r.Context(), ownerFrom(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// Wallets

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	book, err := s.deps.Ledger.Book(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(map[string]any{
		"wallets": nonNil(book.Wallets()),
		"total":   book.TotalBalance(),
	}).Write(w)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	createEntity(w, r, s.deps.Ledger.AddWallet)
}

func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	editEntity(w, r, func(v *core.Wallet, id string) { v.ID = id }, s.deps.Ledger.EditWallet)
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	deleteEntity(w, r, s.deps.Ledger.DeleteWallet)
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	book, err := s.deps.Ledger.Book(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(map[string]any{"categories": nonNil(book.Categories())}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	createEntity(w, r, s.deps.Ledger.AddCategory)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	admin := privileged(r)
	editEntity(w, r, func(v *core.Category, id string) { v.ID = id },
		func(ctx context.Context, owner string, c core.Category) (core.Category, error) {
			return s.deps.Ledger.EditCategory(ctx, owner, c, admin)
		})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	admin := privileged(r)
	deleteEntity(w, r, func(ctx context.Context, owner, id string) (core.Category, error) {
		return s.deps.Ledger.DeleteCategory(ctx, owner, id, admin)
	})
}

// Budgets

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	book, err := s.deps.Ledger.Book(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(map[string]any{"budgets": nonNil(book.Budgets())}).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	createEntity(w, r, s.deps.Ledger.AddBudget)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	editEntity(w, r, func(v *core.Budget, id string) { v.ID = id }, s.deps.Ledger.EditBudget)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	deleteEntity(w, r, s.deps.Ledger.DeleteBudget)
}

// handleBudgetEvaluation ranks budgets by usage in their active window.
// Without top every budget is returned.
func (s *Server) handleBudgetEvaluation(w http.ResponseWriter, r *http.Request) {
	top, err := parseIntParam(r.URL.Query(), "top", -1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	book, err := s.deps.Ledger.Book(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	evals, err := s.deps.Evaluator.RankTop(book.Budgets(), book.Transactions(), s.now(), top)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(map[string]any{
		"evaluations": nonNil(evals),
		"thresholds":  s.deps.Evaluator.Thresholds(),
	}).Write(w)
}

// Debts

func (s *Server) handleListDebts(w http.ResponseWriter, r *http.Request) {
	book, err := s.deps.Ledger.Book(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	debts := book.Debts()
	OK(map[string]any{
		"debts":       nonNil(debts),
		"outstanding": schedule.Outstanding(debts),
	}).Write(w)
}

func (s *Server) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	createEntity(w, r, s.deps.Ledger.AddDebt)
}

func (s *Server) handleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	editEntity(w, r, func(v *core.Debt, id string) { v.ID = id }, s.deps.Ledger.EditDebt)
}

func (s *Server) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	deleteEntity(w, r, s.deps.Ledger.DeleteDebt)
}

func (s *Server) handleToggleDebt(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Ledger.ToggleDebt(r.Context(), ownerFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(d).Write(w)
}

type upcomingResponse struct {
	WindowDays  int         `json:"windowDays"`
	Upcoming    []core.Debt `json:"upcoming"`
	Receivables []core.Debt `json:"receivables"`
	Overdue     []core.Debt `json:"overdue"`
}

// handleUpcomingDebts lists unpaid items due within days (default from
// configuration) and those already overdue.
func (s *Server) handleUpcomingDebts(w http.ResponseWriter, r *http.Request) {
	days, err := parseIntParam(r.URL.Query(), "days", s.windowDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	book, err := s.deps.Ledger.Book(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	debts := book.Debts()
	today := core.DateOf(s.now())
	OK(upcomingResponse{
		WindowDays:  days,
		Upcoming:    nonNil(schedule.Upcoming(debts, today, days)),
		Receivables: nonNil(schedule.UpcomingReceivables(debts, today, days)),
		Overdue:     nonNil(schedule.Overdue(debts, today)),
	}).Write(w)
}

// Assets

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	book, err := s.deps.Ledger.Book(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(map[string]any{"assets": nonNil(book.Assets())}).Write(w)
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	createEntity(w, r, s.deps.Ledger.AddAsset)
}

func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	editEntity(w, r, func(v *core.Asset, id string) { v.ID = id }, s.deps.Ledger.EditAsset)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	deleteEntity(w, r, s.deps.Ledger.DeleteAsset)
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
