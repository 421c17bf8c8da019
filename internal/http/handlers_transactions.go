package http

import (
	"net/http"
	"strings"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
)

type transactionList struct {
	Transactions []core.Transaction `json:"transactions"`
	Count        int                `json:"count"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	book, err := s.deps.Ledger.Book(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs := aggregate.Filter(book.Transactions(), q)
	OK(transactionList{Transactions: nonNil(txs), Count: len(txs)}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in transactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := in.Transaction()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Ledger.CreateTransaction(r.Context(), ownerFrom(r), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(created).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in transactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := in.Transaction()
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.deps.Ledger.UpdateTransaction(r.Context(), ownerFrom(r), r.PathValue("id"), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(updated).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Ledger.DeleteTransaction(r.Context(), ownerFrom(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type importRequest struct {
	WalletID string `json:"walletId"`
	Text     string `json:"text"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		ErrorResponse(http.StatusServiceUnavailable, errServiceDisabled.Error()).Write(w)
		return
	}
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, r, core.Invalid("text", core.ErrEmptyDescription))
		return
	}
	txs, err := s.deps.Assistant.Import(r.Context(), ownerFrom(r), strings.TrimSpace(req.WalletID), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(transactionList{Transactions: txs, Count: len(txs)}).Write(w)
}
