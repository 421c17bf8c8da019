package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"

	"fintrack/internal/core"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewGemini(context.Background(), "test-key", "test-model",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	g.now = func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }
	return g
}

func reply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
		}},
	})
}

func TestParseDrafts(t *testing.T) {
	var gotPath, gotBody string
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		reply(w, "```json\n"+`[{"description":"Nasi goreng","amount":25000,"type":"EXPENSE","category":"Makanan","date":"2024-06-14"}]`+"\n```")
	})

	drafts, err := g.ParseDrafts(context.Background(), "beli nasi goreng 25rb kemarin")
	if err != nil {
		t.Fatalf("ParseDrafts: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/models/test-model:generateContent") {
		t.Errorf("path = %s", gotPath)
	}
	if !strings.Contains(gotBody, "2024-06-15") || !strings.Contains(gotBody, "application/json") {
		t.Errorf("request body misses today or mime type: %s", gotBody)
	}
	if len(drafts) != 1 || drafts[0].Category != "Makanan" || !drafts[0].Amount.Equal(decimal.NewFromInt(25000)) {
		t.Fatalf("drafts = %+v", drafts)
	}
}

func TestParseDraftsUpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  error
	}{
		{
			name: "rejected request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"code":400,"message":"bad prompt"}}`, http.StatusBadRequest)
			},
		},
		{
			name:    "not json",
			handler: func(w http.ResponseWriter, r *http.Request) { reply(w, "sorry, no idea") },
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"candidates":[]}`))
			},
			target: ErrEmptyResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGemini(t, tt.handler)
			_, err := g.ParseDrafts(context.Background(), "gaji 5jt")
			var up *core.UpstreamError
			if !errors.As(err, &up) || up.Service != ServiceName {
				t.Fatalf("got %v, want UpstreamError", err)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("got %v, want %v", err, tt.target)
			}
		})
	}
}

func TestParseDraftsEmptyText(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	var ve *core.ValidationError
	if _, err := g.ParseDrafts(context.Background(), "   "); !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}

func TestAdviceLimitsHistory(t *testing.T) {
	var body string
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		reply(w, "## Cashflow\nLooks fine.")
	})

	txs := make([]core.Transaction, 0, 60)
	for i := 0; i < 60; i++ {
		txs = append(txs, core.Transaction{
			Date: core.NewDate(2024, 6, 1), Type: core.Expense, Category: "Makanan",
			Amount: decimal.NewFromInt(int64(i + 1)), Description: "item",
		})
	}
	text, err := g.Advice(context.Background(), txs)
	if err != nil {
		t.Fatalf("Advice: %v", err)
	}
	if !strings.Contains(text, "Cashflow") {
		t.Errorf("advice = %q", text)
	}
	if strings.Count(body, "2024-06-01: EXPENSE") != AdviceWindow {
		t.Errorf("expected %d transactions in the prompt", AdviceWindow)
	}
}

func TestDraftTransaction(t *testing.T) {
	today := core.NewDate(2024, 6, 15)
	d := Draft{Description: " Kopi ", Amount: decimal.RequireFromString("12.345"), Type: "expense", Category: "Makanan"}
	tx, err := d.Transaction("W1", today)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Type != core.Expense || tx.Description != "Kopi" || !tx.Date.Equal(today.Time) || tx.WalletID != "W1" {
		t.Errorf("tx = %+v", tx)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("12.35")) {
		t.Errorf("amount = %s", tx.Amount)
	}

	d.Date = "2024-06-10T08:00:00Z"
	if tx, _ = d.Transaction("W1", today); tx.Date.String() != "2024-06-10" {
		t.Errorf("date = %s", tx.Date)
	}
	d.Date = "yesterday"
	if _, err := d.Transaction("W1", today); err == nil {
		t.Error("expected invalid date error")
	}
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.ParseDrafts(context.Background(), "x")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("got %v", err)
	}
	if _, err := (Unavailable{}).Advice(context.Background(), nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("got %v", err)
	}
}
