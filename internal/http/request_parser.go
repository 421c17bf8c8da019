package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
)

const (
	maxBodyBytes = 1 << 20
	maxOwnerLen  = 128

	// DefaultOwner is used when the gateway sends no owner header.
	DefaultOwner = "guest"

	HeaderOwner = "X-Owner-ID"
	HeaderRole  = "X-Role"
	RoleAdmin   = "ADMIN"
)

var ErrEmptyBody = errors.New("request body is empty")

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
// and bodies over maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// ownerFrom returns the owner asserted by the gateway.
func ownerFrom(r *http.Request) string {
	owner := sanitizeInput(r.Header.Get(HeaderOwner))
	if owner == "" {
		return DefaultOwner
	}
	if len(owner) > maxOwnerLen {
		// Cut on a rune boundary so the id stays valid UTF-8.
		cut := maxOwnerLen
		for cut > 0 && !utf8.RuneStart(owner[cut]) {
			cut--
		}
		owner = owner[:cut]
	}
	return owner
}

func privileged(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderRole)), RoleAdmin)
}

// parseDateParam reads a YYYY-MM-DD query value. Absent means the zero date.
func parseDateParam(q url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.Invalid(key, core.ErrInvalidDate)
	}
	return d, nil
}

// parseRange reads start and end. Both are required.
func parseRange(q url.Values) (start, end core.Date, err error) {
	if start, err = parseDateParam(q, "start"); err != nil {
		return
	}
	if end, err = parseDateParam(q, "end"); err != nil {
		return
	}
	if start.IsZero() {
		return start, end, core.Invalid("start", core.ErrInvalidDate)
	}
	if end.IsZero() {
		return start, end, core.Invalid("end", core.ErrInvalidDate)
	}
	return start, end, nil
}

// parseIntParam returns def when key is absent.
func parseIntParam(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, core.Invalid(key, fmt.Errorf("must be a non-negative integer: %q", v))
	}
	return n, nil
}

// parseQuery builds a transaction filter from type, search, walletId, start
// and end.
func parseQuery(q url.Values) (aggregate.Query, error) {
	query := aggregate.Query{
		Type:     core.TransactionType(strings.ToUpper(strings.TrimSpace(q.Get("type")))),
		Search:   sanitizeInput(q.Get("search")),
		WalletID: strings.TrimSpace(q.Get("walletId")),
	}
	if query.Type != "" && !query.Type.Valid() {
		return query, core.Invalid("type", core.ErrInvalidType)
	}
	var err error
	if query.Start, err = parseDateParam(q, "start"); err != nil {
		return query, err
	}
	if query.End, err = parseDateParam(q, "end"); err != nil {
		return query, err
	}
	return query, nil
}

// sanitizeInput trims and removes control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

// amountInput accepts a JSON string ("12,50") or number (12.5).
type amountInput string

func (a *amountInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or number")
	}
	*a = amountInput(n.String())
	return nil
}

// Decimal parses the amount as a positive money value.
func (a amountInput) Decimal(field string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(string(a))
	if err != nil {
		return decimal.Zero, core.Invalid(field, err)
	}
	return d, nil
}

// transactionInput is the body of create and update requests.
type transactionInput struct {
	Date        core.Date            `json:"date"`
	Description string               `json:"description"`
	Amount      amountInput          `json:"amount"`
	Type        core.TransactionType `json:"type"`
	Category    string               `json:"category"`
	WalletID    string               `json:"walletId"`
	ToWalletID  string               `json:"toWalletId"`
}

func (in transactionInput) Transaction() (core.Transaction, error) {
	amount, err := in.Amount.Decimal("amount")
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Date:        in.Date,
		Description: sanitizeInput(in.Description),
		Amount:      amount,
		Type:        core.TransactionType(strings.ToUpper(strings.TrimSpace(string(in.Type)))),
		Category:    sanitizeInput(in.Category),
		WalletID:    strings.TrimSpace(in.WalletID),
		ToWalletID:  strings.TrimSpace(in.ToWalletID),
	}, nil
}
