package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

const (
	Income   TransactionType = "INCOME"
	Expense  TransactionType = "EXPENSE"
	Transfer TransactionType = "TRANSFER"
)

const (
	Cash    WalletType = "CASH"
	Bank    WalletType = "BANK"
	EWallet WalletType = "E-WALLET"
)

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

const (
	Payable    DebtType = "DEBT"
	Receivable DebtType = "RECEIVABLE"
	Bill       DebtType = "BILL"
)

const (
	Property   AssetType = "PROPERTY"
	Vehicle    AssetType = "VEHICLE"
	Investment AssetType = "INVESTMENT"
	CashAsset  AssetType = "CASH"
	OtherAsset AssetType = "OTHER"
)

// UnknownLabel is shown for wallets and categories that no longer exist.
const UnknownLabel = "Unknown"

const maxDescriptionLen = 200

type (
	TransactionType string
	WalletType      string
	Frequency       string
	DebtType        string
	AssetType       string

	// Date is a calendar date stored as midnight UTC.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"ownerId"`
		Date        Date            `json:"date"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Type        TransactionType `json:"type"`
		Category    string          `json:"category"`
		CategoryID  string          `json:"categoryId,omitempty"`
		WalletID    string          `json:"walletId"`
		ToWalletID  string          `json:"toWalletId,omitempty"`
		Seq         int64           `json:"seq"` // insertion order within the owner's ledger
	}

	Wallet struct {
		ID             string          `json:"id"`
		OwnerID        string          `json:"ownerId"`
		Name           string          `json:"name"`
		Type           WalletType      `json:"type"`
		InitialBalance decimal.Decimal `json:"initialBalance"`
		Balance        decimal.Decimal `json:"balance"`
	}

	Category struct {
		ID        string          `json:"id"`
		OwnerID   string          `json:"ownerId,omitempty"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		IsDefault bool            `json:"isDefault"`
	}

	Budget struct {
		ID        string          `json:"id"`
		OwnerID   string          `json:"ownerId"`
		Category  string          `json:"category"`
		Limit     decimal.Decimal `json:"limit"`
		Period    string          `json:"period,omitempty"`
		Frequency Frequency       `json:"frequency"`
	}

	Debt struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"ownerId"`
		Person      string          `json:"person"`
		Amount      decimal.Decimal `json:"amount"`
		Remaining   decimal.Decimal `json:"remaining"`
		DueDate     Date            `json:"dueDate"`
		Description string          `json:"description,omitempty"`
		Type        DebtType        `json:"type"`
		IsPaid      bool            `json:"isPaid"`
	}

	Asset struct {
		ID      string          `json:"id"`
		OwnerID string          `json:"ownerId"`
		Name    string          `json:"name"`
		Value   decimal.Decimal `json:"value"`
		Type    AssetType       `json:"type"`
	}
)

var (
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrNegativeValue         = errors.New("value cannot be negative")
	ErrEmptyDescription      = errors.New("empty description")
	ErrDescriptionTooLong    = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	ErrInvalidType           = errors.New("invalid type")
	ErrEmptyCategory         = errors.New("empty category")
	ErrUnknownCategory       = errors.New("unknown category")
	ErrMissingWallet         = errors.New("wallet is required")
	ErrUnknownWallet         = errors.New("unknown wallet")
	ErrSameWallet            = errors.New("transfer source and destination must differ")
	ErrUnexpectedDestination = errors.New("destination wallet is only allowed for transfers")
	ErrDuplicateID           = errors.New("duplicate id")
	ErrEmptyName             = errors.New("empty name")
	ErrDuplicateName         = errors.New("name already exists")
	ErrInvalidFrequency      = errors.New("invalid frequency")
	ErrRemainingExceeds      = errors.New("remaining amount exceeds total")
	ErrCategoryInUse         = errors.New("category is used by budgets")
)

// NewDate creates a new Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if y := d.Year(); y < 1900 || y > 9999 {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// AddDays returns the date n calendar days later (earlier if n < 0).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Midnight drops any time of day, keeping the calendar date d has in its
// own location. The zero Date is returned unchanged.
func (d Date) Midnight() Date {
	if d.IsZero() {
		return d
	}
	return DateOf(d.Time)
}

// Within reports whether start <= d <= end as calendar dates.
func (d Date) Within(start, end Date) bool {
	day := d.Midnight().Time
	return !day.Before(start.Midnight().Time) && !day.After(end.Midnight().Time)
}

// DaysSince returns the number of calendar days from o to d.
func (d Date) DaysSince(o Date) int {
	return int(d.Time.Sub(o.Time).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps from clients that send ISO strings.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (w WalletType) Valid() bool {
	switch w {
	case Cash, Bank, EWallet:
		return true
	}
	return false
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (t DebtType) Valid() bool {
	switch t {
	case Payable, Receivable, Bill:
		return true
	}
	return false
}

func (t AssetType) Valid() bool {
	switch t {
	case Property, Vehicle, Investment, CashAsset, OtherAsset:
		return true
	}
	return false
}

// Validate checks the record in isolation. Wallet existence is checked by the ledger.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if strings.TrimSpace(t.Description) == "" {
		return Invalid("description", ErrEmptyDescription)
	}
	if len(t.Description) > maxDescriptionLen {
		return Invalid("description", ErrDescriptionTooLong)
	}
	if !t.Amount.IsPositive() {
		return Invalid("amount", ErrInvalidAmount)
	}
	if !t.Type.Valid() {
		return Invalid("type", ErrInvalidType)
	}
	if strings.TrimSpace(t.Category) == "" {
		return Invalid("category", ErrEmptyCategory)
	}
	if strings.TrimSpace(t.WalletID) == "" {
		return Invalid("walletId", ErrMissingWallet)
	}
	if t.Type == Transfer {
		if strings.TrimSpace(t.ToWalletID) == "" {
			return Invalid("toWalletId", ErrMissingWallet)
		}
		if t.ToWalletID == t.WalletID {
			return Invalid("toWalletId", ErrSameWallet)
		}
	} else if t.ToWalletID != "" {
		return Invalid("toWalletId", ErrUnexpectedDestination)
	}
	return nil
}

func (w Wallet) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return Invalid("name", ErrEmptyName)
	}
	if !w.Type.Valid() {
		return Invalid("type", ErrInvalidType)
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("name", ErrEmptyName)
	}
	if !c.Type.Valid() {
		return Invalid("type", ErrInvalidType)
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return Invalid("category", ErrEmptyCategory)
	}
	if !b.Limit.IsPositive() {
		return Invalid("limit", ErrInvalidAmount)
	}
	if !b.Frequency.Valid() {
		return Invalid("frequency", ErrInvalidFrequency)
	}
	return nil
}

func (d Debt) Validate() error {
	if strings.TrimSpace(d.Person) == "" {
		return Invalid("person", ErrEmptyName)
	}
	if !d.Amount.IsPositive() {
		return Invalid("amount", ErrInvalidAmount)
	}
	if d.Remaining.IsNegative() {
		return Invalid("remaining", ErrNegativeValue)
	}
	if d.Remaining.GreaterThan(d.Amount) {
		return Invalid("remaining", ErrRemainingExceeds)
	}
	if err := d.DueDate.Validate(); err != nil {
		return Invalid("dueDate", err)
	}
	if !d.Type.Valid() {
		return Invalid("type", ErrInvalidType)
	}
	return nil
}

func (a Asset) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return Invalid("name", ErrEmptyName)
	}
	if a.Value.IsNegative() {
		return Invalid("value", ErrNegativeValue)
	}
	if !a.Type.Valid() {
		return Invalid("type", ErrInvalidType)
	}
	return nil
}

// Outstanding is what is still owed on the item; zero once paid.
func (d Debt) Outstanding() decimal.Decimal {
	if d.IsPaid {
		return decimal.Zero
	}
	return d.Remaining
}
