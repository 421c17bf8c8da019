package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL of the ledger tables.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Ledger struct {
	OwnerID   string
	Version   int64
	NextSeq   int64
	UpdatedAt time.Time
}

const getLedger = `SELECT owner_id, version, next_seq, updated_at FROM ledgers WHERE owner_id = ?`

func (q *Queries) GetLedger(ctx context.Context, ownerID string) (Ledger, error) {
	var l Ledger
	var updated string
	err := q.db.QueryRowContext(ctx, getLedger, ownerID).Scan(&l.OwnerID, &l.Version, &l.NextSeq, &updated)
	if err != nil {
		return l, err
	}
	l.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return l, nil
}

// upsertLedger only replaces an older version, so a stale writer affects no rows.
const upsertLedger = `
INSERT INTO ledgers (owner_id, version, next_seq, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(owner_id) DO UPDATE SET
    version = excluded.version,
    next_seq = excluded.next_seq,
    updated_at = excluded.updated_at
WHERE ledgers.version < excluded.version`

func (q *Queries) UpsertLedger(ctx context.Context, l Ledger) (int64, error) {
	res, err := q.db.ExecContext(ctx, upsertLedger, l.OwnerID, l.Version, l.NextSeq, l.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listOwners = `SELECT owner_id FROM ledgers ORDER BY owner_id`

func (q *Queries) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listOwners)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

var ownedTables = []string{"transactions", "wallets", "categories", "budgets", "debts", "assets"}

// ClearOwner removes every owned row of ownerID ahead of a full rewrite.
func (q *Queries) ClearOwner(ctx context.Context, ownerID string) error {
	for _, table := range ownedTables {
		if _, err := q.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE owner_id = ?", ownerID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

const insertTransaction = `
INSERT INTO transactions (owner_id, id, seq, date, description, amount, type, category, category_id, wallet_id, to_wallet_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, ownerID string, t core.Transaction) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		ownerID, t.ID, t.Seq, t.Date.String(), t.Description, t.Amount.String(),
		string(t.Type), t.Category, t.CategoryID, t.WalletID, t.ToWalletID)
	return err
}

const listTransactions = `
SELECT id, seq, date, description, amount, type, category, category_id, wallet_id, to_wallet_id
FROM transactions WHERE owner_id = ? ORDER BY seq`

func (q *Queries) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var date, typ string
		if err := rows.Scan(&t.ID, &t.Seq, &date, &t.Description, &t.Amount, &typ,
			&t.Category, &t.CategoryID, &t.WalletID, &t.ToWalletID); err != nil {
			return nil, err
		}
		if t.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		t.Type = core.TransactionType(typ)
		t.OwnerID = ownerID
		out = append(out, t)
	}
	return out, rows.Err()
}

const insertWallet = `
INSERT INTO wallets (owner_id, id, name, type, initial_balance, position) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertWallet(ctx context.Context, ownerID string, pos int, w core.Wallet) error {
	_, err := q.db.ExecContext(ctx, insertWallet, ownerID, w.ID, w.Name, string(w.Type), w.InitialBalance.String(), pos)
	return err
}

const listWallets = `SELECT id, name, type, initial_balance FROM wallets WHERE owner_id = ? ORDER BY position`

func (q *Queries) ListWallets(ctx context.Context, ownerID string) ([]core.Wallet, error) {
	rows, err := q.db.QueryContext(ctx, listWallets, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Wallet
	for rows.Next() {
		var w core.Wallet
		var typ string
		if err := rows.Scan(&w.ID, &w.Name, &typ, &w.InitialBalance); err != nil {
			return nil, err
		}
		w.Type = core.WalletType(typ)
		w.OwnerID = ownerID
		w.Balance = w.InitialBalance
		out = append(out, w)
	}
	return out, rows.Err()
}

const insertCategory = `INSERT INTO categories (owner_id, id, name, type, position) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertCategory(ctx context.Context, ownerID string, pos int, c core.Category) error {
	_, err := q.db.ExecContext(ctx, insertCategory, ownerID, c.ID, c.Name, string(c.Type), pos)
	return err
}

const listCategories = `SELECT id, name, type FROM categories WHERE owner_id = ? ORDER BY position`

func (q *Queries) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Category
	for rows.Next() {
		var c core.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &typ); err != nil {
			return nil, err
		}
		c.Type = core.TransactionType(typ)
		c.OwnerID = ownerID
		out = append(out, c)
	}
	return out, rows.Err()
}

const (
	clearDefaults = `DELETE FROM default_categories`
	insertDefault = `INSERT INTO default_categories (id, name, type, position) VALUES (?, ?, ?, ?)`
	listDefaults  = `SELECT id, name, type FROM default_categories ORDER BY position`
	markSeeded    = `INSERT INTO meta (key, value) VALUES ('defaults_seeded', '1') ON CONFLICT(key) DO NOTHING`
	getSeeded     = `SELECT COUNT(*) FROM meta WHERE key = 'defaults_seeded'`
)

// DefaultsSeeded reports whether default categories were ever stored, which
// tells an empty list apart from a never seeded one.
func (q *Queries) DefaultsSeeded(ctx context.Context) (bool, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, getSeeded).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *Queries) ReplaceDefaults(ctx context.Context, cats []core.Category) error {
	if _, err := q.db.ExecContext(ctx, clearDefaults); err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, markSeeded); err != nil {
		return err
	}
	for i, c := range cats {
		if _, err := q.db.ExecContext(ctx, insertDefault, c.ID, c.Name, string(c.Type), i); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) ListDefaults(ctx context.Context) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, listDefaults)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Category
	for rows.Next() {
		var c core.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &typ); err != nil {
			return nil, err
		}
		c.Type = core.TransactionType(typ)
		c.IsDefault = true
		out = append(out, c)
	}
	return out, rows.Err()
}

const insertBudget = `
INSERT INTO budgets (owner_id, id, category, limit_value, period, frequency, position) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertBudget(ctx context.Context, ownerID string, pos int, b core.Budget) error {
	_, err := q.db.ExecContext(ctx, insertBudget, ownerID, b.ID, b.Category, b.Limit.String(), b.Period, string(b.Frequency), pos)
	return err
}

const listBudgets = `SELECT id, category, limit_value, period, frequency FROM budgets WHERE owner_id = ? ORDER BY position`

func (q *Queries) ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		var freq string
		if err := rows.Scan(&b.ID, &b.Category, &b.Limit, &b.Period, &freq); err != nil {
			return nil, err
		}
		b.Frequency = core.Frequency(freq)
		b.OwnerID = ownerID
		out = append(out, b)
	}
	return out, rows.Err()
}

const insertDebt = `
INSERT INTO debts (owner_id, id, person, amount, remaining, due_date, description, type, is_paid, position)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertDebt(ctx context.Context, ownerID string, pos int, d core.Debt) error {
	_, err := q.db.ExecContext(ctx, insertDebt, ownerID, d.ID, d.Person, d.Amount.String(), d.Remaining.String(),
		d.DueDate.String(), d.Description, string(d.Type), d.IsPaid, pos)
	return err
}

const listDebts = `
SELECT id, person, amount, remaining, due_date, description, type, is_paid
FROM debts WHERE owner_id = ? ORDER BY position`

func (q *Queries) ListDebts(ctx context.Context, ownerID string) ([]core.Debt, error) {
	rows, err := q.db.QueryContext(ctx, listDebts, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Debt
	for rows.Next() {
		var d core.Debt
		var due, typ string
		if err := rows.Scan(&d.ID, &d.Person, &d.Amount, &d.Remaining, &due, &d.Description, &typ, &d.IsPaid); err != nil {
			return nil, err
		}
		if d.DueDate, err = core.ParseDate(due); err != nil {
			return nil, fmt.Errorf("debt %s: %w", d.ID, err)
		}
		d.Type = core.DebtType(typ)
		d.OwnerID = ownerID
		out = append(out, d)
	}
	return out, rows.Err()
}

const insertAsset = `INSERT INTO assets (owner_id, id, name, value, type, position) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertAsset(ctx context.Context, ownerID string, pos int, a core.Asset) error {
	_, err := q.db.ExecContext(ctx, insertAsset, ownerID, a.ID, a.Name, a.Value.String(), string(a.Type), pos)
	return err
}

const listAssets = `SELECT id, name, value, type FROM assets WHERE owner_id = ? ORDER BY position`

func (q *Queries) ListAssets(ctx context.Context, ownerID string) ([]core.Asset, error) {
	rows, err := q.db.QueryContext(ctx, listAssets, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Asset
	for rows.Next() {
		var a core.Asset
		var typ string
		if err := rows.Scan(&a.ID, &a.Name, &a.Value, &typ); err != nil {
			return nil, err
		}
		a.Type = core.AssetType(typ)
		a.OwnerID = ownerID
		out = append(out, a)
	}
	return out, rows.Err()
}
