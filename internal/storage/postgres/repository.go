// Package postgres persists ledger snapshots in PostgreSQL through a pgx
// connection pool. It mirrors the SQLite collaborator table for table.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

//go:embed schema.sql
var schema string

// Repository implements the ledger persistence contract on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects to databaseURL and makes sure the schema exists.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// No arguments: pgx sends it over the simple protocol, so the file may
	// hold several statements.
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	slog.InfoContext(ctx, "PostgreSQL ledger schema ready")
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Load reads the owner's full snapshot. An unknown owner yields an empty one.
func (r *Repository) Load(ctx context.Context, ownerID string) (core.Snapshot, error) {
	snap := core.Snapshot{OwnerID: ownerID}

	err := r.pool.QueryRow(ctx,
		`SELECT version, next_seq, updated_at FROM ledgers WHERE owner_id = $1`, ownerID,
	).Scan(&snap.Version, &snap.NextSeq, &snap.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return snap, nil
	case err != nil:
		return snap, fmt.Errorf("get ledger: %w", err)
	}
	snap.UpdatedAt = snap.UpdatedAt.UTC()

	if snap.Transactions, err = listTransactions(ctx, r.pool, ownerID); err != nil {
		return snap, fmt.Errorf("list transactions: %w", err)
	}
	if snap.Wallets, err = listWallets(ctx, r.pool, ownerID); err != nil {
		return snap, fmt.Errorf("list wallets: %w", err)
	}
	if snap.Categories, err = listCategories(ctx, r.pool, ownerID); err != nil {
		return snap, fmt.Errorf("list categories: %w", err)
	}
	if snap.Budgets, err = listBudgets(ctx, r.pool, ownerID); err != nil {
		return snap, fmt.Errorf("list budgets: %w", err)
	}
	if snap.Debts, err = listDebts(ctx, r.pool, ownerID); err != nil {
		return snap, fmt.Errorf("list debts: %w", err)
	}
	if snap.Assets, err = listAssets(ctx, r.pool, ownerID); err != nil {
		return snap, fmt.Errorf("list assets: %w", err)
	}
	return snap, nil
}

// upsertLedger only replaces an older version, so a stale writer affects no rows.
const upsertLedger = `
INSERT INTO ledgers (owner_id, version, next_seq, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (owner_id) DO UPDATE SET
    version = excluded.version,
    next_seq = excluded.next_seq,
    updated_at = excluded.updated_at
WHERE ledgers.version < excluded.version`

var ownedTables = []string{"transactions", "wallets", "categories", "budgets", "debts", "assets"}

// Save replaces the owner's rows with snap in one database transaction.
// A snapshot whose version is not newer than the stored one is rejected
// with core.ErrVersionConflict.
func (r *Repository) Save(ctx context.Context, snap core.Snapshot) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, upsertLedger, snap.OwnerID, snap.Version, snap.NextSeq, snap.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("owner %s version %d: %w", snap.OwnerID, snap.Version, core.ErrVersionConflict)
	}

	for _, table := range ownedTables {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE owner_id = $1", snap.OwnerID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	batch := snapshotBatch(snap)
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.DebugContext(ctx, "Snapshot saved to PostgreSQL",
		"owner_id", snap.OwnerID,
		"version", snap.Version,
		"transactions", len(snap.Transactions))
	return nil
}

// Amounts and dates travel as text and are cast server side.
const (
	insertTransaction = `
INSERT INTO transactions (owner_id, id, seq, date, description, amount, type, category, category_id, wallet_id, to_wallet_id)
VALUES ($1, $2, $3, $4::text::date, $5, $6::text::numeric, $7, $8, $9, $10, $11)`
	insertWallet = `
INSERT INTO wallets (owner_id, id, name, type, initial_balance, position)
VALUES ($1, $2, $3, $4, $5::text::numeric, $6)`
	insertCategory = `INSERT INTO categories (owner_id, id, name, type, position) VALUES ($1, $2, $3, $4, $5)`
	insertBudget   = `
INSERT INTO budgets (owner_id, id, category, limit_value, period, frequency, position)
VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7)`
	insertDebt = `
INSERT INTO debts (owner_id, id, person, amount, remaining, due_date, description, type, is_paid, position)
VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6::text::date, $7, $8, $9, $10)`
	insertAsset = `
INSERT INTO assets (owner_id, id, name, value, type, position)
VALUES ($1, $2, $3, $4::text::numeric, $5, $6)`
)

func snapshotBatch(snap core.Snapshot) *pgx.Batch {
	owner := snap.OwnerID
	b := &pgx.Batch{}
	for _, t := range snap.Transactions {
		b.Queue(insertTransaction, owner, t.ID, t.Seq, t.Date.String(), t.Description, t.Amount.String(),
			string(t.Type), t.Category, t.CategoryID, t.WalletID, t.ToWalletID)
	}
	for i, w := range snap.Wallets {
		b.Queue(insertWallet, owner, w.ID, w.Name, string(w.Type), w.InitialBalance.String(), i)
	}
	for i, c := range snap.Categories {
		b.Queue(insertCategory, owner, c.ID, c.Name, string(c.Type), i)
	}
	for i, bu := range snap.Budgets {
		b.Queue(insertBudget, owner, bu.ID, bu.Category, bu.Limit.String(), bu.Period, string(bu.Frequency), i)
	}
	for i, d := range snap.Debts {
		b.Queue(insertDebt, owner, d.ID, d.Person, d.Amount.String(), d.Remaining.String(),
			d.DueDate.String(), d.Description, string(d.Type), d.IsPaid, i)
	}
	for i, a := range snap.Assets {
		b.Queue(insertAsset, owner, a.ID, a.Name, a.Value.String(), string(a.Type), i)
	}
	return b
}

func (r *Repository) Owners(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT owner_id FROM ledgers ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}

// LoadDefaults returns nil until defaults have been saved once.
func (r *Repository) LoadDefaults(ctx context.Context) ([]core.Category, error) {
	var seeded bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM meta WHERE key = 'defaults_seeded')`).Scan(&seeded)
	if err != nil {
		return nil, fmt.Errorf("check defaults: %w", err)
	}
	if !seeded {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id, name, type FROM default_categories ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list default categories: %w", err)
	}
	defs := []core.Category{}
	var c core.Category
	var typ string
	_, err = pgx.ForEachRow(rows, []any{&c.ID, &c.Name, &typ}, func() error {
		defs = append(defs, core.Category{ID: c.ID, Name: c.Name, Type: core.TransactionType(typ), IsDefault: true})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list default categories: %w", err)
	}
	return defs, nil
}

func (r *Repository) SaveDefaults(ctx context.Context, categories []core.Category) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM default_categories`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO meta (key, value) VALUES ('defaults_seeded', '1') ON CONFLICT (key) DO NOTHING`); err != nil {
			return err
		}
		for i, c := range categories {
			if _, err := tx.Exec(ctx,
				`INSERT INTO default_categories (id, name, type, position) VALUES ($1, $2, $3, $4)`,
				c.ID, c.Name, string(c.Type), i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace default categories: %w", err)
	}
	slog.InfoContext(ctx, "Default categories saved", "count", len(categories))
	return nil
}

func listTransactions(ctx context.Context, db *pgxpool.Pool, ownerID string) ([]core.Transaction, error) {
	rows, err := db.Query(ctx, `
SELECT id, seq, date::text, description, amount::text, type, category, category_id, wallet_id, to_wallet_id
FROM transactions WHERE owner_id = $1 ORDER BY seq`, ownerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Transaction, error) {
		var t core.Transaction
		var date, amount, typ string
		if err := row.Scan(&t.ID, &t.Seq, &date, &t.Description, &amount, &typ,
			&t.Category, &t.CategoryID, &t.WalletID, &t.ToWalletID); err != nil {
			return t, err
		}
		var err error
		if t.Date, err = core.ParseDate(date); err != nil {
			return t, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return t, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		t.Type = core.TransactionType(typ)
		t.OwnerID = ownerID
		return t, nil
	})
}

func listWallets(ctx context.Context, db *pgxpool.Pool, ownerID string) ([]core.Wallet, error) {
	rows, err := db.Query(ctx, `
SELECT id, name, type, initial_balance::text FROM wallets WHERE owner_id = $1 ORDER BY position`, ownerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Wallet, error) {
		var w core.Wallet
		var typ, initial string
		if err := row.Scan(&w.ID, &w.Name, &typ, &initial); err != nil {
			return w, err
		}
		var err error
		if w.InitialBalance, err = decimal.NewFromString(initial); err != nil {
			return w, fmt.Errorf("wallet %s: %w", w.ID, err)
		}
		w.Type = core.WalletType(typ)
		w.OwnerID = ownerID
		w.Balance = w.InitialBalance
		return w, nil
	})
}

func listCategories(ctx context.Context, db *pgxpool.Pool, ownerID string) ([]core.Category, error) {
	rows, err := db.Query(ctx, `SELECT id, name, type FROM categories WHERE owner_id = $1 ORDER BY position`, ownerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Category, error) {
		var c core.Category
		var typ string
		err := row.Scan(&c.ID, &c.Name, &typ)
		c.Type = core.TransactionType(typ)
		c.OwnerID = ownerID
		return c, err
	})
}

func listBudgets(ctx context.Context, db *pgxpool.Pool, ownerID string) ([]core.Budget, error) {
	rows, err := db.Query(ctx, `
SELECT id, category, limit_value::text, period, frequency FROM budgets WHERE owner_id = $1 ORDER BY position`, ownerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Budget, error) {
		var b core.Budget
		var limit, freq string
		if err := row.Scan(&b.ID, &b.Category, &limit, &b.Period, &freq); err != nil {
			return b, err
		}
		var err error
		if b.Limit, err = decimal.NewFromString(limit); err != nil {
			return b, fmt.Errorf("budget %s: %w", b.ID, err)
		}
		b.Frequency = core.Frequency(freq)
		b.OwnerID = ownerID
		return b, nil
	})
}

func listDebts(ctx context.Context, db *pgxpool.Pool, ownerID string) ([]core.Debt, error) {
	rows, err := db.Query(ctx, `
SELECT id, person, amount::text, remaining::text, due_date::text, description, type, is_paid
FROM debts WHERE owner_id = $1 ORDER BY position`, ownerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Debt, error) {
		var d core.Debt
		var amount, remaining, due, typ string
		if err := row.Scan(&d.ID, &d.Person, &amount, &remaining, &due, &d.Description, &typ, &d.IsPaid); err != nil {
			return d, err
		}
		var err error
		if d.Amount, err = decimal.NewFromString(amount); err != nil {
			return d, fmt.Errorf("debt %s: %w", d.ID, err)
		}
		if d.Remaining, err = decimal.NewFromString(remaining); err != nil {
			return d, fmt.Errorf("debt %s: %w", d.ID, err)
		}
		if d.DueDate, err = core.ParseDate(due); err != nil {
			return d, fmt.Errorf("debt %s: %w", d.ID, err)
		}
		d.Type = core.DebtType(typ)
		d.OwnerID = ownerID
		return d, nil
	})
}

func listAssets(ctx context.Context, db *pgxpool.Pool, ownerID string) ([]core.Asset, error) {
	rows, err := db.Query(ctx, `
SELECT id, name, value::text, type FROM assets WHERE owner_id = $1 ORDER BY position`, ownerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Asset, error) {
		var a core.Asset
		var value, typ string
		if err := row.Scan(&a.ID, &a.Name, &value, &typ); err != nil {
			return a, err
		}
		var err error
		if a.Value, err = decimal.NewFromString(value); err != nil {
			return a, fmt.Errorf("asset %s: %w", a.ID, err)
		}
		a.Type = core.AssetType(typ)
		a.OwnerID = ownerID
		return a, nil
	})
}
