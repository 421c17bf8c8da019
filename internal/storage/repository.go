package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists ledger snapshots in a local SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load reads the owner's full snapshot. An unknown owner yields an empty one.
func (r *SQLiteRepository) Load(ctx context.Context, ownerID string) (core.Snapshot, error) {
	snap := core.Snapshot{OwnerID: ownerID}

	l, err := r.queries.GetLedger(ctx, ownerID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return snap, nil
	case err != nil:
		return snap, fmt.Errorf("get ledger: %w", err)
	}
	snap.Version = l.Version
	snap.NextSeq = l.NextSeq
	snap.UpdatedAt = l.UpdatedAt

	if snap.Transactions, err = r.queries.ListTransactions(ctx, ownerID); err != nil {
		return snap, fmt.Errorf("list transactions: %w", err)
	}
	if snap.Wallets, err = r.queries.ListWallets(ctx, ownerID); err != nil {
		return snap, fmt.Errorf("list wallets: %w", err)
	}
	if snap.Categories, err = r.queries.ListCategories(ctx, ownerID); err != nil {
		return snap, fmt.Errorf("list categories: %w", err)
	}
	if snap.Budgets, err = r.queries.ListBudgets(ctx, ownerID); err != nil {
		return snap, fmt.Errorf("list budgets: %w", err)
	}
	if snap.Debts, err = r.queries.ListDebts(ctx, ownerID); err != nil {
		return snap, fmt.Errorf("list debts: %w", err)
	}
	if snap.Assets, err = r.queries.ListAssets(ctx, ownerID); err != nil {
		return snap, fmt.Errorf("list assets: %w", err)
	}
	return snap, nil
}

// Save replaces the owner's rows with snap in one database transaction.
// A snapshot whose version is not newer than the stored one is rejected
// with core.ErrVersionConflict.
func (r *SQLiteRepository) Save(ctx context.Context, snap core.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	n, err := q.UpsertLedger(ctx, Ledger{
		OwnerID:   snap.OwnerID,
		Version:   snap.Version,
		NextSeq:   snap.NextSeq,
		UpdatedAt: snap.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("upsert ledger: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("owner %s version %d: %w", snap.OwnerID, snap.Version, core.ErrVersionConflict)
	}

	if err := q.ClearOwner(ctx, snap.OwnerID); err != nil {
		return err
	}
	if err := writeSnapshot(ctx, q, snap); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved to SQLite",
		"owner_id", snap.OwnerID,
		"version", snap.Version,
		"transactions", len(snap.Transactions))
	return nil
}

func writeSnapshot(ctx context.Context, q *Queries, snap core.Snapshot) error {
	owner := snap.OwnerID
	for _, t := range snap.Transactions {
		if err := q.InsertTransaction(ctx, owner, t); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}
	for i, w := range snap.Wallets {
		if err := q.InsertWallet(ctx, owner, i, w); err != nil {
			return fmt.Errorf("insert wallet %s: %w", w.ID, err)
		}
	}
	for i, c := range snap.Categories {
		if err := q.InsertCategory(ctx, owner, i, c); err != nil {
			return fmt.Errorf("insert category %s: %w", c.ID, err)
		}
	}
	for i, b := range snap.Budgets {
		if err := q.InsertBudget(ctx, owner, i, b); err != nil {
			return fmt.Errorf("insert budget %s: %w", b.ID, err)
		}
	}
	for i, d := range snap.Debts {
		if err := q.InsertDebt(ctx, owner, i, d); err != nil {
			return fmt.Errorf("insert debt %s: %w", d.ID, err)
		}
	}
	for i, a := range snap.Assets {
		if err := q.InsertAsset(ctx, owner, i, a); err != nil {
			return fmt.Errorf("insert asset %s: %w", a.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Owners(ctx context.Context) ([]string, error) {
	owners, err := r.queries.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}

// LoadDefaults returns nil until defaults have been saved once.
func (r *SQLiteRepository) LoadDefaults(ctx context.Context) ([]core.Category, error) {
	seeded, err := r.queries.DefaultsSeeded(ctx)
	if err != nil {
		return nil, fmt.Errorf("check defaults: %w", err)
	}
	if !seeded {
		return nil, nil
	}
	defs, err := r.queries.ListDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list default categories: %w", err)
	}
	if defs == nil {
		defs = []core.Category{}
	}
	return defs, nil
}

func (r *SQLiteRepository) SaveDefaults(ctx context.Context, categories []core.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if err := r.queries.WithTx(tx).ReplaceDefaults(ctx, categories); err != nil {
		return fmt.Errorf("replace default categories: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "Default categories saved", "count", len(categories))
	return nil
}
