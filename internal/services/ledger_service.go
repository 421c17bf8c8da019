package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
)

// EventPublisher announces committed ledger mutations.
type EventPublisher interface {
	Publish(ctx context.Context, ev amqp.LedgerEvent) error
}

// LedgerService commits mutations through the Store and publishes an event
// for each one. A failed publish is logged; the mutation stays committed.
type LedgerService struct {
	store     *ledger.Store
	publisher EventPublisher
	now       func() time.Time
}

func NewLedgerService(store *ledger.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{store: store, publisher: publisher, now: time.Now}
}

// Book returns a private copy of the owner's ledger.
func (s *LedgerService) Book(ctx context.Context, ownerID string) (*ledger.Book, error) {
	return s.store.View(ctx, ownerID)
}

func (s *LedgerService) Version(ctx context.Context, ownerID string) (int64, error) {
	return s.store.Version(ctx, ownerID)
}

// mutate runs fn in a Store update and publishes kind with the id of the
// returned entity.
func mutate[T any](ctx context.Context, s *LedgerService, ownerID string, kind amqp.EventKind, op string,
	fn func(*ledger.Book) (T, error), idOf func(T) string,
) (T, error) {
	var out T
	version, err := s.store.Update(ctx, ownerID, func(b *ledger.Book) error {
		var err error
		out, err = fn(b)
		return err
	})
	if err != nil {
		logRejection(ctx, ownerID, op, err)
		var zero T
		return zero, err
	}
	id := idOf(out)
	slog.InfoContext(ctx, "Ledger mutation committed",
		applog.FieldComponent, applog.ComponentLedger,
		applog.FieldOperation, op,
		applog.FieldKind, kind,
		applog.FieldOwnerID, ownerID,
		"entity_id", id,
		applog.FieldVersion, version)
	s.publish(ctx, amqp.LedgerEvent{Kind: kind, OwnerID: ownerID, EntityID: id, Version: version})
	return out, nil
}

func logRejection(ctx context.Context, ownerID, op string, err error) {
	args := []any{
		applog.FieldComponent, applog.ComponentLedger,
		applog.FieldOperation, op,
		applog.FieldOwnerID, ownerID,
		applog.FieldError, err,
	}
	var (
		ve *core.ValidationError
		pe *core.ProtectedEntityError
		ne *core.NotFoundError
	)
	if errors.As(err, &ve) || errors.As(err, &pe) || errors.As(err, &ne) {
		slog.WarnContext(ctx, "Ledger mutation rejected", args...)
		return
	}
	slog.ErrorContext(ctx, "Ledger mutation failed", args...)
}

func (s *LedgerService) publish(ctx context.Context, ev amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	ev.Timestamp = s.now()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			applog.FieldComponent, applog.ComponentAMQP,
			applog.FieldKind, ev.Kind,
			applog.FieldOwnerID, ev.OwnerID,
			applog.FieldError, err)
	}
}

func txID(t core.Transaction) string { return t.ID }

func (s *LedgerService) CreateTransaction(ctx context.Context, ownerID string, t core.Transaction) (core.Transaction, error) {
	return mutate(ctx, s, ownerID, amqp.TransactionCreated, applog.OpCreate,
		func(b *ledger.Book) (core.Transaction, error) { return b.ApplyNew(t) }, txID)
}

// UpdateTransaction replaces the stored transaction id with t.
func (s *LedgerService) UpdateTransaction(ctx context.Context, ownerID, id string, t core.Transaction) (core.Transaction, error) {
	return mutate(ctx, s, ownerID, amqp.TransactionUpdated, applog.OpUpdate,
		func(b *ledger.Book) (core.Transaction, error) {
			return b.ApplyEdit(core.Transaction{ID: id}, t)
		}, txID)
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	return mutate(ctx, s, ownerID, amqp.TransactionDeleted, applog.OpDelete,
		func(b *ledger.Book) (core.Transaction, error) { return b.ApplyDelete(id) }, txID)
}

// CommitBatch applies every transaction or none and publishes one import
// event carrying the count.
func (s *LedgerService) CommitBatch(ctx context.Context, ownerID string, txs []core.Transaction) ([]core.Transaction, error) {
	var saved []core.Transaction
	version, err := s.store.Update(ctx, ownerID, func(b *ledger.Book) error {
		var err error
		saved, err = b.ApplyBatch(txs)
		return err
	})
	if err != nil {
		logRejection(ctx, ownerID, applog.OpImport, err)
		return nil, err
	}
	slog.InfoContext(ctx, "Transactions imported",
		applog.FieldComponent, applog.ComponentLedger,
		applog.FieldOwnerID, ownerID,
		"count", len(saved),
		applog.FieldVersion, version)
	s.publish(ctx, amqp.LedgerEvent{Kind: amqp.TransactionImported, OwnerID: ownerID, Count: len(saved), Version: version})
	return saved, nil
}

func (s *LedgerService) AddWallet(ctx context.Context, ownerID string, w core.Wallet) (core.Wallet, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpCreate,
		func(b *ledger.Book) (core.Wallet, error) { return b.AddWallet(w) }, walletID)
}

func (s *LedgerService) EditWallet(ctx context.Context, ownerID string, w core.Wallet) (core.Wallet, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpUpdate,
		func(b *ledger.Book) (core.Wallet, error) { return b.EditWallet(w) }, walletID)
}

func (s *LedgerService) DeleteWallet(ctx context.Context, ownerID, id string) (core.Wallet, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpDelete,
		func(b *ledger.Book) (core.Wallet, error) { return b.DeleteWallet(id) }, walletID)
}

func walletID(w core.Wallet) string { return w.ID }

func (s *LedgerService) AddCategory(ctx context.Context, ownerID string, c core.Category) (core.Category, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpCreate,
		func(b *ledger.Book) (core.Category, error) { return b.AddCategory(c) }, categoryID)
}

// EditCategory renames or retypes a category. Default categories need a
// privileged caller.
func (s *LedgerService) EditCategory(ctx context.Context, ownerID string, c core.Category, privileged bool) (core.Category, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpUpdate,
		func(b *ledger.Book) (core.Category, error) { return b.EditCategory(c, privileged) }, categoryID)
}

func (s *LedgerService) DeleteCategory(ctx context.Context, ownerID, id string, privileged bool) (core.Category, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpDelete,
		func(b *ledger.Book) (core.Category, error) { return b.DeleteCategory(id, privileged) }, categoryID)
}

func categoryID(c core.Category) string { return c.ID }

func (s *LedgerService) AddBudget(ctx context.Context, ownerID string, bu core.Budget) (core.Budget, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpCreate,
		func(b *ledger.Book) (core.Budget, error) { return b.AddBudget(bu) }, budgetID)
}

func (s *LedgerService) EditBudget(ctx context.Context, ownerID string, bu core.Budget) (core.Budget, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpUpdate,
		func(b *ledger.Book) (core.Budget, error) { return b.EditBudget(bu) }, budgetID)
}

func (s *LedgerService) DeleteBudget(ctx context.Context, ownerID, id string) (core.Budget, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpDelete,
		func(b *ledger.Book) (core.Budget, error) { return b.DeleteBudget(id) }, budgetID)
}

func budgetID(b core.Budget) string { return b.ID }

func (s *LedgerService) AddDebt(ctx context.Context, ownerID string, d core.Debt) (core.Debt, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpCreate,
		func(b *ledger.Book) (core.Debt, error) { return b.AddDebt(d) }, debtID)
}

func (s *LedgerService) EditDebt(ctx context.Context, ownerID string, d core.Debt) (core.Debt, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpUpdate,
		func(b *ledger.Book) (core.Debt, error) { return b.EditDebt(d) }, debtID)
}

func (s *LedgerService) ToggleDebt(ctx context.Context, ownerID, id string) (core.Debt, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpToggle,
		func(b *ledger.Book) (core.Debt, error) { return b.TogglePaid(id) }, debtID)
}

func (s *LedgerService) DeleteDebt(ctx context.Context, ownerID, id string) (core.Debt, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpDelete,
		func(b *ledger.Book) (core.Debt, error) { return b.DeleteDebt(id) }, debtID)
}

func debtID(d core.Debt) string { return d.ID }

func (s *LedgerService) AddAsset(ctx context.Context, ownerID string, a core.Asset) (core.Asset, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpCreate,
		func(b *ledger.Book) (core.Asset, error) { return b.AddAsset(a) }, assetID)
}

func (s *LedgerService) EditAsset(ctx context.Context, ownerID string, a core.Asset) (core.Asset, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpUpdate,
		func(b *ledger.Book) (core.Asset, error) { return b.EditAsset(a) }, assetID)
}

func (s *LedgerService) DeleteAsset(ctx context.Context, ownerID, id string) (core.Asset, error) {
	return mutate(ctx, s, ownerID, amqp.RegistryChanged, applog.OpDelete,
		func(b *ledger.Book) (core.Asset, error) { return b.DeleteAsset(id) }, assetID)
}

func assetID(a core.Asset) string { return a.ID }
