package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/core"
)

// Persister is the persistence collaborator. Load returns an empty snapshot
// for an owner that has never been saved; LoadDefaults returns nil when no
// default categories were stored yet.
type Persister interface {
	Load(ctx context.Context, ownerID string) (core.Snapshot, error)
	Save(ctx context.Context, snap core.Snapshot) error
	Owners(ctx context.Context) ([]string, error)
	LoadDefaults(ctx context.Context) ([]core.Category, error)
	SaveDefaults(ctx context.Context, categories []core.Category) error
}

// Store is the goroutine-safe holder of every owner's Book.
//
// Committed books are never modified. A mutation works on a clone, saves it
// through the Persister and only then replaces the committed book, so readers
// observe either the state before or after a mutation.
type Store struct {
	persister Persister
	now       func() time.Time

	mu       sync.RWMutex
	books    map[string]*Book
	writers  map[string]*sync.Mutex
	defaults []core.Category
	seeded   bool

	loads singleflight.Group
}

type StoreOption func(*Store)

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(p Persister, opts ...StoreOption) *Store {
	s := &Store{
		persister: p,
		now:       time.Now,
		books:     make(map[string]*Book),
		writers:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View returns a private copy of the owner's book.
func (s *Store) View(ctx context.Context, ownerID string) (*Book, error) {
	b, err := s.book(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	view := b.Clone()
	view.defaults = s.currentDefaults()
	return view, nil
}

// Version returns the owner's committed snapshot version.
func (s *Store) Version(ctx context.Context, ownerID string) (int64, error) {
	b, err := s.book(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return b.Version(), nil
}

// Update runs fn against a copy of the owner's book and commits it when fn
// succeeds and the snapshot is saved. It returns the new version.
func (s *Store) Update(ctx context.Context, ownerID string, fn func(*Book) error) (int64, error) {
	lock := s.writer(ownerID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.book(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	work := current.Clone()
	work.defaults = s.currentDefaults()
	work.defaultsDirty = false

	if err := fn(work); err != nil {
		return 0, err
	}

	work.snap.Version++
	work.snap.UpdatedAt = s.now().UTC()

	if work.defaultsDirty {
		if err := s.persister.SaveDefaults(ctx, work.defaults); err != nil {
			return 0, fmt.Errorf("save default categories: %w", err)
		}
	}
	if err := s.persister.Save(ctx, work.snap); err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}

	s.mu.Lock()
	s.books[ownerID] = work
	if work.defaultsDirty {
		s.defaults = slices.Clone(work.defaults)
	}
	s.mu.Unlock()
	work.defaultsDirty = false

	slog.DebugContext(ctx, "Ledger committed", "owner_id", ownerID, "version", work.snap.Version)
	return work.snap.Version, nil
}

// Invalidate drops the cached book of ownerID so the next access reloads it
// from the Persister. Processes that share storage with another writer call it
// when told that the owner changed.
func (s *Store) Invalidate(ownerID string) {
	s.mu.Lock()
	delete(s.books, ownerID)
	s.mu.Unlock()
}

// Owners lists every owner known to the persister.
func (s *Store) Owners(ctx context.Context) ([]string, error) {
	return s.persister.Owners(ctx)
}

// Defaults returns the shared default categories.
func (s *Store) Defaults(ctx context.Context) ([]core.Category, error) {
	if err := s.seedDefaults(ctx); err != nil {
		return nil, err
	}
	return s.currentDefaults(), nil
}

func (s *Store) book(ctx context.Context, ownerID string) (*Book, error) {
	s.mu.RLock()
	b, ok := s.books[ownerID]
	s.mu.RUnlock()
	if ok {
		return b, nil
	}

	v, err, _ := s.loads.Do(ownerID, func() (any, error) {
		s.mu.RLock()
		b, ok := s.books[ownerID]
		s.mu.RUnlock()
		if ok {
			return b, nil
		}
		if err := s.seedDefaults(ctx); err != nil {
			return nil, err
		}
		snap, err := s.persister.Load(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("load snapshot for %s: %w", ownerID, err)
		}
		snap.OwnerID = ownerID
		b = NewBook(snap, nil)
		s.mu.Lock()
		if existing, ok := s.books[ownerID]; ok {
			b = existing
		} else {
			s.books[ownerID] = b
		}
		s.mu.Unlock()
		slog.InfoContext(ctx, "Ledger loaded",
			"owner_id", ownerID,
			"transactions", len(snap.Transactions),
			"wallets", len(snap.Wallets))
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Book), nil
}

func (s *Store) seedDefaults(ctx context.Context) error {
	s.mu.RLock()
	seeded := s.seeded
	s.mu.RUnlock()
	if seeded {
		return nil
	}

	_, err, _ := s.loads.Do("\x00defaults", func() (any, error) {
		defs, err := s.persister.LoadDefaults(ctx)
		if err != nil {
			return nil, fmt.Errorf("load default categories: %w", err)
		}
		if defs == nil {
			defs = core.DefaultCategories()
			if err := s.persister.SaveDefaults(ctx, defs); err != nil {
				return nil, fmt.Errorf("seed default categories: %w", err)
			}
		}
		for i := range defs {
			defs[i].IsDefault = true
			defs[i].OwnerID = ""
		}
		s.mu.Lock()
		if !s.seeded {
			s.defaults = defs
			s.seeded = true
		}
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

func (s *Store) currentDefaults() []core.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.defaults)
}

func (s *Store) writer(ownerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.writers[ownerID]
	if !ok {
		m = &sync.Mutex{}
		s.writers[ownerID] = m
	}
	return m
}
