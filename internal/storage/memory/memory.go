// Package memory keeps ledger snapshots in process memory. Snapshots are
// copied through JSON on the way in and out, so callers never share state
// with the store.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"fintrack/internal/core"
)

type Store struct {
	mu       sync.Mutex
	ledgers  map[string][]byte
	defaults []byte
}

func New() *Store {
	return &Store{ledgers: make(map[string][]byte)}
}

// NewFromFiles seeds default categories from base/seed_categories.txt. Each
// line is "TYPE:Name" or a bare name, which is an EXPENSE category. Without
// the file the store starts unseeded.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	lines := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(lines) == 0 {
		return s, nil
	}
	cats := make([]core.Category, 0, len(lines))
	for _, line := range lines {
		typ, name := core.Expense, line
		if before, after, ok := strings.Cut(line, ":"); ok {
			typ, name = core.TransactionType(strings.ToUpper(strings.TrimSpace(before))), strings.TrimSpace(after)
		}
		c := core.Category{
			ID:        "default-" + strings.ToLower(strings.ReplaceAll(name, " ", "-")),
			Name:      name,
			Type:      typ,
			IsDefault: true,
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("seed category %q: %w", line, err)
		}
		cats = append(cats, c)
	}
	if err := s.SaveDefaults(context.Background(), cats); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Load(_ context.Context, ownerID string) (core.Snapshot, error) {
	s.mu.Lock()
	raw, ok := s.ledgers[ownerID]
	s.mu.Unlock()
	if !ok {
		return core.Snapshot{OwnerID: ownerID}, nil
	}
	var snap core.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", ownerID, err)
	}
	return snap, nil
}

// Save stores snap unless a snapshot of the same or a newer version exists.
func (s *Store) Save(_ context.Context, snap core.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.OwnerID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.ledgers[snap.OwnerID]; ok {
		var head struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(prev, &head); err == nil && head.Version >= snap.Version {
			return fmt.Errorf("owner %s version %d: %w", snap.OwnerID, snap.Version, core.ErrVersionConflict)
		}
	}
	s.ledgers[snap.OwnerID] = raw
	return nil
}

func (s *Store) Owners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owners := make([]string, 0, len(s.ledgers))
	for id := range s.ledgers {
		owners = append(owners, id)
	}
	slices.Sort(owners)
	return owners, nil
}

func (s *Store) LoadDefaults(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	raw := s.defaults
	s.mu.Unlock()
	if raw == nil {
		return nil, nil
	}
	cats := []core.Category{}
	if err := json.Unmarshal(raw, &cats); err != nil {
		return nil, fmt.Errorf("decode default categories: %w", err)
	}
	return cats, nil
}

func (s *Store) SaveDefaults(_ context.Context, categories []core.Category) error {
	if categories == nil {
		categories = []core.Category{}
	}
	raw, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("encode default categories: %w", err)
	}
	s.mu.Lock()
	s.defaults = raw
	s.mu.Unlock()
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
