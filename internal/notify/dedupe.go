// Package notify owns alert fan-out and its deduplication: the persisted
// per-client sets that stop the same alert from being raised on every
// sentinel tick, the in-memory notification list, and the outbound email /
// broker side of an alert.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Category partitions the dedup sets. Keys are order ids, so dedup is
// identity-based: the same order never raises the same category twice, no
// matter how the message text is formatted.
type Category string

const (
	CategoryTemperature Category = "temperature-alert"
	CategoryRejection   Category = "rejection-confirmed"
	CategoryDismissed   Category = "dismissed"
)

// Store is the persisted dedup ledger. It is client-local state, not ledger
// state: two daemons pointed at the same ledger each keep their own file.
type Store struct {
	mu        sync.Mutex
	path      string
	retention time.Duration
	sets      map[Category]map[string]time.Time // key -> time recorded
}

// NewStore loads the dedup sets from path, creating an empty file when none
// exists. Entries older than retention are dropped on every save; zero
// retention keeps everything forever.
func NewStore(path string, retention time.Duration) (*Store, error) {
	s := &Store{
		path:      path,
		retention: retention,
		sets:      make(map[Category]map[string]time.Time),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dedup file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.sets); err != nil {
		return fmt.Errorf("decode dedup file: %w", err)
	}
	if s.sets == nil {
		s.sets = make(map[Category]map[string]time.Time)
	}
	return nil
}

// save persists the sets, pruning aged-out entries first. Callers hold mu.
func (s *Store) save() error {
	if s.retention > 0 {
		cutoff := time.Now().UTC().Add(-s.retention)
		for _, set := range s.sets {
			for k, at := range set {
				if at.Before(cutoff) {
					delete(set, k)
				}
			}
		}
	}
	data, err := json.MarshalIndent(s.sets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dedup file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write dedup file: %w", err)
	}
	return nil
}

// Key builds the canonical dedup key for an order.
func Key(orderID int64) string {
	return strconv.FormatInt(orderID, 10)
}

// Seen reports whether the key was already recorded under the category.
func (s *Store) Seen(cat Category, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sets[cat][key]
	return ok
}

// Record adds the key under the category and persists the sets.
func (s *Store) Record(cat Category, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[cat]
	if !ok {
		set = make(map[string]time.Time)
		s.sets[cat] = set
	}
	if _, ok := set[key]; ok {
		return nil
	}
	set[key] = time.Now().UTC()
	return s.save()
}

// Len returns the number of keys recorded under the category.
func (s *Store) Len(cat Category) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets[cat])
}
