// Package requeststore provides the capacity-bounded store of in-flight
// request records. Eviction is least-recently-used: every read or write
// of a key refreshes its recency, and inserting past capacity silently
// drops the coldest record.
//
// The bound exists so unbounded request creation cannot grow memory
// without limit while hot requests stay resident for late-arriving
// terminal calls (a "read" or "accepted" landing well after
// "suggested").
package requeststore

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nextedit/tracker/internal/request"
)

// DefaultCapacity is the number of records kept resident when no
// capacity is configured.
const DefaultCapacity = 20

// Store maps request IDs to their current lifecycle records.
type Store struct {
	cache *lru.Cache[string, *request.Record]
}

// New creates a store bounded to capacity records. Capacity must be
// positive.
func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("store capacity must be positive (got %d)", capacity)
	}
	cache, err := lru.New[string, *request.Record](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create request cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

// Get returns the record for id and refreshes its recency. The second
// return is false when the id is unknown or was evicted.
func (s *Store) Get(id string) (*request.Record, bool) {
	return s.cache.Get(id)
}

// Put stores rec under its request ID, refreshing recency. When the
// store is at capacity and the key is new, the least-recently-used
// record is evicted with no event and no callback.
func (s *Store) Put(rec *request.Record) {
	s.cache.Add(rec.RequestID, rec)
}

// Contains reports residency without refreshing recency.
func (s *Store) Contains(id string) bool {
	return s.cache.Contains(id)
}

// Len returns the number of resident records.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Keys returns resident request IDs from least to most recently used.
func (s *Store) Keys() []string {
	return s.cache.Keys()
}
