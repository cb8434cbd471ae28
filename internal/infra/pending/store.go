// Package pending holds purchases awaiting confirmation, one per chat and user.
// Entries live only in process memory; a restart drops them.
package pending

import (
	"sync"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/google/uuid"
)

// Lookup is the result of a keyed read that also enforces the TTL.
type Lookup int

const (
	Missing Lookup = iota
	Expired
	Found
)

func (l Lookup) String() string {
	switch l {
	case Expired:
		return "expired"
	case Found:
		return "found"
	default:
		return "missing"
	}
}

// Decision tells Decide what to do with a live entry.
type Decision int

const (
	// Keep leaves the entry untouched.
	Keep Decision = iota
	// Warn moves the entry to StageWarned.
	Warn
	// Take removes the entry and hands it to the caller.
	Take
)

// Store is a mutex-guarded map from key to pending confirmation.
// Every read-decide-write sequence runs under one lock acquisition, so two
// requests for the same key never both observe the same entry as live.
type Store struct {
	mu    sync.Mutex
	items map[domain.PendingKey]domain.PendingConfirmation
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{items: make(map[domain.PendingKey]domain.PendingConfirmation)}
}

// Put registers purchase as a new PREVIEW entry for key, replacing any
// previous one (last writer wins). The entry gets a fresh random id.
func (s *Store) Put(key domain.PendingKey, purchase domain.PurchaseIntent, now time.Time) domain.PendingConfirmation {
	p := domain.PendingConfirmation{
		ID:        uuid.NewString(),
		Key:       key,
		Purchase:  purchase,
		CreatedAt: now,
		Stage:     domain.StagePreview,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = p
	return p
}

// Get returns the entry for key without checking its age.
func (s *Store) Get(key domain.PendingKey) (domain.PendingConfirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.items[key]
	return p, ok
}

// Lookup returns the live entry for key. An entry older than ttl is purged
// and reported as Expired together with its last value.
func (s *Store) Lookup(key domain.PendingKey, now time.Time, ttl time.Duration) (domain.PendingConfirmation, Lookup) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookupLocked(key, now, ttl)
}

func (s *Store) lookupLocked(key domain.PendingKey, now time.Time, ttl time.Duration) (domain.PendingConfirmation, Lookup) {
	p, ok := s.items[key]
	if !ok {
		return domain.PendingConfirmation{}, Missing
	}
	if p.Expired(now, ttl) {
		delete(s.items, key)
		return p, Expired
	}
	return p, Found
}

// MarkWarned moves the entry to StageWarned. It is a no-op when the entry is
// absent or already warned.
func (s *Store) MarkWarned(key domain.PendingKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.items[key]
	if !ok {
		return false
	}
	p.Stage = domain.StageWarned
	s.items[key] = p
	return true
}

// Remove deletes the entry for key. Removing an absent key is a no-op.
func (s *Store) Remove(key domain.PendingKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[key]
	delete(s.items, key)
	return ok
}

// Decide looks key up under the lock and, when the entry is live, applies
// the decision returned by fn before releasing it. fn must not block: it
// runs while every other caller waits.
//
// The returned entry reflects the state after the decision (a Warn result
// carries StageWarned; a Take result is no longer in the store).
func (s *Store) Decide(
	key domain.PendingKey,
	now time.Time,
	ttl time.Duration,
	fn func(domain.PendingConfirmation) Decision,
) (domain.PendingConfirmation, Lookup) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, res := s.lookupLocked(key, now, ttl)
	if res != Found {
		return p, res
	}

	switch fn(p) {
	case Warn:
		p.Stage = domain.StageWarned
		s.items[key] = p
	case Take:
		delete(s.items, key)
	}
	return p, Found
}

// Restore puts back an entry previously taken by Decide. It only fills an
// empty slot: a newer purchase registered in the meantime wins.
func (s *Store) Restore(p domain.PendingConfirmation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.items[p.Key]; taken {
		return false
	}
	s.items[p.Key] = p
	return true
}

// SweepExpired purges every entry older than ttl and returns how many went.
func (s *Store) SweepExpired(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, p := range s.items {
		if p.Expired(now, ttl) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}
