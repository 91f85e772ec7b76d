// Package pending tracks submitted transactions per account until they are mined.
package pending

import (
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Record is a transaction awaiting confirmation.
type Record struct {
	Hash        common.Hash `json:"hash"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// Tracker maps accounts to their in-flight transactions.
// Each account has its own set; nothing is shared between accounts.
type Tracker struct {
	mu      sync.RWMutex
	byOwner map[common.Address]map[common.Hash]time.Time
	now     func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byOwner: make(map[common.Address]map[common.Hash]time.Time),
		now:     time.Now,
	}
}

// Add records tx as pending for account. Adding the same tx twice is a no-op.
func (t *Tracker) Add(account common.Address, tx common.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.byOwner[account]
	if set == nil {
		set = make(map[common.Hash]time.Time)
		t.byOwner[account] = set
	}
	if _, ok := set[tx]; !ok {
		set[tx] = t.now()
	}
}

// HasPending reports whether account has any in-flight transaction.
func (t *Tracker) HasPending(account common.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byOwner[account]) > 0
}

// Contains reports whether tx is pending for account.
func (t *Tracker) Contains(account common.Address, tx common.Hash) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byOwner[account][tx]
	return ok
}

// Resolve removes tx from account's set.
func (t *Tracker) Resolve(account common.Address, tx common.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.byOwner[account]
	delete(set, tx)
	if len(set) == 0 {
		delete(t.byOwner, account)
	}
}

// Pending returns account's in-flight transactions, oldest first.
func (t *Tracker) Pending(account common.Address) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set := t.byOwner[account]
	out := make([]Record, 0, len(set))
	for hash, at := range set {
		out = append(out, Record{Hash: hash, SubmittedAt: at})
	}
	slices.SortFunc(out, func(a, b Record) int {
		if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
			return c
		}
		return a.Hash.Cmp(b.Hash)
	})
	return out
}

// Clear drops every pending transaction of account.
func (t *Tracker) Clear(account common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byOwner, account)
}
