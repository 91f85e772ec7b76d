package pending

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	bob   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	txA   = common.HexToHash("0xaa")
	txB   = common.HexToHash("0xbb")
)

func TestTracker_AddResolve(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	assert.False(t, tr.HasPending(alice))

	tr.Add(alice, txA)
	assert.True(t, tr.HasPending(alice))

	tr.Resolve(alice, txA)
	assert.False(t, tr.HasPending(alice))

	// Resolving an unknown tx is harmless.
	tr.Resolve(alice, txB)
	tr.Resolve(bob, txB)
}

func TestTracker_AccountsAreDisjoint(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Add(alice, txA)

	assert.False(t, tr.HasPending(bob))
	tr.Resolve(bob, txA)
	assert.True(t, tr.HasPending(alice))

	tr.Add(bob, txB)
	tr.Clear(alice)
	assert.False(t, tr.HasPending(alice))
	assert.True(t, tr.HasPending(bob))
}

func TestTracker_PendingOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	tr := NewTracker()
	tr.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	tr.Add(alice, txB)
	tr.Add(alice, txA)
	tr.Add(alice, txB)

	records := tr.Pending(alice)
	require.Len(t, records, 2)
	assert.Equal(t, txB, records[0].Hash)
	assert.Equal(t, txA, records[1].Hash)
	assert.Equal(t, base.Add(time.Second), records[0].SubmittedAt)
	assert.Empty(t, tr.Pending(bob))
}

func TestTracker_Concurrent(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hash := common.BigToHash(common.Big1)
			hash[0] = byte(i)
			tr.Add(alice, hash)
			_ = tr.HasPending(alice)
			_ = tr.Pending(alice)
		}(i)
	}
	wg.Wait()
	assert.Len(t, tr.Pending(alice), 50)
}

func TestTracker_Contains(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Add(alice, txA)

	assert.True(t, tr.Contains(alice, txA))
	assert.False(t, tr.Contains(alice, txB))
	assert.False(t, tr.Contains(bob, txA))
}
