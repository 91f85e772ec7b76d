package adapter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKind_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "networkChanged", NetworkChanged.String())
	assert.Equal(t, "accountsChanged", AccountsChanged.String())
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "event(9)", EventKind(9).String())
}

func TestEmitter_DeliversByKind(t *testing.T) {
	t.Parallel()

	e := newEmitter()
	var nets, accts recorder
	e.subscribe(NetworkChanged, nets.handle)
	e.subscribe(AccountsChanged, accts.handle)

	e.emit(Event{Kind: NetworkChanged, NetworkID: 42})
	e.emit(Event{Kind: Closed})

	require.Len(t, nets.snapshot(), 1)
	assert.Equal(t, uint64(42), nets.snapshot()[0].NetworkID)
	assert.Empty(t, accts.snapshot())
	assert.Equal(t, 2, e.count())
}

func TestEmitter_Unsubscribe(t *testing.T) {
	t.Parallel()

	e := newEmitter()
	var rec recorder
	sub := e.subscribe(Closed, rec.handle)
	sub.Unsubscribe()
	sub.Unsubscribe()

	e.emit(Event{Kind: Closed})
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 0, e.count())
}

func TestEmitter_UnsubscribeWaitsForInFlightHandler(t *testing.T) {
	t.Parallel()

	e := newEmitter()
	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0

	sub := e.subscribe(NetworkChanged, func(Event) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
	})

	go e.emit(Event{Kind: NetworkChanged})
	<-started

	unsubscribed := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		close(unsubscribed)
	}()

	select {
	case <-unsubscribed:
		t.Fatal("Unsubscribe returned while handler was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-unsubscribed

	e.emit(Event{Kind: NetworkChanged})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestEmitter_Clear(t *testing.T) {
	t.Parallel()

	e := newEmitter()
	var rec recorder
	e.subscribe(NetworkChanged, rec.handle)
	e.subscribe(Closed, rec.handle)

	e.clear()
	e.emit(Event{Kind: NetworkChanged})
	e.emit(Event{Kind: Closed})

	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 0, e.count())
}
