package adapter

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/conduit/internal/chain"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

func fastInjectedOptions() InjectedOptions {
	return InjectedOptions{
		PollInterval: fastPoll,
		MaxFailures:  2,
		Retry:        chain.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func dialWallet(t *testing.T, w *fakeWallet) *InjectedAdapter {
	t.Helper()
	a, err := DialInjected(testContext(t), w.URL(), fastInjectedOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestDialInjected_Handshake(t *testing.T) {
	t.Parallel()

	w := newFakeWallet(t, 42, walletAccount)
	a := dialWallet(t, w)
	ctx := testContext(t)

	assert.Equal(t, KindInjected, a.Kind())
	assert.Equal(t, w.URL(), a.Endpoint())

	id, err := a.NetworkID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	accounts, err := a.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{common.HexToAddress(walletAccount)}, accounts)
	assert.Equal(t, 1, w.callCount("eth_requestAccounts"))
}

func TestDialInjected_RequestRefusedFallsBackToAccounts(t *testing.T) {
	t.Parallel()

	w := newFakeWallet(t, 1, walletAccount)
	w.set(func(w *fakeWallet) { w.refuseRequest = true })

	dialWallet(t, w)
	assert.Equal(t, 1, w.callCount("eth_requestAccounts"))
	assert.GreaterOrEqual(t, w.callCount("eth_accounts"), 1)
}

func TestDialInjected_Failures(t *testing.T) {
	t.Parallel()

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()
		_, err := DialInjected(testContext(t), "", fastInjectedOptions())
		require.ErrorIs(t, err, cerr.ErrInjectedUnavailable)
	})

	t.Run("endpoint down", func(t *testing.T) {
		t.Parallel()
		w := newFakeWallet(t, 1)
		w.set(func(w *fakeWallet) { w.down = true })

		_, err := DialInjected(testContext(t), w.URL(), fastInjectedOptions())
		require.ErrorIs(t, err, cerr.ErrInjectedUnavailable)
		assert.Equal(t, 2, w.callCount("eth_chainId"), "handshake is retried")
	})
}

func TestInjected_CallAndSend(t *testing.T) {
	t.Parallel()

	w := newFakeWallet(t, 1, walletAccount)
	a := dialWallet(t, w)
	ctx := testContext(t)
	to := common.HexToAddress(otherAccount)

	out, err := a.Call(ctx, ethereum.CallMsg{To: &to, Data: []byte{0x01}})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), new(big.Int).SetBytes(out))

	hash, err := a.SendTransaction(ctx, TxRequest{
		From:  common.HexToAddress(walletAccount),
		To:    to,
		Value: big.NewInt(16),
	})
	require.NoError(t, err)
	assert.Equal(t, common.BigToHash(big.NewInt(0xabc)), hash)

	w.mu.Lock()
	payload := w.lastSendPayload
	w.mu.Unlock()
	assert.Equal(t, "0x10", payload["value"])
	assert.Equal(t, to.Hex(), payload["to"])
}

func TestInjected_SendWithoutHash(t *testing.T) {
	t.Parallel()

	w := newFakeWallet(t, 1, walletAccount)
	w.set(func(w *fakeWallet) { w.sendResult = nil })
	a := dialWallet(t, w)

	hash, err := a.SendTransaction(testContext(t), TxRequest{From: common.HexToAddress(walletAccount)})
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, hash)
}

func TestInjected_TransactionStatus(t *testing.T) {
	t.Parallel()

	w := newFakeWallet(t, 1, walletAccount)
	a := dialWallet(t, w)
	ctx := testContext(t)
	hash := common.BigToHash(big.NewInt(0xabc))

	status, err := a.TransactionStatus(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, TxPending, status)

	w.set(func(w *fakeWallet) { w.receiptStatus = "0x1" })
	status, err = a.TransactionStatus(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, TxSucceeded, status)

	w.set(func(w *fakeWallet) { w.receiptStatus = "0x0" })
	status, err = a.TransactionStatus(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, TxReverted, status)
}

func TestInjected_WatcherEvents(t *testing.T) {
	t.Parallel()

	w := newFakeWallet(t, 1, walletAccount)
	a := dialWallet(t, w)

	var rec recorder
	a.Subscribe(NetworkChanged, rec.handle)
	a.Subscribe(AccountsChanged, rec.handle)
	a.Subscribe(Closed, rec.handle)

	w.set(func(w *fakeWallet) { w.chainID = 42 })
	events := rec.waitFor(t, 1)
	assert.Equal(t, NetworkChanged, events[0].Kind)
	assert.Equal(t, uint64(42), events[0].NetworkID)

	w.set(func(w *fakeWallet) { w.accounts = []string{otherAccount, walletAccount} })
	events = rec.waitFor(t, 2)
	assert.Equal(t, AccountsChanged, events[1].Kind)
	assert.Equal(t, common.HexToAddress(otherAccount), events[1].Accounts[0])

	w.set(func(w *fakeWallet) { w.down = true })
	events = rec.waitFor(t, 3)
	assert.Equal(t, Closed, events[2].Kind)
	require.Error(t, events[2].Err)
}

func TestInjected_Close(t *testing.T) {
	t.Parallel()

	w := newFakeWallet(t, 1, walletAccount)
	a, err := DialInjected(testContext(t), w.URL(), fastInjectedOptions())
	require.NoError(t, err)

	var rec recorder
	a.Subscribe(NetworkChanged, rec.handle)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err = a.NetworkID(testContext(t))
	require.ErrorIs(t, err, cerr.ErrAdapterClosed)
	_, err = a.SendTransaction(testContext(t), TxRequest{})
	require.ErrorIs(t, err, cerr.ErrAdapterClosed)

	w.set(func(w *fakeWallet) { w.chainID = 5 })
	time.Sleep(5 * fastPoll)
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 0, a.events.count())
}
