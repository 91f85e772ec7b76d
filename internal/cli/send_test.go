package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/conduit/internal/adapter"
	"github.com/mrz1836/conduit/internal/adapter/adaptertest"
	"github.com/mrz1836/conduit/internal/chain/eth/rpc"
	"github.com/mrz1836/conduit/internal/contract"
	"github.com/mrz1836/conduit/internal/output"
	"github.com/mrz1836/conduit/internal/supervisor"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// withSendFlags sets the send flags for one test.
func withSendFlags(t *testing.T, target targetFlags, wait bool) {
	t.Helper()
	origTarget, origWait := sendTarget, sendWait
	origValue, origGas, origPrice := sendValue, sendGas, sendGasPrice
	t.Cleanup(func() {
		sendTarget, sendWait = origTarget, origWait
		sendValue, sendGas, sendGasPrice = origValue, origGas, origPrice
	})
	sendTarget, sendWait = target, wait
	sendValue, sendGas, sendGasPrice = "", 0, ""
}

func wethTransfer() targetFlags {
	return targetFlags{deployment: "weth", method: "transfer", args: []string{bob.Hex(), "5"}}
}

func TestParseOverrides(t *testing.T) {
	t.Parallel()

	t.Run("none", func(t *testing.T) {
		t.Parallel()
		o, err := parseOverrides("", 0, "")
		require.NoError(t, err)
		assert.Nil(t, o)
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()
		o, err := parseOverrides("0.5", 21000, "2000000000")
		require.NoError(t, err)
		require.NotNil(t, o)
		assert.Equal(t, big.NewInt(500000000000000000), o.Value)
		assert.Equal(t, uint64(21000), o.GasLimit)
		assert.Equal(t, big.NewInt(2000000000), o.GasPrice)
	})

	t.Run("gas only", func(t *testing.T) {
		t.Parallel()
		o, err := parseOverrides("", 90000, "")
		require.NoError(t, err)
		assert.Nil(t, o.Value)
		assert.Nil(t, o.GasPrice)
	})

	t.Run("bad value", func(t *testing.T) {
		t.Parallel()
		_, err := parseOverrides("lots", 0, "")
		require.ErrorIs(t, err, cerr.ErrInvalidAmount)
	})

	t.Run("bad gas price", func(t *testing.T) {
		t.Parallel()
		for _, price := range []string{"1.5", "-3", "0x10"} {
			_, err := parseOverrides("", 0, price)
			require.ErrorIs(t, err, cerr.ErrInvalidAmount, price)
		}
	})
}

func TestResolveTarget(t *testing.T) {
	cc, _, _ := newTestCommandContext(t, output.FormatText)
	registry, book, err := loadContracts(cc)
	require.NoError(t, err)
	svc := &Services{Registry: registry, Book: book}

	mainnet := uint64(1)
	st := supervisor.Status{ActiveNetworkID: &mainnet}

	t.Run("deployment", func(t *testing.T) {
		f := wethTransfer()
		kind, addr, method, args, err := resolveTarget(svc, st, &f)
		require.NoError(t, err)
		assert.Equal(t, contract.KindTestToken, kind)
		assert.Equal(t, wethAddr, addr)
		assert.Equal(t, "transfer", method.Name)
		require.Len(t, args, 2)
		assert.Equal(t, bob, args[0])
		assert.Equal(t, big.NewInt(5), args[1])
	})

	t.Run("explicit contract", func(t *testing.T) {
		f := &targetFlags{kind: contract.KindBPool, address: alice.Hex(), method: "getSwapFee"}
		kind, addr, method, args, err := resolveTarget(svc, st, f)
		require.NoError(t, err)
		assert.Equal(t, contract.KindBPool, kind)
		assert.Equal(t, alice, addr)
		assert.Equal(t, "getSwapFee", method.Name)
		assert.Empty(t, args)
	})

	t.Run("contract kind overrides deployment kind", func(t *testing.T) {
		f := &targetFlags{kind: contract.KindTestTokenBytes, deployment: "weth", method: "symbol"}
		kind, addr, _, _, err := resolveTarget(svc, st, f)
		require.NoError(t, err)
		assert.Equal(t, contract.KindTestTokenBytes, kind)
		assert.Equal(t, wethAddr, addr)
	})

	errorCases := []struct {
		name  string
		flags targetFlags
		st    supervisor.Status
		want  error
	}{
		{"no target", targetFlags{method: "transfer"}, st, cerr.ErrInvalidInput},
		{"address without kind", targetFlags{address: alice.Hex(), method: "transfer"}, st, cerr.ErrInvalidInput},
		{"bad address", targetFlags{kind: contract.KindTestToken, address: "0x123", method: "transfer"}, st, cerr.ErrInvalidAddress},
		{"unknown deployment", targetFlags{deployment: "wehth", method: "transfer"}, st, cerr.ErrNotFound},
		{"deployment without network", targetFlags{deployment: "weth", method: "transfer"}, supervisor.Status{}, cerr.ErrNoNetwork},
		{"unknown method", targetFlags{deployment: "weth", method: "transferAll"}, st, cerr.ErrUnknownMethod},
		{"bad argument", targetFlags{deployment: "weth", method: "transfer", args: []string{"bob", "5"}}, st, cerr.ErrInvalidArgument},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, _, err := resolveTarget(svc, tc.st, &tc.flags)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRunSend_Submits(t *testing.T) {
	cc, stdout, _ := newTestCommandContext(t, output.FormatText)
	wallet := adaptertest.New(adapter.KindInjected, 1, alice)
	_, fallback := bridgeFallback(1313161554)
	cc.WithServices(fakeServices(walletEnv(wallet), fallback))
	withSendFlags(t, wethTransfer(), false)

	require.NoError(t, runSend(testCommand(t), nil))

	sent := wallet.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, alice, sent[0].From)
	assert.Equal(t, wethAddr, sent[0].To)
	assert.NotEmpty(t, sent[0].Data)

	text := stdout.String()
	assert.Contains(t, text, common.BigToHash(big.NewInt(1)).Hex())
	assert.Contains(t, text, "pending")
	assert.Contains(t, text, "injected")
}

func TestRunSend_WithOverrides(t *testing.T) {
	cc, stdout, _ := newTestCommandContext(t, output.FormatText)
	wallet := adaptertest.New(adapter.KindInjected, 1, alice)
	cc.WithServices(fakeServices(walletEnv(wallet), nil))
	withSendFlags(t, wethTransfer(), false)
	sendGas, sendGasPrice = 70000, "3000000000"

	require.NoError(t, runSend(testCommand(t), nil))

	sent := wallet.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, uint64(70000), sent[0].GasLimit)
	assert.Equal(t, big.NewInt(3_000_000_000), sent[0].GasPrice)

	text := stdout.String()
	assert.Contains(t, text, "Gas limit")
	assert.Contains(t, text, "70000")
	assert.Contains(t, text, "3.00 Gwei")
	assert.NotContains(t, text, "Value")
}

func TestSendResult_RenderText(t *testing.T) {
	t.Parallel()

	res := SendResult{
		TxHash:  "0xabc",
		From:    alice.Hex(),
		To:      wethAddr.Hex(),
		Kind:    "TestToken",
		Method:  "deposit",
		Network: "kovan",
		Adapter: "bridge",
		Status:  "pending",
		Value:   "0.25 ETH",
	}

	var buf bytes.Buffer
	require.NoError(t, res.RenderText(&buf))
	assert.Contains(t, buf.String(), "(TestToken)")
	assert.Contains(t, buf.String(), "0.25 ETH")
	assert.NotContains(t, buf.String(), "Gas")
}

func TestRunSend_Wait(t *testing.T) {
	tests := []struct {
		name    string
		status  adapter.TxStatus
		want    string
		wantErr error
	}{
		{"succeeded", adapter.TxSucceeded, "succeeded", nil},
		{"reverted", adapter.TxReverted, "reverted", cerr.ErrSubmissionFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cc, stdout, stderr := newTestCommandContext(t, output.FormatJSON)
			wallet := adaptertest.New(adapter.KindInjected, 1, alice)
			// The fake hashes sends by sequence number.
			wallet.SetStatus(common.BigToHash(big.NewInt(1)), tc.status)
			cc.WithServices(fakeServices(walletEnv(wallet), nil))
			withSendFlags(t, wethTransfer(), true)

			err := runSend(testCommand(t), nil)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			var res SendResult
			require.NoError(t, json.Unmarshal([]byte(stdout.String()), &res))
			assert.Equal(t, tc.want, res.Status)
			assert.Equal(t, alice.Hex(), res.From)
			assert.Equal(t, "mainnet", res.Network)
			assert.Equal(t, tc.wantErr == nil, strings.Contains(stderr.String(), "✅"), "success note only for mined transactions")
		})
	}
}

func TestRunSend_Rejected(t *testing.T) {
	cc, stdout, _ := newTestCommandContext(t, output.FormatText)
	wallet := adaptertest.New(adapter.KindInjected, 1, alice)
	wallet.SendFunc = func(context.Context, adapter.TxRequest) (common.Hash, error) {
		return common.Hash{}, &rpc.Error{Code: rpc.CodeUserRejected, Message: "User denied transaction signature"}
	}
	cc.WithServices(fakeServices(walletEnv(wallet), nil))
	withSendFlags(t, wethTransfer(), false)

	err := runSend(testCommand(t), nil)
	require.ErrorIs(t, err, cerr.ErrSubmissionFailed)
	assert.Equal(t, cerr.ExitRejected, ExitCode(err))
	assert.Empty(t, stdout.String())
}

func TestRunSend_NoAccount(t *testing.T) {
	cc, _, _ := newTestCommandContext(t, output.FormatText)
	wallet := adaptertest.New(adapter.KindInjected, 1)
	cc.WithServices(fakeServices(walletEnv(wallet), nil))
	withSendFlags(t, wethTransfer(), false)

	require.ErrorIs(t, runSend(testCommand(t), nil), cerr.ErrNoAccount)
	assert.Empty(t, wallet.Sent())
}

func TestRunSend_NoConnection(t *testing.T) {
	cc, _, _ := newTestCommandContext(t, output.FormatText)
	cc.WithServices(fakeServices(adapter.StaticEnvironment{}, adaptertest.Connector(nil, errBridgeDown)))
	withSendFlags(t, wethTransfer(), false)

	err := runSend(testCommand(t), nil)
	require.ErrorIs(t, err, cerr.ErrFallbackConnectFailed)
	assert.Equal(t, cerr.ExitConnection, ExitCode(err))
}

func TestRunSend_BadOverridesBeforeConnecting(t *testing.T) {
	cc, _, _ := newTestCommandContext(t, output.FormatText)
	cc.WithServices(requireNoServices(t))
	withSendFlags(t, wethTransfer(), false)
	sendValue = "-"

	require.ErrorIs(t, runSend(testCommand(t), nil), cerr.ErrInvalidAmount)
}

func TestRunCall(t *testing.T) {
	cc, stdout, _ := newTestCommandContext(t, output.FormatText)

	registry, err := contract.NewRegistry()
	require.NoError(t, err)
	parsed, err := registry.Lookup(contract.KindTestToken)
	require.NoError(t, err)
	encoded, err := parsed.Methods["balanceOf"].Outputs.Pack(big.NewInt(42))
	require.NoError(t, err)

	bridge, fallback := bridgeFallback(1)
	bridge.CallFunc = func(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
		assert.Equal(t, wethAddr, *msg.To)
		assert.Equal(t, bridgeAcc, msg.From)
		return encoded, nil
	}
	cc.WithServices(fakeServices(adapter.StaticEnvironment{}, fallback))

	origTarget := callTarget
	t.Cleanup(func() { callTarget = origTarget })
	callTarget = targetFlags{deployment: "weth", method: "balanceOf", args: []string{alice.Hex()}}

	require.NoError(t, runCall(testCommand(t), nil))
	assert.Equal(t, "42\n", stdout.String())
}
