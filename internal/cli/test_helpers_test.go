package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/conduit/internal/adapter"
	"github.com/mrz1836/conduit/internal/adapter/adaptertest"
	"github.com/mrz1836/conduit/internal/config"
	"github.com/mrz1836/conduit/internal/dispatch"
	"github.com/mrz1836/conduit/internal/output"
	"github.com/mrz1836/conduit/internal/pending"
	"github.com/mrz1836/conduit/internal/supervisor"
)

var (
	alice     = common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	bob       = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bridgeAcc = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	wethAddr  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

// lockedBuffer is a bytes.Buffer safe for one writer goroutine and
// concurrent readers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testConfig returns defaults rooted in a temp home with fast polling.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.Defaults()
	c.Home = t.TempDir()
	c.Contracts.ABIDir = ""
	c.Bridge.KeystoreFile = ""
	c.Bridge.PrivateKeyEnv = ""
	c.Pending.PollInterval = 10 * time.Millisecond
	c.Logging.File = ""
	return c
}

// newTestCommandContext builds a context writing to buffers and installs
// it as the command context for the duration of the test.
func newTestCommandContext(t *testing.T, format output.Format) (*CommandContext, *lockedBuffer, *lockedBuffer) {
	t.Helper()
	stdout, stderr := &lockedBuffer{}, &lockedBuffer{}
	cc := NewCommandContext(
		testConfig(t),
		config.NullLogger(),
		output.NewFormatter(format, stdout),
		output.NewNotifier(stderr, false),
	)

	orig := commandContextFn
	t.Cleanup(func() { commandContextFn = orig })
	commandContextFn = func(*cobra.Command) *CommandContext { return cc }

	return cc, stdout, stderr
}

// testCommand returns a command carrying a background context.
func testCommand(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

// walletEnv advertises fake as the injected wallet.
func walletEnv(fake *adaptertest.Fake) adapter.Environment {
	return adapter.StaticEnvironment{Connector: adaptertest.Connector(fake, nil)}
}

// fakeServices wires the real supervisor and dispatcher over scripted
// adapters.
func fakeServices(env adapter.Environment, fallback adapter.Connector) ServicesFactory {
	return func(_ context.Context, cc *CommandContext, _ SignerMode) (*Services, error) {
		registry, book, err := loadContracts(cc)
		if err != nil {
			return nil, err
		}
		tracker := pending.NewTracker()
		sup := supervisor.New(cc.Config.Network.TargetChainID, env, fallback,
			supervisor.WithLogger(cc.Logger),
			supervisor.WithPending(tracker, pending.NewChecker(tracker, cc.Logger)),
		)
		return &Services{
			Supervisor: sup,
			Dispatcher: dispatch.New(sup, registry, tracker, cc.Logger),
			Registry:   registry,
			Book:       book,
			Tracker:    tracker,
		}, nil
	}
}

// bridgeFallback returns a connector for a fresh fake bridge on network.
func bridgeFallback(network uint64) (*adaptertest.Fake, adapter.Connector) {
	fake := adaptertest.New(adapter.KindBridge, network, bridgeAcc)
	return fake, adaptertest.Connector(fake, nil)
}

// withMockPrompts replaces prompt functions for testing and restores on cleanup.
func withMockPrompts(t *testing.T, password []byte, interactive bool) {
	t.Helper()
	origPW := promptPasswordFn
	origInteractive := isInteractiveFn
	t.Cleanup(func() {
		promptPasswordFn = origPW
		isInteractiveFn = origInteractive
	})
	promptPasswordFn = func(_ string) ([]byte, error) {
		cp := make([]byte, len(password))
		copy(cp, password)
		return cp, nil
	}
	isInteractiveFn = func() bool { return interactive }
}

func requireNoServices(t *testing.T) ServicesFactory {
	t.Helper()
	return func(context.Context, *CommandContext, SignerMode) (*Services, error) {
		require.FailNow(t, "services must not be built")
		return nil, nil //nolint:nilnil // unreachable
	}
}
