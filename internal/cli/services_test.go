package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/conduit/internal/output"
	"github.com/mrz1836/conduit/internal/supervisor"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// devKeyHex is the first well-known development account, bob.
const devKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// writeKeystore stores the dev key encrypted with pass and returns its path.
func writeKeystore(t *testing.T, pass string) string {
	t.Helper()
	key, err := crypto.HexToECDSA(devKeyHex)
	require.NoError(t, err)

	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	account, err := ks.ImportECDSA(key, pass)
	require.NoError(t, err)
	return account.URL.Path
}

func TestLoadSigner_EnvKey(t *testing.T) {
	c := testConfig(t)
	c.Bridge.PrivateKeyEnv = "CONDUIT_TEST_BRIDGE_KEY"
	t.Setenv("CONDUIT_TEST_BRIDGE_KEY", "0x"+devKeyHex)

	s, err := loadSigner(c, SignerIfUnlocked)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, bob, s.Address())
}

func TestLoadSigner_BadEnvKey(t *testing.T) {
	c := testConfig(t)
	c.Bridge.PrivateKeyEnv = "CONDUIT_TEST_BRIDGE_KEY"
	t.Setenv("CONDUIT_TEST_BRIDGE_KEY", "not-a-key")

	_, err := loadSigner(c, SignerIfUnlocked)
	require.Error(t, err)
}

func TestLoadSigner_NoKeyMaterial(t *testing.T) {
	c := testConfig(t)

	s, err := loadSigner(c, SignerPrompt)
	require.NoError(t, err)
	assert.Nil(t, s)

	c.Bridge.KeystoreFile = filepath.Join(t.TempDir(), "missing.json")
	s, err = loadSigner(c, SignerPrompt)
	require.NoError(t, err)
	assert.Nil(t, s, "a missing keystore leaves the bridge read-only")
}

func TestLoadSigner_Keystore(t *testing.T) {
	path := writeKeystore(t, "hunter2")

	t.Run("locked without prompt", func(t *testing.T) {
		withMockPrompts(t, nil, true)
		promptPasswordFn = func(string) ([]byte, error) {
			require.FailNow(t, "status commands never prompt")
			return nil, nil
		}
		c := testConfig(t)
		c.Bridge.KeystoreFile = path

		s, err := loadSigner(c, SignerIfUnlocked)
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("passphrase from config", func(t *testing.T) {
		c := testConfig(t)
		c.Bridge.KeystoreFile = path
		c.Bridge.KeystorePassphrase = "hunter2"

		s, err := loadSigner(c, SignerIfUnlocked)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, bob, s.Address())
	})

	t.Run("prompted", func(t *testing.T) {
		withMockPrompts(t, []byte("hunter2"), true)
		c := testConfig(t)
		c.Bridge.KeystoreFile = path

		s, err := loadSigner(c, SignerPrompt)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, bob, s.Address())
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		withMockPrompts(t, []byte("hunter3"), true)
		c := testConfig(t)
		c.Bridge.KeystoreFile = path

		_, err := loadSigner(c, SignerPrompt)
		require.ErrorIs(t, err, cerr.ErrNoSigner)
	})

	t.Run("prompt without terminal", func(t *testing.T) {
		withMockPrompts(t, nil, false)
		c := testConfig(t)
		c.Bridge.KeystoreFile = path

		_, err := loadSigner(c, SignerPrompt)
		require.ErrorIs(t, err, cerr.ErrNoSigner)
	})
}

func TestNewServices(t *testing.T) {
	cc, _, _ := newTestCommandContext(t, output.FormatText)
	cc.Config.Network.TargetChainID = 42

	svc, err := newServices(context.Background(), cc, SignerIfUnlocked)
	require.NoError(t, err)
	require.NotNil(t, svc.Supervisor)
	require.NotNil(t, svc.Dispatcher)
	require.NotNil(t, svc.Tracker)

	st := svc.Supervisor.Snapshot()
	assert.Equal(t, supervisor.Uninitialized, st.State)
	assert.Equal(t, uint64(42), st.TargetNetworkID)
	assert.Contains(t, svc.Registry.Kinds(), "TestToken")

	require.NoError(t, svc.Close())
}

func TestNewServices_BadABIDir(t *testing.T) {
	cc, _, _ := newTestCommandContext(t, output.FormatText)
	dir := t.TempDir()
	cc.Config.Contracts.ABIDir = dir
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken.json"), []byte("{not json"), 0o600))

	_, err := newServices(context.Background(), cc, SignerIfUnlocked)
	require.Error(t, err)
}

func TestServicesClose_Nil(t *testing.T) {
	t.Parallel()

	var svc *Services
	assert.NoError(t, svc.Close())
	assert.NoError(t, (&Services{}).Close())
}
