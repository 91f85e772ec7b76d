package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// TestPromptKeystorePassphrase_Interactive tests the passphrase comes from the prompt.
func TestPromptKeystorePassphrase_Interactive(t *testing.T) {
	withMockPrompts(t, []byte("hunter2"), true)

	var gotPrompt string
	inner := promptPasswordFn
	promptPasswordFn = func(prompt string) ([]byte, error) {
		gotPrompt = prompt
		return inner(prompt)
	}

	pass, err := promptKeystorePassphrase("/tmp/bridge.json")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pass)
	assert.Contains(t, gotPrompt, "/tmp/bridge.json")
}

// TestPromptKeystorePassphrase_NonInteractive tests a pipe never blocks on a prompt.
func TestPromptKeystorePassphrase_NonInteractive(t *testing.T) {
	withMockPrompts(t, []byte("unused"), false)
	promptPasswordFn = func(string) ([]byte, error) {
		require.FailNow(t, "prompt must not be shown")
		return nil, nil
	}

	_, err := promptKeystorePassphrase("/tmp/bridge.json")
	require.ErrorIs(t, err, cerr.ErrNoSigner)

	var ce *cerr.ConduitError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Suggestion, "CONDUIT_KEYSTORE_PASSPHRASE")
}

// TestPromptKeystorePassphrase_Error tests prompt errors are returned.
func TestPromptKeystorePassphrase_Error(t *testing.T) {
	withMockPrompts(t, nil, true)
	expectedErr := errors.New("terminal error") //nolint:err113 // test error
	promptPasswordFn = func(string) ([]byte, error) { return nil, expectedErr }

	_, err := promptKeystorePassphrase("/tmp/bridge.json")
	require.ErrorIs(t, err, expectedErr)
}

// TestPromptKeystorePassphrase_ZeroesBuffer tests the prompt buffer is wiped after use.
func TestPromptKeystorePassphrase_ZeroesBuffer(t *testing.T) {
	withMockPrompts(t, nil, true)
	var buf []byte
	promptPasswordFn = func(string) ([]byte, error) {
		buf = []byte("secret")
		return buf, nil
	}

	pass, err := promptKeystorePassphrase("/tmp/bridge.json")
	require.NoError(t, err)
	assert.Equal(t, "secret", pass)
	assert.Equal(t, make([]byte, 6), buf)
}

func TestZeroBytes(t *testing.T) {
	t.Parallel()

	b := []byte{1, 2, 3}
	zeroBytes(b)
	assert.Equal(t, []byte{0, 0, 0}, b)

	assert.NotPanics(t, func() { zeroBytes(nil) })
}
