package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"

	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// Prompt seams, replaced in tests.
//
//nolint:gochecknoglobals // Test seams
var (
	promptPasswordFn = promptPassword
	isInteractiveFn  = isInteractive
)

// promptPassword prompts on stderr and reads a line without echo.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	password, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // G115: Fd() fits in int
	outln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

// isInteractive reports whether stdin is a terminal.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec // G115: Fd() fits in int
}

// promptKeystorePassphrase asks for the bridge keystore passphrase.
func promptKeystorePassphrase(path string) (string, error) {
	if !isInteractiveFn() {
		return "", cerr.WithSuggestion(cerr.ErrNoSigner,
			"set CONDUIT_KEYSTORE_PASSPHRASE to unlock "+path+" non-interactively")
	}

	pw, err := promptPasswordFn(fmt.Sprintf("Passphrase for %s: ", path))
	if err != nil {
		return "", err
	}
	defer zeroBytes(pw)
	return string(pw), nil
}

// zeroBytes overwrites b with zeros.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
