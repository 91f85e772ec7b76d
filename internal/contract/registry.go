// Package contract resolves contract kinds to ABIs and binds them to a
// connection adapter so methods can be called or submitted by name.
package contract

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/ethereum/go-ethereum/accounts/abi"

	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// Built-in contract kinds.
const (
	KindBPool          = "BPool"
	KindBFactory       = "BFactory"
	KindTestToken      = "TestToken"
	KindExchangeProxy  = "ExchangeProxy"
	KindMulticall      = "Multicall"
	KindTestTokenBytes = "TestTokenBytes"
)

// MaxSuggestionDistance is the largest edit distance offered as a "did you mean".
const MaxSuggestionDistance = 3

// ErrNoABIField indicates a compiler artifact without an "abi" member.
var ErrNoABIField = errors.New("artifact has no abi field")

//go:embed abi/*.json
var builtinABIs embed.FS

// Registry maps contract kinds to parsed ABIs.
type Registry struct {
	mu   sync.RWMutex
	abis map[string]*abi.ABI
}

// NewRegistry returns a registry holding the built-in kinds.
func NewRegistry() (*Registry, error) {
	r := &Registry{abis: make(map[string]*abi.ABI)}

	entries, err := builtinABIs.ReadDir("abi")
	if err != nil {
		return nil, fmt.Errorf("reading built-in ABIs: %w", err)
	}
	for _, entry := range entries {
		data, err := builtinABIs.ReadFile("abi/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading built-in ABI %s: %w", entry.Name(), err)
		}
		if err := r.Register(kindFromFile(entry.Name()), data); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register parses data and stores it under kind, replacing any previous ABI.
// data is either a bare ABI array or a compiler artifact with an "abi" field.
func (r *Registry) Register(kind string, data []byte) error {
	parsed, err := parseABI(data)
	if err != nil {
		return cerr.WithDetails(cerr.WithCause(cerr.ErrInvalidInput, err), map[string]string{"kind": kind})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.abis[kind] = parsed
	return nil
}

// LoadDir registers every *.json file in dir, named after the file.
// A missing directory is not an error.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading ABI directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		// #nosec G304 -- files come from the configured ABI directory
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		if err := r.Register(kindFromFile(entry.Name()), data); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// Lookup returns the ABI for kind.
func (r *Registry) Lookup(kind string) (*abi.ABI, error) {
	r.mu.RLock()
	parsed, ok := r.abis[kind]
	r.mu.RUnlock()
	if ok {
		return parsed, nil
	}

	err := cerr.WithDetails(cerr.ErrUnknownContract, map[string]string{"kind": kind})
	if s := suggest(kind, r.Kinds()); s != "" {
		err = cerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", s))
	}
	return nil, err
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.abis))
	for k := range r.abis {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Method returns the named method of kind.
func (r *Registry) Method(kind, name string) (abi.Method, error) {
	parsed, err := r.Lookup(kind)
	if err != nil {
		return abi.Method{}, err
	}
	return lookupMethod(kind, parsed, name)
}

func lookupMethod(kind string, parsed *abi.ABI, name string) (abi.Method, error) {
	if m, ok := parsed.Methods[name]; ok {
		return m, nil
	}

	names := make([]string, 0, len(parsed.Methods))
	for n := range parsed.Methods {
		names = append(names, n)
	}
	sort.Strings(names)

	err := cerr.WithDetails(cerr.ErrUnknownMethod, map[string]string{"kind": kind, "method": name})
	if s := suggest(name, names); s != "" {
		err = cerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", s))
	}
	return abi.Method{}, err
}

func parseABI(data []byte) (*abi.ABI, error) {
	raw := bytes.TrimSpace(data)
	if len(raw) > 0 && raw[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return nil, fmt.Errorf("parsing artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return nil, ErrNoABIField
		}
		raw = artifact.ABI
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing ABI: %w", err)
	}
	return &parsed, nil
}

func kindFromFile(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// suggest returns the candidate closest to input, or "" when nothing is
// within MaxSuggestionDistance. Case differences alone always match.
func suggest(input string, candidates []string) string {
	minDist := math.MaxInt
	var best string

	lower := strings.ToLower(input)
	for _, c := range candidates {
		if strings.ToLower(c) == lower {
			return c
		}
		dist := levenshtein.ComputeDistance(lower, strings.ToLower(c))
		if dist < minDist {
			minDist = dist
			best = c
		}
	}

	if minDist <= MaxSuggestionDistance {
		return best
	}
	return ""
}
