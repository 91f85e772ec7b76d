package adapter

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/conduit/internal/chain/eth"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// Signer is a locally held key used by the bridge adapter.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner wraps a private key.
func NewSigner(key *ecdsa.PrivateKey) (*Signer, error) {
	if key == nil {
		return nil, cerr.ErrNoSigner
	}
	addr, err := eth.DeriveAddress(key)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key, address: addr}, nil
}

// LoadKeystoreSigner decrypts a go-ethereum keystore file.
func LoadKeystoreSigner(path, passphrase string) (*Signer, error) {
	// #nosec G304 -- keystore path comes from validated config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerr.WithCause(cerr.ErrNoSigner, fmt.Errorf("reading keystore: %w", err))
	}

	key, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, cerr.WithCause(cerr.ErrNoSigner, fmt.Errorf("decrypting keystore: %w", err))
	}

	return &Signer{key: key.PrivateKey, address: key.Address}, nil
}

// HexKeySigner parses a hex private key.
func HexKeySigner(hexKey string) (*Signer, error) {
	key, err := eth.ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	return NewSigner(key)
}

// Address returns the signer's account.
func (s *Signer) Address() common.Address {
	return s.address
}
