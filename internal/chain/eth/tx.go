package eth

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// TxParams contains the fields of a locally built legacy transaction.
type TxParams struct {
	Nonce    uint64
	To       common.Address
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Data     []byte
}

// BuildTransaction creates an unsigned legacy transaction from parameters.
func BuildTransaction(params TxParams) *types.Transaction {
	to := params.To
	value := params.Value
	if value == nil {
		value = new(big.Int)
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    params.Nonce,
		To:       &to,
		Value:    value,
		Gas:      params.GasLimit,
		GasPrice: params.GasPrice,
		Data:     params.Data,
	})
}

// SignTransaction signs a transaction for the given chain.
func SignTransaction(tx *types.Transaction, key *ecdsa.PrivateKey, chainID *big.Int) (*types.Transaction, error) {
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signedTx, nil
}

// DeriveAddress derives the Ethereum address of a private key.
func DeriveAddress(key *ecdsa.PrivateKey) (common.Address, error) {
	publicKeyECDSA, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return common.Address{}, cerr.ErrNoSigner
	}
	return crypto.PubkeyToAddress(*publicKeyECDSA), nil
}

// ParsePrivateKey parses a hex private key with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if len(hexKey) > 1 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, cerr.WithCause(cerr.ErrNoSigner, fmt.Errorf("parsing private key: %w", err))
	}
	return key, nil
}
