// Package eth holds EVM helpers shared by the connection adapters: address
// parsing, local transaction signing, nonce tracking and gas formatting.
package eth

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// IsValidAddress checks if the address is a valid Ethereum address format.
// This validates the format (40 hex chars with 0x prefix) but does not validate checksum.
func IsValidAddress(address string) bool {
	return len(address) == 42 && strings.HasPrefix(address, "0x") && common.IsHexAddress(address)
}

// ParseAddress validates an address and returns it.
// All lowercase and all uppercase addresses are accepted as non-checksummed;
// mixed-case addresses must carry a correct EIP-55 checksum.
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if !IsValidAddress(address) {
		return common.Address{}, cerr.WithDetails(cerr.ErrInvalidAddress, map[string]string{
			"address": address,
		})
	}

	addr := common.HexToAddress(address)
	hexPart := address[2:]
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		return addr, nil
	}

	if addr.Hex() != address {
		return common.Address{}, cerr.WithDetails(cerr.ErrInvalidAddress, map[string]string{
			"address":  address,
			"expected": addr.Hex(),
			"reason":   "checksum mismatch",
		})
	}

	return addr, nil
}

// ParseAddresses converts wallet-reported account strings, skipping malformed entries.
func ParseAddresses(raw []string) []common.Address {
	out := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		if common.IsHexAddress(s) {
			out = append(out, common.HexToAddress(s))
		}
	}
	return out
}
