// Package chain provides network identity and shared transport utilities.
package chain

import (
	"strconv"
	"strings"
)

// Well-known network ids.
const (
	Mainnet       uint64 = 1
	Kovan         uint64 = 42
	Sepolia       uint64 = 11155111
	Dev           uint64 = 1337
	AuroraMainnet uint64 = 1313161554
	AuroraTestnet uint64 = 1313161555
	AuroraBetanet uint64 = 1313161556
)

// Network describes a known EVM network.
type Network struct {
	ID   uint64 `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	// Bridged is true for networks reached through a protocol bridge
	// (an EVM runtime hosted by another chain).
	Bridged bool `json:"bridged" yaml:"bridged"`
}

//nolint:gochecknoglobals // Static network table
var knownNetworks = []Network{
	{ID: Mainnet, Name: "mainnet"},
	{ID: Kovan, Name: "kovan"},
	{ID: Sepolia, Name: "sepolia"},
	{ID: Dev, Name: "dev"},
	{ID: AuroraMainnet, Name: "aurora", Bridged: true},
	{ID: AuroraTestnet, Name: "aurora-testnet", Bridged: true},
	{ID: AuroraBetanet, Name: "betanet", Bridged: true},
}

// Networks returns all known networks.
func Networks() []Network {
	out := make([]Network, len(knownNetworks))
	copy(out, knownNetworks)
	return out
}

// LookupNetwork returns the network with the given id.
func LookupNetwork(id uint64) (Network, bool) {
	for _, n := range knownNetworks {
		if n.ID == id {
			return n, true
		}
	}
	return Network{}, false
}

// NetworkName returns the name of a network id, or the decimal id when unknown.
func NetworkName(id uint64) string {
	if n, ok := LookupNetwork(id); ok {
		return n.Name
	}
	return strconv.FormatUint(id, 10)
}

// ParseNetwork parses a network name or decimal/hex id.
func ParseNetwork(s string) (uint64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	for _, n := range knownNetworks {
		if n.Name == s {
			return n.ID, true
		}
	}
	if strings.HasPrefix(s, "0x") {
		id, err := strconv.ParseUint(s[2:], 16, 64)
		return id, err == nil && id > 0
	}
	id, err := strconv.ParseUint(s, 10, 64)
	return id, err == nil && id > 0
}
