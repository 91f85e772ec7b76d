package eth

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceManager tracks the highest sent nonce per address to prevent
// nonce collisions when multiple transactions are sent in rapid succession
// (before the first is visible in the mempool).
type NonceManager struct {
	mu     sync.Mutex
	nonces map[common.Address]uint64 // address -> next nonce (one past the highest used)
}

// NewNonceManager creates a new NonceManager.
func NewNonceManager() *NonceManager {
	return &NonceManager{
		nonces: make(map[common.Address]uint64),
	}
}

// Next returns the next nonce to use for the given address.
// It takes the RPC-reported pending nonce and returns the higher of
// the RPC nonce and the locally tracked nonce. The local nonce is
// then incremented for the next call.
func (nm *NonceManager) Next(address common.Address, rpcNonce uint64) uint64 {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	local, exists := nm.nonces[address]

	// If RPC nonce is higher, the network has caught up or advanced past
	// our local tracking (e.g., transaction sent from another client).
	nonce := rpcNonce
	if exists && local > rpcNonce {
		nonce = local
	}

	nm.nonces[address] = nonce + 1

	return nonce
}

// Reset clears the local nonce tracking for an address.
// Used after a failed broadcast, when the reserved nonce was never consumed.
func (nm *NonceManager) Reset(address common.Address) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	delete(nm.nonces, address)
}
