package eth

import (
	"fmt"
	"math/big"
)

// gasBufferPercent is added on top of node gas estimates.
const gasBufferPercent = 20

// BufferedGasLimit pads a node gas estimate so small state changes between
// estimation and inclusion do not run the transaction out of gas.
func BufferedGasLimit(estimate uint64) uint64 {
	return estimate + estimate*gasBufferPercent/100
}

// FormatGasPrice formats a gas price in wei to a human-readable Gwei string.
func FormatGasPrice(weiPrice *big.Int) string {
	if weiPrice == nil {
		return "0 Gwei"
	}

	// Convert wei to Gwei (1 Gwei = 10^9 wei)
	gwei := new(big.Float).SetInt(weiPrice)
	divisor := new(big.Float).SetInt64(1_000_000_000)
	gwei.Quo(gwei, divisor)

	return fmt.Sprintf("%.2f Gwei", gwei)
}
