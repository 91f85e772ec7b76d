package chain

import (
	"math/big"
	"strings"

	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// EtherDecimals is the number of decimals of the native token of every EVM network.
const EtherDecimals = 18

// ParseDecimalAmount parses a decimal amount string to big.Int with the given decimal places.
// For example, "1.5" with 18 decimals returns 1500000000000000000.
// Extra fractional digits beyond decimalPlaces are truncated.
func ParseDecimalAmount(amount string, decimalPlaces int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || strings.HasPrefix(amount, "-") {
		return nil, cerr.ErrInvalidAmount
	}

	intPart, decPart, _ := strings.Cut(amount, ".")
	if strings.Contains(decPart, ".") {
		return nil, cerr.ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}

	intVal, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, cerr.ErrInvalidAmount
	}

	multiplier := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimalPlaces)), nil)
	result := new(big.Int).Mul(intVal, multiplier)

	if decPart == "" {
		return result, nil
	}
	for _, c := range decPart {
		if c < '0' || c > '9' {
			return nil, cerr.ErrInvalidAmount
		}
	}
	if len(decPart) < decimalPlaces {
		decPart += strings.Repeat("0", decimalPlaces-len(decPart))
	}
	decVal, _ := new(big.Int).SetString(decPart[:decimalPlaces], 10)

	return result.Add(result, decVal), nil
}

// ParseEther parses an ether amount ("0.25") into wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseDecimalAmount(amount, EtherDecimals)
}

// FormatDecimalAmount converts a big.Int to a human-readable string with the given decimal places.
// Trailing zeros after the decimal point are removed.
// For example, 1500000000000000000 with 18 decimals returns "1.5".
func FormatDecimalAmount(amount *big.Int, decimalPlaces int) string {
	if amount == nil {
		return "0"
	}

	str := amount.String()
	if len(str) <= decimalPlaces {
		str = strings.Repeat("0", decimalPlaces-len(str)+1) + str
	}

	decimalPos := len(str) - decimalPlaces
	whole, frac := str[:decimalPos], strings.TrimRight(str[decimalPos:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// FormatEther formats a wei amount as ether.
func FormatEther(wei *big.Int) string {
	return FormatDecimalAmount(wei, EtherDecimals)
}
