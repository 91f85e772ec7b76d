package eth

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerr "github.com/mrz1836/conduit/pkg/errors"
)

const testAddress = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

func TestIsValidAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		address string
		valid   bool
	}{
		{testAddress, true},
		{"0x742d35cc6634c0532925a3b844bc454e4438f44e", true},
		{"742d35Cc6634C0532925a3b844Bc454e4438f44e", false},
		{"0x742d35Cc6634C0532925a3b844Bc454e4438f44", false},
		{"0xZZ2d35Cc6634C0532925a3b844Bc454e4438f44e", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, IsValidAddress(tt.address))
		})
	}
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	t.Run("checksummed", func(t *testing.T) {
		t.Parallel()
		addr, err := ParseAddress(testAddress)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(testAddress), addr)
	})

	t.Run("lowercase", func(t *testing.T) {
		t.Parallel()
		addr, err := ParseAddress("0x742d35cc6634c0532925a3b844bc454e4438f44e")
		require.NoError(t, err)
		assert.Equal(t, testAddress, addr.Hex())
	})

	t.Run("bad checksum", func(t *testing.T) {
		t.Parallel()
		_, err := ParseAddress("0x742D35Cc6634C0532925a3b844Bc454e4438f44e")
		require.ErrorIs(t, err, cerr.ErrInvalidAddress)

		var ce *cerr.ConduitError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, testAddress, ce.Details["expected"])
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		_, err := ParseAddress("not-an-address")
		require.ErrorIs(t, err, cerr.ErrInvalidAddress)
	})
}

func TestParseAddresses(t *testing.T) {
	t.Parallel()
	got := ParseAddresses([]string{testAddress, "garbage", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"})
	require.Len(t, got, 2)
	assert.Equal(t, testAddress, got[0].Hex())
	assert.Empty(t, ParseAddresses(nil))
}
