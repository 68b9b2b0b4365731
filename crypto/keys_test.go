package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	raw[0] = 0xab
	raw[AddressLength-1] = 0x01
	addr := MustNewAddress(FarmPrefix, raw)

	decoded, err := DecodeAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, FarmPrefix, decoded.Prefix())
	require.Equal(t, addr.Raw(), decoded.Raw())
	require.False(t, decoded.IsZero())
}

func TestParseAddressHex(t *testing.T) {
	addr, err := ParseAddress("0x00000000000000000000000000000000000000ff")
	require.NoError(t, err)
	require.Equal(t, byte(0xff), addr.Bytes()[AddressLength-1])
	require.Equal(t, FarmPrefix, addr.Prefix())

	_, err = ParseAddress("0x1234")
	require.Error(t, err)
}

func TestZeroAddress(t *testing.T) {
	require.True(t, Address{}.IsZero())
	require.Equal(t, "", Address{}.String())
	require.True(t, MustNewAddress(FarmPrefix, make([]byte, AddressLength)).IsZero())
}
