package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBCD(t *testing.T) {
	s, err := DecodeBCD([]byte{0x12, 0x34})
	require.NoError(t, err)
	assert.Equal(t, "1234", s)
}

func TestDecodeBCDInvalidDigit(t *testing.T) {
	_, err := DecodeBCD([]byte{0xFA})
	assert.Error(t, err)
}

func TestEncodeDecodeBCDRoundTrip(t *testing.T) {
	encoded := EncodeBCD("240115")
	decoded, err := DecodeBCD(encoded)
	require.NoError(t, err)
	assert.Equal(t, "240115", decoded)
}

func TestDecodeBCDDateTime(t *testing.T) {
	data := EncodeBCD("240115120000")
	ts, err := DecodeBCDDateTime(data, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2024, ts.Year())
	assert.Equal(t, time.January, ts.Month())
	assert.Equal(t, 15, ts.Day())
	assert.Equal(t, 12, ts.Hour())
}

func TestXorChecksum(t *testing.T) {
	assert.Equal(t, byte(0x00), XorChecksum([]byte{0x01, 0x01}))
	assert.Equal(t, byte(0x07), XorChecksum([]byte{0x01, 0x02, 0x04}))
}

func TestLuhnCheckDigit(t *testing.T) {
	// IMEI 490154203237518 has Luhn check digit 8 over the first 14 digits
	digit := LuhnCheckDigit("49015420323751")
	assert.Equal(t, byte(8), digit)
}

func TestSignedMagnitude16(t *testing.T) {
	assert.Equal(t, 10, SignedMagnitude16(10))
	assert.Equal(t, -10, SignedMagnitude16(0x8000|10))
}
