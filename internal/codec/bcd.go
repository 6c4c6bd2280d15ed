// Package codec holds the small binary helpers (BCD, checksum, IMEI/Luhn,
// bit utilities, BCD date builder) shared by every binary protocol decoder.
package codec

import (
	"fmt"
	"time"
)

// DecodeBCD converts BCD-encoded bytes to a decimal string; each byte holds
// two decimal digits, high nibble first.
func DecodeBCD(data []byte) (string, error) {
	result := make([]byte, 0, len(data)*2)
	for i, b := range data {
		high := (b >> 4) & 0x0F
		low := b & 0x0F
		if high > 9 || low > 9 {
			return "", fmt.Errorf("codec: invalid BCD byte at offset %d: 0x%02X", i, b)
		}
		result = append(result, '0'+high, '0'+low)
	}
	return string(result), nil
}

// EncodeBCD converts a digit string into BCD bytes, padding with a
// trailing zero nibble if the string has odd length.
func EncodeBCD(digits string) []byte {
	if len(digits)%2 != 0 {
		digits += "0"
	}
	out := make([]byte, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		out[i/2] = (digits[i]-'0')<<4 | (digits[i+1] - '0')
	}
	return out
}

// DecodeBCDDateTime reads the 6-byte BCD yy MM dd HH mm ss field used by
// the location report head, interpreted in the supplied location.
func DecodeBCDDateTime(data []byte, loc *time.Location) (time.Time, error) {
	if len(data) != 6 {
		return time.Time{}, fmt.Errorf("codec: BCD datetime requires 6 bytes, got %d", len(data))
	}
	digits, err := DecodeBCD(data)
	if err != nil {
		return time.Time{}, err
	}
	year := 2000 + int(digits[0]-'0')*10 + int(digits[1]-'0')
	month := int(digits[2]-'0')*10 + int(digits[3]-'0')
	day := int(digits[4]-'0')*10 + int(digits[5]-'0')
	hour := int(digits[6]-'0')*10 + int(digits[7]-'0')
	minute := int(digits[8]-'0')*10 + int(digits[9]-'0')
	second := int(digits[10]-'0')*10 + int(digits[11]-'0')
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}

// EncodeBCDDateTime is the inverse of DecodeBCDDateTime, used by response
// builders that echo a server timestamp back to the device.
func EncodeBCDDateTime(t time.Time) []byte {
	digits := fmt.Sprintf("%02d%02d%02d%02d%02d%02d",
		t.Year()%100, int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	return EncodeBCD(digits)
}
