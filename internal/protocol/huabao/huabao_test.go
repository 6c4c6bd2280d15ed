package huabao

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker_gateway/internal/directory"
	"tracker_gateway/internal/model"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
)

func hb(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestFrameDecoderUnescapesRoundTrip(t *testing.T) {
	fd := NewFrameDecoder()
	input := hb("7E020000050102030405" + "7D01" + "06" + "7D02" + "07" + "7E")
	frames, err := fd.AddData(input)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, hb("020000050102030405" + "7D" + "06" + "7E" + "07"), frames[0].Body)
}

func TestFrameDecoderWaitsForMoreData(t *testing.T) {
	fd := NewFrameDecoder()
	frames, err := fd.AddData(hb("7E0200"))
	require.NoError(t, err)
	assert.Len(t, frames, 0)
}

func newRegistry() (*session.Registry, *directory.MemoryLookup) {
	lookup := directory.NewMemoryLookup(true)
	return session.NewRegistry(lookup, 0), lookup
}

func buildFrame(t *testing.T, msgType uint16, idBcd string, index uint16, body []byte) protocol.Frame {
	t.Helper()
	idBytes := mustEncodeBCD(idBcd)
	buf := []byte{byte(msgType >> 8), byte(msgType), 0x00, 0x00}
	buf = append(buf, idBytes...)
	buf = append(buf, byte(index>>8), byte(index))
	buf = append(buf, body...)
	checksum := byte(0)
	for _, b := range buf {
		checksum ^= b
	}
	return protocol.Frame{Body: append(append([]byte{}, buf...), checksum)}
}

func mustEncodeBCD(digits string) []byte {
	out := make([]byte, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		out[i/2] = (digits[i]-'0')<<4 | (digits[i+1] - '0')
	}
	return out
}

func TestRegisterProducesRegisterResponse(t *testing.T) {
	reg, _ := newRegistry()
	sess, ok := reg.Get("tcp", "1.1.1.1:1", "012345678901")
	require.True(t, ok)

	d := NewDecoder(false)
	frame := buildFrame(t, MsgTerminalRegister, "012345678901", 1, nil)

	result, err := d.Decode(sess, frame)
	require.NoError(t, err)
	assert.Empty(t, result.Positions)
	require.Len(t, result.Responses, 1)

	resp := result.Responses[0]
	assert.Equal(t, byte(0x7E), resp[0])
	assert.Equal(t, byte(MsgTerminalRegisterResponse>>8), resp[1])
	assert.Equal(t, byte(MsgTerminalRegisterResponse), resp[2])
}

func TestLocationReportOutsideChina(t *testing.T) {
	reg, _ := newRegistry()
	sess, ok := reg.Get("tcp", "1.1.1.1:1", "012345678901")
	require.True(t, ok)

	d := NewDecoder(false)

	body := make([]byte, 0, 28)
	body = append(body, 0x00, 0x00, 0x00, 0xA0) // alarm: bits 5,7 -> gpsAntennaCut, lowBattery
	body = append(body, 0x00, 0x00, 0x00, 0x07) // status: bits 0,1,2 => ignition, valid, lat-negative
	body = append(body, 0x01, 0x4F, 0xB1, 0x80) // lat raw = 22000000
	body = append(body, 0x06, 0xCB, 0x80, 0x80) // lon raw = 114000000
	body = append(body, 0x00, 0x32) // altitude = 50
	body = append(body, 0x00, 0x64) // speed raw = 100 (10.0 km/h)
	body = append(body, 0x00, 0x5A) // course = 90
	body = append(body, mustEncodeBCD("240115120000")...)

	frame := buildFrame(t, MsgLocationReport, "012345678901", 1, body)
	result, err := d.Decode(sess, frame)
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)

	pos := result.Positions[0]
	assert.InDelta(t, -22.0, pos.Latitude, 1e-9)
	assert.InDelta(t, 114.0, pos.Longitude, 1e-9)
	assert.Equal(t, 50.0, pos.Altitude)
	assert.InDelta(t, 10.0/1.852, pos.Speed, 1e-9)
	assert.Equal(t, 90.0, pos.Course)
	assert.True(t, pos.Valid)
	assert.Equal(t, true, pos.Attributes["ignition"])
	assert.Equal(t, "gpsAntennaCut,lowBattery", pos.Attributes["alarm"])

	require.Len(t, result.Responses, 1)
	assert.Equal(t, byte(MsgGeneralResponse>>8), result.Responses[0][1])
}

func TestLocationReportRejectsBadChecksum(t *testing.T) {
	reg, _ := newRegistry()
	sess, ok := reg.Get("tcp", "1.1.1.1:1", "012345678901")
	require.True(t, ok)

	d := NewDecoder(false)
	frame := buildFrame(t, MsgLocationReport, "012345678901", 1, nil)
	frame.Body[len(frame.Body)-1] ^= 0xFF

	_, err := d.Decode(sess, frame)
	assert.ErrorIs(t, err, protocol.ErrBadChecksum)
}

func TestLocationBatch0704ProducesOrderedPositions(t *testing.T) {
	reg, _ := newRegistry()
	sess, ok := reg.Get("tcp", "1.1.1.1:1", "012345678901")
	require.True(t, ok)

	d := NewDecoder(false)

	loc := func(lat, lon float64) []byte {
		b := make([]byte, 28)
		latRaw := uint32(lat * 1e6)
		lonRaw := uint32(lon * 1e6)
		b[3] = 0x00
		b[7] = 0x02 // valid bit
		b[8] = byte(latRaw >> 24)
		b[9] = byte(latRaw >> 16)
		b[10] = byte(latRaw >> 8)
		b[11] = byte(latRaw)
		b[12] = byte(lonRaw >> 24)
		b[13] = byte(lonRaw >> 16)
		b[14] = byte(lonRaw >> 8)
		b[15] = byte(lonRaw)
		copy(b[22:28], mustEncodeBCD("240115120000"))
		return b
	}

	slice1 := loc(1.0, 2.0)
	slice2 := loc(3.0, 4.0)

	body := []byte{0x00, 0x02, 0x00}
	body = append(body, byte(len(slice1)>>8), byte(len(slice1)))
	body = append(body, slice1...)
	body = append(body, byte(len(slice2)>>8), byte(len(slice2)))
	body = append(body, slice2...)

	frame := buildFrame(t, MsgLocationBatch, "012345678901", 1, body)
	result, err := d.Decode(sess, frame)
	require.NoError(t, err)
	require.Len(t, result.Positions, 2)
	assert.InDelta(t, 1.0, result.Positions[0].Latitude, 1e-6)
	assert.InDelta(t, 3.0, result.Positions[1].Latitude, 1e-6)
}

func TestEngineStopEncodeDefaultModel(t *testing.T) {
	reg, _ := newRegistry()
	sess, ok := reg.Get("tcp", "1.1.1.1:1", "012345678901")
	require.True(t, ok)

	enc := NewEncoder()
	out, err := enc.Encode(sess, model.Command{DeviceId: sess.DeviceId, Type: model.CommandEngineStop})
	require.NoError(t, err)

	assert.Equal(t, hb("7E850000010123456789010000F0"), out[:len(out)-2])
}

func TestUnknownTlvIsSkippedSafely(t *testing.T) {
	pos := model.NewPosition("huabao", 1, time.Now())
	// unknown tlv id 0xD0 with length 3, followed by a known tlv (satellites)
	data := []byte{0xD0, 0x03, 0x01, 0x02, 0x03, tlvSatellites, 0x01, 0x09}
	decodeLocationTlvs(pos, data)
	assert.Equal(t, 9, pos.Attributes["satellites"])
}
