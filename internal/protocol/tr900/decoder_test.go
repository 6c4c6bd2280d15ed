package tr900

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker_gateway/internal/directory"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
)

func TestDecodeTr900Record(t *testing.T) {
	lookup := directory.NewMemoryLookup(true)
	reg := session.NewRegistry(lookup, 0)
	sess, ok := reg.Get("tcp", "1.1.1.1:1", "tr900-device")
	require.True(t, ok)

	line := "tr900-device,60,1,240115,120000,E11400.000000,N2200.000000,0,10.0,90,25,1,512-80,0,1,0"
	d := NewDecoder()

	result, err := d.Decode(sess, protocol.Frame{Body: []byte(line)})
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)

	pos := result.Positions[0]
	assert.True(t, pos.Valid)
	assert.InDelta(t, 22.0, pos.LatitudeWgs84, 1e-6)
	assert.InDelta(t, 114.0, pos.LongitudeWgs84, 1e-6)
	assert.Equal(t, 10.0, pos.Speed)
}

func TestDecodeTr900RejectsMalformed(t *testing.T) {
	lookup := directory.NewMemoryLookup(true)
	reg := session.NewRegistry(lookup, 0)
	sess, _ := reg.Get("tcp", "1.1.1.1:1", "tr900-device")

	d := NewDecoder()
	_, err := d.Decode(sess, protocol.Frame{Body: []byte("garbage")})
	assert.Error(t, err)
}
