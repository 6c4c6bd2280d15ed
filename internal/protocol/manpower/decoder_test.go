package manpower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker_gateway/internal/directory"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
)

func TestDecodeManpowerRecord(t *testing.T) {
	lookup := directory.NewMemoryLookup(true)
	reg := session.NewRegistry(lookup, 0)
	sess, ok := reg.Get("tcp", "1.1.1.1:1", "012345678901234")
	require.True(t, ok)

	line := "simei:012345678901234,1,240115120000,A,22.500000,N,114.250000,E,15.5"
	d := NewDecoder()

	result, err := d.Decode(sess, protocol.Frame{Body: []byte(line)})
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)

	pos := result.Positions[0]
	assert.True(t, pos.Valid)
	assert.InDelta(t, 22.5, pos.LatitudeWgs84, 1e-6)
	assert.InDelta(t, 114.25, pos.LongitudeWgs84, 1e-6)
	assert.Equal(t, 15.5, pos.Speed)
}
