package owntracks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker_gateway/internal/directory"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
)

func TestDecodeOwnTracksLocation(t *testing.T) {
	lookup := directory.NewMemoryLookup(true)
	reg := session.NewRegistry(lookup, 0)
	sess, ok := reg.Get("http", "AB", "AB")
	require.True(t, ok)

	body := `{"_type":"location","tid":"AB","tst":1700000000,"lat":50.0,"lon":10.0,"vel":72,"batt":85,"t":"s"}`
	d := NewDecoder()

	result, err := d.Decode(sess, protocol.Frame{Body: []byte(body)})
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)

	pos := result.Positions[0]
	assert.True(t, pos.Valid)
	assert.Equal(t, 50.0, pos.Latitude)
	assert.Equal(t, 10.0, pos.Longitude)
	assert.InDelta(t, 72.0/1.852, pos.Speed, 1e-9)
	assert.Equal(t, 85.0, pos.Attributes["batteryLevel"])
	assert.Equal(t, "s", pos.Attributes["event"])
	assert.Equal(t, "overspeed", pos.Attributes["alarm"])
}

func TestDecodeOwnTracksIgnoresNonLocation(t *testing.T) {
	lookup := directory.NewMemoryLookup(true)
	reg := session.NewRegistry(lookup, 0)
	sess, _ := reg.Get("http", "AB", "AB")

	d := NewDecoder()
	_, err := d.Decode(sess, protocol.Frame{Body: []byte(`{"_type":"lwt"}`)})
	assert.Error(t, err)
}
