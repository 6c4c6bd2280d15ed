package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker_gateway/internal/directory"
	"tracker_gateway/internal/model"
)

func TestRegistryResolvesByUniqueIdThenBinding(t *testing.T) {
	lookup := directory.NewMemoryLookup(false)
	lookup.Seed("012345678901", "AL300")
	reg := NewRegistry(lookup, time.Minute)

	sess, ok := reg.Get("tcp", "1.2.3.4:9000", "012345678901")
	require.True(t, ok)
	assert.Equal(t, "AL300", sess.Model)

	// second call with no uniqueId resolves via the cached binding
	again, ok := reg.Get("tcp", "1.2.3.4:9000", "")
	require.True(t, ok)
	assert.Same(t, sess, again)
}

func TestRegistryUnknownDeviceWithoutAutoRegister(t *testing.T) {
	lookup := directory.NewMemoryLookup(false)
	reg := NewRegistry(lookup, time.Minute)

	_, ok := reg.Get("tcp", "1.2.3.4:9000", "unregistered")
	assert.False(t, ok)
}

func TestRegistryAutoRegister(t *testing.T) {
	lookup := directory.NewMemoryLookup(true)
	reg := NewRegistry(lookup, time.Minute)

	sess, ok := reg.Get("tcp", "1.2.3.4:9000", "new-device")
	require.True(t, ok)
	assert.NotZero(t, sess.DeviceId)
}

func TestSweepIdleRemovesStaleSessions(t *testing.T) {
	lookup := directory.NewMemoryLookup(false)
	lookup.Seed("imei-1", "")
	reg := NewRegistry(lookup, time.Minute)

	sess, ok := reg.Get("tcp", "1.1.1.1:1", "imei-1")
	require.True(t, ok)
	sess.Touch(nil, time.Now().Add(-2*time.Minute))

	removed := reg.SweepIdle(time.Now())
	assert.Equal(t, 1, removed)
}

func TestSessionTimezoneDefault(t *testing.T) {
	sess := &DeviceSession{Attributes: map[string]interface{}{}}
	loc := sess.Timezone()
	name, offset := time.Now().In(loc).Zone()
	_ = name
	assert.Equal(t, 8*3600, offset)
}

func TestGetLastLocationMarksOutdated(t *testing.T) {
	sess := &DeviceSession{Attributes: map[string]interface{}{}, DeviceId: 7}
	now := time.Now()
	assert.Nil(t, sess.GetLastLocation("huabao", now))

	pos := model.NewPosition("huabao", 7, now)
	require.NoError(t, pos.SetFixCoordinates(1.0, 2.0))
	sess.Touch(pos, now)

	last := sess.GetLastLocation("huabao", now)
	require.NotNil(t, last)
	assert.True(t, last.Outdated)
	assert.Equal(t, 1.0, last.Latitude)
}
