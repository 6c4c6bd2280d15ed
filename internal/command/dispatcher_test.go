package command

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker_gateway/internal/model"
	"tracker_gateway/internal/session"
)

type fakeEncoder struct {
	out []byte
	err error
}

func (f *fakeEncoder) Encode(sess *session.DeviceSession, cmd model.Command) ([]byte, error) {
	return f.out, f.err
}

func TestSendDeliversToRegisteredConnection(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	d := NewDispatcher()
	d.Register(1, &Connection{Conn: server, Session: &session.DeviceSession{DeviceId: 1}, Encoder: &fakeEncoder{out: []byte{0xAB, 0xCD}}})

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 2)
		n, _ := client.Read(buf)
		done <- buf[:n]
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result := <-d.Send(ctx, model.Command{DeviceId: 1, Type: model.CommandRebootDevice})
	require.NoError(t, result.Err)
	assert.Equal(t, []byte{0xAB, 0xCD}, result.Bytes)

	select {
	case got := <-done:
		assert.Equal(t, []byte{0xAB, 0xCD}, got)
	case <-time.After(time.Second):
		t.Fatal("expected bytes to be written to connection")
	}
}

func TestSendUnknownDeviceReturnsError(t *testing.T) {
	d := NewDispatcher()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result := <-d.Send(ctx, model.Command{DeviceId: 99, Type: model.CommandRebootDevice})
	assert.ErrorIs(t, result.Err, ErrDeviceNotConnected)
}

func TestUnregisterRemovesConnection(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	d := NewDispatcher()
	d.Register(1, &Connection{Conn: server, Session: &session.DeviceSession{DeviceId: 1}, Encoder: &fakeEncoder{out: []byte{0x01}}})
	d.Unregister(1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result := <-d.Send(ctx, model.Command{DeviceId: 1, Type: model.CommandRebootDevice})
	assert.ErrorIs(t, result.Err, ErrDeviceNotConnected)
}
