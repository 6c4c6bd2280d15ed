// Package command implements §6's command delivery surface:
// sendCommand(Command) -> future, generalized from the teacher's
// ControlController.activeConnections map (one map of IMEI->net.Conn,
// one protocol) to any connection-bearing transport and any protocol
// implementing protocol.ProtocolEncoder.
package command

import (
	"context"
	"errors"
	"net"
	"sync"

	"tracker_gateway/internal/model"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
)

// ErrDeviceNotConnected is returned when no live connection is registered
// for the command's target device.
var ErrDeviceNotConnected = errors.New("command: device not connected")

// Connection is the minimal capability the dispatcher needs from a live
// transport connection: somewhere to write encoded command bytes, and the
// session whose ProtocolEncoder produces them.
type Connection struct {
	Conn    net.Conn
	Session *session.DeviceSession
	Encoder protocol.ProtocolEncoder
}

// Dispatcher tracks one live Connection per device id and turns abstract
// Commands into wire bytes written to the owning socket.
type Dispatcher struct {
	mu    sync.Mutex
	byDev map[uint]*Connection
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{byDev: make(map[uint]*Connection)}
}

// Register associates a device id with its live connection; called once a
// connection's session has been resolved.
func (d *Dispatcher) Register(deviceId uint, conn *Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byDev[deviceId] = conn
}

// Unregister drops a device's connection on disconnect.
func (d *Dispatcher) Unregister(deviceId uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byDev, deviceId)
}

// Result is the outcome of a dispatched command, returned through the
// future channel Send hands back.
type Result struct {
	Bytes []byte
	Err   error
}

// Send implements sendCommand(Command) -> future: it looks up the owning
// connection, invokes its encoder, writes the bytes, and reports the
// outcome on a channel the caller can select on or block on.
func (d *Dispatcher) Send(ctx context.Context, cmd model.Command) <-chan Result {
	out := make(chan Result, 1)

	d.mu.Lock()
	conn, ok := d.byDev[cmd.DeviceId]
	d.mu.Unlock()

	if !ok {
		out <- Result{Err: ErrDeviceNotConnected}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		bytes, err := conn.Encoder.Encode(conn.Session, cmd)
		if err != nil {
			out <- Result{Err: err}
			return
		}
		if _, err := conn.Conn.Write(bytes); err != nil {
			out <- Result{Err: err}
			return
		}
		select {
		case <-ctx.Done():
		default:
		}
		out <- Result{Bytes: bytes}
	}()

	return out
}
