// Package tcp implements the goroutine-per-connection TCP transport
// listener (§6 "TCP server per protocol on a configured port"), adapted
// from the teacher's GT06-specific internal/tcp/server.go into a
// protocol-agnostic connection loop that any FrameDecoder/ProtocolDecoder/
// ProtocolEncoder triple can plug into.
package tcp

import (
	"errors"
	"io"
	"net"
	"time"

	"tracker_gateway/internal/command"
	"tracker_gateway/internal/downstream"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
	"tracker_gateway/pkg/colors"
)

type alternativeAware interface {
	Alternative() bool
}

type alternativeSetter interface {
	SetAlternative(bool)
}

// Server runs one TCP listener for one wire protocol.
type Server struct {
	name     string
	port     string
	listener net.Listener

	newFrameDecoder    func() protocol.FrameDecoder
	newProtocolDecoder func() protocol.ProtocolDecoder
	encoder            protocol.ProtocolEncoder

	registry    *session.Registry
	dispatcher  *command.Dispatcher
	pipeline    downstream.Pipeline
	idleTimeout time.Duration
}

// NewServer creates a TCP server for one protocol. encoder may be nil for
// protocols the gateway never sends commands to.
func NewServer(
	name, port string,
	newFrameDecoder func() protocol.FrameDecoder,
	newProtocolDecoder func() protocol.ProtocolDecoder,
	encoder protocol.ProtocolEncoder,
	registry *session.Registry,
	dispatcher *command.Dispatcher,
	pipeline downstream.Pipeline,
	idleTimeout time.Duration,
) *Server {
	return &Server{
		name:               name,
		port:               port,
		newFrameDecoder:    newFrameDecoder,
		newProtocolDecoder: newProtocolDecoder,
		encoder:            encoder,
		registry:           registry,
		dispatcher:         dispatcher,
		pipeline:           pipeline,
		idleTimeout:        idleTimeout,
	}
}

// Start listens and accepts connections until the listener is closed.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	s.listener = listener

	colors.PrintServer("📡", "%s TCP server listening on port %s", s.name, s.port)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			colors.PrintError("%s: accept error: %v", s.name, err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	colors.PrintConnection("📱", "%s device connected: %s", s.name, remoteAddr)

	frameDecoder := s.newFrameDecoder()
	protoDecoder := s.newProtocolDecoder()

	var sess *session.DeviceSession
	var deviceId uint
	var haveDevice bool
	var checksumLogged bool

	defer func() {
		conn.Close()
		s.registry.Unbind(s.name, remoteAddr)
		if haveDevice {
			s.dispatcher.Unregister(deviceId)
		}
		colors.PrintConnection("📴", "%s device disconnected: %s", s.name, remoteAddr)
	}()

	buffer := make([]byte, 2048)
	for {
		if s.idleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}

		n, err := conn.Read(buffer)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				colors.PrintWarning("%s: read error from %s: %v", s.name, remoteAddr, err)
			}
			return
		}
		if n == 0 {
			continue
		}

		frames, err := frameDecoder.AddData(buffer[:n])
		if err != nil {
			colors.PrintError("%s: frame error from %s: %v", s.name, remoteAddr, err)
			continue
		}

		if setter, ok := protoDecoder.(alternativeSetter); ok {
			if aware, ok := frameDecoder.(alternativeAware); ok {
				setter.SetAlternative(aware.Alternative())
			}
		}

		for _, frame := range frames {
			nextSess, ok := s.resolveSession(protoDecoder, remoteAddr, frame)
			if !ok {
				colors.PrintWarning("%s: dropping message from unidentified device %s", s.name, remoteAddr)
				continue
			}
			if sess == nil || sess.DeviceId != nextSess.DeviceId {
				sess = nextSess
				deviceId = sess.DeviceId
				haveDevice = true
				if s.encoder != nil {
					s.dispatcher.Register(deviceId, &command.Connection{
						Conn:    conn,
						Session: sess,
						Encoder: s.encoder,
					})
				}
			}

			result, err := protoDecoder.Decode(sess, frame)
			if err != nil {
				if errors.Is(err, protocol.ErrBadChecksum) {
					if !checksumLogged {
						colors.PrintWarning("%s: bad checksum from %s", s.name, remoteAddr)
						checksumLogged = true
					}
				} else if errors.Is(err, protocol.ErrUnknownMessageType) {
					colors.PrintDebug("%s: unknown message type from %s", s.name, remoteAddr)
				} else {
					colors.PrintError("%s: decode error from %s: %v", s.name, remoteAddr, err)
				}
				continue
			}

			for _, resp := range result.Responses {
				if _, err := conn.Write(resp); err != nil {
					colors.PrintError("%s: write error to %s: %v", s.name, remoteAddr, err)
				}
			}
			for _, pos := range result.Positions {
				s.pipeline.Publish(pos)
			}
		}
	}
}

func (s *Server) resolveSession(decoder protocol.ProtocolDecoder, remoteAddr string, frame protocol.Frame) (*session.DeviceSession, bool) {
	uniqueId := ""
	if identifier, ok := decoder.(protocol.Identifier); ok {
		if uid, ok := identifier.Identify(frame); ok {
			uniqueId = uid
		}
	}
	return s.registry.Get(s.name, remoteAddr, uniqueId)
}
