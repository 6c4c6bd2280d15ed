// Package udp implements the optional UDP transport listener (§6: "one
// logical message per datagram"). Unlike TCP there is no per-connection
// goroutine or buffered framer — each ReadFrom already returns one
// complete device message, so the packet is still run through the
// protocol's FrameDecoder.AddData to strip delimiters/unescape, then
// decoded immediately against a session keyed by the source address.
package udp

import (
	"net"

	"tracker_gateway/internal/command"
	"tracker_gateway/internal/downstream"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
	"tracker_gateway/pkg/colors"
)

// Server is a single UDP listener for one wire protocol.
type Server struct {
	name string
	port string
	conn *net.UDPConn

	newFrameDecoder    func() protocol.FrameDecoder
	newProtocolDecoder func() protocol.ProtocolDecoder

	registry   *session.Registry
	dispatcher *command.Dispatcher
	pipeline   downstream.Pipeline
}

// NewServer creates a UDP server for one protocol.
func NewServer(
	name, port string,
	newFrameDecoder func() protocol.FrameDecoder,
	newProtocolDecoder func() protocol.ProtocolDecoder,
	registry *session.Registry,
	dispatcher *command.Dispatcher,
	pipeline downstream.Pipeline,
) *Server {
	return &Server{
		name:               name,
		port:               port,
		newFrameDecoder:    newFrameDecoder,
		newProtocolDecoder: newProtocolDecoder,
		registry:           registry,
		dispatcher:         dispatcher,
		pipeline:           pipeline,
	}
}

// Start binds the UDP socket and serves datagrams until Close is called.
func (s *Server) Start() error {
	addr, err := net.ResolveUDPAddr("udp", ":"+s.port)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	s.conn = conn

	colors.PrintServer("📡", "%s UDP server listening on port %s", s.name, s.port)

	buffer := make([]byte, 2048)
	for {
		n, remote, err := conn.ReadFromUDP(buffer)
		if err != nil {
			return nil
		}
		if n == 0 {
			continue
		}
		s.handleDatagram(remote, append([]byte(nil), buffer[:n]...))
	}
}

// Close stops the UDP listener.
func (s *Server) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Server) handleDatagram(remote *net.UDPAddr, data []byte) {
	remoteAddr := remote.String()
	frameDecoder := s.newFrameDecoder()
	protoDecoder := s.newProtocolDecoder()

	frames, err := frameDecoder.AddData(data)
	if err != nil {
		colors.PrintError("%s udp: frame error from %s: %v", s.name, remoteAddr, err)
		return
	}

	if setter, ok := protoDecoder.(interface{ SetAlternative(bool) }); ok {
		if aware, ok := frameDecoder.(interface{ Alternative() bool }); ok {
			setter.SetAlternative(aware.Alternative())
		}
	}

	for _, frame := range frames {
		uniqueId := ""
		if identifier, ok := protoDecoder.(protocol.Identifier); ok {
			if uid, ok := identifier.Identify(frame); ok {
				uniqueId = uid
			}
		}

		sess, ok := s.registry.Get(s.name, remoteAddr, uniqueId)
		if !ok {
			colors.PrintWarning("%s udp: dropping datagram from unidentified device %s", s.name, remoteAddr)
			continue
		}

		result, err := protoDecoder.Decode(sess, frame)
		if err != nil {
			colors.PrintDebug("%s udp: decode error from %s: %v", s.name, remoteAddr, err)
			continue
		}

		for _, resp := range result.Responses {
			if _, err := s.conn.WriteToUDP(resp, remote); err != nil {
				colors.PrintError("%s udp: write error to %s: %v", s.name, remoteAddr, err)
			}
		}
		for _, pos := range result.Positions {
			s.pipeline.Publish(pos)
		}
	}
}
