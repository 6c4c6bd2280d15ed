// Package protocol declares the three capability interfaces every wire
// protocol implements (frame decoder, protocol decoder, protocol encoder),
// kept separate so a protocol can mix a shared framer with its own
// decoder/encoder, per the polymorphic-decoders design note.
package protocol

import (
	"errors"

	"tracker_gateway/internal/model"
	"tracker_gateway/internal/session"
)

// Sentinel decoding errors. Propagation policy: these never escape past a
// single message — the connection loop logs and continues.
var (
	ErrNeedMoreData       = errors.New("protocol: need more data")
	ErrMalformedFrame     = errors.New("protocol: malformed frame")
	ErrBadChecksum        = errors.New("protocol: bad checksum")
	ErrUnknownMessageType = errors.New("protocol: unknown message type")
	ErrUnknownDevice      = errors.New("protocol: unknown device")
	ErrCommandUnsupported = errors.New("protocol: command not supported")
)

// Frame is a transient, decoded-but-uninterpreted byte buffer handed from
// the frame decoder to the protocol decoder.
type Frame struct {
	Body []byte
}

// FrameDecoder carves a byte stream into protocol-delimited messages,
// unescaping stuffed bytes. It is stateful: a partial message spans
// multiple AddData calls.
type FrameDecoder interface {
	// AddData appends newly-read bytes and returns every complete Frame
	// that can now be extracted. ErrNeedMoreData is not returned as an
	// error; an empty, nil-error result means "wait for more bytes".
	AddData(data []byte) ([]Frame, error)
}

// Result is what a ProtocolDecoder produces from one Frame: zero or more
// Positions, and the raw bytes (if any) to write back to the device.
type Result struct {
	Positions []*model.Position
	Responses [][]byte
}

// ProtocolDecoder interprets one framed message in the context of a
// device session, producing Positions and any required acknowledgement
// bytes.
type ProtocolDecoder interface {
	Decode(sess *session.DeviceSession, frame Frame) (Result, error)
}

// ProtocolEncoder translates an abstract Command into wire bytes for a
// specific device session.
type ProtocolEncoder interface {
	Encode(sess *session.DeviceSession, cmd model.Command) ([]byte, error)
}

// Identifier is an optional capability a ProtocolDecoder implements when a
// device's unique id can be read out of a Frame before a session exists
// for it — the transport glue calls this to resolve/create the session it
// then passes to Decode. Protocols that only ever do one thing per
// connection (e.g. OwnTracks, one JSON body per HTTP request) skip the
// session-before-decode step entirely and don't need this.
type Identifier interface {
	Identify(frame Frame) (uniqueId string, ok bool)
}
