// Package manpower decodes the comma-delimited ManPower text protocol
// (§4.4).
package manpower

import (
	"regexp"
	"strconv"
	"time"

	"tracker_gateway/internal/model"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
)

// recordPattern matches: simei:<imei>,status,yyMMddHHmmss,A|V,lat,N|S,lon,E|W,speed
var recordPattern = regexp.MustCompile(
	`simei:(\d+),(\d+),(\d{12}),([AV]),(\d{2}\.\d+),([NS]),(\d{3}\.\d+),([EW]),(\d+(?:\.\d+)?)`,
)

// Decoder implements protocol.ProtocolDecoder for ManPower.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Identify implements protocol.Identifier.
func (d *Decoder) Identify(frame protocol.Frame) (string, bool) {
	m := recordPattern.FindStringSubmatch(string(frame.Body))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Decode parses one ManPower text record.
func (d *Decoder) Decode(sess *session.DeviceSession, frame protocol.Frame) (protocol.Result, error) {
	m := recordPattern.FindStringSubmatch(string(frame.Body))
	if m == nil {
		return protocol.Result{}, protocol.ErrMalformedFrame
	}

	now := time.Now()
	pos := model.NewPosition("manpower", sess.DeviceId, now)

	status, _ := strconv.Atoi(m[2])
	pos.Set("status", status)

	if fixTime, err := time.Parse("060102150405", m[3]); err == nil {
		pos.DeviceTime = &fixTime
		pos.FixTime = &fixTime
	}

	pos.Valid = m[4] == "A"

	lat, _ := strconv.ParseFloat(m[5], 64)
	if m[6] == "S" {
		lat = -lat
	}
	lon, _ := strconv.ParseFloat(m[7], 64)
	if m[8] == "W" {
		lon = -lon
	}
	if err := pos.SetFixCoordinates(lat, lon); err != nil {
		return protocol.Result{}, err
	}

	speed, _ := strconv.ParseFloat(m[9], 64)
	pos.Speed = speed

	sess.Touch(pos, now)
	return protocol.Result{Positions: []*model.Position{pos}}, nil
}
