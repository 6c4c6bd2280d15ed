// Package tr900 decodes the semicolon/comma-delimited TR900 text protocol
// (§4.4), one of the simple text protocols specified by structural rule
// rather than a full byte-exact grammar.
package tr900

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"tracker_gateway/internal/model"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
)

// recordPattern matches one comma-separated TR900 report. Groups:
// 1 id, 2 fix, 3 date, 4 time, 5 lonHemi, 6 lonDeg, 7 lonMin, 8 latHemi,
// 9 latDeg, 10 latMin, 11 speed, 12 course, 13 gsm, 14 event, 15 adc,
// 16 battery, 17 input, 18 status.
var recordPattern = regexp.MustCompile(
	`^([^,]*),[^,]*,([01]),(\d{6}),(\d{6}),([EW])(\d{3})(\d+\.\d+),([NS])(\d{2})(\d+\.\d+),[^,]*,` +
		`(\d+(?:\.\d+)?),(\d+(?:\.\d+)?),(\d+),(\d+),(\d+)-(\d+),[^,]*,(\d+),(\d+)$`,
)

// Decoder implements protocol.ProtocolDecoder for TR900.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Identify implements protocol.Identifier by reading the id out of the
// same record pattern Decode uses, without building a Position.
func (d *Decoder) Identify(frame protocol.Frame) (string, bool) {
	m := recordPattern.FindStringSubmatch(trimParens(string(frame.Body)))
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// Decode parses one TR900 text record. TR900 has no binary framing of its
// own; the frame decoder's text-message branch ('(' ... ')') or a
// newline-delimited transport feeds this one record at a time.
func (d *Decoder) Decode(sess *session.DeviceSession, frame protocol.Frame) (protocol.Result, error) {
	line := trimParens(string(frame.Body))
	m := recordPattern.FindStringSubmatch(line)
	if m == nil {
		return protocol.Result{}, protocol.ErrMalformedFrame
	}

	now := time.Now()
	pos := model.NewPosition("tr900", sess.DeviceId, now)
	pos.Valid = m[2] == "1"

	fixTime, err := parseDateTime(m[3], m[4])
	if err == nil {
		pos.DeviceTime = &fixTime
		pos.FixTime = &fixTime
	}

	lonDeg, _ := strconv.Atoi(m[6])
	lonMin, _ := strconv.ParseFloat(m[7], 64)
	lon := float64(lonDeg) + lonMin/60.0
	if m[5] == "W" {
		lon = -lon
	}

	latDeg, _ := strconv.Atoi(m[9])
	latMin, _ := strconv.ParseFloat(m[10], 64)
	lat := float64(latDeg) + latMin/60.0
	if m[8] == "S" {
		lat = -lat
	}

	if err := pos.SetFixCoordinates(lat, lon); err != nil {
		return protocol.Result{}, err
	}

	speed, _ := strconv.ParseFloat(m[11], 64)
	pos.Speed = speed
	course, _ := strconv.ParseFloat(m[12], 64)
	pos.Course = course

	gsm, _ := strconv.Atoi(m[13])
	pos.Set("rssi", gsm)
	pos.Set("event", m[14])

	adc1, _ := strconv.Atoi(m[15])
	battery, _ := strconv.Atoi(m[16])
	pos.Set("adc1", adc1)
	pos.Set("battery", battery)

	input, _ := strconv.Atoi(m[17])
	pos.Set("input", input)
	status, _ := strconv.Atoi(m[18])
	pos.Set("status", status)

	sess.Touch(pos, now)
	return protocol.Result{Positions: []*model.Position{pos}}, nil
}

func parseDateTime(date, clock string) (time.Time, error) {
	if len(date) != 6 || len(clock) != 6 {
		return time.Time{}, fmt.Errorf("tr900: malformed date/time")
	}
	layout := "060102150405"
	return time.Parse(layout, date+clock)
}

func trimParens(s string) string {
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		return s[1 : len(s)-1]
	}
	return s
}
