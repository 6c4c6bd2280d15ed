// Package owntracks decodes OwnTracks JSON location reports delivered over
// HTTP POST (§4.4). Unlike the binary/text wire protocols it has no frame
// decoder of its own — the HTTP transport hands one JSON document per
// request directly to Decode.
package owntracks

import (
	"encoding/json"
	"time"

	"tracker_gateway/internal/model"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
)

type record struct {
	Type string  `json:"_type"`
	Tid  string  `json:"tid"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
	Tst  *int64  `json:"tst"`
	Sent *int64  `json:"sent"`
	Vel  *float64 `json:"vel"`
	Alt  *float64 `json:"alt"`
	Cog  *float64 `json:"cog"`
	Acc  *float64 `json:"acc"`
	Batt *float64 `json:"batt"`
	Uext *float64 `json:"uext"`
	Ubatt *float64 `json:"ubatt"`
	Vin  string  `json:"vin"`
	Name string  `json:"name"`
	Rpm  *float64 `json:"rpm"`
	Ign  *bool   `json:"ign"`
	Motion string `json:"motion"`
	Odometer *float64 `json:"odometer"`
	Hmc  *float64 `json:"hmc"`
	T    string  `json:"t"`
	Rty  *int    `json:"rty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ErrIgnored is returned (never treated as an error by the HTTP handler)
// when the record's _type is not "location" and should just get a 200.
var ErrIgnored = protocol.ErrUnknownMessageType

// Decoder implements protocol.ProtocolDecoder for OwnTracks.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Decode parses one OwnTracks JSON document. The Frame's Body is the raw
// HTTP request body.
func (d *Decoder) Decode(sess *session.DeviceSession, frame protocol.Frame) (protocol.Result, error) {
	var rec record
	if err := json.Unmarshal(frame.Body, &rec); err != nil {
		return protocol.Result{}, protocol.ErrMalformedFrame
	}
	if rec.Type != "location" {
		return protocol.Result{}, ErrIgnored
	}
	if rec.Lat == nil || rec.Lon == nil || rec.Tst == nil {
		return protocol.Result{}, protocol.ErrMalformedFrame
	}

	now := time.Now()
	pos := model.NewPosition("owntracks", sess.DeviceId, now)
	pos.Valid = true

	fixTime := time.Unix(*rec.Tst, 0).UTC()
	pos.FixTime = &fixTime
	if rec.Sent != nil {
		sentTime := time.Unix(*rec.Sent, 0).UTC()
		pos.DeviceTime = &sentTime
	}

	if err := pos.SetFixCoordinates(*rec.Lat, *rec.Lon); err != nil {
		return protocol.Result{}, err
	}

	if rec.Vel != nil {
		pos.Speed = *rec.Vel / 1.852
	}
	if rec.Alt != nil {
		pos.Altitude = *rec.Alt
	}
	if rec.Cog != nil {
		pos.Course = *rec.Cog
	}
	if rec.Acc != nil {
		pos.Accuracy = *rec.Acc
	}
	if rec.Batt != nil {
		pos.Set("batteryLevel", *rec.Batt)
	}
	if rec.Uext != nil {
		pos.Set("power", *rec.Uext)
	}
	if rec.Ubatt != nil {
		pos.Set("battery", *rec.Ubatt)
	}
	if rec.Vin != "" {
		pos.Set("vin", rec.Vin)
	} else if rec.Name != "" {
		pos.Set("vin", rec.Name)
	}
	if rec.Rpm != nil {
		pos.Set("rpm", *rec.Rpm)
	}
	if rec.Ign != nil {
		pos.Set("ignition", *rec.Ign)
	}
	if rec.Motion != "" {
		pos.Set("motion", rec.Motion)
	}
	if rec.Odometer != nil {
		pos.Set("odometer", *rec.Odometer*1000)
	}
	if rec.Hmc != nil {
		pos.Set("hours", *rec.Hmc*1000)
	}

	decodeEvent(pos, rec.T, rec.Rty)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(frame.Body, &raw); err == nil {
		decodeChannels(pos, raw)
	}

	sess.Touch(pos, now)
	return protocol.Result{Positions: []*model.Position{pos}}, nil
}

func decodeEvent(pos *model.Position, t string, rty *int) {
	if t == "" {
		return
	}
	pos.Set("event", t)
	switch t {
	case "9":
		pos.AddAlarm("lowBattery")
	case "1":
		pos.AddAlarm("powerOn")
	case "i", "I":
		pos.Set("ignition", t == "i")
	case "E":
		pos.AddAlarm("powerRestored")
	case "e":
		pos.AddAlarm("powerCut")
	case "!":
		pos.AddAlarm("tow")
	case "s":
		pos.AddAlarm("overspeed")
	case "h":
		if rty == nil {
			return
		}
		switch *rty {
		case 0, 3:
			pos.AddAlarm("hardBraking")
		case 1, 4:
			pos.AddAlarm("hardAcceleration")
		case 2, 5:
			pos.AddAlarm("hardCornering")
		}
	}
}

func decodeChannels(pos *model.Position, raw map[string]json.RawMessage) {
	for key, value := range raw {
		var ch string
		var idx string
		if n, err := extractChannel(key, "adda-"); err == nil {
			ch, idx = "adc", n
		} else if n, err := extractChannel(key, "temp_c-"); err == nil {
			ch, idx = "temp", n
		} else {
			continue
		}
		var v float64
		if json.Unmarshal(value, &v) == nil {
			pos.Set(ch+idx, v)
		}
	}
}

func extractChannel(key, prefix string) (string, error) {
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return "", protocol.ErrUnknownMessageType
	}
	return key[len(prefix):], nil
}
