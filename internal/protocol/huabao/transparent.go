package huabao

import (
	"strconv"
	"strings"
	"time"

	"tracker_gateway/internal/codec"
	"tracker_gateway/internal/model"
	"tracker_gateway/internal/session"
)

// decodeTransparent handles MSG_TRANSPARENT (0x0900, §4.3.6). The first
// body byte selects a sub-format. Only 0xFF carries a fresh fix; 0x40, 0x41
// and 0xF0 attach their telemetry to a copy of the session's last known
// location and return nothing when the session has none.
func (d *Decoder) decodeTransparent(sess *session.DeviceSession, body []byte, id string, now time.Time) (*model.Position, error) {
	if len(body) < 1 {
		return nil, nil
	}
	subtype := body[0]
	payload := body[1:]

	switch subtype {
	case 0x40:
		// GTSL pipe-delimited driver id text.
		fields := strings.Split(string(payload), "|")
		if len(fields) > 0 {
			last := sess.GetLastLocation("huabao", now)
			if last != nil {
				last.Set("driverUniqueId", fields[0])
				return last, nil
			}
		}
		return nil, nil

	case 0x41:
		// OBD realtime comma-delimited snapshot: attach to the last known
		// fix since this sub-message carries no coordinates of its own.
		last := sess.GetLastLocation("huabao", now)
		if last == nil {
			return nil, nil
		}
		fields := strings.Split(string(payload), ",")
		for i, f := range fields {
			if v, err := strconv.ParseFloat(f, 64); err == nil {
				last.Set("obdField"+strconv.Itoa(i+1), v)
			}
		}
		return last, nil

	case 0xF0:
		last := sess.GetLastLocation("huabao", now)
		decodeVehicleDataTlvs(last, payload)
		return last, nil

	case 0xFF:
		return decodeDirectPosition(sess, payload, now)
	}

	return nil, nil
}

func decodeVehicleDataTlvs(pos *model.Position, data []byte) {
	if pos == nil {
		return
	}
	cursor := 0
	for cursor+2 <= len(data) {
		id := data[cursor]
		length := int(data[cursor+1])
		valueStart := cursor + 2
		valueEnd := valueStart + length
		if valueEnd > len(data) {
			break
		}
		value := data[valueStart:valueEnd]
		switch id {
		case 0x01:
			if len(value) >= 4 {
				pos.Set("vehicleOdometer", float64(codec.U32(value)))
			}
		case 0x02:
			if len(value) >= 2 {
				pos.Set("vehicleFuel", float64(codec.U16(value)))
			}
		case 0x03:
			if len(value) >= 2 {
				pos.Set("vehicleSpeed", float64(codec.U16(value)))
			}
		case 0x0B:
			pos.Set("vehicleLockCommand", string(value))
		case 0x15:
			pos.Set("vehicleStatus", int(value[0]))
		}
		cursor = valueEnd
	}
}

func decodeDirectPosition(sess *session.DeviceSession, data []byte, now time.Time) (*model.Position, error) {
	if len(data) < 18 {
		return nil, nil
	}
	pos := model.NewPosition("huabao", sess.DeviceId, now)
	fixTime, err := codec.DecodeBCDDateTime(data[0:6], sess.Timezone())
	if err == nil {
		pos.FixTime = &fixTime
		pos.DeviceTime = &fixTime
	}
	lat := float64(codec.I32(data[6:10])) / 1e6
	lon := float64(codec.I32(data[10:14])) / 1e6
	if err := pos.SetFixCoordinates(lat, lon); err != nil {
		return nil, err
	}
	pos.Altitude = float64(codec.I16(data[14:16]))
	pos.Speed = knotsFromKph(float64(codec.U16(data[16:18])) / 10.0)
	pos.Valid = true
	sess.Touch(pos, now)
	return pos, nil
}
