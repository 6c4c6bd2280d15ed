package huabao

import (
	"fmt"
	"time"

	"tracker_gateway/internal/codec"
	"tracker_gateway/internal/model"
	"tracker_gateway/internal/session"
)

// decodeLocationReportV2 handles 0x5501/0x5502 (§4.3.4). The fixed head
// follows the sister "Jt600-style" binary layout: a BCD timestamp followed
// by lat/lon/speed/course/altitude packed in a different order than the
// 0x0200 report, after which the field layout re-converges with the
// documented rssi/satellites/odometer/battery/cell/product/status/alarm
// sequence and a short TLV tail.
func (d *Decoder) decodeLocationReportV2(sess *session.DeviceSession, body []byte, id string, now time.Time) (*model.Position, error) {
	const fixedHeadLen = 6 + 4 + 4 + 1 + 2 + 2
	if len(body) < fixedHeadLen+8 {
		return nil, fmt.Errorf("huabao: v2 location body too short: %d", len(body))
	}

	pos := model.NewPosition("huabao", sess.DeviceId, now)

	fixTime, err := codec.DecodeBCDDateTime(body[0:6], sess.Timezone())
	if err == nil {
		if d.ignoreFixTime {
			fixTime = now
		}
		pos.FixTime = &fixTime
		pos.DeviceTime = &fixTime
	}

	lat := float64(codec.I32(body[6:10])) / 1e6
	lon := float64(codec.I32(body[10:14])) / 1e6
	if err := pos.SetFixCoordinates(lat, lon); err != nil {
		return nil, err
	}
	pos.Speed = knotsFromKph(float64(body[14]))
	pos.Course = float64(codec.U16(body[15:17]))
	pos.Altitude = float64(codec.I16(body[17:19]))
	pos.Valid = true

	cursor := fixedHeadLen
	pos.Set("rssi", int(body[cursor]))
	cursor++
	pos.Set("satellites", int(body[cursor]))
	cursor++
	pos.Set("odometer", float64(codec.U32(body[cursor:cursor+4]))*1000)
	cursor += 4

	if cursor < len(body) {
		battery := body[cursor]
		switch {
		case battery <= 100:
			pos.Set("batteryLevel", int(battery))
		case battery == 0xAA || battery == 0xAB:
			pos.Set("charge", true)
		}
		cursor++
	}

	net := &model.Network{}
	if cursor+6 <= len(body) {
		cid := codec.U32(body[cursor : cursor+4])
		lac := codec.U16(body[cursor+4 : cursor+6])
		if cid != 0 && lac != 0 {
			net.AddCellTower(model.CellTower{CID: int(cid), LAC: int(lac)})
			pos.Network = net
		}
		cursor += 6
	}

	var product byte
	if cursor < len(body) {
		product = body[cursor]
		cursor++
	}
	if cursor+4 <= len(body) {
		status := codec.U16(body[cursor : cursor+2])
		alarm := codec.U16(body[cursor+2 : cursor+4])
		pos.Set("status", int(status))
		decodeV2Alarm(pos, product, alarm)
		cursor += 4
	}

	if cursor < len(body) {
		decodeLocationV2Tlvs(pos, body[cursor:])
	}

	sess.Touch(pos, now)
	return pos, nil
}

func decodeV2Alarm(pos *model.Position, product byte, alarm uint16) {
	if product != 3 {
		return
	}
	if codec.BitSet(uint32(alarm), 0) {
		pos.AddAlarm("overspeed")
	}
	if codec.BitSet(uint32(alarm), 1) {
		pos.AddAlarm("lowPower")
	}
	if codec.BitSet(uint32(alarm), 2) {
		pos.AddAlarm("vibration")
	}
	if codec.BitSet(uint32(alarm), 3) {
		pos.AddAlarm("lowBattery")
	}
	if codec.BitSet(uint32(alarm), 4) {
		pos.AddAlarm("geofenceEnter")
	}
	if codec.BitSet(uint32(alarm), 5) {
		pos.AddAlarm("geofenceExit")
	}
}

func decodeLocationV2Tlvs(pos *model.Position, data []byte) {
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
		case 0x02:
			if len(value) >= 2 {
				pos.Altitude = float64(codec.I16(value))
			}
		case 0x0B:
			pos.Set("lockCommand", fmt.Sprintf("%x", value))
		case 0x0C:
			if len(value) >= 6 {
				x := codec.SignedMagnitude16(codec.U16(value[0:2]))
				y := codec.SignedMagnitude16(codec.U16(value[2:4]))
				z := codec.SignedMagnitude16(codec.U16(value[4:6]))
				pos.Set("tilt", fmt.Sprintf("[%d,%d,%d]", x, y, z))
			}
		case 0xFC:
			pos.Set("geofence", fmt.Sprintf("%x", value))
		}
		cursor = valueEnd
	}
}
