package huabao

import (
	"fmt"
	"time"

	"tracker_gateway/internal/codec"
	"tracker_gateway/internal/model"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
)

// Decoder implements protocol.ProtocolDecoder for the Huabao binary
// protocol (§4.3). The alternative-framing flag is synchronized from the
// connection's FrameDecoder by the transport glue right after the first
// frame is split off the wire, per the §9 design note that this is a
// per-connection mode switch rather than genuinely global state.
type Decoder struct {
	alternative   bool
	ignoreFixTime bool
}

// NewDecoder creates a Decoder. ignoreFixTime mirrors the
// protocol.<name>.decoder.ignoreFixTime configuration key (§6): when set,
// serverTime is substituted for a device-reported fix time.
func NewDecoder(ignoreFixTime bool) *Decoder {
	return &Decoder{ignoreFixTime: ignoreFixTime}
}

// SetAlternative synchronizes the alternative-framing flag latched by this
// connection's FrameDecoder.
func (d *Decoder) SetAlternative(alternative bool) {
	d.alternative = alternative
}

// Identify implements protocol.Identifier: every Huabao message, not just
// TERMINAL_REGISTER, carries the device id in its envelope, so the
// transport glue can resolve a session before full decoding.
func (d *Decoder) Identify(frame protocol.Frame) (string, bool) {
	env, err := parseEnvelope(frame.Body, d.alternative)
	if err != nil {
		return "", false
	}
	return env.Id, true
}

// Decode implements protocol.ProtocolDecoder.
func (d *Decoder) Decode(sess *session.DeviceSession, frame protocol.Frame) (protocol.Result, error) {
	env, err := parseEnvelope(frame.Body, d.alternative)
	if err != nil {
		return protocol.Result{}, err
	}

	now := time.Now()
	var result protocol.Result

	switch env.Type {
	case MsgTerminalRegister:
		body := append([]byte{byte(env.Index >> 8), byte(env.Index)}, 0x00)
		body = append(body, []byte(env.Id)...)
		result.Responses = append(result.Responses, formatMessage(MsgTerminalRegisterResponse, env.Id, false, body, d.alternative))

	case MsgTerminalAuth, MsgHeartbeat, MsgHeartbeat2, MsgReportTextMessage:
		result.Responses = append(result.Responses, generalResponse(env, d.alternative))

	case MsgTimeSyncRequest:
		// Open question (§9): preserve the observed quirk that this
		// reuses MSG_TERMINAL_REGISTER_RESPONSE rather than a dedicated
		// time-sync response type.
		utc := now.UTC()
		body := []byte{
			byte((utc.Year() - 2000) >> 8), byte(utc.Year() - 2000),
			byte(utc.Month()), byte(utc.Day()),
			byte(utc.Hour()), byte(utc.Minute()), byte(utc.Second()),
		}
		result.Responses = append(result.Responses, formatMessage(MsgTerminalRegisterResponse, env.Id, false, body, d.alternative))

	case MsgLocationReport:
		pos, decodeErr := d.decodeLocationBody(sess, env.Body, env.Id, now)
		if decodeErr == nil {
			result.Positions = append(result.Positions, pos)
		}
		result.Responses = append(result.Responses, generalResponse(env, d.alternative))

	case MsgLocationReport2, MsgLocationReportBlind:
		pos, decodeErr := d.decodeLocationReportV2(sess, env.Body, env.Id, now)
		if decodeErr == nil {
			result.Positions = append(result.Positions, pos)
		}
		if env.Attribute&0x8000 != 0 {
			body := []byte{byte(env.Type >> 8), byte(env.Type), 0x00}
			result.Responses = append(result.Responses, formatMessage(MsgGeneralResponse2, env.Id, true, body, d.alternative))
		}

	case MsgLocationBatch:
		positions, decodeErr := d.decodeBatch0704(sess, env.Body, env.Id, now)
		if decodeErr == nil {
			result.Positions = append(result.Positions, positions...)
		}
		result.Responses = append(result.Responses, generalResponse(env, d.alternative))

	case MsgLocationBatch2:
		positions, decodeErr := d.decodeBatch0210(sess, env.Body, env.Id, now)
		if decodeErr == nil {
			result.Positions = append(result.Positions, positions...)
		}
		result.Responses = append(result.Responses, generalResponse(env, d.alternative))

	case MsgTransparent:
		pos, decodeErr := d.decodeTransparent(sess, env.Body, env.Id, now)
		if decodeErr == nil && pos != nil {
			result.Positions = append(result.Positions, pos)
		}

	default:
		return protocol.Result{}, protocol.ErrUnknownMessageType
	}

	return result, nil
}

// generalResponse builds the GENERAL_RESPONSE (0x8001) acknowledgement
// sent for most inbound message types (§4.3.7).
func generalResponse(env envelope, alternative bool) []byte {
	body := []byte{
		byte(env.Index >> 8), byte(env.Index),
		byte(env.Type >> 8), byte(env.Type),
		0x00,
	}
	return formatMessage(MsgGeneralResponse, env.Id, false, body, alternative)
}

// decodeLocationBody parses the 0x0200 fixed head + TLV tail (§4.3.1).
func (d *Decoder) decodeLocationBody(sess *session.DeviceSession, body []byte, id string, now time.Time) (*model.Position, error) {
	if len(body) < 28 {
		return nil, fmt.Errorf("huabao: location body too short: %d", len(body))
	}

	pos := model.NewPosition("huabao", sess.DeviceId, now)

	alarm := codec.U32(body[0:4])
	status := codec.U32(body[4:8])
	latRaw := codec.U32(body[8:12])
	lonRaw := codec.U32(body[12:16])
	altitude := codec.I16(body[16:18])
	speedRaw := codec.U16(body[18:20])
	course := codec.U16(body[20:22])

	lat := float64(latRaw) / 1e6
	lon := float64(lonRaw) / 1e6
	if codec.BitSet(status, 2) {
		lat = -lat
	}
	if codec.BitSet(status, 3) {
		lon = -lon
	}

	if err := pos.SetFixCoordinates(lat, lon); err != nil {
		return nil, err
	}

	pos.Altitude = float64(altitude)
	pos.Speed = knotsFromKph(float64(speedRaw) / 10.0)
	pos.Course = float64(course)
	pos.Valid = codec.BitSet(status, 1)
	pos.Set("ignition", codec.BitSet(status, 0))
	pos.Set("blocked", codec.BitSet(status, 10))
	pos.Set("charge", codec.BitSet(status, 26))

	fixTime, err := codec.DecodeBCDDateTime(body[22:28], sess.Timezone())
	if err == nil {
		if d.ignoreFixTime {
			fixTime = now
		}
		pos.FixTime = &fixTime
		pos.DeviceTime = &fixTime
	}

	decodeAlarm(pos, alarm, sess.Model)

	if len(body) > 28 {
		decodeLocationTlvs(pos, body[28:])
	}

	sess.Touch(pos, now)
	return pos, nil
}

func knotsFromKph(kph float64) float64 {
	return kph / 1.852
}

// decodeLocationTlvs walks the 0x0200 TLV tail (§4.3.1 catalogue). Every
// TLV advances the cursor by exactly 2+len regardless of whether its value
// was interpreted, so unknown or partially-handled fields are skipped
// safely (§7 UnknownTLV).
func decodeLocationTlvs(pos *model.Position, data []byte) {
	net := &model.Network{}
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
		decodeLocationTlv(pos, net, id, value)
		cursor = valueEnd
	}
	if len(net.CellTowers) > 0 || len(net.WifiAPs) > 0 {
		pos.Network = net
	}
}

func decodeLocationTlv(pos *model.Position, net *model.Network, id byte, value []byte) {
	switch id {
	case tlvOdometer:
		if len(value) >= 4 {
			pos.Set("odometer", float64(codec.U32(value))*100)
		}
	case tlvFuel:
		if len(value) >= 2 {
			v := codec.U16(value)
			if v&0x8000 != 0 {
				pos.Set("fuelLevel", float64(v&0x7FFF))
			} else {
				pos.Set("fuel", float64(v)/10.0)
			}
		}
	case tlvDeviceTemp:
		if len(value) >= 2 {
			pos.Set("deviceTemp", float64(codec.I16(value)))
		}
	case tlvInput:
		if len(value) >= 4 {
			pos.Set("input", codec.U32(value))
		}
	case tlvAdc1:
		if len(value) >= 2 {
			pos.Set("adc1", float64(codec.U16(value))/100.0)
		}
	case tlvAdc2:
		if len(value) >= 2 {
			pos.Set("adc2", float64(codec.U16(value))/100.0)
		}
	case tlvRSSI:
		if len(value) >= 1 {
			pos.Set("rssi", int(value[0]))
		}
	case tlvSatellites:
		if len(value) >= 1 {
			pos.Set("satellites", int(value[0]))
		}
	case tlvTemperatures:
		for i := 0; i < 8 && i*2+2 <= len(value); i++ {
			raw := codec.U16(value[i*2 : i*2+2])
			if raw == 0xFFFF {
				continue
			}
			pos.Set(fmt.Sprintf("temp%d", i+1), float64(codec.SignedMagnitude16(raw))/10.0)
		}
	case tlvBatteryLevel56:
		if len(value) >= 2 {
			pos.Set("batteryLevel", int(value[1])*10)
		}
	case tlvAlarms57:
		if len(value) >= 8 {
			b1 := codec.U16(value[0:2])
			if codec.BitSet(uint32(b1), 8) {
				pos.AddAlarm("hardAcceleration")
			}
			if codec.BitSet(uint32(b1), 9) {
				pos.AddAlarm("hardBraking")
			}
			if codec.BitSet(uint32(b1), 10) {
				pos.AddAlarm("hardCornering")
			}
			alarm2 := codec.U32(value[4:8])
			if codec.BitSet(alarm2, 16) {
				pos.AddAlarm("door")
			}
		}
	case tlvEvent:
		if len(value) >= 2 {
			event := codec.U16(value)
			pos.Set("event", int(event))
			if event >= 0x0061 && event <= 0x0066 && len(value) >= 2+6+8 {
				pos.Set("driverUniqueId", string(value[8:16]))
			}
		}
	case tlvPower61:
		if len(value) >= 2 {
			pos.Set("power", float64(codec.U16(value))*0.01)
		}
	case tlvLockRecords:
		decodeLockRecords(pos, value)
	case tlvBatteryLevel68:
		if len(value) >= 2 {
			pos.Set("batteryLevel", float64(codec.U16(value))*0.01)
		}
	case tlvBattery69:
		if len(value) >= 2 {
			pos.Set("battery", float64(codec.U16(value))*0.01)
		}
	case tlvTires:
		decodeTireRecords(pos, value)
	case tlvExtension80:
		if len(value) >= 1 {
			decodeExtension(pos, value[1:])
		}
	case tlvPower82:
		if len(value) >= 2 {
			pos.Set("power", float64(codec.U16(value))/10.0)
		}
	case tlvOBD91:
		decodeObdBlock(pos, value)
	case tlvVin:
		pos.Set("vin", string(value))
	case tlvCellOrNested:
		decodeCellOrNested(pos, net, value)
	case tlvOBDExtF3:
		decodeObdExtension(pos, value)
	case tlvWifi:
		decodeWifiAccessPoints(net, value)
	case 0xF6, 0xF7, 0xF8, 0xFB, 0xFC, 0xFE:
		// Environmental sensors, humidity/battery, geofence, container id:
		// model-specific layouts not disambiguated by a public spec;
		// recorded as a raw attribute so the bytes are not silently lost.
		pos.Set(fmt.Sprintf("sensor%02X", id), fmt.Sprintf("%x", value))
	}
}

func decodeLockRecords(pos *model.Position, value []byte) {
	count := len(value) / 11
	for i := 0; i < count; i++ {
		rec := value[i*11 : i*11+11]
		lockId := fmt.Sprintf("%x", rec[0:6])
		battery := float64(codec.U16(rec[6:8])) * 0.001
		sealed := rec[8] == '1'
		pos.Set(fmt.Sprintf("lock%dId", i+1), lockId)
		pos.Set(fmt.Sprintf("lock%dBattery", i+1), battery)
		pos.Set(fmt.Sprintf("lock%dSealed", i+1), sealed)
	}
}

func decodeTireRecords(pos *model.Position, value []byte) {
	cursor := 0
	for cursor+6 <= len(value) {
		idx := value[cursor]
		sensorId := fmt.Sprintf("%x", value[cursor+1:cursor+4])
		pressure := float64(codec.U16(value[cursor+4:cursor+6])&0x03FF) / 40.0
		pos.Set(fmt.Sprintf("tire%dSensor", idx), sensorId)
		pos.Set(fmt.Sprintf("tire%dPressure", idx), pressure)
		cursor += 6
		if cursor < len(value) {
			temp := int(value[cursor]) - 50
			pos.Set(fmt.Sprintf("tire%dTemp", idx), temp)
			cursor++
		}
		if cursor < len(value) {
			pos.Set(fmt.Sprintf("tire%dStatus", idx), int(value[cursor]))
			cursor++
		}
	}
}

// decodeExtension parses the nested TLVs inside 0x80 (§4.3.3).
func decodeExtension(pos *model.Position, data []byte) {
	cursor := 0
	for cursor+2 <= len(data) {
		t := data[cursor]
		length := int(data[cursor+1])
		valueStart := cursor + 2
		valueEnd := valueStart + length
		if valueEnd > len(data) {
			break
		}
		value := data[valueStart:valueEnd]
		switch t {
		case 0x01:
			if len(value) >= 4 {
				pos.Set("odometer", float64(codec.U32(value))*100)
			}
		case 0x02:
			if len(value) >= 2 {
				pos.Set("fuel", float64(codec.U16(value))*0.1)
			}
		case 0x03:
			if len(value) >= 2 {
				pos.Set("obdSpeed", float64(codec.U16(value))*0.1)
			}
		case 0x56:
			if len(value) >= 2 {
				pos.Set("batteryLevel", int(value[1]))
			}
		case 0x61:
			if len(value) >= 2 {
				pos.Set("power", float64(codec.U16(value))*0.01)
			}
		case 0x69:
			if len(value) >= 2 {
				pos.Set("battery", float64(codec.U16(value))*0.01)
			}
		case 0xA0:
			dtcs := make([]byte, len(value))
			copy(dtcs, value)
			for i, b := range dtcs {
				if b == ',' {
					dtcs[i] = ' '
				}
			}
			pos.Set("dtcs", string(dtcs))
		case 0xCC:
			pos.Set("iccid", string(value))
		default:
			if t >= 0x80 && t <= 0x8E && len(value) >= 2 {
				pos.Set(fmt.Sprintf("obd%02X", t), float64(codec.U16(value)))
			}
		}
		cursor = valueEnd
	}
}

func decodeObdBlock(pos *model.Position, value []byte) {
	if len(value) < 22 {
		return
	}
	pos.Set("battery", float64(codec.U16(value[0:2]))*0.1)
	pos.Set("rpm", int(codec.U16(value[2:4])))
	pos.Set("obdSpeed", int(value[4]))
	pos.Set("throttle", float64(value[5])*100/255)
	pos.Set("engineLoad", float64(value[6])*100/255)
	pos.Set("coolantTemp", int(value[7])-40)
	pos.Set("fuelConsumption", float64(codec.U16(value[10:12]))*0.01)
	if len(value) >= 22 {
		pos.Set("fuelUsed", float64(codec.U16(value[20:22]))*0.01)
	}
}

func decodeCellOrNested(pos *model.Position, net *model.Network, value []byte) {
	if len(value) < 2 {
		return
	}
	lead := codec.U16(value[0:2])
	if lead > 200 {
		if len(value) < 3 {
			return
		}
		mcc := int(lead)
		mnc := int(value[2])
		cursor := 3
		for cursor+5 <= len(value) {
			lac := int(codec.U16(value[cursor : cursor+2]))
			cid := int(codec.U16(value[cursor+2 : cursor+4]))
			rssi := int(value[cursor+4])
			net.AddCellTower(model.CellTower{MCC: mcc, MNC: mnc, LAC: lac, CID: cid, Signal: &rssi})
			cursor += 5
		}
		return
	}
	// Nested structured sub-TLVs (fuel probes, iccid, WiFi AP CSV, power,
	// low-battery flag, ...): length(2) subtype(2) value. Recorded by
	// subtype tag since the device-specific sub-schema is not pinned down
	// by a public reference.
	cursor := 0
	for cursor+4 <= len(value) {
		subLen := int(codec.U16(value[cursor : cursor+2]))
		subType := codec.U16(value[cursor+2 : cursor+4])
		valueStart := cursor + 4
		valueEnd := valueStart + subLen
		if valueEnd > len(value) {
			break
		}
		pos.Set(fmt.Sprintf("ebSub%04X", subType), fmt.Sprintf("%x", value[valueStart:valueEnd]))
		cursor = valueEnd
	}
}

func decodeObdExtension(pos *model.Position, value []byte) {
	cursor := 0
	for cursor+3 <= len(value) {
		subType := codec.U16(value[cursor : cursor+2])
		subLen := int(value[cursor+2])
		valueStart := cursor + 3
		valueEnd := valueStart + subLen
		if valueEnd > len(value) {
			break
		}
		sub := value[valueStart:valueEnd]
		switch subType {
		case 0x0001:
			pos.Set("vin", string(sub))
		case 0x0002:
			if len(sub) >= 2 {
				pos.Set("rpm", int(codec.U16(sub)))
			}
		case 0x0003:
			if len(sub) >= 2 {
				pos.Set("fuel", float64(codec.U16(sub))/10.0)
			}
		case 0x0004:
			if len(sub) >= 1 {
				pos.Set("coolantTemp", int(sub[0])-40)
			}
		case 0x0005:
			if len(sub) >= 4 {
				pos.Set("obdOdometer", float64(codec.U32(sub)))
			}
		default:
			pos.Set(fmt.Sprintf("obdExt%04X", subType), fmt.Sprintf("%x", sub))
		}
		cursor = valueEnd
	}
}

func decodeWifiAccessPoints(net *model.Network, value []byte) {
	const macLen = 6
	cursor := 0
	for cursor+macLen+1 <= len(value) {
		mac := value[cursor : cursor+macLen]
		rssi := int(int8(value[cursor+macLen]))
		net.AddWifiAP(model.WifiAccessPoint{BSSID: formatMac(mac), RSSI: &rssi})
		cursor += macLen + 1
	}
}

func formatMac(mac []byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}
