package huabao

import (
	"encoding/hex"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"tracker_gateway/internal/codec"
	"tracker_gateway/internal/model"
	"tracker_gateway/internal/protocol"
	"tracker_gateway/internal/session"
)

// Encoder implements protocol.ProtocolEncoder for the Huabao protocol
// (§4.5). The session attribute "protocol.alternative" ("true") selects the
// 0xE7 framing and the alternative ENGINE_STOP/RESUME wire layout
// (MSG_OIL_CONTROL rather than MSG_TERMINAL_CONTROL).
type Encoder struct{}

// NewEncoder creates an Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Encode implements protocol.ProtocolEncoder.
func (e *Encoder) Encode(sess *session.DeviceSession, cmd model.Command) ([]byte, error) {
	alternative := attrBool(sess, "protocol.alternative")

	switch cmd.Type {
	case model.CommandRebootDevice:
		body := []byte{0x01, ParamReboot, 0x01, 0x03}
		return formatMessage(MsgParameterSetting, sess.UniqueId, false, body, alternative), nil

	case model.CommandPositionPeriodic:
		freq, ok := cmd.Frequency()
		if !ok {
			return nil, protocol.ErrCommandUnsupported
		}
		body := []byte{0x01, ParamReportFreq, 0x04,
			byte(freq >> 24), byte(freq >> 16), byte(freq >> 8), byte(freq)}
		return formatMessage(MsgParameterSetting, sess.UniqueId, false, body, alternative), nil

	case model.CommandAlarmArm, model.CommandAlarmDisarm:
		user := "user"
		value := byte(0x00)
		if cmd.Type == model.CommandAlarmArm {
			value = 0x01
		}
		body := []byte{0x01, ParamAlarmArm, byte(1 + len(user)), value}
		body = append(body, []byte(user)...)
		return formatMessage(MsgParameterSetting, sess.UniqueId, false, body, alternative), nil

	case model.CommandEngineStop, model.CommandEngineResume:
		return e.encodeEngineCommand(sess, cmd, alternative)

	case model.CommandCustom:
		return e.encodeCustom(sess, cmd, alternative)
	}

	return nil, protocol.ErrCommandUnsupported
}

func (e *Encoder) encodeEngineCommand(sess *session.DeviceSession, cmd model.Command, alternative bool) ([]byte, error) {
	stop := cmd.Type == model.CommandEngineStop

	if alternative {
		flag := byte(0x00)
		if stop {
			flag = 0x01
		}
		body := append([]byte{flag}, codec.EncodeBCDDateTime(time.Now())...)
		return formatMessage(MsgOilControl, sess.UniqueId, false, body, alternative), nil
	}

	if sess.Model == "VL300" {
		payload := "#0;1"
		if !stop {
			payload = "#0;0"
		}
		return formatMessage(MsgSendTextMessage, sess.UniqueId, false, []byte(payload), alternative), nil
	}

	control := byte(0xF0)
	if !stop {
		control = 0xF1
	}
	return formatMessage(MsgTerminalControl, sess.UniqueId, false, []byte{control}, alternative), nil
}

func (e *Encoder) encodeCustom(sess *session.DeviceSession, cmd model.Command, alternative bool) ([]byte, error) {
	data, _ := cmd.Data()

	switch sess.Model {
	case "AL300", "GL100", "VL300":
		body := []byte{byte(ParamCustomAT >> 8), byte(ParamCustomAT), byte(len(data))}
		body = append(body, []byte(data)...)
		return formatMessage(MsgConfigurationParameters, sess.UniqueId, false, body, alternative), nil

	case "BSJ":
		encoded, err := encodeGbk(data)
		if err != nil {
			return nil, err
		}
		return formatMessage(MsgSendTextMessage, sess.UniqueId, false, encoded, alternative), nil

	default:
		raw, err := hex.DecodeString(data)
		if err != nil {
			return nil, protocol.ErrCommandUnsupported
		}
		return formatMessage(MsgTransparent, sess.UniqueId, false, raw, alternative), nil
	}
}

// encodeGbk transcodes text to GBK, the encoding BSJ devices expect for
// MSG_SEND_TEXT_MESSAGE (§4.5). Characters with no GBK representation make
// the transcoder fail rather than emit mojibake.
func encodeGbk(text string) ([]byte, error) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String(text)
	if err != nil {
		return nil, protocol.ErrCommandUnsupported
	}
	return []byte(encoded), nil
}

func attrBool(sess *session.DeviceSession, key string) bool {
	return sess.Attr(key, "") == "true"
}
