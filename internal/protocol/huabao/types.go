// Package huabao implements the JT/T 808-style "Huabao" binary protocol:
// escape-stuffed framing, a TLV-rich location report, and the command
// encoder. It is the representative complex binary protocol this gateway
// exists to decode.
package huabao

// Message type codes (§4.3).
const (
	MsgTerminalGeneralResponse = 0x0001
	MsgGeneralResponse         = 0x8001
	MsgGeneralResponse2        = 0x4401

	MsgHeartbeat   = 0x0002
	MsgHeartbeat2  = 0x0506

	MsgTerminalRegister         = 0x0100
	MsgTerminalRegisterResponse = 0x8100
	MsgTerminalAuth             = 0x0102

	MsgLocationReport    = 0x0200
	MsgLocationBatch2    = 0x0210
	MsgLocationBatch     = 0x0704
	MsgLocationReport2   = 0x5501
	MsgLocationReportBlind = 0x5502

	MsgTimeSyncRequest = 0x0109

	MsgTransparent        = 0x0900
	MsgReportTextMessage  = 0x6006
	MsgCommandResponse    = 0x0701
	MsgAcceleration       = 0x2070

	MsgParameterSetting          = 0x8103
	MsgTerminalControl           = 0x8500
	MsgOilControl                = 0x8900
	MsgConfigurationParameters   = 0x8103
	MsgSendTextMessage           = 0x8300
)

// Parameter ids used by MSG_PARAMETER_SETTING (§4.5).
const (
	ParamReboot       = 0x23
	ParamReportFreq   = 0x06
	ParamAlarmArm     = 0x24
	ParamCustomAT     = 0xF030
)

// TLV ids in the 0x0200 location report body (§4.3.1).
const (
	tlvOdometer       = 0x01
	tlvFuel           = 0x02
	tlvDeviceTemp     = 0x06
	tlvInput          = 0x25
	tlvAdc1           = 0x2B
	tlvAdc2           = 0xA7
	tlvRSSI           = 0x30
	tlvSatellites     = 0x31
	tlvTemperatures   = 0x51
	tlvBatteryLevel56 = 0x56
	tlvAlarms57       = 0x57
	tlvEvent          = 0x60
	tlvPower61        = 0x61
	tlvLockRecords    = 0x63
	tlvBatteryLevel68 = 0x68
	tlvBattery69      = 0x69
	tlvTires          = 0x77
	tlvExtension80    = 0x80
	tlvPower82        = 0x82
	tlvOBD91          = 0x91
	tlvVin            = 0x94
	tlvCellOrNested   = 0xEB
	tlvOBDExtF3       = 0xF3
	tlvWifi           = 0xF4
)
