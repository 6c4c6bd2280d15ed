package huabao

import (
	"encoding/binary"
	"fmt"

	"tracker_gateway/internal/codec"
	"tracker_gateway/internal/protocol"
)

// envelope is the parsed Huabao message envelope (§4.3), with the leading
// and trailing delimiter bytes already removed by the FrameDecoder.
type envelope struct {
	Type      uint16
	Attribute uint16
	Id        string // decoded uniqueId: BCD digits verbatim, or derived IMEI
	ShortIndex bool
	Index     uint16
	Body      []byte
	Checksum  byte
}

// idLength returns 7 for alternative framing, else 6, per §4.3.
func idLength(alternative bool) int {
	if alternative {
		return 7
	}
	return 6
}

func parseEnvelope(frameBody []byte, alternative bool) (envelope, error) {
	const headMin = 2 + 2 // type + attribute
	if len(frameBody) < headMin+1 {
		return envelope{}, protocol.ErrMalformedFrame
	}

	cursor := 0
	msgType := binary.BigEndian.Uint16(frameBody[cursor:])
	cursor += 2
	attribute := binary.BigEndian.Uint16(frameBody[cursor:])
	cursor += 2

	idLen := idLength(alternative)
	if len(frameBody) < cursor+idLen {
		return envelope{}, protocol.ErrMalformedFrame
	}
	idBytes := frameBody[cursor : cursor+idLen]
	cursor += idLen

	shortIndex := msgType == MsgLocationReport2 || msgType == MsgLocationReportBlind
	indexLen := 2
	if shortIndex {
		indexLen = 1
	}
	if len(frameBody) < cursor+indexLen+1 { // +1 for checksum
		return envelope{}, protocol.ErrMalformedFrame
	}
	var index uint16
	if shortIndex {
		index = uint16(frameBody[cursor])
	} else {
		index = binary.BigEndian.Uint16(frameBody[cursor:])
	}
	cursor += indexLen

	checksum := frameBody[len(frameBody)-1]
	body := frameBody[cursor : len(frameBody)-1]

	computed := codec.XorChecksum(frameBody[:len(frameBody)-1])
	if computed != checksum {
		return envelope{}, protocol.ErrBadChecksum
	}

	id, err := decodeId(idBytes)
	if err != nil {
		return envelope{}, err
	}

	return envelope{
		Type:       msgType,
		Attribute:  attribute,
		Id:         id,
		ShortIndex: shortIndex,
		Index:      index,
		Body:       body,
		Checksum:   checksum,
	}, nil
}

// decodeId turns the envelope's raw id field into a decimal device id
// string. Most devices send the id BCD-packed (two decimal digits per
// byte); those are used verbatim. Devices that instead pack a raw binary
// identifier (any nibble outside 0-9) have their id reconstructed as an
// IMEI: the first two bytes and next four bytes combine into a 48-bit
// integer, printed as 14 digits, with a Luhn check digit appended.
func decodeId(idBytes []byte) (string, error) {
	if digits, err := codec.DecodeBCD(idBytes); err == nil {
		return digits, nil
	}
	if len(idBytes) < 6 {
		return "", protocol.ErrMalformedFrame
	}
	high := binary.BigEndian.Uint16(idBytes[0:2])
	low := binary.BigEndian.Uint32(idBytes[2:6])
	n := uint64(high)<<32 | uint64(low)
	digits := fmt.Sprintf("%014d", n)
	check := codec.LuhnCheckDigit(digits)
	return digits + string('0'+check), nil
}

// formatMessage builds a response/command body per §4.3.7: delimiter, type
// (2), bodyLength(2), id, short-index marker, body, xor checksum over
// everything after the leading delimiter, delimiter. The returned bytes are
// byte-stuffed and ready to write to the socket.
func formatMessage(msgType uint16, idDigits string, shortIndex bool, body []byte, alternative bool) []byte {
	idBytes := encodeIdForResponse(idDigits, alternative)

	buf := make([]byte, 0, 16+len(body))
	buf = appendU16(buf, msgType)
	buf = appendU16(buf, uint16(len(body)))
	buf = append(buf, idBytes...)
	if shortIndex {
		buf = append(buf, 0x01)
	} else {
		buf = append(buf, 0x00, 0x00)
	}
	buf = append(buf, body...)

	checksum := codec.XorChecksum(buf)

	delim := byte(0x7E)
	if alternative {
		delim = 0xE7
	}

	framed := make([]byte, 0, len(buf)+3)
	framed = append(framed, delim)
	framed = append(framed, buf...)
	framed = append(framed, checksum)
	framed = append(framed, delim)

	return Encode(framed, alternative)
}

func appendU16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

// encodeIdForResponse re-derives the wire id bytes for a response. An id
// string exactly idLength characters long is sent back verbatim as ASCII;
// any other id is BCD-encoded and cut to idLength bytes.
func encodeIdForResponse(idDigits string, alternative bool) []byte {
	length := idLength(alternative)
	if len(idDigits) == length {
		return []byte(idDigits)
	}
	return codec.EncodeBCD(idDigits)[:length]
}
