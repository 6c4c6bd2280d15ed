package huabao

import (
	"time"

	"tracker_gateway/internal/codec"
	"tracker_gateway/internal/model"
	"tracker_gateway/internal/session"
)

// decodeBatch0704 handles MSG_LOCATION_BATCH (§4.3.5): count(u16),
// locationType(u8), then `count` repeats of length(u16)+slice, each slice
// recursively decoded as a 0x0200 body. A non-zero locationType marks
// every produced Position archive=true.
func (d *Decoder) decodeBatch0704(sess *session.DeviceSession, body []byte, id string, now time.Time) ([]*model.Position, error) {
	if len(body) < 3 {
		return nil, nil
	}
	count := int(codec.U16(body[0:2]))
	locationType := body[2]
	cursor := 3

	positions := make([]*model.Position, 0, count)
	for i := 0; i < count && cursor+2 <= len(body); i++ {
		length := int(codec.U16(body[cursor : cursor+2]))
		cursor += 2
		if cursor+length > len(body) {
			break
		}
		slice := body[cursor : cursor+length]
		cursor += length

		pos, err := d.decodeLocationBody(sess, slice, id, now)
		if err != nil {
			continue
		}
		if locationType != 0 {
			pos.Set("archive", true)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// decodeBatch0210 handles MSG_LOCATION_BATCH_2: repeated length(u8)+slice,
// each slice a 0x0200 body, until the body is exhausted.
func (d *Decoder) decodeBatch0210(sess *session.DeviceSession, body []byte, id string, now time.Time) ([]*model.Position, error) {
	var positions []*model.Position
	cursor := 0
	for cursor+1 <= len(body) {
		length := int(body[cursor])
		cursor++
		if cursor+length > len(body) {
			break
		}
		slice := body[cursor : cursor+length]
		cursor += length

		pos, err := d.decodeLocationBody(sess, slice, id, now)
		if err != nil {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}
