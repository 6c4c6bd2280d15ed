// Package model defines the normalized records that flow out of the
// protocol decoders: Position, Network and the outbound Command.
package model

import (
	"errors"
	"math"
	"time"

	"tracker_gateway/internal/geo"
)

// ErrOutOfRangeCoordinate is returned by SetLatitude/SetLongitude (and the
// paired WGS-84 setters) when a caller tries to publish a corrupt fix.
var ErrOutOfRangeCoordinate = errors.New("model: coordinate out of range")

// CellTower is one observed GSM/LTE cell.
type CellTower struct {
	MCC    int      `json:"mcc"`
	MNC    int      `json:"mnc"`
	LAC    int      `json:"lac"`
	CID    int      `json:"cid"`
	Signal *int     `json:"signal,omitempty"`
	TA     *int     `json:"ta,omitempty"`
}

// WifiAccessPoint is one observed WiFi AP.
type WifiAccessPoint struct {
	BSSID string `json:"bssid"`
	RSSI  *int   `json:"rssi,omitempty"`
}

// Network bundles the radio environment a device observed at fix time.
type Network struct {
	CellTowers []CellTower       `json:"cellTowers,omitempty"`
	WifiAPs    []WifiAccessPoint `json:"wifiAccessPoints,omitempty"`
}

// AddCellTower appends a cell tower observation.
func (n *Network) AddCellTower(c CellTower) {
	n.CellTowers = append(n.CellTowers, c)
}

// AddWifiAP appends a WiFi access point observation.
func (n *Network) AddWifiAP(w WifiAccessPoint) {
	n.WifiAPs = append(n.WifiAPs, w)
}

// Position is the normalized output of every protocol decoder in this
// gateway. Decoders populate it field-by-field; the session/downstream
// layers never interpret protocol-specific bytes again once a Position
// exists.
type Position struct {
	Protocol string `json:"protocol"`
	DeviceId uint   `json:"deviceId"`

	ServerTime time.Time  `json:"serverTime"`
	DeviceTime *time.Time `json:"deviceTime,omitempty"`
	FixTime    *time.Time `json:"fixTime,omitempty"`

	Valid    bool `json:"valid"`
	Outdated bool `json:"outdated"`

	// Latitude/Longitude hold the post-transform (GCJ-02 where applicable)
	// coordinates. LatitudeWgs84/LongitudeWgs84 hold the raw device input.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	LatitudeWgs84  float64 `json:"latitudeWgs84"`
	LongitudeWgs84 float64 `json:"longitudeWgs84"`

	Altitude float64 `json:"altitude"`
	Speed    float64 `json:"speed"`
	Course   float64 `json:"course"`
	Accuracy float64 `json:"accuracy"`

	Address *string  `json:"address,omitempty"`
	Network *Network `json:"network,omitempty"`

	GeofenceIds []int `json:"geofenceIds,omitempty"`

	Attributes map[string]interface{} `json:"attributes,omitempty"`

	// latchLat/latchLon record which WGS-84 axis was written since the
	// last publish; the transform fires only once both are set (§4.6).
	latchLat bool
	latchLon bool
}

// NewPosition allocates a Position for the given protocol/device, with
// ServerTime defaulted to now and an empty attribute bag.
func NewPosition(protocol string, deviceId uint, now time.Time) *Position {
	return &Position{
		Protocol:   protocol,
		DeviceId:   deviceId,
		ServerTime: now,
		Attributes: make(map[string]interface{}),
	}
}

// SetLatitude validates and stores the post-transform latitude directly
// (bypassing the WGS-84 pair-gate). The WGS-84 setters call it to store the
// transformed value.
func (p *Position) SetLatitude(lat float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return ErrOutOfRangeCoordinate
	}
	p.Latitude = lat
	return nil
}

// SetLongitude is the longitude counterpart of SetLatitude.
func (p *Position) SetLongitude(lon float64) error {
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return ErrOutOfRangeCoordinate
	}
	p.Longitude = lon
	return nil
}

// SetWgs84Latitude records a WGS-84 latitude reading. If a longitude
// reading is already latched, the pair fires the transform immediately and
// resets both latches; otherwise it just latches this axis.
func (p *Position) SetWgs84Latitude(lat float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return ErrOutOfRangeCoordinate
	}
	p.LatitudeWgs84 = lat
	p.latchLat = true
	return p.maybeTransform()
}

// SetWgs84Longitude is the longitude counterpart of SetWgs84Latitude.
func (p *Position) SetWgs84Longitude(lon float64) error {
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return ErrOutOfRangeCoordinate
	}
	p.LongitudeWgs84 = lon
	p.latchLon = true
	return p.maybeTransform()
}

// SetFixCoordinates sets both WGS-84 axes in one call and fires the
// transform unconditionally. Every decoder in this repository uses it; the
// pair-gated two-axis setters are kept as an alternative API, and no
// decoder here calls them.
func (p *Position) SetFixCoordinates(latWgs, lonWgs float64) error {
	if math.IsNaN(latWgs) || latWgs < -90 || latWgs > 90 {
		return ErrOutOfRangeCoordinate
	}
	if math.IsNaN(lonWgs) || lonWgs < -180 || lonWgs > 180 {
		return ErrOutOfRangeCoordinate
	}
	p.LatitudeWgs84 = latWgs
	p.LongitudeWgs84 = lonWgs
	p.latchLat = true
	p.latchLon = true
	return p.maybeTransform()
}

func (p *Position) maybeTransform() error {
	if !p.latchLat || !p.latchLon {
		return nil
	}
	lat, lon := geo.TransformWgs84ToGcj02(p.LatitudeWgs84, p.LongitudeWgs84)
	if err := p.SetLatitude(lat); err != nil {
		return err
	}
	if err := p.SetLongitude(lon); err != nil {
		return err
	}
	p.latchLat = false
	p.latchLon = false
	return nil
}

// AddAlarm appends an alarm token to the "alarm" attribute, comma-joined,
// without deduplication — the order tokens are added in is preserved.
func (p *Position) AddAlarm(token string) {
	if p.Attributes == nil {
		p.Attributes = make(map[string]interface{})
	}
	existing, ok := p.Attributes["alarm"].(string)
	if !ok || existing == "" {
		p.Attributes["alarm"] = token
		return
	}
	p.Attributes["alarm"] = existing + "," + token
}

// Set stores a reserved or free-form attribute.
func (p *Position) Set(key string, value interface{}) {
	if p.Attributes == nil {
		p.Attributes = make(map[string]interface{})
	}
	p.Attributes[key] = value
}
