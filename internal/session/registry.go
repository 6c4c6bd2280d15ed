// Package session implements the device-session registry: the mapping
// from a transport peer to a persistent logical device, and the per-device
// scratch state (timezone, last known location) decoders consult.
package session

import (
	"sync"
	"time"

	"tracker_gateway/internal/directory"
	"tracker_gateway/internal/model"
)

// KeyTimezone is the only attribute key the core itself consumes; callers
// are free to stash additional protocol-specific keys in Attributes.
const KeyTimezone = "timezone"

// DeviceSession is one entry per (transport peer, unique device id) pair.
// Lifecycle: created on first successful identification of a connection,
// unbound from its transport peer on connection close, removed by the idle
// sweep, and picked back up by UniqueId on reconnection until then.
type DeviceSession struct {
	mu sync.Mutex

	DeviceId uint
	UniqueId string
	Model    string

	Attributes map[string]interface{}

	lastLocation *model.Position
	lastSeen     time.Time
}

// Attr reads a scratch attribute, defaulting to fallback when unset.
func (s *DeviceSession) Attr(key, fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.Attributes[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// SetAttr stores a scratch attribute.
func (s *DeviceSession) SetAttr(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attributes[key] = value
}

// Timezone returns the session's configured timezone, defaulting to
// "GMT+08:00" per §4.3 if none was ever set.
func (s *DeviceSession) Timezone() *time.Location {
	tz := s.Attr(KeyTimezone, "GMT+08:00")
	loc, err := loadOffsetLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Touch updates the last-known-location snapshot and the idle-expiry
// clock atomically, so concurrent readers never observe a half-updated
// pair (§5: "attribute updates and last-known-location writes are atomic
// pairs").
func (s *DeviceSession) Touch(pos *model.Position, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLocation = pos
	s.lastSeen = now
}

// LastSeen reports the last Touch time.
func (s *DeviceSession) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// GetLastLocation implements the §3 helper: it copies fix coordinates,
// validity and time from the cached snapshot into a new Position whose
// only device data are non-positional attributes — the common pattern for
// heartbeats and command responses that carry no fresh fix.
func (s *DeviceSession) GetLastLocation(protocol string, now time.Time) *model.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastLocation == nil {
		return nil
	}
	p := model.NewPosition(protocol, s.DeviceId, now)
	p.Latitude = s.lastLocation.Latitude
	p.Longitude = s.lastLocation.Longitude
	p.LatitudeWgs84 = s.lastLocation.LatitudeWgs84
	p.LongitudeWgs84 = s.lastLocation.LongitudeWgs84
	p.Valid = s.lastLocation.Valid
	p.Outdated = true
	p.FixTime = s.lastLocation.FixTime
	return p
}

func loadOffsetLocation(tz string) (*time.Location, error) {
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}
	// Fall back to "GMT+08:00"-style fixed offsets, which time.LoadLocation
	// does not understand natively.
	sign := 1
	rest := tz
	switch {
	case len(tz) >= 4 && tz[:4] == "GMT+":
		rest = tz[4:]
	case len(tz) >= 4 && tz[:4] == "GMT-":
		sign = -1
		rest = tz[4:]
	default:
		return time.UTC, errUnrecognizedTimezone
	}
	var hh, mm int
	if _, err := parseOffset(rest, &hh, &mm); err != nil {
		return time.UTC, err
	}
	offset := sign * (hh*3600 + mm*60)
	return time.FixedZone(tz, offset), nil
}

func parseOffset(s string, hh, mm *int) (int, error) {
	// expects "HH:MM"
	if len(s) != 5 || s[2] != ':' {
		return 0, errUnrecognizedTimezone
	}
	*hh = int(s[0]-'0')*10 + int(s[1]-'0')
	*mm = int(s[3]-'0')*10 + int(s[4]-'0')
	return 0, nil
}

// Registry maps transport bindings and directory-resolved unique ids to
// DeviceSessions, and is the only piece of state shared across
// connections (§5).
type Registry struct {
	mu          sync.Mutex
	lookup      directory.Lookup
	byUniqueId  map[string]*DeviceSession
	byBinding   map[string]*DeviceSession
	idleTimeout time.Duration
}

// NewRegistry builds a Registry backed by the given directory Lookup.
func NewRegistry(lookup directory.Lookup, idleTimeout time.Duration) *Registry {
	return &Registry{
		lookup:      lookup,
		byUniqueId:  make(map[string]*DeviceSession),
		byBinding:   make(map[string]*DeviceSession),
		idleTimeout: idleTimeout,
	}
}

// Get implements getDeviceSession(channel, remoteAddress[, uniqueId]).
// With a uniqueId it resolves (and caches) through the directory; without
// one it resolves purely through the prior (channel, remoteAddress)
// binding. Returns (nil, false) for an unknown device — the caller must
// drop the message without an ack.
func (r *Registry) Get(channel, remoteAddress, uniqueId string) (*DeviceSession, bool) {
	binding := channel + "|" + remoteAddress

	r.mu.Lock()
	defer r.mu.Unlock()

	if uniqueId == "" {
		sess, ok := r.byBinding[binding]
		return sess, ok
	}

	if sess, ok := r.byUniqueId[uniqueId]; ok {
		r.byBinding[binding] = sess
		return sess, true
	}

	entry, err := r.lookup.Find(uniqueId)
	if err != nil {
		return nil, false
	}

	sess := &DeviceSession{
		DeviceId:   entry.DeviceId,
		UniqueId:   entry.UniqueId,
		Model:      entry.Model,
		Attributes: cloneAttrs(entry.Attributes),
	}
	r.byUniqueId[uniqueId] = sess
	r.byBinding[binding] = sess
	return sess, true
}

// Unbind drops a (channel, remoteAddress) binding on connection close;
// the DeviceSession itself survives for the idle-expiry sweep to collect
// (or for reconnection to pick back up by uniqueId).
func (r *Registry) Unbind(channel, remoteAddress string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byBinding, channel+"|"+remoteAddress)
}

// SweepIdle removes sessions that have not been Touch()-ed within the
// configured idle timeout. Intended to run on a ticker from main, matching
// the teacher's one-goroutine-per-concern style.
func (r *Registry) SweepIdle(now time.Time) int {
	if r.idleTimeout <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for uniqueId, sess := range r.byUniqueId {
		if now.Sub(sess.LastSeen()) > r.idleTimeout {
			delete(r.byUniqueId, uniqueId)
			removed++
		}
	}
	return removed
}

func cloneAttrs(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var errUnrecognizedTimezone = &timezoneError{}

type timezoneError struct{}

func (*timezoneError) Error() string { return "session: unrecognized timezone format" }
