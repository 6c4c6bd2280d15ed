// Package directory is the injected device-directory lookup the session
// registry consults to resolve a device-reported uniqueId to an internal
// device id, model and attribute bag (§6 "injected lookup uniqueId ->
// {deviceId, model, attributes}"). It is an out-of-scope external
// collaborator per the core spec; this package provides one concrete,
// GORM-backed implementation plus an in-memory one for tests.
package directory

import (
	"encoding/json"
	"errors"
	"sync"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a uniqueId has no directory entry and the
// gateway is not configured to auto-register unknown devices.
var ErrNotFound = errors.New("directory: device not found")

// Entry is a device directory record.
type Entry struct {
	DeviceId   uint
	UniqueId   string
	Model      string
	Attributes map[string]interface{}
}

// Lookup resolves a device-reported uniqueId to a directory Entry.
type Lookup interface {
	Find(uniqueId string) (Entry, error)
	// Register creates an entry on the fly for gateways configured to
	// auto-register unknown devices; returns the new entry.
	Register(uniqueId string) (Entry, error)
}

// Device is the GORM model backing the directory table.
type Device struct {
	ID         uint   `gorm:"primarykey"`
	UniqueId   string `gorm:"uniqueIndex;not null;size:32"`
	Model      string `gorm:"size:32"`
	Attributes string `gorm:"type:text"` // JSON-encoded attribute bag
}

func (Device) TableName() string { return "directory_devices" }

// GormLookup is the persistent directory implementation, grounded on the
// teacher's internal/models/device.go device table and internal/db
// connection pattern.
type GormLookup struct {
	db           *gorm.DB
	autoRegister bool
}

// NewGormLookup wraps an existing *gorm.DB connection.
func NewGormLookup(db *gorm.DB, autoRegister bool) *GormLookup {
	return &GormLookup{db: db, autoRegister: autoRegister}
}

func (l *GormLookup) Find(uniqueId string) (Entry, error) {
	var d Device
	if err := l.db.Where("unique_id = ?", uniqueId).First(&d).Error; err != nil {
		if l.autoRegister {
			return l.Register(uniqueId)
		}
		return Entry{}, ErrNotFound
	}
	return toEntry(d), nil
}

func (l *GormLookup) Register(uniqueId string) (Entry, error) {
	d := Device{UniqueId: uniqueId}
	if err := l.db.Create(&d).Error; err != nil {
		return Entry{}, err
	}
	return toEntry(d), nil
}

func toEntry(d Device) Entry {
	attrs := map[string]interface{}{}
	if d.Attributes != "" {
		if err := json.Unmarshal([]byte(d.Attributes), &attrs); err != nil {
			attrs = map[string]interface{}{}
		}
	}
	return Entry{DeviceId: d.ID, UniqueId: d.UniqueId, Model: d.Model, Attributes: attrs}
}

// MemoryLookup is an in-memory Lookup used by tests and local runs without
// a database.
type MemoryLookup struct {
	mu           sync.Mutex
	autoRegister bool
	byUniqueId   map[string]Entry
	next         uint
}

// NewMemoryLookup creates an empty in-memory directory.
func NewMemoryLookup(autoRegister bool) *MemoryLookup {
	return &MemoryLookup{
		autoRegister: autoRegister,
		byUniqueId:   make(map[string]Entry),
		next:         1,
	}
}

// Seed pre-populates an entry, e.g. for tests.
func (l *MemoryLookup) Seed(uniqueId, model string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Entry{DeviceId: l.next, UniqueId: uniqueId, Model: model, Attributes: map[string]interface{}{}}
	l.byUniqueId[uniqueId] = e
	l.next++
	return e
}

func (l *MemoryLookup) Find(uniqueId string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.byUniqueId[uniqueId]; ok {
		return e, nil
	}
	if l.autoRegister {
		return l.registerLocked(uniqueId)
	}
	return Entry{}, ErrNotFound
}

func (l *MemoryLookup) Register(uniqueId string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.registerLocked(uniqueId)
}

func (l *MemoryLookup) registerLocked(uniqueId string) (Entry, error) {
	e := Entry{DeviceId: l.next, UniqueId: uniqueId, Attributes: map[string]interface{}{}}
	l.byUniqueId[uniqueId] = e
	l.next++
	return e, nil
}
