package beacon

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beacon-sdk/beacon-go/internal/debuglog"
	"github.com/beacon-sdk/beacon-go/storage"
)

// MetaKey is the store key of the persisted meta record.
const MetaKey = "beacon_meta"

type metaRecord struct {
	ResetCookie   bool   `json:"rc_pending,omitempty" msgpack:"rc_pending,omitempty"`
	LastSyncTime  *int64 `json:"lsTime,omitempty" msgpack:"lsTime,omitempty"`
	ExpirySeconds *int64 `json:"exTs,omitempty" msgpack:"exTs,omitempty"`
}

// MetaState is the small persisted record the flag evaluator reads: a
// one-shot cookie-reset indicator and the profile sync window.
type MetaState struct {
	store storage.Store
	codec storage.Codec
	mu    sync.Mutex
}

// NewMetaState returns meta state persisted in store. A nil codec means JSON.
func NewMetaState(store storage.Store, codec storage.Codec) *MetaState {
	if codec == nil {
		codec = storage.JSON
	}
	return &MetaState{store: store, codec: codec}
}

// load returns the record; unreadable state is treated as absent.
func (m *MetaState) load() metaRecord {
	var rec metaRecord
	data, err := m.store.Read(MetaKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			debuglog.Printf("reading meta state: %v", err)
		}
		return rec
	}
	if err := m.codec.Unmarshal(data, &rec); err != nil {
		debuglog.Printf("meta state is corrupt, ignoring it: %v", err)
		return metaRecord{}
	}
	return rec
}

func (m *MetaState) save(rec metaRecord) error {
	data, err := m.codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode meta state: %w", err)
	}
	if err := m.store.Write(MetaKey, data); err != nil {
		return fmt.Errorf("write meta state: %w", err)
	}
	return nil
}

// ArmResetCookie sets the one-shot cookie-reset indicator.
func (m *MetaState) ArmResetCookie() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.load()
	rec.ResetCookie = true
	return m.save(rec)
}

// TakeResetCookie reports whether the cookie-reset indicator was set and
// clears it, so each arming is observed at most once.
func (m *MetaState) TakeResetCookie() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.load()
	if !rec.ResetCookie {
		return false
	}
	rec.ResetCookie = false
	if err := m.save(rec); err != nil {
		debuglog.Printf("clearing reset cookie indicator: %v", err)
	}
	return true
}

// ResetCookiePending reports the indicator without clearing it.
func (m *MetaState) ResetCookiePending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load().ResetCookie
}

// SyncWindow returns the last profile sync time (Unix seconds) and its expiry
// in seconds. ok is false when either value was never recorded.
func (m *MetaState) SyncWindow() (lastSync, expirySeconds int64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.load()
	if rec.LastSyncTime == nil || rec.ExpirySeconds == nil {
		return 0, 0, false
	}
	return *rec.LastSyncTime, *rec.ExpirySeconds, true
}

// RecordSync stores a completed profile sync at time at, valid for expiry.
func (m *MetaState) RecordSync(at time.Time, expiry time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.load()
	last := at.Unix()
	seconds := int64(expiry / time.Second)
	rec.LastSyncTime = &last
	rec.ExpirySeconds = &seconds
	return m.save(rec)
}
