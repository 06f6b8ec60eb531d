package beacon

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/beacon-sdk/beacon-go/internal/debuglog"
	"github.com/beacon-sdk/beacon-go/storage"
)

// BackupKey is the store key the backup log blob is persisted under.
const BackupKey = "beacon_backup"

var errCorruptBackup = errors.New("backup log is corrupt")

// BackupEntry is one persisted outbound request.
//
// Fired is absent until the request was handed to a transport. Entries are
// never removed individually, only marked.
type BackupEntry struct {
	RequestNumber int64  `json:"-" msgpack:"-"`
	Query         string `json:"q" msgpack:"q"`
	Fired         bool   `json:"fired,omitempty" msgpack:"fired,omitempty"`
}

type backupMap map[int64]BackupEntry

// BackupLog is the persistent, request-number ordered log of outbound
// requests. Every request is written here before a send is attempted, so a
// crash between persist and transmit leaves an unfired entry for Replay.
//
// The whole log lives in a single blob. A mutex serializes read-modify-write
// cycles within one process; writers in other processes are not coordinated.
type BackupLog struct {
	store storage.Store
	codec storage.Codec

	mu         sync.Mutex
	processing atomic.Bool
}

// NewBackupLog returns a log persisted in store. A nil codec means JSON.
func NewBackupLog(store storage.Store, codec storage.Codec) *BackupLog {
	if codec == nil {
		codec = storage.JSON
	}
	return &BackupLog{store: store, codec: codec}
}

// read returns the persisted map. A missing blob yields (nil, nil); an
// undecodable one yields errCorruptBackup.
func (l *BackupLog) read() (backupMap, error) {
	data, err := l.store.Read(BackupKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup log: %w", err)
	}
	var m backupMap
	if err := l.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptBackup, err)
	}
	return m, nil
}

func (l *BackupLog) write(m backupMap) error {
	data, err := l.codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode backup log: %w", err)
	}
	if err := l.store.Write(BackupKey, data); err != nil {
		return fmt.Errorf("write backup log: %w", err)
	}
	return nil
}

// Persist stores query under requestNumber without a fired mark, replacing
// any previous entry with that number. A missing or corrupt log is treated
// as empty. A store that cannot be read is left untouched.
func (l *BackupLog) Persist(requestNumber int64, query string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.read()
	if errors.Is(err, errCorruptBackup) {
		debuglog.Printf("%v, starting a new one", err)
	} else if err != nil {
		return err
	}
	if m == nil {
		m = make(backupMap)
	}
	m[requestNumber] = BackupEntry{Query: query}

	if err := l.write(m); err != nil {
		return err
	}
	debuglog.Printf("stored in %s reqNo : %d -> %s", BackupKey, requestNumber, query)
	return nil
}

// Replay hands every unfired entry to t in ascending request-number order
// and marks it fired once the hand-off is accepted. Entries without a query
// are marked fired without a send. The log is written back once, after all
// entries were processed.
//
// Replay stops at the first refused hand-off; that entry and the ones after
// it stay unfired. The refusal is returned wrapped.
func (l *BackupLog) Replay(t Transport) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.read()
	if err != nil {
		debuglog.Printf("skipping replay: %v", err)
		return 0, nil
	}
	if m == nil {
		return 0, nil
	}

	l.processing.Store(true)
	defer l.processing.Store(false)

	var (
		fired   int
		changed bool
		refused error
	)
	for _, rn := range m.sortedKeys() {
		entry := m[rn]
		if entry.Fired {
			continue
		}
		if entry.Query != "" {
			debuglog.Printf("Processing backup event : %s", entry.Query)
			if err := t.FireRequest(entry.Query, FireOptions{Replay: true}); err != nil {
				refused = fmt.Errorf("replay of request %d refused: %w", rn, err)
				break
			}
			fired++
		}
		entry.Fired = true
		m[rn] = entry
		changed = true
	}

	if changed {
		if err := l.write(m); err != nil {
			return fired, errors.Join(refused, err)
		}
	}
	return fired, refused
}

// MarkFired marks a live-sent entry. Unknown request numbers are ignored.
func (l *BackupLog) MarkFired(requestNumber int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.read()
	if err != nil {
		return err
	}
	entry, ok := m[requestNumber]
	if !ok || entry.Fired {
		return nil
	}
	entry.Fired = true
	m[requestNumber] = entry
	return l.write(m)
}

// MarkUnfired clears the fired mark of the entries whose query is one of
// queries, so the next replay sends them again. It returns how many entries
// changed.
func (l *BackupLog) MarkUnfired(queries ...string) (int, error) {
	if len(queries) == 0 {
		return 0, nil
	}
	want := make(map[string]bool, len(queries))
	for _, q := range queries {
		want[q] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.read()
	if err != nil {
		return 0, err
	}
	var changed int
	for rn, entry := range m {
		if entry.Fired && want[entry.Query] {
			entry.Fired = false
			m[rn] = entry
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, l.write(m)
}

// Entries returns a snapshot of the log in ascending request-number order.
func (l *BackupLog) Entries() ([]BackupEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.read()
	if err != nil {
		return nil, err
	}
	entries := make([]BackupEntry, 0, len(m))
	for _, rn := range m.sortedKeys() {
		entry := m[rn]
		entry.RequestNumber = rn
		entries = append(entries, entry)
	}
	return entries, nil
}

// MaxRequestNumber returns the highest request number in the log, or 0.
func (l *BackupLog) MaxRequestNumber() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.read()
	if err != nil {
		return 0, err
	}
	var highest int64
	for rn := range m {
		if rn > highest {
			highest = rn
		}
	}
	return highest, nil
}

// Clear removes the whole log.
func (l *BackupLog) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.Delete(BackupKey); err != nil {
		return fmt.Errorf("clear backup log: %w", err)
	}
	return nil
}

// Processing reports whether a replay is in progress.
func (l *BackupLog) Processing() bool {
	return l.processing.Load()
}

func (m backupMap) sortedKeys() []int64 {
	keys := make([]int64, 0, len(m))
	for rn := range m {
		keys = append(keys, rn)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
