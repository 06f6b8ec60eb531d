package beacon

import (
	"errors"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-sdk/beacon-go/storage"
)

type failingStore struct {
	storage.Store
	readErr  error
	writeErr error
	// failWrites limits writeErr to that many writes; zero fails them all.
	failWrites int
}

func (s *failingStore) Read(key string) ([]byte, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.Store.Read(key)
}

func (s *failingStore) Write(key string, value []byte) error {
	if err := s.writeErr; err != nil {
		if s.failWrites > 0 {
			s.failWrites--
			if s.failWrites == 0 {
				s.writeErr = nil
			}
		}
		return err
	}
	return s.Store.Write(key, value)
}

func TestBackupLogPersistAndEntries(t *testing.T) {
	log := NewBackupLog(storage.NewMemory(), nil)

	require.NoError(t, log.Persist(2, "q2"))
	require.NoError(t, log.Persist(1, "q1"))
	require.NoError(t, log.Persist(10, "q10"))

	entries, err := log.Entries()
	require.NoError(t, err)

	want := []BackupEntry{
		{RequestNumber: 1, Query: "q1"},
		{RequestNumber: 2, Query: "q2"},
		{RequestNumber: 10, Query: "q10"},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
}

func TestBackupLogPersistReplacesEntry(t *testing.T) {
	log := NewBackupLog(storage.NewMemory(), nil)

	require.NoError(t, log.Persist(1, "old"))
	require.NoError(t, log.MarkFired(1))
	require.NoError(t, log.Persist(1, "new"))

	entries, err := log.Entries()
	require.NoError(t, err)
	assert.Equal(t, []BackupEntry{{RequestNumber: 1, Query: "new"}}, entries)
}

func TestBackupLogReplayOrder(t *testing.T) {
	log := NewBackupLog(storage.NewMemory(), nil)
	for _, rn := range []int64{3, 1, 12, 2} {
		require.NoError(t, log.Persist(rn, "q"+string(rune('a'+rn))))
	}
	transport := &MockTransport{}

	fired, err := log.Replay(transport)
	require.NoError(t, err)
	assert.Equal(t, 4, fired)

	want := []FiredRequest{
		{Query: "qb", Options: FireOptions{Replay: true}},
		{Query: "qc", Options: FireOptions{Replay: true}},
		{Query: "qd", Options: FireOptions{Replay: true}},
		{Query: "qm", Options: FireOptions{Replay: true}},
	}
	if diff := cmp.Diff(want, transport.Requests()); diff != "" {
		t.Errorf("replay mismatch (-want +got):\n%s", diff)
	}
}

func TestBackupLogReplayIsIdempotent(t *testing.T) {
	store := storage.NewMemory()
	log := NewBackupLog(store, nil)
	require.NoError(t, log.Persist(1, "q1"))
	require.NoError(t, log.Persist(2, "q2"))

	transport := &MockTransport{}
	fired, err := log.Replay(transport)
	require.NoError(t, err)
	assert.Equal(t, 2, fired)

	before, err := store.Read(BackupKey)
	require.NoError(t, err)

	fired, err = log.Replay(transport)
	require.NoError(t, err)
	assert.Equal(t, 0, fired)
	assert.Len(t, transport.Requests(), 2)

	after, err := store.Read(BackupKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := log.Entries()
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.Fired, "request %d not marked fired", e.RequestNumber)
	}
}

func TestBackupLogReplaySkipsFired(t *testing.T) {
	log := NewBackupLog(storage.NewMemory(), nil)
	require.NoError(t, log.Persist(1, "q1"))
	require.NoError(t, log.Persist(2, "q2"))
	require.NoError(t, log.MarkFired(1))

	transport := &MockTransport{}
	fired, err := log.Replay(transport)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, []string{"q2"}, transport.Queries())
}

func TestBackupLogReplayMarksEmptyQueryFired(t *testing.T) {
	log := NewBackupLog(storage.NewMemory(), nil)
	require.NoError(t, log.Persist(1, ""))
	require.NoError(t, log.Persist(2, "q2"))

	transport := &MockTransport{}
	fired, err := log.Replay(transport)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, []string{"q2"}, transport.Queries())

	entries, err := log.Entries()
	require.NoError(t, err)
	assert.True(t, entries[0].Fired)
}

func TestBackupLogReplayStopsAtRefusal(t *testing.T) {
	log := NewBackupLog(storage.NewMemory(), nil)
	for rn := int64(1); rn <= 3; rn++ {
		require.NoError(t, log.Persist(rn, "q"))
	}

	transport := &MockTransport{}
	transport.FailFrom(2, ErrTransportQueueFull)

	fired, err := log.Replay(transport)
	assert.Equal(t, 1, fired)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportQueueFull)

	entries, err := log.Entries()
	require.NoError(t, err)
	assert.True(t, entries[0].Fired)
	assert.False(t, entries[1].Fired)
	assert.False(t, entries[2].Fired)

	transport.SetError(nil)
	fired, err = log.Replay(transport)
	require.NoError(t, err)
	assert.Equal(t, 2, fired)
}

func TestBackupLogReplayEmpty(t *testing.T) {
	log := NewBackupLog(storage.NewMemory(), nil)
	transport := &MockTransport{}

	fired, err := log.Replay(transport)
	require.NoError(t, err)
	assert.Equal(t, 0, fired)
	assert.Empty(t, transport.Requests())
	assert.False(t, log.Processing())
}

func TestBackupLogCorruptIsTreatedAsEmpty(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.Write(BackupKey, []byte("{not json")))
	log := NewBackupLog(store, nil)

	fired, err := log.Replay(&MockTransport{})
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	require.NoError(t, log.Persist(5, "q5"))
	entries, err := log.Entries()
	require.NoError(t, err)
	assert.Equal(t, []BackupEntry{{RequestNumber: 5, Query: "q5"}}, entries)
}

func TestBackupLogPersistReadFailureKeepsLog(t *testing.T) {
	inner := storage.NewMemory()
	require.NoError(t, NewBackupLog(inner, nil).Persist(1, "q1"))

	errIO := errors.New("disk unavailable")
	store := &failingStore{Store: inner, readErr: errIO}
	err := NewBackupLog(store, nil).Persist(2, "q2")
	require.ErrorIs(t, err, errIO)

	entries, err := NewBackupLog(inner, nil).Entries()
	require.NoError(t, err)
	assert.Equal(t, []BackupEntry{{RequestNumber: 1, Query: "q1"}}, entries)
}

func TestBackupLogPersistWriteFailure(t *testing.T) {
	errIO := errors.New("disk full")
	log := NewBackupLog(&failingStore{Store: storage.NewMemory(), writeErr: errIO}, nil)
	assert.ErrorIs(t, log.Persist(1, "q1"), errIO)
}

func TestBackupLogMarkFiredUnknown(t *testing.T) {
	log := NewBackupLog(storage.NewMemory(), nil)
	require.NoError(t, log.MarkFired(42))

	entries, err := log.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBackupLogMaxRequestNumber(t *testing.T) {
	log := NewBackupLog(storage.NewMemory(), nil)

	highest, err := log.MaxRequestNumber()
	require.NoError(t, err)
	assert.Equal(t, int64(0), highest)

	require.NoError(t, log.Persist(7, "q7"))
	require.NoError(t, log.Persist(3, "q3"))
	highest, err = log.MaxRequestNumber()
	require.NoError(t, err)
	assert.Equal(t, int64(7), highest)
}

func TestBackupLogClear(t *testing.T) {
	store := storage.NewMemory()
	log := NewBackupLog(store, nil)
	require.NoError(t, log.Persist(1, "q1"))
	require.NoError(t, log.Clear())

	_, err := store.Read(BackupKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBackupLogMsgpackCodec(t *testing.T) {
	store := storage.NewMemory()
	log := NewBackupLog(store, storage.Msgpack)
	require.NoError(t, log.Persist(1, "q1"))
	require.NoError(t, log.MarkFired(1))
	require.NoError(t, log.Persist(2, "q2"))

	reopened := NewBackupLog(store, storage.Msgpack)
	entries, err := reopened.Entries()
	require.NoError(t, err)
	assert.Equal(t, []BackupEntry{
		{RequestNumber: 1, Query: "q1", Fired: true},
		{RequestNumber: 2, Query: "q2"},
	}, entries)
}

func TestBackupLogWireFormat(t *testing.T) {
	store := storage.NewMemory()
	log := NewBackupLog(store, nil)
	require.NoError(t, log.Persist(1, "q1"))
	require.NoError(t, log.Persist(2, "q2"))
	require.NoError(t, log.MarkFired(2))

	data, err := store.Read(BackupKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"q":"q1"},"2":{"q":"q2","fired":true}}`, string(data))
}

func TestBackupLogSurvivesTransientPrimaryWriteFailure(t *testing.T) {
	primary := &failingStore{Store: storage.NewMemory()}
	log := NewBackupLog(storage.NewFallback(primary, storage.NewMemory()), nil)

	require.NoError(t, log.Persist(1, "q1"))
	primary.writeErr, primary.failWrites = errors.New("disk busy"), 1
	require.NoError(t, log.Persist(2, "q2"))
	require.NoError(t, log.Persist(3, "q3"))

	want := []BackupEntry{
		{RequestNumber: 1, Query: "q1"},
		{RequestNumber: 2, Query: "q2"},
		{RequestNumber: 3, Query: "q3"},
	}
	entries, err := log.Entries()
	require.NoError(t, err)
	assert.Equal(t, want, entries)

	entries, err = NewBackupLog(primary.Store, nil).Entries()
	require.NoError(t, err)
	assert.Equal(t, want, entries, "primary should be back in sync")
}

// observingTransport records whether the log reported a replay in progress
// during each hand-off.
type observingTransport struct {
	MockTransport
	log        *BackupLog
	processing []bool
}

func (t *observingTransport) FireRequest(query string, opts FireOptions) error {
	t.processing = append(t.processing, t.log.Processing())
	return t.MockTransport.FireRequest(query, opts)
}

func TestBackupLogProcessingDuringReplay(t *testing.T) {
	log := NewBackupLog(storage.NewMemory(), nil)
	require.NoError(t, log.Persist(1, "q1"))
	require.NoError(t, log.Persist(2, "q2"))
	assert.False(t, log.Processing())

	transport := &observingTransport{log: log}
	fired, err := log.Replay(transport)
	require.NoError(t, err)
	assert.Equal(t, 2, fired)

	assert.Equal(t, []bool{true, true}, transport.processing)
	assert.False(t, log.Processing())
}

func TestBackupLogMarkUnfired(t *testing.T) {
	log := NewBackupLog(storage.NewMemory(), nil)
	for rn := int64(1); rn <= 3; rn++ {
		require.NoError(t, log.Persist(rn, "q"+strconv.FormatInt(rn, 10)))
		require.NoError(t, log.MarkFired(rn))
	}

	n, err := log.MarkUnfired("q2", "q3", "unknown")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	transport := &MockTransport{}
	fired, err := log.Replay(transport)
	require.NoError(t, err)
	assert.Equal(t, 2, fired)
	assert.Equal(t, []string{"q2", "q3"}, transport.Queries())
}
