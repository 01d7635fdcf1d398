package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"capgate/internal/domain"
)

type memorySink struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	fail    error
	calls   int
}

func (s *memorySink) Append(_ context.Context, entries []domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail != nil {
		return s.fail
	}
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *memorySink) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestRingBufferKeepsNewest(t *testing.T) {
	ring := NewRingBuffer[int](3)
	for i := 1; i <= 3; i++ {
		require.False(t, ring.Add(i))
	}
	require.True(t, ring.Add(4))
	require.Equal(t, []int{2, 3, 4}, ring.Snapshot())
	require.Equal(t, []int{3, 4}, ring.Last(2))
	require.Equal(t, 3, ring.Len())
	require.Equal(t, 3, ring.Cap())
}

func TestLogDisabledWithZeroEntries(t *testing.T) {
	log := NewLog(Config{}, &memorySink{}, nil, nil)
	require.False(t, log.Enabled())
	log.Record(domain.AuditEntry{Kind: domain.AuditActivate})
	require.Empty(t, log.Entries())
	require.Zero(t, log.Len())
	require.Nil(t, log.Patterns())
}

func TestLogRecordFillsIdentity(t *testing.T) {
	log := NewLog(Config{MaxEntries: 2}, nil, nil, nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	entry := log.Record(domain.AuditEntry{Kind: domain.AuditActivate, Subjects: []string{"a"}, Weight: 10})
	require.NotEmpty(t, entry.ID)
	require.Equal(t, fixed, entry.Timestamp)

	log.Record(domain.AuditEntry{Kind: domain.AuditSearch})
	log.Record(domain.AuditEntry{Kind: domain.AuditDeactivate})
	entries := log.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, domain.AuditSearch, entries[0].Kind)
	require.Equal(t, domain.AuditDeactivate, entries[1].Kind)
}

func TestLogFlushRetriesAfterFailure(t *testing.T) {
	sink := &memorySink{fail: errors.New("disk full")}
	log := NewLog(Config{MaxEntries: 10, PersistInterval: time.Hour}, sink, nil, nil)
	log.Record(domain.AuditEntry{Kind: domain.AuditActivate})
	log.Record(domain.AuditEntry{Kind: domain.AuditDeactivate})

	require.Error(t, log.Flush(context.Background()))
	require.Equal(t, 2, log.Pending())
	require.Equal(t, 2, log.Len())

	sink.mu.Lock()
	sink.fail = nil
	sink.mu.Unlock()
	require.NoError(t, log.Flush(context.Background()))
	require.Zero(t, log.Pending())
	require.Equal(t, 2, sink.stored())
}

func TestLogPendingIsBounded(t *testing.T) {
	log := NewLog(Config{MaxEntries: 2, PersistInterval: time.Hour}, &memorySink{}, nil, nil)
	for i := 0; i < 5; i++ {
		log.Record(domain.AuditEntry{Kind: domain.AuditSearch})
	}
	require.Equal(t, 2, log.Pending())
}

func TestLogRunFlushesOnTickAndShutdown(t *testing.T) {
	sink := &memorySink{}
	log := NewLog(Config{MaxEntries: 10, PersistInterval: 10 * time.Millisecond}, sink, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		log.Run(ctx)
		close(done)
	}()

	log.Record(domain.AuditEntry{Kind: domain.AuditActivate})
	require.Eventually(t, func() bool { return sink.stored() == 1 }, time.Second, 5*time.Millisecond)

	log.Record(domain.AuditEntry{Kind: domain.AuditDeactivate})
	cancel()
	<-done
	require.Equal(t, 2, sink.stored())
}

func TestLogWithoutPersistIntervalKeepsNothingPending(t *testing.T) {
	sink := &memorySink{}
	log := NewLog(Config{MaxEntries: 10}, sink, nil, nil)
	log.Record(domain.AuditEntry{Kind: domain.AuditActivate})
	require.Zero(t, log.Pending())
	log.Run(context.Background())
	require.Zero(t, sink.calls)
}
