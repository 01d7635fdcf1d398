package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"capgate/internal/domain"
)

// Sink persists audit entries durably.
type Sink interface {
	Append(ctx context.Context, entries []domain.AuditEntry) error
}

// Config controls retention, persistence and pattern detection.
type Config struct {
	MaxEntries      int
	PersistInterval time.Duration
	DetectPatterns  bool
	Patterns        PatternConfig
}

// ConfigFromProfile extracts the audit settings from a profile.
func ConfigFromProfile(profile domain.Profile) Config {
	a := profile.Audit
	return Config{
		MaxEntries:      a.MaxEntries,
		PersistInterval: a.PersistInterval,
		DetectPatterns:  a.DetectPatterns,
		Patterns: PatternConfig{
			ThrashWindow:    a.ThrashWindow,
			ThrashThreshold: a.ThrashThreshold,
		},
	}
}

// Log is an append-only bounded record of registry events. It observes the
// registry and never changes its state.
type Log struct {
	cfg     Config
	ring    *RingBuffer[domain.AuditEntry]
	sink    Sink
	metrics domain.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	pending []domain.AuditEntry
	dropped int
}

// NewLog constructs an audit log. A zero MaxEntries disables it.
func NewLog(cfg Config, sink Sink, metrics domain.Metrics, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Log{
		cfg:     cfg,
		sink:    sink,
		metrics: metrics,
		logger:  logger.Named("audit"),
		now:     time.Now,
	}
	if cfg.MaxEntries > 0 {
		l.ring = NewRingBuffer[domain.AuditEntry](cfg.MaxEntries)
	}
	return l
}

// Enabled reports whether entries are kept.
func (l *Log) Enabled() bool {
	return l != nil && l.ring != nil
}

// Record appends entry, filling its id and timestamp.
func (l *Log) Record(entry domain.AuditEntry) domain.AuditEntry {
	if !l.Enabled() {
		return entry
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	entry.Subjects = append([]string(nil), entry.Subjects...)
	entry.Categories = append([]string(nil), entry.Categories...)
	l.ring.Add(entry)

	if l.sink != nil && l.cfg.PersistInterval > 0 {
		l.mu.Lock()
		l.pending = append(l.pending, entry)
		if overflow := len(l.pending) - l.cfg.MaxEntries; overflow > 0 {
			l.pending = append([]domain.AuditEntry(nil), l.pending[overflow:]...)
			l.dropped += overflow
		}
		l.mu.Unlock()
	}
	return entry
}

// Entries returns every retained entry, oldest first.
func (l *Log) Entries() []domain.AuditEntry {
	if !l.Enabled() {
		return nil
	}
	return l.ring.Snapshot()
}

// Recent returns up to n of the newest entries, oldest first.
func (l *Log) Recent(n int) []domain.AuditEntry {
	if !l.Enabled() {
		return nil
	}
	return l.ring.Last(n)
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	if !l.Enabled() {
		return 0
	}
	return l.ring.Len()
}

// Patterns runs pattern detection over the retained entries when enabled.
func (l *Log) Patterns() []domain.UsagePattern {
	if !l.Enabled() || !l.cfg.DetectPatterns {
		return nil
	}
	return DetectPatterns(l.ring.Snapshot(), l.cfg.Patterns)
}

// Pending returns the number of entries not yet persisted.
func (l *Log) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Flush writes pending entries to the sink. On failure they stay pending
// for the next attempt; in-memory entries are never touched.
func (l *Log) Flush(ctx context.Context) error {
	if l.sink == nil {
		return nil
	}
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	dropped := l.dropped
	l.dropped = 0
	l.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	if dropped > 0 {
		l.logger.Warn("audit entries dropped before persistence", zap.Int("dropped", dropped))
	}

	err := l.sink.Append(ctx, batch)
	if l.metrics != nil {
		l.metrics.ObserveAuditFlush(len(batch), err)
	}
	if err != nil {
		l.mu.Lock()
		l.pending = append(batch, l.pending...)
		if overflow := len(l.pending) - l.cfg.MaxEntries; overflow > 0 && l.cfg.MaxEntries > 0 {
			l.pending = append([]domain.AuditEntry(nil), l.pending[overflow:]...)
			l.dropped += overflow
		}
		l.mu.Unlock()
		return err
	}
	l.logger.Debug("audit entries persisted", zap.Int("count", len(batch)))
	return nil
}

// Run flushes on every persist interval until ctx is done, then flushes once more.
func (l *Log) Run(ctx context.Context) {
	if !l.Enabled() || l.sink == nil || l.cfg.PersistInterval <= 0 {
		return
	}
	ticker := time.NewTicker(l.cfg.PersistInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := l.Flush(flushCtx); err != nil {
				l.logger.Warn("final audit flush failed", zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			if err := l.Flush(ctx); err != nil {
				l.logger.Warn("audit flush failed", zap.Error(err), zap.Int("pending", l.Pending()))
			}
		}
	}
}
