package auditstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"capgate/internal/domain"
)

var ErrStoreClosed = errors.New("audit store is closed")

// Store persists audit entries in a bbolt file, keyed by insertion sequence.
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	retain int
	closed bool
}

// OpenStore opens or creates the audit database at path. retain bounds the
// number of persisted entries; 0 keeps everything.
func OpenStore(path string, retain int) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("audit store path is required")
	}
	if retain < 0 {
		return nil, fmt.Errorf("audit retention must not be negative")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure audit dir: %w", err)
	}
	base, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := ensureSchema(base); err != nil {
		_ = base.Close()
		return nil, err
	}
	return &Store{db: base, path: trimmed, retain: retain}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Append writes entries in one transaction and trims the oldest ones beyond
// the retention limit.
func (s *Store) Append(ctx context.Context, entries []domain.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		bucket, err := entriesBucket(tx)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			seq, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("next audit sequence: %w", err)
			}
			value, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("encode audit entry %s: %w", entry.ID, err)
			}
			if err := bucket.Put(sequenceKey(seq), value); err != nil {
				return fmt.Errorf("write audit entry %s: %w", entry.ID, err)
			}
		}
		return trim(bucket, s.retain)
	})
}

// Tail returns up to n of the newest entries, oldest first. n <= 0 returns all.
func (s *Store) Tail(n int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := s.view(func(tx *bolt.Tx) error {
		bucket, err := entriesBucket(tx)
		if err != nil {
			return err
		}
		cursor := bucket.Cursor()
		for key, value := cursor.Last(); key != nil; key, value = cursor.Prev() {
			if n > 0 && len(out) >= n {
				break
			}
			var entry domain.AuditEntry
			if err := json.Unmarshal(value, &entry); err != nil {
				return fmt.Errorf("decode audit entry %d: %w", binary.BigEndian.Uint64(key), err)
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the number of persisted entries.
func (s *Store) Count() (int, error) {
	count := 0
	err := s.view(func(tx *bolt.Tx) error {
		bucket, err := entriesBucket(tx)
		if err != nil {
			return err
		}
		count = countKeys(bucket)
		return nil
	})
	return count, err
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.Update(fn)
}

func entriesBucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	root := tx.Bucket([]byte(rootBucketName))
	if root == nil {
		return nil, fmt.Errorf("missing root bucket")
	}
	bucket := root.Bucket([]byte(entriesBucketName))
	if bucket == nil {
		return nil, fmt.Errorf("missing entries bucket")
	}
	return bucket, nil
}

func trim(bucket *bolt.Bucket, retain int) error {
	if retain <= 0 {
		return nil
	}
	excess := countKeys(bucket) - retain
	if excess <= 0 {
		return nil
	}
	var keys [][]byte
	cursor := bucket.Cursor()
	for key, _ := cursor.First(); key != nil && len(keys) < excess; key, _ = cursor.Next() {
		keys = append(keys, append([]byte(nil), key...))
	}
	for _, key := range keys {
		if err := bucket.Delete(key); err != nil {
			return fmt.Errorf("trim audit entry: %w", err)
		}
	}
	return nil
}

func countKeys(bucket *bolt.Bucket) int {
	count := 0
	cursor := bucket.Cursor()
	for key, _ := cursor.First(); key != nil; key, _ = cursor.Next() {
		count++
	}
	return count
}

func sequenceKey(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
