package multiplayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/chukrum/internal/fileutil"
	"github.com/lox/chukrum/internal/gameid"
)

const subscriberBuffer = 16

// MemoryStoreOption configures a MemoryStore
type MemoryStoreOption func(*MemoryStore)

// WithSnapshotFile persists every write to path and loads it on start
func WithSnapshotFile(path string) MemoryStoreOption {
	return func(s *MemoryStore) { s.snapshotPath = path }
}

// WithStoreClock sets the clock used to stamp new records
func WithStoreClock(clock quartz.Clock) MemoryStoreOption {
	return func(s *MemoryStore) { s.clock = clock }
}

// WithStoreLogger sets the store logger
func WithStoreLogger(logger *log.Logger) MemoryStoreOption {
	return func(s *MemoryStore) { s.logger = logger.WithPrefix("store") }
}

// MemoryStore is an in-process Store. The relay server serves one to its
// clients, and tests use it directly.
type MemoryStore struct {
	mu           sync.Mutex
	records      map[string]*Record
	subs         map[string]map[chan *Record]struct{}
	snapshotPath string
	clock        quartz.Clock
	logger       *log.Logger
}

// NewMemoryStore creates a store, loading the snapshot file if one is
// configured and present
func NewMemoryStore(opts ...MemoryStoreOption) (*MemoryStore, error) {
	s := &MemoryStore{
		records: make(map[string]*Record),
		subs:    make(map[string]map[chan *Record]struct{}),
		clock:   quartz.NewReal(),
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.snapshotPath != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create implements Store
func (s *MemoryStore) Create(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = gameid.New()
	}
	if _, ok := s.records[r.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, r.ID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.clock.Now()
	}
	r.Version = 1
	s.records[r.ID] = r.Clone()
	s.logger.Debug("record created", "id", r.ID)
	return s.persistLocked()
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Clone(), nil
}

// Update implements Store
func (s *MemoryStore) Update(ctx context.Context, id string, p Patch, ifVersion int64) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if ifVersion != 0 && ifVersion != cur.Version {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrVersionConflict, cur.Version, ifVersion)
	}
	next, err := Merge(cur, p)
	if err != nil {
		return nil, err
	}
	next.Version = cur.Version + 1
	s.records[id] = next

	for ch := range s.subs[id] {
		offer(ch, next.Clone())
	}
	if err := s.persistLocked(); err != nil {
		s.logger.Warn("snapshot failed", "error", err)
	}
	return next.Clone(), nil
}

// Delete implements Store. Subscribers of the record are closed.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.records, id)
	for ch := range s.subs[id] {
		close(ch)
	}
	delete(s.subs, id)
	return s.persistLocked()
}

// Subscribe implements Store
func (s *MemoryStore) Subscribe(ctx context.Context, id string) (<-chan *Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ch := make(chan *Record, subscriberBuffer)
	ch <- r.Clone()
	if s.subs[id] == nil {
		s.subs[id] = make(map[chan *Record]struct{})
	}
	s.subs[id][ch] = struct{}{}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id][ch]; ok {
			delete(s.subs[id], ch)
			close(ch)
		}
	}()
	return ch, nil
}

// offer delivers r without blocking. A slow subscriber loses its oldest
// pending record; every record is complete, so only the newest matters.
func offer(ch chan *Record, r *Record) {
	for {
		select {
		case ch <- r:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (s *MemoryStore) persistLocked() error {
	if s.snapshotPath == "" {
		return nil
	}
	return fileutil.WriteJSONAtomic(s.snapshotPath, s.records, 0o600)
}

func (s *MemoryStore) load() error {
	data, err := os.ReadFile(s.snapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", s.snapshotPath, err)
	}
	if s.records == nil {
		s.records = make(map[string]*Record)
	}
	s.logger.Info("loaded snapshot", "path", s.snapshotPath, "records", len(s.records))
	return nil
}

var _ Store = (*MemoryStore)(nil)
