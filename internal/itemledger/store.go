package itemledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jmerrifield20/lostfound/internal/kvstore"
	"go.uber.org/zap"
)

// DefaultKey is the storage key the ledger is persisted under.
const DefaultKey = "ledger"

// Mutation names passed to a MutationFunc.
const (
	OpSeed    = "seed"
	OpAppend  = "append"
	OpUpdate  = "update"
	OpRemove  = "remove"
	OpRechain = "rechain"
)

// MutationFunc is an optional callback invoked after every mutating call
// with the operation name and its result.
type MutationFunc func(op string, err error)

// Option configures a Store.
type Option func(*Store)

// WithKey sets the storage key. Default: DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithUniqueIDs makes Append reject a record whose id is already carried by
// a live entry. Off by default.
func WithUniqueIDs(enforce bool) Option {
	return func(s *Store) { s.uniqueIDs = enforce }
}

// WithMutationHook registers fn to observe every mutation.
func WithMutationHook(fn MutationFunc) Option {
	return func(s *Store) { s.onMutation = fn }
}

// Store owns the ordered entry sequence, persists it and validates it.
// It is safe for concurrent use: every mutation holds the write lock across
// the whole read-modify-persist sequence.
type Store struct {
	mu      sync.RWMutex
	entries []Entry

	backend    kvstore.Store
	key        string
	now        func() time.Time
	uniqueIDs  bool
	onMutation MutationFunc
	logger     *zap.Logger
}

// Open loads the ledger persisted under the configured key of backend.
//
// When nothing is stored yet a genesis entry is seeded and persisted. When
// the stored value cannot be decoded the ledger is re-seeded with a warning
// instead of failing.
func Open(ctx context.Context, backend kvstore.Store, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("ledger backend is required")
	}
	s := &Store{
		backend: backend,
		key:     DefaultKey,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		s.logger.Info("no persisted ledger, seeding genesis", zap.String("key", s.key))
		return s.seed(ctx)
	}
	if err != nil {
		return fmt.Errorf("load ledger %q: %w", s.key, err)
	}

	entries, err := decodeEntries(data)
	if err != nil {
		s.logger.Warn("persisted ledger is malformed, re-seeding genesis",
			zap.String("key", s.key),
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		return s.seed(ctx)
	}

	s.entries = entries
	s.logger.Info("ledger loaded",
		zap.String("key", s.key),
		zap.Int("entries", len(entries)),
	)
	return nil
}

func decodeEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries")
	}
	for i, e := range entries {
		if e.Fingerprint == "" {
			return nil, fmt.Errorf("entry %d has no fingerprint", i)
		}
	}
	return entries, nil
}

func (s *Store) seed(ctx context.Context) error {
	s.entries = []Entry{newEntry(s.now(), GenesisRecord(), "")}
	err := s.persist(ctx)
	s.observe(OpSeed, err)
	return err
}

// Latest returns the last entry in chain order.
func (s *Store) Latest(_ context.Context) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return Entry{}, ErrEmpty
	}
	return s.entries[len(s.entries)-1], nil
}

// List returns a copy of the sequence in chain order.
func (s *Store) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries), nil
}

// Len returns the number of entries, genesis included.
func (s *Store) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Get returns the first entry whose record id is id.
func (s *Store) Get(_ context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id, 0); i >= 0 {
		return s.entries[i], nil
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// Append chains a new entry carrying r to the end of the ledger and
// persists the sequence.
func (s *Store) Append(ctx context.Context, r Record) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uniqueIDs && s.indexOf(r.ID, 0) >= 0 {
		err := fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
		s.observe(OpAppend, err)
		return Entry{}, err
	}

	var previous string
	if n := len(s.entries); n > 0 {
		previous = s.entries[n-1].Fingerprint
	}
	entry := newEntry(s.now(), r, previous)

	before := slices.Clone(s.entries)
	s.entries = append(s.entries, entry)
	if err := s.commit(ctx, OpAppend, before); err != nil {
		return Entry{}, err
	}

	s.logger.Debug("ledger entry appended",
		zap.Int("idx", len(s.entries)-1),
		zap.String("record_id", r.ID),
		zap.String("kind", string(r.Kind)),
	)
	return entry, nil
}

// Update replaces the record of the first entry whose record id is id and
// recomputes its fingerprint. The timestamp and previous fingerprint are
// kept, so entries after it are not re-linked.
func (s *Store) Update(ctx context.Context, id string, r Record) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id, 1)
	if i < 0 {
		err := s.missing(id)
		s.observe(OpUpdate, err)
		return Entry{}, err
	}

	before := slices.Clone(s.entries)
	s.entries[i].Record = r
	s.entries[i].Fingerprint = s.entries[i].Recompute()
	if err := s.commit(ctx, OpUpdate, before); err != nil {
		return Entry{}, err
	}

	s.logger.Debug("ledger entry updated",
		zap.Int("idx", i),
		zap.String("record_id", id),
	)
	return s.entries[i], nil
}

// Remove deletes every entry whose record id is id. Entries after a removed
// one keep their previous fingerprint, so removing anything but the last
// entry leaves the chain invalid until Rechain is run.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id, 1) < 0 {
		err := s.missing(id)
		s.observe(OpRemove, err)
		return err
	}

	before := slices.Clone(s.entries)
	kept := make([]Entry, 0, len(s.entries))
	for i, e := range s.entries {
		if i > 0 && e.Record.ID == id {
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	if err := s.commit(ctx, OpRemove, before); err != nil {
		return err
	}

	s.logger.Debug("ledger entry removed",
		zap.String("record_id", id),
		zap.Int("removed", len(before)-len(kept)),
	)
	return nil
}

// IsValid reports whether every entry after genesis matches its own
// fingerprint and links to the entry before it.
func (s *Store) IsValid(ctx context.Context) bool {
	return s.Verify(ctx) == nil
}

// Verify walks the chain from the second entry and returns a *ChainError
// for the first inconsistency. The genesis entry is never checked.
func (s *Store) Verify(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := 1; i < len(s.entries); i++ {
		curr, prev := s.entries[i], s.entries[i-1]
		if curr.Fingerprint != curr.Recompute() {
			return &ChainError{Index: i, Reason: "fingerprint does not match entry content"}
		}
		if curr.PreviousFingerprint != prev.Fingerprint {
			return &ChainError{Index: i, Reason: fmt.Sprintf("previous fingerprint does not match entry %d", i-1)}
		}
	}
	return nil
}

// Rechain re-links the ledger: every entry after genesis gets the
// fingerprint of its predecessor and a recomputed fingerprint of its own.
// Current content is taken as authoritative, so an entry edited outside the
// ledger is accepted as-is. It returns the number of entries rewritten and
// persists only when that number is positive.
func (s *Store) Rechain(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := slices.Clone(s.entries)
	changed := 0
	for i := 1; i < len(s.entries); i++ {
		e := &s.entries[i]
		previous := s.entries[i-1].Fingerprint
		if e.PreviousFingerprint == previous && e.Fingerprint == e.Recompute() {
			continue
		}
		e.PreviousFingerprint = previous
		e.Fingerprint = e.Recompute()
		changed++
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.commit(ctx, OpRechain, before); err != nil {
		return 0, err
	}

	s.logger.Info("ledger rechained",
		zap.String("key", s.key),
		zap.Int("rewritten", changed),
	)
	return changed, nil
}

// commit persists the current sequence or restores before on failure.
// The caller holds the write lock.
func (s *Store) commit(ctx context.Context, op string, before []Entry) error {
	err := s.persist(ctx)
	if err != nil {
		s.entries = before
		s.logger.Error("ledger persist failed, mutation rolled back",
			zap.String("op", op),
			zap.String("key", s.key),
			zap.Error(err),
		)
	}
	s.observe(op, err)
	return err
}

func (s *Store) persist(ctx context.Context) error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("%w: marshal entries: %w", ErrPersistence, err)
	}
	if err := s.backend.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func (s *Store) observe(op string, err error) {
	if s.onMutation != nil {
		s.onMutation(op, err)
	}
}

// indexOf returns the index of the first entry at or after from whose
// record id is id, or -1.
func (s *Store) indexOf(id string, from int) int {
	for i := from; i < len(s.entries); i++ {
		if s.entries[i].Record.ID == id {
			return i
		}
	}
	return -1
}

// missing builds the error for an id that matched no entry after genesis.
func (s *Store) missing(id string) error {
	if len(s.entries) > 0 && s.entries[0].Record.ID == id {
		return fmt.Errorf("%w: genesis entry cannot be changed", ErrNotFound)
	}
	return fmt.Errorf("%w: %q", ErrNotFound, id)
}
