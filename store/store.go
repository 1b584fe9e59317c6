package store

import (
	"sync"
	"time"
)

// Store is an in-memory mapping from key to versioned entry, shared by the
// application-facing access layer and the gossip protocol.
//
// The store is safe for concurrent readers and writers. Merge is the only
// write path and holds the mutex for a single compare-and-replace, so no
// two concurrent merges for the same key can both win and no reader ever
// observes a half-replaced entry.
type Store struct {
	// mu protects entries.
	mu sync.RWMutex

	entries map[string]Entry

	// defaultTTL is applied to merged entries without a TTL of their own,
	// in milliseconds. 0 means entries never expire by default.
	defaultTTL int64

	watcher Watcher

	metrics *Metrics
}

type options struct {
	defaultTTL time.Duration
	watcher    Watcher
	metrics    *Metrics
}

type Option interface {
	apply(*options)
}

type defaultTTLOption time.Duration

func (o defaultTTLOption) apply(opts *options) {
	opts.defaultTTL = time.Duration(o)
}

// WithDefaultTTL configures the expiry applied to entries that don't carry
// a TTL of their own.
func WithDefaultTTL(ttl time.Duration) Option {
	return defaultTTLOption(ttl)
}

type watcherOption struct {
	Watcher Watcher
}

func (o watcherOption) apply(opts *options) {
	opts.watcher = o.Watcher
}

// WithWatcher configures a watcher notified when the store content
// changes.
func WithWatcher(watcher Watcher) Option {
	return watcherOption{Watcher: watcher}
}

type metricsOption struct {
	Metrics *Metrics
}

func (o metricsOption) apply(opts *options) {
	opts.metrics = o.Metrics
}

func WithMetrics(metrics *Metrics) Option {
	return metricsOption{Metrics: metrics}
}

func New(opts ...Option) *Store {
	options := options{
		watcher: newNopWatcher(),
		metrics: NewMetrics(),
	}
	for _, o := range opts {
		o.apply(&options)
	}

	return &Store{
		entries:    make(map[string]Entry),
		defaultTTL: options.defaultTTL.Milliseconds(),
		watcher:    options.watcher,
		metrics:    options.metrics,
	}
}

// Get returns the entry for the given key, if the key exists and the entry
// hasn't expired.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || entry.Expired(time.Now()) {
		return Entry{}, false
	}
	return entry, true
}

// Put writes a local update for the given key using the current wall clock
// time as the entry version.
//
// The write goes through the same conflict resolution as remote entries,
// so if the local clock is behind the stored entry's version the write may
// lose. Returns the entry and whether it was accepted.
func (s *Store) Put(key string, value []byte, ttl time.Duration) (Entry, bool) {
	entry := Entry{
		Key:       key,
		Value:     value,
		CreatedAt: time.Now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	}
	return entry, s.Merge(entry)
}

// Merge reconciles the given entry into the store using last-write-wins
// conflict resolution. Returns whether the entry was accepted.
//
// Merging is commutative, associative and idempotent: applying the same
// set of entries in any order, any number of times, converges to the same
// store content.
func (s *Store) Merge(entry Entry) bool {
	now := time.Now()
	if entry.Expired(now) {
		// Never accept an entry that has already expired.
		return false
	}

	if entry.TTL == 0 {
		entry.TTL = s.defaultTTL
	}

	s.mu.Lock()

	existing, ok := s.entries[entry.Key]
	if ok && !entry.Supersedes(existing) {
		s.mu.Unlock()

		s.metrics.MergeTotal.WithLabelValues("discarded").Inc()
		return false
	}
	s.entries[entry.Key] = entry

	s.mu.Unlock()

	s.metrics.MergeTotal.WithLabelValues("applied").Inc()
	s.metrics.Entries.Set(float64(s.Len()))
	s.watcher.OnUpsert(entry)
	return true
}

// Delete removes the entry for the given key from the local store.
//
// Deletes don't propagate to peers. A deleted key may reappear when a peer
// that still holds an entry for it is reconciled with.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if ok {
		s.metrics.Entries.Set(float64(s.Len()))
		s.watcher.OnDelete(key)
	}
	return ok
}

// Snapshot returns a copy of every unexpired entry in the store.
func (s *Store) Snapshot() []Entry {
	return s.EntriesSince(0)
}

// EntriesSince returns every unexpired entry whose version is at or after
// the given time in Unix milliseconds.
//
// The bound is inclusive so an entry written in the same millisecond as a
// push cycle's watermark is sent again next cycle rather than dropped.
// Duplicate delivery is harmless as merging is idempotent.
func (s *Store) EntriesSince(since int64) []Entry {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	for _, entry := range s.entries {
		if entry.CreatedAt < since || entry.Expired(now) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// Digest returns a summary of the store's current keys and versions.
func (s *Store) Digest() Digest {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	digest := make(Digest, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.Expired(now) {
			continue
		}
		digest = append(digest, DigestEntry{
			Key:       entry.Key,
			CreatedAt: entry.CreatedAt,
		})
	}
	return digest
}

// DeltaFor returns the local entries the given remote digest is missing:
// those whose key is absent from the digest and those whose version is at
// or after the digest's version for the key.
//
// Version ties count as a send since both sides may hold different values
// for the same version, which only the tie-break can resolve. An entry
// strictly older than the digest's version is never included.
func (s *Store) DeltaFor(digest Digest) []Entry {
	remote := make(map[string]int64, len(digest))
	for _, d := range digest {
		remote[d.Key] = d.CreatedAt
	}

	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	for _, entry := range s.entries {
		if entry.Expired(now) {
			continue
		}
		createdAt, ok := remote[entry.Key]
		if ok && entry.CreatedAt < createdAt {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// Hash returns a digest of the store's keys and versions.
//
// Two stores with the same keys at the same versions have the same hash.
// Per-entry hashes are combined with XOR so the result is independent of
// iteration order.
func (s *Store) Hash() uint64 {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var h uint64
	for _, entry := range s.entries {
		if entry.Expired(now) {
			continue
		}
		h ^= entry.hash()
	}
	return h
}

// PurgeExpired removes every expired entry and returns the number of
// entries removed.
func (s *Store) PurgeExpired() int {
	return s.PurgeExpiredAt(time.Now())
}

func (s *Store) PurgeExpiredAt(t time.Time) int {
	s.mu.Lock()

	var keys []string
	for key, entry := range s.entries {
		if entry.Expired(t) {
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		delete(s.entries, key)
	}

	s.mu.Unlock()

	for _, key := range keys {
		s.metrics.ExpiredTotal.Inc()
		s.watcher.OnExpired(key)
	}
	s.metrics.Entries.Set(float64(s.Len()))

	return len(keys)
}

// Len returns the number of entries in the store, including expired
// entries not yet purged.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

func (s *Store) Metrics() *Metrics {
	return s.metrics
}
