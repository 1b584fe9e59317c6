package store

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGet(t *testing.T) {
	t.Run("put then get", func(t *testing.T) {
		s := New()

		entry, ok := s.Put("k1", []byte("v1"), 0)
		assert.True(t, ok)
		assert.Equal(t, "k1", entry.Key)
		assert.NotZero(t, entry.CreatedAt)

		got, ok := s.Get("k1")
		assert.True(t, ok)
		assert.Equal(t, entry, got)
	})

	t.Run("get missing key", func(t *testing.T) {
		s := New()

		_, ok := s.Get("k1")
		assert.False(t, ok)
	})

	t.Run("put overwrites", func(t *testing.T) {
		s := New()

		s.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100})

		_, ok := s.Put("k1", []byte("v2"), 0)
		assert.True(t, ok)

		got, ok := s.Get("k1")
		assert.True(t, ok)
		assert.Equal(t, []byte("v2"), got.Value)
	})
}

func TestStore_Merge(t *testing.T) {
	t.Run("newer entry wins", func(t *testing.T) {
		s := New()

		assert.True(t, s.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100}))
		assert.True(t, s.Merge(Entry{Key: "k1", Value: []byte("v2"), CreatedAt: 200}))

		got, ok := s.Get("k1")
		assert.True(t, ok)
		assert.Equal(t, []byte("v2"), got.Value)
		assert.Equal(t, int64(200), got.CreatedAt)
	})

	t.Run("older entry discarded", func(t *testing.T) {
		s := New()

		assert.True(t, s.Merge(Entry{Key: "k1", Value: []byte("v2"), CreatedAt: 200}))
		assert.False(t, s.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100}))

		got, ok := s.Get("k1")
		assert.True(t, ok)
		assert.Equal(t, []byte("v2"), got.Value)
	})

	t.Run("tie broken by value", func(t *testing.T) {
		s1 := New()
		s2 := New()

		a := Entry{Key: "k1", Value: []byte("aaa"), CreatedAt: 100}
		b := Entry{Key: "k1", Value: []byte("bbb"), CreatedAt: 100}

		// Apply in opposite orders; both stores must resolve the tie to
		// the same entry.
		s1.Merge(a)
		s1.Merge(b)
		s2.Merge(b)
		s2.Merge(a)

		got1, ok := s1.Get("k1")
		require.True(t, ok)
		got2, ok := s2.Get("k1")
		require.True(t, ok)
		assert.Equal(t, got1, got2)
		assert.Equal(t, []byte("bbb"), got1.Value)
	})

	t.Run("identical entry discarded", func(t *testing.T) {
		s := New()

		entry := Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100}
		assert.True(t, s.Merge(entry))
		assert.False(t, s.Merge(entry))
	})

	t.Run("expired entry rejected", func(t *testing.T) {
		s := New()

		assert.False(t, s.Merge(Entry{
			Key:       "k1",
			Value:     []byte("v1"),
			CreatedAt: time.Now().Add(-time.Minute).UnixMilli(),
			TTL:       time.Second.Milliseconds(),
		}))

		_, ok := s.Get("k1")
		assert.False(t, ok)
	})

	t.Run("default ttl applied", func(t *testing.T) {
		s := New(WithDefaultTTL(time.Minute))

		s.Merge(Entry{
			Key:       "k1",
			Value:     []byte("v1"),
			CreatedAt: time.Now().UnixMilli(),
		})

		got, ok := s.Get("k1")
		assert.True(t, ok)
		assert.Equal(t, time.Minute.Milliseconds(), got.TTL)
	})

	t.Run("entry ttl preferred over default", func(t *testing.T) {
		s := New(WithDefaultTTL(time.Minute))

		s.Merge(Entry{
			Key:       "k1",
			Value:     []byte("v1"),
			CreatedAt: time.Now().UnixMilli(),
			TTL:       time.Hour.Milliseconds(),
		})

		got, ok := s.Get("k1")
		assert.True(t, ok)
		assert.Equal(t, time.Hour.Milliseconds(), got.TTL)
	})
}

// Applying the same set of updates in any order, with duplicates, must
// converge every replica to the same content.
func TestStore_Convergence(t *testing.T) {
	var updates []Entry
	for i := 0; i != 10; i++ {
		for version := 0; version != 5; version++ {
			updates = append(updates, Entry{
				Key:       fmt.Sprintf("k%d", i),
				Value:     []byte(fmt.Sprintf("v%d", version)),
				CreatedAt: int64(100 + version),
			})
		}
	}
	// Duplicate delivery.
	updates = append(updates, updates...)

	var hashes []uint64
	for replica := 0; replica != 5; replica++ {
		s := New()

		shuffled := make([]Entry, len(updates))
		copy(shuffled, updates)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		for _, entry := range shuffled {
			s.Merge(entry)
		}

		assert.Equal(t, 10, s.Len())
		for i := 0; i != 10; i++ {
			got, ok := s.Get(fmt.Sprintf("k%d", i))
			require.True(t, ok)
			assert.Equal(t, []byte("v4"), got.Value)
			assert.Equal(t, int64(104), got.CreatedAt)
		}

		hashes = append(hashes, s.Hash())
	}

	for _, h := range hashes {
		assert.Equal(t, hashes[0], h)
	}
}

func TestStore_Delete(t *testing.T) {
	t.Run("delete removes entry", func(t *testing.T) {
		s := New()

		s.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100})
		assert.True(t, s.Delete("k1"))

		_, ok := s.Get("k1")
		assert.False(t, ok)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("delete missing key", func(t *testing.T) {
		s := New()

		assert.False(t, s.Delete("k1"))
	})

	t.Run("deleted key resurrected by merge", func(t *testing.T) {
		s := New()

		s.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100})
		s.Delete("k1")

		// A peer still holding the entry sends it back.
		assert.True(t, s.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100}))

		_, ok := s.Get("k1")
		assert.True(t, ok)
	})
}

func TestStore_EntriesSince(t *testing.T) {
	s := New()

	s.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100})
	s.Merge(Entry{Key: "k2", Value: []byte("v2"), CreatedAt: 200})
	s.Merge(Entry{Key: "k3", Value: []byte("v3"), CreatedAt: 300})

	entries := s.EntriesSince(200)
	keys := make(map[string]struct{})
	for _, entry := range entries {
		keys[entry.Key] = struct{}{}
	}

	// The bound is inclusive so k2 is included.
	assert.Equal(t, map[string]struct{}{
		"k2": {},
		"k3": {},
	}, keys)
}

func TestStore_DeltaFor(t *testing.T) {
	s := New()

	s.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100})
	s.Merge(Entry{Key: "k2", Value: []byte("v2"), CreatedAt: 200})
	s.Merge(Entry{Key: "k3", Value: []byte("v3"), CreatedAt: 300})

	t.Run("absent keys included", func(t *testing.T) {
		delta := s.DeltaFor(Digest{
			{Key: "k1", CreatedAt: 100},
			{Key: "k2", CreatedAt: 200},
		})
		require.Equal(t, 1, len(delta))
		assert.Equal(t, "k3", delta[0].Key)
	})

	t.Run("stale versions included", func(t *testing.T) {
		delta := s.DeltaFor(Digest{
			{Key: "k1", CreatedAt: 50},
			{Key: "k2", CreatedAt: 200},
			{Key: "k3", CreatedAt: 300},
		})
		require.Equal(t, 1, len(delta))
		assert.Equal(t, "k1", delta[0].Key)
	})

	t.Run("ties included", func(t *testing.T) {
		// Both sides may hold different values at the same version which
		// only the tie-break can resolve, so ties are sent.
		delta := s.DeltaFor(Digest{
			{Key: "k1", CreatedAt: 100},
			{Key: "k2", CreatedAt: 200},
			{Key: "k3", CreatedAt: 300},
		})
		assert.Equal(t, 3, len(delta))
	})

	t.Run("newer remote versions excluded", func(t *testing.T) {
		delta := s.DeltaFor(Digest{
			{Key: "k1", CreatedAt: 101},
			{Key: "k2", CreatedAt: 201},
			{Key: "k3", CreatedAt: 301},
		})
		assert.Equal(t, 0, len(delta))
	})
}

func TestStore_Digest(t *testing.T) {
	s := New()

	s.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100})
	s.Merge(Entry{Key: "k2", Value: []byte("v2"), CreatedAt: 200})

	digest := s.Digest()
	versions := make(map[string]int64)
	for _, d := range digest {
		versions[d.Key] = d.CreatedAt
	}

	assert.Equal(t, map[string]int64{
		"k1": 100,
		"k2": 200,
	}, versions)
}

func TestStore_Hash(t *testing.T) {
	t.Run("same content same hash", func(t *testing.T) {
		s1 := New()
		s1.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100})
		s1.Merge(Entry{Key: "k2", Value: []byte("v2"), CreatedAt: 200})

		s2 := New()
		s2.Merge(Entry{Key: "k2", Value: []byte("v2"), CreatedAt: 200})
		s2.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100})

		assert.Equal(t, s1.Hash(), s2.Hash())
	})

	t.Run("different versions different hash", func(t *testing.T) {
		s1 := New()
		s1.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100})

		s2 := New()
		s2.Merge(Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 200})

		assert.NotEqual(t, s1.Hash(), s2.Hash())
	})
}

func TestStore_Expiry(t *testing.T) {
	t.Run("expired entries hidden from reads", func(t *testing.T) {
		s := New()

		s.Merge(Entry{
			Key:       "k1",
			Value:     []byte("v1"),
			CreatedAt: time.Now().UnixMilli(),
			TTL:       time.Minute.Milliseconds(),
		})

		_, ok := s.Get("k1")
		assert.True(t, ok)

		// Not yet purged but already expired at a future time.
		purged := s.PurgeExpiredAt(time.Now().Add(time.Hour))
		assert.Equal(t, 1, purged)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("unexpired entries kept", func(t *testing.T) {
		s := New()

		s.Merge(Entry{
			Key:       "k1",
			Value:     []byte("v1"),
			CreatedAt: time.Now().UnixMilli(),
			TTL:       time.Hour.Milliseconds(),
		})
		s.Merge(Entry{
			Key:       "k2",
			Value:     []byte("v2"),
			CreatedAt: time.Now().UnixMilli(),
		})

		purged := s.PurgeExpiredAt(time.Now().Add(time.Minute))
		assert.Equal(t, 0, purged)
		assert.Equal(t, 2, s.Len())
	})

	t.Run("purged at exact expiry", func(t *testing.T) {
		s := New()

		entry := Entry{
			Key:       "k1",
			Value:     []byte("v1"),
			CreatedAt: time.Now().UnixMilli(),
			TTL:       time.Minute.Milliseconds(),
		}
		s.Merge(entry)

		// A sweep at exactly CreatedAt+TTL removes the entry.
		purged := s.PurgeExpiredAt(time.UnixMilli(entry.CreatedAt + entry.TTL))
		assert.Equal(t, 1, purged)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("watcher notified", func(t *testing.T) {
		watcher := &recordingWatcher{}
		s := New(WithWatcher(watcher))

		s.Merge(Entry{
			Key:       "k1",
			Value:     []byte("v1"),
			CreatedAt: time.Now().UnixMilli(),
			TTL:       time.Minute.Milliseconds(),
		})
		s.PurgeExpiredAt(time.Now().Add(time.Hour))

		assert.Equal(t, []string{"k1"}, watcher.upserted)
		assert.Equal(t, []string{"k1"}, watcher.expired)
	})
}

type recordingWatcher struct {
	upserted []string
	deleted  []string
	expired  []string
}

func (w *recordingWatcher) OnUpsert(entry Entry) {
	w.upserted = append(w.upserted, entry.Key)
}

func (w *recordingWatcher) OnDelete(key string) {
	w.deleted = append(w.deleted, key)
}

func (w *recordingWatcher) OnExpired(key string) {
	w.expired = append(w.expired, key)
}

var _ Watcher = &recordingWatcher{}
