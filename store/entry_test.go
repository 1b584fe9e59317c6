package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntry_Expired(t *testing.T) {
	now := time.Now()

	t.Run("no ttl never expires", func(t *testing.T) {
		entry := Entry{Key: "k1", CreatedAt: 100}
		assert.False(t, entry.Expired(now.Add(time.Hour*24*365)))
	})

	t.Run("expired", func(t *testing.T) {
		entry := Entry{
			Key:       "k1",
			CreatedAt: now.Add(-time.Minute).UnixMilli(),
			TTL:       time.Second.Milliseconds(),
		}
		assert.True(t, entry.Expired(now))
	})

	t.Run("not yet expired", func(t *testing.T) {
		entry := Entry{
			Key:       "k1",
			CreatedAt: now.UnixMilli(),
			TTL:       time.Minute.Milliseconds(),
		}
		assert.False(t, entry.Expired(now))
	})

	t.Run("expires exactly at ttl", func(t *testing.T) {
		entry := Entry{
			Key:       "k1",
			CreatedAt: now.UnixMilli(),
			TTL:       time.Minute.Milliseconds(),
		}
		expiry := entry.CreatedAt + entry.TTL
		assert.False(t, entry.Expired(time.UnixMilli(expiry-1)))
		assert.True(t, entry.Expired(time.UnixMilli(expiry)))
	})
}

func TestEntry_Supersedes(t *testing.T) {
	t.Run("larger version wins", func(t *testing.T) {
		newer := Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 200}
		older := Entry{Key: "k1", Value: []byte("v2"), CreatedAt: 100}

		assert.True(t, newer.Supersedes(older))
		assert.False(t, older.Supersedes(newer))
	})

	t.Run("tie broken by value", func(t *testing.T) {
		a := Entry{Key: "k1", Value: []byte("aaa"), CreatedAt: 100}
		b := Entry{Key: "k1", Value: []byte("bbb"), CreatedAt: 100}

		assert.True(t, b.Supersedes(a))
		assert.False(t, a.Supersedes(b))
	})

	t.Run("identical entry never supersedes", func(t *testing.T) {
		a := Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100}
		b := Entry{Key: "k1", Value: []byte("v1"), CreatedAt: 100}

		assert.False(t, a.Supersedes(b))
		assert.False(t, b.Supersedes(a))
	})
}
