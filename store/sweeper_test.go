package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andydunstall/converge/pkg/log"
)

func TestSweeper(t *testing.T) {
	s := New()

	s.Merge(Entry{
		Key:       "k1",
		Value:     []byte("v1"),
		CreatedAt: time.Now().UnixMilli(),
		TTL:       1,
	})
	s.Merge(Entry{
		Key:       "k2",
		Value:     []byte("v2"),
		CreatedAt: time.Now().UnixMilli(),
		TTL:       time.Hour.Milliseconds(),
	})

	sweeper := NewSweeper(s, time.Millisecond*10, log.NewNopLogger())
	done := make(chan struct{})
	go func() {
		sweeper.Run()
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return s.Len() == 1
	}, time.Second, time.Millisecond*10)

	_, ok := s.Get("k2")
	assert.True(t, ok)

	sweeper.Close()
	<-done
}
