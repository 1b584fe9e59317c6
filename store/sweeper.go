package store

import (
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/andydunstall/converge/pkg/log"
)

// Sweeper periodically removes expired entries from the store.
//
// Sweeping is best effort and runs independently of ongoing gossip cycles.
// An expired entry that hasn't been swept yet is still hidden from reads.
type Sweeper struct {
	store *Store

	interval time.Duration

	logger log.Logger

	closed     *atomic.Bool
	shutdownCh chan struct{}
}

func NewSweeper(store *Store, interval time.Duration, logger log.Logger) *Sweeper {
	return &Sweeper{
		store:      store,
		interval:   interval,
		logger:     logger.WithSubsystem("store.sweeper"),
		closed:     atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
	}
}

// Run sweeps the store at the configured interval until the sweeper is
// closed.
func (s *Sweeper) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if purged := s.store.PurgeExpired(); purged > 0 {
				s.logger.Debug(
					"purged expired entries",
					zap.Int("purged", purged),
				)
			}
		case <-s.shutdownCh:
			return
		}
	}
}

func (s *Sweeper) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		// Already closed.
		return
	}
	close(s.shutdownCh)
}
