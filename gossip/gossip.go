package gossip

import (
	"context"
	"math/rand"
	"net"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andydunstall/converge/peer"
	"github.com/andydunstall/converge/pkg/log"
	"github.com/andydunstall/converge/store"
)

// maxConcurrentExchanges bounds how many per-peer exchanges run at once
// within a cycle.
const maxConcurrentExchanges = 4

// Gossip drives the anti-entropy protocol that reconciles the local store
// with a dynamic set of peers.
//
// Push and pull cycles run on independent timers and may overlap. Each
// cycle selects up to the configured fanout of peers and exchanges with
// them in parallel, so a slow or unreachable peer delays nobody else; the
// failed peer is skipped for the round and retried next cycle. Inbound
// exchanges are handled continuously, independent of both timers.
type Gossip struct {
	store *store.Store

	provider peer.Provider

	transport Transport

	conf *Config

	listener *listener

	// lastPush is the watermark of the last completed push cycle, in Unix
	// milliseconds. Entries versioned at or after it are included in the
	// next push.
	lastPush *atomic.Int64

	lastPull *atomic.Int64

	metrics *Metrics

	logger log.Logger

	closed     *atomic.Bool
	shutdownCh chan struct{}
}

func New(
	s *store.Store,
	provider peer.Provider,
	transport Transport,
	ln net.Listener,
	conf *Config,
	logger log.Logger,
) *Gossip {
	logger = logger.WithSubsystem("gossip")

	logger.Info(
		"starting gossip",
		zap.String("bind-addr", conf.BindAddr),
		zap.String("advertise-addr", conf.AdvertiseAddr),
		zap.Duration("push-interval", conf.PushInterval),
		zap.Duration("pull-interval", conf.PullInterval),
		zap.Int("fanout", conf.Fanout),
	)

	metrics := newMetrics()

	gossip := &Gossip{
		store:      s,
		provider:   provider,
		transport:  transport,
		conf:       conf,
		lastPush:   atomic.NewInt64(0),
		lastPull:   atomic.NewInt64(0),
		metrics:    metrics,
		logger:     logger,
		closed:     atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
	}

	gossip.listener = newListener(
		ln, gossip.onMessage, conf.Timeout, conf.MaxMessageSize, metrics, logger,
	)
	go gossip.listener.Serve()

	gossip.schedule()
	return gossip
}

func (g *Gossip) Metrics() *Metrics {
	return g.metrics
}

// Status reports the current peers and cycle timestamps for inspection.
func (g *Gossip) Status() Status {
	return Status{
		Peers:    g.provider.Peers(),
		Fanout:   g.conf.Fanout,
		LastPush: time.UnixMilli(g.lastPush.Load()),
		LastPull: time.UnixMilli(g.lastPull.Load()),
	}
}

// Close stops the gossip cycles and the inbound listener.
//
// In-flight exchanges are abandoned; since entries are merged one
// compare-and-replace at a time an abandoned exchange never leaves the
// store in a partially merged state.
func (g *Gossip) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		// Already closed.
		return nil
	}

	close(g.shutdownCh)
	return g.listener.Close()
}

// schedule runs the push and pull cycles at their configured rates.
func (g *Gossip) schedule() {
	go g.scheduleFunc(g.conf.PushInterval, g.pushRound)
	go g.scheduleFunc(g.conf.PullInterval, g.pullRound)
}

func (g *Gossip) scheduleFunc(interval time.Duration, f func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Add 10% jitter to avoid nodes synchronising. Sub-millisecond
			// intervals get no jitter.
			var jitterMs int64
			if ms := interval.Milliseconds(); ms > 0 {
				jitterMs = (rand.Int63() % ms) / 10
			}
			select {
			case <-time.After(time.Duration(jitterMs) * time.Millisecond):
				f()
			case <-g.shutdownCh:
				return
			}

		case <-g.shutdownCh:
			return
		}
	}
}

// pushRound sends the entries changed since the last push cycle (or the
// entire store if force publish is configured) to up to fanout peers.
//
// Pushes are fire and forget: no response is expected and delivery
// failures are logged and retried implicitly by later cycles.
func (g *Gossip) pushRound() {
	g.metrics.RoundsTotal.WithLabelValues("push").Inc()

	peers := selectPeers(g.provider.Peers(), g.conf.Fanout)
	if len(peers) == 0 {
		return
	}

	// Watermark before reading the store so a concurrent write is never
	// skipped; it may instead be sent twice, which merging tolerates.
	now := time.Now().UnixMilli()

	msg := &Message{Type: MessageTypePush}
	if g.conf.ForcePublish {
		msg.Type = MessageTypeFullPush
		msg.Entries = g.store.Snapshot()
	} else {
		msg.Entries = g.store.EntriesSince(g.lastPush.Load())
	}
	if len(msg.Entries) == 0 {
		g.lastPush.Store(now)
		return
	}

	var group errgroup.Group
	group.SetLimit(maxConcurrentExchanges)
	for _, addr := range peers {
		group.Go(func() error {
			g.metrics.PeersContacted.WithLabelValues("push").Inc()

			ctx, cancel := context.WithTimeout(
				context.Background(), g.conf.Timeout,
			)
			defer cancel()

			if err := g.transport.Send(ctx, addr, msg); err != nil {
				g.metrics.PeerFailures.WithLabelValues("push").Inc()
				g.logger.Warn(
					"failed to push to peer",
					zap.String("addr", addr),
					zap.Error(err),
				)
				return nil
			}

			g.metrics.EntriesOutbound.Add(float64(len(msg.Entries)))
			return nil
		})
	}
	_ = group.Wait()

	g.lastPush.Store(now)
}

// pullRound requests the entries the local store is missing from up to
// fanout peers and reconciles every returned entry.
func (g *Gossip) pullRound() {
	g.metrics.RoundsTotal.WithLabelValues("pull").Inc()

	peers := selectPeers(g.provider.Peers(), g.conf.Fanout)
	if len(peers) == 0 {
		return
	}

	msg := &Message{
		Type:   MessageTypePullRequest,
		Digest: g.store.Digest(),
		Hash:   g.store.Hash(),
	}

	var group errgroup.Group
	group.SetLimit(maxConcurrentExchanges)
	for _, addr := range peers {
		group.Go(func() error {
			g.metrics.PeersContacted.WithLabelValues("pull").Inc()

			ctx, cancel := context.WithTimeout(
				context.Background(), g.conf.Timeout,
			)
			defer cancel()

			resp, err := g.transport.Exchange(ctx, addr, msg)
			if err != nil {
				g.metrics.PeerFailures.WithLabelValues("pull").Inc()
				g.logger.Warn(
					"failed to pull from peer",
					zap.String("addr", addr),
					zap.Error(err),
				)
				return nil
			}
			if resp.Type != MessageTypePullResponse {
				g.metrics.PeerFailures.WithLabelValues("pull").Inc()
				g.logger.Warn(
					"unexpected pull response type",
					zap.String("addr", addr),
					zap.String("type", resp.Type.String()),
				)
				return nil
			}

			g.applyEntries(resp.Entries)
			return nil
		})
	}
	_ = group.Wait()

	g.lastPull.Store(time.Now().UnixMilli())
}

// onMessage handles an inbound message from a peer, returning the
// response to send back, if any.
func (g *Gossip) onMessage(msg *Message) *Message {
	switch msg.Type {
	case MessageTypePush, MessageTypeFullPush:
		g.applyEntries(msg.Entries)
		return nil
	case MessageTypePullRequest:
		resp := &Message{Type: MessageTypePullResponse}
		if msg.Hash == g.store.Hash() {
			// The stores already match; skip diffing the digest.
			return resp
		}
		resp.Entries = g.store.DeltaFor(msg.Digest)
		g.metrics.EntriesOutbound.Add(float64(len(resp.Entries)))
		return resp
	default:
		// An unsolicited pull response; drop it.
		g.logger.Warn(
			"dropping unexpected message",
			zap.String("type", msg.Type.String()),
		)
		return nil
	}
}

func (g *Gossip) applyEntries(entries []store.Entry) {
	g.metrics.EntriesInbound.Add(float64(len(entries)))
	for _, entry := range entries {
		g.store.Merge(entry)
	}
}

// Status contains the gossip state exposed for inspection.
type Status struct {
	// Peers is the current set of peer addresses supplied by the peer
	// provider.
	Peers []string `json:"peers"`

	// Fanout is the configured maximum number of peers contacted per
	// cycle.
	Fanout int `json:"fanout"`

	LastPush time.Time `json:"last_push"`

	LastPull time.Time `json:"last_pull"`
}
