package gossip

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/andydunstall/converge/pkg/log"
)

// handler processes an inbound gossip message and returns the response to
// send back to the peer, or nil if the message doesn't warrant one.
type handler func(msg *Message) *Message

// listener accepts incoming gossip connections and dispatches the decoded
// messages to the handler.
//
// Inbound handling is always active and independent of the push and pull
// timers.
type listener struct {
	ln net.Listener

	handler handler

	timeout time.Duration

	maxMessageSize int64

	metrics *Metrics

	logger log.Logger
}

func newListener(
	ln net.Listener,
	handler handler,
	timeout time.Duration,
	maxMessageSize int,
	metrics *Metrics,
	logger log.Logger,
) *listener {
	return &listener{
		ln:             ln,
		handler:        handler,
		timeout:        timeout,
		maxMessageSize: int64(maxMessageSize),
		metrics:        metrics,
		logger:         logger,
	}
}

// Serve accepts connections until the listener is closed.
func (l *listener) Serve() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Warn("failed to accept connection", zap.Error(err))
			continue
		}

		l.logger.Debug(
			"accepted conn",
			zap.String("addr", conn.RemoteAddr().String()),
		)

		l.metrics.ConnectionsInbound.Inc()

		go func() {
			if err := l.handleConn(conn); err != nil {
				l.metrics.MalformedInbound.Inc()
				l.logger.Warn(
					"failed to handle connection",
					zap.String("addr", conn.RemoteAddr().String()),
					zap.Error(err),
				)
			}
		}()
	}
}

func (l *listener) Close() error {
	return l.ln.Close()
}

// handleConn decodes a single message from the connection. A malformed or
// oversized message closes the connection without mutating the store.
func (l *listener) handleConn(conn net.Conn) error {
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(l.timeout))

	msg, err := decodeMessage(bufio.NewReader(conn), l.maxMessageSize)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	resp := l.handler(msg)
	if resp == nil {
		return nil
	}

	w := bufio.NewWriter(conn)
	if err := encodeMessage(w, resp); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
