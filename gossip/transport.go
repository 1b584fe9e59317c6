package gossip

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"
)

// Transport delivers gossip messages to remote peers.
//
// The engine is transport agnostic beyond this contract. Implementations
// must be safe for concurrent use; each per-peer exchange in a cycle runs
// on its own goroutine.
type Transport interface {
	// Send delivers the message to the peer at the given address without
	// waiting for a response.
	Send(ctx context.Context, addr string, msg *Message) error

	// Exchange delivers the message to the peer at the given address and
	// waits for the peer's response.
	Exchange(ctx context.Context, addr string, msg *Message) (*Message, error)
}

// TCPTransport exchanges gossip messages over a TCP connection per
// exchange.
type TCPTransport struct {
	dialer *net.Dialer

	// maxMessageSize bounds the accepted response size in bytes.
	maxMessageSize int64
}

func NewTCPTransport(maxMessageSize int) *TCPTransport {
	return &TCPTransport{
		dialer:         &net.Dialer{},
		maxMessageSize: int64(maxMessageSize),
	}
}

func (t *TCPTransport) Send(ctx context.Context, addr string, msg *Message) error {
	conn, err := t.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	if err := encodeMessage(w, msg); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (t *TCPTransport) Exchange(ctx context.Context, addr string, msg *Message) (*Message, error) {
	conn, err := t.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	if err := encodeMessage(w, msg); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	resp, err := decodeMessage(bufio.NewReader(conn), t.maxMessageSize)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return resp, nil
}

// dial connects to addr, bounding both the connect and the exchange by the
// context deadline.
func (t *TCPTransport) dial(ctx context.Context, addr string) (net.Conn, error) {
	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(time.Second * 10))
	}
	return conn, nil
}

var _ Transport = &TCPTransport{}
