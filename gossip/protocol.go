package gossip

import (
	"fmt"
	"io"

	"github.com/ugorji/go/codec"

	"github.com/andydunstall/converge/store"
)

// MessageType identifies the kind of a gossip message.
type MessageType uint8

const (
	// MessageTypePush carries the sender's entries changed since its last
	// push cycle. No response is expected.
	MessageTypePush MessageType = iota + 1
	// MessageTypeFullPush carries the sender's entire store. No response
	// is expected.
	MessageTypeFullPush
	// MessageTypePullRequest carries the sender's digest and store hash,
	// requesting the entries the sender is missing.
	MessageTypePullRequest
	// MessageTypePullResponse carries the entries the requester's digest
	// reported as missing or stale.
	MessageTypePullResponse
)

func (t MessageType) String() string {
	switch t {
	case MessageTypePush:
		return "push"
	case MessageTypeFullPush:
		return "full-push"
	case MessageTypePullRequest:
		return "pull-request"
	case MessageTypePullResponse:
		return "pull-response"
	default:
		return "unknown"
	}
}

const supportedVersion uint8 = 0

// Message is a single gossip protocol message.
//
// Which fields are set depends on the message type: Entries for push, full
// push and pull response messages, Digest and Hash for pull requests.
type Message struct {
	Type MessageType `codec:"-"`

	Entries []store.Entry `codec:"entries"`

	Digest store.Digest `codec:"digest"`

	// Hash is the requester's store hash. A responder whose store hash
	// matches replies with an empty response without diffing the digest.
	Hash uint64 `codec:"hash"`
}

// encodeMessage writes the message to w, framed as a message type byte and
// a protocol version byte followed by the msgpack encoded payload.
func encodeMessage(w io.Writer, msg *Message) error {
	if _, err := w.Write([]byte{uint8(msg.Type), supportedVersion}); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	var handle codec.MsgpackHandle
	if err := codec.NewEncoder(w, &handle).Encode(msg); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// decodeMessage reads a single framed message from r. Frames larger than
// maxSize bytes fail to decode.
func decodeMessage(r io.Reader, maxSize int64) (*Message, error) {
	r = io.LimitReader(r, maxSize)

	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	messageType := MessageType(header[0])
	switch messageType {
	case MessageTypePush, MessageTypeFullPush,
		MessageTypePullRequest, MessageTypePullResponse:
	default:
		return nil, fmt.Errorf("unsupported message type: %d", header[0])
	}
	if header[1] != supportedVersion {
		return nil, fmt.Errorf("unsupported version: %d", header[1])
	}

	msg := &Message{}
	var handle codec.MsgpackHandle
	if err := codec.NewDecoder(r, &handle).Decode(msg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	msg.Type = messageType

	return msg, nil
}
