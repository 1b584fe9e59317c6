package gossip

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/converge/store"
)

func TestProtocol_EncodeDecode(t *testing.T) {
	t.Run("push", func(t *testing.T) {
		msg := &Message{
			Type: MessageTypePush,
			Entries: []store.Entry{
				{Key: "k1", Value: []byte("v1"), CreatedAt: 100},
				{Key: "k2", Value: []byte("v2"), CreatedAt: 200, TTL: 5000},
			},
		}

		var buf bytes.Buffer
		require.NoError(t, encodeMessage(&buf, msg))

		decoded, err := decodeMessage(&buf, 1<<20)
		require.NoError(t, err)
		assert.Equal(t, msg, decoded)
	})

	t.Run("pull request", func(t *testing.T) {
		msg := &Message{
			Type: MessageTypePullRequest,
			Digest: store.Digest{
				{Key: "k1", CreatedAt: 100},
				{Key: "k2", CreatedAt: 200},
			},
			Hash: 0xdeadbeef,
		}

		var buf bytes.Buffer
		require.NoError(t, encodeMessage(&buf, msg))

		decoded, err := decodeMessage(&buf, 1<<20)
		require.NoError(t, err)
		assert.Equal(t, msg, decoded)
	})

	t.Run("empty pull response", func(t *testing.T) {
		msg := &Message{Type: MessageTypePullResponse}

		var buf bytes.Buffer
		require.NoError(t, encodeMessage(&buf, msg))

		decoded, err := decodeMessage(&buf, 1<<20)
		require.NoError(t, err)
		assert.Equal(t, msg, decoded)
	})
}

func TestProtocol_Decode(t *testing.T) {
	t.Run("unsupported message type", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, encodeMessage(&buf, &Message{Type: MessageTypePush}))

		b := buf.Bytes()
		b[0] = 0xff

		_, err := decodeMessage(bytes.NewReader(b), 1<<20)
		assert.Error(t, err)
	})

	t.Run("unsupported version", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, encodeMessage(&buf, &Message{Type: MessageTypePush}))

		b := buf.Bytes()
		b[1] = supportedVersion + 1

		_, err := decodeMessage(bytes.NewReader(b), 1<<20)
		assert.Error(t, err)
	})

	t.Run("truncated payload", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, encodeMessage(&buf, &Message{
			Type: MessageTypePush,
			Entries: []store.Entry{
				{Key: "k1", Value: []byte("v1"), CreatedAt: 100},
			},
		}))

		b := buf.Bytes()

		_, err := decodeMessage(bytes.NewReader(b[:len(b)/2]), 1<<20)
		assert.Error(t, err)
	})

	t.Run("empty stream", func(t *testing.T) {
		_, err := decodeMessage(bytes.NewReader(nil), 1<<20)
		assert.Error(t, err)
	})

	t.Run("oversized frame", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, encodeMessage(&buf, &Message{
			Type: MessageTypePush,
			Entries: []store.Entry{
				{Key: "k1", Value: bytes.Repeat([]byte("x"), 1024), CreatedAt: 100},
			},
		}))

		_, err := decodeMessage(bytes.NewReader(buf.Bytes()), 512)
		assert.Error(t, err)

		// The same frame decodes under a sufficient limit.
		_, err = decodeMessage(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		assert.NoError(t, err)
	})
}
