package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatic(t *testing.T) {
	t.Run("peers", func(t *testing.T) {
		provider := NewStatic(
			[]string{"1.1.1.1:1", "2.2.2.2:2"}, "3.3.3.3:3",
		)
		assert.Equal(t, []string{"1.1.1.1:1", "2.2.2.2:2"}, provider.Peers())
	})

	t.Run("filters own address", func(t *testing.T) {
		provider := NewStatic(
			[]string{"1.1.1.1:1", "2.2.2.2:2"}, "1.1.1.1:1",
		)
		assert.Equal(t, []string{"2.2.2.2:2"}, provider.Peers())
	})

	t.Run("no peers", func(t *testing.T) {
		provider := NewStatic(nil, "1.1.1.1:1")
		assert.Empty(t, provider.Peers())
	})
}
