package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		conf := Default()
		assert.NoError(t, conf.Validate())
	})

	t.Run("missing gossip bind addr", func(t *testing.T) {
		conf := Default()
		conf.Gossip.BindAddr = ""
		assert.Error(t, conf.Validate())
	})

	t.Run("missing agent bind addr", func(t *testing.T) {
		conf := Default()
		conf.Agent.BindAddr = ""
		assert.Error(t, conf.Validate())
	})

	t.Run("negative store ttl", func(t *testing.T) {
		conf := Default()
		conf.Store.TTL = -time.Second
		assert.Error(t, conf.Validate())
	})

	t.Run("missing purge interval", func(t *testing.T) {
		conf := Default()
		conf.Store.PurgeInterval = 0
		assert.Error(t, conf.Validate())
	})

	t.Run("missing fanout", func(t *testing.T) {
		conf := Default()
		conf.Gossip.Fanout = 0
		assert.Error(t, conf.Validate())
	})

	t.Run("missing max message size", func(t *testing.T) {
		conf := Default()
		conf.Gossip.MaxMessageSize = 0
		assert.Error(t, conf.Validate())
	})

	t.Run("invalid peers kind", func(t *testing.T) {
		conf := Default()
		conf.Peers.Kind = "foo"
		assert.Error(t, conf.Validate())
	})

	t.Run("invalid log level", func(t *testing.T) {
		conf := Default()
		conf.Log.Level = "foo"
		assert.Error(t, conf.Validate())
	})
}
