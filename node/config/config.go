package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/andydunstall/converge/gossip"
	"github.com/andydunstall/converge/peer"
	"github.com/andydunstall/converge/pkg/log"
)

type StoreConfig struct {
	// TTL is the default entry expiry applied to entries written without
	// their own TTL. Zero means entries never expire.
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// PurgeInterval is the interval between sweeps of expired entries.
	PurgeInterval time.Duration `json:"purge_interval" yaml:"purge_interval"`

	// SeedPath is an optional JSON file of key to value used to seed the
	// store at startup.
	SeedPath string `json:"seed_path" yaml:"seed_path"`
}

func (c *StoreConfig) Validate() error {
	if c.TTL < 0 {
		return fmt.Errorf("ttl must not be negative")
	}
	if c.PurgeInterval <= 0 {
		return fmt.Errorf("purge interval must be positive")
	}
	return nil
}

func (c *StoreConfig) RegisterFlags(fs *pflag.FlagSet) {
	fs.DurationVar(
		&c.TTL,
		"store.ttl",
		c.TTL,
		`
The default expiry applied to entries written without their own TTL.

Set to 0 to keep entries forever.`,
	)
	fs.DurationVar(
		&c.PurgeInterval,
		"store.purge-interval",
		c.PurgeInterval,
		`
Interval between sweeps that remove expired entries from the store.`,
	)
	fs.StringVar(
		&c.SeedPath,
		"store.seed-path",
		c.SeedPath,
		`
Path to a JSON file of key to value used to seed the store at startup.

Seeded entries are versioned like any other local write, so they spread
to peers and may be replaced by newer updates.`,
	)
}

type AgentConfig struct {
	// BindAddr is the address to bind the agent HTTP server on.
	BindAddr string `json:"bind_addr" yaml:"bind_addr"`
}

func (c *AgentConfig) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("missing bind addr")
	}
	return nil
}

func (c *AgentConfig) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&c.BindAddr,
		"agent.bind-addr",
		c.BindAddr,
		`
The host/port to bind the agent HTTP server on, which serves local reads
and writes plus '/health', '/metrics' and '/status'.`,
	)
}

type Config struct {
	// NodeID is a unique identifier for this node in the cluster.
	//
	// Generated if not set.
	NodeID string `json:"node_id" yaml:"node_id"`

	Store StoreConfig `json:"store" yaml:"store"`

	Gossip gossip.Config `json:"gossip" yaml:"gossip"`

	Agent AgentConfig `json:"agent" yaml:"agent"`

	Peers peer.Config `json:"peers" yaml:"peers"`

	Log log.Config `json:"log" yaml:"log"`

	// GracePeriod is the maximum duration to wait for pending agent
	// requests to complete on shutdown.
	GracePeriod time.Duration `json:"grace_period" yaml:"grace_period"`
}

func Default() *Config {
	return &Config{
		Store: StoreConfig{
			PurgeInterval: time.Minute,
		},
		Gossip: gossip.Config{
			BindAddr:       ":4097",
			PushInterval:   time.Second,
			PullInterval:   time.Minute,
			Fanout:         3,
			Timeout:        time.Second,
			MaxMessageSize: 4 << 20,
		},
		Agent: AgentConfig{
			BindAddr: ":3097",
		},
		Peers: peer.Config{
			Kind: peer.KindStatic,
		},
		Log: log.Config{
			Level: "info",
		},
		GracePeriod: time.Minute,
	}
}

func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Gossip.Validate(); err != nil {
		return fmt.Errorf("gossip: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Peers.Validate(); err != nil {
		return fmt.Errorf("peers: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("grace period must be positive")
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&c.NodeID,
		"node-id",
		c.NodeID,
		`
A unique identifier for the node in the cluster.

Generated if not set.`,
	)

	c.Store.RegisterFlags(fs)
	c.Gossip.RegisterFlags(fs)
	c.Agent.RegisterFlags(fs)
	c.Peers.RegisterFlags(fs)
	c.Log.RegisterFlags(fs)

	fs.DurationVar(
		&c.GracePeriod,
		"grace-period",
		c.GracePeriod,
		`
Maximum duration after a shutdown signal to wait for pending agent
requests to complete then terminate.`,
	)
}
