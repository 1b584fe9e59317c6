package gossip

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	// BindAddr is the address to bind to listen for gossip traffic.
	BindAddr string `json:"bind_addr" yaml:"bind_addr"`

	// AdvertiseAddr is the address to advertise to other nodes.
	AdvertiseAddr string `json:"advertise_addr" yaml:"advertise_addr"`

	// PushInterval is the rate to initiate a push cycle, proactively
	// disseminating recent local changes to a subset of peers.
	PushInterval time.Duration `json:"push_interval" yaml:"push_interval"`

	// PullInterval is the rate to initiate a pull cycle, reconciling the
	// full store with a subset of peers.
	//
	// Pull cycles repair divergence from dropped pushes, restarts and
	// late joining peers, so typically run far less often than pushes.
	PullInterval time.Duration `json:"pull_interval" yaml:"pull_interval"`

	// Fanout is the maximum number of peers contacted per cycle.
	Fanout int `json:"r0" yaml:"r0"`

	// Timeout bounds each per-peer exchange. A peer that doesn't respond
	// within the timeout is skipped for the round and retried next cycle.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxMessageSize is the maximum accepted gossip message size in
	// bytes. Inbound messages and pull responses exceeding it are dropped
	// as malformed.
	MaxMessageSize int `json:"max_message_size" yaml:"max_message_size"`

	// ForcePublish configures push cycles to send the entire store rather
	// than only the entries changed since the last cycle, trading
	// bandwidth for guaranteed eventual inclusion.
	ForcePublish bool `json:"force_publish" yaml:"force_publish"`
}

func (c *Config) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("missing bind addr")
	}
	if c.PushInterval <= 0 {
		return fmt.Errorf("push interval must be positive")
	}
	if c.PullInterval <= 0 {
		return fmt.Errorf("pull interval must be positive")
	}
	if c.Fanout <= 0 {
		return fmt.Errorf("fanout must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive")
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&c.BindAddr,
		"gossip.bind-addr",
		c.BindAddr,
		`
The host/port to listen for inter-node gossip traffic.

If the host is unspecified it defaults to all listeners, such as
a bind address ':4097' will listen on '0.0.0.0:4097'`,
	)

	fs.StringVar(
		&c.AdvertiseAddr,
		"gossip.advertise-addr",
		c.AdvertiseAddr,
		`
Gossip listen address to advertise to other nodes in the cluster. This is the
address other nodes will use to gossip with the node.

Such as if the listen address is ':4097', the advertised address may be
'10.26.104.45:4097' or 'node1.cluster:4097'.

By default, if the bind address includes an IP to bind to that will be used.
If the bind address does not include an IP (such as ':4097') the nodes
private IP will be used, such as a bind address of ':4097' may have an
advertise address of '10.26.104.14:4097'.`,
	)

	fs.DurationVar(
		&c.PushInterval,
		"gossip.push-interval",
		c.PushInterval,
		`
The interval to initiate push cycles.

Each push cycle sends the entries changed since the last cycle to up to 'r0'
peers.`,
	)

	fs.DurationVar(
		&c.PullInterval,
		"gossip.pull-interval",
		c.PullInterval,
		`
The interval to initiate pull cycles.

Each pull cycle reconciles the full store with up to 'r0' peers. Pulls
repair any divergence missed by pushes so typically run far less often.`,
	)

	fs.IntVar(
		&c.Fanout,
		"gossip.r0",
		c.Fanout,
		`
The maximum number of peers to contact per gossip cycle.

This is the primary lever for balancing convergence speed against network
load.`,
	)

	fs.DurationVar(
		&c.Timeout,
		"gossip.timeout",
		c.Timeout,
		`
The deadline for each per-peer exchange.

A peer that doesn't respond within the timeout is skipped for the round and
retried on the next cycle.`,
	)

	fs.IntVar(
		&c.MaxMessageSize,
		"gossip.max-message-size",
		c.MaxMessageSize,
		`
The maximum gossip message size in bytes.

Inbound messages and pull responses larger than this are dropped as
malformed.`,
	)

	fs.BoolVar(
		&c.ForcePublish,
		"gossip.force-publish",
		c.ForcePublish,
		`
Whether push cycles send the entire store instead of only the entries
changed since the last cycle.`,
	)
}
