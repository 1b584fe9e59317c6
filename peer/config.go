package peer

import (
	"fmt"

	"github.com/spf13/pflag"
)

const (
	KindStatic = "static"
	KindDNS    = "dns"
	KindEtcd   = "etcd"
	KindMDNS   = "mdns"
)

type EtcdConfig struct {
	// Endpoints is the list of etcd endpoints to connect to.
	Endpoints []string `json:"endpoints" yaml:"endpoints"`

	// Prefix is the key prefix nodes register under.
	Prefix string `json:"prefix" yaml:"prefix"`
}

type Config struct {
	// Kind selects the peer provider. Either 'static', 'dns', 'etcd' or
	// 'mdns'.
	Kind string `json:"kind" yaml:"kind"`

	// Addrs is the list of peer gossip addresses when using the 'static'
	// kind.
	Addrs []string `json:"addrs" yaml:"addrs"`

	// Domain is the domain resolved to peer addresses when using the
	// 'dns' kind.
	Domain string `json:"domain" yaml:"domain"`

	Etcd EtcdConfig `json:"etcd" yaml:"etcd"`
}

func (c *Config) Validate() error {
	switch c.Kind {
	case KindStatic:
	case KindDNS:
		if c.Domain == "" {
			return fmt.Errorf("missing domain")
		}
	case KindEtcd:
		if len(c.Etcd.Endpoints) == 0 {
			return fmt.Errorf("missing etcd endpoints")
		}
		if c.Etcd.Prefix == "" {
			return fmt.Errorf("missing etcd prefix")
		}
	case KindMDNS:
	default:
		return fmt.Errorf("unsupported kind: %s", c.Kind)
	}
	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&c.Kind,
		"peers.kind",
		c.Kind,
		`
The peer provider kind. Either 'static', 'dns', 'etcd' or 'mdns'.

'static' gossips with the fixed set of addresses in '--peers.addrs'.

'dns' resolves '--peers.domain' on every cycle and gossips with the
resolved addresses, such as the pods behind a Kubernetes headless service.

'etcd' registers the node in etcd and discovers the other registered
nodes.

'mdns' announces and discovers nodes on the local network.`,
	)

	fs.StringSliceVar(
		&c.Addrs,
		"peers.addrs",
		c.Addrs,
		`
A list of peer gossip addresses to exchange state with ('static' kind).`,
	)

	fs.StringVar(
		&c.Domain,
		"peers.domain",
		c.Domain,
		`
The domain to resolve to peer gossip addresses ('dns' kind).`,
	)

	fs.StringSliceVar(
		&c.Etcd.Endpoints,
		"peers.etcd.endpoints",
		c.Etcd.Endpoints,
		`
The etcd endpoints to connect to ('etcd' kind).`,
	)

	fs.StringVar(
		&c.Etcd.Prefix,
		"peers.etcd.prefix",
		c.Etcd.Prefix,
		`
The etcd key prefix nodes register under ('etcd' kind).`,
	)
}
