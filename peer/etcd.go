package peer

import (
	"context"
	"fmt"
	"path"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/andydunstall/converge/pkg/log"
)

const (
	etcdDialTimeout    = time.Second * 5
	etcdRequestTimeout = time.Second * 5

	// etcdLeaseTTL is the registration lease in seconds. The lease is
	// kept alive while the node runs so a crashed node's registration
	// expires on its own.
	etcdLeaseTTL = 10
)

// Etcd is a provider backed by an etcd cluster.
//
// Each node registers its advertised address under a shared key prefix
// with a lease, and lists the prefix to discover its peers. Nodes that
// stop or crash drop out when their lease expires.
type Etcd struct {
	cli *clientv3.Client

	prefix string

	nodeID string

	advertiseAddr string

	leaseID clientv3.LeaseID

	logger log.Logger
}

func NewEtcd(
	endpoints []string,
	prefix string,
	nodeID string,
	advertiseAddr string,
	logger log.Logger,
) (*Etcd, error) {
	logger = logger.WithSubsystem("peer.etcd")

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: etcdDialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd connect: %w", err)
	}

	provider := &Etcd{
		cli:           cli,
		prefix:        prefix,
		nodeID:        nodeID,
		advertiseAddr: advertiseAddr,
		logger:        logger,
	}
	if err := provider.register(); err != nil {
		cli.Close()
		return nil, err
	}
	return provider, nil
}

func (p *Etcd) Peers() []string {
	ctx, cancel := context.WithTimeout(context.Background(), etcdRequestTimeout)
	defer cancel()

	resp, err := p.cli.Get(ctx, p.prefix, clientv3.WithPrefix())
	if err != nil {
		// List failures mean no peers this cycle; the next cycle retries.
		p.logger.Warn("failed to list peers", zap.Error(err))
		return nil
	}

	var peers []string
	for _, kv := range resp.Kvs {
		addr := string(kv.Value)
		if addr == p.advertiseAddr {
			continue
		}
		peers = append(peers, addr)
	}
	return peers
}

func (p *Etcd) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), etcdRequestTimeout)
	defer cancel()

	// Revoke the lease to deregister immediately rather than waiting for
	// the TTL.
	if _, err := p.cli.Revoke(ctx, p.leaseID); err != nil {
		p.logger.Warn("failed to revoke lease", zap.Error(err))
	}
	return p.cli.Close()
}

// register writes the node's advertised address under the prefix with a
// lease kept alive for the provider's lifetime.
func (p *Etcd) register() error {
	ctx, cancel := context.WithTimeout(context.Background(), etcdRequestTimeout)
	defer cancel()

	lease, err := p.cli.Grant(ctx, etcdLeaseTTL)
	if err != nil {
		return fmt.Errorf("etcd grant: %w", err)
	}
	p.leaseID = lease.ID

	key := path.Join(p.prefix, p.nodeID)
	if _, err := p.cli.Put(
		ctx, key, p.advertiseAddr, clientv3.WithLease(lease.ID),
	); err != nil {
		return fmt.Errorf("etcd put: %s: %w", key, err)
	}

	keepAlive, err := p.cli.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return fmt.Errorf("etcd keep alive: %w", err)
	}
	go func() {
		// Drain keep alive responses until the lease or client is
		// closed.
		for range keepAlive {
		}
	}()

	p.logger.Info(
		"registered node",
		zap.String("key", key),
		zap.String("addr", p.advertiseAddr),
	)
	return nil
}

var _ Provider = &Etcd{}
