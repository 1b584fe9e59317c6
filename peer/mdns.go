package peer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/andydunstall/converge/pkg/log"
)

const mdnsService = "_converge._tcp"

// MDNS is a provider that discovers peers on the local network via mDNS.
//
// The local node is announced as a zeroconf service and a background
// browser collects the addresses of other announced nodes.
type MDNS struct {
	nodeID string

	server *zeroconf.Server

	// mu protects peers.
	mu    sync.Mutex
	peers map[string]struct{}

	cancel context.CancelFunc

	logger log.Logger
}

func NewMDNS(nodeID string, advertiseAddr string, logger log.Logger) (*MDNS, error) {
	logger = logger.WithSubsystem("peer.mdns")

	_, portStr, err := net.SplitHostPort(advertiseAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid advertise addr: %s: %w", advertiseAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid advertise addr: %s: %w", advertiseAddr, err)
	}

	server, err := zeroconf.Register(
		nodeID, mdnsService, "local.", port, []string{"node=" + nodeID}, nil,
	)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		server.Shutdown()
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	provider := &MDNS{
		nodeID: nodeID,
		server: server,
		peers:  make(map[string]struct{}),
		cancel: cancel,
		logger: logger,
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go provider.browse(entries)

	if err := resolver.Browse(ctx, mdnsService, "local.", entries); err != nil {
		cancel()
		server.Shutdown()
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	return provider, nil
}

func (p *MDNS) Peers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	peers := make([]string, 0, len(p.peers))
	for addr := range p.peers {
		peers = append(peers, addr)
	}
	return peers
}

func (p *MDNS) Close() error {
	p.cancel()
	p.server.Shutdown()
	return nil
}

func (p *MDNS) browse(entries <-chan *zeroconf.ServiceEntry) {
	for entry := range entries {
		if p.isSelf(entry) {
			continue
		}

		for _, ip := range entry.AddrIPv4 {
			p.addPeer(net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port)))
		}
		for _, ip := range entry.AddrIPv6 {
			p.addPeer(net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port)))
		}
	}
}

func (p *MDNS) addPeer(addr string) {
	p.mu.Lock()
	_, ok := p.peers[addr]
	if !ok {
		p.peers[addr] = struct{}{}
	}
	p.mu.Unlock()

	if !ok {
		p.logger.Info("discovered peer", zap.String("addr", addr))
	}
}

func (p *MDNS) isSelf(entry *zeroconf.ServiceEntry) bool {
	for _, txt := range entry.Text {
		if txt == "node="+p.nodeID {
			return true
		}
	}
	return false
}

var _ Provider = &MDNS{}
