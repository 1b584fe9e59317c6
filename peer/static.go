package peer

// Static is a provider configured with a fixed list of peer addresses.
type Static struct {
	peers []string
}

// NewStatic creates a provider returning the given addresses, excluding
// advertiseAddr (the local node).
func NewStatic(addrs []string, advertiseAddr string) *Static {
	var peers []string
	for _, addr := range addrs {
		if addr == advertiseAddr {
			continue
		}
		peers = append(peers, addr)
	}
	return &Static{
		peers: peers,
	}
}

func (p *Static) Peers() []string {
	peers := make([]string, len(p.peers))
	copy(peers, p.peers)
	return peers
}

var _ Provider = &Static{}
