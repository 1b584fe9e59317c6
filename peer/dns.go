package peer

import (
	"net"

	"go.uber.org/zap"

	"github.com/andydunstall/converge/pkg/log"
)

// DNS is a provider that resolves a domain to the current peer addresses.
//
// The domain is re-resolved on every call, so peers behind a headless
// service or round robin record are discovered as they come and go.
type DNS struct {
	domain string

	// port appended to each resolved IP.
	port string

	advertiseAddr string

	logger log.Logger
}

func NewDNS(domain string, port string, advertiseAddr string, logger log.Logger) *DNS {
	return &DNS{
		domain:        domain,
		port:          port,
		advertiseAddr: advertiseAddr,
		logger:        logger.WithSubsystem("peer.dns"),
	}
}

func (p *DNS) Peers() []string {
	ips, err := net.LookupIP(p.domain)
	if err != nil {
		// Resolution failures mean no peers this cycle; the next cycle
		// retries.
		p.logger.Warn(
			"failed to resolve domain",
			zap.String("domain", p.domain),
			zap.Error(err),
		)
		return nil
	}

	var peers []string
	for _, ip := range ips {
		addr := net.JoinHostPort(ip.String(), p.port)
		if addr == p.advertiseAddr {
			continue
		}
		peers = append(peers, addr)
	}
	return peers
}

var _ Provider = &DNS{}
