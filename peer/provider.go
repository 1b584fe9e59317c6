// Package peer provides the sources of peer addresses the gossip engine
// exchanges state with.
//
// A provider is an abstraction over the current set of peers. The set may
// change between calls as peers appear and disappear; the engine queries
// the provider once per cycle and tolerates addresses becoming
// unreachable between selection and send.
//
// Peers have no identity beyond their address. A provider should exclude
// the local node's own advertised address.
package peer

// Provider supplies the current set of peer addresses.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	Peers() []string
}
