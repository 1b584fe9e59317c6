package gossip

import "math/rand"

// selectPeers picks up to fanout peers uniformly at random without
// replacement. If there are fewer peers than the fanout all are returned.
//
// No peer is favoured across rounds; the fanout bounds the number of
// exchanges per cycle regardless of cluster size.
func selectPeers(peers []string, fanout int) []string {
	if fanout <= 0 || len(peers) == 0 {
		return nil
	}

	selected := make([]string, len(peers))
	copy(selected, peers)
	rand.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})

	if len(selected) > fanout {
		selected = selected[:fanout]
	}
	return selected
}
