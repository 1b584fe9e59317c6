package cli

import (
	"github.com/spf13/cobra"

	"github.com/andydunstall/converge/cli/node"
	"github.com/andydunstall/converge/cli/status"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "converge [command] (flags)",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Long: `Converge replicates a key-value store across a cluster of nodes.

Each node holds a full copy of the state and serves reads and writes
locally over HTTP. Nodes periodically exchange state with a random subset
of their peers, so updates spread through the cluster without any
coordinator and replicas converge on the same state.

Conflicting writes to the same key are resolved by keeping the entry with
the latest timestamp.

Start a node with:

  $ converge node --peers.addrs 10.26.104.14:4097,10.26.104.75:4097

Then read and write keys via the agent HTTP API:

  $ curl -X PUT localhost:3097/keys/my-key -d '{"value": "my-value"}'
  $ curl localhost:3097/keys/my-key

You can also inspect the status of a node using:

  $ converge status store
`,
	}

	cmd.AddCommand(node.NewCommand())
	cmd.AddCommand(status.NewCommand())

	return cmd
}

func init() {
	cobra.EnableCommandSorting = false
}
