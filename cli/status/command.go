package status

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/andydunstall/converge/agent"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "inspect node status",
		Long: `Inspect node status.

Each node exposes a status API to inspect the state of the node, this can
be used to answer questions such as:
* How many keys does this node hold?
* What is the node's store hash, to compare replicas for convergence?
* What peers is this node gossiping with, and when did it last push and
  pull?

See 'status --help' for the available commands.

Examples:
  # Inspect the local store state.
  converge status store

  # Inspect the gossip state of node 10.26.104.56:3097.
  converge status gossip --server http://10.26.104.56:3097
`,
	}

	cmd.AddCommand(newStoreCommand())
	cmd.AddCommand(newGossipCommand())

	return cmd
}

func newStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "inspect store state",
		Long: `Inspect store state.

Queries the node for the number of keys it holds and its store content
hash. Two converged replicas report the same hash.

Examples:
  converge status store
`,
	}

	server := cmd.Flags().String(
		"server",
		"http://localhost:3097",
		`
Node agent URL to query.
`,
	)

	cmd.Run = func(cmd *cobra.Command, args []string) {
		client, err := agent.NewClient(*server)
		if err != nil {
			fmt.Printf("invalid server url: %s\n", err.Error())
			os.Exit(1)
		}

		status, err := client.StoreStatus()
		if err != nil {
			fmt.Printf("failed to get store status: %s\n", err.Error())
			os.Exit(1)
		}

		b, _ := yaml.Marshal(status)
		fmt.Println(string(b))
	}

	return cmd
}

func newGossipCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gossip",
		Short: "inspect gossip state",
		Long: `Inspect gossip state.

Queries the node for its known peers and the timestamps of its last push
and pull cycles.

Examples:
  converge status gossip
`,
	}

	server := cmd.Flags().String(
		"server",
		"http://localhost:3097",
		`
Node agent URL to query.
`,
	)

	cmd.Run = func(cmd *cobra.Command, args []string) {
		client, err := agent.NewClient(*server)
		if err != nil {
			fmt.Printf("invalid server url: %s\n", err.Error())
			os.Exit(1)
		}

		status, err := client.GossipStatus()
		if err != nil {
			fmt.Printf("failed to get gossip status: %s\n", err.Error())
			os.Exit(1)
		}

		b, _ := yaml.Marshal(status)
		fmt.Println(string(b))
	}

	return cmd
}
