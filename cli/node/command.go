package node

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/hashicorp/go-sockaddr"
	rungroup "github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andydunstall/converge/agent"
	"github.com/andydunstall/converge/gossip"
	"github.com/andydunstall/converge/node/config"
	"github.com/andydunstall/converge/peer"
	pkgconfig "github.com/andydunstall/converge/pkg/config"
	"github.com/andydunstall/converge/pkg/log"
	"github.com/andydunstall/converge/store"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "start a node",
		Long: `Start a node.

The node keeps a full local copy of the replicated key-value state, serves
reads and writes via the agent HTTP API, and periodically exchanges state
with its peers to keep the cluster converged.

Configure the peers to gossip with using '--peers.kind', either a static
address list, a DNS domain, etcd registration or mDNS discovery.

Examples:
  # Start a node gossiping with a fixed set of peers.
  converge node --peers.addrs 10.26.104.14:4097,10.26.104.75:4097

  # Start a node that discovers peers via a DNS domain, such as a
  # Kubernetes headless service.
  converge node --peers.kind dns --peers.domain converge.my-ns.svc.cluster.local

  # Start a node that registers in etcd and discovers the other
  # registered nodes.
  converge node --peers.kind etcd --peers.etcd.endpoints 10.26.104.10:2379

  # Expire entries after 5 minutes unless written with their own TTL.
  converge node --store.ttl 5m
`,
	}

	conf := config.Default()

	var configPath string
	cmd.Flags().StringVar(
		&configPath,
		"config.path",
		"",
		`
YAML config file path.`,
	)

	var configExpandEnv bool
	cmd.Flags().BoolVar(
		&configExpandEnv,
		"config.expand-env",
		false,
		`
Whether to expand environment variables in the config file.

This will replaces references to ${VAR} or $VAR with the corresponding
environment variable. The replacement is case-sensitive.

References to undefined variables will be replaced with an empty string. A
default value can be given using form ${VAR:default}.`,
	)

	// Register flags and set default values.
	conf.RegisterFlags(cmd.Flags())

	cmd.Run = func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			if err := pkgconfig.Load(configPath, conf, configExpandEnv); err != nil {
				fmt.Printf("load config: %s\n", err.Error())
				os.Exit(1)
			}
		}

		if err := conf.Validate(); err != nil {
			fmt.Printf("invalid config: %s\n", err.Error())
			os.Exit(1)
		}

		logger, err := log.NewLogger(conf.Log.Level, conf.Log.Subsystems)
		if err != nil {
			fmt.Printf("failed to setup logger: %s\n", err.Error())
			os.Exit(1)
		}

		if conf.NodeID == "" {
			conf.NodeID = uuid.New().String()
		}

		if conf.Gossip.AdvertiseAddr == "" {
			advertiseAddr, err := advertiseAddrFromBindAddr(conf.Gossip.BindAddr)
			if err != nil {
				logger.Error("invalid configuration", zap.Error(err))
				os.Exit(1)
			}
			conf.Gossip.AdvertiseAddr = advertiseAddr
		}

		if err := run(conf, logger); err != nil {
			logger.Error("failed to run node", zap.Error(err))
			os.Exit(1)
		}
	}

	return cmd
}

func run(conf *config.Config, logger log.Logger) error {
	logger.Info(
		"starting node",
		zap.String("node-id", conf.NodeID),
		zap.Any("conf", conf),
	)

	registry := prometheus.NewRegistry()

	s := store.New(
		store.WithDefaultTTL(conf.Store.TTL),
		store.WithMetrics(store.NewMetrics()),
	)
	s.Metrics().Register(registry)

	sweeper := store.NewSweeper(s, conf.Store.PurgeInterval, logger)

	if conf.Store.SeedPath != "" {
		// A failed seed isn't fatal; the node starts empty and converges
		// via its peers.
		n, err := store.SeedFile(s, conf.Store.SeedPath)
		if err != nil {
			logger.Warn("failed to seed store", zap.Error(err))
		} else {
			logger.Info(
				"seeded store",
				zap.Int("entries", n),
				zap.String("path", conf.Store.SeedPath),
			)
		}
	}

	provider, err := newProvider(conf, logger)
	if err != nil {
		return err
	}

	gossipLn, err := net.Listen("tcp", conf.Gossip.BindAddr)
	if err != nil {
		return fmt.Errorf("gossip listen: %s: %w", conf.Gossip.BindAddr, err)
	}
	gossiper := gossip.New(
		s,
		provider,
		gossip.NewTCPTransport(conf.Gossip.MaxMessageSize),
		gossipLn,
		&conf.Gossip,
		logger,
	)
	defer gossiper.Close()
	gossiper.Metrics().Register(registry)

	agentLn, err := net.Listen("tcp", conf.Agent.BindAddr)
	if err != nil {
		return fmt.Errorf("agent listen: %s: %w", conf.Agent.BindAddr, err)
	}
	agentServer := agent.NewServer(s, gossiper, registry, logger)

	var group rungroup.Group

	// Termination handler.
	signalCtx, signalCancel := context.WithCancel(context.Background())
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	group.Add(func() error {
		select {
		case sig := <-signalCh:
			logger.Info(
				"received shutdown signal",
				zap.String("signal", sig.String()),
			)
			return nil
		case <-signalCtx.Done():
			return nil
		}
	}, func(error) {
		signalCancel()
	})

	// Agent server.
	group.Add(func() error {
		if err := agentServer.Serve(agentLn); err != nil {
			return fmt.Errorf("agent server serve: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), conf.GracePeriod,
		)
		defer cancel()

		if err := agentServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to gracefully shutdown agent server", zap.Error(err))
		}

		logger.Info("agent server shut down")
	})

	// Expiry sweeper.
	group.Add(func() error {
		sweeper.Run()
		return nil
	}, func(error) {
		sweeper.Close()
	})

	if err := group.Run(); err != nil {
		return err
	}

	if closer, ok := provider.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close peer provider", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")

	return nil
}

func newProvider(conf *config.Config, logger log.Logger) (peer.Provider, error) {
	switch conf.Peers.Kind {
	case peer.KindStatic:
		return peer.NewStatic(conf.Peers.Addrs, conf.Gossip.AdvertiseAddr), nil
	case peer.KindDNS:
		_, port, err := net.SplitHostPort(conf.Gossip.AdvertiseAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid advertise addr: %s: %w", conf.Gossip.AdvertiseAddr, err)
		}
		return peer.NewDNS(
			conf.Peers.Domain, port, conf.Gossip.AdvertiseAddr, logger,
		), nil
	case peer.KindEtcd:
		return peer.NewEtcd(
			conf.Peers.Etcd.Endpoints,
			conf.Peers.Etcd.Prefix,
			conf.NodeID,
			conf.Gossip.AdvertiseAddr,
			logger,
		)
	case peer.KindMDNS:
		return peer.NewMDNS(conf.NodeID, conf.Gossip.AdvertiseAddr, logger)
	default:
		return nil, fmt.Errorf("unsupported peers kind: %s", conf.Peers.Kind)
	}
}

func advertiseAddrFromBindAddr(bindAddr string) (string, error) {
	if strings.HasPrefix(bindAddr, ":") {
		bindAddr = "0.0.0.0" + bindAddr
	}

	host, port, err := net.SplitHostPort(bindAddr)
	if err != nil {
		return "", fmt.Errorf("invalid bind addr: %s: %w", bindAddr, err)
	}

	if host == "0.0.0.0" {
		ip, err := sockaddr.GetPrivateIP()
		if err != nil {
			return "", fmt.Errorf("get interface addr: %w", err)
		}
		if ip == "" {
			return "", fmt.Errorf("no private ip found")
		}
		return ip + ":" + port, nil
	}
	return bindAddr, nil
}
