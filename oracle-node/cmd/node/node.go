// Package node implements the oracle node: the untrusted host with its chain
// store, the enclave, and the workers connecting them.
package node

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/encointer/personhood-oracle/common/crypto/signature"
	fileSigner "github.com/encointer/personhood-oracle/common/crypto/signature/signers/file"
	"github.com/encointer/personhood-oracle/common/logging"
	"github.com/encointer/personhood-oracle/common/service"
	"github.com/encointer/personhood-oracle/common/version"
	"github.com/encointer/personhood-oracle/config"
	"github.com/encointer/personhood-oracle/light"
	cmdCommon "github.com/encointer/personhood-oracle/oracle-node/cmd/common"
	"github.com/encointer/personhood-oracle/oracle-node/cmd/common/background"
	"github.com/encointer/personhood-oracle/oracle-node/cmd/common/metrics"
	"github.com/encointer/personhood-oracle/runtime/enclave"
	"github.com/encointer/personhood-oracle/runtime/host"
	"github.com/encointer/personhood-oracle/runtime/host/protocol"
	"github.com/encointer/personhood-oracle/storage/badger"
	"github.com/encointer/personhood-oracle/worker/chainsync"
	"github.com/encointer/personhood-oracle/worker/direct"
)

const startupTimeout = 30 * time.Second

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "run the oracle node",
	Run:   Run,
}

// Node is the oracle node.
type Node struct {
	svcMgr *background.ServiceManager

	Store     *badger.ChainStore
	Identity  signature.Signer
	Enclave   *enclave.Guest
	Host      *host.Host
	DirectRPC *direct.Worker
	ChainSync *chainsync.Worker

	logger *logging.Logger
}

// Wait waits for the node to be stopped.
func (n *Node) Wait() {
	n.svcMgr.Wait()
}

// Stop stops the node.
func (n *Node) Stop() {
	n.svcMgr.Stop()
}

// Cleanup cleans up after the node has terminated.
func (n *Node) Cleanup() {
	n.svcMgr.Cleanup()
}

func (n *Node) initEnclave(ctx context.Context, cfg *config.Config) error {
	root, err := light.TrustRootFromConfig(ctx, n.Store, &cfg.Light.Trust)
	if err != nil {
		return err
	}

	if n.Enclave, err = enclave.New(&enclave.Config{
		TrustRoot:    root,
		Identity:     n.Identity,
		Oracle:       &cfg.Oracle,
		LocalBackend: n.Store,
	}); err != nil {
		return err
	}
	if n.Host, err = host.New(n.Store); err != nil {
		return err
	}

	connEnclave, connHost := net.Pipe()
	if err = n.Enclave.Start(connEnclave); err != nil {
		return err
	}
	n.svcMgr.RegisterCleanupOnly(service.CleanupFunc(n.Enclave.Stop), "runtime/enclave")

	info, err := n.Host.Start(ctx, connHost, &protocol.HostInfo{
		StorageBackend: cfg.Oracle.StorageBackend,
	})
	if err != nil {
		return err
	}
	n.svcMgr.RegisterCleanupOnly(service.CleanupFunc(n.Host.Stop), "runtime/host")

	n.logger.Info("enclave ready",
		"software_version", info.SoftwareVersion,
		"protocol_version", info.ProtocolVersion,
		"trusted_height", info.LatestHeight,
		"issuer_key", info.IssuerKey,
		"identity", n.Identity.Public(),
	)

	n.ChainSync = chainsync.New(&cfg.ChainSync, n.Store, n.Host, info.LatestHeight)
	return nil
}

func (n *Node) start(ctx context.Context) error {
	if err := n.svcMgr.Start(); err != nil {
		return err
	}

	cycle, err := n.Host.CurrentCycle(ctx)
	if err != nil {
		return fmt.Errorf("failed to query current cycle: %w", err)
	}
	n.logger.Info("node started",
		"current_cycle", cycle.CurrentCycle,
		"height", cycle.Height,
	)
	return nil
}

// NewNode creates and starts a new oracle node from the global
// configuration.
func NewNode() (*Node, error) {
	logger := cmdCommon.Logger()
	cfg := &config.GlobalConfig

	node := &Node{
		svcMgr: background.NewServiceManager(logger),
		logger: logger,
	}
	var err error
	// Cleanup on failure.
	defer func() {
		if err != nil {
			node.svcMgr.StopAll()
			node.Cleanup()
		}
	}()

	dataDir := cmdCommon.DataDir()
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	logger.Info("starting oracle node",
		"software_version", version.SoftwareVersion,
		"data_dir", dataDir,
		"storage_backend", cfg.Oracle.StorageBackend,
	)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	metricsSvc, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics service: %w", err)
	}
	node.svcMgr.Register(metricsSvc)

	if node.Store, err = badger.New(&badger.Config{DataDir: dataDir}); err != nil {
		return nil, fmt.Errorf("failed to open chain store: %w", err)
	}
	node.svcMgr.RegisterCleanupOnly(service.CleanupFunc(node.Store.Close), "storage/badger")

	factory := fileSigner.NewFactory(dataDir, signature.SignerEnclave)
	if node.Identity, err = factory.LoadOrGenerate(signature.SignerEnclave, rand.Reader); err != nil {
		return nil, fmt.Errorf("failed to load enclave identity: %w", err)
	}

	if err = node.initEnclave(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize enclave: %w", err)
	}

	node.DirectRPC = direct.New(&cfg.DirectRPC, node.Host)
	node.svcMgr.Register(node.DirectRPC)
	node.svcMgr.Register(node.ChainSync)

	if err = node.start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start services: %w", err)
	}
	return node, nil
}

// Run runs the oracle node.
func Run(cmd *cobra.Command, args []string) {
	node, err := NewNode()
	if err != nil {
		cmdCommon.Logger().Error("failed to start oracle node",
			"err", err,
		)
		os.Exit(1)
	}
	defer node.Cleanup()

	node.Wait()
}

// Register registers the node sub-command.
func Register(parentCmd *cobra.Command) {
	parentCmd.AddCommand(nodeCmd)
}
