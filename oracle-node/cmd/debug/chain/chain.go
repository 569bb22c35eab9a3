// Package chain implements the development chain sub-commands.
//
// The commands open the node's chain store directly, so the node must not
// be running.
package chain

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/encointer/personhood-oracle/common/cbor"
	"github.com/encointer/personhood-oracle/common/crypto/signature"
	fileSigner "github.com/encointer/personhood-oracle/common/crypto/signature/signers/file"
	consensus "github.com/encointer/personhood-oracle/consensus/api"
	"github.com/encointer/personhood-oracle/devchain"
	encointer "github.com/encointer/personhood-oracle/encointer/api"
	lightConfig "github.com/encointer/personhood-oracle/light/config"
	cmdCommon "github.com/encointer/personhood-oracle/oracle-node/cmd/common"
	"github.com/encointer/personhood-oracle/storage/badger"
)

const (
	cfgCycle       = "chain.cycle"
	cfgCommunity   = "chain.community"
	cfgAccount     = "chain.account"
	cfgKind        = "chain.kind"
	cfgLinkedCycle = "chain.linked_cycle"
)

var (
	cycleFlags      = flag.NewFlagSet("", flag.ContinueOnError)
	reputationFlags = flag.NewFlagSet("", flag.ContinueOnError)

	chainCmd = &cobra.Command{
		Use:   "chain",
		Short: "development chain utilities",
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "initialize the development chain and print the trust configuration",
		Run:   doInit,
	}

	setReputationCmd = &cobra.Command{
		Use:   "set-reputation",
		Short: "set the reputation of an account in a cycle and commit",
		Run:   doSetReputation,
	}

	setCycleCmd = &cobra.Command{
		Use:   "set-cycle",
		Short: "set the current ceremony index and commit",
		Run:   doSetCycle,
	}

	commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "commit a new block without state changes",
		Run:   doCommit,
	}

	showCmd = &cobra.Command{
		Use:   "show",
		Short: "show the latest block",
		Run:   doShow,
	}

	logger = cmdCommon.Logger()
)

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}
	logger.Error(msg,
		"err", err,
	)
	os.Exit(1)
}

type devChain struct {
	store     *badger.ChainStore
	chain     *devchain.Chain
	authority signature.Signer
}

func (d *devChain) close() {
	d.store.Close()
}

func openChain(ctx context.Context) *devChain {
	dataDir := cmdCommon.DataDir()
	if dataDir == "" {
		exitOnErr("failed to open chain", fmt.Errorf("data directory must be set"))
	}

	factory := fileSigner.NewFactory(dataDir, signature.SignerAuthority)
	authority, err := factory.LoadOrGenerate(signature.SignerAuthority, rand.Reader)
	exitOnErr("failed to load authority key", err)

	store, err := badger.New(&badger.Config{DataDir: dataDir})
	exitOnErr("failed to open chain store", err)

	chain, err := devchain.New(ctx, store, authority)
	if err != nil {
		store.Close()
		exitOnErr("failed to open development chain", err)
	}
	return &devChain{
		store:     store,
		chain:     chain,
		authority: authority,
	}
}

func printBlock(blk *consensus.LightBlock) {
	fmt.Printf("height: %d\nhash: %s\nstate_root: %s\n", blk.Header.Height, blk.Header.Hash(), blk.Header.StateRoot)
}

func doInit(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	d := openChain(ctx)
	defer d.close()

	if _, err := d.store.LatestHeight(ctx); err == nil {
		exitOnErr("failed to initialize chain", fmt.Errorf("chain already initialized"))
	}

	d.chain.SetCurrentCycle(encointer.CeremonyIndex(viper.GetUint32(cfgCycle)))
	blk, err := d.chain.Commit(ctx)
	exitOnErr("failed to commit genesis", err)

	blkHash := blk.Header.Hash()
	trust := lightConfig.Config{
		Trust: lightConfig.TrustConfig{
			Height:      blk.Header.Height,
			Hash:        blkHash.String(),
			Authorities: []string{d.authority.Public().String()},
		},
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err = enc.Encode(map[string]interface{}{"light": trust})
	exitOnErr("failed to encode trust configuration", err)
	fmt.Print(buf.String())
}

func doSetReputation(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	d := openChain(ctx)
	defer d.close()

	var (
		cid     encointer.CommunityIdentifier
		account encointer.AccountID
		rep     encointer.Reputation
	)
	exitOnErr("malformed community identifier", cid.UnmarshalText([]byte(viper.GetString(cfgCommunity))))
	exitOnErr("malformed account", account.UnmarshalText([]byte(viper.GetString(cfgAccount))))
	exitOnErr("malformed reputation kind", rep.Kind.UnmarshalText([]byte(viper.GetString(cfgKind))))
	if rep.Kind == encointer.VerifiedLinked {
		rep.LinkedCycle = encointer.CeremonyIndex(viper.GetUint32(cfgLinkedCycle))
	}

	err := d.chain.SetReputation(cid, encointer.CeremonyIndex(viper.GetUint32(cfgCycle)), account, rep)
	exitOnErr("failed to set reputation", err)
	blk, err := d.chain.Commit(ctx)
	exitOnErr("failed to commit", err)
	printBlock(blk)
}

func doSetCycle(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	d := openChain(ctx)
	defer d.close()

	d.chain.SetCurrentCycle(encointer.CeremonyIndex(viper.GetUint32(cfgCycle)))
	blk, err := d.chain.Commit(ctx)
	exitOnErr("failed to commit", err)
	printBlock(blk)
}

func doCommit(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	d := openChain(ctx)
	defer d.close()

	blk, err := d.chain.Commit(ctx)
	exitOnErr("failed to commit", err)
	printBlock(blk)
}

func doShow(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	d := openChain(ctx)
	defer d.close()

	height, err := d.store.LatestHeight(ctx)
	exitOnErr("failed to query latest height", err)
	blk, err := d.store.LightBlock(ctx, height)
	exitOnErr("failed to fetch latest block", err)
	printBlock(blk)

	leaves, err := d.store.State(ctx, height)
	exitOnErr("failed to fetch state", err)
	cycleKey := encointer.CurrentCeremonyIndexKey()
	for _, l := range leaves {
		if !bytes.Equal(l.Key, cycleKey) {
			continue
		}
		var cindex encointer.CeremonyIndex
		exitOnErr("malformed current cycle", cbor.Unmarshal(l.Value, &cindex))
		fmt.Printf("current_cycle: %d\n", cindex)
	}
	fmt.Printf("num_entries: %d\n", len(leaves))
}

// Register registers the chain sub-command and all of its children.
func Register(parentCmd *cobra.Command) {
	cycleFlags.Uint32(cfgCycle, 1, "ceremony index")
	_ = viper.BindPFlags(cycleFlags)

	reputationFlags.String(cfgCommunity, "", "community identifier (geohash followed by the base58 digest)")
	reputationFlags.String(cfgAccount, "", "account (SS58 or hex)")
	reputationFlags.String(cfgKind, encointer.VerifiedUnlinked.String(), "reputation kind")
	reputationFlags.Uint32(cfgLinkedCycle, 0, "linked cycle of a verified_linked reputation")
	_ = viper.BindPFlags(reputationFlags)

	initCmd.Flags().AddFlagSet(cycleFlags)
	setCycleCmd.Flags().AddFlagSet(cycleFlags)
	setReputationCmd.Flags().AddFlagSet(cycleFlags)
	setReputationCmd.Flags().AddFlagSet(reputationFlags)

	for _, v := range []*cobra.Command{
		initCmd,
		setReputationCmd,
		setCycleCmd,
		commitCmd,
		showCmd,
	} {
		chainCmd.AddCommand(v)
	}
	parentCmd.AddCommand(chainCmd)
}
