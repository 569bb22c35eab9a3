// Package identity implements the identity sub-commands.
package identity

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/encointer/personhood-oracle/common/crypto/signature"
	fileSigner "github.com/encointer/personhood-oracle/common/crypto/signature/signers/file"
	"github.com/encointer/personhood-oracle/config"
	cmdCommon "github.com/encointer/personhood-oracle/oracle-node/cmd/common"
	"github.com/encointer/personhood-oracle/runtime/enclave"
)

const cfgAuthority = "authority"

var (
	initFlags = flag.NewFlagSet("", flag.ContinueOnError)

	identityCmd = &cobra.Command{
		Use:   "identity",
		Short: "identity interface utilities",
	}

	identityInitCmd = &cobra.Command{
		Use:   "init",
		Short: "initialize the node identity",
		Run:   doInit,
	}

	identityShowCmd = &cobra.Command{
		Use:   "show",
		Short: "show the node identity and issuer keys",
		Run:   doShow,
	}

	logger = cmdCommon.Logger()
)

func doInit(cmd *cobra.Command, args []string) {
	dataDir := cmdCommon.DataDir()
	if dataDir == "" {
		logger.Error("data directory must be set")
		os.Exit(1)
	}

	roles := []signature.SignerRole{signature.SignerEnclave}
	if viper.GetBool(cfgAuthority) {
		roles = append(roles, signature.SignerAuthority)
	}

	factory := fileSigner.NewFactory(dataDir, roles...)
	for _, role := range roles {
		signer, err := factory.LoadOrGenerate(role, rand.Reader)
		if err != nil {
			logger.Error("failed to initialize key",
				"err", err,
				"role", role,
			)
			os.Exit(1)
		}
		fmt.Printf("%s: %s\n", role, signer.Public())
	}

	logger.Info("generated identity",
		"data_dir", dataDir,
	)
}

func doShow(cmd *cobra.Command, args []string) {
	dataDir := cmdCommon.DataDir()
	if dataDir == "" {
		logger.Error("data directory must be set")
		os.Exit(1)
	}

	factory := fileSigner.NewFactory(dataDir, signature.SignerEnclave)
	identity, err := factory.Load(signature.SignerEnclave)
	if err != nil {
		logger.Error("failed to load enclave identity",
			"err", err,
		)
		os.Exit(1)
	}

	keyring, err := enclave.NewKeyring(identity, config.GlobalConfig.Oracle.IssuerKeys)
	if err != nil {
		logger.Error("failed to derive issuer keys",
			"err", err,
		)
		os.Exit(1)
	}

	fmt.Printf("enclave identity: %s\n", identity.Public())
	defaultKey, _ := keyring.Get("")
	fmt.Printf("issuer key %s: %s\n", enclave.DefaultIssuerKeyLabel, defaultKey)
	for _, name := range keyring.Names() {
		key, _ := keyring.Get(name)
		fmt.Printf("issuer key %s: %s\n", name, key)
	}
}

// Register registers the identity sub-command and all of its children.
func Register(parentCmd *cobra.Command) {
	initFlags.Bool(cfgAuthority, false, "also generate a development chain authority key")
	_ = viper.BindPFlags(initFlags)
	identityInitCmd.Flags().AddFlagSet(initFlags)

	identityCmd.AddCommand(identityInitCmd)
	identityCmd.AddCommand(identityShowCmd)
	parentCmd.AddCommand(identityCmd)
}
