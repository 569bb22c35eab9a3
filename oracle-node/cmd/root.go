// Package cmd implements the commands for the oracle-node executable.
package cmd

import (
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/encointer/personhood-oracle/common/version"
	"github.com/encointer/personhood-oracle/oracle-node/cmd/client"
	cmdCommon "github.com/encointer/personhood-oracle/oracle-node/cmd/common"
	"github.com/encointer/personhood-oracle/oracle-node/cmd/debug"
	"github.com/encointer/personhood-oracle/oracle-node/cmd/identity"
	"github.com/encointer/personhood-oracle/oracle-node/cmd/node"
)

const versionTemplate = `Software version: {{.Version}}
{{- with versions }}
Host protocol version: {{ .RuntimeHostProtocol }}
Go toolchain version:  {{ .Toolchain }}
{{ end -}}
`

var rootCmd = &cobra.Command{
	Use:     "oracle-node",
	Short:   "Personhood oracle node",
	Long:    "Runs the personhood oracle: a light client verified reputation oracle issuing nostr badge credentials.",
	Version: version.SoftwareVersion,
	Run:     node.Run,
}

// Execute runs the command selected on the command line.
func Execute() {
	// Key files and the chain store are for the node's user only.
	syscall.Umask(0o077)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(cmdCommon.InitConfig)
	cobra.AddTemplateFunc("versions", func() interface{} { return version.Versions })
	rootCmd.SetVersionTemplate(versionTemplate)

	rootCmd.PersistentFlags().AddFlagSet(cmdCommon.RootFlags)

	client.Register(rootCmd)
	debug.Register(rootCmd)
	identity.Register(rootCmd)
	node.Register(rootCmd)
}
