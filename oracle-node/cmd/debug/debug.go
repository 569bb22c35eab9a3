// Package debug groups sub-commands for operating a local development chain.
package debug

import (
	"github.com/spf13/cobra"

	"github.com/encointer/personhood-oracle/oracle-node/cmd/debug/chain"
)

// Register registers the debug sub-command tree.
func Register(parentCmd *cobra.Command) {
	debugCmd := &cobra.Command{
		Use:   "debug",
		Short: "development and debugging utilities",
	}
	chain.Register(debugCmd)
	parentCmd.AddCommand(debugCmd)
}
