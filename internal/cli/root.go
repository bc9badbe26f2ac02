// Package cli wires the gridboard commands.
package cli

import (
	"github.com/spf13/cobra"
)

// Config carries the environment-derived defaults shared by all
// commands; flags override per invocation.
type Config struct {
	DBPath    string
	Addr      string
	Secret    string
	ServerURL string
}

// NewRootCmd creates the top-level "gridboard" command and registers all
// subcommands.
func NewRootCmd(cfg Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "gridboard",
		Short: "Collaborative personal-organization board server",
	}

	root.AddCommand(
		newServeCmd(cfg),
		newCheckCmd(cfg),
		newBoardCmd(cfg),
		newTokenCmd(cfg),
	)

	return root
}
