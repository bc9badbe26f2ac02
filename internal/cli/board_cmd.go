package cli

import (
	"github.com/spf13/cobra"

	"github.com/alexanderramin/gridboard/internal/client"
)

func newBoardCmd(cfg Config) *cobra.Command {
	var serverURL, token, gridID string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the live terminal board viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Run(client.Options{
				ServerURL: serverURL,
				Token:     token,
				GridID:    gridID,
			})
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", cfg.ServerURL, "server base URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().StringVar(&gridID, "grid", "", "grid to view")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
