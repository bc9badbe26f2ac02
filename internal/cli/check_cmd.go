package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/integrity"
	"github.com/alexanderramin/gridboard/internal/repository"
)

func newCheckCmd(cfg Config) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Scan the store for referential integrity violations",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			database, err := db.OpenDB(dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer database.Close()

			repos := repository.NewRepos(database)
			checker := integrity.NewChecker(repos, logger)

			violations, err := checker.Check(cmd.Context())
			if len(violations) > 0 {
				for _, v := range violations {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", v.Kind, v.Subject, v.Detail)
				}
				return fmt.Errorf("store is inconsistent: %w", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "store is consistent")
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", cfg.DBPath, "sqlite database path")
	return cmd
}
