package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/gridboard/internal/auth"
	"github.com/alexanderramin/gridboard/internal/cache"
	"github.com/alexanderramin/gridboard/internal/db"
	"github.com/alexanderramin/gridboard/internal/metric"
	"github.com/alexanderramin/gridboard/internal/occurrence"
	"github.com/alexanderramin/gridboard/internal/repository"
	"github.com/alexanderramin/gridboard/internal/server"
	gbsync "github.com/alexanderramin/gridboard/internal/sync"
	"github.com/alexanderramin/gridboard/internal/txlog"
)

func newServeCmd(cfg Config) *cobra.Command {
	var addr, dbPath, secret string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the board server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("a signing secret is required (GRIDBOARD_SECRET or --secret)")
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			database, err := db.OpenDB(dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer database.Close()

			repos := repository.NewRepos(database)
			store := occurrence.NewStore(repos.Occurrences, repos.ParentLists)
			txEngine := txlog.NewEngine(db.NewSQLiteUnitOfWork(database), repos, logger)
			metricEngine := metric.NewEngine(repos.Txs, logger)
			hub := gbsync.NewHub(logger)
			svc := gbsync.NewService(repos, store, txEngine, metricEngine, hub, logger)
			manager := cache.NewManager(repos, logger)
			verifier := auth.NewVerifier(secret)

			srv := server.New(manager, svc, hub, verifier, logger)
			logger.Info("listening", "addr", addr, "db", dbPath)
			return http.ListenAndServe(addr, srv.Router())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", cfg.Addr, "listen address")
	cmd.Flags().StringVar(&dbPath, "db", cfg.DBPath, "sqlite database path")
	cmd.Flags().StringVar(&secret, "secret", cfg.Secret, "token signing secret")
	return cmd
}
