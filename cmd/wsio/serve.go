package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wsio/wsio/internal/auth"
	"github.com/wsio/wsio/internal/config"
	"github.com/wsio/wsio/internal/creds"
	"github.com/wsio/wsio/internal/database"
	"github.com/wsio/wsio/internal/database/mysql"
	"github.com/wsio/wsio/internal/database/postgres"
	"github.com/wsio/wsio/internal/index"
	"github.com/wsio/wsio/internal/logger"
	"github.com/wsio/wsio/internal/resolver"
	"github.com/wsio/wsio/internal/server"
	"github.com/wsio/wsio/internal/store"
	"github.com/wsio/wsio/internal/workspace"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	return cmd
}

func serve(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.EnsureSchema(ctx, db); err != nil {
		return err
	}
	meta := store.NewSQL(db)

	res := resolver.New(meta, &resolver.EndpointProber{})
	access := resolver.NewAccess(res, creds.NewCache(creds.NewSTSExchanger()), nil)

	var (
		search  *index.Client
		indexer *index.Indexer
	)
	if len(cfg.Search.Nodes) > 0 {
		search, err = index.NewClient(cfg.Search.Nodes, cfg.Search.Index)
		if err != nil {
			return err
		}
		if err := search.EnsureIndex(ctx); err != nil {
			log.With().Err(err).Logger().Warn("search index not ready, continuing without it")
		}
		indexer = index.NewIndexer(search, log, index.IndexerConfig{Workers: cfg.Search.Workers})
		indexer.Start(ctx)
		defer indexer.Stop()
	}

	srv := server.New(server.Deps{
		Log:        log,
		Auth:       auth.NewService(meta, []byte(cfg.Auth.JWTSecret)),
		Access:     access,
		Workspaces: workspace.NewService(meta),
		Store:      meta,
		Search:     search,
		Indexer:    indexer,
	})

	return srv.Run(ctx, cfg.Listen)
}

func openDatabase(ctx context.Context, cfg *config.Config) (database.DB, error) {
	dbCfg := database.DefaultConfig(cfg.Database.URI)
	dbCfg.Driver = database.Driver(cfg.Database.Driver)

	switch dbCfg.Driver {
	case database.DriverMySQL:
		return mysql.New(ctx, dbCfg)
	default:
		return postgres.New(ctx, dbCfg)
	}
}
