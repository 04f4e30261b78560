// Command engagement runs the design engagement and ranking service.
//
// Subcommands:
//
//	engagement serve     # HTTP API (default)
//	engagement migrate   # apply the schema and exit
//	engagement ranking   # print the current leaderboard
//	engagement notifications <recipient-id>
//	engagement audit <design-id>
//
// Configuration comes from the environment (optionally a .env file).
//
// @title           Design Engagement API
// @version         1.0
// @description     Likes, boosts, feeds and the leaderboard for public designs.
// @BasePath        /api/v1
// @schemes         http https
// @produce         json
// @consumes        json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-design-engagement/internal/config"
	httpapi "github.com/tbourn/go-design-engagement/internal/http"
	"github.com/tbourn/go-design-engagement/internal/observability"
	"github.com/tbourn/go-design-engagement/internal/repo"
	"github.com/tbourn/go-design-engagement/internal/sysutil"
)

var (
	version = "dev"
	commit  = "none"
)

// purgeInterval is how often expired idempotency records are deleted.
const purgeInterval = 10 * time.Minute

func main() {
	var cfg config.Config

	root := &cobra.Command{
		Use:           "engagement",
		Short:         "Design engagement & ranking service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional; real environment wins.
			_ = godotenv.Load()
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			sysutil.SetupLogging(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context(), cfg, true) },
	}

	var migrate bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := migrate
			if v, ok := os.LookupEnv("AUTO_MIGRATE"); ok && !cmd.Flags().Changed("migrate") {
				m = sysutil.IsTruthy(v)
			}
			return runServe(cmd.Context(), cfg, m)
		},
	}
	serveCmd.Flags().BoolVar(&migrate, "migrate", true, "apply the schema before serving (also AUTO_MIGRATE)")
	root.AddCommand(serveCmd)

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := repo.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info().Str("driver", cfg.DB.Driver).Msg("schema up to date")
			return nil
		},
	})

	var (
		limit  int
		asJSON bool
	)
	rankingCmd := &cobra.Command{
		Use:   "ranking",
		Short: "Print the current leaderboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)
			items, err := httpapi.NewServices(db, cfg).Feed.Ranking(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tID\tOWNER\tLIKES\tBOOSTS\tSCORE")
			for _, it := range items {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\n", it.Rank, it.ID, it.OwnerID, it.LikeCount, it.BoostCount, it.Score)
			}
			return tw.Flush()
		},
	}
	rankingCmd.Flags().IntVar(&limit, "limit", 0, "number of entries (default RANKING_LIMIT)")
	rankingCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	root.AddCommand(rankingCmd)
	root.AddCommand(inspectCommands(&cfg)...)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "engagement %s (%s)\n", appVersion(), commit)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("engagement failed")
		stop()
		os.Exit(1)
	}
}

func appVersion() string {
	return sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(repo.Options{
		Driver:       cfg.DB.Driver,
		Path:         cfg.DB.Path,
		DSN:          cfg.DB.DSN,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		Tracing:      cfg.OTEL.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DB.Driver, err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// runServe starts the HTTP server and the idempotency purger, and shuts both
// down when ctx is canceled.
func runServe(ctx context.Context, cfg config.Config, migrate bool) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)
	if migrate {
		if err := repo.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", appVersion()).
			Str("db_driver", cfg.DB.Driver).
			Dur("boost_cooldown", cfg.Engagement.BoostCooldown).
			Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		t := time.NewTicker(purgeInterval)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-t.C:
				n, err := repo.PurgeExpiredIdempotency(gctx, db, now)
				if err != nil {
					log.Warn().Err(err).Msg("purge idempotency records")
					continue
				}
				if n > 0 {
					log.Debug().Int64("deleted", n).Msg("purged idempotency records")
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
		return nil
	})
	return g.Wait()
}
