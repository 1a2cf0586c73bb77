package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bayanihan/pkg/bus"
	"bayanihan/pkg/cache"
	"bayanihan/pkg/db"
	"bayanihan/pkg/mail"
	"bayanihan/pkg/telemetry"
	"bayanihan/services/api"
)

const serviceName = "bayanihan-api"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bayanihanctl",
		Short:         "Bayanihan Vote platform API and admin tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newCreateAdminCommand())
	cmd.AddCommand(newSeedLocationsCommand())
	return cmd
}

func newLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func loadConfig(ctx context.Context) (api.EnvConfig, error) {
	_ = godotenv.Load()
	return api.LoadEnv(ctx)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := newLogger()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			shutdownTrace, traceMiddleware, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, log)
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTrace(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("shutdown telemetry")
				}
			}()

			pool, err := db.Open(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}

			orm, err := db.OpenORM(cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("open orm: %w", err)
			}
			defer func() {
				if err := db.CloseORM(orm); err != nil {
					log.Error().Err(err).Msg("close orm")
				}
			}()

			kv, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			defer func() {
				if err := kv.Close(); err != nil {
					log.Error().Err(err).Msg("close redis")
				}
			}()

			store := &api.Store{ORM: orm, DB: pool, Cache: kv}

			if cfg.NATSURL != "" {
				eventBus, err := bus.New(cfg.NATSURL)
				if err != nil {
					return fmt.Errorf("connect nats: %w", err)
				}
				defer eventBus.Close()
				store.Bus = eventBus
			} else {
				log.Warn().Msg("NATS_URL not set, events disabled")
			}

			if cfg.SMTPHost != "" {
				sender, err := mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
				if err != nil {
					return fmt.Errorf("configure smtp: %w", err)
				}
				store.Mail = sender
			} else {
				log.Warn().Msg("SMTP_HOST not set, mail disabled")
			}

			app, err := api.New(store, api.Config{Debug: cfg.Debug}, log)
			if err != nil {
				return fmt.Errorf("init api: %w", err)
			}

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           app.Router(traceMiddleware),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				log.Info().Str("addr", cfg.Addr).Msg("starting bayanihan-api")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("http server")
				}
			}()

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			pool, err := db.Open(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			return db.Migrate(ctx, pool)
		},
	}
}

func newCreateAdminCommand() *cobra.Command {
	var email, name, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create or promote an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			orm, err := db.OpenORM(cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("open orm: %w", err)
			}
			defer func() { _ = db.CloseORM(orm) }()

			user, err := api.CreateAdmin(ctx, orm, email, name, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "admin ready: %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&name, "name", "", "Admin display name")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (min 8 characters)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSeedLocationsCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed-locations",
		Short: "Load a YAML fixture of regions, cities, and barangays",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			orm, err := db.OpenORM(cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("open orm: %w", err)
			}
			defer func() { _ = db.CloseORM(orm) }()

			if err := api.SeedLocations(ctx, orm, file); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "locations seeded")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the locations YAML fixture")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
