// Org Admin - authentication and authorization backend
//
// This is the main entry point for the orgadmin service. It serves the admin
// portal API (login, refresh token rotation, role and permission management,
// user administrator lifecycle) and ships a few housekeeping commands:
//
//	orgadmin [serve]                  run the API (default)
//	orgadmin migrate up|down|status   manage the schema
//	orgadmin tokens purge             delete long-expired refresh tokens
//	orgadmin catalog add-module|add-capability
//	                                  grow the permission catalog
//	orgadmin bootstrap                create the first SYSADMIN
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/Akash1430/POCPortal/internal/api"
	"github.com/Akash1430/POCPortal/internal/audit"
	"github.com/Akash1430/POCPortal/internal/auth"
	"github.com/Akash1430/POCPortal/internal/infrastructure/config"
	"github.com/Akash1430/POCPortal/internal/infrastructure/database"
	"github.com/Akash1430/POCPortal/internal/infrastructure/influxdb"
	"github.com/Akash1430/POCPortal/internal/infrastructure/logging"
	"github.com/Akash1430/POCPortal/internal/infrastructure/metrics"
	"github.com/Akash1430/POCPortal/internal/infrastructure/mqtt"
	"github.com/Akash1430/POCPortal/internal/permission"
	"github.com/Akash1430/POCPortal/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// defaultPurgeAge is how long an expired refresh token is kept before
// `tokens purge` removes it.
const defaultPurgeAge = 30 * 24 * time.Hour

func main() {
	// Cancel on Ctrl+C and SIGTERM so every command shuts down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Running with no command serves the API.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "orgadmin",
		Usage:   "Org admin authentication and authorization service",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   defaultConfigPath,
				Usage:   "path to the YAML configuration file",
				Sources: cli.EnvVars("ORGADMIN_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			tokensCommand(),
			catalogCommand(),
			bootstrapCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.String("config"))
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API until interrupted",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.String("config"))
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply every pending migration",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDatabase(ctx, cmd, func(db *database.DB, _ *config.Config, log *logging.Logger) error {
						if err := db.Migrate(ctx, migrations.FS()); err != nil {
							return fmt.Errorf("running migrations: %w", err)
						}
						log.Info("database migrations complete")
						return nil
					})
				},
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDatabase(ctx, cmd, func(db *database.DB, _ *config.Config, log *logging.Logger) error {
						if err := db.MigrateDown(ctx, migrations.FS()); err != nil {
							return fmt.Errorf("rolling back migration: %w", err)
						}
						log.Info("rolled back latest migration")
						return nil
					})
				},
			},
			{
				Name:  "status",
				Usage: "List applied and pending migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDatabase(ctx, cmd, func(db *database.DB, _ *config.Config, _ *logging.Logger) error {
						applied, pending, err := db.GetMigrationStatus(ctx, migrations.FS())
						if err != nil {
							return fmt.Errorf("reading migration status: %w", err)
						}
						w := output(cmd)
						for _, m := range applied {
							fmt.Fprintf(w, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
						}
						for _, m := range pending {
							fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
						}
						return nil
					})
				},
			},
		},
	}
}

func tokensCommand() *cli.Command {
	return &cli.Command{
		Name:  "tokens",
		Usage: "Refresh token housekeeping",
		Commands: []*cli.Command{
			{
				Name:  "purge",
				Usage: "Delete refresh tokens that expired before the cutoff",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "older-than", Value: defaultPurgeAge, Usage: "minimum time since expiry"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					age := cmd.Duration("older-than")
					if age < 0 {
						return errors.New("--older-than must not be negative")
					}
					return withDatabase(ctx, cmd, func(db *database.DB, cfg *config.Config, log *logging.Logger) error {
						signer, err := newSigner(cfg)
						if err != nil {
							return err
						}
						accounts := auth.NewAccountRepository(db.DB)
						tokens := auth.NewTokenService(auth.NewTokenRepository(db.DB), accounts, signer,
							auth.WithLogger(log.Logger))

						n, err := tokens.Purge(ctx, time.Now().Add(-age))
						if err != nil {
							return fmt.Errorf("purging refresh tokens: %w", err)
						}
						log.Info("refresh tokens purged", "deleted", n, "older_than", age)
						fmt.Fprintf(output(cmd), "purged %d refresh tokens\n", n)
						return nil
					})
				},
			},
		},
	}
}

func bootstrapCommand() *cli.Command {
	return &cli.Command{
		Name:  "bootstrap",
		Usage: "Create the first SYSADMIN account on an empty database",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withDatabase(ctx, cmd, func(db *database.DB, cfg *config.Config, log *logging.Logger) error {
				if err := db.Migrate(ctx, migrations.FS()); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				password, err := bootstrapAdmin(ctx, db, cfg, log)
				if err != nil {
					return err
				}
				w := output(cmd)
				if password == "" {
					fmt.Fprintln(w, "accounts already exist; nothing to do")
					return nil
				}
				fmt.Fprintf(w, "created %s with password %s\nchange it after the first login\n",
					cfg.Bootstrap.Username, password)
				return nil
			})
		},
	}
}

// run is the serve logic, separated from the command for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting orgadmin",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS()); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	health := map[string]api.HealthChecker{"database": db}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		health["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Failed-login lockout (optional). Redis being down at startup is not
	// fatal: the limiter fails open and the health endpoint reports it.
	var lockout auth.Lockout
	if cfg.Security.Lockout.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Security.Lockout.Redis.Addr,
			Password: cfg.Security.Lockout.Redis.Password,
			DB:       cfg.Security.Lockout.Redis.DB,
		})
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			log.Warn("Redis unreachable, lockout will fail open", "addr", cfg.Security.Lockout.Redis.Addr, "error", pingErr)
		}
		lockout = auth.NewRedisLockout(rdb, auth.LockoutConfig{
			Enabled:   true,
			Threshold: cfg.Security.Lockout.Threshold,
			Window:    cfg.GetLockoutWindow(),
		})
		health["redis"] = redisHealth{client: rdb}
		log.Info("login lockout enabled",
			"threshold", cfg.Security.Lockout.Threshold,
			"window", cfg.GetLockoutWindow(),
		)
	}

	var collector *metrics.Metrics
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	// The audit drain outlives the API server so in-flight requests can
	// still record their events during shutdown.
	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, log.Logger, audit.DefaultBufferSize)
	sinks := observerSet{
		recorder:  recorder,
		collector: collector,
		logger:    log,
	}
	if mqttClient != nil {
		sinks.publisher = newEventPublisher(mqttClient, log, defaultPublishQueue)
	}
	if influxClient != nil {
		sinks.influx = influxClient
	}
	stopSinks := sinks.start()
	defer stopSinks()

	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}

	opts := []auth.Option{
		auth.WithObserver(sinks.observers()),
		auth.WithLogger(log.Logger),
	}
	if lockout != nil {
		opts = append(opts, auth.WithLockout(lockout))
	}

	accounts := auth.NewAccountRepository(db.DB)
	roles := auth.NewRoleRepository(db.DB)
	tokens := auth.NewTokenService(auth.NewTokenRepository(db.DB), accounts, signer, opts...)
	manager := auth.NewManager(accounts, roles, tokens, opts...)
	evaluator := permission.NewEvaluator(permission.NewCatalogRepository(db.DB), roles,
		permission.WithObserver(sinks.observers()),
		permission.WithLogger(log.Logger),
	)

	if _, err := bootstrapAdmin(ctx, db, cfg, log); err != nil {
		return err
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Security:  cfg.Security,
		Metrics:   cfg.Metrics,
		Logger:    log,
		Accounts:  manager,
		Tokens:    tokens,
		Evaluator: evaluator,
		AuditRepo: auditRepo,
		Collector: collector,
		Health:    health,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, health); err != nil {
		log.Warn("startup health check failed", "error", err)
	} else {
		log.Info("all health checks passed")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. audit drain and event publisher
	// 3. Redis, InfluxDB, MQTT (when enabled)
	// 4. Database

	return nil
}

// loadConfig reads the configuration and returns a logger built from it.
func loadConfig(path string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", path, "level", cfg.Logging.Level)
	return cfg, log, nil
}

// withDatabase runs fn against the configured database and closes it after.
func withDatabase(ctx context.Context, cmd *cli.Command, fn func(*database.DB, *config.Config, *logging.Logger) error) error {
	cfg, log, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	return fn(db, cfg, log)
}

func newSigner(cfg *config.Config) (*auth.Signer, error) {
	signer, err := auth.NewSigner(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer,
		cfg.Security.JWT.Audience, cfg.GetAccessTokenTTL())
	if err != nil {
		return nil, fmt.Errorf("creating token signer: %w", err)
	}
	return signer, nil
}

func bootstrapAdmin(ctx context.Context, db *database.DB, cfg *config.Config, log *logging.Logger) (string, error) {
	password, err := auth.Bootstrap(ctx,
		auth.NewAccountRepository(db.DB),
		auth.NewRoleRepository(db.DB),
		auth.BootstrapAccount{Username: cfg.Bootstrap.Username, Email: cfg.Bootstrap.Email},
		log.Logger,
	)
	if err != nil {
		return "", fmt.Errorf("bootstrapping SYSADMIN: %w", err)
	}
	return password, nil
}

// healthCheck returns the first failing dependency.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, hc := range checks {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// redisHealth adapts a Redis client to api.HealthChecker.
type redisHealth struct {
	client redis.UniversalClient
}

func (h redisHealth) HealthCheck(ctx context.Context) error {
	if err := h.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
