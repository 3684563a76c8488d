// GreenHome Proxy - IoT platform to home bus bridge
//
// This is the main entry point for the GreenHome proxy. The proxy:
//   - Subscribes to the IoT platform's Redis broker for device commands
//   - Forwards each command to its device over the home MQTT bus
//   - Publishes device acknowledgements back to the platform
//   - Journals every command in SQLite and writes telemetry to InfluxDB
//   - Serves an admin API with a live event stream
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

	"github.com/spf13/pflag"

	"github.com/nerrad567/greenhome-proxy/internal/api"
	"github.com/nerrad567/greenhome-proxy/internal/auth"
	"github.com/nerrad567/greenhome-proxy/internal/bridge"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/config"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/database"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/influxdb"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/logging"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/mqtt"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/redis"
	"github.com/nerrad567/greenhome-proxy/internal/journal"
	"github.com/nerrad567/greenhome-proxy/migrations"
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

// options holds the parsed command line.
type options struct {
	configPath    string
	issueToken    string // subject; non-empty prints a token and exits
	role          string
	showVersion   bool
	migrateStatus bool
	migrateDown   bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("greenhome-proxy %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	if opts.issueToken != "" {
		if err := issueToken(opts, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if opts.migrateStatus || opts.migrateDown {
		if err := migrateCommand(context.Background(), opts, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called explicitly above
	}
}

// parseFlags parses the command line. It returns pflag.ErrHelp after
// printing usage for --help.
func parseFlags(args []string) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("greenhome-proxy", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to config file (default $GREENHOME_CONFIG or "+defaultConfigPath+")")
	flagSet.StringVar(&opts.issueToken, "issue-token", "", "print an admin API token for `subject` and exit")
	flagSet.StringVar(&opts.role, "role", string(auth.RoleViewer), "role granted by --issue-token (viewer or admin)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flagSet.BoolVar(&opts.migrateStatus, "migrate-status", false, "print applied and pending database migrations and exit")
	flagSet.BoolVar(&opts.migrateDown, "migrate-down", false, "roll back the latest database migration and exit")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if opts.issueToken != "" && (opts.migrateStatus || opts.migrateDown) {
		return opts, errors.New("--issue-token cannot be combined with migration flags")
	}
	return opts, nil
}

// getConfigPath returns the configuration file path: the --config flag,
// then GREENHOME_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("GREENHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// issueToken signs an admin API token with the configured secret and
// writes it to w.
func issueToken(opts options, w io.Writer) error {
	cfg, err := config.Load(getConfigPath(opts.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ttl := time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
	token, err := auth.IssueToken(opts.issueToken, auth.Role(opts.role), cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// migrateCommand rolls back the latest migration when asked, then prints
// the migration state of the configured database to w.
func migrateCommand(ctx context.Context, opts options, w io.Writer) error {
	cfg, err := config.Load(getConfigPath(opts.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly maintenance command

	if opts.migrateDown {
		if err := db.MigrateDown(ctx, migrations.FS); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
		fmt.Fprintf(w, "rolled back latest migration in %s\n", db.Path())
	}

	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	fmt.Fprintf(w, "database: %s\n", db.Path())
	for _, m := range applied {
		fmt.Fprintf(w, "applied  %s  %s\n", m.Version, m.AppliedAt.UTC().Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command line
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error { //nolint:gocognit,gocyclo // startup sequence: linear wiring of every component
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting GreenHome proxy",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version).With("proxy_id", cfg.Proxy.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and journal
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
	log.Info("database connected", "path", db.Path())

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	commandJournal := journal.NewSQLiteRepository(db.DB)

	// Connect the platform publisher (acks and relayed reports)
	publisher, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to Redis: %w", err)
	}
	defer func() {
		log.Info("closing Redis publisher")
		if closeErr := publisher.Close(); closeErr != nil {
			log.Error("error closing Redis publisher", "error", closeErr)
		}
	}()
	log.Info("Redis connected", "address", cfg.RedisAddress(), "db", cfg.Redis.DB)

	// Connect to the home bus
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log.Component("mqtt"))

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var metrics bridge.Metrics
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB, cfg.Proxy.ID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, publisher, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// The hub outlives the API server so the bridge can always broadcast.
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	// Home bus link changes reach the live stream next to the bridge's own.
	mqttClient.SetOnConnect(func() {
		hub.Broadcast(bridge.EventConnection, map[string]any{"link": "home_bus", "state": "connected"})
	})
	mqttClient.SetOnDisconnect(func(err error) {
		event := map[string]any{"link": "home_bus", "state": "disconnected"}
		if err != nil {
			event["error"] = err.Error()
		}
		hub.Broadcast(bridge.EventConnection, event)
	})

	initialDelay, maxDelay := cfg.ReconnectDelays()
	proxy, err := bridge.New(bridge.Options{
		Dialer:          redis.Dialer(cfg.Redis),
		CommandChannel:  cfg.Bridge.CommandChannel,
		AckChannel:      cfg.Bridge.AckChannel,
		ReportChannel:   cfg.Bridge.ReportResponseChannel,
		MonitorPatterns: cfg.Bridge.MonitorPatterns,
		DedupSize:       cfg.Bridge.DedupSize,
		InitialDelay:    initialDelay,
		MaxDelay:        maxDelay,
		QoS:             byte(cfg.MQTT.QoS),
		HomeBus:         mqttClient,
		Acks:            publisher,
		Journal:         commandJournal,
		Metrics:         metrics,
		Events:          hub,
		Logger:          log.Component("bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Bridge:   proxy,
			Journal:  commandJournal,
			DB:       db.DB,
			Pool:     publisher,
			HomeBus:  mqttClient,
			Hub:      hub,
			Version:  version,
		}
		if influxClient != nil {
			deps.Telemetry = influxClient
		}
		server, err := api.New(deps)
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
	} else {
		log.Info("admin API disabled")
	}

	log.Info("initialisation complete, bridging",
		"command_channel", cfg.Bridge.CommandChannel,
		"ack_channel", cfg.Bridge.AckChannel,
		"monitor_patterns", cfg.Bridge.MonitorPatterns,
	)

	// Run blocks until the shutdown signal; broker outages are retried inside.
	if err := proxy.Run(ctx); err != nil {
		return fmt.Errorf("bridge stopped: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, MQTT, Redis publisher, database.

	log.Info("GreenHome proxy stopped")
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - publisher: Platform broker publisher to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, publisher *redis.Publisher, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := publisher.HealthCheck(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
