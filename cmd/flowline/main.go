// Flowline Core - buffered time-series ingest for InfluxDB 1.x
//
// Flowline sits between row producers and an InfluxDB server: rows
// arrive over MQTT (or via the library API), are classified against a
// declared schema catalog, buffered per table, and written in batches.
// On startup the server's retention policies and continuous queries
// are reconciled with the catalog. A transfer mode bulk-copies
// historical data from a previous database into the catalog layout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/flowline-core/internal/infrastructure/config"
	"github.com/nerrad567/flowline-core/internal/infrastructure/logging"
	"github.com/nerrad567/flowline-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/flowline-core/internal/influx"
	"github.com/nerrad567/flowline-core/internal/relay"
	"github.com/nerrad567/flowline-core/internal/schema"
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

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments, without the program name
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("flowline", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to config file (default $FLOWLINE_CONFIG or "+defaultConfigPath+")")
	transfer := flags.Bool("transfer", false, "run a bulk data transfer instead of the ingest relay")
	oldDatabase := flags.String("old-database", "", "source database for -transfer (default: the configured database)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Flowline Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	path := getConfigPath(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", path)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Build the schema catalog the client writes against
	catalog, err := schema.FromConfig(cfg.Influx.Database, cfg.Schema)
	if err != nil {
		return fmt.Errorf("building schema catalog: %w", err)
	}
	log.Info("schema catalog built",
		"database", catalog.Name(),
		"tables", len(catalog.Tables()),
		"continuous_queries", len(catalog.ContinuousQueries()),
	)

	client, err := influx.NewClient(cfg.Influx, catalog, log)
	if err != nil {
		return fmt.Errorf("creating influx client: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting to influxdb at %s: %w", cfg.Influx.Addr(), err)
	}

	// Record the run's own duration before the final drain.
	started := time.Now()
	mode := "relay"
	if *transfer {
		mode = "transfer"
	}
	defer func() {
		row := map[string]interface{}{
			"duration_ms": float64(time.Since(started).Milliseconds()),
			"mode":        mode,
			"time":        time.Now().Unix(),
		}
		if insertErr := client.InsertRows("run_metrics", []map[string]interface{}{row}); insertErr != nil {
			log.Error("recording run metrics", "error", insertErr)
		}
		client.Disconnect()
		log.Info("Flowline Core stopped")
	}()

	if *transfer {
		return client.Transfer(*oldDatabase)
	}

	if !cfg.MQTT.Enabled {
		log.Info("mqtt ingest disabled, nothing to relay; waiting for shutdown signal")
		<-ctx.Done()
		return nil
	}

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

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	ingest := relay.New(cfg.Relay, byte(cfg.MQTT.QoS), mqttClient, client, log)
	return ingest.Run(ctx)
}

// getConfigPath resolves the configuration file path: the -config flag
// wins, then the FLOWLINE_CONFIG environment variable, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("FLOWLINE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
