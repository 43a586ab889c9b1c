package influx

import (
	"fmt"
	"sync"

	"github.com/nerrad567/flowline-core/internal/infrastructure/config"
	"github.com/nerrad567/flowline-core/internal/infrastructure/logging"
	"github.com/nerrad567/flowline-core/internal/schema"
)

const (
	// metricsTableName is the reserved table self-observation records
	// are written to.
	metricsTableName = "client_metrics"

	// overflowFactor times the configured batch size is the per-table
	// buffer depth that forces an implicit flush.
	overflowFactor = 5
)

// Client buffers writes against a schema catalog and flushes them in
// batches to an InfluxDB 1.x server. It also reconciles the server's
// retention policies and continuous queries with the catalog on
// connect, and records its own write and query timings into the
// reserved client_metrics table.
//
// All exported methods are safe for concurrent use; a single mutex
// guards the buffer and the driver handle.
type Client struct {
	cfg          config.InfluxConfig
	log          *logging.Logger
	database     *schema.Database
	metricsTable *schema.Table

	newDriver func(config.InfluxConfig) (Driver, error)

	mu        sync.Mutex
	driver    Driver
	buffer    map[*schema.Table][]schema.InsertQuery
	connected bool

	maxBatchSize  int
	dropThreshold int
}

// NewClient creates a client for the given catalog. The catalog is
// validated here so misconfiguration surfaces before any network
// traffic, and the reserved client_metrics table is registered unless
// the catalog already declares one.
//
// The client is not connected; call Connect before flushing.
func NewClient(cfg config.InfluxConfig, catalog *schema.Database, log *logging.Logger) (*Client, error) {
	return newClient(cfg, catalog, log, nil)
}

// NewClientWithDriver is NewClient with a caller-supplied driver,
// bypassing the HTTP transport. Connect still pings and reconciles
// through the given driver.
func NewClientWithDriver(cfg config.InfluxConfig, catalog *schema.Database, log *logging.Logger, driver Driver) (*Client, error) {
	c, err := newClient(cfg, catalog, log, driver)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(cfg config.InfluxConfig, catalog *schema.Database, log *logging.Logger, driver Driver) (*Client, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog is required", schema.ErrInvalidCatalog)
	}
	if log == nil {
		log = logging.Default()
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	metricsTable, ok := catalog.LookupTable(metricsTableName)
	if !ok {
		var err error
		metricsTable, err = catalog.DefineTable(metricsTableName, "", []string{"keyword", "tableName"}, "")
		if err != nil {
			return nil, fmt.Errorf("registering %s table: %w", metricsTableName, err)
		}
	}

	maxBatchSize := cfg.BatchSize
	if maxBatchSize < 1 {
		maxBatchSize = 10000
	}

	return &Client{
		cfg:           cfg,
		log:           log.With("component", "influx"),
		database:      catalog,
		metricsTable:  metricsTable,
		newDriver:     NewHTTPDriver,
		driver:        driver,
		buffer:        make(map[*schema.Table][]schema.InsertQuery),
		maxBatchSize:  maxBatchSize,
		dropThreshold: maxBatchSize,
	}, nil
}

// Connect establishes the server session: ping, idempotent database
// creation, then retention policy and continuous query reconciliation.
// Any failure along the way is logged with its root cause and folded
// into the single ErrConnectFailed, so callers only ever branch on
// connected or not.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver == nil {
		driver, err := c.newDriver(c.cfg)
		if err != nil {
			c.log.Error("creating influxdb driver", "error", err)
			return ErrConnectFailed
		}
		c.driver = driver
	}

	version, err := c.driver.Ping(c.cfg.GetTimeout())
	if err != nil {
		c.log.Error("pinging influxdb", "addr", c.cfg.Addr(), "error", err)
		return ErrConnectFailed
	}
	c.log.Debug("influxdb reachable", "addr", c.cfg.Addr(), "version", version)

	if err := c.driver.CreateDatabase(c.database.Name()); err != nil {
		c.log.Error("creating database", "database", c.database.Name(), "error", err)
		return ErrConnectFailed
	}

	if err := c.reconcileRetentionPolicies(); err != nil {
		c.log.Error("reconciling retention policies", "database", c.database.Name(), "error", err)
		return ErrConnectFailed
	}
	if err := c.reconcileContinuousQueries(); err != nil {
		c.log.Error("reconciling continuous queries", "database", c.database.Name(), "error", err)
		return ErrConnectFailed
	}

	c.connected = true
	c.log.Info("influx client connected", "database", c.database.Name(), "version", version)
	return nil
}

// IsConnected reports whether Connect has completed successfully and
// Disconnect has not been called since.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Database returns the schema catalog the client writes against.
func (c *Client) Database() *schema.Database { return c.database }

// Disconnect drains the buffer and closes the transport. The flush
// runs twice so the self-observation records queued by the first pass
// also reach the server. Flush failures are logged, never returned;
// disconnect always completes.
func (c *Client) Disconnect() {
	c.log.Debug("disconnecting influx client")

	c.Flush()
	c.Flush()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driver != nil {
		if err := c.driver.Close(); err != nil {
			c.log.Error("closing influxdb driver", "error", err)
		}
	}
	c.connected = false
	c.log.Info("influx client disconnected")
}
