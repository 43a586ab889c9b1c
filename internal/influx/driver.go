package influx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/nerrad567/flowline-core/internal/infrastructure/config"
	"github.com/nerrad567/flowline-core/internal/schema"
)

// ServerRetentionPolicy is the server's view of one retention policy,
// parsed out of SHOW RETENTION POLICIES. Durations are decoded from the
// server's Go-style strings so structural comparison with the catalog
// never depends on formatting.
type ServerRetentionPolicy struct {
	Name               string
	Duration           time.Duration
	ShardGroupDuration time.Duration
	Replication        int
	Default            bool
}

// Driver is the transport boundary between the client and an InfluxDB
// 1.x server. The production implementation speaks HTTP through the
// influxdb1-client library; tests substitute a fake.
//
// All methods are synchronous and return classified errors: transport
// failures wrap ErrTransport, server rejections wrap ErrServer, and
// partially accepted writes surface as *PartialWriteError.
type Driver interface {
	// Ping verifies the server is reachable and returns its version.
	Ping(timeout time.Duration) (string, error)

	// CreateDatabase issues an idempotent CREATE DATABASE.
	CreateDatabase(name string) error

	// RetentionPolicies lists the policies defined on a database.
	RetentionPolicies(database string) ([]ServerRetentionPolicy, error)

	// CreateRetentionPolicy creates a policy matching the catalog entry.
	CreateRetentionPolicy(rp *schema.RetentionPolicy) error

	// AlterRetentionPolicy updates an existing policy in place.
	AlterRetentionPolicy(rp *schema.RetentionPolicy) error

	// ContinuousQueries returns the continuous queries registered on a
	// database, keyed by name, valued by the full CREATE statement.
	ContinuousQueries(database string) (map[string]string, error)

	// CreateContinuousQuery registers a catalog continuous query.
	CreateContinuousQuery(cq *schema.ContinuousQuery) error

	// DropContinuousQuery removes a continuous query by name.
	DropContinuousQuery(name, database string) error

	// WritePoints sends points to database.retentionPolicy in chunks of
	// at most batchSize, stopping at the first failed chunk.
	WritePoints(points []*client.Point, database, retentionPolicy string, batchSize int) error

	// Query runs one InfluxQL command and returns its raw results.
	Query(command, database string) ([]client.Result, error)

	// SetTimeout replaces the request timeout for subsequent calls.
	SetTimeout(timeout time.Duration) error

	// Close releases the underlying connection pool.
	Close() error
}

// httpDriver implements Driver over the influxdb1-client HTTP client.
//
// The handle is swapped by SetTimeout, so a read-write mutex guards it:
// requests hold the read lock for their full duration and the swap
// takes the write lock, which means it waits for in-flight requests
// before closing the old client.
type httpDriver struct {
	mu   sync.RWMutex
	conf client.HTTPConfig
	c    client.Client
}

// NewHTTPDriver builds the production HTTP driver from influx
// configuration. No network traffic happens here; reachability is
// checked by Ping.
func NewHTTPDriver(cfg config.InfluxConfig) (Driver, error) {
	conf := client.HTTPConfig{
		Addr:               cfg.Addr(),
		Username:           cfg.Username,
		Password:           cfg.Password,
		Timeout:            cfg.GetTimeout(),
		InsecureSkipVerify: cfg.SSL && !cfg.VerifySSL,
	}

	c, err := client.NewHTTPClient(conf)
	if err != nil {
		return nil, fmt.Errorf("creating influxdb http client: %w", err)
	}

	return &httpDriver{conf: conf, c: c}, nil
}

func (d *httpDriver) Ping(timeout time.Duration) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, version, err := d.c.Ping(timeout)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return version, nil
}

func (d *httpDriver) CreateDatabase(name string) error {
	_, err := d.Query(fmt.Sprintf("CREATE DATABASE %q", name), "")
	return err
}

func (d *httpDriver) RetentionPolicies(database string) ([]ServerRetentionPolicy, error) {
	results, err := d.Query(fmt.Sprintf("SHOW RETENTION POLICIES ON %q", database), "")
	if err != nil {
		return nil, err
	}
	return parseRetentionPolicies(results)
}

func (d *httpDriver) CreateRetentionPolicy(rp *schema.RetentionPolicy) error {
	_, err := d.Query(retentionPolicyStatement("CREATE", rp), "")
	return err
}

func (d *httpDriver) AlterRetentionPolicy(rp *schema.RetentionPolicy) error {
	_, err := d.Query(retentionPolicyStatement("ALTER", rp), "")
	return err
}

func (d *httpDriver) ContinuousQueries(database string) (map[string]string, error) {
	// SHOW CONTINUOUS QUERIES returns one series per database on the
	// server, not just the one asked for.
	results, err := d.Query("SHOW CONTINUOUS QUERIES", "")
	if err != nil {
		return nil, err
	}

	queries := make(map[string]string)
	for _, result := range results {
		for _, series := range result.Series {
			if series.Name != database {
				continue
			}
			nameIdx, queryIdx := columnIndex(series.Columns, "name"), columnIndex(series.Columns, "query")
			if nameIdx < 0 || queryIdx < 0 {
				continue
			}
			for _, row := range series.Values {
				name, okName := stringAt(row, nameIdx)
				query, okQuery := stringAt(row, queryIdx)
				if okName && okQuery {
					queries[name] = query
				}
			}
		}
	}
	return queries, nil
}

func (d *httpDriver) CreateContinuousQuery(cq *schema.ContinuousQuery) error {
	_, err := d.Query(cq.Statement(), "")
	return err
}

func (d *httpDriver) DropContinuousQuery(name, database string) error {
	_, err := d.Query(fmt.Sprintf("DROP CONTINUOUS QUERY %q ON %q", name, database), "")
	return err
}

func (d *httpDriver) WritePoints(points []*client.Point, database, retentionPolicy string, batchSize int) error {
	if batchSize < 1 {
		batchSize = len(points)
	}

	for start := 0; start < len(points); start += batchSize {
		end := min(start+batchSize, len(points))

		bp, err := client.NewBatchPoints(client.BatchPointsConfig{
			Precision:       "s",
			Database:        database,
			RetentionPolicy: retentionPolicy,
		})
		if err != nil {
			return fmt.Errorf("building batch: %w", err)
		}
		bp.AddPoints(points[start:end])

		d.mu.RLock()
		err = d.c.Write(bp)
		d.mu.RUnlock()
		if err != nil {
			return classifyServerError(err)
		}
	}
	return nil
}

func (d *httpDriver) Query(command, database string) ([]client.Result, error) {
	d.mu.RLock()
	resp, err := d.c.Query(client.NewQuery(command, database, "s"))
	d.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if err := resp.Error(); err != nil {
		return nil, classifyServerError(err)
	}
	return resp.Results, nil
}

// SetTimeout rebuilds the underlying client with a new request timeout.
// The influxdb1-client http.Client is immutable after construction, so
// swap rather than mutate. The swap waits for in-flight requests.
func (d *httpDriver) SetTimeout(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	conf := d.conf
	conf.Timeout = timeout

	c, err := client.NewHTTPClient(conf)
	if err != nil {
		return fmt.Errorf("rebuilding influxdb http client: %w", err)
	}

	_ = d.c.Close()
	d.conf = conf
	d.c = c
	return nil
}

func (d *httpDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.c.Close()
}

// partialWritePattern matches the server's partial write message, e.g.
// "partial write: points beyond retention policy dropped=52".
var partialWritePattern = regexp.MustCompile(`partial write:.*dropped=(\d+)`)

// classifyServerError turns a raw server-reported error into the
// package's error taxonomy. Partial writes carry their drop count as a
// structured field instead of leaving callers to scrape the message.
func classifyServerError(err error) error {
	if m := partialWritePattern.FindStringSubmatch(err.Error()); m != nil {
		dropped, convErr := strconv.Atoi(m[1])
		if convErr == nil {
			return &PartialWriteError{Dropped: dropped}
		}
	}
	return fmt.Errorf("%w: %v", ErrServer, err)
}

// parseRetentionPolicies decodes the single series SHOW RETENTION
// POLICIES returns. Numeric cells arrive as json.Number and durations
// as Go-style strings ("2160h0m0s").
func parseRetentionPolicies(results []client.Result) ([]ServerRetentionPolicy, error) {
	if len(results) == 0 || len(results[0].Series) == 0 {
		return nil, nil
	}

	series := results[0].Series[0]
	nameIdx := columnIndex(series.Columns, "name")
	durationIdx := columnIndex(series.Columns, "duration")
	shardIdx := columnIndex(series.Columns, "shardGroupDuration")
	replicaIdx := columnIndex(series.Columns, "replicaN")
	defaultIdx := columnIndex(series.Columns, "default")
	if nameIdx < 0 || durationIdx < 0 || shardIdx < 0 || replicaIdx < 0 || defaultIdx < 0 {
		return nil, fmt.Errorf("%w: unexpected SHOW RETENTION POLICIES columns %v", ErrServer, series.Columns)
	}

	policies := make([]ServerRetentionPolicy, 0, len(series.Values))
	for _, row := range series.Values {
		name, ok := stringAt(row, nameIdx)
		if !ok {
			return nil, fmt.Errorf("%w: retention policy row without a name", ErrServer)
		}

		duration, err := durationAt(row, durationIdx)
		if err != nil {
			return nil, fmt.Errorf("%w: retention policy %q: %v", ErrServer, name, err)
		}
		shard, err := durationAt(row, shardIdx)
		if err != nil {
			return nil, fmt.Errorf("%w: retention policy %q: %v", ErrServer, name, err)
		}

		policies = append(policies, ServerRetentionPolicy{
			Name:               name,
			Duration:           duration,
			ShardGroupDuration: shard,
			Replication:        intAt(row, replicaIdx),
			Default:            boolAt(row, defaultIdx),
		})
	}
	return policies, nil
}

// retentionPolicyStatement renders CREATE or ALTER RETENTION POLICY for
// a catalog entry.
func retentionPolicyStatement(verb string, rp *schema.RetentionPolicy) string {
	statement := fmt.Sprintf("%s RETENTION POLICY %q ON %q DURATION %s REPLICATION %d SHARD DURATION %s",
		verb, rp.Name(), rp.Database().Name(),
		influxDuration(rp.Duration()), rp.Replication(), influxDuration(rp.ShardGroupDuration()))
	if rp.Default() {
		statement += " DEFAULT"
	}
	return statement
}

// influxDuration renders a duration as an InfluxQL duration literal.
// Zero means keep forever, spelled INF.
func influxDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "INF"
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}

func columnIndex(columns []string, name string) int {
	for i, column := range columns {
		if column == name {
			return i
		}
	}
	return -1
}

func stringAt(row []interface{}, idx int) (string, bool) {
	if idx < 0 || idx >= len(row) {
		return "", false
	}
	s, ok := row[idx].(string)
	return s, ok
}

func durationAt(row []interface{}, idx int) (time.Duration, error) {
	s, ok := stringAt(row, idx)
	if !ok {
		return 0, fmt.Errorf("duration column is not a string")
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %v", s, err)
	}
	return d, nil
}

func intAt(row []interface{}, idx int) int {
	if idx < 0 || idx >= len(row) {
		return 0
	}
	if n, ok := row[idx].(json.Number); ok {
		if v, err := n.Int64(); err == nil {
			return int(v)
		}
	}
	if f, ok := row[idx].(float64); ok {
		return int(f)
	}
	return 0
}

func boolAt(row []interface{}, idx int) bool {
	if idx < 0 || idx >= len(row) {
		return false
	}
	b, _ := row[idx].(bool)
	return b
}
