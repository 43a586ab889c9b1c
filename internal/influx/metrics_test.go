package influx

import (
	"math"
	"testing"
	"time"

	"github.com/nerrad567/flowline-core/internal/infrastructure/config"
	"github.com/nerrad567/flowline-core/internal/infrastructure/logging"
	"github.com/nerrad567/flowline-core/internal/schema"
)

// newCatalogClient builds an unconnected client over a two-table
// catalog for exercising internals directly.
func newCatalogClient(t *testing.T) *Client {
	t.Helper()

	d := schema.NewDatabase("flowline")
	d.DefineRetentionPolicy("raw", 90*24*time.Hour, 24*time.Hour, 1, true)
	if _, err := d.DefineTable("cpu", "raw", []string{"host"}, ""); err != nil {
		t.Fatalf("defining cpu table: %v", err)
	}
	if _, err := d.DefineTable("disk", "raw", []string{"host"}, ""); err != nil {
		t.Fatalf("defining disk table: %v", err)
	}

	cfg := config.InfluxConfig{
		Host:      "localhost",
		Port:      8086,
		Database:  "flowline",
		Timeout:   1,
		BatchSize: 2,
	}
	c, err := newClient(cfg, d, logging.Default(), nil)
	if err != nil {
		t.Fatalf("newClient() error = %v", err)
	}
	return c
}

// queuedDurations flushes nothing; it reads the duration_ms and
// item_count fields queued in the metrics buffer, keyed by tableName.
func queuedDurations(t *testing.T, c *Client) (map[string]float64, map[string]int64) {
	t.Helper()

	durations := make(map[string]float64)
	counts := make(map[string]int64)
	for _, query := range c.buffer[c.metricsTable] {
		point := query.Point()
		fields, err := point.Fields()
		if err != nil {
			t.Fatalf("reading metrics fields: %v", err)
		}
		name := point.Tags()["tableName"]
		ms, ok := fields["duration_ms"].(float64)
		if !ok {
			t.Fatalf("duration_ms for %q = %v, want float64", name, fields["duration_ms"])
		}
		count, ok := fields["item_count"].(int64)
		if !ok {
			t.Fatalf("item_count for %q = %v, want int64", name, fields["item_count"])
		}
		durations[name] = ms
		counts[name] = count
	}
	return durations, counts
}

func TestRecordMetricsApportionsDurationByShare(t *testing.T) {
	c := newCatalogClient(t)
	cpu, _ := c.database.LookupTable("cpu")
	disk, _ := c.database.LookupTable("disk")

	// One second over a batch of ten, split seven to three.
	c.recordMetrics(schema.KeywordInsert,
		map[*schema.Table]int{cpu: 7, disk: 3},
		time.Second, 10)

	if got := len(c.buffer[c.metricsTable]); got != 2 {
		t.Fatalf("queued metrics records = %d, want 2", got)
	}

	durations, counts := queuedDurations(t, c)
	if math.Abs(durations["cpu"]-700) > 1e-9 {
		t.Errorf("cpu duration_ms = %v, want 700", durations["cpu"])
	}
	if math.Abs(durations["disk"]-300) > 1e-9 {
		t.Errorf("disk duration_ms = %v, want 300", durations["disk"])
	}
	if total := durations["cpu"] + durations["disk"]; math.Abs(total-1000) > 1e-9 {
		t.Errorf("duration_ms sum = %v, want the full elapsed 1000", total)
	}
	if counts["cpu"] != 7 || counts["disk"] != 3 {
		t.Errorf("item_count = %v, want cpu=7 disk=3", counts)
	}
}

func TestRecordMetricsFloorsEmptyShare(t *testing.T) {
	c := newCatalogClient(t)
	cpu, _ := c.database.LookupTable("cpu")

	c.recordMetrics(schema.KeywordSelect,
		map[*schema.Table]int{cpu: 0},
		time.Second, 4)

	durations, counts := queuedDurations(t, c)
	if math.Abs(durations["cpu"]-250) > 1e-9 {
		t.Errorf("cpu duration_ms = %v, want 250 (count floored to 1)", durations["cpu"])
	}
	if counts["cpu"] != 0 {
		t.Errorf("item_count = %d, want the raw 0", counts["cpu"])
	}
}

func TestRecordMetricsClampsBatchSize(t *testing.T) {
	c := newCatalogClient(t)
	cpu, _ := c.database.LookupTable("cpu")

	c.recordMetrics(schema.KeywordInsert,
		map[*schema.Table]int{cpu: 1},
		time.Second, 0)

	durations, _ := queuedDurations(t, c)
	if math.Abs(durations["cpu"]-1000) > 1e-9 {
		t.Errorf("cpu duration_ms = %v, want 1000 (batch size clamped to 1)", durations["cpu"])
	}
}
