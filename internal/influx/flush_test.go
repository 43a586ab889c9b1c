package influx

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/nerrad567/flowline-core/internal/infrastructure/logging"
	"github.com/nerrad567/flowline-core/internal/schema"
)

// captureHandler records every log entry so tests can assert on the
// level a message was emitted at.
type captureHandler struct {
	mu      sync.Mutex
	records []capturedRecord
}

type capturedRecord struct {
	level   slog.Level
	message string
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, capturedRecord{r.Level, r.Message})
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

// find returns the level of the first record whose message contains
// the given fragment.
func (h *captureHandler) find(fragment string) (slog.Level, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if strings.Contains(r.message, fragment) {
			return r.level, true
		}
	}
	return 0, false
}

// writeErrDriver fails every write with a fixed error and accepts
// everything else.
type writeErrDriver struct{ err error }

func (d *writeErrDriver) Ping(time.Duration) (string, error)                        { return "1.8.10", nil }
func (d *writeErrDriver) CreateDatabase(string) error                               { return nil }
func (d *writeErrDriver) RetentionPolicies(string) ([]ServerRetentionPolicy, error) { return nil, nil }
func (d *writeErrDriver) CreateRetentionPolicy(*schema.RetentionPolicy) error       { return nil }
func (d *writeErrDriver) AlterRetentionPolicy(*schema.RetentionPolicy) error        { return nil }
func (d *writeErrDriver) ContinuousQueries(string) (map[string]string, error)       { return nil, nil }
func (d *writeErrDriver) CreateContinuousQuery(*schema.ContinuousQuery) error       { return nil }
func (d *writeErrDriver) DropContinuousQuery(string, string) error                  { return nil }
func (d *writeErrDriver) Query(string, string) ([]client.Result, error)             { return nil, nil }
func (d *writeErrDriver) SetTimeout(time.Duration) error                            { return nil }
func (d *writeErrDriver) Close() error                                              { return nil }

func (d *writeErrDriver) WritePoints([]*client.Point, string, string, int) error {
	return d.err
}

func TestFlushPartialWriteSeverity(t *testing.T) {
	// dropThreshold follows the configured batch size of 2.
	tests := []struct {
		name         string
		dropped      int
		wantLevel    slog.Level
		wantFragment string
	}{
		{"below threshold warns", 1, slog.LevelWarn, "points beyond retention policy dropped"},
		{"at threshold is critical", 2, slog.LevelError, "critical threshold"},
		{"above threshold is critical", 5, slog.LevelError, "critical threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &captureHandler{}
			c := newCatalogClient(t)
			c.log = &logging.Logger{Logger: slog.New(handler)}
			c.driver = &writeErrDriver{err: &PartialWriteError{Dropped: tt.dropped}}

			rows := []map[string]interface{}{
				{"host": "node1", "usage": 0.5, "time": int64(1700000000)},
			}
			if err := c.InsertRows("cpu", rows); err != nil {
				t.Fatalf("InsertRows() error = %v", err)
			}
			c.Flush()

			level, found := handler.find(tt.wantFragment)
			if !found {
				t.Fatalf("no log message containing %q, got %+v", tt.wantFragment, handler.records)
			}
			if level != tt.wantLevel {
				t.Errorf("log level = %v, want %v", level, tt.wantLevel)
			}
			if _, lost := handler.find("rows lost"); lost {
				t.Errorf("partial write logged as a generic batch failure")
			}

			// The cycle still records its timing despite the failure.
			if got := len(c.buffer[c.metricsTable]); got != 1 {
				t.Errorf("queued metrics records = %d, want 1", got)
			}
		})
	}
}

func TestFlushGenericWriteFailureSeverity(t *testing.T) {
	handler := &captureHandler{}
	c := newCatalogClient(t)
	c.log = &logging.Logger{Logger: slog.New(handler)}
	c.driver = &writeErrDriver{err: ErrServer}

	rows := []map[string]interface{}{
		{"host": "node1", "usage": 0.5, "time": int64(1700000000)},
	}
	if err := c.InsertRows("cpu", rows); err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}
	c.Flush()

	level, found := handler.find("rows lost")
	if !found {
		t.Fatalf("no generic failure log, got %+v", handler.records)
	}
	if level != slog.LevelError {
		t.Errorf("log level = %v, want %v", level, slog.LevelError)
	}
}
