package schema

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	d := NewDatabase("flowline")
	d.DefineRetentionPolicy("raw", 90*24*time.Hour, 24*time.Hour, 1, true)
	table, err := d.DefineTable("cpu", "raw", []string{"host", "core"}, "")
	if err != nil {
		t.Fatalf("DefineTable() error = %v", err)
	}
	return table
}

// ============================================================================
// Row Classification Tests
// ============================================================================

func TestSplitRowClassifiesByDeclaredKeys(t *testing.T) {
	table := testTable(t)

	tags, fields, ts, err := table.SplitRow(map[string]interface{}{
		"host":  "node1",
		"core":  3,
		"usage": 0.42,
		"label": "idle",
		"time":  int64(1700000000),
	})
	if err != nil {
		t.Fatalf("SplitRow() error = %v", err)
	}

	if tags["host"] != "node1" || tags["core"] != "3" {
		t.Errorf("tags = %v, want host=node1 core=3", tags)
	}
	if fields["usage"] != 0.42 || fields["label"] != "idle" {
		t.Errorf("fields = %v", fields)
	}
	if _, leaked := fields["time"]; leaked {
		t.Errorf("time key leaked into fields")
	}
	if ts != 1700000000 {
		t.Errorf("timestamp = %d, want 1700000000", ts)
	}
}

func TestSplitRowDropsNilValues(t *testing.T) {
	table := testTable(t)

	tags, fields, _, err := table.SplitRow(map[string]interface{}{
		"host":  nil,
		"usage": 1.0,
		"empty": nil,
	})
	if err != nil {
		t.Fatalf("SplitRow() error = %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("nil tag kept: %v", tags)
	}
	if len(fields) != 1 {
		t.Errorf("nil field kept: %v", fields)
	}
}

func TestSplitRowDefaultsTimestampToNow(t *testing.T) {
	table := testTable(t)

	before := time.Now().Unix()
	_, _, ts, err := table.SplitRow(map[string]interface{}{"usage": 1.0})
	if err != nil {
		t.Fatalf("SplitRow() error = %v", err)
	}
	if ts < before || ts > time.Now().Unix() {
		t.Errorf("timestamp = %d, want capture time", ts)
	}
}

func TestSplitRowRejections(t *testing.T) {
	table := testTable(t)

	tests := []struct {
		name string
		row  map[string]interface{}
	}{
		{"nil row", nil},
		{"no fields", map[string]interface{}{"host": "node1"}},
		{"bad timestamp", map[string]interface{}{"usage": 1.0, "time": "yesterday"}},
		{"negative timestamp", map[string]interface{}{"usage": 1.0, "time": -5}},
		{"unsupported field type", map[string]interface{}{"usage": []int{1, 2}}},
		{"non-finite field", map[string]interface{}{"usage": math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := table.SplitRow(tt.row); !errors.Is(err, ErrRowSkipped) {
				t.Errorf("SplitRow() = %v, want ErrRowSkipped", err)
			}
		})
	}
}

// ============================================================================
// Value Coercion Tests
// ============================================================================

func TestToEpochSeconds(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int64
	}{
		{"int", 1700000000, 1700000000},
		{"int64", int64(1700000000), 1700000000},
		{"float64", 1.7e9, 1700000000},
		{"json number", json.Number("1700000000"), 1700000000},
		{"numeric string", "1700000000", 1700000000},
		{"time.Time", time.Unix(1700000000, 0), 1700000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toEpochSeconds(tt.value)
			if err != nil {
				t.Fatalf("toEpochSeconds(%v) error = %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("toEpochSeconds(%v) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestToFieldValueCoercions(t *testing.T) {
	if v, err := toFieldValue(json.Number("7")); err != nil || v != int64(7) {
		t.Errorf("integral json.Number = %v (%v), want int64 7", v, err)
	}
	if v, err := toFieldValue(json.Number("0.5")); err != nil || v != 0.5 {
		t.Errorf("fractional json.Number = %v (%v), want 0.5", v, err)
	}
	if v, err := toFieldValue(uint64(9)); err != nil || v != int64(9) {
		t.Errorf("uint64 = %v (%v), want int64 9", v, err)
	}
	if _, err := toFieldValue(map[string]string{}); err == nil {
		t.Errorf("map accepted as field value")
	}
}

// ============================================================================
// Reference Rendering Tests
// ============================================================================

func TestTableRefString(t *testing.T) {
	ref := TableRef{Database: "flowline", RetentionPolicy: "raw", Table: "cpu"}
	if got := ref.String(); got != `"flowline"."raw"."cpu"` {
		t.Errorf("String() = %s", got)
	}
}

// ============================================================================
// Insert Construction Tests
// ============================================================================

func TestNewInsertQueryLineIsDeterministic(t *testing.T) {
	table := testTable(t)

	q, err := NewInsertQuery(table,
		map[string]interface{}{"usage": 0.5, "active": int64(3)},
		map[string]string{"host": "node1", "core": "0"},
		1700000000)
	if err != nil {
		t.Fatalf("NewInsertQuery() error = %v", err)
	}

	// The point encoder sorts tags and fields.
	want := `cpu,core=0,host=node1 active=3i,usage=0.5 1700000000`
	if got := q.Line(); got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
}

func TestNewInsertQueryRejections(t *testing.T) {
	table := testTable(t)
	fields := map[string]interface{}{"usage": 1.0}

	if _, err := NewInsertQuery(nil, fields, nil, 1); !errors.Is(err, ErrInvalidInsert) {
		t.Errorf("nil table: %v", err)
	}
	if _, err := NewInsertQuery(table, nil, nil, 1); !errors.Is(err, ErrInvalidInsert) {
		t.Errorf("no fields: %v", err)
	}
	if _, err := NewInsertQuery(table, fields, nil, 0); !errors.Is(err, ErrInvalidInsert) {
		t.Errorf("zero timestamp: %v", err)
	}
}
