package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// defaultTimeKey is the row key carrying the timestamp when a table does
// not declare one.
const defaultTimeKey = "time"

// TableRef is a fully qualified reference to a table: database,
// retention policy and table name. It renders in the quoted
// `"db"."rp"."table"` form InfluxQL uses for cross-policy access.
type TableRef struct {
	Database        string
	RetentionPolicy string
	Table           string
}

// String renders the quoted fully qualified form.
func (r TableRef) String() string {
	return fmt.Sprintf("%q.%q.%q", r.Database, r.RetentionPolicy, r.Table)
}

// Table is one declared measurement: its name, assigned retention
// policy, and the classification rule splitting dict-shaped rows into
// tags, fields and a timestamp.
//
// Tables are immutable after catalog load and compared by identity; the
// insert buffer uses *Table as its map key.
type Table struct {
	database *Database
	name     string
	policy   *RetentionPolicy
	tagKeys  map[string]struct{}
	timeKey  string
}

// Name returns the table (measurement) name.
func (t *Table) Name() string { return t.name }

// Database returns the owning database.
func (t *Table) Database() *Database { return t.database }

// RetentionPolicy returns the policy writes to this table are stored
// under.
func (t *Table) RetentionPolicy() *RetentionPolicy { return t.policy }

// TimeKey returns the row key carrying the timestamp.
func (t *Table) TimeKey() string { return t.timeKey }

// TagKeys returns the declared tag keys, sorted.
func (t *Table) TagKeys() []string {
	keys := make([]string, 0, len(t.tagKeys))
	for k := range t.tagKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ref returns the fully qualified reference for this table.
func (t *Table) Ref() TableRef {
	return TableRef{
		Database:        t.database.name,
		RetentionPolicy: t.policy.name,
		Table:           t.name,
	}
}

// String renders the quoted fully qualified form.
func (t *Table) String() string { return t.Ref().String() }

// SplitRow classifies one dict-shaped row into tags, fields and a
// timestamp in epoch seconds, according to the table's declared rule:
// the time key carries the timestamp, declared tag keys become tags
// (stringified), every remaining key becomes a typed field. Nil values
// are dropped.
//
// A row that cannot be classified (unsupported field type, unparseable
// timestamp, no fields left) returns an error wrapping ErrRowSkipped;
// the caller drops that row and keeps the batch. A row without a time
// key gets the capture time.
func (t *Table) SplitRow(row map[string]interface{}) (map[string]string, map[string]interface{}, int64, error) {
	if row == nil {
		return nil, nil, 0, fmt.Errorf("%w: nil row", ErrRowSkipped)
	}

	tags := make(map[string]string, len(t.tagKeys))
	fields := make(map[string]interface{}, len(row))
	var timestamp int64

	for key, value := range row {
		if value == nil {
			continue
		}
		if key == t.timeKey {
			ts, err := toEpochSeconds(value)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("%w: timestamp: %v", ErrRowSkipped, err)
			}
			timestamp = ts
			continue
		}
		if _, isTag := t.tagKeys[key]; isTag {
			tags[key] = toTagValue(value)
			continue
		}
		fv, err := toFieldValue(value)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("%w: field %q: %v", ErrRowSkipped, key, err)
		}
		fields[key] = fv
	}

	if len(fields) == 0 {
		return nil, nil, 0, fmt.Errorf("%w: no field values", ErrRowSkipped)
	}
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}
	return tags, fields, timestamp, nil
}

// toEpochSeconds coerces a row timestamp value into epoch seconds.
func toEpochSeconds(value interface{}) (int64, error) {
	var ts int64
	switch v := value.(type) {
	case int:
		ts = int64(v)
	case int32:
		ts = int64(v)
	case int64:
		ts = v
	case uint:
		ts = int64(v)
	case uint64:
		ts = int64(v)
	case float64:
		ts = int64(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, fmt.Errorf("unparseable number %q", v.String())
			}
			parsed = int64(f)
		}
		ts = parsed
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable string %q", v)
		}
		ts = parsed
	case time.Time:
		ts = v.Unix()
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
	if ts <= 0 {
		return 0, fmt.Errorf("non-positive value %d", ts)
	}
	return ts, nil
}

// toTagValue stringifies a tag value. Tags are always strings on the
// wire, so any scalar is accepted.
func toTagValue(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// toFieldValue coerces a field value into one of the supported typed
// forms: string, bool, int64 or float64.
func toFieldValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string, bool, int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite value %v", v)
		}
		return v, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("unparseable number %q", v.String())
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}
