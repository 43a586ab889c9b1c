package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/flowline-core/internal/infrastructure/config"
)

// FromConfig builds and validates a catalog from the declarative schema
// section of the configuration file.
//
// Continuous queries reference tables by name; both the source and the
// INTO target must be declared tables.
//
// Parameters:
//   - database: Target database name (from influx.database)
//   - cfg: The schema section of config.yaml
//
// Returns:
//   - *Database: Validated catalog
//   - error: If any declaration is malformed
func FromConfig(database string, cfg config.SchemaConfig) (*Database, error) {
	d := NewDatabase(database)

	for _, rpc := range cfg.RetentionPolicies {
		duration, err := ParseDuration(rpc.Duration)
		if err != nil {
			return nil, fmt.Errorf("%w: retention policy %q duration: %v", ErrInvalidCatalog, rpc.Name, err)
		}
		shardGroup, err := ParseDuration(rpc.ShardGroupDuration)
		if err != nil {
			return nil, fmt.Errorf("%w: retention policy %q shard group duration: %v", ErrInvalidCatalog, rpc.Name, err)
		}
		replication := rpc.Replication
		if replication == 0 {
			replication = 1
		}
		d.DefineRetentionPolicy(rpc.Name, duration, shardGroup, replication, rpc.Default)
	}

	for _, tc := range cfg.Tables {
		if _, err := d.DefineTable(tc.Name, tc.RetentionPolicy, tc.Tags, tc.TimeKey); err != nil {
			return nil, err
		}
	}

	for _, cqc := range cfg.ContinuousQueries {
		source, ok := d.LookupTable(cqc.From)
		if !ok {
			return nil, fmt.Errorf("%w: continuous query %q reads from undeclared table %q", ErrInvalidCatalog, cqc.Name, cqc.From)
		}
		target, ok := d.LookupTable(cqc.Into)
		if !ok {
			return nil, fmt.Errorf("%w: continuous query %q writes into undeclared table %q", ErrInvalidCatalog, cqc.Name, cqc.Into)
		}

		sel, err := NewSelectionQuery(KeywordSelect, []*Table{source}, cqc.Select...)
		if err != nil {
			return nil, fmt.Errorf("continuous query %q: %w", cqc.Name, err)
		}
		sel.Where(cqc.Where).GroupBy(cqc.GroupBy...).Into(target.Ref())

		if _, err := d.DefineContinuousQuery(cqc.Name, sel, cqc.Resample); err != nil {
			return nil, err
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseDuration parses a retention duration string.
//
// It accepts Go duration syntax extended with d (days) and w (weeks)
// units, e.g. "90d", "1w12h", "26w". An empty string, "0" or "INF"
// means forever (zero duration).
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" || strings.EqualFold(s, "INF") {
		return 0, nil
	}

	var total time.Duration
	rest := s
	for rest != "" {
		// number part
		i := 0
		for i < len(rest) && (rest[i] >= '0' && rest[i] <= '9' || rest[i] == '.') {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		value, err := strconv.ParseFloat(rest[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}

		// unit part
		j := i
		for j < len(rest) && (rest[j] < '0' || rest[j] > '9') {
			j++
		}
		unit := rest[i:j]
		rest = rest[j:]

		var base time.Duration
		switch unit {
		case "ns":
			base = time.Nanosecond
		case "us", "µs":
			base = time.Microsecond
		case "ms":
			base = time.Millisecond
		case "s":
			base = time.Second
		case "m":
			base = time.Minute
		case "h":
			base = time.Hour
		case "d":
			base = 24 * time.Hour
		case "w":
			base = 7 * 24 * time.Hour
		default:
			return 0, fmt.Errorf("invalid duration unit %q in %q", unit, s)
		}
		total += time.Duration(value * float64(base))
	}

	if total <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return total, nil
}
