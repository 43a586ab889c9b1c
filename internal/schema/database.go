package schema

import (
	"fmt"
	"sort"
	"time"
)

// Shard group sizing applied when the implicit autogen policy is used.
const autogenShardGroupDuration = 7 * 24 * time.Hour

// Database is the root of a catalog: the named target database together
// with its declared tables, retention policies and continuous queries.
//
// Declare the catalog fully at startup, call Validate, then treat it as
// read-only. Tables are compared by identity (*Table) throughout the
// influx client, so every lookup for the same name returns the same
// instance.
type Database struct {
	name    string
	tables  map[string]*Table
	autogen *RetentionPolicy

	policies []*RetentionPolicy
	queries  []*ContinuousQuery
}

// NewDatabase creates an empty catalog for the named database.
//
// The implicit server-side "autogen" policy is available as a write
// target for tables that do not name a policy, but it is not part of the
// declared set and is never reconciled.
func NewDatabase(name string) *Database {
	d := &Database{
		name:   name,
		tables: make(map[string]*Table),
	}
	d.autogen = &RetentionPolicy{
		database:    d,
		name:        "autogen",
		shardGroup:  autogenShardGroupDuration,
		replication: 1,
	}
	return d
}

// Name returns the database name.
func (d *Database) Name() string { return d.name }

// DefineRetentionPolicy declares a retention policy on the database.
//
// A zero duration keeps data forever. The declaration is checked by
// Validate, not here, so a full catalog can be assembled before any
// error surfaces.
func (d *Database) DefineRetentionPolicy(name string, duration, shardGroup time.Duration, replication int, isDefault bool) *RetentionPolicy {
	rp := &RetentionPolicy{
		database:    d,
		name:        name,
		duration:    duration,
		shardGroup:  shardGroup,
		replication: replication,
		isDefault:   isDefault,
	}
	d.policies = append(d.policies, rp)
	return rp
}

// RetentionPolicy looks up a declared policy by name.
// The implicit "autogen" policy is also resolvable.
func (d *Database) RetentionPolicy(name string) (*RetentionPolicy, bool) {
	for _, rp := range d.policies {
		if rp.name == name {
			return rp, true
		}
	}
	if name == d.autogen.name {
		return d.autogen, true
	}
	return nil, false
}

// RetentionPolicies returns the declared policies in declaration order.
// The implicit autogen policy is not included.
func (d *Database) RetentionPolicies() []*RetentionPolicy { return d.policies }

// DefaultRetentionPolicy returns the declared default policy, or the
// implicit autogen policy if none is declared default.
func (d *Database) DefaultRetentionPolicy() *RetentionPolicy {
	for _, rp := range d.policies {
		if rp.isDefault {
			return rp
		}
	}
	return d.autogen
}

// DefineTable declares a table with its classification rule.
//
// policy may be empty, in which case the database default policy is
// assigned. tagKeys lists the row keys stored as tags; every other key
// is a field, except timeKey (empty means "time") which carries the
// row timestamp in epoch seconds.
//
// Returns:
//   - *Table: The declared table
//   - error: If the name is empty, already declared, or the policy is unknown
func (d *Database) DefineTable(name, policy string, tagKeys []string, timeKey string) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: table name is required", ErrInvalidCatalog)
	}
	if _, exists := d.tables[name]; exists {
		return nil, fmt.Errorf("%w: table %q declared twice", ErrInvalidCatalog, name)
	}

	rp := d.DefaultRetentionPolicy()
	if policy != "" {
		declared, ok := d.RetentionPolicy(policy)
		if !ok {
			return nil, fmt.Errorf("%w: %q for table %q", ErrUnknownRetentionPolicy, policy, name)
		}
		rp = declared
	}
	if timeKey == "" {
		timeKey = defaultTimeKey
	}

	keys := make(map[string]struct{}, len(tagKeys))
	for _, k := range tagKeys {
		keys[k] = struct{}{}
	}

	t := &Table{
		database: d,
		name:     name,
		policy:   rp,
		tagKeys:  keys,
		timeKey:  timeKey,
	}
	d.tables[name] = t
	return t, nil
}

// Table returns the table with the given name, auto-registering an
// undeclared table with a default definition (no tags, default policy).
//
// Defining tables up front is strongly recommended; the fallback exists
// so an undeclared table degrades to all-fields classification rather
// than dropping data.
func (d *Database) Table(name string) *Table {
	if t, ok := d.tables[name]; ok {
		return t
	}
	t := &Table{
		database: d,
		name:     name,
		policy:   d.DefaultRetentionPolicy(),
		tagKeys:  map[string]struct{}{},
		timeKey:  defaultTimeKey,
	}
	d.tables[name] = t
	return t
}

// LookupTable returns the table with the given name, without the
// auto-registration fallback of Table.
func (d *Database) LookupTable(name string) (*Table, bool) {
	t, ok := d.tables[name]
	return t, ok
}

// Tables returns all known tables sorted by name.
func (d *Database) Tables() []*Table {
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	tables := make([]*Table, 0, len(names))
	for _, name := range names {
		tables = append(tables, d.tables[name])
	}
	return tables
}

// DefineContinuousQuery declares a continuous query on the database.
//
// The selection must be a SELECT with an INTO target; the server
// materialises its results into that target periodically.
//
// Returns:
//   - *ContinuousQuery: The declared query
//   - error: If the name is empty or the selection is unsuitable
func (d *Database) DefineContinuousQuery(name string, sel *SelectionQuery, resample string) (*ContinuousQuery, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: continuous query name is required", ErrInvalidCatalog)
	}
	if sel == nil || sel.keyword != KeywordSelect {
		return nil, fmt.Errorf("%w: continuous query %q needs a SELECT body", ErrInvalidCatalog, name)
	}
	if sel.into == nil {
		return nil, fmt.Errorf("%w: continuous query %q needs an INTO target", ErrInvalidCatalog, name)
	}
	for _, cq := range d.queries {
		if cq.name == name {
			return nil, fmt.Errorf("%w: continuous query %q declared twice", ErrInvalidCatalog, name)
		}
	}

	cq := &ContinuousQuery{
		database: d,
		name:     name,
		sel:      sel,
		resample: resample,
	}
	d.queries = append(d.queries, cq)
	return cq, nil
}

// ContinuousQueries returns the declared continuous queries in
// declaration order.
func (d *Database) ContinuousQueries() []*ContinuousQuery { return d.queries }

// Validate checks the catalog for declaration errors.
//
// It rejects, among others, a missing database name, duplicate policy
// names, more than one policy declared default, and non-positive shard
// group durations. Validation happens entirely offline, before any
// server call.
func (d *Database) Validate() error {
	if d.name == "" {
		return fmt.Errorf("%w: database name is required", ErrInvalidCatalog)
	}

	defaultSeen := false
	seen := make(map[string]struct{}, len(d.policies))
	for _, rp := range d.policies {
		if rp.name == "" {
			return fmt.Errorf("%w: retention policy without a name", ErrInvalidCatalog)
		}
		if _, dup := seen[rp.name]; dup {
			return fmt.Errorf("%w: retention policy %q declared twice", ErrInvalidCatalog, rp.name)
		}
		seen[rp.name] = struct{}{}

		if rp.duration < 0 {
			return fmt.Errorf("%w: retention policy %q has a negative duration", ErrInvalidCatalog, rp.name)
		}
		if rp.shardGroup <= 0 {
			return fmt.Errorf("%w: retention policy %q needs a positive shard group duration", ErrInvalidCatalog, rp.name)
		}
		if rp.replication < 1 {
			return fmt.Errorf("%w: retention policy %q needs a replication factor of at least 1", ErrInvalidCatalog, rp.name)
		}
		if rp.isDefault {
			if defaultSeen {
				return ErrDuplicateDefaultPolicy
			}
			defaultSeen = true
		}
	}

	return nil
}
