// Package schema holds the declarative catalog for a Flowline target database.
//
// A catalog is a Database with its Tables, RetentionPolicies and
// ContinuousQueries, declared once at startup (typically from config.yaml)
// and read-only afterwards. The influx client reconciles the declared
// retention policies and continuous queries against the server on connect,
// and uses the table definitions to classify incoming rows into tags,
// fields and a timestamp.
//
// # Value types
//
// InsertQuery describes one row to write and serialises deterministically
// to a single line of the InfluxDB line protocol. SelectionQuery describes
// a SELECT or DELETE statement and renders to InfluxQL; it is also the
// body of a ContinuousQuery.
//
// # Thread Safety
//
// The catalog is not safe for concurrent mutation. Declare everything
// before handing it to the influx client; the client serialises the one
// runtime mutation path (auto-registration of undeclared tables) behind
// its own lock.
package schema
