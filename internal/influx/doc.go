// Package influx buffers time-series writes and flushes them in
// batches to an InfluxDB 1.x server.
//
// The Client sits between row producers and the server: rows are
// classified against a schema catalog, buffered per table, and written
// as line protocol batches on explicit or overflow-triggered flushes.
// On connect the client reconciles the server's retention policies and
// continuous queries with the catalog, creating and altering whatever
// diverges. Write and query timings feed back into the buffer as
// ordinary rows on the reserved client_metrics table.
//
// The Driver interface isolates the HTTP transport; tests drive the
// Client with an in-memory fake.
package influx
