package influx

import (
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/nerrad567/flowline-core/internal/schema"
)

// Execute runs a selection query against the configured database. If
// any of the query's tables has buffered rows the whole buffer is
// flushed first, so a read always sees this client's prior writes.
//
// Server and transport failures do not surface as errors: they are
// logged and an empty, well-formed result is returned, matching the
// contract that a failed read yields no rows rather than an exception
// path. The only errors are the nil-query contract violation and
// ErrNotConnected when no driver exists yet. Query timing is recorded
// per table with the elapsed time divided evenly.
func (c *Client) Execute(query *schema.SelectionQuery) ([]client.Result, error) {
	if query == nil {
		return nil, ErrNilQuery
	}

	c.mu.Lock()
	driver := c.driver
	pending := false
	for _, table := range query.Tables() {
		if len(c.buffer[table]) > 0 {
			pending = true
			break
		}
	}
	c.mu.Unlock()

	if driver == nil {
		return nil, ErrNotConnected
	}
	if pending {
		c.log.Debug("pending rows on queried tables, flushing before read")
		c.Flush()
	}

	command := query.Statement()
	start := time.Now()
	results, err := driver.Query(command, c.database.Name())
	elapsed := time.Since(start)
	if err != nil {
		c.log.Error("selection query failed, returning empty result",
			"query", command, "error", err)
		results = nil
	}

	rows := countResultRows(results)
	tableCounts := make(map[*schema.Table]int, len(query.Tables()))
	for _, table := range query.Tables() {
		tableCounts[table] = rows / len(query.Tables())
	}
	c.recordMetrics(query.Keyword(), tableCounts, elapsed, 1)

	if results == nil {
		results = []client.Result{}
	}
	return results, nil
}

func countResultRows(results []client.Result) int {
	total := 0
	for _, result := range results {
		for _, series := range result.Series {
			total += len(series.Values)
		}
	}
	return total
}
