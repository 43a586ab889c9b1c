package influx

import (
	"errors"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/nerrad567/flowline-core/internal/schema"
)

// Flush snapshots the buffer, clears it, and writes each table's rows
// to the server. Tables fail independently: a rejected batch is logged
// and its rows are gone, but every other table still flushes. A timing
// record per table is queued for the next flush cycle, so Flush on an
// empty buffer terminates immediately instead of chasing its own
// metrics forever.
func (c *Client) Flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	snapshot := c.buffer
	c.buffer = make(map[*schema.Table][]schema.InsertQuery, len(snapshot))
	driver := c.driver
	c.mu.Unlock()

	if driver == nil {
		total := 0
		for _, queries := range snapshot {
			total += len(queries)
		}
		c.log.Error("flush before connect, buffered rows dropped", "rows", total)
		return
	}

	for table, queries := range snapshot {
		if len(queries) == 0 {
			continue
		}

		points := make([]*client.Point, len(queries))
		for i, query := range queries {
			points[i] = query.Point()
		}

		start := time.Now()
		err := driver.WritePoints(points, c.database.Name(), table.RetentionPolicy().Name(), c.maxBatchSize)
		elapsed := time.Since(start)

		if err != nil {
			c.logWriteFailure(table, len(points), err)
		} else {
			c.log.Debug("flushed table",
				"table", table.Name(), "rows", len(points), "duration", elapsed)
		}

		c.recordMetrics(schema.KeywordInsert, map[*schema.Table]int{table: len(queries)}, elapsed, len(queries))
	}
}

func (c *Client) logWriteFailure(table *schema.Table, rows int, err error) {
	var partial *PartialWriteError
	if errors.As(err, &partial) {
		if partial.Dropped >= c.dropThreshold {
			c.log.Error("write dropped points at or above the critical threshold, lower the batch size and retry the source data manually",
				"table", table.Name(), "dropped", partial.Dropped, "threshold", c.dropThreshold)
		} else {
			c.log.Warn("points beyond retention policy dropped",
				"table", table.Name(), "dropped", partial.Dropped)
		}
		return
	}
	c.log.Error("sending insert batch, rows lost",
		"table", table.Name(), "rows", rows, "error", err)
}
