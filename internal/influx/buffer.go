package influx

import (
	"github.com/nerrad567/flowline-core/internal/schema"
)

// InsertRows classifies rows against the named table and appends them
// to the buffer. Unknown tables are auto-registered with the catalog's
// default retention policy. Rows that cannot be classified (no fields,
// unparseable timestamp, unsupported field type) are skipped with a
// warning; one bad row never poisons the batch.
//
// A nil row list or an empty table name is a caller bug and returns an
// error. An empty row list is a no-op.
//
// When the named table's pending depth reaches five times the
// configured batch size the whole buffer is flushed before returning.
// The check runs once per call, after all rows are appended.
func (c *Client) InsertRows(tableName string, rows []map[string]interface{}) error {
	if rows == nil {
		return ErrNilRows
	}
	if tableName == "" {
		return ErrMissingTableName
	}
	if len(rows) == 0 {
		c.log.Debug("no rows to insert", "table", tableName)
		return nil
	}

	c.mu.Lock()
	table := c.database.Table(tableName)

	appended := 0
	skipped := 0
	for _, row := range rows {
		tags, fields, timestamp, err := table.SplitRow(row)
		if err != nil {
			skipped++
			c.log.Warn("skipping row", "table", tableName, "error", err)
			continue
		}
		query, err := schema.NewInsertQuery(table, fields, tags, timestamp)
		if err != nil {
			skipped++
			c.log.Warn("skipping row", "table", tableName, "error", err)
			continue
		}
		c.buffer[table] = append(c.buffer[table], query)
		appended++
	}
	pending := len(c.buffer[table])
	c.mu.Unlock()

	c.log.Debug("buffered rows",
		"table", tableName, "appended", appended, "skipped", skipped, "pending", pending)

	if pending >= overflowFactor*c.maxBatchSize {
		c.log.Info("buffer overflow threshold reached, flushing",
			"table", tableName, "pending", pending)
		c.Flush()
	}
	return nil
}
