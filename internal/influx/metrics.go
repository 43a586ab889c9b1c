package influx

import (
	"time"

	"github.com/nerrad567/flowline-core/internal/schema"
)

// recordMetrics queues one self-observation record per touched table
// into the client_metrics buffer. The elapsed wall time is apportioned
// to each table by its share of the batch: duration * count / batchSize
// in milliseconds, alongside the raw item count. Records ride the next
// flush, never the one that produced them.
func (c *Client) recordMetrics(keyword schema.Keyword, tableCounts map[*schema.Table]int, elapsed time.Duration, batchSize int) {
	if len(tableCounts) == 0 {
		return
	}
	if batchSize < 1 {
		batchSize = 1
	}
	now := time.Now().Unix()

	c.mu.Lock()
	defer c.mu.Unlock()

	for table, count := range tableCounts {
		share := float64(max(count, 1)) / float64(batchSize)
		query, err := schema.NewInsertQuery(c.metricsTable,
			map[string]interface{}{
				"duration_ms": elapsed.Seconds() * 1000 * share,
				"item_count":  int64(count),
			},
			map[string]string{
				"keyword":   string(keyword),
				"tableName": table.Name(),
			},
			now)
		if err != nil {
			c.log.Error("building metrics record", "table", table.Name(), "error", err)
			continue
		}
		c.buffer[c.metricsTable] = append(c.buffer[c.metricsTable], query)
	}
}
