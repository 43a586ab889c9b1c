package influx

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/nerrad567/flowline-core/internal/schema"
)

// Transfer copies historical data from another database (or this one,
// when oldDatabase is empty) into the catalog's tables using server
// side SELECT INTO queries. One query is built per table, plus one per
// continuous query so downsampled series are backfilled too. Each
// query is bounded by the target retention policy's duration so the
// server is not asked to write points it would immediately drop.
//
// The driver timeout is widened for the duration of the run and
// restored afterwards; bulk copies routinely outlive the regular
// request timeout. Individual query failures never abort the run. If
// any query failed hard, or dropped points at or above the critical
// threshold, Transfer returns ErrTransferIncomplete after finishing
// everything else.
//
// Transfer records no self-observation metrics; the run is logged.
func (c *Client) Transfer(oldDatabase string) error {
	if oldDatabase == "" {
		oldDatabase = c.database.Name()
	}

	c.mu.Lock()
	driver := c.driver
	c.mu.Unlock()
	if driver == nil {
		return ErrNotConnected
	}

	queries := c.buildTransferQueries(oldDatabase)
	c.log.Info("transferring historical data",
		"from", oldDatabase, "into", c.database.Name(), "queries", len(queries))

	if err := driver.SetTimeout(c.cfg.GetTransferTimeout()); err != nil {
		return fmt.Errorf("widening driver timeout: %w", err)
	}
	defer func() {
		if err := driver.SetTimeout(c.cfg.GetTimeout()); err != nil {
			c.log.Error("restoring driver timeout", "error", err)
		}
	}()

	var written, benign, critical int
	for i, command := range queries {
		start := time.Now()
		results, err := driver.Query(command, c.database.Name())
		elapsed := time.Since(start)

		if err != nil {
			var partial *PartialWriteError
			switch {
			case errors.As(err, &partial) && partial.Dropped >= c.dropThreshold:
				critical++
				c.log.Error("transfer query dropped points at or above the critical threshold, retry it manually with a narrower time range",
					"query", command, "dropped", partial.Dropped, "threshold", c.dropThreshold)
			case errors.As(err, &partial):
				benign++
				c.log.Debug("transfer query dropped points beyond retention",
					"query", command, "dropped", partial.Dropped)
			default:
				critical++
				c.log.Error("transfer query failed", "query", command, "error", err)
			}
			continue
		}

		rows := writtenRows(results)
		written += rows
		c.log.Info("transfer query complete",
			"progress", fmt.Sprintf("%d/%d", i+1, len(queries)),
			"written", rows, "duration", elapsed)
	}

	c.log.Info("transfer finished", "written", written)
	if benign > 0 {
		c.log.Info("some transfer queries dropped points beyond their retention policy, no action needed",
			"queries", benign)
	}
	if critical > 0 {
		return fmt.Errorf("%w: %d of %d queries failed, check the log and retry those manually",
			ErrTransferIncomplete, critical, len(queries))
	}
	return nil
}

// buildTransferQueries renders the SELECT INTO statements for a run.
// Sources read from the old database's autogen policy, where untyped
// historical data lives; targets are the catalog's qualified tables.
func (c *Client) buildTransferQueries(oldDatabase string) []string {
	var queries []string

	for _, table := range c.database.Tables() {
		sel, err := schema.NewSelectionQuery(schema.KeywordSelect, []*schema.Table{table})
		if err != nil {
			c.log.Error("building transfer query", "table", table.Name(), "error", err)
			continue
		}
		sel.Into(table.Ref()).GroupBy("*")
		clone := sel.WithSource(schema.TableRef{
			Database:        oldDatabase,
			RetentionPolicy: "autogen",
			Table:           table.Name(),
		})
		if d := table.RetentionPolicy().Duration(); d > 0 {
			clone.Where(fmt.Sprintf("time > now() - %s", influxDuration(d)))
		}
		queries = append(queries, clone.Statement())
	}

	for _, cq := range c.database.ContinuousQueries() {
		sel := cq.Select()
		tables := sel.Tables()
		if len(tables) == 0 {
			continue
		}
		clone := sel.WithSource(schema.TableRef{
			Database:        oldDatabase,
			RetentionPolicy: "autogen",
			Table:           tables[0].Name(),
		})
		if into := clone.IntoRef(); into != nil {
			if rp, ok := c.database.RetentionPolicy(into.RetentionPolicy); ok && rp.Duration() > 0 {
				guard := fmt.Sprintf("time > now() - %s", influxDuration(rp.Duration()))
				if where := clone.WhereClause(); where != "" {
					guard = where + " AND " + guard
				}
				clone.Where(guard)
			}
		}
		queries = append(queries, clone.Statement())
	}

	return queries
}

// writtenRows sums the "written" column SELECT INTO responses carry.
func writtenRows(results []client.Result) int {
	total := 0
	for _, result := range results {
		for _, series := range result.Series {
			idx := columnIndex(series.Columns, "written")
			if idx < 0 {
				continue
			}
			for _, row := range series.Values {
				if idx >= len(row) {
					continue
				}
				if n, ok := row[idx].(json.Number); ok {
					if v, err := n.Int64(); err == nil {
						total += int(v)
					}
				}
			}
		}
	}
	return total
}
