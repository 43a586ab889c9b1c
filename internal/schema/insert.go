package schema

import (
	"fmt"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
)

// InsertQuery is an immutable description of one row to write: target
// table, typed field values, string tag values and a timestamp in epoch
// seconds.
//
// The line-protocol point is built eagerly at construction, so an
// InsertQuery that exists is always writable and Line() is
// deterministic (tags and fields are sorted by the point encoder).
type InsertQuery struct {
	table     *Table
	point     *client.Point
	timestamp int64
}

// NewInsertQuery builds the insert for one classified row.
//
// Construction fails on a nil table, an empty field set, a non-positive
// timestamp, or field values the line protocol cannot carry; a failure
// means the row is dropped, never the batch.
//
// The field and tag maps are copied; callers may reuse them.
func NewInsertQuery(table *Table, fields map[string]interface{}, tags map[string]string, timestamp int64) (InsertQuery, error) {
	if table == nil {
		return InsertQuery{}, fmt.Errorf("%w: table is required", ErrInvalidInsert)
	}
	if len(fields) == 0 {
		return InsertQuery{}, fmt.Errorf("%w: at least one field is required", ErrInvalidInsert)
	}
	if timestamp <= 0 {
		return InsertQuery{}, fmt.Errorf("%w: non-positive timestamp %d", ErrInvalidInsert, timestamp)
	}

	fieldCopy := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		fieldCopy[k] = v
	}
	var tagCopy map[string]string
	if len(tags) > 0 {
		tagCopy = make(map[string]string, len(tags))
		for k, v := range tags {
			tagCopy[k] = v
		}
	}

	pt, err := client.NewPoint(table.name, tagCopy, fieldCopy, time.Unix(timestamp, 0).UTC())
	if err != nil {
		return InsertQuery{}, fmt.Errorf("%w: %v", ErrInvalidInsert, err)
	}

	return InsertQuery{
		table:     table,
		point:     pt,
		timestamp: timestamp,
	}, nil
}

// Table returns the target table.
func (q InsertQuery) Table() *Table { return q.table }

// Timestamp returns the row timestamp in epoch seconds.
func (q InsertQuery) Timestamp() int64 { return q.timestamp }

// Point returns the prepared line-protocol point.
func (q InsertQuery) Point() *client.Point { return q.point }

// Line renders the single line-protocol line at seconds precision.
func (q InsertQuery) Line() string { return q.point.PrecisionString("s") }
