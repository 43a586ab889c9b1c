package schema

import (
	"fmt"
	"strings"
)

// Keyword tags the kind of operation a query or metrics record
// describes.
type Keyword string

// Supported keywords.
const (
	KeywordSelect Keyword = "SELECT"
	KeywordInsert Keyword = "INSERT"
	KeywordDelete Keyword = "DELETE"
)

// SelectionQuery describes one SELECT or DELETE statement against a set
// of catalog tables, with optional INTO target, WHERE clause and GROUP
// BY terms.
//
// The catalog tables carried by the query are what the executor checks
// against the insert buffer for the pre-query flush; the optional source
// override (WithSource) substitutes a foreign FROM clause without losing
// that identity, which is how the migration path rewrites continuous
// query bodies structurally instead of by text substitution.
type SelectionQuery struct {
	keyword Keyword
	fields  []string
	tables  []*Table
	source  *TableRef
	into    *TableRef
	where   string
	groupBy []string
}

// NewSelectionQuery creates a SELECT or DELETE query over the given
// catalog tables.
//
// For SELECT, empty fields default to "*". DELETE takes no fields.
//
// Returns:
//   - *SelectionQuery: The query, ready for further clauses
//   - error: If the keyword is unsupported, no table is given, or
//     fields are combined with DELETE
func NewSelectionQuery(keyword Keyword, tables []*Table, fields ...string) (*SelectionQuery, error) {
	switch keyword {
	case KeywordSelect, KeywordDelete:
	default:
		return nil, fmt.Errorf("%w: keyword %q is not selectable", ErrInvalidQuery, keyword)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: at least one table is required", ErrInvalidQuery)
	}
	for _, t := range tables {
		if t == nil {
			return nil, fmt.Errorf("%w: nil table", ErrInvalidQuery)
		}
	}
	if keyword == KeywordDelete && len(fields) > 0 {
		return nil, fmt.Errorf("%w: DELETE takes no fields", ErrInvalidQuery)
	}
	if keyword == KeywordSelect && len(fields) == 0 {
		fields = []string{"*"}
	}

	return &SelectionQuery{
		keyword: keyword,
		fields:  fields,
		tables:  tables,
	}, nil
}

// Where sets the WHERE clause (without the keyword) and returns the
// query for chaining during declaration.
func (q *SelectionQuery) Where(clause string) *SelectionQuery {
	q.where = clause
	return q
}

// GroupBy sets the GROUP BY terms and returns the query.
func (q *SelectionQuery) GroupBy(terms ...string) *SelectionQuery {
	q.groupBy = terms
	return q
}

// Into sets the INTO target and returns the query.
func (q *SelectionQuery) Into(ref TableRef) *SelectionQuery {
	q.into = &ref
	return q
}

// WithSource returns a copy of the query reading FROM the given
// reference instead of the catalog tables' own locations. The catalog
// tables remain attached for identity purposes.
func (q *SelectionQuery) WithSource(ref TableRef) *SelectionQuery {
	clone := *q
	clone.source = &ref
	if q.groupBy != nil {
		clone.groupBy = append([]string(nil), q.groupBy...)
	}
	if q.fields != nil {
		clone.fields = append([]string(nil), q.fields...)
	}
	return &clone
}

// Keyword returns the query keyword.
func (q *SelectionQuery) Keyword() Keyword { return q.keyword }

// Tables returns the catalog tables the query targets.
func (q *SelectionQuery) Tables() []*Table { return q.tables }

// WhereClause returns the WHERE clause, without the keyword.
func (q *SelectionQuery) WhereClause() string { return q.where }

// IntoRef returns the INTO target, or nil.
func (q *SelectionQuery) IntoRef() *TableRef { return q.into }

// SourceRef returns the FROM override, or nil.
func (q *SelectionQuery) SourceRef() *TableRef { return q.source }

// Statement renders the query as InfluxQL.
//
// SELECT renders fully qualified table references; DELETE renders bare
// measurement names, since DELETE cannot cross databases.
func (q *SelectionQuery) Statement() string {
	var b strings.Builder

	switch q.keyword {
	case KeywordDelete:
		b.WriteString("DELETE FROM ")
		for i, t := range q.tables {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q", t.name)
		}
	default:
		b.WriteString("SELECT ")
		b.WriteString(strings.Join(q.fields, ", "))
		if q.into != nil {
			b.WriteString(" INTO ")
			b.WriteString(q.into.String())
		}
		b.WriteString(" FROM ")
		if q.source != nil {
			b.WriteString(q.source.String())
		} else {
			for i, t := range q.tables {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(t.String())
			}
		}
	}

	if q.where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(q.where)
	}
	if len(q.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(q.groupBy, ", "))
	}
	return b.String()
}
