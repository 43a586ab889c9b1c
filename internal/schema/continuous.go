package schema

import (
	"fmt"
	"strings"
)

// ContinuousQuery is a server-maintained downsampling rule: a SELECT
// with an INTO target the server materialises periodically.
//
// The rendered Statement is both the CREATE command sent to the server
// and the canonical form compared syntactically against the
// server-reported query string during reconciliation. The server cannot
// alter a continuous query in place, so a drifted one is dropped and
// re-added.
type ContinuousQuery struct {
	database *Database
	name     string
	sel      *SelectionQuery
	resample string
}

// Name returns the continuous query name.
func (cq *ContinuousQuery) Name() string { return cq.name }

// Database returns the owning database.
func (cq *ContinuousQuery) Database() *Database { return cq.database }

// Select returns the SELECT body.
func (cq *ContinuousQuery) Select() *SelectionQuery { return cq.sel }

// Resample returns the RESAMPLE options, or empty.
func (cq *ContinuousQuery) Resample() string { return cq.resample }

// Statement renders the full CREATE CONTINUOUS QUERY command.
func (cq *ContinuousQuery) Statement() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE CONTINUOUS QUERY %q ON %q ", cq.name, cq.database.name)
	if cq.resample != "" {
		b.WriteString("RESAMPLE ")
		b.WriteString(cq.resample)
		b.WriteByte(' ')
	}
	b.WriteString("BEGIN ")
	b.WriteString(cq.sel.Statement())
	b.WriteString(" END")
	return b.String()
}

// String returns the continuous query name, for logging.
func (cq *ContinuousQuery) String() string { return cq.name }
