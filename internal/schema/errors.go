package schema

import "errors"

// Sentinel errors for catalog declaration and row classification.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, schema.ErrRowSkipped) {
//	    // drop the row, keep the batch
//	}
var (
	// ErrInvalidCatalog indicates a malformed catalog declaration.
	ErrInvalidCatalog = errors.New("schema: invalid catalog")

	// ErrDuplicateDefaultPolicy indicates more than one retention policy
	// in the same database is declared as default.
	ErrDuplicateDefaultPolicy = errors.New("schema: multiple retention policies declared as default")

	// ErrUnknownRetentionPolicy indicates a table or query references a
	// retention policy that is not declared in the database.
	ErrUnknownRetentionPolicy = errors.New("schema: unknown retention policy")

	// ErrRowSkipped indicates a single row failed classification and
	// should be dropped without failing the surrounding batch.
	ErrRowSkipped = errors.New("schema: row skipped")

	// ErrInvalidQuery indicates a selection query declaration is malformed.
	ErrInvalidQuery = errors.New("schema: invalid query")

	// ErrInvalidInsert indicates an insert query could not be constructed.
	ErrInvalidInsert = errors.New("schema: invalid insert")
)
