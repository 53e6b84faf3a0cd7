// Package schema reads table and column metadata from SQL Server and turns
// connection failures into a small set of diagnostic categories.
package schema

// Column is one column of a base table. Default holds the server's default
// expression text when one is defined.
type Column struct {
	Name     string  `json:"name"`
	DataType string  `json:"data_type"`
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default,omitempty"`
}

// Table is a base table. RetrievalSucceeded is false when its columns could
// not be read; Columns is then empty.
type Table struct {
	Name               string   `json:"name"`
	Columns            []Column `json:"columns"`
	RetrievalSucceeded bool     `json:"retrieval_succeeded"`
}

// Snapshot is the metadata of one database as read by a single inspection.
// Tables are ordered by name and columns by ordinal position. Partial is set
// when at least one table failed column retrieval.
type Snapshot struct {
	Database string  `json:"database"`
	Tables   []Table `json:"tables"`
	Partial  bool    `json:"partial"`
}
