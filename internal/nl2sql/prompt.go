package nl2sql

import (
	"fmt"
	"strings"

	"github.com/tsqlgen/tsqlgen/internal/schema"
)

const (
	partialSchemaWarning = "***Warning: Failed schema retrieval for some tables.***"
	failedTableMarker    = "  - Error: Could not retrieve schema details."
)

// RenderSchema formats a snapshot as the schema context embedded in the
// system instruction. Output depends only on the snapshot.
func RenderSchema(snapshot schema.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database: [%s]\n\nTables Schema:\n", snapshot.Database)
	if snapshot.Partial {
		b.WriteString(partialSchemaWarning)
		b.WriteString("\n")
	}

	blocks := make([]string, 0, len(snapshot.Tables))
	for _, table := range snapshot.Tables {
		blocks = append(blocks, renderTable(table))
	}
	b.WriteString("\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	return b.String()
}

func renderTable(table schema.Table) string {
	header := fmt.Sprintf("Table: [%s]", table.Name)
	if !table.RetrievalSucceeded {
		return header + "\n" + failedTableMarker
	}
	lines := make([]string, 0, len(table.Columns)+2)
	lines = append(lines, header, "Columns:")
	for _, column := range table.Columns {
		lines = append(lines, renderColumn(column))
	}
	return strings.Join(lines, "\n")
}

func renderColumn(column schema.Column) string {
	details := []string{column.DataType}
	if !column.Nullable {
		details = append(details, "NOT NULL")
	}
	if column.Default != nil {
		details = append(details, "DEFAULT "+*column.Default)
	}
	return fmt.Sprintf("  - [%s] (%s)", column.Name, strings.Join(details, ", "))
}

func buildSystemPrompt(schemaContext string) string {
	return `You are an expert SQL assistant translating natural language to Microsoft SQL Server (T-SQL) queries.
Given the database schema below, generate a single, valid T-SQL query that answers the user's request.
Output only the SQL query, with no explanations, comments, markdown formatting, or introductory text.
Use square brackets ([]) around table and column names.
Use single quotes (') for string and date literals and respect the column data types in WHERE clauses.
If the schema is missing or incomplete for the request, say that you cannot generate the query and why, in plain text.

Database Schema Context:
---
` + schemaContext + `
---
User Request:`
}
