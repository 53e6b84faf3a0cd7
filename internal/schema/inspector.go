package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tsqlgen/tsqlgen/internal/observability"
)

const (
	listTablesQuery = `
SELECT TABLE_NAME
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_CATALOG = @p1
ORDER BY TABLE_NAME`

	listColumnsQuery = `
SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_CATALOG = @p1 AND TABLE_NAME = @p2
ORDER BY ORDINAL_POSITION`

	databaseExistsQuery = `
SELECT name
FROM sys.databases
WHERE name = @p1`
)

// InspectorConfig names the server and identity used in diagnostic messages.
type InspectorConfig struct {
	Host           string
	UseWindowsAuth bool
	User           string
}

// Inspector reads schema metadata. It holds no connection between calls, so a
// single Inspector is safe for concurrent use.
type Inspector struct {
	connector Connector
	cfg       InspectorConfig
	logger    *slog.Logger
}

func NewInspector(connector Connector, cfg InspectorConfig, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Inspector{connector: connector, cfg: cfg, logger: logger}
}

// FetchSchema lists the base tables of database and their columns. Any
// returned error is a *DiagnosticError.
func (i *Inspector) FetchSchema(ctx context.Context, database string) (Snapshot, error) {
	start := time.Now()
	snapshot, err := i.fetchSchema(ctx, database)

	outcome := "ok"
	var diag *DiagnosticError
	if errors.As(err, &diag) {
		outcome = strings.ToLower(string(diag.Category))
	}
	observability.ObserveSchemaInspection(outcome, snapshot.Partial, time.Since(start))
	return snapshot, err
}

func (i *Inspector) fetchSchema(ctx context.Context, database string) (Snapshot, error) {
	i.logger.DebugContext(ctx, "opening schema connection", slog.String("database", database))
	db, err := i.connector.Open(ctx, database)
	if err != nil {
		return Snapshot{}, i.diagnose(ctx, database, err)
	}
	defer func() {
		_ = db.Close()
		i.logger.DebugContext(ctx, "schema connection closed", slog.String("database", database))
	}()

	conn, err := db.Conn(ctx)
	if err != nil {
		return Snapshot{}, i.diagnose(ctx, database, err)
	}
	defer func() { _ = conn.Close() }()

	tableNames, err := listTables(ctx, conn, database)
	if err != nil {
		return Snapshot{}, i.diagnose(ctx, database, err)
	}
	if len(tableNames) == 0 {
		return Snapshot{}, i.diagnoseEmpty(ctx, database)
	}

	snapshot := Snapshot{
		Database: database,
		Tables:   make([]Table, 0, len(tableNames)),
	}
	for _, name := range tableNames {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, i.diagnose(ctx, database, err)
		}
		columns, err := listColumns(ctx, conn, database, name)
		if err != nil {
			i.logger.WarnContext(ctx, "describe table failed",
				observability.TraceAttr(ctx),
				slog.String("database", database),
				slog.String("table", name),
				slog.Any("error", err),
			)
			snapshot.Tables = append(snapshot.Tables, Table{Name: name, Columns: []Column{}})
			snapshot.Partial = true
			continue
		}
		snapshot.Tables = append(snapshot.Tables, Table{
			Name:               name,
			Columns:            columns,
			RetrievalSucceeded: true,
		})
	}
	return snapshot, nil
}

func listTables(ctx context.Context, conn *sql.Conn, database string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, listTablesQuery, database)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table names: %w", err)
	}
	return names, nil
}

func listColumns(ctx context.Context, conn *sql.Conn, database, table string) ([]Column, error) {
	rows, err := conn.QueryContext(ctx, listColumnsQuery, database, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := []Column{}
	for rows.Next() {
		var (
			column       Column
			isNullable   string
			defaultValue sql.NullString
		)
		if err := rows.Scan(&column.Name, &column.DataType, &isNullable, &defaultValue); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		column.Nullable = isNullable != "NO"
		if defaultValue.Valid {
			value := defaultValue.String
			column.Default = &value
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", table, err)
	}
	return columns, nil
}

// diagnoseEmpty tells an existing empty database apart from a missing one by
// asking the server catalog without binding to the database.
func (i *Inspector) diagnoseEmpty(ctx context.Context, database string) *DiagnosticError {
	exists, err := i.databaseExists(ctx, database)
	switch {
	case err != nil:
		i.logger.WarnContext(ctx, "database existence check failed",
			observability.TraceAttr(ctx),
			slog.String("database", database),
			slog.Any("error", err),
		)
		return &DiagnosticError{
			Category: CategoryDatabaseNotFound,
			Message:  fmt.Sprintf("no tables found in database '%s' or database inaccessible", database),
			Err:      err,
		}
	case exists:
		return &DiagnosticError{
			Category: CategoryDatabaseEmpty,
			Message:  fmt.Sprintf("database '%s' exists but contains no tables", database),
		}
	default:
		return &DiagnosticError{
			Category: CategoryDatabaseNotFound,
			Message:  fmt.Sprintf("database '%s' not found", database),
		}
	}
}

func (i *Inspector) databaseExists(ctx context.Context, database string) (bool, error) {
	db, err := i.connector.Open(ctx, "")
	if err != nil {
		return false, err
	}
	defer func() { _ = db.Close() }()

	var name string
	err = db.QueryRowContext(ctx, databaseExistsQuery, database).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up database: %w", err)
	}
	return true, nil
}

func (i *Inspector) diagnose(ctx context.Context, database string, err error) *DiagnosticError {
	category := Classify(err)
	var message string
	switch category {
	case CategoryNetworkUnreachable:
		message = fmt.Sprintf("network error connecting to SQL Server '%s'; check server status, firewall and network configuration", i.cfg.Host)
	case CategoryAuthenticationFailed:
		message = fmt.Sprintf("authentication error connecting to SQL Server '%s'; verify the %s has login permissions on the server", i.cfg.Host, i.identity())
	case CategoryDatabaseNotFound:
		message = fmt.Sprintf("database '%s' not found, inaccessible, or the %s lacks permissions; check the database name and permissions", database, i.identity())
	default:
		message = fmt.Sprintf("database connection/query error for '%s': %v", database, err)
	}

	i.logger.ErrorContext(ctx, "schema fetch failed",
		observability.TraceAttr(ctx),
		slog.String("database", database),
		slog.String("category", string(category)),
		slog.Any("error", err),
	)
	return &DiagnosticError{Category: category, Message: message, Err: err}
}

func (i *Inspector) identity() string {
	if i.cfg.UseWindowsAuth {
		return "Windows user running the application"
	}
	return fmt.Sprintf("SQL user '%s'", i.cfg.User)
}
