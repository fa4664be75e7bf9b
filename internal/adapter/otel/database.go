package otel

import (
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/neomorfeo/marketflow/internal/adapter/sqlite"
)

// OpenDB opens a SQLite database with OpenTelemetry instrumentation.
// The returned *sql.DB has automatic tracing for all SQL operations
// and metrics for the connection pool.
func OpenDB(dataSourceName string) (*sql.DB, error) {
	db, err := otelsql.Open("sqlite", dataSourceName,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
		otelsql.WithSpanOptions(otelsql.SpanOptions{OmitConnResetSession: true}),
	)
	if err != nil {
		return nil, fmt.Errorf("opening instrumented database: %w", err)
	}

	// One connection is shared with River; this avoids SQLITE_BUSY errors.
	if err := sqlite.Configure(db); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := otelsql.RegisterDBStatsMetrics(db,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering db stats metrics: %w", err)
	}

	return db, nil
}
