package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/marketflow/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: TransactionRepository implements domain.TransactionRepository.
var _ domain.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository implements domain.TransactionRepository using SQLite.
type TransactionRepository struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*TransactionRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := Configure(db); err != nil {
		db.Close()
		return nil, err
	}

	return NewFromDB(db)
}

// Configure applies the connection settings every marketflow database uses.
// SQLite allows a single writer, and ":memory:" databases exist per
// connection, so the pool is capped at one connection.
func Configure(db *sql.DB) error {
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	return nil
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*TransactionRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &TransactionRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *TransactionRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *TransactionRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// Nanosecond precision keeps transitions recorded within the same second in order.
const timeFormat = time.RFC3339Nano

const selectTransaction = `SELECT id, process_name, state, last_transition, metadata, created_at, updated_at FROM transactions`

func (r *TransactionRepository) Create(ctx context.Context, tx domain.Transaction) error {
	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	return r.inTx(ctx, func(sqlTx *sql.Tx) error {
		_, err := sqlTx.ExecContext(ctx,
			`INSERT INTO transactions (id, process_name, state, last_transition, metadata, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tx.ID, tx.ProcessName, string(tx.State), string(tx.LastTransition), string(metadata),
			tx.CreatedAt.UTC().Format(timeFormat),
			tx.UpdatedAt.UTC().Format(timeFormat),
		)
		if err != nil {
			return fmt.Errorf("inserting transaction: %w", err)
		}

		for seq, rec := range tx.Transitions {
			if err := insertTransition(ctx, sqlTx, tx.ID, seq, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, selectTransaction+` WHERE id = ?`, id))
	if err != nil {
		return domain.Transaction{}, err
	}

	tx.Transitions, err = r.loadTransitions(ctx, tx.ID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}

func (r *TransactionRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Transaction, error) {
	query := selectTransaction
	var where []string
	var args []any

	if filter.ProcessName != "" {
		where = append(where, `process_name = ?`)
		args = append(args, filter.ProcessName)
	}

	if len(filter.States) > 0 {
		where = append(where, `state IN (?`+strings.Repeat(`, ?`, len(filter.States)-1)+`)`)
		for _, s := range filter.States {
			args = append(args, string(s))
		}
	}

	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}

	query += ` ORDER BY created_at DESC, id`

	// SQLite only accepts OFFSET after a LIMIT; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	transactions := []domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	// Release the only connection before loading histories.
	rows.Close()

	for i := range transactions {
		transactions[i].Transitions, err = r.loadTransitions(ctx, transactions[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return transactions, nil
}

// Update writes the transaction row and appends its newest transition record.
// Earlier records are immutable and never rewritten.
func (r *TransactionRepository) Update(ctx context.Context, tx domain.Transaction) error {
	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	return r.inTx(ctx, func(sqlTx *sql.Tx) error {
		result, err := sqlTx.ExecContext(ctx,
			`UPDATE transactions SET state = ?, last_transition = ?, metadata = ?, updated_at = ?
			 WHERE id = ?`,
			string(tx.State), string(tx.LastTransition), string(metadata),
			tx.UpdatedAt.UTC().Format(timeFormat), tx.ID,
		)
		if err != nil {
			return fmt.Errorf("updating transaction: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if rows == 0 {
			return domain.ErrTransactionNotFound
		}

		if len(tx.Transitions) == 0 {
			return nil
		}
		seq := len(tx.Transitions) - 1
		return insertTransition(ctx, sqlTx, tx.ID, seq, tx.Transitions[seq])
	})
}

// inTx runs fn inside a database transaction, committing on success.
func (r *TransactionRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(sqlTx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertTransition(ctx context.Context, sqlTx *sql.Tx, id string, seq int, rec domain.TransitionRecord) error {
	_, err := sqlTx.ExecContext(ctx,
		`INSERT INTO transaction_transitions (transaction_id, seq, transition, actor, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, seq, string(rec.Transition), string(rec.By), rec.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConcurrentTransition
		}
		return fmt.Errorf("inserting transition: %w", err)
	}
	return nil
}

func (r *TransactionRepository) loadTransitions(ctx context.Context, id string) ([]domain.TransitionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT transition, actor, created_at FROM transaction_transitions
		 WHERE transaction_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading transitions: %w", err)
	}
	defer rows.Close()

	var records []domain.TransitionRecord
	for rows.Next() {
		var rec domain.TransitionRecord
		var transition, actor, createdAt string
		if err := rows.Scan(&transition, &actor, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transition row: %w", err)
		}
		rec.Transition = domain.Transition(transition)
		rec.By = domain.Actor(actor)
		rec.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanTransaction scans a transaction row without its transition history.
func scanTransaction(s scanner) (domain.Transaction, error) {
	var tx domain.Transaction
	var state, lastTransition, metadata, createdAt, updatedAt string

	err := s.Scan(&tx.ID, &tx.ProcessName, &state, &lastTransition, &metadata, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, domain.ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("scanning transaction: %w", err)
	}

	if err := json.Unmarshal([]byte(metadata), &tx.Metadata); err != nil {
		return domain.Transaction{}, fmt.Errorf("decoding metadata of %s: %w", tx.ID, err)
	}

	tx.State = domain.State(state)
	tx.LastTransition = domain.Transition(lastTransition)
	tx.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	tx.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return tx, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE or PRIMARY KEY constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
