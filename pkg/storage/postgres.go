package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/opscart/selfheal-agent/pkg/models"
)

//go:embed migrations/*.sql
var postgresFS embed.FS

// PostgresStore implements Store interface using PostgreSQL
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The agent writes at most one row per cooldown window
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		db:  db,
		dsn: dsn,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate runs database migrations
func (s *PostgresStore) migrate() error {
	schema, err := postgresFS.ReadFile("migrations/001_postgres_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// LogAction appends an action to the audit log
func (s *PostgresStore) LogAction(ctx context.Context, rec *models.ActionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	detail, err := json.Marshal(rec.Detail)
	if err != nil {
		return fmt.Errorf("failed to encode detail: %w", err)
	}

	query := `
		INSERT INTO actions (
			id, action, target_pid, success, message, detail, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Action, rec.TargetPID, rec.Success,
		rec.Message, string(detail), rec.Timestamp,
	)

	return err
}

// ListActions returns the most recent actions, newest first
func (s *PostgresStore) ListActions(ctx context.Context, limit int) ([]*models.ActionRecord, error) {
	query := `
		SELECT id, action, target_pid, success, message, detail, executed_at
		FROM actions
		ORDER BY executed_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.ActionRecord
	for rows.Next() {
		var rec models.ActionRecord
		var message, detail sql.NullString

		err := rows.Scan(
			&rec.ID, &rec.Action, &rec.TargetPID, &rec.Success,
			&message, &detail, &rec.Timestamp,
		)
		if err != nil {
			return nil, err
		}

		if message.Valid {
			rec.Message = message.String
		}
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &rec.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode detail of %s: %w", rec.ID, err)
			}
		}

		records = append(records, &rec)
	}

	return records, rows.Err()
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
