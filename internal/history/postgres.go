/*
Package history stores per-room message history for the room server.

This file contains the Postgres-backed store. Connection pooling and embedded
goose migrations follow the same setup as the rest of our services.
*/
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"collabchat/internal/protocol"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// PostgresStore persists message history in a Postgres database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore initializes a connection pool for the given DSN and runs
// pending migrations before returning the store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// runMigrations applies all pending migrations from the embedded file system.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Append records one message in roomID's history.
func (s *PostgresStore) Append(ctx context.Context, roomID string, msg protocol.Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, room_id, user_id, username, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, roomID, msg.UserID, msg.Username, msg.Content, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// Recent returns up to limit of roomID's newest messages, oldest first.
func (s *PostgresStore) Recent(ctx context.Context, roomID string, limit int) ([]protocol.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, username, content, created_at FROM (
		     SELECT id, user_id, username, content, created_at
		     FROM messages
		     WHERE room_id = $1
		     ORDER BY created_at DESC, id DESC
		     LIMIT $2
		 ) newest
		 ORDER BY created_at ASC, id ASC`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []protocol.Message
	for rows.Next() {
		var msg protocol.Message
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Username, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return out, nil
}
