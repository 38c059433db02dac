package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres persists callers and conversations in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres migrates the schema and opens the connection pool.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if err := migrate(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func migrate(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("store: open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("store: set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) IdentifyCaller(ctx context.Context, phoneNumber string) (Caller, error) {
	var caller Caller
	err := p.pool.QueryRow(ctx,
		`UPDATE callers SET last_seen = now() WHERE phone_number = $1
		 RETURNING id, phone_number, total_conversations, last_seen`,
		phoneNumber,
	).Scan(&caller.ID, &caller.PhoneNumber, &caller.TotalConversations, &caller.LastSeen)

	if err == nil {
		return caller, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Caller{}, fmt.Errorf("store: look up caller: %w", err)
	}

	caller = Caller{
		ID:          uuid.NewString(),
		PhoneNumber: phoneNumber,
		LastSeen:    time.Now().UTC(),
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO callers (id, phone_number, total_conversations, last_seen)
		 VALUES ($1, $2, 0, $3)`,
		caller.ID, caller.PhoneNumber, caller.LastSeen,
	)
	if err != nil {
		return Caller{}, fmt.Errorf("store: create caller: %w", err)
	}
	return caller, nil
}

func (p *Postgres) RecentSummary(ctx context.Context, callerID string, limit int) (string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, caller_id, call_id, transcript, channel, duration_seconds, created_at
		 FROM conversations WHERE caller_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		callerID, limit,
	)
	if err != nil {
		return "", fmt.Errorf("store: load conversations: %w", err)
	}
	defer rows.Close()

	var records []ConversationRecord
	for rows.Next() {
		var rec ConversationRecord
		if err := rows.Scan(&rec.ID, &rec.CallerID, &rec.CallID, &rec.Transcript, &rec.Channel, &rec.DurationSeconds, &rec.CreatedAt); err != nil {
			return "", fmt.Errorf("store: scan conversation: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("store: iterate conversations: %w", err)
	}

	return summarize(records), nil
}

func (p *Postgres) SaveConversation(ctx context.Context, rec ConversationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO conversations (id, caller_id, call_id, transcript, channel, duration_seconds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.CallerID, rec.CallID, rec.Transcript, rec.Channel, rec.DurationSeconds, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert conversation: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE callers SET total_conversations = total_conversations + 1 WHERE id = $1`,
		rec.CallerID,
	)
	if err != nil {
		return fmt.Errorf("store: bump conversation count: %w", err)
	}

	return tx.Commit(ctx)
}
