package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          text PRIMARY KEY,
	state       jsonb NOT NULL,
	status      text NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS tasks_status_idx ON tasks (status);
`

// PGStore keeps each task as a JSONB row. Updates lock the row for the
// duration of the mutation.
type PGStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// ConnectPG opens a pool, verifies it and ensures the tasks table exists.
func ConnectPG(ctx context.Context, databaseURL string, log zerolog.Logger) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create tasks table: %w", err)
	}

	log.Info().
		Str("url", maskDSN(databaseURL)).
		Int32("max_conns", cfg.MaxConns).
		Msg("task database connected")
	return &PGStore{pool: pool, log: log}, nil
}

func (s *PGStore) Create(ctx context.Context, t *Task) error {
	state, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tasks (id, state, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, t.ID, state, string(t.Status), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*Task, error) {
	var state []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM tasks WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}
	return decodeTask(state)
}

func (s *PGStore) Update(ctx context.Context, id string, fn func(*Task)) (*Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var state []byte
	err = tx.QueryRow(ctx, `SELECT state FROM tasks WHERE id = $1 FOR UPDATE`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock task: %w", err)
	}

	t, err := decodeTask(state)
	if err != nil {
		return nil, err
	}
	fn(t)
	t.LastUpdate = time.Now().UTC()

	next, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE tasks SET state = $2, status = $3, updated_at = $4 WHERE id = $1
	`, id, next, string(t.Status), t.LastUpdate)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// HealthCheck pings the database.
func (s *PGStore) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Pool exposes the connection pool for metrics.
func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

func (s *PGStore) Close() {
	s.log.Info().Msg("closing task database pool")
	s.pool.Close()
}

func decodeTask(state []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(state, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if t.Scenes == nil {
		t.Scenes = map[string]SceneStatus{}
	}
	return &t, nil
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
