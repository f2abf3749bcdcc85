// Package postgres provides a PostgreSQL implementation of transport.ThreadStore.
// It uses pgx/v5 for connection pooling and stores item payloads as JSONB.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/debug"
	"github.com/rhuss/chatkit/pkg/storage"
	"github.com/rhuss/chatkit/pkg/transport"
)

// Store is a PostgreSQL-backed ThreadStore.
//
// Timestamps are truncated to microseconds, the resolution of TIMESTAMPTZ,
// so that cursors minted from returned records compare exactly.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Ensure Store implements transport.ThreadStore at compile time.
var _ transport.ThreadStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, now: time.Now}

	if cfg.MigrateOnStart {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

func (s *Store) timestamp(t time.Time) time.Time {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Truncate(time.Microsecond)
}

// CreateThread inserts a new thread owned by the tenant in ctx.
func (s *Store) CreateThread(ctx context.Context, params api.ThreadCreateParams) (*api.Thread, error) {
	if err := api.ValidateThreadParams(params); err != nil {
		return nil, err
	}

	md := params.Metadata
	if md == nil {
		md = map[string]string{}
	}
	mdJSON, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	t := &api.Thread{
		ID:        api.NewThreadID(),
		Object:    "thread",
		CreatedAt: s.timestamp(time.Time{}),
		Title:     params.Title,
		Metadata:  md,
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO threads (id, tenant_id, title, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, storage.GetTenant(ctx), t.Title, mdJSON, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting thread: %w", err)
	}

	debug.Log("store", "thread created", "thread_id", t.ID)
	return t, nil
}

// GetThread retrieves a thread by ID, scoped by tenant.
func (s *Store) GetThread(ctx context.Context, id string) (*api.Thread, error) {
	query := `SELECT id, title, metadata, created_at, seq FROM threads WHERE id = $1`
	args := []any{id}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	t, _, err := scanThread(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}
	return t, nil
}

// ListThreads returns a page of the threads visible to the tenant in ctx.
func (s *Store) ListThreads(ctx context.Context, opts storage.ListOptions) (*api.Page[api.Thread], error) {
	q, err := opts.Resolve("")
	if err != nil {
		return nil, err
	}

	var where []string
	var args []any
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		args = append(args, tenantID)
		where = append(where, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	where, args = keyset(q, where, args)

	query := "SELECT id, title, metadata, created_at, seq FROM threads"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += orderBy(q) + fmt.Sprintf(" LIMIT %d", q.Limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	var data []api.Thread
	var last storage.Position
	hasMore := false
	for rows.Next() {
		if len(data) == q.Limit {
			hasMore = true
			break
		}
		t, seq, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		data = append(data, *t)
		last = storage.Position{CreatedAt: t.CreatedAt, Seq: seq}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}

	return api.NewPage(data, q.Next("", last), hasMore), nil
}

// AddItem appends an item. The thread row is locked by the item_seq
// increment, which serializes concurrent appends to one thread.
func (s *Store) AddItem(ctx context.Context, threadID string, item api.ThreadItem) (*api.ThreadItem, error) {
	if item.ID == "" {
		item.ID = api.NewItemID(item.Type)
	}
	item.ThreadID = threadID
	item.CreatedAt = s.timestamp(item.CreatedAt)

	payload, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshaling item: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := "UPDATE threads SET item_seq = item_seq + 1 WHERE id = $1"
	args := []any{threadID}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}
	query += " RETURNING item_seq"

	var seq int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("thread %s: %w", threadID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("assigning item seq: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO thread_items (thread_id, id, seq, type, created_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, threadID, item.ID, seq, string(item.Type), item.CreatedAt, payload)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("item %s: %w", item.ID, storage.ErrConflict)
		}
		return nil, fmt.Errorf("inserting item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	debug.Log("store", "item added", "thread_id", threadID, "item_id", item.ID, "seq", seq)
	return &item, nil
}

// LoadThreadItems returns a page of a thread's items.
func (s *Store) LoadThreadItems(ctx context.Context, threadID string, opts storage.ListOptions) (*api.Page[api.ThreadItem], error) {
	q, err := opts.Resolve(threadID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	where := []string{"thread_id = $1"}
	args := []any{threadID}
	where, args = keyset(q, where, args)

	query := "SELECT payload, created_at, seq FROM thread_items WHERE " +
		strings.Join(where, " AND ") + orderBy(q) + fmt.Sprintf(" LIMIT %d", q.Limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	defer rows.Close()

	var data []api.ThreadItem
	var last storage.Position
	hasMore := false
	for rows.Next() {
		if len(data) == q.Limit {
			hasMore = true
			break
		}
		var payload []byte
		var pos storage.Position
		if err := rows.Scan(&payload, &pos.CreatedAt, &pos.Seq); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		var item api.ThreadItem
		if err := json.Unmarshal(payload, &item); err != nil {
			return nil, fmt.Errorf("unmarshaling item: %w", err)
		}
		item.CreatedAt = pos.CreatedAt.UTC()
		data = append(data, item)
		last = pos
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}

	return api.NewPage(data, q.Next(threadID, last), hasMore), nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// keyset appends the condition selecting records strictly past the cursor.
func keyset(q storage.Query, where []string, args []any) ([]string, []any) {
	if q.Cursor == nil {
		return where, args
	}
	op := "<"
	if q.Asc() {
		op = ">"
	}
	args = append(args, q.Cursor.CreatedAt, q.Cursor.Seq)
	where = append(where, fmt.Sprintf("(created_at, seq) %s ($%d, $%d)", op, len(args)-1, len(args)))
	return where, args
}

func orderBy(q storage.Query) string {
	if q.Asc() {
		return " ORDER BY created_at ASC, seq ASC"
	}
	return " ORDER BY created_at DESC, seq DESC"
}

// scanThread reads id, title, metadata, created_at and seq.
func scanThread(row pgx.Row) (*api.Thread, int64, error) {
	var t api.Thread
	var mdJSON []byte
	var seq int64

	if err := row.Scan(&t.ID, &t.Title, &mdJSON, &t.CreatedAt, &seq); err != nil {
		return nil, 0, err
	}

	t.Object = "thread"
	t.CreatedAt = t.CreatedAt.UTC()
	if err := json.Unmarshal(mdJSON, &t.Metadata); err != nil {
		return nil, 0, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if t.Metadata == nil {
		t.Metadata = map[string]string{}
	}
	return &t, seq, nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
