package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

const stageCacheTable = "stage_cache"

// PostgresStore 以 postgres 表保存阶段结果，主键冲突时忽略写入
type PostgresStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore 确保缓存表存在
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS stage_cache (
			fingerprint TEXT PRIMARY KEY,
			stage TEXT NOT NULL,
			payload BYTEA NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to init stage_cache table: %w", err)
	}
	return newPostgresStore(db), nil
}

func newPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (s *PostgresStore) loadQuery(key Key) (string, []any, error) {
	return s.sb.Select("payload").
		From(stageCacheTable).
		Where(sq.Eq{"fingerprint": string(key)}).
		ToSql()
}

func (s *PostgresStore) saveQuery(key Key, payload []byte) (string, []any, error) {
	return s.sb.Insert(stageCacheTable).
		Columns("fingerprint", "stage", "payload").
		Values(string(key), string(key.Stage()), payload).
		Suffix("ON CONFLICT (fingerprint) DO NOTHING").
		ToSql()
}

func (s *PostgresStore) Load(ctx context.Context, key Key) ([]byte, bool, error) {
	query, args, err := s.loadQuery(key)
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load stage cache: %w", err)
	}
	return payload, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, key Key, payload []byte) error {
	query, args, err := s.saveQuery(key, payload)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save stage cache: %w", err)
	}
	return nil
}
