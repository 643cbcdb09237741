package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/config"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

const runsTable = "deck_runs"

// Run 一次流水线运行的持久化记录
type Run struct {
	ID         string               `json:"id"`
	Topic      string               `json:"topic"`
	Language   model.Language       `json:"language"`
	SlideCount int                  `json:"slide_count"`
	Degraded   bool                 `json:"degraded"`
	Deck       *model.Deck          `json:"deck,omitempty"`
	Report     *model.QualityReport `json:"report,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// NewRun 从完成的 Deck 构造运行记录
func NewRun(deck *model.Deck) *Run {
	r := &Run{
		ID:         uuid.NewString(),
		Topic:      deck.Meta.Topic,
		Language:   deck.Meta.Language,
		SlideCount: len(deck.Slides),
		Deck:       deck,
		Report:     deck.Report,
		CreatedAt:  deck.Meta.GeneratedAt,
	}
	if deck.Report != nil {
		r.Degraded = deck.Report.IsDegraded()
	}
	return r
}

type Storage struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// Open 打开 postgres 连接并检查连通性
func Open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewStorage 确保运行表存在
func NewStorage(ctx context.Context, db *sql.DB) (*Storage, error) {
	s := newStorage(db)
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func newStorage(db *sql.DB) *Storage {
	return &Storage{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS deck_runs (
			id TEXT PRIMARY KEY,
			topic TEXT,
			language TEXT,
			slide_count INTEGER,
			degraded BOOLEAN DEFAULT FALSE,
			deck JSONB NOT NULL,
			report JSONB,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS deck_runs_created_at_idx ON deck_runs (created_at DESC)`,
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}
	return nil
}

func (s *Storage) insertQuery(run *Run) (string, []any, error) {
	deck, err := json.Marshal(run.Deck)
	if err != nil {
		return "", nil, fmt.Errorf("marshal deck: %w", err)
	}
	var report any
	if run.Report != nil {
		b, err := json.Marshal(run.Report)
		if err != nil {
			return "", nil, fmt.Errorf("marshal report: %w", err)
		}
		report = string(removeNullBytes(b))
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return s.sb.Insert(runsTable).
		Columns("id", "topic", "language", "slide_count", "degraded", "deck", "report", "created_at").
		Values(run.ID, strings.ReplaceAll(run.Topic, "\x00", ""), string(run.Language), run.SlideCount, run.Degraded,
			string(removeNullBytes(deck)), report, createdAt).
		ToSql()
}

// SaveRun 保存一次运行，ID 为空时生成
func (s *Storage) SaveRun(ctx context.Context, run *Run) error {
	if run.Deck == nil {
		return errors.New("run has no deck")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	query, args, err := s.insertQuery(run)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Storage) getQuery(id string) (string, []any, error) {
	return s.sb.Select("id", "topic", "language", "slide_count", "degraded", "deck", "report", "created_at").
		From(runsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
}

// GetRun 查询单次运行，不存在返回 model.ErrNotFound
func (s *Storage) GetRun(ctx context.Context, id string) (*Run, error) {
	query, args, err := s.getQuery(id)
	if err != nil {
		return nil, err
	}
	var (
		run          Run
		lang         string
		deck, report []byte
	)
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&run.ID, &run.Topic, &lang, &run.SlideCount, &run.Degraded, &deck, &report, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	run.Language = model.Language(lang)
	if err := json.Unmarshal(deck, &run.Deck); err != nil {
		return nil, fmt.Errorf("decode deck: %w", err)
	}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &run.Report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
	}
	return &run, nil
}

func (s *Storage) listQuery(page, size int) (string, []any, error) {
	return s.sb.Select("id", "topic", "language", "slide_count", "degraded", "created_at").
		From(runsTable).
		OrderBy("created_at DESC", "id").
		Limit(uint64(size)).
		Offset(uint64((page - 1) * size)).
		ToSql()
}

// ListRuns 分页列出运行摘要（不含 Deck 内容），page 从 1 开始
func (s *Storage) ListRuns(ctx context.Context, page, size int) ([]*Run, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	var total int
	countQuery, countArgs, err := s.sb.Select("COUNT(*)").From(runsTable).ToSql()
	if err != nil {
		return nil, 0, err
	}
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	query, args, err := s.listQuery(page, size)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run  Run
			lang string
		)
		if err := rows.Scan(&run.ID, &run.Topic, &lang, &run.SlideCount, &run.Degraded, &run.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		run.Language = model.Language(lang)
		runs = append(runs, &run)
	}
	return runs, total, rows.Err()
}

// removeNullBytes postgres 的 TEXT/JSONB 不接受 \u0000
func removeNullBytes(b []byte) []byte {
	return []byte(strings.ReplaceAll(string(b), `\u0000`, ""))
}
