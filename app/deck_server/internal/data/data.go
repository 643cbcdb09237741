package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	_ "github.com/lib/pq"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/storage"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/conf"
)

type Data struct {
	db    *sql.DB
	store *storage.Storage
}

// DB 共享连接池，postgres 缓存层复用它
func (d *Data) DB() *sql.DB {
	if d == nil {
		return nil
	}
	return d.db
}

func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	if c == nil || c.Database == nil {
		return nil, nil, fmt.Errorf("data.database is not configured")
	}
	db, err := sql.Open(c.Database.Driver, c.Database.Source)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}

	// 建表由 storage 负责
	store, err := storage.NewStorage(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to init deck_runs table: %w", err)
	}

	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		store.Close()
	}
	return &Data{db: db, store: store}, cleanup, nil
}
