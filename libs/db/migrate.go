package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// goose keeps its base filesystem and dialect in package globals.
var gooseMu sync.Mutex

// Migrator applies goose migrations embedded in a service binary.
type Migrator struct {
	db   *sql.DB
	fsys fs.FS
	dir  string
}

func NewMigrator(pool *Pool, fsys fs.FS, dir string) (*Migrator, error) {
	if pool == nil || pool.Pool == nil {
		return nil, errors.New("db not configured")
	}
	if dir == "" {
		dir = "."
	}
	return &Migrator{
		db:   stdlib.OpenDBFromPool(pool.Pool),
		fsys: fsys,
		dir:  dir,
	}, nil
}

func (m *Migrator) Up(ctx context.Context) error {
	return m.with(func() error {
		if err := goose.UpContext(ctx, m.db, m.dir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		return nil
	})
}

// Status logs the applied/pending state of every migration through goose's logger.
func (m *Migrator) Status(ctx context.Context) error {
	return m.with(func() error {
		return goose.StatusContext(ctx, m.db, m.dir)
	})
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var version int64
	err := m.with(func() error {
		v, err := goose.GetDBVersionContext(ctx, m.db)
		if err != nil {
			return fmt.Errorf("get version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// Close releases the database/sql handle opened over the pool.
func (m *Migrator) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

func (m *Migrator) with(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(m.fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return fn()
}
