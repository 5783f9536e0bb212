package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/orders/internal/config"
	"github.com/Additional-Code/orders/internal/database"
	"github.com/Additional-Code/orders/internal/logger"
)

//go:embed sql/*/*.sql
var migrations embed.FS

// Module provides the migrator.
var Module = fx.Provide(New)

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Migrator wraps goose operations.
type Migrator struct {
	db      *bun.DB
	dialect string
	dir     string
	logger  *zap.Logger
}

// New constructs a goose-backed migrator.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	return NewForDB(cfg.Database.Driver, conns.Writer, logger)
}

// NewForDB builds a migrator for an already opened database.
func NewForDB(driver string, db *bun.DB, logger *zap.Logger) (*Migrator, error) {
	dialect, dir, err := gooseDialect(driver)
	if err != nil {
		return nil, err
	}

	return &Migrator{
		db:      db,
		dialect: dialect,
		dir:     path.Join("sql", dir),
		logger:  logger,
	}, nil
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(logger.Printf{Logger: m.logger.WithOptions(zap.AddCallerSkip(1)), Level: zapcore.InfoLevel})
	return goose.SetDialect(m.dialect)
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.prepare(); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, m.db.DB, m.dir); err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")

			return nil
		}
		return err
	}

	m.logger.Info("migrations applied", zap.String("dialect", m.dialect))

	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.prepare(); err != nil {
		return err
	}

	if all {
		if err := goose.DownToContext(ctx, m.db.DB, m.dir, 0); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")

				return nil
			}
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))

		return nil
	}

	if steps <= 0 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, m.db.DB, m.dir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")

				return nil
			}
			return err
		}
	}

	m.logger.Info("migrations rolled back", zap.Int("steps", steps))

	return nil
}

// Version reports the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.prepare(); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, m.db.DB)
}

func gooseDialect(driver string) (dialect, dir string, err error) {
	switch driver {
	case "postgres":
		return "postgres", "postgres", nil
	case "mysql":
		return "mysql", "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", "sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "no migration") || strings.Contains(msg, "no current version")
}
