package db

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rpm-software-management/libdnf-sub006/internal/config"
	"github.com/rpm-software-management/libdnf-sub006/internal/models"
)

// Open connects to the database selected by cfg.StateBackend and runs
// migrations.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var dialector gorm.Dialector
	backend := strings.ToLower(cfg.StateBackend)
	log.Info("initializing database connection", zap.String("type", backend))

	switch backend {
	case "postgres":
		if cfg.DbDsn == "" {
			return nil, fmt.Errorf("DB_DSN must be set for postgres state backend")
		}
		dialector = postgres.Open(cfg.DbDsn)
		// DSN carries credentials
		log.Info("using PostgreSQL DSN (details omitted)")
	case "sqlite":
		if cfg.SqlitePath == "" {
			return nil, fmt.Errorf("SQLITE_PATH must be set for sqlite state backend")
		}
		dialector = sqlite.Open(cfg.SqlitePath)
		log.Info("using SQLite database file", zap.String("path", cfg.SqlitePath))
	default:
		return nil, fmt.Errorf("invalid database backend: %s. Must be 'postgres' or 'sqlite'", cfg.StateBackend)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database (%s): %w", backend, err)
	}
	log.Info("database connection established", zap.String("type", backend))

	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("failed to migrate database (%s): %w", backend, err)
	}
	log.Debug("database migrations completed")
	return gdb, nil
}

// Migrate creates or updates the module state tables.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(models.All()...)
}
