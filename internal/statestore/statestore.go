// Package statestore implements durable backends for module runtime states.
package statestore

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rpm-software-management/libdnf-sub006/internal/config"
	"github.com/rpm-software-management/libdnf-sub006/internal/db"
	"github.com/rpm-software-management/libdnf-sub006/internal/module"
)

// Open returns the store selected by cfg.StateBackend. The returned close
// function releases the underlying resources.
func Open(cfg config.Config, log *zap.Logger) (module.StateStore, func() error, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch strings.ToLower(cfg.StateBackend) {
	case "toml":
		if cfg.StatePath == "" {
			return nil, nil, fmt.Errorf("STATE_PATH must be set for toml state backend")
		}
		log.Info("using TOML module state", zap.String("path", cfg.StatePath))
		return NewTOMLStore(cfg.StatePath), func() error { return nil }, nil
	case "sqlite", "postgres":
		gdb, err := db.Open(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewDBStore(gdb), closer(gdb), nil
	default:
		return nil, nil, fmt.Errorf("invalid STATE_BACKEND: %s. Must be 'toml', 'sqlite' or 'postgres'", cfg.StateBackend)
	}
}

func closer(gdb *gorm.DB) func() error {
	return func() error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
}
