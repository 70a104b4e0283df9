package statestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/rpm-software-management/libdnf-sub006/internal/models"
	"github.com/rpm-software-management/libdnf-sub006/internal/module"
)

// DBStore keeps module states in a SQL database through gorm. Each save
// replaces all rows in a single transaction and records a StateCommit.
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Load(ctx context.Context) (map[string]module.RuntimeState, error) {
	var rows []models.ModuleState
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query module states: %w", err)
	}
	out := make(map[string]module.RuntimeState, len(rows))
	for _, r := range rows {
		state, err := module.ParseModuleState(r.State)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", r.Name, err)
		}
		out[r.Name] = module.RuntimeState{
			State:             state,
			EnabledStream:     r.EnabledStream,
			InstalledProfiles: r.InstalledProfiles,
			Locked:            r.Locked,
			StreamChanges:     r.StreamChanges,
		}
	}
	return out, nil
}

func (s *DBStore) Save(ctx context.Context, states map[string]module.RuntimeState) error {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		commit := models.StateCommit{ModuleCount: len(names), CreatedAt: now}
		if err := tx.Create(&commit).Error; err != nil {
			return fmt.Errorf("record state commit: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&models.ModuleState{}).Error; err != nil {
			return fmt.Errorf("clear module states: %w", err)
		}
		if len(names) == 0 {
			return nil
		}
		rows := make([]models.ModuleState, 0, len(names))
		for _, name := range names {
			st := states[name]
			rows = append(rows, models.ModuleState{
				Name:              name,
				State:             st.State.String(),
				EnabledStream:     st.EnabledStream,
				InstalledProfiles: st.InstalledProfiles,
				Locked:            st.Locked,
				StreamChanges:     st.StreamChanges,
				CommitID:          commit.ID,
				UpdatedAt:         now,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("write module states: %w", err)
		}
		return nil
	})
}

// Commits returns the most recent state commits, newest first.
func (s *DBStore) Commits(ctx context.Context, limit int) ([]models.StateCommit, error) {
	var commits []models.StateCommit
	err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&commits).Error
	return commits, err
}
