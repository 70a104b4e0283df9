package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModuleState is the persisted runtime state of one module name.
type ModuleState struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	Name              string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	State             string    `gorm:"type:varchar(16);not null"` // UNKNOWN, ENABLED, DISABLED or DEFAULT
	EnabledStream     string    `gorm:"type:varchar(255);not null;default:''"`
	InstalledProfiles []string  `gorm:"serializer:json"`
	Locked            bool      `gorm:"not null;default:false"`
	StreamChanges     int       `gorm:"not null;default:0"`
	CommitID          uuid.UUID `gorm:"type:uuid;index"` // StateCommit that last wrote the row
	UpdatedAt         time.Time `gorm:"not null"`
}

// StateCommit records one successful save of the module states.
type StateCommit struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	ModuleCount int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// BeforeCreate assigns a random id when none is set. Rows are created on
// sqlite too, which has no uuid_generate_v4().
func (m *ModuleState) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (c *StateCommit) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{&ModuleState{}, &StateCommit{}}
}
