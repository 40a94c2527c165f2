package data

import (
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

type BaseModelI interface {
	GetID() string
	GetVersion() uint
}

// BaseModel base table struct to be extended by other models.
type BaseModel struct {
	ID         string `gorm:"type:varchar(50);primary_key"`
	CreatedAt  time.Time
	ModifiedAt time.Time
	Version    uint `gorm:"DEFAULT 0"`
}

func (model *BaseModel) GetID() string {
	return model.ID
}

// GenID creates a new id for model if its not existent.
func (model *BaseModel) GenID() {
	if model.ID == "" {
		model.ID = xid.New().String()
	}
}

// ValidXID Validates that the supplied string is an xid.
func (model *BaseModel) ValidXID(id string) bool {
	_, err := xid.FromString(id)
	return err == nil
}

func (model *BaseModel) GetVersion() uint {
	return model.Version
}

func (model *BaseModel) BeforeCreate(_ *gorm.DB) error {
	if model.Version <= 0 {
		now := time.Now().UTC()
		model.CreatedAt = now
		model.ModifiedAt = now
		model.Version = 1
	}

	model.GenID()
	return nil
}

// BeforeUpdate bumps the version and modification time on every update.
func (model *BaseModel) BeforeUpdate(_ *gorm.DB) error {
	model.ModifiedAt = time.Now().UTC()
	model.Version++
	return nil
}
