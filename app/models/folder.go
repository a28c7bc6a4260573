package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type Folder struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OwnerID   uint           `gorm:"index:idx_folders_owner_name,unique,priority:1;not null" json:"owner_id"`
	Name      string         `gorm:"type:varchar(120);index:idx_folders_owner_name,unique,priority:2;not null" json:"name" validate:"required,min=1,max=120"`
	ParentID  *uint          `gorm:"index" json:"parent_id,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (f *Folder) Validate() error {
	v := validator.New()

	return v.Struct(f)
}
