package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AreaOfActivity joins a contact to a company (or a free-text company name)
// with a role. At most one row per contact carries IsPrimary.
type AreaOfActivity struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ContactID      uuid.UUID  `gorm:"column:contact_id;type:uuid;not null"`
	CompanyID      *uuid.UUID `gorm:"column:company_id;type:uuid"`
	CompanyName    *string    `gorm:"column:company_name"`
	BranchID       *uuid.UUID `gorm:"column:branch_id;type:uuid"`
	Role           *string    `gorm:"column:role"`
	JobDescription *string    `gorm:"column:job_description"`
	IsPrimary      bool       `gorm:"column:is_primary;not null;default:false"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (AreaOfActivity) TableName() string {
	return "areas_of_activity"
}

func (a *AreaOfActivity) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
