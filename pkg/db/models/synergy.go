package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/pkg/enums"
)

// Synergy records that a contact and a company are tied together by a deal.
// The triple is fixed at creation; rows are archived, never removed.
type Synergy struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ContactID   uuid.UUID           `gorm:"column:contact_id;type:uuid;not null"`
	CompanyID   uuid.UUID           `gorm:"column:company_id;type:uuid;not null"`
	DealID      uuid.UUID           `gorm:"column:deal_id;type:uuid;not null"`
	Type        enums.SynergyType   `gorm:"column:type;not null;default:'deal'"`
	Status      enums.SynergyStatus `gorm:"column:status;not null;default:'Active'"`
	Description *string             `gorm:"column:description"`
	StartDate   time.Time           `gorm:"column:start_date;not null"`
	EndDate     *time.Time          `gorm:"column:end_date"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Synergy) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

func (s Synergy) IsArchived() bool {
	return s.Status == enums.SynergyStatusArchived
}

// Matches reports whether the synergy belongs to the given triple.
func (s Synergy) Matches(contactID, companyID, dealID uuid.UUID) bool {
	return s.ContactID == contactID && s.CompanyID == companyID && s.DealID == dealID
}
