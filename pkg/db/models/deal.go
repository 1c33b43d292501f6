package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/pkg/enums"
)

// DefaultCurrency applies when a deal is created without one.
const DefaultCurrency = "EUR"

// Deal is an opportunity on the pipeline board.
type Deal struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name       string          `gorm:"column:name;not null"`
	Value      decimal.Decimal `gorm:"column:value;type:numeric(14,2);not null"`
	Currency   string          `gorm:"column:currency;not null;default:'EUR'"`
	StageID    enums.DealStage `gorm:"column:stage_id;not null;default:'lead'"`
	ContactID  *uuid.UUID      `gorm:"column:contact_id;type:uuid"`
	CompanyID  *uuid.UUID      `gorm:"column:company_id;type:uuid"`
	CloseDate  *time.Time      `gorm:"column:close_date"`
	Notes      *string         `gorm:"column:notes"`
	Tags       []string        `gorm:"column:tags;serializer:json"`
	ArchivedAt *time.Time      `gorm:"column:archived_at"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Deal) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	if d.Currency == "" {
		d.Currency = DefaultCurrency
	}
	return nil
}

func (d *Deal) BeforeSave(*gorm.DB) error {
	d.Tags = nonNilTags(d.Tags)
	return nil
}

// HasBothAssociations reports whether the deal carries a contact and a company.
func (d Deal) HasBothAssociations() bool {
	return d.ContactID != nil && d.CompanyID != nil
}

func (d Deal) IsArchived() bool {
	return d.ArchivedAt != nil
}
