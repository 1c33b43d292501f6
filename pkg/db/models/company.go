package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company is an organisation contacts work for and deals are struck with.
type Company struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name         string         `gorm:"column:name;not null"`
	Email        *string        `gorm:"column:email"`
	Phone        *string        `gorm:"column:phone"`
	Website      *string        `gorm:"column:website"`
	Country      *string        `gorm:"column:country"`
	City         *string        `gorm:"column:city"`
	Tags         []string       `gorm:"column:tags;serializer:json"`
	CustomFields map[string]any `gorm:"column:custom_fields;serializer:json"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`

	Branches []Branch `gorm:"foreignKey:CompanyID"`
}

func (c *Company) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

func (c *Company) BeforeSave(*gorm.DB) error {
	c.Tags = nonNilTags(c.Tags)
	if c.CustomFields == nil {
		c.CustomFields = map[string]any{}
	}
	return nil
}

// Branch is a physical site of a company.
type Branch struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"column:company_id;type:uuid;not null"`
	Name      string    `gorm:"column:name;not null"`
	Country   *string   `gorm:"column:country"`
	City      *string   `gorm:"column:city"`
	Address   *string   `gorm:"column:address"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Branch) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
