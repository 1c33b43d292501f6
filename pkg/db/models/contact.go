package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/pkg/enums"
)

// Contact is a person tracked by the CRM.
type Contact struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	FirstName  string              `gorm:"column:first_name;not null"`
	LastName   string              `gorm:"column:last_name;not null"`
	Tags       []string            `gorm:"column:tags;serializer:json"`
	Notes      *string             `gorm:"column:notes"`
	Status     enums.ContactStatus `gorm:"column:status;not null;default:'active'"`
	ArchivedAt *time.Time          `gorm:"column:archived_at"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Emails []ContactEmail `gorm:"foreignKey:ContactID"`
	Phones []ContactPhone `gorm:"foreignKey:ContactID"`
}

func (c *Contact) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	if c.Status == "" {
		c.Status = enums.ContactStatusActive
	}
	return nil
}

func (c *Contact) BeforeSave(*gorm.DB) error {
	c.Tags = nonNilTags(c.Tags)
	return nil
}

// PrimaryEmail returns the address flagged primary, if any.
func (c Contact) PrimaryEmail() *ContactEmail {
	for i := range c.Emails {
		if c.Emails[i].IsPrimary {
			return &c.Emails[i]
		}
	}
	return nil
}

// ContactEmail is one address of a contact.
type ContactEmail struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ContactID uuid.UUID       `gorm:"column:contact_id;type:uuid;not null"`
	Email     string          `gorm:"column:email;not null"`
	Kind      enums.EmailKind `gorm:"column:kind;not null"`
	IsPrimary bool            `gorm:"column:is_primary;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (e *ContactEmail) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// ContactPhone is one phone number of a contact.
type ContactPhone struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ContactID uuid.UUID       `gorm:"column:contact_id;type:uuid;not null"`
	Number    string          `gorm:"column:number;not null"`
	Kind      enums.PhoneKind `gorm:"column:kind;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (p *ContactPhone) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
