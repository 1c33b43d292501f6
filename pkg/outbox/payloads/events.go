package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/crm-backend/pkg/enums"
)

// ContactEvent covers contact create/update/archive/delete.
type ContactEvent struct {
	ContactID uuid.UUID           `json:"contact_id"`
	FirstName string              `json:"first_name"`
	LastName  string              `json:"last_name"`
	Status    enums.ContactStatus `json:"status"`
}

// CompanyEvent covers company create/update/delete.
type CompanyEvent struct {
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
}

// ActivityEvent is emitted when an AreaOfActivity row changes.
type ActivityEvent struct {
	AreaOfActivityID uuid.UUID  `json:"area_of_activity_id"`
	ContactID        uuid.UUID  `json:"contact_id"`
	CompanyID        *uuid.UUID `json:"company_id,omitempty"`
	CompanyName      *string    `json:"company_name,omitempty"`
	IsPrimary        bool       `json:"is_primary"`
	// PreviousPrimaryID is set when linking or promoting demoted another row.
	PreviousPrimaryID *uuid.UUID `json:"previous_primary_id,omitempty"`
}

// DealEvent covers deal create/update/stage change/archive.
type DealEvent struct {
	DealID    uuid.UUID       `json:"deal_id"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	Currency  string          `json:"currency"`
	StageID   enums.DealStage `json:"stage_id"`
	ContactID *uuid.UUID      `json:"contact_id,omitempty"`
	CompanyID *uuid.UUID      `json:"company_id,omitempty"`
	// PreviousStageID is only populated on stage changes.
	PreviousStageID *enums.DealStage `json:"previous_stage_id,omitempty"`
}

// DealAssociationChangedEvent records the before/after contact and company of a deal.
type DealAssociationChangedEvent struct {
	DealID            uuid.UUID  `json:"deal_id"`
	PreviousContactID *uuid.UUID `json:"previous_contact_id,omitempty"`
	PreviousCompanyID *uuid.UUID `json:"previous_company_id,omitempty"`
	ContactID         *uuid.UUID `json:"contact_id,omitempty"`
	CompanyID         *uuid.UUID `json:"company_id,omitempty"`
}

// SynergyEvent covers synergy create/update/archive.
type SynergyEvent struct {
	SynergyID uuid.UUID           `json:"synergy_id"`
	ContactID uuid.UUID           `json:"contact_id"`
	CompanyID uuid.UUID           `json:"company_id"`
	DealID    uuid.UUID           `json:"deal_id"`
	Status    enums.SynergyStatus `json:"status"`
	StartDate time.Time           `json:"start_date"`
	EndDate   *time.Time          `json:"end_date,omitempty"`
	// Reason explains archival: "deal_association_changed", "deal_archived" or "manual".
	Reason string `json:"reason,omitempty"`
}
