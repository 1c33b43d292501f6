package synergies

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
)

// CreateInput names the triple a synergy is created for. Creation is only
// reachable through the deriver; there is no public endpoint for it.
type CreateInput struct {
	ContactID   uuid.UUID
	CompanyID   uuid.UUID
	DealID      uuid.UUID
	Description *string
}

// UpdateInput is a synergy patch. The identity fields exist so a patch that
// names them can be rejected; they are never applied.
type UpdateInput struct {
	ContactID   *uuid.UUID
	CompanyID   *uuid.UUID
	DealID      *uuid.UUID
	Status      *string
	Description *string
	EndDate     *time.Time
}

// Derivation reports what a deal association change did to synergies.
type Derivation struct {
	Created  *models.Synergy `json:"created,omitempty"`
	Archived []models.Synergy `json:"archived"`
}

// Archival reasons recorded on synergy_archived events.
const (
	ReasonAssociationChanged = "deal_association_changed"
	ReasonDealArchived       = "deal_archived"
	ReasonManual             = "manual"
)
