package activities

import (
	"github.com/google/uuid"
)

// LinkInput describes the company side of a new activity row. Exactly one
// of CompanyID and CompanyName identifies the company.
type LinkInput struct {
	CompanyID      *uuid.UUID
	CompanyName    *string
	Role           *string
	JobDescription *string
	IsPrimary      bool
	BranchID       *uuid.UUID
}

// UpdateInput edits the descriptive fields of an activity row. ClearBranch
// detaches the branch; BranchID sets a new one.
type UpdateInput struct {
	Role           *string
	JobDescription *string
	BranchID       *uuid.UUID
	ClearBranch    bool
}

// Orphan is an activity row whose company no longer exists.
type Orphan struct {
	AreaOfActivityID uuid.UUID `json:"area_of_activity_id" gorm:"column:area_of_activity_id"`
	ContactID        uuid.UUID `json:"contact_id" gorm:"column:contact_id"`
	CompanyID        uuid.UUID `json:"company_id" gorm:"column:company_id"`
}
