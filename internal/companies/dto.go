package companies

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/pagination"
)

// CreateInput carries the fields accepted when creating a company.
type CreateInput struct {
	Name         string
	Email        *string
	Phone        *string
	Website      *string
	Country      *string
	City         *string
	Tags         []string
	CustomFields map[string]any
	Branches     []BranchInput
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name         *string
	Email        *string
	Phone        *string
	Website      *string
	Country      *string
	City         *string
	Tags         *[]string
	CustomFields *map[string]any
}

// BranchInput describes a branch to create or, with pointers left nil, to
// leave partially untouched on update.
type BranchInput struct {
	Name    *string
	Country *string
	City    *string
	Address *string
}

// ListParams filters the company list.
type ListParams struct {
	Search  string
	Tag     string
	Country string
	Cursor  string
	Limit   int
}

// ListResult is one page of companies.
type ListResult = pagination.Page[models.Company]

type listQuery struct {
	search  string
	tag     string
	country string
	cursor  *pagination.Cursor
	limit   int
}

func companyCursor(c models.Company) pagination.Cursor {
	return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
}

// Reference describes why a company cannot be deleted.
type Reference struct {
	DealIDs    []uuid.UUID `json:"deal_ids,omitempty"`
	SynergyIDs []uuid.UUID `json:"synergy_ids,omitempty"`
}

func (r Reference) Empty() bool {
	return len(r.DealIDs) == 0 && len(r.SynergyIDs) == 0
}
