package deals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/pagination"
)

// CreateInput carries the fields accepted when creating a deal.
type CreateInput struct {
	Name      string
	Value     decimal.Decimal
	Currency  string
	StageID   string
	ContactID *uuid.UUID
	CompanyID *uuid.UUID
	CloseDate *time.Time
	Notes     *string
	Tags      []string
}

// UpdateInput is a partial update. ClearContact and ClearCompany detach the
// association since a nil pointer means "leave untouched".
type UpdateInput struct {
	Name         *string
	Value        *decimal.Decimal
	Currency     *string
	StageID      *string
	ContactID    *uuid.UUID
	ClearContact bool
	CompanyID    *uuid.UUID
	ClearCompany bool
	CloseDate    *time.Time
	Notes        *string
	Tags         *[]string
}

func (in UpdateInput) touchesAssociation() bool {
	return in.ContactID != nil || in.CompanyID != nil || in.ClearContact || in.ClearCompany
}

// ListParams filters the deal list.
type ListParams struct {
	Search          string
	Stage           string
	Tag             string
	ContactID       *uuid.UUID
	CompanyID       *uuid.UUID
	IncludeArchived bool
	Cursor          string
	Limit           int
}

// ListResult is one page of deals.
type ListResult = pagination.Page[models.Deal]

type listQuery struct {
	search          string
	stage           string
	tag             string
	contactID       *uuid.UUID
	companyID       *uuid.UUID
	includeArchived bool
	cursor          *pagination.Cursor
	limit           int
}

func dealCursor(d models.Deal) pagination.Cursor {
	return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
}
