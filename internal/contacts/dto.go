package contacts

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	"github.com/angelmondragon/crm-backend/pkg/pagination"
)

// EmailInput is one address supplied on create or update.
type EmailInput struct {
	Email     string
	Kind      string
	IsPrimary bool
}

// PhoneInput is one number supplied on create or update.
type PhoneInput struct {
	Number string
	Kind   string
}

type CreateInput struct {
	FirstName string
	LastName  string
	Emails    []EmailInput
	Phones    []PhoneInput
	Tags      []string
	Notes     *string
}

// UpdateInput is a partial update. Emails and Phones replace the whole set
// when present.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Emails    *[]EmailInput
	Phones    *[]PhoneInput
	Tags      *[]string
	Notes     *string
}

type ListParams struct {
	Search          string
	Tag             string
	IncludeArchived bool
	Cursor          string
	Limit           int
}

type ListResult = pagination.Page[models.Contact]

// DeleteResult tells the caller whether the contact was removed or, because
// deals or synergies still reference it, archived instead.
type DeleteResult struct {
	Archived bool            `json:"archived"`
	Contact  *models.Contact `json:"contact,omitempty"`
}

type listQuery struct {
	search   string
	tag      string
	statuses []enums.ContactStatus
	cursor   *pagination.Cursor
	limit    int
}

// Reference lists what keeps a contact from being hard-deleted.
type Reference struct {
	DealIDs    []uuid.UUID
	SynergyIDs []uuid.UUID
}

func (r Reference) Empty() bool {
	return len(r.DealIDs) == 0 && len(r.SynergyIDs) == 0
}

func contactCursor(c models.Contact) pagination.Cursor {
	return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
}
