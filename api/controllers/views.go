package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/crm-backend/internal/activities"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	"github.com/angelmondragon/crm-backend/pkg/pagination"
)

type emailResponse struct {
	ID        uuid.UUID       `json:"id"`
	Email     string          `json:"email"`
	Kind      enums.EmailKind `json:"kind"`
	IsPrimary bool            `json:"is_primary"`
}

type phoneResponse struct {
	ID     uuid.UUID       `json:"id"`
	Number string          `json:"number"`
	Kind   enums.PhoneKind `json:"kind"`
}

type contactResponse struct {
	ID         uuid.UUID           `json:"id"`
	FirstName  string              `json:"first_name"`
	LastName   string              `json:"last_name"`
	Emails     []emailResponse     `json:"emails"`
	Phones     []phoneResponse     `json:"phones"`
	Tags       []string            `json:"tags"`
	Notes      *string             `json:"notes,omitempty"`
	Status     enums.ContactStatus `json:"status"`
	ArchivedAt *time.Time          `json:"archived_at,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func contactResponseFromModel(m *models.Contact) contactResponse {
	resp := contactResponse{
		ID:         m.ID,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Emails:     make([]emailResponse, 0, len(m.Emails)),
		Phones:     make([]phoneResponse, 0, len(m.Phones)),
		Tags:       nonNil(m.Tags),
		Notes:      m.Notes,
		Status:     m.Status,
		ArchivedAt: m.ArchivedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	for _, e := range m.Emails {
		resp.Emails = append(resp.Emails, emailResponse{ID: e.ID, Email: e.Email, Kind: e.Kind, IsPrimary: e.IsPrimary})
	}
	for _, p := range m.Phones {
		resp.Phones = append(resp.Phones, phoneResponse{ID: p.ID, Number: p.Number, Kind: p.Kind})
	}
	return resp
}

type branchResponse struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Country   *string   `json:"country,omitempty"`
	City      *string   `json:"city,omitempty"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func branchResponseFromModel(m *models.Branch) branchResponse {
	return branchResponse{
		ID:        m.ID,
		CompanyID: m.CompanyID,
		Name:      m.Name,
		Country:   m.Country,
		City:      m.City,
		Address:   m.Address,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type companyResponse struct {
	ID           uuid.UUID        `json:"id"`
	Name         string           `json:"name"`
	Email        *string          `json:"email,omitempty"`
	Phone        *string          `json:"phone,omitempty"`
	Website      *string          `json:"website,omitempty"`
	Country      *string          `json:"country,omitempty"`
	City         *string          `json:"city,omitempty"`
	Tags         []string         `json:"tags"`
	CustomFields map[string]any   `json:"custom_fields"`
	Branches     []branchResponse `json:"branches"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func companyResponseFromModel(m *models.Company) companyResponse {
	resp := companyResponse{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		Website:      m.Website,
		Country:      m.Country,
		City:         m.City,
		Tags:         nonNil(m.Tags),
		CustomFields: m.CustomFields,
		Branches:     make([]branchResponse, 0, len(m.Branches)),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if resp.CustomFields == nil {
		resp.CustomFields = map[string]any{}
	}
	for i := range m.Branches {
		resp.Branches = append(resp.Branches, branchResponseFromModel(&m.Branches[i]))
	}
	return resp
}

type activityResponse struct {
	ID             uuid.UUID  `json:"id"`
	ContactID      uuid.UUID  `json:"contact_id"`
	CompanyID      *uuid.UUID `json:"company_id,omitempty"`
	CompanyName    *string    `json:"company_name,omitempty"`
	BranchID       *uuid.UUID `json:"branch_id,omitempty"`
	Role           *string    `json:"role,omitempty"`
	JobDescription *string    `json:"job_description,omitempty"`
	IsPrimary      bool       `json:"is_primary"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func activityResponseFromModel(m *models.AreaOfActivity) activityResponse {
	return activityResponse{
		ID:             m.ID,
		ContactID:      m.ContactID,
		CompanyID:      m.CompanyID,
		CompanyName:    m.CompanyName,
		BranchID:       m.BranchID,
		Role:           m.Role,
		JobDescription: m.JobDescription,
		IsPrimary:      m.IsPrimary,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type dealResponse struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Value      decimal.Decimal `json:"value"`
	Currency   string          `json:"currency"`
	StageID    enums.DealStage `json:"stage_id"`
	ContactID  *uuid.UUID      `json:"contact_id,omitempty"`
	CompanyID  *uuid.UUID      `json:"company_id,omitempty"`
	CloseDate  *time.Time      `json:"close_date,omitempty"`
	Notes      *string         `json:"notes,omitempty"`
	Tags       []string        `json:"tags"`
	ArchivedAt *time.Time      `json:"archived_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func dealResponseFromModel(m *models.Deal) dealResponse {
	return dealResponse{
		ID:         m.ID,
		Name:       m.Name,
		Value:      m.Value,
		Currency:   m.Currency,
		StageID:    m.StageID,
		ContactID:  m.ContactID,
		CompanyID:  m.CompanyID,
		CloseDate:  m.CloseDate,
		Notes:      m.Notes,
		Tags:       nonNil(m.Tags),
		ArchivedAt: m.ArchivedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

type synergyResponse struct {
	ID          uuid.UUID           `json:"id"`
	ContactID   uuid.UUID           `json:"contact_id"`
	CompanyID   uuid.UUID           `json:"company_id"`
	DealID      uuid.UUID           `json:"deal_id"`
	Type        enums.SynergyType   `json:"type"`
	Status      enums.SynergyStatus `json:"status"`
	Description *string             `json:"description,omitempty"`
	StartDate   time.Time           `json:"start_date"`
	EndDate     *time.Time          `json:"end_date,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func synergyResponseFromModel(m *models.Synergy) synergyResponse {
	return synergyResponse{
		ID:          m.ID,
		ContactID:   m.ContactID,
		CompanyID:   m.CompanyID,
		DealID:      m.DealID,
		Type:        m.Type,
		Status:      m.Status,
		Description: m.Description,
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

type orphanResponse struct {
	Items []activities.Orphan `json:"items"`
	Count int                 `json:"count"`
}

func mapSlice[M any, R any](rows []M, fn func(*M) R) []R {
	out := make([]R, 0, len(rows))
	for i := range rows {
		out = append(out, fn(&rows[i]))
	}
	return out
}

func pageResponse[M any, R any](page *pagination.Page[M], fn func(*M) R) pagination.Page[R] {
	if page == nil {
		return pagination.Page[R]{Items: []R{}}
	}
	return pagination.Page[R]{
		Items:      mapSlice(page.Items, fn),
		NextCursor: page.NextCursor,
	}
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
