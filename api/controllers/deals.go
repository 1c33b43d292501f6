package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/crm-backend/api/responses"
	"github.com/angelmondragon/crm-backend/api/validators"
	"github.com/angelmondragon/crm-backend/internal/deals"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/pagination"
)

type dealCreateRequest struct {
	Name      string          `json:"name" validate:"max=200"`
	Value     decimal.Decimal `json:"value"`
	Currency  string          `json:"currency" validate:"omitempty,len=3"`
	StageID   string          `json:"stage_id" validate:"omitempty,oneof=lead qualified proposal negotiation won lost"`
	ContactID *string         `json:"contact_id"`
	CompanyID *string         `json:"company_id"`
	CloseDate *time.Time      `json:"close_date"`
	Notes     *string         `json:"notes"`
	Tags      []string        `json:"tags" validate:"omitempty,dive,max=64"`
}

func (r dealCreateRequest) toInput() (deals.CreateInput, error) {
	contactID, err := optionalUUID("contact_id", r.ContactID)
	if err != nil {
		return deals.CreateInput{}, err
	}
	companyID, err := optionalUUID("company_id", r.CompanyID)
	if err != nil {
		return deals.CreateInput{}, err
	}
	return deals.CreateInput{
		Name:      r.Name,
		Value:     r.Value,
		Currency:  r.Currency,
		StageID:   r.StageID,
		ContactID: contactID,
		CompanyID: companyID,
		CloseDate: r.CloseDate,
		Notes:     r.Notes,
		Tags:      r.Tags,
	}, nil
}

// dealUpdateRequest moves a deal across the board (stage_id) and rewires its
// associations. clear_contact and clear_company detach one side.
type dealUpdateRequest struct {
	Name         *string          `json:"name" validate:"omitempty,max=200"`
	Value        *decimal.Decimal `json:"value"`
	Currency     *string          `json:"currency" validate:"omitempty,len=3"`
	StageID      *string          `json:"stage_id" validate:"omitempty,oneof=lead qualified proposal negotiation won lost"`
	ContactID    *string          `json:"contact_id"`
	ClearContact bool             `json:"clear_contact"`
	CompanyID    *string          `json:"company_id"`
	ClearCompany bool             `json:"clear_company"`
	CloseDate    *time.Time       `json:"close_date"`
	Notes        *string          `json:"notes"`
	Tags         *[]string        `json:"tags" validate:"omitempty,dive,max=64"`
}

func (r dealUpdateRequest) toInput() (deals.UpdateInput, error) {
	contactID, err := optionalUUID("contact_id", r.ContactID)
	if err != nil {
		return deals.UpdateInput{}, err
	}
	companyID, err := optionalUUID("company_id", r.CompanyID)
	if err != nil {
		return deals.UpdateInput{}, err
	}
	return deals.UpdateInput{
		Name:         r.Name,
		Value:        r.Value,
		Currency:     r.Currency,
		StageID:      r.StageID,
		ContactID:    contactID,
		ClearContact: r.ClearContact,
		CompanyID:    companyID,
		ClearCompany: r.ClearCompany,
		CloseDate:    r.CloseDate,
		Notes:        r.Notes,
		Tags:         r.Tags,
	}, nil
}

func DealCreate(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deal service unavailable"))
			return
		}

		var payload dealCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dealResponseFromModel(created))
	}
}

// DealList handles GET /deals. stage filters one pipeline column of the board.
func DealList(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deal service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeArchived, err := validators.ParseQueryBool(r, "include_archived")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contactID, err := validators.ParseQueryUUID(r, "contact_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		companyID, err := validators.ParseQueryUUID(r, "company_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		page, err := svc.List(r.Context(), deals.ListParams{
			Search:          validators.SanitizeString(query.Get("q"), 200),
			Stage:           strings.TrimSpace(query.Get("stage")),
			Tag:             strings.TrimSpace(query.Get("tag")),
			ContactID:       contactID,
			CompanyID:       companyID,
			IncludeArchived: includeArchived,
			Cursor:          strings.TrimSpace(query.Get("cursor")),
			Limit:           limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pageResponse(page, dealResponseFromModel))
	}
}

func DealGet(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deal service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "dealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deal, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dealResponseFromModel(deal))
	}
}

func DealUpdate(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deal service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "dealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload dealUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dealResponseFromModel(updated))
	}
}

// DealDelete handles DELETE /deals/{dealId}. The deal is archived together
// with its synergies and the archived row is returned.
func DealDelete(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deal service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "dealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		archived, err := svc.Delete(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dealResponseFromModel(archived))
	}
}
