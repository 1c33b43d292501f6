package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/crm-backend/api/responses"
	"github.com/angelmondragon/crm-backend/api/validators"
	"github.com/angelmondragon/crm-backend/internal/companies"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/pagination"
)

type branchRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=200"`
	Country *string `json:"country" validate:"omitempty,max=120"`
	City    *string `json:"city" validate:"omitempty,max=120"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

func (r branchRequest) toInput() companies.BranchInput {
	return companies.BranchInput{Name: r.Name, Country: r.Country, City: r.City, Address: r.Address}
}

type companyCreateRequest struct {
	Name         string          `json:"name" validate:"max=200"`
	Email        *string         `json:"email" validate:"omitempty,email"`
	Phone        *string         `json:"phone" validate:"omitempty,max=40"`
	Website      *string         `json:"website" validate:"omitempty,max=500"`
	Country      *string         `json:"country" validate:"omitempty,max=120"`
	City         *string         `json:"city" validate:"omitempty,max=120"`
	Tags         []string        `json:"tags" validate:"omitempty,dive,max=64"`
	CustomFields map[string]any  `json:"custom_fields"`
	Branches     []branchRequest `json:"branches" validate:"omitempty,dive"`
}

func (r companyCreateRequest) toInput() companies.CreateInput {
	branches := make([]companies.BranchInput, 0, len(r.Branches))
	for _, b := range r.Branches {
		branches = append(branches, b.toInput())
	}
	return companies.CreateInput{
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Website:      r.Website,
		Country:      r.Country,
		City:         r.City,
		Tags:         r.Tags,
		CustomFields: r.CustomFields,
		Branches:     branches,
	}
}

type companyUpdateRequest struct {
	Name         *string         `json:"name" validate:"omitempty,max=200"`
	Email        *string         `json:"email" validate:"omitempty,email"`
	Phone        *string         `json:"phone" validate:"omitempty,max=40"`
	Website      *string         `json:"website" validate:"omitempty,max=500"`
	Country      *string         `json:"country" validate:"omitempty,max=120"`
	City         *string         `json:"city" validate:"omitempty,max=120"`
	Tags         *[]string       `json:"tags" validate:"omitempty,dive,max=64"`
	CustomFields *map[string]any `json:"custom_fields"`
}

func (r companyUpdateRequest) toInput() companies.UpdateInput {
	return companies.UpdateInput{
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Website:      r.Website,
		Country:      r.Country,
		City:         r.City,
		Tags:         r.Tags,
		CustomFields: r.CustomFields,
	}
}

// CompanyCreate handles POST /companies.
func CompanyCreate(svc companies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "company service unavailable"))
			return
		}

		var payload companyCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, companyResponseFromModel(created))
	}
}

func CompanyList(svc companies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "company service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		page, err := svc.List(r.Context(), companies.ListParams{
			Search:  validators.SanitizeString(query.Get("q"), 200),
			Tag:     strings.TrimSpace(query.Get("tag")),
			Country: strings.TrimSpace(query.Get("country")),
			Cursor:  strings.TrimSpace(query.Get("cursor")),
			Limit:   limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pageResponse(page, companyResponseFromModel))
	}
}

func CompanyGet(svc companies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "company service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		company, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, companyResponseFromModel(company))
	}
}

func CompanyUpdate(svc companies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "company service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload companyUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, companyResponseFromModel(updated))
	}
}

// CompanyDelete handles DELETE /companies/{companyId}. Deals or synergies
// still pointing at the company turn into a CONFLICT listing them.
func CompanyDelete(svc companies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "company service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func BranchCreate(svc companies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "company service unavailable"))
			return
		}
		companyID, err := validators.ParseUUIDParam(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload branchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		branch, err := svc.AddBranch(r.Context(), companyID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, branchResponseFromModel(branch))
	}
}

func BranchList(svc companies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "company service unavailable"))
			return
		}
		companyID, err := validators.ParseUUIDParam(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		branches, err := svc.ListBranches(r.Context(), companyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapSlice(branches, branchResponseFromModel))
	}
}

func BranchUpdate(svc companies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "company service unavailable"))
			return
		}
		companyID, err := validators.ParseUUIDParam(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		branchID, err := validators.ParseUUIDParam(r, "branchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload branchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		branch, err := svc.UpdateBranch(r.Context(), companyID, branchID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, branchResponseFromModel(branch))
	}
}

func BranchDelete(svc companies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "company service unavailable"))
			return
		}
		companyID, err := validators.ParseUUIDParam(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		branchID, err := validators.ParseUUIDParam(r, "branchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveBranch(r.Context(), companyID, branchID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
