package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/api/responses"
	"github.com/angelmondragon/crm-backend/api/validators"
	"github.com/angelmondragon/crm-backend/internal/activities"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

type activityLinkRequest struct {
	CompanyID      *string `json:"company_id"`
	CompanyName    *string `json:"company_name" validate:"omitempty,max=200"`
	Role           *string `json:"role" validate:"omitempty,max=120"`
	JobDescription *string `json:"job_description" validate:"omitempty,max=2000"`
	IsPrimary      bool    `json:"is_primary"`
	BranchID       *string `json:"branch_id"`
}

func (r activityLinkRequest) toInput() (activities.LinkInput, error) {
	companyID, err := optionalUUID("company_id", r.CompanyID)
	if err != nil {
		return activities.LinkInput{}, err
	}
	branchID, err := optionalUUID("branch_id", r.BranchID)
	if err != nil {
		return activities.LinkInput{}, err
	}
	return activities.LinkInput{
		CompanyID:      companyID,
		CompanyName:    r.CompanyName,
		Role:           r.Role,
		JobDescription: r.JobDescription,
		IsPrimary:      r.IsPrimary,
		BranchID:       branchID,
	}, nil
}

type activityUpdateRequest struct {
	Role           *string `json:"role" validate:"omitempty,max=120"`
	JobDescription *string `json:"job_description" validate:"omitempty,max=2000"`
	BranchID       *string `json:"branch_id"`
	ClearBranch    bool    `json:"clear_branch"`
}

func (r activityUpdateRequest) toInput() (activities.UpdateInput, error) {
	branchID, err := optionalUUID("branch_id", r.BranchID)
	if err != nil {
		return activities.UpdateInput{}, err
	}
	return activities.UpdateInput{
		Role:           r.Role,
		JobDescription: r.JobDescription,
		BranchID:       branchID,
		ClearBranch:    r.ClearBranch,
	}, nil
}

// ActivityLink handles POST /contacts/{contactId}/activities.
func ActivityLink(svc activities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity service unavailable"))
			return
		}
		contactID, err := validators.ParseUUIDParam(r, "contactId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload activityLinkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		linked, err := svc.LinkContactToCompany(r.Context(), contactID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, activityResponseFromModel(linked))
	}
}

// ActivityListForContact handles GET /contacts/{contactId}/activities. The
// primary row comes first.
func ActivityListForContact(svc activities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity service unavailable"))
			return
		}
		contactID, err := validators.ParseUUIDParam(r, "contactId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.CompaniesForContact(r.Context(), contactID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapSlice(rows, activityResponseFromModel))
	}
}

// CompanyContacts handles GET /companies/{companyId}/contacts.
func CompanyContacts(svc activities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity service unavailable"))
			return
		}
		companyID, err := validators.ParseUUIDParam(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ContactsForCompany(r.Context(), companyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contactResponses(rows))
	}
}

func ActivityUpdate(svc activities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "activityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload activityUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateActivity(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, activityResponseFromModel(updated))
	}
}

func ActivityUnlink(svc activities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "activityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Unlink(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// ActivitySetPrimary handles POST /activities/{activityId}/primary.
func ActivitySetPrimary(svc activities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "activityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promoted, err := svc.SetPrimary(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, activityResponseFromModel(promoted))
	}
}

// ActivityOrphans handles GET /activities/orphans. The report is read-only.
func ActivityOrphans(svc activities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity service unavailable"))
			return
		}

		orphans, err := svc.FindOrphans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if orphans == nil {
			orphans = []activities.Orphan{}
		}
		if logg != nil && len(orphans) > 0 {
			logg.Warn(logg.WithField(r.Context(), "orphans", len(orphans)), "activities.orphans_found")
		}
		responses.WriteSuccess(w, orphanResponse{Items: orphans, Count: len(orphans)})
	}
}

func optionalUUID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, pkgerrors.Validation("invalid request", map[string]string{field: "must be a valid uuid"})
	}
	return &id, nil
}
