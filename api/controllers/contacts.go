package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/crm-backend/api/responses"
	"github.com/angelmondragon/crm-backend/api/validators"
	"github.com/angelmondragon/crm-backend/internal/contacts"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/pagination"
)

type emailPayload struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Kind      string `json:"kind" validate:"omitempty,oneof=work personal previous_work other"`
	IsPrimary bool   `json:"is_primary"`
}

type phonePayload struct {
	Number string `json:"number" validate:"required,max=40"`
	Kind   string `json:"kind" validate:"omitempty,oneof=work mobile home other"`
}

type contactCreateRequest struct {
	FirstName string         `json:"first_name" validate:"max=120"`
	LastName  string         `json:"last_name" validate:"max=120"`
	Emails    []emailPayload `json:"emails" validate:"omitempty,dive"`
	Phones    []phonePayload `json:"phones" validate:"omitempty,dive"`
	Tags      []string       `json:"tags" validate:"omitempty,dive,max=64"`
	Notes     *string        `json:"notes"`
}

func (r contactCreateRequest) toInput() contacts.CreateInput {
	return contacts.CreateInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Emails:    emailInputs(r.Emails),
		Phones:    phoneInputs(r.Phones),
		Tags:      r.Tags,
		Notes:     r.Notes,
	}
}

type contactUpdateRequest struct {
	FirstName *string         `json:"first_name" validate:"omitempty,max=120"`
	LastName  *string         `json:"last_name" validate:"omitempty,max=120"`
	Emails    *[]emailPayload `json:"emails" validate:"omitempty,dive"`
	Phones    *[]phonePayload `json:"phones" validate:"omitempty,dive"`
	Tags      *[]string       `json:"tags" validate:"omitempty,dive,max=64"`
	Notes     *string         `json:"notes"`
}

func (r contactUpdateRequest) toInput() contacts.UpdateInput {
	input := contacts.UpdateInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Tags:      r.Tags,
		Notes:     r.Notes,
	}
	if r.Emails != nil {
		emails := emailInputs(*r.Emails)
		input.Emails = &emails
	}
	if r.Phones != nil {
		phones := phoneInputs(*r.Phones)
		input.Phones = &phones
	}
	return input
}

func emailInputs(in []emailPayload) []contacts.EmailInput {
	out := make([]contacts.EmailInput, 0, len(in))
	for _, e := range in {
		out = append(out, contacts.EmailInput{Email: e.Email, Kind: e.Kind, IsPrimary: e.IsPrimary})
	}
	return out
}

func phoneInputs(in []phonePayload) []contacts.PhoneInput {
	out := make([]contacts.PhoneInput, 0, len(in))
	for _, p := range in {
		out = append(out, contacts.PhoneInput{Number: p.Number, Kind: p.Kind})
	}
	return out
}

// ContactCreate handles POST /contacts.
func ContactCreate(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contact service unavailable"))
			return
		}

		var payload contactCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, contactResponseFromModel(created))
	}
}

// ContactList handles GET /contacts with search, tag and archived filters.
func ContactList(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contact service unavailable"))
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

		query := r.URL.Query()
		page, err := svc.List(r.Context(), contacts.ListParams{
			Search:          validators.SanitizeString(query.Get("q"), 120),
			Tag:             strings.TrimSpace(query.Get("tag")),
			IncludeArchived: includeArchived,
			Cursor:          strings.TrimSpace(query.Get("cursor")),
			Limit:           limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pageResponse(page, contactResponseFromModel))
	}
}

// ContactGet handles GET /contacts/{contactId}.
func ContactGet(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contact service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "contactId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contact, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contactResponseFromModel(contact))
	}
}

// ContactUpdate handles PATCH /contacts/{contactId}.
func ContactUpdate(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contact service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "contactId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload contactUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contactResponseFromModel(updated))
	}
}

// ContactArchive handles POST /contacts/{contactId}/archive.
func ContactArchive(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contact service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "contactId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		archived, err := svc.Archive(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contactResponseFromModel(archived))
	}
}

type contactDeleteResponse struct {
	Deleted  bool             `json:"deleted"`
	Archived bool             `json:"archived"`
	Contact  *contactResponse `json:"contact,omitempty"`
}

// ContactDelete handles DELETE /contacts/{contactId}. A contact still
// referenced by deals or synergies is archived instead of removed and the
// response says so.
func ContactDelete(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contact service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "contactId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Delete(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := contactDeleteResponse{Deleted: true}
		if result != nil && result.Archived {
			resp = contactDeleteResponse{Archived: true}
			if result.Contact != nil {
				c := contactResponseFromModel(result.Contact)
				resp.Contact = &c
			}
		}
		responses.WriteSuccess(w, resp)
	}
}

func contactResponses(rows []models.Contact) []contactResponse {
	return mapSlice(rows, contactResponseFromModel)
}
