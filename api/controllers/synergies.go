package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/api/responses"
	"github.com/angelmondragon/crm-backend/api/validators"
	"github.com/angelmondragon/crm-backend/internal/synergies"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

// synergyUpdateRequest keeps the identity fields as raw JSON so that a patch
// naming them, even with null, is reported as IMMUTABLE_FIELD rather than
// silently ignored.
type synergyUpdateRequest struct {
	ContactID   json.RawMessage `json:"contact_id"`
	CompanyID   json.RawMessage `json:"company_id"`
	DealID      json.RawMessage `json:"deal_id"`
	Status      *string         `json:"status" validate:"omitempty,max=32"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	EndDate     *time.Time      `json:"end_date"`
}

func (r synergyUpdateRequest) toInput() synergies.UpdateInput {
	return synergies.UpdateInput{
		ContactID:   presentID(r.ContactID),
		CompanyID:   presentID(r.CompanyID),
		DealID:      presentID(r.DealID),
		Status:      r.Status,
		Description: r.Description,
		EndDate:     r.EndDate,
	}
}

// presentID maps "field was sent" to a non-nil pointer. The value itself is
// irrelevant since identity fields are never applied.
func presentID(raw json.RawMessage) *uuid.UUID {
	if len(raw) == 0 {
		return nil
	}
	var id uuid.UUID
	_ = json.Unmarshal(raw, &id)
	return &id
}

func SynergyGet(svc synergies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "synergy service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "synergyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		synergy, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, synergyResponseFromModel(synergy))
	}
}

// SynergyUpdate handles PATCH /synergies/{synergyId}. Only status,
// description and end_date are mutable.
func SynergyUpdate(svc synergies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "synergy service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "synergyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload synergyUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, synergyResponseFromModel(updated))
	}
}

// SynergyArchive handles POST /synergies/{synergyId}/archive.
func SynergyArchive(svc synergies.Service, logg *logger.Logger) http.HandlerFunc {
	return synergyArchiveHandler(svc, logg, func(ctx context.Context, id uuid.UUID) (*models.Synergy, error) {
		return svc.Archive(ctx, id)
	})
}

// SynergyDelete handles DELETE /synergies/{synergyId}. Synergies are never
// removed; deleting one archives it.
func SynergyDelete(svc synergies.Service, logg *logger.Logger) http.HandlerFunc {
	return synergyArchiveHandler(svc, logg, func(ctx context.Context, id uuid.UUID) (*models.Synergy, error) {
		return svc.Delete(ctx, id)
	})
}

func synergyArchiveHandler(svc synergies.Service, logg *logger.Logger, archive func(context.Context, uuid.UUID) (*models.Synergy, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "synergy service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "synergyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		archived, err := archive(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, synergyResponseFromModel(archived))
	}
}

// ContactSynergies handles GET /contacts/{contactId}/synergies (active only).
func ContactSynergies(svc synergies.Service, logg *logger.Logger) http.HandlerFunc {
	return synergyListHandler(svc, logg, "contactId", func(ctx context.Context, id uuid.UUID) ([]models.Synergy, error) {
		return svc.ListActiveForContact(ctx, id)
	})
}

// CompanySynergies handles GET /companies/{companyId}/synergies (active only).
func CompanySynergies(svc synergies.Service, logg *logger.Logger) http.HandlerFunc {
	return synergyListHandler(svc, logg, "companyId", func(ctx context.Context, id uuid.UUID) ([]models.Synergy, error) {
		return svc.ListActiveForCompany(ctx, id)
	})
}

// DealSynergies handles GET /deals/{dealId}/synergies, archived rows included.
func DealSynergies(svc synergies.Service, logg *logger.Logger) http.HandlerFunc {
	return synergyListHandler(svc, logg, "dealId", func(ctx context.Context, id uuid.UUID) ([]models.Synergy, error) {
		return svc.ListForDeal(ctx, id)
	})
}

func synergyListHandler(svc synergies.Service, logg *logger.Logger, param string, list func(context.Context, uuid.UUID) ([]models.Synergy, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "synergy service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := list(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapSlice(rows, synergyResponseFromModel))
	}
}
