package synergies

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/internal/repo"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

// Service exposes synergy reads and the edits allowed after creation.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Synergy, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Synergy, error)
	ListActiveForContact(ctx context.Context, contactID uuid.UUID) ([]models.Synergy, error)
	ListActiveForCompany(ctx context.Context, companyID uuid.UUID) ([]models.Synergy, error)
	ListForDeal(ctx context.Context, dealID uuid.UUID) ([]models.Synergy, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Synergy, error)
	Archive(ctx context.Context, id uuid.UUID) (*models.Synergy, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.Synergy, error)
}

type service struct {
	*core
}

// NewService builds the synergy service.
func NewService(params Params) (Service, error) {
	c, err := newCore(params)
	if err != nil {
		return nil, err
	}
	return &service{core: c}, nil
}

// Create inserts a synergy for a deal that already carries the triple. It
// backs the deriver and repair tooling; callers outside the core go through
// deal updates instead.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Synergy, error) {
	var synergy *models.Synergy
	err := s.withDealLock(ctx, input.DealID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			synergy, err = s.createTx(ctx, tx, input)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return synergy, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Synergy, error) {
	synergy, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.StorageError(err, "synergy not found")
	}
	return synergy, nil
}

func (s *service) ListActiveForContact(ctx context.Context, contactID uuid.UUID) ([]models.Synergy, error) {
	rows, err := s.repo.ListActiveForContact(ctx, contactID)
	if err != nil {
		return nil, repo.StorageError(err, "list contact synergies")
	}
	return rows, nil
}

func (s *service) ListActiveForCompany(ctx context.Context, companyID uuid.UUID) ([]models.Synergy, error) {
	rows, err := s.repo.ListActiveForCompany(ctx, companyID)
	if err != nil {
		return nil, repo.StorageError(err, "list company synergies")
	}
	return rows, nil
}

// ListForDeal returns the deal's full synergy history, archived rows included.
func (s *service) ListForDeal(ctx context.Context, dealID uuid.UUID) ([]models.Synergy, error) {
	if _, err := s.repo.FindDeal(ctx, dealID); err != nil {
		return nil, repo.StorageError(err, "deal not found")
	}
	rows, err := s.repo.ListForDeal(ctx, dealID)
	if err != nil {
		return nil, repo.StorageError(err, "list deal synergies")
	}
	return rows, nil
}

// Update applies status, description and end date. Naming an identity field
// fails the whole patch. Archived synergies accept no update at all and
// completed ones only accept archival.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Synergy, error) {
	switch {
	case input.ContactID != nil:
		return nil, pkgerrors.Immutable("contact_id")
	case input.CompanyID != nil:
		return nil, pkgerrors.Immutable("company_id")
	case input.DealID != nil:
		return nil, pkgerrors.Immutable("deal_id")
	}

	var next *enums.SynergyStatus
	if input.Status != nil {
		parsed, err := enums.ParseSynergyStatus(*input.Status)
		if err != nil {
			return nil, pkgerrors.Validation("invalid synergy status", map[string]string{"status": err.Error()})
		}
		next = &parsed
	}

	var synergy *models.Synergy
	err := s.withSynergyDealLock(ctx, id, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			r := s.repo.WithTx(tx)
			found, err := r.LockByID(ctx, id)
			if err != nil {
				return repo.StorageError(err, "synergy not found")
			}
			synergy = found
			if found.IsArchived() {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "archived synergies cannot be modified").
					WithDetails(map[string]string{"status": string(found.Status)})
			}
			archiving := next != nil && *next == enums.SynergyStatusArchived
			if found.Status == enums.SynergyStatusCompleted && !archiving {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "completed synergies can only be archived").
					WithDetails(map[string]string{"status": string(found.Status)})
			}
			if next != nil && !found.Status.CanTransitionTo(*next) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
					WithDetails(map[string]string{"from": string(found.Status), "to": string(*next)})
			}

			if input.Description != nil {
				found.Description = input.Description
			}
			if archiving {
				if input.Description != nil {
					if err := r.Save(ctx, found); err != nil {
						return repo.StorageError(err, "update synergy")
					}
				}
				return s.archiveTx(ctx, tx, found, ReasonManual)
			}
			if input.EndDate != nil {
				end := input.EndDate.UTC()
				if end.Before(found.StartDate) {
					return pkgerrors.Validation("invalid synergy", map[string]string{"end_date": "must not precede start_date"})
				}
				found.EndDate = &end
			}
			if next != nil {
				found.Status = *next
			}
			if err := r.Save(ctx, found); err != nil {
				return repo.StorageError(err, "update synergy")
			}
			return s.emit(ctx, tx, enums.EventSynergyUpdated, found, "")
		})
	})
	if err != nil {
		return nil, err
	}
	return synergy, nil
}

// Archive is idempotent: archiving an archived synergy returns it unchanged.
func (s *service) Archive(ctx context.Context, id uuid.UUID) (*models.Synergy, error) {
	var synergy *models.Synergy
	err := s.withSynergyDealLock(ctx, id, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			found, err := s.repo.WithTx(tx).LockByID(ctx, id)
			if err != nil {
				return repo.StorageError(err, "synergy not found")
			}
			synergy = found
			return s.archiveTx(ctx, tx, found, ReasonManual)
		})
	})
	if err != nil {
		return nil, err
	}
	return synergy, nil
}

// Delete never removes the row; it archives.
func (s *service) Delete(ctx context.Context, id uuid.UUID) (*models.Synergy, error) {
	return s.Archive(ctx, id)
}

// withSynergyDealLock resolves the synergy's deal and holds the deal key
// around fn, the same key the deriver takes. The deal id never changes after
// creation so the unlocked read is safe.
func (s *service) withSynergyDealLock(ctx context.Context, id uuid.UUID, fn func() error) error {
	found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return repo.StorageError(err, "synergy not found")
	}
	return s.withDealLock(ctx, found.DealID, fn)
}
