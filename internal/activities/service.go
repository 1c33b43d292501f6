package activities

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/internal/locks"
	"github.com/angelmondragon/crm-backend/internal/repo"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/metrics"
	"github.com/angelmondragon/crm-backend/pkg/outbox"
	"github.com/angelmondragon/crm-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service keeps contact/company activity rows consistent and answers
// traversal queries in both directions.
type Service interface {
	LinkContactToCompany(ctx context.Context, contactID uuid.UUID, input LinkInput) (*models.AreaOfActivity, error)
	Unlink(ctx context.Context, id uuid.UUID) error
	SetPrimary(ctx context.Context, id uuid.UUID) (*models.AreaOfActivity, error)
	UpdateActivity(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.AreaOfActivity, error)
	CompaniesForContact(ctx context.Context, contactID uuid.UUID) ([]models.AreaOfActivity, error)
	ContactsForCompany(ctx context.Context, companyID uuid.UUID) ([]models.Contact, error)
	FindOrphans(ctx context.Context) ([]Orphan, error)
}

// ServiceParams wires the activity service. Locker, Metrics and Logger are
// optional.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Locker  locks.Locker
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	locker  locks.Locker
	metrics *metrics.Metrics
	logg    *logger.Logger
}

// NewService builds the activity service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("activities repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	locker := params.Locker
	if locker == nil {
		locker = locks.Noop{}
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		locker:  locker,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// LinkContactToCompany inserts a new activity row for the contact. When the
// row is flagged primary, or the contact has no primary yet, every other row
// of the contact loses the flag in the same transaction.
func (s *service) LinkContactToCompany(ctx context.Context, contactID uuid.UUID, input LinkInput) (*models.AreaOfActivity, error) {
	activity, err := newActivity(contactID, input)
	if err != nil {
		return nil, err
	}

	var previousPrimary *uuid.UUID
	err = s.withContactLock(ctx, contactID, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		if err := s.checkContact(ctx, r, contactID); err != nil {
			return err
		}
		if activity.CompanyID != nil {
			ok, err := r.CompanyExists(ctx, *activity.CompanyID)
			if err != nil {
				return repo.StorageError(err, "load company")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "company not found").
					WithDetails(map[string]string{"company_id": activity.CompanyID.String()})
			}
		}
		if err := checkBranch(ctx, r, activity.CompanyID, activity.BranchID); err != nil {
			return err
		}

		current, err := r.FindPrimary(ctx, contactID)
		if err != nil {
			return repo.StorageError(err, "load primary activity")
		}
		activity.IsPrimary = input.IsPrimary || current == nil
		if activity.IsPrimary && current != nil {
			if err := r.ClearPrimary(ctx, contactID, uuid.Nil); err != nil {
				return repo.StorageError(err, "clear primary activity")
			}
			previousPrimary = &current.ID
		}
		if err := r.Create(ctx, activity); err != nil {
			return repo.StorageError(err, "link contact to company")
		}
		return s.emit(ctx, tx, enums.EventActivityLinked, activity, previousPrimary)
	})
	if err != nil {
		s.recordConflict("link_contact", err)
		return nil, err
	}
	if previousPrimary != nil {
		s.metrics.PrimaryReassigned()
	}
	return activity, nil
}

// Unlink removes the row. The contact may be left without a primary.
func (s *service) Unlink(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return repo.StorageError(err, "activity not found")
	}
	err = s.withContactLock(ctx, existing.ContactID, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		if _, err := r.LockContact(ctx, existing.ContactID); err != nil {
			return repo.StorageError(err, "contact not found")
		}
		activity, err := r.FindByID(ctx, id)
		if err != nil {
			return repo.StorageError(err, "activity not found")
		}
		if err := r.Delete(ctx, id); err != nil {
			return repo.StorageError(err, "unlink activity")
		}
		return s.emit(ctx, tx, enums.EventActivityUnlinked, activity, nil)
	})
	if err != nil {
		s.recordConflict("unlink", err)
	}
	return err
}

// SetPrimary promotes an existing row. Promoting the current primary is a no-op.
func (s *service) SetPrimary(ctx context.Context, id uuid.UUID) (*models.AreaOfActivity, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.StorageError(err, "activity not found")
	}

	var (
		activity *models.AreaOfActivity
		changed  bool
	)
	err = s.withContactLock(ctx, existing.ContactID, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		if err := s.checkContact(ctx, r, existing.ContactID); err != nil {
			return err
		}
		found, err := r.FindByID(ctx, id)
		if err != nil {
			return repo.StorageError(err, "activity not found")
		}
		activity = found
		if found.IsPrimary {
			return nil
		}
		current, err := r.FindPrimary(ctx, found.ContactID)
		if err != nil {
			return repo.StorageError(err, "load primary activity")
		}
		if err := r.ClearPrimary(ctx, found.ContactID, found.ID); err != nil {
			return repo.StorageError(err, "clear primary activity")
		}
		found.IsPrimary = true
		if err := r.Save(ctx, found); err != nil {
			return repo.StorageError(err, "set primary activity")
		}
		changed = true
		var previous *uuid.UUID
		if current != nil {
			previous = &current.ID
		}
		return s.emit(ctx, tx, enums.EventPrimaryActivityChanged, found, previous)
	})
	if err != nil {
		s.recordConflict("set_primary", err)
		return nil, err
	}
	if changed {
		s.metrics.PrimaryReassigned()
	}
	return activity, nil
}

func (s *service) UpdateActivity(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.AreaOfActivity, error) {
	if input.ClearBranch && input.BranchID != nil {
		return nil, pkgerrors.Validation("invalid activity", map[string]string{"branch_id": "cannot set and clear branch together"})
	}
	var activity *models.AreaOfActivity
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		found, err := r.FindByID(ctx, id)
		if err != nil {
			return repo.StorageError(err, "activity not found")
		}
		if input.Role != nil {
			found.Role = trimmed(input.Role)
		}
		if input.JobDescription != nil {
			found.JobDescription = trimmed(input.JobDescription)
		}
		switch {
		case input.ClearBranch:
			found.BranchID = nil
		case input.BranchID != nil:
			if err := checkBranch(ctx, r, found.CompanyID, input.BranchID); err != nil {
				return err
			}
			found.BranchID = input.BranchID
		}
		if err := r.Save(ctx, found); err != nil {
			return repo.StorageError(err, "update activity")
		}
		activity = found
		return s.emit(ctx, tx, enums.EventActivityUpdated, found, nil)
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}

func (s *service) CompaniesForContact(ctx context.Context, contactID uuid.UUID) ([]models.AreaOfActivity, error) {
	ok, err := s.repo.ContactExists(ctx, contactID)
	if err != nil {
		return nil, repo.StorageError(err, "load contact")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
	}
	rows, err := s.repo.ListForContact(ctx, contactID)
	if err != nil {
		return nil, repo.StorageError(err, "list activities")
	}
	return rows, nil
}

// ContactsForCompany returns every contact linked to the company once, no
// matter how many rows link them.
func (s *service) ContactsForCompany(ctx context.Context, companyID uuid.UUID) ([]models.Contact, error) {
	ok, err := s.repo.CompanyExists(ctx, companyID)
	if err != nil {
		return nil, repo.StorageError(err, "load company")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
	}
	ids, err := s.repo.ContactIDsForCompany(ctx, companyID)
	if err != nil {
		return nil, repo.StorageError(err, "list company contacts")
	}
	contacts, err := s.repo.FindContacts(ctx, dedupe(ids))
	if err != nil {
		return nil, repo.StorageError(err, "load contacts")
	}
	return contacts, nil
}

// FindOrphans reports rows pointing at deleted companies. It never repairs them.
func (s *service) FindOrphans(ctx context.Context) ([]Orphan, error) {
	orphans, err := s.repo.FindOrphans(ctx)
	if err != nil {
		return nil, repo.StorageError(err, "find orphans")
	}
	return orphans, nil
}

// withContactLock runs fn in a transaction while holding the keyed lock for
// the contact. The row lock taken inside fn covers single-instance races;
// the keyed lock extends that across instances.
func (s *service) withContactLock(ctx context.Context, contactID uuid.UUID, fn func(tx *gorm.DB) error) error {
	release, err := s.locker.Acquire(ctx, locks.Key("contact", contactID.String()))
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithEntity(ctx, "contact", contactID.String()), "release contact lock failed")
		}
	}()
	return s.tx.WithTx(ctx, fn)
}

func (s *service) checkContact(ctx context.Context, r Repository, contactID uuid.UUID) error {
	contact, err := r.LockContact(ctx, contactID)
	if err != nil {
		return repo.StorageError(err, "contact not found")
	}
	if contact.Status == enums.ContactStatusArchived {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "contact is archived")
	}
	return nil
}

func (s *service) recordConflict(op string, err error) {
	if pkgerrors.Is(err, pkgerrors.CodeConflict) {
		s.metrics.Conflict(op)
	}
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, a *models.AreaOfActivity, previousPrimary *uuid.UUID) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAreaOfActivity,
		AggregateID:   a.ID,
		Data: payloads.ActivityEvent{
			AreaOfActivityID:  a.ID,
			ContactID:         a.ContactID,
			CompanyID:         a.CompanyID,
			CompanyName:       a.CompanyName,
			IsPrimary:         a.IsPrimary,
			PreviousPrimaryID: previousPrimary,
		},
	})
}

func newActivity(contactID uuid.UUID, input LinkInput) (*models.AreaOfActivity, error) {
	if contactID == uuid.Nil {
		return nil, pkgerrors.Validation("invalid activity", map[string]string{"contact_id": "required"})
	}
	activity := &models.AreaOfActivity{
		ContactID:      contactID,
		Role:           trimmed(input.Role),
		JobDescription: trimmed(input.JobDescription),
		BranchID:       input.BranchID,
	}
	switch {
	case input.CompanyID != nil && *input.CompanyID != uuid.Nil:
		id := *input.CompanyID
		activity.CompanyID = &id
	case trimmed(input.CompanyName) != nil:
		activity.CompanyName = trimmed(input.CompanyName)
	default:
		return nil, pkgerrors.Validation("invalid activity", map[string]string{
			"company": "company_id or company_name is required",
		})
	}
	if activity.BranchID != nil && activity.CompanyID == nil {
		return nil, pkgerrors.Validation("invalid activity", map[string]string{
			"branch_id": "branch requires company_id",
		})
	}
	return activity, nil
}

func checkBranch(ctx context.Context, r Repository, companyID, branchID *uuid.UUID) error {
	if branchID == nil {
		return nil
	}
	if companyID == nil {
		return pkgerrors.Validation("invalid activity", map[string]string{"branch_id": "branch requires company_id"})
	}
	branch, err := r.FindBranch(ctx, *branchID)
	if err != nil {
		if pkgerrors.Is(repo.StorageError(err, ""), pkgerrors.CodeNotFound) {
			return pkgerrors.Validation("invalid activity", map[string]string{"branch_id": "branch not found"})
		}
		return repo.StorageError(err, "load branch")
	}
	if branch.CompanyID != *companyID {
		return pkgerrors.Validation("invalid activity", map[string]string{"branch_id": "branch belongs to another company"})
	}
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
