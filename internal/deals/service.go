package deals

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/internal/locks"
	"github.com/angelmondragon/crm-backend/internal/repo"
	"github.com/angelmondragon/crm-backend/internal/synergies"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/outbox"
	"github.com/angelmondragon/crm-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/crm-backend/pkg/pagination"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type synergyDeriver interface {
	OnDealAssociationChangedTx(ctx context.Context, tx *gorm.DB, deal models.Deal, previousContactID, previousCompanyID *uuid.UUID) (*synergies.Derivation, error)
}

// Service manages deals and keeps their synergies in step with the
// deal's contact and company.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Deal, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Deal, error)
	Archive(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.Deal, error)
}

// ServiceParams wires the deal service. Locker and Logger are optional.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Deriver synergyDeriver
	Locker  locks.Locker
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	deriver synergyDeriver
	locker  locks.Locker
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a deal service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("deals repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Deriver == nil {
		return nil, fmt.Errorf("synergy deriver required")
	}
	locker := params.Locker
	if locker == nil {
		locker = locks.Noop{}
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		deriver: params.Deriver,
		locker:  locker,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Deal, error) {
	invalid := map[string]string{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		invalid["name"] = "required"
	}
	if input.Value.IsNegative() {
		invalid["value"] = "must not be negative"
	}
	currency, ok := normalizeCurrency(input.Currency)
	if !ok {
		invalid["currency"] = "must be a three letter ISO code"
	}
	stage := enums.DealStageLead
	if strings.TrimSpace(input.StageID) != "" {
		parsed, err := enums.ParseDealStage(input.StageID)
		if err != nil {
			invalid["stage_id"] = err.Error()
		}
		stage = parsed
	}
	if len(invalid) > 0 {
		return nil, pkgerrors.Validation("invalid deal", invalid)
	}

	deal := &models.Deal{
		ID:        uuid.New(),
		Name:      name,
		Value:     input.Value.Round(2),
		Currency:  currency,
		StageID:   stage,
		ContactID: nonNilID(input.ContactID),
		CompanyID: nonNilID(input.CompanyID),
		CloseDate: utc(input.CloseDate),
		Notes:     trimmed(input.Notes),
		Tags:      normalizeTags(input.Tags),
	}

	err := s.withDealLock(ctx, deal.ID, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		if err := s.checkReferences(ctx, r, deal.ContactID, deal.CompanyID); err != nil {
			return err
		}
		if err := r.Create(ctx, deal); err != nil {
			return repo.StorageError(err, "create deal")
		}
		if err := s.emit(ctx, tx, enums.EventDealCreated, deal, nil); err != nil {
			return err
		}
		if deal.HasBothAssociations() {
			if _, err := s.deriver.OnDealAssociationChangedTx(ctx, tx, *deal, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deal, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	deal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.StorageError(err, "deal not found")
	}
	return deal, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	stage := ""
	if strings.TrimSpace(params.Stage) != "" {
		parsed, err := enums.ParseDealStage(params.Stage)
		if err != nil {
			return nil, pkgerrors.Validation("invalid deal filter", map[string]string{"stage": err.Error()})
		}
		stage = string(parsed)
	}
	rows, err := s.repo.List(ctx, listQuery{
		search:          strings.TrimSpace(params.Search),
		stage:           stage,
		tag:             strings.TrimSpace(params.Tag),
		contactID:       params.ContactID,
		companyID:       params.CompanyID,
		includeArchived: params.IncludeArchived,
		cursor:          cursor,
		limit:           pagination.LimitWithBuffer(params.Limit),
	})
	if err != nil {
		return nil, repo.StorageError(err, "list deals")
	}
	page := pagination.Trim(rows, params.Limit, dealCursor)
	return &page, nil
}

// Update applies the patch under the deal lock. A stage change and an
// association change each emit their own event; an association change also
// re-derives the deal's synergies in the same transaction.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Deal, error) {
	var deal *models.Deal
	err := s.withDealLock(ctx, id, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		found, err := r.LockByID(ctx, id)
		if err != nil {
			return repo.StorageError(err, "deal not found")
		}
		if found.IsArchived() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "archived deals cannot be modified")
		}

		prevStage := found.StageID
		prevContact, prevCompany := found.ContactID, found.CompanyID
		if err := applyUpdate(found, input); err != nil {
			return err
		}
		associationChanged := !sameID(prevContact, found.ContactID) || !sameID(prevCompany, found.CompanyID)
		if associationChanged {
			if err := s.checkReferences(ctx, r, changedID(prevContact, found.ContactID), changedID(prevCompany, found.CompanyID)); err != nil {
				return err
			}
		}
		if err := r.Save(ctx, found); err != nil {
			return repo.StorageError(err, "update deal")
		}
		deal = found

		if err := s.emit(ctx, tx, enums.EventDealUpdated, found, nil); err != nil {
			return err
		}
		if prevStage != found.StageID {
			if err := s.emit(ctx, tx, enums.EventDealStageChanged, found, &prevStage); err != nil {
				return err
			}
		}
		if !associationChanged {
			return nil
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDealAssociationChanged,
			AggregateType: enums.AggregateDeal,
			AggregateID:   found.ID,
			Data: payloads.DealAssociationChangedEvent{
				DealID:            found.ID,
				PreviousContactID: prevContact,
				PreviousCompanyID: prevCompany,
				ContactID:         found.ContactID,
				CompanyID:         found.CompanyID,
			},
		}); err != nil {
			return err
		}
		_, err = s.deriver.OnDealAssociationChangedTx(ctx, tx, *found, prevContact, prevCompany)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deal, nil
}

// Archive stamps archived_at and archives every live synergy of the deal.
// Archiving an archived deal returns it unchanged.
func (s *service) Archive(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var deal *models.Deal
	err := s.withDealLock(ctx, id, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		found, err := r.LockByID(ctx, id)
		if err != nil {
			return repo.StorageError(err, "deal not found")
		}
		deal = found
		if found.IsArchived() {
			return nil
		}
		now := s.now().UTC()
		found.ArchivedAt = &now
		if err := r.Save(ctx, found); err != nil {
			return repo.StorageError(err, "archive deal")
		}
		if err := s.emit(ctx, tx, enums.EventDealArchived, found, nil); err != nil {
			return err
		}
		_, err = s.deriver.OnDealAssociationChangedTx(ctx, tx, *found, found.ContactID, found.CompanyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deal, nil
}

// Delete is an archive; deal rows are kept for synergy history.
func (s *service) Delete(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	return s.Archive(ctx, id)
}

// checkReferences only verifies ids that are set.
func (s *service) checkReferences(ctx context.Context, r Repository, contactID, companyID *uuid.UUID) error {
	if contactID != nil {
		contact, err := r.FindContact(ctx, *contactID)
		if err != nil {
			return repo.StorageError(err, "contact not found")
		}
		if contact.Status == enums.ContactStatusArchived {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contact is archived").
				WithDetails(map[string]string{"contact_id": contactID.String()})
		}
	}
	if companyID != nil {
		ok, err := r.CompanyExists(ctx, *companyID)
		if err != nil {
			return repo.StorageError(err, "load company")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "company not found").
				WithDetails(map[string]string{"company_id": companyID.String()})
		}
	}
	return nil
}

func (s *service) withDealLock(ctx context.Context, dealID uuid.UUID, fn func(tx *gorm.DB) error) error {
	release, err := s.locker.Acquire(ctx, locks.Key("deal", dealID.String()))
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithEntity(ctx, "deal", dealID.String()), "release deal lock failed")
		}
	}()
	return s.tx.WithTx(ctx, fn)
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, deal *models.Deal, previousStage *enums.DealStage) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDeal,
		AggregateID:   deal.ID,
		Data: payloads.DealEvent{
			DealID:          deal.ID,
			Name:            deal.Name,
			Value:           deal.Value,
			Currency:        deal.Currency,
			StageID:         deal.StageID,
			ContactID:       deal.ContactID,
			CompanyID:       deal.CompanyID,
			PreviousStageID: previousStage,
		},
	})
}

func applyUpdate(deal *models.Deal, input UpdateInput) error {
	invalid := map[string]string{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			invalid["name"] = "required"
		}
		deal.Name = name
	}
	if input.Value != nil {
		if input.Value.IsNegative() {
			invalid["value"] = "must not be negative"
		}
		deal.Value = input.Value.Round(2)
	}
	if input.Currency != nil {
		currency, ok := normalizeCurrency(*input.Currency)
		if !ok {
			invalid["currency"] = "must be a three letter ISO code"
		}
		deal.Currency = currency
	}
	if input.StageID != nil {
		stage, err := enums.ParseDealStage(*input.StageID)
		if err != nil {
			invalid["stage_id"] = err.Error()
		}
		deal.StageID = stage
	}
	switch {
	case input.ClearContact && input.ContactID != nil:
		invalid["contact_id"] = "cannot set and clear in one update"
	case input.ClearContact:
		deal.ContactID = nil
	case input.ContactID != nil:
		deal.ContactID = nonNilID(input.ContactID)
	}
	switch {
	case input.ClearCompany && input.CompanyID != nil:
		invalid["company_id"] = "cannot set and clear in one update"
	case input.ClearCompany:
		deal.CompanyID = nil
	case input.CompanyID != nil:
		deal.CompanyID = nonNilID(input.CompanyID)
	}
	if input.CloseDate != nil {
		deal.CloseDate = utc(input.CloseDate)
	}
	if input.Notes != nil {
		deal.Notes = trimmed(input.Notes)
	}
	if input.Tags != nil {
		deal.Tags = normalizeTags(*input.Tags)
	}
	if len(invalid) > 0 {
		return pkgerrors.Validation("invalid deal", invalid)
	}
	return nil
}

// normalizeCurrency upper-cases the code; empty input means the default.
func normalizeCurrency(raw string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return models.DefaultCurrency, true
	}
	return code, currencyPattern.MatchString(code)
}

// changedID returns next when it differs from prev, so unchanged
// associations are not re-validated.
func changedID(prev, next *uuid.UUID) *uuid.UUID {
	if sameID(prev, next) {
		return nil
	}
	return next
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func nonNilID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	v := *id
	return &v
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
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
