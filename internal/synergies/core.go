package synergies

import (
	"context"
	"fmt"
	"time"

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

// Params wires both the synergy service and the deriver. Locker, Metrics
// and Logger are optional.
type Params struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Locker  locks.Locker
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

type core struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	locker  locks.Locker
	metrics *metrics.Metrics
	logg    *logger.Logger
	now     func() time.Time
}

func newCore(params Params) (*core, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("synergies repository required")
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
	return &core{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		locker:  locker,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// createTx validates the triple against the deal and inserts an Active
// synergy starting now.
func (c *core) createTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Synergy, error) {
	invalid := map[string]string{}
	if input.ContactID == uuid.Nil {
		invalid["contact_id"] = "required"
	}
	if input.CompanyID == uuid.Nil {
		invalid["company_id"] = "required"
	}
	if input.DealID == uuid.Nil {
		invalid["deal_id"] = "required"
	}
	if len(invalid) > 0 {
		return nil, pkgerrors.Validation("synergy requires contact, company and deal", invalid)
	}

	r := c.repo.WithTx(tx)
	deal, err := r.FindDeal(ctx, input.DealID)
	if err != nil {
		return nil, repo.StorageError(err, "deal not found")
	}
	if deal.IsArchived() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "deal is archived")
	}
	if !deal.HasBothAssociations() || *deal.ContactID != input.ContactID || *deal.CompanyID != input.CompanyID {
		return nil, pkgerrors.Validation("deal does not carry this contact and company", map[string]string{
			"deal_id": "association mismatch",
		})
	}
	for table, id := range map[string]uuid.UUID{"contacts": input.ContactID, "companies": input.CompanyID} {
		ok, err := r.Exists(ctx, table, id)
		if err != nil {
			return nil, repo.StorageError(err, "check synergy references")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "referenced "+table+" row not found")
		}
	}

	synergy := &models.Synergy{
		ContactID:   input.ContactID,
		CompanyID:   input.CompanyID,
		DealID:      input.DealID,
		Type:        enums.SynergyTypeDeal,
		Status:      enums.SynergyStatusActive,
		Description: input.Description,
		StartDate:   c.now().UTC(),
	}
	if err := r.Create(ctx, synergy); err != nil {
		err = repo.StorageError(err, "create synergy")
		if pkgerrors.Is(err, pkgerrors.CodeConflict) {
			c.metrics.Conflict("derive_synergy")
		}
		return nil, err
	}
	if err := c.emit(ctx, tx, enums.EventSynergyCreated, synergy, ""); err != nil {
		return nil, err
	}
	c.metrics.SynergyCreated()
	return synergy, nil
}

// archiveTx moves a synergy to archived and fixes its end date. Already
// archived rows are returned untouched.
func (c *core) archiveTx(ctx context.Context, tx *gorm.DB, synergy *models.Synergy, reason string) error {
	if synergy.IsArchived() {
		return nil
	}
	now := c.now().UTC()
	if err := c.repo.WithTx(tx).MarkArchived(ctx, synergy.ID, now); err != nil {
		return repo.StorageError(err, "archive synergy")
	}
	synergy.Status = enums.SynergyStatusArchived
	synergy.EndDate = &now
	if err := c.emit(ctx, tx, enums.EventSynergyArchived, synergy, reason); err != nil {
		return err
	}
	c.metrics.SynergyArchived()
	return nil
}

func (c *core) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, s *models.Synergy, reason string) error {
	return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSynergy,
		AggregateID:   s.ID,
		Data: payloads.SynergyEvent{
			SynergyID: s.ID,
			ContactID: s.ContactID,
			CompanyID: s.CompanyID,
			DealID:    s.DealID,
			Status:    s.Status,
			StartDate: s.StartDate,
			EndDate:   s.EndDate,
			Reason:    reason,
		},
	})
}

// withDealLock holds the keyed lock of the deal around fn.
func (c *core) withDealLock(ctx context.Context, dealID uuid.UUID, fn func() error) error {
	release, err := c.locker.Acquire(ctx, locks.Key("deal", dealID.String()))
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil && c.logg != nil {
			c.logg.Warn(c.logg.WithEntity(ctx, "deal", dealID.String()), "release deal lock failed")
		}
	}()
	return fn()
}
