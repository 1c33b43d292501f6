package synergies

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/internal/repo"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
)

// Deriver turns deal association changes into synergy lifecycle changes.
type Deriver interface {
	// OnDealAssociationChanged locks the deal and derives in its own transaction.
	OnDealAssociationChanged(ctx context.Context, deal models.Deal, previousContactID, previousCompanyID *uuid.UUID) (*Derivation, error)
	// OnDealAssociationChangedTx joins the caller's transaction. The caller
	// must already hold the deal's lock.
	OnDealAssociationChangedTx(ctx context.Context, tx *gorm.DB, deal models.Deal, previousContactID, previousCompanyID *uuid.UUID) (*Derivation, error)
	// Rederive reloads the deal and settles its synergies against its
	// current association. Used by repair tooling.
	Rederive(ctx context.Context, dealID uuid.UUID) (*Derivation, error)
}

type deriver struct {
	*core
}

// NewDeriver builds the synergy deriver.
func NewDeriver(params Params) (Deriver, error) {
	c, err := newCore(params)
	if err != nil {
		return nil, err
	}
	return &deriver{core: c}, nil
}

func (d *deriver) OnDealAssociationChanged(ctx context.Context, deal models.Deal, previousContactID, previousCompanyID *uuid.UUID) (*Derivation, error) {
	var out *Derivation
	err := d.withDealLock(ctx, deal.ID, func() error {
		return d.tx.WithTx(ctx, func(tx *gorm.DB) error {
			locked, err := d.repo.WithTx(tx).LockDeal(ctx, deal.ID)
			if err != nil {
				return repo.StorageError(err, "deal not found")
			}
			out, err = d.OnDealAssociationChangedTx(ctx, tx, *locked, previousContactID, previousCompanyID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OnDealAssociationChangedTx archives every live synergy of the deal that no
// longer matches its (contact, company) pair, including the one of the
// previous pair, and creates the synergy of the current pair when missing.
// Calling it again with the same association changes nothing.
func (d *deriver) OnDealAssociationChangedTx(ctx context.Context, tx *gorm.DB, deal models.Deal, previousContactID, previousCompanyID *uuid.UUID) (*Derivation, error) {
	r := d.repo.WithTx(tx)
	out := &Derivation{Archived: []models.Synergy{}}

	live, err := r.ListActiveForDeal(ctx, deal.ID)
	if err != nil {
		return nil, repo.StorageError(err, "list deal synergies")
	}
	if previousContactID != nil && previousCompanyID != nil {
		prev, err := r.FindActiveByTriple(ctx, *previousContactID, *previousCompanyID, deal.ID)
		if err != nil {
			return nil, repo.StorageError(err, "load previous synergy")
		}
		if prev != nil && !containsSynergy(live, prev.ID) {
			live = append(live, *prev)
		}
	}

	reason := ReasonAssociationChanged
	if deal.IsArchived() {
		reason = ReasonDealArchived
	}

	var current *models.Synergy
	for i := range live {
		s := live[i]
		if !deal.IsArchived() && deal.HasBothAssociations() && s.Matches(*deal.ContactID, *deal.CompanyID, deal.ID) && current == nil {
			current = &s
			continue
		}
		if err := d.archiveTx(ctx, tx, &s, reason); err != nil {
			return nil, err
		}
		out.Archived = append(out.Archived, s)
	}

	if current == nil && !deal.IsArchived() && deal.HasBothAssociations() {
		created, err := d.createTx(ctx, tx, CreateInput{
			ContactID: *deal.ContactID,
			CompanyID: *deal.CompanyID,
			DealID:    deal.ID,
		})
		if err != nil {
			return nil, err
		}
		out.Created = created
	}

	if d.logg != nil && (out.Created != nil || len(out.Archived) > 0) {
		logCtx := d.logg.WithEntity(ctx, "deal", deal.ID.String())
		logCtx = d.logg.WithFields(logCtx, map[string]any{
			"synergies_created":  out.Created != nil,
			"synergies_archived": len(out.Archived),
		})
		d.logg.Info(logCtx, "synergies derived")
	}
	return out, nil
}

func (d *deriver) Rederive(ctx context.Context, dealID uuid.UUID) (*Derivation, error) {
	var out *Derivation
	err := d.withDealLock(ctx, dealID, func() error {
		return d.tx.WithTx(ctx, func(tx *gorm.DB) error {
			deal, err := d.repo.WithTx(tx).LockDeal(ctx, dealID)
			if err != nil {
				return repo.StorageError(err, "deal not found")
			}
			out, err = d.OnDealAssociationChangedTx(ctx, tx, *deal, deal.ContactID, deal.CompanyID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func containsSynergy(rows []models.Synergy, id uuid.UUID) bool {
	for _, row := range rows {
		if row.ID == id {
			return true
		}
	}
	return false
}
