package synergies

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/internal/repo"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
)

// Repository defines persistence operations for synergies. Rows are only
// ever inserted and updated; there is no delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, synergy *models.Synergy) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Synergy, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Synergy, error)
	Save(ctx context.Context, synergy *models.Synergy) error
	MarkArchived(ctx context.Context, id uuid.UUID, endDate time.Time) error
	FindActiveByTriple(ctx context.Context, contactID, companyID, dealID uuid.UUID) (*models.Synergy, error)
	ListActiveForDeal(ctx context.Context, dealID uuid.UUID) ([]models.Synergy, error)
	ListForDeal(ctx context.Context, dealID uuid.UUID) ([]models.Synergy, error)
	ListActiveForContact(ctx context.Context, contactID uuid.UUID) ([]models.Synergy, error)
	ListActiveForCompany(ctx context.Context, companyID uuid.UUID) ([]models.Synergy, error)
	FindDeal(ctx context.Context, dealID uuid.UUID) (*models.Deal, error)
	LockDeal(ctx context.Context, dealID uuid.UUID) (*models.Deal, error)
	Exists(ctx context.Context, table string, id uuid.UUID) (bool, error)
}

type gormRepository struct {
	repo.Base
}

// NewRepository constructs a synergy repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{Base: r.Base.WithTx(tx)}
}

func (r *gormRepository) Create(ctx context.Context, synergy *models.Synergy) error {
	return r.DB(ctx).Create(synergy).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Synergy, error) {
	var synergy models.Synergy
	if err := r.DB(ctx).Where("id = ?", id).First(&synergy).Error; err != nil {
		return nil, err
	}
	return &synergy, nil
}

func (r *gormRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.Synergy, error) {
	var synergy models.Synergy
	if err := r.ForUpdate(ctx).Where("id = ?", id).First(&synergy).Error; err != nil {
		return nil, err
	}
	return &synergy, nil
}

func (r *gormRepository) Save(ctx context.Context, synergy *models.Synergy) error {
	return r.DB(ctx).Save(synergy).Error
}

// MarkArchived writes only the archival columns so concurrent description
// edits on the same row survive.
func (r *gormRepository) MarkArchived(ctx context.Context, id uuid.UUID, endDate time.Time) error {
	return r.DB(ctx).
		Model(&models.Synergy{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":   enums.SynergyStatusArchived,
			"end_date": endDate,
		}).Error
}

// FindActiveByTriple returns the non-archived synergy of the triple, or nil.
func (r *gormRepository) FindActiveByTriple(ctx context.Context, contactID, companyID, dealID uuid.UUID) (*models.Synergy, error) {
	var rows []models.Synergy
	err := r.DB(ctx).
		Where("contact_id = ? AND company_id = ? AND deal_id = ?", contactID, companyID, dealID).
		Where("status <> ?", enums.SynergyStatusArchived).
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// ListActiveForDeal row-locks the live synergies of the deal until the
// surrounding transaction ends.
func (r *gormRepository) ListActiveForDeal(ctx context.Context, dealID uuid.UUID) ([]models.Synergy, error) {
	return r.list(r.ForUpdate(ctx), "deal_id = ?", dealID, true)
}

func (r *gormRepository) ListForDeal(ctx context.Context, dealID uuid.UUID) ([]models.Synergy, error) {
	return r.list(r.DB(ctx), "deal_id = ?", dealID, false)
}

func (r *gormRepository) ListActiveForContact(ctx context.Context, contactID uuid.UUID) ([]models.Synergy, error) {
	return r.list(r.DB(ctx), "contact_id = ?", contactID, true)
}

func (r *gormRepository) ListActiveForCompany(ctx context.Context, companyID uuid.UUID) ([]models.Synergy, error) {
	return r.list(r.DB(ctx), "company_id = ?", companyID, true)
}

func (r *gormRepository) list(query *gorm.DB, cond string, id uuid.UUID, activeOnly bool) ([]models.Synergy, error) {
	rows := []models.Synergy{}
	query = query.Where(cond, id)
	if activeOnly {
		query = query.Where("status <> ?", enums.SynergyStatusArchived)
	}
	err := query.Order("created_at ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *gormRepository) FindDeal(ctx context.Context, dealID uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	if err := r.DB(ctx).Where("id = ?", dealID).First(&deal).Error; err != nil {
		return nil, err
	}
	return &deal, nil
}

// LockDeal row-locks the deal so association changes of one deal derive
// one after another.
func (r *gormRepository) LockDeal(ctx context.Context, dealID uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	if err := r.ForUpdate(ctx).Where("id = ?", dealID).First(&deal).Error; err != nil {
		return nil, err
	}
	return &deal, nil
}

// Exists checks a row in one of the tables a synergy references.
func (r *gormRepository) Exists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.DB(ctx).Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
