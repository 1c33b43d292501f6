package deals

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/internal/repo"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/pagination"
)

// Repository defines persistence operations for deals.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, deal *models.Deal) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	List(ctx context.Context, opts listQuery) ([]models.Deal, error)
	Save(ctx context.Context, deal *models.Deal) error
	FindContact(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	CompanyExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type gormRepository struct {
	repo.Base
}

// NewRepository constructs a deal repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{Base: r.Base.WithTx(tx)}
}

func (r *gormRepository) Create(ctx context.Context, deal *models.Deal) error {
	return r.DB(ctx).Create(deal).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	if err := r.DB(ctx).Where("id = ?", id).First(&deal).Error; err != nil {
		return nil, err
	}
	return &deal, nil
}

func (r *gormRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	if err := r.ForUpdate(ctx).Where("id = ?", id).First(&deal).Error; err != nil {
		return nil, err
	}
	return &deal, nil
}

func (r *gormRepository) List(ctx context.Context, opts listQuery) ([]models.Deal, error) {
	query := r.DB(ctx).Model(&models.Deal{})
	if !opts.includeArchived {
		query = query.Where("deals.archived_at IS NULL")
	}
	if opts.search != "" {
		query = query.Where("LOWER(deals.name) LIKE ?", "%"+strings.ToLower(opts.search)+"%")
	}
	if opts.stage != "" {
		query = query.Where("deals.stage_id = ?", opts.stage)
	}
	if opts.contactID != nil {
		query = query.Where("deals.contact_id = ?", *opts.contactID)
	}
	if opts.companyID != nil {
		query = query.Where("deals.company_id = ?", *opts.companyID)
	}
	query = r.WhereTag(query, "deals.tags", opts.tag)
	query = pagination.ApplyCursor(query, "deals", opts.cursor).Limit(opts.limit)

	var rows []models.Deal
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormRepository) Save(ctx context.Context, deal *models.Deal) error {
	return r.DB(ctx).Save(deal).Error
}

func (r *gormRepository) FindContact(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	if err := r.DB(ctx).Where("id = ?", id).First(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *gormRepository) CompanyExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(&models.Company{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
