package companies

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/crm-backend/internal/repo"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/pagination"
)

// Repository defines persistence operations for companies and branches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, company *models.Company) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, opts listQuery) ([]models.Company, error)
	Save(ctx context.Context, company *models.Company) error
	Delete(ctx context.Context, id uuid.UUID) error
	References(ctx context.Context, id uuid.UUID) (Reference, error)
	CreateBranch(ctx context.Context, branch *models.Branch) error
	FindBranch(ctx context.Context, companyID, branchID uuid.UUID) (*models.Branch, error)
	ListBranches(ctx context.Context, companyID uuid.UUID) ([]models.Branch, error)
	SaveBranch(ctx context.Context, branch *models.Branch) error
	DeleteBranch(ctx context.Context, companyID, branchID uuid.UUID) error
}

type gormRepository struct {
	repo.Base
}

// NewRepository constructs a company repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{Base: r.Base.WithTx(tx)}
}

func (r *gormRepository) Create(ctx context.Context, company *models.Company) error {
	return r.DB(ctx).Create(company).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	err := r.DB(ctx).
		Preload("Branches", func(db *gorm.DB) *gorm.DB { return db.Order("branches.name ASC") }).
		Where("id = ?", id).
		First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *gormRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(&models.Company{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository) List(ctx context.Context, opts listQuery) ([]models.Company, error) {
	query := r.DB(ctx).Model(&models.Company{})
	if opts.search != "" {
		query = query.Where("LOWER(companies.name) LIKE ?", "%"+strings.ToLower(opts.search)+"%")
	}
	if opts.country != "" {
		query = query.Where("LOWER(companies.country) = ?", strings.ToLower(opts.country))
	}
	query = r.WhereTag(query, "companies.tags", opts.tag)
	query = pagination.ApplyCursor(query, "companies", opts.cursor).Limit(opts.limit)

	var rows []models.Company
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormRepository) Save(ctx context.Context, company *models.Company) error {
	return r.DB(ctx).Omit(clause.Associations).Save(company).Error
}

func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.DB(ctx).Where("company_id = ?", id).Delete(&models.Branch{}).Error; err != nil {
		return err
	}
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Company{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// References lists deals and synergies that still point at the company.
func (r *gormRepository) References(ctx context.Context, id uuid.UUID) (Reference, error) {
	var ref Reference
	if err := r.DB(ctx).Model(&models.Deal{}).Where("company_id = ?", id).Pluck("id", &ref.DealIDs).Error; err != nil {
		return ref, err
	}
	if err := r.DB(ctx).Model(&models.Synergy{}).Where("company_id = ?", id).Pluck("id", &ref.SynergyIDs).Error; err != nil {
		return ref, err
	}
	return ref, nil
}

func (r *gormRepository) CreateBranch(ctx context.Context, branch *models.Branch) error {
	return r.DB(ctx).Create(branch).Error
}

func (r *gormRepository) FindBranch(ctx context.Context, companyID, branchID uuid.UUID) (*models.Branch, error) {
	var branch models.Branch
	if err := r.DB(ctx).Where("id = ? AND company_id = ?", branchID, companyID).First(&branch).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *gormRepository) ListBranches(ctx context.Context, companyID uuid.UUID) ([]models.Branch, error) {
	rows := []models.Branch{}
	err := r.DB(ctx).Where("company_id = ?", companyID).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *gormRepository) SaveBranch(ctx context.Context, branch *models.Branch) error {
	return r.DB(ctx).Save(branch).Error
}

// DeleteBranch removes the branch and detaches activities that pointed at it.
func (r *gormRepository) DeleteBranch(ctx context.Context, companyID, branchID uuid.UUID) error {
	if err := r.DB(ctx).Model(&models.AreaOfActivity{}).
		Where("branch_id = ?", branchID).
		Update("branch_id", nil).Error; err != nil {
		return err
	}
	res := r.DB(ctx).Where("id = ? AND company_id = ?", branchID, companyID).Delete(&models.Branch{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
