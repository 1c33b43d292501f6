package activities

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/internal/repo"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
)

// Repository defines persistence operations for activity rows and the
// lookups they need on contacts, companies and branches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockContact(ctx context.Context, contactID uuid.UUID) (*models.Contact, error)
	ContactExists(ctx context.Context, contactID uuid.UUID) (bool, error)
	CompanyExists(ctx context.Context, companyID uuid.UUID) (bool, error)
	FindBranch(ctx context.Context, branchID uuid.UUID) (*models.Branch, error)
	Create(ctx context.Context, activity *models.AreaOfActivity) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AreaOfActivity, error)
	FindPrimary(ctx context.Context, contactID uuid.UUID) (*models.AreaOfActivity, error)
	ClearPrimary(ctx context.Context, contactID uuid.UUID, except uuid.UUID) error
	Save(ctx context.Context, activity *models.AreaOfActivity) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListForContact(ctx context.Context, contactID uuid.UUID) ([]models.AreaOfActivity, error)
	ContactIDsForCompany(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error)
	FindContacts(ctx context.Context, ids []uuid.UUID) ([]models.Contact, error)
	FindOrphans(ctx context.Context) ([]Orphan, error)
}

type gormRepository struct {
	repo.Base
}

// NewRepository constructs an activity repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{Base: r.Base.WithTx(tx)}
}

// LockContact takes the per-contact row lock every primary-flag change
// queues behind.
func (r *gormRepository) LockContact(ctx context.Context, contactID uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	if err := r.ForUpdate(ctx).Where("id = ?", contactID).First(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *gormRepository) ContactExists(ctx context.Context, contactID uuid.UUID) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(&models.Contact{}).Where("id = ?", contactID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository) CompanyExists(ctx context.Context, companyID uuid.UUID) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(&models.Company{}).Where("id = ?", companyID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository) FindBranch(ctx context.Context, branchID uuid.UUID) (*models.Branch, error) {
	var branch models.Branch
	if err := r.DB(ctx).Where("id = ?", branchID).First(&branch).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *gormRepository) Create(ctx context.Context, activity *models.AreaOfActivity) error {
	return r.DB(ctx).Create(activity).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.AreaOfActivity, error) {
	var activity models.AreaOfActivity
	if err := r.DB(ctx).Where("id = ?", id).First(&activity).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

// FindPrimary returns the contact's primary row, or nil when there is none.
func (r *gormRepository) FindPrimary(ctx context.Context, contactID uuid.UUID) (*models.AreaOfActivity, error) {
	var rows []models.AreaOfActivity
	err := r.DB(ctx).
		Where("contact_id = ? AND is_primary = ?", contactID, true).
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *gormRepository) ClearPrimary(ctx context.Context, contactID uuid.UUID, except uuid.UUID) error {
	return r.DB(ctx).Model(&models.AreaOfActivity{}).
		Where("contact_id = ? AND is_primary = ? AND id <> ?", contactID, true, except).
		Update("is_primary", false).Error
}

func (r *gormRepository) Save(ctx context.Context, activity *models.AreaOfActivity) error {
	return r.DB(ctx).Save(activity).Error
}

func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.AreaOfActivity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListForContact returns the contact's rows, primary first, then oldest first.
func (r *gormRepository) ListForContact(ctx context.Context, contactID uuid.UUID) ([]models.AreaOfActivity, error) {
	rows := []models.AreaOfActivity{}
	err := r.DB(ctx).
		Where("contact_id = ?", contactID).
		Order("is_primary DESC").Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *gormRepository) ContactIDsForCompany(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.DB(ctx).Model(&models.AreaOfActivity{}).
		Distinct("contact_id").
		Where("company_id = ?", companyID).
		Pluck("contact_id", &ids).Error
	return ids, err
}

func (r *gormRepository) FindContacts(ctx context.Context, ids []uuid.UUID) ([]models.Contact, error) {
	rows := []models.Contact{}
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.DB(ctx).
		Preload("Emails", func(db *gorm.DB) *gorm.DB { return db.Order("contact_emails.is_primary DESC") }).
		Preload("Phones").
		Where("id IN ?", ids).
		Order("last_name ASC").Order("first_name ASC").Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// FindOrphans lists rows whose company_id no longer resolves.
func (r *gormRepository) FindOrphans(ctx context.Context) ([]Orphan, error) {
	orphans := []Orphan{}
	err := r.DB(ctx).
		Table("areas_of_activity AS a").
		Select("a.id AS area_of_activity_id, a.contact_id AS contact_id, a.company_id AS company_id").
		Joins("LEFT JOIN companies c ON c.id = a.company_id").
		Where("a.company_id IS NOT NULL AND c.id IS NULL").
		Order("a.contact_id ASC").Order("a.id ASC").
		Scan(&orphans).Error
	return orphans, err
}
