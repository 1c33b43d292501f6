package contacts

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

// Repository defines persistence operations for contacts and their
// emails and phones.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, contact *models.Contact) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Contact, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	List(ctx context.Context, opts listQuery) ([]models.Contact, error)
	Save(ctx context.Context, contact *models.Contact) error
	ReplaceEmails(ctx context.Context, contactID uuid.UUID, emails []models.ContactEmail) error
	ReplacePhones(ctx context.Context, contactID uuid.UUID, phones []models.ContactPhone) error
	References(ctx context.Context, id uuid.UUID) (Reference, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type gormRepository struct {
	repo.Base
}

// NewRepository constructs a contact repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{Base: r.Base.WithTx(tx)}
}

func (r *gormRepository) Create(ctx context.Context, contact *models.Contact) error {
	return r.DB(ctx).Create(contact).Error
}

func (r *gormRepository) preload(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Emails", func(db *gorm.DB) *gorm.DB {
			return db.Order("contact_emails.is_primary DESC").Order("contact_emails.created_at ASC")
		}).
		Preload("Phones", func(db *gorm.DB) *gorm.DB {
			return db.Order("contact_phones.created_at ASC")
		})
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	if err := r.preload(r.DB(ctx)).Where("id = ?", id).First(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *gormRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Contact, error) {
	rows := []models.Contact{}
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.preload(r.DB(ctx)).
		Where("id IN ?", ids).
		Order("last_name ASC").Order("first_name ASC").Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// LockByID reads the contact row with FOR UPDATE so writers touching the
// same contact queue behind each other.
func (r *gormRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	if err := r.ForUpdate(ctx).Where("id = ?", id).First(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *gormRepository) List(ctx context.Context, opts listQuery) ([]models.Contact, error) {
	query := r.DB(ctx).Model(&models.Contact{})
	if opts.search != "" {
		like := "%" + strings.ToLower(opts.search) + "%"
		query = query.Where(
			"LOWER(contacts.first_name) LIKE ? OR LOWER(contacts.last_name) LIKE ? OR EXISTS (SELECT 1 FROM contact_emails ce WHERE ce.contact_id = contacts.id AND LOWER(ce.email) LIKE ?)",
			like, like, like,
		)
	}
	if len(opts.statuses) > 0 {
		query = query.Where("contacts.status IN ?", opts.statuses)
	}
	query = r.WhereTag(query, "contacts.tags", opts.tag)
	query = pagination.ApplyCursor(query, "contacts", opts.cursor).Limit(opts.limit)

	var rows []models.Contact
	if err := r.preload(query).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormRepository) Save(ctx context.Context, contact *models.Contact) error {
	return r.DB(ctx).Omit(clause.Associations).Save(contact).Error
}

func (r *gormRepository) ReplaceEmails(ctx context.Context, contactID uuid.UUID, emails []models.ContactEmail) error {
	if err := r.DB(ctx).Where("contact_id = ?", contactID).Delete(&models.ContactEmail{}).Error; err != nil {
		return err
	}
	for i := range emails {
		emails[i].ContactID = contactID
		if err := r.DB(ctx).Create(&emails[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *gormRepository) ReplacePhones(ctx context.Context, contactID uuid.UUID, phones []models.ContactPhone) error {
	if err := r.DB(ctx).Where("contact_id = ?", contactID).Delete(&models.ContactPhone{}).Error; err != nil {
		return err
	}
	for i := range phones {
		phones[i].ContactID = contactID
		if err := r.DB(ctx).Create(&phones[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *gormRepository) References(ctx context.Context, id uuid.UUID) (Reference, error) {
	var ref Reference
	if err := r.DB(ctx).Model(&models.Deal{}).Where("contact_id = ?", id).Pluck("id", &ref.DealIDs).Error; err != nil {
		return ref, err
	}
	if err := r.DB(ctx).Model(&models.Synergy{}).Where("contact_id = ?", id).Pluck("id", &ref.SynergyIDs).Error; err != nil {
		return ref, err
	}
	return ref, nil
}

// Delete removes the contact together with its emails, phones and
// activity rows.
func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.DB(ctx)
	for _, child := range []any{&models.ContactEmail{}, &models.ContactPhone{}, &models.AreaOfActivity{}} {
		if err := db.Where("contact_id = ?", id).Delete(child).Error; err != nil {
			return err
		}
	}
	res := db.Where("id = ?", id).Delete(&models.Contact{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
