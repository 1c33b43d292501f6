package contacts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/internal/repo"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/outbox"
	"github.com/angelmondragon/crm-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/crm-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes the contact side of the entity store.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Contact, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Contact, error)
	Archive(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService builds a contact service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("contacts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Contact, error) {
	invalid := map[string]string{}
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if firstName == "" {
		invalid["first_name"] = "required"
	}
	if lastName == "" {
		invalid["last_name"] = "required"
	}
	emails := buildEmails(input.Emails, invalid)
	phones := buildPhones(input.Phones, invalid)
	if len(invalid) > 0 {
		return nil, pkgerrors.Validation("invalid contact", invalid)
	}

	contact := &models.Contact{
		FirstName: firstName,
		LastName:  lastName,
		Tags:      normalizeTags(input.Tags),
		Notes:     trimmed(input.Notes),
		Status:    enums.ContactStatusActive,
		Emails:    emails,
		Phones:    phones,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, contact); err != nil {
			return repo.StorageError(err, "create contact")
		}
		return s.emit(ctx, tx, enums.EventContactCreated, contact)
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	contact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.StorageError(err, "contact not found")
	}
	return contact, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query := listQuery{
		search: strings.TrimSpace(params.Search),
		tag:    strings.TrimSpace(params.Tag),
		cursor: cursor,
		limit:  pagination.LimitWithBuffer(params.Limit),
	}
	if !params.IncludeArchived {
		query.statuses = []enums.ContactStatus{enums.ContactStatusActive}
	}
	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, repo.StorageError(err, "list contacts")
	}
	page := pagination.Trim(rows, params.Limit, contactCursor)
	return &page, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Contact, error) {
	invalid := map[string]string{}
	var emails []models.ContactEmail
	var phones []models.ContactPhone
	if input.Emails != nil {
		emails = buildEmails(*input.Emails, invalid)
	}
	if input.Phones != nil {
		phones = buildPhones(*input.Phones, invalid)
	}
	if input.FirstName != nil && strings.TrimSpace(*input.FirstName) == "" {
		invalid["first_name"] = "required"
	}
	if input.LastName != nil && strings.TrimSpace(*input.LastName) == "" {
		invalid["last_name"] = "required"
	}
	if len(invalid) > 0 {
		return nil, pkgerrors.Validation("invalid contact", invalid)
	}

	var contact *models.Contact
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		found, err := r.LockByID(ctx, id)
		if err != nil {
			return repo.StorageError(err, "contact not found")
		}
		if found.Status == enums.ContactStatusArchived {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "archived contacts cannot be edited")
		}
		if input.FirstName != nil {
			found.FirstName = strings.TrimSpace(*input.FirstName)
		}
		if input.LastName != nil {
			found.LastName = strings.TrimSpace(*input.LastName)
		}
		if input.Tags != nil {
			found.Tags = normalizeTags(*input.Tags)
		}
		if input.Notes != nil {
			found.Notes = trimmed(input.Notes)
		}
		if err := r.Save(ctx, found); err != nil {
			return repo.StorageError(err, "update contact")
		}
		if input.Emails != nil {
			if err := r.ReplaceEmails(ctx, id, emails); err != nil {
				return repo.StorageError(err, "replace contact emails")
			}
		}
		if input.Phones != nil {
			if err := r.ReplacePhones(ctx, id, phones); err != nil {
				return repo.StorageError(err, "replace contact phones")
			}
		}
		contact, err = r.FindByID(ctx, id)
		if err != nil {
			return repo.StorageError(err, "reload contact")
		}
		return s.emit(ctx, tx, enums.EventContactUpdated, contact)
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// Archive hides the contact from active views. Archiving twice is a no-op.
func (s *service) Archive(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	var contact *models.Contact
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		contact, err = s.archiveTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *service) archiveTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Contact, error) {
	r := s.repo.WithTx(tx)
	found, err := r.LockByID(ctx, id)
	if err != nil {
		return nil, repo.StorageError(err, "contact not found")
	}
	if found.Status != enums.ContactStatusArchived {
		now := s.now().UTC()
		found.Status = enums.ContactStatusArchived
		found.ArchivedAt = &now
		if err := r.Save(ctx, found); err != nil {
			return nil, repo.StorageError(err, "archive contact")
		}
		if err := s.emit(ctx, tx, enums.EventContactArchived, found); err != nil {
			return nil, err
		}
	}
	contact, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, repo.StorageError(err, "reload contact")
	}
	return contact, nil
}

// Delete hard-deletes an unreferenced contact. A contact still referenced by
// a deal or a synergy is archived instead.
func (s *service) Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	var result DeleteResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		found, err := r.LockByID(ctx, id)
		if err != nil {
			return repo.StorageError(err, "contact not found")
		}
		ref, err := r.References(ctx, id)
		if err != nil {
			return repo.StorageError(err, "check contact references")
		}
		if !ref.Empty() {
			archived, err := s.archiveTx(ctx, tx, id)
			if err != nil {
				return err
			}
			result = DeleteResult{Archived: true, Contact: archived}
			return nil
		}
		if err := r.Delete(ctx, id); err != nil {
			return repo.StorageError(err, "delete contact")
		}
		result = DeleteResult{Archived: false}
		return s.emit(ctx, tx, enums.EventContactDeleted, found)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, contact *models.Contact) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateContact,
		AggregateID:   contact.ID,
		Data: payloads.ContactEvent{
			ContactID: contact.ID,
			FirstName: contact.FirstName,
			LastName:  contact.LastName,
			Status:    contact.Status,
		},
	})
}

// buildEmails validates the address list and settles the primary flag: the
// first address becomes primary when none is flagged.
func buildEmails(inputs []EmailInput, invalid map[string]string) []models.ContactEmail {
	emails := make([]models.ContactEmail, 0, len(inputs))
	primaries := 0
	for i, in := range inputs {
		field := fmt.Sprintf("emails[%d]", i)
		address := strings.TrimSpace(in.Email)
		if address == "" || !strings.Contains(address, "@") {
			invalid[field+".email"] = "invalid email address"
			continue
		}
		kind, err := enums.ParseEmailKind(in.Kind)
		if err != nil {
			invalid[field+".kind"] = err.Error()
			continue
		}
		if in.IsPrimary {
			primaries++
		}
		emails = append(emails, models.ContactEmail{Email: address, Kind: kind, IsPrimary: in.IsPrimary})
	}
	switch {
	case primaries > 1:
		invalid["emails"] = "only one email can be primary"
	case primaries == 0 && len(emails) > 0:
		emails[0].IsPrimary = true
	}
	return emails
}

func buildPhones(inputs []PhoneInput, invalid map[string]string) []models.ContactPhone {
	phones := make([]models.ContactPhone, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("phones[%d]", i)
		number := strings.TrimSpace(in.Number)
		if number == "" {
			invalid[field+".number"] = "required"
			continue
		}
		kind, err := enums.ParsePhoneKind(in.Kind)
		if err != nil {
			invalid[field+".kind"] = err.Error()
			continue
		}
		phones = append(phones, models.ContactPhone{Number: number, Kind: kind})
	}
	return phones
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
