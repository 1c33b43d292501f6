package companies

import (
	"context"
	"fmt"
	"strings"

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

// Service exposes company and branch management.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Company, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Company, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Company, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddBranch(ctx context.Context, companyID uuid.UUID, input BranchInput) (*models.Branch, error)
	ListBranches(ctx context.Context, companyID uuid.UUID) ([]models.Branch, error)
	UpdateBranch(ctx context.Context, companyID, branchID uuid.UUID, input BranchInput) (*models.Branch, error)
	RemoveBranch(ctx context.Context, companyID, branchID uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a company service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("companies repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Company, error) {
	name := strings.TrimSpace(input.Name)
	invalid := map[string]string{}
	if name == "" {
		invalid["name"] = "required"
	}
	branches := make([]models.Branch, 0, len(input.Branches))
	for i, b := range input.Branches {
		branch, ok := newBranch(b)
		if !ok {
			invalid[fmt.Sprintf("branches[%d].name", i)] = "required"
			continue
		}
		branches = append(branches, branch)
	}
	if len(invalid) > 0 {
		return nil, pkgerrors.Validation("invalid company", invalid)
	}

	company := &models.Company{
		Name:         name,
		Email:        trimmed(input.Email),
		Phone:        trimmed(input.Phone),
		Website:      trimmed(input.Website),
		Country:      trimmed(input.Country),
		City:         trimmed(input.City),
		Tags:         normalizeTags(input.Tags),
		CustomFields: copyFields(input.CustomFields),
	}
	promoteLegacyLocation(company)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		if err := r.Create(ctx, company); err != nil {
			return repo.StorageError(err, "create company")
		}
		for i := range branches {
			branches[i].CompanyID = company.ID
			if err := r.CreateBranch(ctx, &branches[i]); err != nil {
				return repo.StorageError(err, "create branch")
			}
		}
		company.Branches = branches
		return s.emit(ctx, tx, enums.EventCompanyCreated, company)
	})
	if err != nil {
		return nil, err
	}
	return company, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	company, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.StorageError(err, "company not found")
	}
	return company, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, listQuery{
		search:  strings.TrimSpace(params.Search),
		tag:     strings.TrimSpace(params.Tag),
		country: strings.TrimSpace(params.Country),
		cursor:  cursor,
		limit:   pagination.LimitWithBuffer(params.Limit),
	})
	if err != nil {
		return nil, repo.StorageError(err, "list companies")
	}
	page := pagination.Trim(rows, params.Limit, companyCursor)
	return &page, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Company, error) {
	var company *models.Company
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		found, err := r.FindByID(ctx, id)
		if err != nil {
			return repo.StorageError(err, "company not found")
		}
		if err := applyUpdate(found, input); err != nil {
			return err
		}
		if err := r.Save(ctx, found); err != nil {
			return repo.StorageError(err, "update company")
		}
		company = found
		return s.emit(ctx, tx, enums.EventCompanyUpdated, found)
	})
	if err != nil {
		return nil, err
	}
	return company, nil
}

// Delete removes an unreferenced company. Deals and synergies block the
// delete; activity rows do not and are left for the orphan report.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		company, err := r.FindByID(ctx, id)
		if err != nil {
			return repo.StorageError(err, "company not found")
		}
		ref, err := r.References(ctx, id)
		if err != nil {
			return repo.StorageError(err, "check company references")
		}
		if !ref.Empty() {
			return pkgerrors.New(pkgerrors.CodeConflict, "company is referenced by deals or synergies").WithDetails(ref)
		}
		if err := r.Delete(ctx, id); err != nil {
			return repo.StorageError(err, "delete company")
		}
		return s.emit(ctx, tx, enums.EventCompanyDeleted, company)
	})
}

func (s *service) AddBranch(ctx context.Context, companyID uuid.UUID, input BranchInput) (*models.Branch, error) {
	branch, ok := newBranch(input)
	if !ok {
		return nil, pkgerrors.Validation("invalid branch", map[string]string{"name": "required"})
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		company, err := r.FindByID(ctx, companyID)
		if err != nil {
			return repo.StorageError(err, "company not found")
		}
		branch.CompanyID = companyID
		if err := r.CreateBranch(ctx, &branch); err != nil {
			return repo.StorageError(err, "create branch")
		}
		company.Branches = append(company.Branches, branch)
		return s.emit(ctx, tx, enums.EventCompanyUpdated, company)
	})
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

func (s *service) ListBranches(ctx context.Context, companyID uuid.UUID) ([]models.Branch, error) {
	ok, err := s.repo.Exists(ctx, companyID)
	if err != nil {
		return nil, repo.StorageError(err, "load company")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
	}
	branches, err := s.repo.ListBranches(ctx, companyID)
	if err != nil {
		return nil, repo.StorageError(err, "list branches")
	}
	return branches, nil
}

func (s *service) UpdateBranch(ctx context.Context, companyID, branchID uuid.UUID, input BranchInput) (*models.Branch, error) {
	var branch *models.Branch
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		found, err := r.FindBranch(ctx, companyID, branchID)
		if err != nil {
			return repo.StorageError(err, "branch not found")
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.Validation("invalid branch", map[string]string{"name": "required"})
			}
			found.Name = name
		}
		if input.Country != nil {
			found.Country = trimmed(input.Country)
		}
		if input.City != nil {
			found.City = trimmed(input.City)
		}
		if input.Address != nil {
			found.Address = trimmed(input.Address)
		}
		if err := r.SaveBranch(ctx, found); err != nil {
			return repo.StorageError(err, "update branch")
		}
		branch = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return branch, nil
}

func (s *service) RemoveBranch(ctx context.Context, companyID, branchID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		if err := r.DeleteBranch(ctx, companyID, branchID); err != nil {
			return repo.StorageError(err, "branch not found")
		}
		company, err := r.FindByID(ctx, companyID)
		if err != nil {
			return repo.StorageError(err, "company not found")
		}
		return s.emit(ctx, tx, enums.EventCompanyUpdated, company)
	})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, company *models.Company) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateCompany,
		AggregateID:   company.ID,
		Data: payloads.CompanyEvent{
			CompanyID: company.ID,
			Name:      company.Name,
		},
	})
}

func applyUpdate(company *models.Company, input UpdateInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return pkgerrors.Validation("invalid company", map[string]string{"name": "required"})
		}
		company.Name = name
	}
	if input.Email != nil {
		company.Email = trimmed(input.Email)
	}
	if input.Phone != nil {
		company.Phone = trimmed(input.Phone)
	}
	if input.Website != nil {
		company.Website = trimmed(input.Website)
	}
	if input.Country != nil {
		company.Country = trimmed(input.Country)
	}
	if input.City != nil {
		company.City = trimmed(input.City)
	}
	if input.Tags != nil {
		company.Tags = normalizeTags(*input.Tags)
	}
	if input.CustomFields != nil {
		company.CustomFields = copyFields(*input.CustomFields)
	}
	promoteLegacyLocation(company)
	return nil
}

// promoteLegacyLocation moves country and city out of custom fields into the
// first-class columns. An explicit first-class value wins over the legacy one.
func promoteLegacyLocation(company *models.Company) {
	for key, value := range company.CustomFields {
		var target **string
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "country":
			target = &company.Country
		case "city":
			target = &company.City
		default:
			continue
		}
		delete(company.CustomFields, key)
		str, ok := value.(string)
		if !ok || *target != nil {
			continue
		}
		*target = trimmed(&str)
	}
}

func newBranch(input BranchInput) (models.Branch, bool) {
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return models.Branch{}, false
	}
	return models.Branch{
		Name:    strings.TrimSpace(*input.Name),
		Country: trimmed(input.Country),
		City:    trimmed(input.City),
		Address: trimmed(input.Address),
	}, true
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
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
