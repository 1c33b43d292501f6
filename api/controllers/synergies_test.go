package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/internal/synergies"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

type testSynergyService struct {
	updateFn  func(ctx context.Context, id uuid.UUID, input synergies.UpdateInput) (*models.Synergy, error)
	archiveFn func(ctx context.Context, id uuid.UUID) (*models.Synergy, error)
	deleteFn  func(ctx context.Context, id uuid.UUID) (*models.Synergy, error)
	forDealFn func(ctx context.Context, dealID uuid.UUID) ([]models.Synergy, error)
}

func (s *testSynergyService) Create(ctx context.Context, input synergies.CreateInput) (*models.Synergy, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not reachable over http")
}

func (s *testSynergyService) Get(ctx context.Context, id uuid.UUID) (*models.Synergy, error) {
	return &models.Synergy{ID: id, Status: enums.SynergyStatusActive}, nil
}

func (s *testSynergyService) ListActiveForContact(ctx context.Context, contactID uuid.UUID) ([]models.Synergy, error) {
	return nil, nil
}

func (s *testSynergyService) ListActiveForCompany(ctx context.Context, companyID uuid.UUID) ([]models.Synergy, error) {
	return []models.Synergy{{ID: uuid.New(), CompanyID: companyID}}, nil
}

func (s *testSynergyService) ListForDeal(ctx context.Context, dealID uuid.UUID) ([]models.Synergy, error) {
	if s.forDealFn != nil {
		return s.forDealFn(ctx, dealID)
	}
	return nil, nil
}

func (s *testSynergyService) Update(ctx context.Context, id uuid.UUID, input synergies.UpdateInput) (*models.Synergy, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, input)
	}
	return &models.Synergy{ID: id}, nil
}

func (s *testSynergyService) Archive(ctx context.Context, id uuid.UUID) (*models.Synergy, error) {
	if s.archiveFn != nil {
		return s.archiveFn(ctx, id)
	}
	return &models.Synergy{ID: id, Status: enums.SynergyStatusArchived}, nil
}

func (s *testSynergyService) Delete(ctx context.Context, id uuid.UUID) (*models.Synergy, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return s.Archive(ctx, id)
}

func immutableGuard(ctx context.Context, id uuid.UUID, input synergies.UpdateInput) (*models.Synergy, error) {
	switch {
	case input.ContactID != nil:
		return nil, pkgerrors.Immutable("contact_id")
	case input.CompanyID != nil:
		return nil, pkgerrors.Immutable("company_id")
	case input.DealID != nil:
		return nil, pkgerrors.Immutable("deal_id")
	}
	return &models.Synergy{ID: id}, nil
}

func TestSynergyUpdateNamingIdentityFieldIsImmutable(t *testing.T) {
	cases := map[string]string{
		"deal_id":    `{"deal_id":"` + uuid.NewString() + `"}`,
		"contact_id": `{"contact_id":null,"status":"On Hold"}`,
		"company_id": `{"company_id":"garbage"}`,
	}
	for field, body := range cases {
		id := uuid.New()
		svc := &testSynergyService{updateFn: immutableGuard}
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/synergies/"+id.String(), strings.NewReader(body))
		req = addRouteParam(req, "synergyId", id.String())
		resp := httptest.NewRecorder()
		SynergyUpdate(svc, testLogger())(resp, req)

		if resp.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422 got %d", field, resp.Code)
		}
		env := decodeError(t, resp.Body.Bytes())
		if env.Error.Code != string(pkgerrors.CodeImmutableField) {
			t.Fatalf("%s: unexpected code %s", field, env.Error.Code)
		}
		if env.Error.Details["field"] != field {
			t.Fatalf("%s: unexpected details %+v", field, env.Error.Details)
		}
	}
}

func TestSynergyUpdateMutableFields(t *testing.T) {
	id := uuid.New()
	var got synergies.UpdateInput
	svc := &testSynergyService{
		updateFn: func(ctx context.Context, sid uuid.UUID, input synergies.UpdateInput) (*models.Synergy, error) {
			got = input
			return &models.Synergy{ID: sid, Status: enums.SynergyStatusOnHold}, nil
		},
	}
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	body := `{"status":"On Hold","description":"paused","end_date":"` + end.Format(time.RFC3339) + `"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/synergies/"+id.String(), strings.NewReader(body))
	req = addRouteParam(req, "synergyId", id.String())
	resp := httptest.NewRecorder()
	SynergyUpdate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got.ContactID != nil || got.CompanyID != nil || got.DealID != nil {
		t.Fatal("identity fields should be absent")
	}
	if got.Status == nil || *got.Status != "On Hold" || got.EndDate == nil || !got.EndDate.Equal(end) {
		t.Fatalf("unexpected patch %+v", got)
	}
}

func TestSynergyDeleteArchives(t *testing.T) {
	id := uuid.New()
	deleted := false
	svc := &testSynergyService{
		deleteFn: func(ctx context.Context, sid uuid.UUID) (*models.Synergy, error) {
			deleted = true
			now := time.Now().UTC()
			return &models.Synergy{ID: sid, Status: enums.SynergyStatusArchived, EndDate: &now}, nil
		},
	}
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/synergies/"+id.String(), nil)
	req = addRouteParam(req, "synergyId", id.String())
	resp := httptest.NewRecorder()
	SynergyDelete(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !deleted {
		t.Fatal("expected delete to be called")
	}
	if !strings.Contains(resp.Body.String(), `"status":"archived"`) {
		t.Fatalf("expected archived status, got %s", resp.Body.String())
	}
}

func TestSynergyArchiveNilService(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/synergies/"+id.String()+"/archive", nil)
	req = addRouteParam(req, "synergyId", id.String())
	resp := httptest.NewRecorder()
	SynergyArchive(nil, testLogger())(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestSynergyListsReturnArrays(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/contacts/"+id.String()+"/synergies", nil)
	req = addRouteParam(req, "contactId", id.String())
	resp := httptest.NewRecorder()
	ContactSynergies(&testSynergyService{}, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if strings.TrimSpace(resp.Body.String()) != `{"data":[]}` {
		t.Fatalf("expected empty array, got %s", resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/companies/"+id.String()+"/synergies", nil)
	req = addRouteParam(req, "companyId", id.String())
	resp = httptest.NewRecorder()
	CompanySynergies(&testSynergyService{}, testLogger())(resp, req)
	if !strings.Contains(resp.Body.String(), id.String()) {
		t.Fatalf("expected company id in body, got %s", resp.Body.String())
	}
}
