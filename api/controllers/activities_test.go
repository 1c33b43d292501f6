package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/internal/activities"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
)

type testActivityService struct {
	linkFn       func(ctx context.Context, contactID uuid.UUID, input activities.LinkInput) (*models.AreaOfActivity, error)
	unlinkFn     func(ctx context.Context, id uuid.UUID) error
	contactsFn   func(ctx context.Context, companyID uuid.UUID) ([]models.Contact, error)
	orphansFn    func(ctx context.Context) ([]activities.Orphan, error)
	setPrimaryFn func(ctx context.Context, id uuid.UUID) (*models.AreaOfActivity, error)
	updateFn     func(ctx context.Context, id uuid.UUID, input activities.UpdateInput) (*models.AreaOfActivity, error)
}

func (s *testActivityService) LinkContactToCompany(ctx context.Context, contactID uuid.UUID, input activities.LinkInput) (*models.AreaOfActivity, error) {
	if s.linkFn != nil {
		return s.linkFn(ctx, contactID, input)
	}
	return &models.AreaOfActivity{ID: uuid.New(), ContactID: contactID}, nil
}

func (s *testActivityService) Unlink(ctx context.Context, id uuid.UUID) error {
	if s.unlinkFn != nil {
		return s.unlinkFn(ctx, id)
	}
	return nil
}

func (s *testActivityService) SetPrimary(ctx context.Context, id uuid.UUID) (*models.AreaOfActivity, error) {
	if s.setPrimaryFn != nil {
		return s.setPrimaryFn(ctx, id)
	}
	return &models.AreaOfActivity{ID: id, IsPrimary: true}, nil
}

func (s *testActivityService) UpdateActivity(ctx context.Context, id uuid.UUID, input activities.UpdateInput) (*models.AreaOfActivity, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, input)
	}
	return &models.AreaOfActivity{ID: id, Role: input.Role}, nil
}

func (s *testActivityService) CompaniesForContact(ctx context.Context, contactID uuid.UUID) ([]models.AreaOfActivity, error) {
	return nil, nil
}

func (s *testActivityService) ContactsForCompany(ctx context.Context, companyID uuid.UUID) ([]models.Contact, error) {
	if s.contactsFn != nil {
		return s.contactsFn(ctx, companyID)
	}
	return nil, nil
}

func (s *testActivityService) FindOrphans(ctx context.Context) ([]activities.Orphan, error) {
	if s.orphansFn != nil {
		return s.orphansFn(ctx)
	}
	return nil, nil
}

func TestActivityLinkParsesCompanyAndBranch(t *testing.T) {
	contactID := uuid.New()
	companyID := uuid.New()
	branchID := uuid.New()
	var got activities.LinkInput
	svc := &testActivityService{
		linkFn: func(ctx context.Context, cid uuid.UUID, input activities.LinkInput) (*models.AreaOfActivity, error) {
			if cid != contactID {
				t.Fatalf("unexpected contact %s", cid)
			}
			got = input
			return &models.AreaOfActivity{ID: uuid.New(), ContactID: cid, CompanyID: input.CompanyID, IsPrimary: true}, nil
		},
	}

	body := `{"company_id":"` + companyID.String() + `","branch_id":"` + branchID.String() + `","role":"CTO","is_primary":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/contacts/"+contactID.String()+"/activities", strings.NewReader(body))
	req = addRouteParam(req, "contactId", contactID.String())
	resp := httptest.NewRecorder()
	ActivityLink(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.CompanyID == nil || *got.CompanyID != companyID {
		t.Fatalf("unexpected company %v", got.CompanyID)
	}
	if got.BranchID == nil || *got.BranchID != branchID {
		t.Fatalf("unexpected branch %v", got.BranchID)
	}
	if !got.IsPrimary || got.Role == nil || *got.Role != "CTO" {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestActivityLinkFreeTextCompany(t *testing.T) {
	contactID := uuid.New()
	var got activities.LinkInput
	svc := &testActivityService{
		linkFn: func(ctx context.Context, cid uuid.UUID, input activities.LinkInput) (*models.AreaOfActivity, error) {
			got = input
			return &models.AreaOfActivity{ID: uuid.New(), ContactID: cid, CompanyName: input.CompanyName}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"company_name":"Acme Ltd","company_id":""}`))
	req = addRouteParam(req, "contactId", contactID.String())
	resp := httptest.NewRecorder()
	ActivityLink(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.CompanyID != nil {
		t.Fatal("blank company_id should be treated as absent")
	}
	if got.CompanyName == nil || *got.CompanyName != "Acme Ltd" {
		t.Fatalf("unexpected company name %v", got.CompanyName)
	}
}

func TestActivityUpdateBlankBranchIsAbsent(t *testing.T) {
	id := uuid.New()
	var got activities.UpdateInput
	svc := &testActivityService{
		updateFn: func(ctx context.Context, aid uuid.UUID, input activities.UpdateInput) (*models.AreaOfActivity, error) {
			got = input
			return &models.AreaOfActivity{ID: aid, Role: input.Role}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"role":"CFO","branch_id":""}`))
	req = addRouteParam(req, "activityId", id.String())
	resp := httptest.NewRecorder()
	ActivityUpdate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.BranchID != nil || got.ClearBranch {
		t.Fatalf("blank branch_id should be absent, got %+v", got)
	}
}

func TestActivityLinkRejectsMalformedBranch(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"company_name":"Acme","branch_id":"nope"}`))
	req = addRouteParam(req, "contactId", uuid.NewString())
	resp := httptest.NewRecorder()
	ActivityLink(&testActivityService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	env := decodeError(t, resp.Body.Bytes())
	if env.Error.Details["branch_id"] != "must be a valid uuid" {
		t.Fatalf("expected branch_id detail, got %+v", env.Error.Details)
	}
}

func TestActivityUnlinkNoContent(t *testing.T) {
	id := uuid.New()
	var unlinked uuid.UUID
	svc := &testActivityService{
		unlinkFn: func(ctx context.Context, aid uuid.UUID) error {
			unlinked = aid
			return nil
		},
	}
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/activities/"+id.String(), nil)
	req = addRouteParam(req, "activityId", id.String())
	resp := httptest.NewRecorder()
	ActivityUnlink(svc, testLogger())(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if unlinked != id {
		t.Fatalf("unexpected id %s", unlinked)
	}
}

func TestActivityOrphansReport(t *testing.T) {
	orphan := activities.Orphan{AreaOfActivityID: uuid.New(), ContactID: uuid.New(), CompanyID: uuid.New()}
	svc := &testActivityService{
		orphansFn: func(ctx context.Context) ([]activities.Orphan, error) {
			return []activities.Orphan{orphan}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities/orphans", nil)
	resp := httptest.NewRecorder()
	ActivityOrphans(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data orphanResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data.Count != 1 || envelope.Data.Items[0] != orphan {
		t.Fatalf("unexpected report %+v", envelope.Data)
	}
}

func TestActivityOrphansEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities/orphans", nil)
	resp := httptest.NewRecorder()
	ActivityOrphans(&testActivityService{}, testLogger())(resp, req)
	if !strings.Contains(resp.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items, got %s", resp.Body.String())
	}
}

func TestCompanyContactsDeduplicatedList(t *testing.T) {
	companyID := uuid.New()
	contact := models.Contact{ID: uuid.New(), FirstName: "Linus"}
	svc := &testActivityService{
		contactsFn: func(ctx context.Context, cid uuid.UUID) ([]models.Contact, error) {
			return []models.Contact{contact}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies/"+companyID.String()+"/contacts", nil)
	req = addRouteParam(req, "companyId", companyID.String())
	resp := httptest.NewRecorder()
	CompanyContacts(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), contact.ID.String()) {
		t.Fatalf("expected contact in body, got %s", resp.Body.String())
	}
}
