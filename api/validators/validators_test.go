package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

type samplePayload struct {
	Name     string `json:"name" validate:"required,max=10"`
	Currency string `json:"currency" validate:"omitempty,iso4217"`
	Kind     string `json:"kind" validate:"omitempty,oneof=work personal"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","currency":"zzz","kind":"boss"}`))
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	if err == nil {
		t.Fatal("expected validation error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", typed.Code())
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected map details, got %T", typed.Details())
	}
	want := map[string]string{
		"name":     "is required",
		"currency": "must be an ISO 4217 currency code",
		"kind":     "must be one of [work personal]",
	}
	for field, msg := range want {
		if details[field] != msg {
			t.Errorf("details[%s] = %q, want %q", field, details[field], msg)
		}
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","contact_id":"x"}`))
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&archived=yes&contact_id=nope", nil)

	if _, err := ParseQueryInt(req, "limit", 20, 1, 100); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Errorf("limit: expected validation error, got %v", err)
	}
	if _, err := ParseQueryBool(req, "archived"); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Errorf("archived: expected validation error, got %v", err)
	}
	if _, err := ParseQueryUUID(req, "contact_id"); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Errorf("contact_id: expected validation error, got %v", err)
	}

	missing, err := ParseQueryUUID(req, "company_id")
	if err != nil {
		t.Fatalf("company_id: unexpected error %v", err)
	}
	if missing != nil {
		t.Fatalf("company_id: expected nil, got %v", missing)
	}
}

func TestParseUUIDParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("dealId", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	if _, err := ParseUUIDParam(req, "dealId"); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Errorf("dealId: expected validation error, got %v", err)
	}
	if _, err := ParseUUIDParam(req, "contactId"); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Errorf("contactId: expected validation error, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "trims", input: "  Müller  ", maxLen: 20, want: "Müller"},
		{name: "collapses whitespace", input: "Acme \t\n GmbH", maxLen: 0, want: "Acme GmbH"},
		{name: "drops control characters", input: "Ac\x00me\x1b", maxLen: 0, want: "Acme"},
		{name: "cuts on runes", input: "Zoë Škoda", maxLen: 3, want: "Zoë"},
		{name: "no trailing space after cut", input: "Zoë Škoda", maxLen: 4, want: "Zoë"},
		{name: "blank", input: " \t ", maxLen: 5, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.input, tc.maxLen); got != tc.want {
				t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.want)
			}
		})
	}
}
