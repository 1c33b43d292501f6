package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDEchoesValidHeader(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contacts", nil)
	req.Header.Set("X-Request-Id", " crm-web:7f3a.1 ")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if got := resp.Header().Get("X-Request-Id"); got != "crm-web:7f3a.1" {
		t.Fatalf("expected echoed id got %q", got)
	}
}

func TestRequestIDReplacesUnfitHeader(t *testing.T) {
	cases := map[string]string{
		"missing":   "",
		"newline":   "abc\n{\"level\":\"error\"}",
		"spaces":    "two words",
		"oversized": strings.Repeat("a", maxRequestIDLen+1),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header["X-Request-Id"] = []string{header}
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			got := resp.Header().Get("X-Request-Id")
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("expected generated uuid, got %q", got)
			}
		})
	}
}
