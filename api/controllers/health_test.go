package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/crm-backend/pkg/config"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

func TestHealthReadyAllUp(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	handler := HealthReady(cfg, testLogger(), map[string]Pinger{"db": stubPinger{}, "redis": nil})
	resp := httptest.NewRecorder()
	handler(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get(envHeader) != "test" {
		t.Fatalf("expected env header, got %q", resp.Header().Get(envHeader))
	}
	if strings.Contains(resp.Body.String(), "redis") {
		t.Fatalf("nil dependency should be skipped, got %s", resp.Body.String())
	}
}

func TestHealthReadyDependencyDown(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	handler := HealthReady(cfg, testLogger(), map[string]Pinger{"db": stubPinger{err: errors.New("refused")}})
	resp := httptest.NewRecorder()
	handler(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	resp := httptest.NewRecorder()
	HealthLive(cfg)(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
