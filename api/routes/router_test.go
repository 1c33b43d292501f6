package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/crm-backend/internal/app"
	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/metrics"
	"github.com/angelmondragon/crm-backend/pkg/outbox"
)

type testAPI struct {
	t      *testing.T
	router http.Handler
}

func newTestAPI(t *testing.T) (*testAPI, *outbox.Repository) {
	t.Helper()
	client := dbtest.Open(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svcs, err := app.NewServices(app.Deps{DB: client, Metrics: m})
	require.NoError(t, err)

	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	router := NewRouter(cfg, logger.Nop(), client, nil, m, reg, svcs)
	return &testAPI{t: t, router: router}, outbox.NewRepository(client.DB())
}

func (a *testAPI) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	a.router.ServeHTTP(resp, req)
	return resp
}

func dataOf(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
	return envelope.Data
}

func listOf(t *testing.T, resp *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
	return envelope.Data
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	api, _ := newTestAPI(t)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health/live", nil, nil).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health/ready", nil, nil).Code)

	metricsResp := api.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, metricsResp.Code)
	require.Contains(t, metricsResp.Body.String(), "crm_http_request_duration_seconds")
}

func TestDealAssociationLifecycleOverHTTP(t *testing.T) {
	api, events := newTestAPI(t)
	actor := map[string]string{"X-Actor-Id": "sales-7"}

	contactResp := api.do(http.MethodPost, "/api/v1/contacts", map[string]any{"first_name": "Ada", "last_name": "Lovelace"}, actor)
	require.Equal(t, http.StatusCreated, contactResp.Code, contactResp.Body.String())
	contactID := dataOf(t, contactResp)["id"].(string)

	companyResp := api.do(http.MethodPost, "/api/v1/companies", map[string]any{"name": "Engines Ltd"}, actor)
	require.Equal(t, http.StatusCreated, companyResp.Code, companyResp.Body.String())
	companyID := dataOf(t, companyResp)["id"].(string)

	dealResp := api.do(http.MethodPost, "/api/v1/deals", map[string]any{
		"name":       "Analytical engine",
		"value":      "2500",
		"contact_id": contactID,
		"company_id": companyID,
	}, actor)
	require.Equal(t, http.StatusCreated, dealResp.Code, dealResp.Body.String())
	dealID := dataOf(t, dealResp)["id"].(string)

	active := listOf(t, api.do(http.MethodGet, "/api/v1/contacts/"+contactID+"/synergies", nil, nil))
	require.Len(t, active, 1)
	require.Equal(t, dealID, active[0]["deal_id"])
	synergyID := active[0]["id"].(string)

	patch := api.do(http.MethodPatch, "/api/v1/synergies/"+synergyID, map[string]any{"deal_id": dealID}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, patch.Code)

	detach := api.do(http.MethodPatch, "/api/v1/deals/"+dealID, map[string]any{"clear_company": true}, actor)
	require.Equal(t, http.StatusOK, detach.Code, detach.Body.String())

	require.Empty(t, listOf(t, api.do(http.MethodGet, "/api/v1/contacts/"+contactID+"/synergies", nil, nil)))
	require.Empty(t, listOf(t, api.do(http.MethodGet, "/api/v1/companies/"+companyID+"/synergies", nil, nil)))

	history := listOf(t, api.do(http.MethodGet, "/api/v1/deals/"+dealID+"/synergies", nil, nil))
	require.Len(t, history, 1)
	require.Equal(t, string(enums.SynergyStatusArchived), history[0]["status"])

	row, err := events.ListForAggregate(nil, enums.AggregateContact, mustUUID(t, contactID))
	require.NoError(t, err)
	require.NotEmpty(t, row)
	require.Contains(t, string(row[0].Payload), `"actorId":"sales-7"`)
}

func TestRelationshipRoutes(t *testing.T) {
	api, _ := newTestAPI(t)

	contactID := dataOf(t, api.do(http.MethodPost, "/api/v1/contacts", map[string]any{"first_name": "Grace", "last_name": "Hopper"}, nil))["id"].(string)
	companyID := dataOf(t, api.do(http.MethodPost, "/api/v1/companies", map[string]any{"name": "Navy"}, nil))["id"].(string)

	first := api.do(http.MethodPost, "/api/v1/contacts/"+contactID+"/activities", map[string]any{"company_id": companyID, "role": "Rear Admiral"}, nil)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	require.Equal(t, true, dataOf(t, first)["is_primary"])

	second := api.do(http.MethodPost, "/api/v1/contacts/"+contactID+"/activities", map[string]any{"company_name": "Harvard"}, nil)
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())
	secondID := dataOf(t, second)["id"].(string)

	promote := api.do(http.MethodPost, "/api/v1/activities/"+secondID+"/primary", nil, nil)
	require.Equal(t, http.StatusOK, promote.Code, promote.Body.String())

	rows := listOf(t, api.do(http.MethodGet, "/api/v1/contacts/"+contactID+"/activities", nil, nil))
	require.Len(t, rows, 2)
	require.Equal(t, secondID, rows[0]["id"])
	require.Equal(t, true, rows[0]["is_primary"])
	require.Equal(t, false, rows[1]["is_primary"])

	people := listOf(t, api.do(http.MethodGet, "/api/v1/companies/"+companyID+"/contacts", nil, nil))
	require.Len(t, people, 1)

	neither := api.do(http.MethodPost, "/api/v1/contacts/"+contactID+"/activities", map[string]any{"role": "x"}, nil)
	require.Equal(t, http.StatusBadRequest, neither.Code)

	orphans := api.do(http.MethodGet, "/api/v1/activities/orphans", nil, nil)
	require.Equal(t, http.StatusOK, orphans.Code)
	require.Equal(t, float64(0), dataOf(t, orphans)["count"])
}

func TestUnknownRouteIs404(t *testing.T) {
	api, _ := newTestAPI(t)
	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/v1/pipelines", nil, nil).Code)
}

func mustUUID(t *testing.T, raw string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(raw)
	require.NoError(t, err)
	return id
}
