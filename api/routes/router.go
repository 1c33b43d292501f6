package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/crm-backend/api/controllers"
	"github.com/angelmondragon/crm-backend/api/middleware"
	"github.com/angelmondragon/crm-backend/internal/app"
	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/metrics"
	"github.com/angelmondragon/crm-backend/pkg/redis"
)

// NewRouter mounts the CRM API. redisClient may be nil; idempotent replay is
// then disabled and readiness skips the Redis check.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	svcs *app.Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(m),
	)

	deps := map[string]controllers.Pinger{"db": dbP}
	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		deps["redis"] = redisClient
		if cfg.FeatureFlags.Idempotency {
			idempotencyStore = redisClient
		}
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	r.Method(http.MethodGet, "/metrics", controllers.Metrics(gatherer))

	if svcs == nil {
		svcs = &app.Services{}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", controllers.ContactList(svcs.Contacts, logg))
			r.Post("/", controllers.ContactCreate(svcs.Contacts, logg))
			r.Route("/{contactId}", func(r chi.Router) {
				r.Get("/", controllers.ContactGet(svcs.Contacts, logg))
				r.Patch("/", controllers.ContactUpdate(svcs.Contacts, logg))
				r.Delete("/", controllers.ContactDelete(svcs.Contacts, logg))
				r.Post("/archive", controllers.ContactArchive(svcs.Contacts, logg))
				r.Get("/activities", controllers.ActivityListForContact(svcs.Activities, logg))
				r.Post("/activities", controllers.ActivityLink(svcs.Activities, logg))
				r.Get("/synergies", controllers.ContactSynergies(svcs.Synergies, logg))
			})
		})

		r.Route("/companies", func(r chi.Router) {
			r.Get("/", controllers.CompanyList(svcs.Companies, logg))
			r.Post("/", controllers.CompanyCreate(svcs.Companies, logg))
			r.Route("/{companyId}", func(r chi.Router) {
				r.Get("/", controllers.CompanyGet(svcs.Companies, logg))
				r.Patch("/", controllers.CompanyUpdate(svcs.Companies, logg))
				r.Delete("/", controllers.CompanyDelete(svcs.Companies, logg))
				r.Get("/contacts", controllers.CompanyContacts(svcs.Activities, logg))
				r.Get("/synergies", controllers.CompanySynergies(svcs.Synergies, logg))
				r.Get("/branches", controllers.BranchList(svcs.Companies, logg))
				r.Post("/branches", controllers.BranchCreate(svcs.Companies, logg))
				r.Patch("/branches/{branchId}", controllers.BranchUpdate(svcs.Companies, logg))
				r.Delete("/branches/{branchId}", controllers.BranchDelete(svcs.Companies, logg))
			})
		})

		r.Route("/activities", func(r chi.Router) {
			r.Get("/orphans", controllers.ActivityOrphans(svcs.Activities, logg))
			r.Patch("/{activityId}", controllers.ActivityUpdate(svcs.Activities, logg))
			r.Delete("/{activityId}", controllers.ActivityUnlink(svcs.Activities, logg))
			r.Post("/{activityId}/primary", controllers.ActivitySetPrimary(svcs.Activities, logg))
		})

		r.Route("/deals", func(r chi.Router) {
			r.Get("/", controllers.DealList(svcs.Deals, logg))
			r.Post("/", controllers.DealCreate(svcs.Deals, logg))
			r.Route("/{dealId}", func(r chi.Router) {
				r.Get("/", controllers.DealGet(svcs.Deals, logg))
				r.Patch("/", controllers.DealUpdate(svcs.Deals, logg))
				r.Delete("/", controllers.DealDelete(svcs.Deals, logg))
				r.Get("/synergies", controllers.DealSynergies(svcs.Synergies, logg))
			})
		})

		r.Route("/synergies/{synergyId}", func(r chi.Router) {
			r.Get("/", controllers.SynergyGet(svcs.Synergies, logg))
			r.Patch("/", controllers.SynergyUpdate(svcs.Synergies, logg))
			r.Delete("/", controllers.SynergyDelete(svcs.Synergies, logg))
			r.Post("/archive", controllers.SynergyArchive(svcs.Synergies, logg))
		})
	})

	return r
}
