// Package app assembles the CRM services on top of one database client so
// the API, the repair CLI and the tests share the same wiring.
package app

import (
	"fmt"

	"github.com/angelmondragon/crm-backend/internal/activities"
	"github.com/angelmondragon/crm-backend/internal/companies"
	"github.com/angelmondragon/crm-backend/internal/contacts"
	"github.com/angelmondragon/crm-backend/internal/deals"
	"github.com/angelmondragon/crm-backend/internal/locks"
	"github.com/angelmondragon/crm-backend/internal/synergies"
	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/metrics"
	"github.com/angelmondragon/crm-backend/pkg/outbox"
)

// Deps are the shared collaborators. Locker, Metrics and Logger may be nil.
type Deps struct {
	DB      *db.Client
	Locker  locks.Locker
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Services is the full set of domain services.
type Services struct {
	Contacts   contacts.Service
	Companies  companies.Service
	Activities activities.Service
	Deals      deals.Service
	Synergies  synergies.Service
	Deriver    synergies.Deriver
	Outbox     *outbox.Service
}

// NewServices wires every service against deps.DB. Deals and synergies share
// one locker: deal updates, derivation and manual synergy edits all take the
// deal's key, so they serialize per deal.
func NewServices(deps Deps) (*Services, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	locker := deps.Locker
	if locker == nil {
		locker = locks.NewLocalLocker(0)
	}
	gdb := deps.DB.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), deps.Logger)

	contactSvc, err := contacts.NewService(contacts.NewRepository(gdb), deps.DB, outboxSvc)
	if err != nil {
		return nil, fmt.Errorf("contacts service: %w", err)
	}
	companySvc, err := companies.NewService(companies.NewRepository(gdb), deps.DB, outboxSvc)
	if err != nil {
		return nil, fmt.Errorf("companies service: %w", err)
	}
	activitySvc, err := activities.NewService(activities.ServiceParams{
		Repo:    activities.NewRepository(gdb),
		Tx:      deps.DB,
		Outbox:  outboxSvc,
		Locker:  locker,
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("activities service: %w", err)
	}

	synergyParams := synergies.Params{
		Repo:    synergies.NewRepository(gdb),
		Tx:      deps.DB,
		Outbox:  outboxSvc,
		Locker:  locker,
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
	}
	synergySvc, err := synergies.NewService(synergyParams)
	if err != nil {
		return nil, fmt.Errorf("synergies service: %w", err)
	}
	deriver, err := synergies.NewDeriver(synergyParams)
	if err != nil {
		return nil, fmt.Errorf("synergy deriver: %w", err)
	}

	dealSvc, err := deals.NewService(deals.ServiceParams{
		Repo:    deals.NewRepository(gdb),
		Tx:      deps.DB,
		Outbox:  outboxSvc,
		Deriver: deriver,
		Locker:  locker,
		Logger:  deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("deals service: %w", err)
	}

	return &Services{
		Contacts:   contactSvc,
		Companies:  companySvc,
		Activities: activitySvc,
		Deals:      dealSvc,
		Synergies:  synergySvc,
		Deriver:    deriver,
		Outbox:     outboxSvc,
	}, nil
}
