package outbox

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/pkg/logger"
)

const (
	defaultRetentionDays = 30
	defaultMaxAttempts   = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type retentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, maxAttempts int) (int64, error)
}

type PrunerParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    retentionRepo
	RetentionDays int
	MaxAttempts   int
}

// Pruner deletes delivered and parked outbox rows once they age past the
// retention window. Pending rows are never touched.
type Pruner struct {
	logg        *logger.Logger
	db          txRunner
	repo        retentionRepo
	retention   int
	maxAttempts int
	now         func() time.Time
}

func NewPruner(params PrunerParams) (*Pruner, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Pruner{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		retention:   retention,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}, nil
}

// PruneResult reports one prune pass.
type PruneResult struct {
	Cutoff  time.Time `json:"cutoff"`
	Deleted int64     `json:"deleted"`
}

func (p *Pruner) Prune(ctx context.Context) (PruneResult, error) {
	cutoff := p.now().UTC().Add(-time.Duration(p.retention) * 24 * time.Hour)
	var deleted int64
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := p.repo.DeletePublishedBefore(ctx, tx, cutoff, p.maxAttempts)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return PruneResult{}, fmt.Errorf("outbox prune: %w", err)
	}
	if p.logg != nil {
		logCtx := p.logg.WithFields(ctx, map[string]any{
			"cutoff":         cutoff,
			"retention_days": p.retention,
			"max_attempts":   p.maxAttempts,
			"rows_deleted":   deleted,
		})
		p.logg.Info(logCtx, "outbox prune complete")
	}
	return PruneResult{Cutoff: cutoff, Deleted: deleted}, nil
}
