package app

import (
	"github.com/angelmondragon/crm-backend/internal/locks"
	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/redis"
)

// NewLocker picks the deal and contact locker for a process. A nil client
// keeps locks in-process even when distributed locking is switched on.
func NewLocker(cfg *config.Config, client *redis.Client) (locks.Locker, error) {
	if client == nil {
		// a typed nil must not reach the interface
		return locks.FromConfig(cfg, nil)
	}
	return locks.FromConfig(cfg, client)
}
