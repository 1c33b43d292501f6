package app

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/crm-backend/internal/locks"
	"github.com/angelmondragon/crm-backend/pkg/config"
)

func TestNewLockerWithoutRedisStaysLocal(t *testing.T) {
	cfg := &config.Config{}
	cfg.FeatureFlags.DistributedLck = true
	cfg.Locks.WaitTimeout = time.Second

	locker, err := NewLocker(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := locker.(*locks.LocalLocker); !ok {
		t.Fatalf("expected local locker, got %T", locker)
	}

	release, err := locker.Acquire(context.Background(), locks.Key("deal", "d-1"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestNewLockerNilConfig(t *testing.T) {
	locker, err := NewLocker(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := locker.(*locks.LocalLocker); !ok {
		t.Fatalf("expected local locker, got %T", locker)
	}
}
