package registry

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	"github.com/angelmondragon/crm-backend/pkg/outbox"
	"github.com/angelmondragon/crm-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	synergyID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventSynergyCreated,
		AggregateType: enums.AggregateSynergy,
		AggregateID:   synergyID,
		Payload: mustEnvelope(t, payloads.SynergyEvent{
			SynergyID: synergyID,
			ContactID: uuid.New(),
			CompanyID: uuid.New(),
			DealID:    uuid.New(),
			Status:    enums.SynergyStatusActive,
			StartDate: time.Now().UTC(),
		}),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Descriptor.Topic != "crm-domain" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.SynergyEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.SynergyID != synergyID {
		t.Fatalf("expected synergy %s, got %s", synergyID, payload.SynergyID)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata missing: %+v", resolved.Envelope)
	}
}

func TestEventRegistryCoversEveryEventType(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, evt := range []enums.OutboxEventType{
		enums.EventContactCreated, enums.EventContactArchived, enums.EventCompanyDeleted,
		enums.EventActivityLinked, enums.EventPrimaryActivityChanged, enums.EventDealAssociationChanged,
		enums.EventDealStageChanged, enums.EventSynergyArchived,
	} {
		if _, ok := reg.Descriptor(evt); !ok {
			t.Errorf("missing descriptor for %s", evt)
		}
	}
}

func TestEventRegistryResolveAggregateMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)
	event := models.OutboxEvent{
		EventType:     enums.EventSynergyCreated,
		AggregateType: enums.AggregateDeal,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, payloads.SynergyEvent{}),
	}
	_, err := reg.Resolve(event)
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestEventRegistryResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)

	if _, err := reg.Resolve(models.OutboxEvent{EventType: "order_created", AggregateType: enums.AggregateDeal, AggregateID: uuid.New()}); err == nil {
		t.Fatal("expected unknown event type to fail")
	}

	_, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventDealCreated,
		AggregateType: enums.AggregateDeal,
		Payload:       mustEnvelope(t, payloads.DealEvent{}),
	})
	expectErrContains(t, err, "missing aggregate_id")

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventDealCreated,
		AggregateType: enums.AggregateDeal,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"eventId":"x","data":null}`),
	})
	expectErrContains(t, err, "payload missing")

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventDealCreated,
		AggregateType: enums.AggregateDeal,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`not-json`),
	})
	expectErrContains(t, err, "decode envelope")
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected error without a domain topic")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "crm-domain"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return envelope
}

func expectErrContains(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil || !strings.Contains(err.Error(), want) {
		t.Fatalf("expected error containing %q, got %v", want, err)
	}
}
