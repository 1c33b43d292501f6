package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	"github.com/angelmondragon/crm-backend/pkg/outbox"
	"github.com/angelmondragon/crm-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry routes every CRM event to the configured domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}

	contact := func() interface{} { return &payloads.ContactEvent{} }
	company := func() interface{} { return &payloads.CompanyEvent{} }
	activity := func() interface{} { return &payloads.ActivityEvent{} }
	deal := func() interface{} { return &payloads.DealEvent{} }
	synergy := func() interface{} { return &payloads.SynergyEvent{} }

	for _, desc := range []EventDescriptor{
		{EventType: enums.EventContactCreated, AggregateType: enums.AggregateContact, PayloadFactory: contact},
		{EventType: enums.EventContactUpdated, AggregateType: enums.AggregateContact, PayloadFactory: contact},
		{EventType: enums.EventContactArchived, AggregateType: enums.AggregateContact, PayloadFactory: contact},
		{EventType: enums.EventContactDeleted, AggregateType: enums.AggregateContact, PayloadFactory: contact},
		{EventType: enums.EventCompanyCreated, AggregateType: enums.AggregateCompany, PayloadFactory: company},
		{EventType: enums.EventCompanyUpdated, AggregateType: enums.AggregateCompany, PayloadFactory: company},
		{EventType: enums.EventCompanyDeleted, AggregateType: enums.AggregateCompany, PayloadFactory: company},
		{EventType: enums.EventActivityLinked, AggregateType: enums.AggregateAreaOfActivity, PayloadFactory: activity},
		{EventType: enums.EventActivityUpdated, AggregateType: enums.AggregateAreaOfActivity, PayloadFactory: activity},
		{EventType: enums.EventActivityUnlinked, AggregateType: enums.AggregateAreaOfActivity, PayloadFactory: activity},
		{EventType: enums.EventPrimaryActivityChanged, AggregateType: enums.AggregateAreaOfActivity, PayloadFactory: activity},
		{EventType: enums.EventDealCreated, AggregateType: enums.AggregateDeal, PayloadFactory: deal},
		{EventType: enums.EventDealUpdated, AggregateType: enums.AggregateDeal, PayloadFactory: deal},
		{EventType: enums.EventDealStageChanged, AggregateType: enums.AggregateDeal, PayloadFactory: deal},
		{EventType: enums.EventDealArchived, AggregateType: enums.AggregateDeal, PayloadFactory: deal},
		{
			EventType:      enums.EventDealAssociationChanged,
			AggregateType:  enums.AggregateDeal,
			PayloadFactory: func() interface{} { return &payloads.DealAssociationChangedEvent{} },
		},
		{EventType: enums.EventSynergyCreated, AggregateType: enums.AggregateSynergy, PayloadFactory: synergy},
		{EventType: enums.EventSynergyUpdated, AggregateType: enums.AggregateSynergy, PayloadFactory: synergy},
		{EventType: enums.EventSynergyArchived, AggregateType: enums.AggregateSynergy, PayloadFactory: synergy},
	} {
		desc.Topic = topic
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Descriptor returns the registration of an event type.
func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
