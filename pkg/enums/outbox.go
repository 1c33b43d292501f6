package enums

import "fmt"

// OutboxAggregateType names the entity kind an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateContact        OutboxAggregateType = "contact"
	AggregateCompany        OutboxAggregateType = "company"
	AggregateAreaOfActivity OutboxAggregateType = "area_of_activity"
	AggregateDeal           OutboxAggregateType = "deal"
	AggregateSynergy        OutboxAggregateType = "synergy"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateContact,
	AggregateCompany,
	AggregateAreaOfActivity,
	AggregateDeal,
	AggregateSynergy,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the routing key written to outbox_events.event_type.
type OutboxEventType string

const (
	EventContactCreated         OutboxEventType = "contact_created"
	EventContactUpdated         OutboxEventType = "contact_updated"
	EventContactArchived        OutboxEventType = "contact_archived"
	EventContactDeleted         OutboxEventType = "contact_deleted"
	EventCompanyCreated         OutboxEventType = "company_created"
	EventCompanyUpdated         OutboxEventType = "company_updated"
	EventCompanyDeleted         OutboxEventType = "company_deleted"
	EventActivityLinked         OutboxEventType = "activity_linked"
	EventActivityUpdated        OutboxEventType = "activity_updated"
	EventActivityUnlinked       OutboxEventType = "activity_unlinked"
	EventPrimaryActivityChanged OutboxEventType = "primary_activity_changed"
	EventDealCreated            OutboxEventType = "deal_created"
	EventDealUpdated            OutboxEventType = "deal_updated"
	EventDealStageChanged       OutboxEventType = "deal_stage_changed"
	EventDealAssociationChanged OutboxEventType = "deal_association_changed"
	EventDealArchived           OutboxEventType = "deal_archived"
	EventSynergyCreated         OutboxEventType = "synergy_created"
	EventSynergyUpdated         OutboxEventType = "synergy_updated"
	EventSynergyArchived        OutboxEventType = "synergy_archived"
)

var validOutboxEventTypes = []OutboxEventType{
	EventContactCreated,
	EventContactUpdated,
	EventContactArchived,
	EventContactDeleted,
	EventCompanyCreated,
	EventCompanyUpdated,
	EventCompanyDeleted,
	EventActivityLinked,
	EventActivityUpdated,
	EventActivityUnlinked,
	EventPrimaryActivityChanged,
	EventDealCreated,
	EventDealUpdated,
	EventDealStageChanged,
	EventDealAssociationChanged,
	EventDealArchived,
	EventSynergyCreated,
	EventSynergyUpdated,
	EventSynergyArchived,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
