package activity

import (
	"strings"
	"time"
)

// Verbs emitted by a store.
const (
	VerbUpdated      = "store.updated"
	VerbSubscribed   = "store.subscribed"
	VerbUnsubscribed = "store.unsubscribed"
)

// Object types used by store events.
const (
	ObjectTypeState        = "store.state"
	ObjectTypeSubscription = "store.subscription"
)

// Metadata keys set by the builders.
const (
	MetaSnapshotID       = "snapshot_id"
	MetaPreviousID       = "previous_snapshot_id"
	MetaSubscriptionPath = "subscription_path"
	MetaCondition        = "condition"
)

// StateEventInput carries what a store knows when it builds an event.
type StateEventInput struct {
	ActorID          string
	UserID           string
	TenantID         string
	ObjectID         string
	Channel          string
	DefinitionCode   string
	Recipients       []string
	Metadata         map[string]any
	Paths            []string
	Revision         uint64
	SnapshotID       string
	PreviousID       string
	SubscriptionID   string
	SubscriptionPath string
	Condition        string
	OccurredAt       time.Time
}

// BuildStateUpdatedEvent describes a committed update. The object is the new
// snapshot.
func BuildStateUpdatedEvent(input StateEventInput) Event {
	return buildStateEvent(VerbUpdated, ObjectTypeState, input)
}

// BuildSubscriptionCreatedEvent describes a new registration. The object is
// the registration id.
func BuildSubscriptionCreatedEvent(input StateEventInput) Event {
	return buildStateEvent(VerbSubscribed, ObjectTypeSubscription, input)
}

// BuildSubscriptionRemovedEvent describes a removed registration.
func BuildSubscriptionRemovedEvent(input StateEventInput) Event {
	return buildStateEvent(VerbUnsubscribed, ObjectTypeSubscription, input)
}

func buildStateEvent(verb, objectType string, input StateEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	set(MetaSnapshotID, input.SnapshotID)
	set(MetaPreviousID, input.PreviousID)
	if objectType == ObjectTypeSubscription {
		// root subscriptions keep an empty path entry
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[MetaSubscriptionPath] = input.SubscriptionPath
		set(MetaCondition, input.Condition)
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID(objectType, input),
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     append([]string(nil), input.Recipients...),
		Revision:       input.Revision,
		Paths:          append([]string(nil), input.Paths...),
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func objectID(objectType string, input StateEventInput) string {
	candidates := []string{input.ObjectID}
	if objectType == ObjectTypeSubscription {
		candidates = append(candidates, input.SubscriptionID)
	}
	candidates = append(candidates, input.SnapshotID)
	for _, candidate := range candidates {
		if id := strings.TrimSpace(candidate); id != "" {
			return id
		}
	}
	return objectType
}
