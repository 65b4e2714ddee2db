package activity

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildStateUpdatedEvent(t *testing.T) {
	meta := map[string]any{"custom": "value"}
	paths := []string{"name", "name.first"}
	input := StateEventInput{
		ActorID:        " actor ",
		UserID:         " user ",
		TenantID:       " tenant ",
		Metadata:       meta,
		Paths:          paths,
		Revision:       4,
		SnapshotID:     "snap-4",
		PreviousID:     "snap-3",
		DefinitionCode: "store:update",
		Recipients:     []string{"user@example.com"},
		Channel:        "store",
	}

	event := BuildStateUpdatedEvent(input)

	if event.Verb != VerbUpdated {
		t.Fatalf("expected verb %s got %s", VerbUpdated, event.Verb)
	}
	if event.ObjectType != ObjectTypeState || event.ObjectID != "snap-4" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "actor" || event.UserID != "user" || event.TenantID != "tenant" {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	if event.Revision != 4 {
		t.Fatalf("expected revision 4, got %d", event.Revision)
	}
	if diff := cmp.Diff(paths, event.Paths); diff != "" {
		t.Fatalf("unexpected paths (-want +got):\n%s", diff)
	}
	wantMeta := map[string]any{"custom": "value", MetaSnapshotID: "snap-4", MetaPreviousID: "snap-3"}
	if diff := cmp.Diff(wantMeta, event.Metadata); diff != "" {
		t.Fatalf("unexpected metadata (-want +got):\n%s", diff)
	}

	event.Paths[0] = "changed"
	if paths[0] != "name" {
		t.Fatalf("expected input paths untouched, got %v", paths)
	}
	event.Recipients[0] = "changed"
	if input.Recipients[0] != "user@example.com" {
		t.Fatalf("expected input recipients untouched, got %v", input.Recipients)
	}
	if _, ok := meta[MetaSnapshotID]; ok {
		t.Fatalf("expected input metadata untouched")
	}
}

func TestBuildSubscriptionEvents(t *testing.T) {
	event := BuildSubscriptionCreatedEvent(StateEventInput{
		SubscriptionID:   "sub-1",
		SubscriptionPath: "name.first",
		SnapshotID:       "snap-1",
		Condition:        "value != nil",
	})
	if event.Verb != VerbSubscribed {
		t.Fatalf("expected verb %s got %s", VerbSubscribed, event.Verb)
	}
	if event.ObjectType != ObjectTypeSubscription || event.ObjectID != "sub-1" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.Metadata[MetaSubscriptionPath] != "name.first" || event.Metadata[MetaCondition] != "value != nil" {
		t.Fatalf("unexpected subscription metadata %+v", event.Metadata)
	}

	root := BuildSubscriptionCreatedEvent(StateEventInput{SubscriptionID: "sub-2"})
	if path, ok := root.Metadata[MetaSubscriptionPath]; !ok || path != "" {
		t.Fatalf("expected root subscription path recorded as empty, got %+v", root.Metadata)
	}

	removed := BuildSubscriptionRemovedEvent(StateEventInput{})
	if removed.Verb != VerbUnsubscribed || removed.ObjectID != ObjectTypeSubscription {
		t.Fatalf("expected fallback object id, got %+v", removed)
	}
}

func TestBuildStateUpdatedEventFallsBackToObjectType(t *testing.T) {
	event := BuildStateUpdatedEvent(StateEventInput{SubscriptionID: "ignored"})
	if event.ObjectID != ObjectTypeState {
		t.Fatalf("expected object type fallback, got %q", event.ObjectID)
	}
	if event.Metadata != nil {
		t.Fatalf("expected no metadata, got %+v", event.Metadata)
	}
}

func TestBuildStateEventsWorkWithHooks(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}

	err := hooks.Notify(context.Background(), BuildStateUpdatedEvent(StateEventInput{
		Paths:      []string{"a", "a"},
		Revision:   1,
		SnapshotID: "snap-1",
	}))
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	events := capture.Events()
	if len(events) != 1 || events[0].Verb != VerbUpdated {
		t.Fatalf("expected one %s event, got %+v", VerbUpdated, events)
	}
	if diff := cmp.Diff([]string{"a"}, events[0].Paths); diff != "" {
		t.Fatalf("expected deduplicated paths (-want +got):\n%s", diff)
	}
}
