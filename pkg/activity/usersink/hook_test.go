package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/goliatone/go-store/pkg/activity"
	"github.com/goliatone/go-store/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsStateEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	userID := uuid.New()
	tenantID := uuid.New()

	event := activity.BuildStateUpdatedEvent(activity.StateEventInput{
		ActorID:        actorID.String(),
		UserID:         userID.String(),
		TenantID:       tenantID.String(),
		Channel:        "store",
		DefinitionCode: "store:update",
		Recipients:     []string{"recipient@example.com"},
		Paths:          []string{"feature", "feature.flag"},
		Revision:       7,
		SnapshotID:     "snap-7",
		PreviousID:     "snap-6",
		OccurredAt:     now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.UserID != userID || record.TenantID != tenantID {
		t.Fatalf("unexpected identities: %+v", record)
	}
	if record.Verb != activity.VerbUpdated || record.ObjectType != activity.ObjectTypeState || record.ObjectID != "snap-7" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "store" || !record.OccurredAt.Equal(now) {
		t.Fatalf("unexpected channel or timestamp: %+v", record)
	}

	want := map[string]any{
		activity.MetaSnapshotID:     "snap-7",
		activity.MetaPreviousID:     "snap-6",
		usersink.DataRevision:       uint64(7),
		usersink.DataPaths:          []string{"feature", "feature.flag"},
		usersink.DataDefinitionCode: "store:update",
		usersink.DataRecipients:     []string{"recipient@example.com"},
	}
	if diff := cmp.Diff(want, record.Data); diff != "" {
		t.Fatalf("unexpected record data (-want +got):\n%s", diff)
	}
}

func TestHookNotifyUsesDefaultIdentities(t *testing.T) {
	sink := &recordingSink{}
	actor := uuid.New()
	tenant := uuid.New()
	hook := usersink.Hook{Sink: sink, DefaultActorID: actor, DefaultTenantID: tenant}

	err := hook.Notify(context.Background(), activity.BuildSubscriptionCreatedEvent(activity.StateEventInput{
		ActorID:          "not-a-uuid",
		SubscriptionID:   uuid.NewString(),
		SubscriptionPath: "name.first",
	}))
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	record := sink.records[0]
	if record.ActorID != actor || record.TenantID != tenant || record.UserID != uuid.Nil {
		t.Fatalf("expected default identities, got %+v", record)
	}
	if record.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}

func TestHookNotifySkipsInvalidEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	if err := hook.Notify(context.Background(), activity.Event{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := (usersink.Hook{}).Notify(context.Background(), activity.Event{Verb: "x", ObjectType: "y", ObjectID: "z"}); err != nil {
		t.Fatalf("expected nil sink to be a no-op, got %v", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected no records, got %d", len(sink.records))
	}
}

func TestHookNotifyWrapsSinkErrors(t *testing.T) {
	sinkErr := errors.New("db down")
	hook := usersink.Hook{Sink: &recordingSink{err: sinkErr}}

	err := hook.Notify(context.Background(), activity.BuildStateUpdatedEvent(activity.StateEventInput{SnapshotID: "snap-1"}))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error to be wrapped, got %v", err)
	}
}
