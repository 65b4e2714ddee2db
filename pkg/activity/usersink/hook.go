// Package usersink forwards store activity into a go-users ActivitySink.
package usersink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-store/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Data keys added to every record next to the event metadata.
const (
	DataRevision       = "revision"
	DataPaths          = "paths"
	DataDefinitionCode = "definition_code"
	DataRecipients     = "recipients"
)

// Hook adapts activity events to a go-users ActivitySink. DefaultActorID and
// DefaultTenantID fill in for events whose ids are blank or not UUIDs, which
// is the case for events a store builds on its own.
type Hook struct {
	Sink            usertypes.ActivitySink
	DefaultActorID  uuid.UUID
	DefaultTenantID uuid.UUID
}

var _ activity.ActivityHook = Hook{}

// Notify maps the event into an ActivityRecord and logs it.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || !event.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	record := h.record(activity.NormalizeEvent(event))
	if err := h.Sink.Log(ctx, record); err != nil {
		return fmt.Errorf("usersink: log %s %s: %w", record.Verb, record.ObjectID, err)
	}
	return nil
}

func (h Hook) record(event activity.Event) usertypes.ActivityRecord {
	data := make(map[string]any, len(event.Metadata)+4)
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.Revision > 0 {
		data[DataRevision] = event.Revision
	}
	if len(event.Paths) > 0 {
		data[DataPaths] = event.Paths
	}
	if event.DefinitionCode != "" {
		data[DataDefinitionCode] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data[DataRecipients] = event.Recipients
	}
	if len(data) == 0 {
		data = nil
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID, h.DefaultActorID),
		UserID:     parseUUID(event.UserID, uuid.Nil),
		TenantID:   parseUUID(event.TenantID, h.DefaultTenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: occurredAt,
	}
}

func parseUUID(input string, fallback uuid.UUID) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return fallback
	}
	return id
}
