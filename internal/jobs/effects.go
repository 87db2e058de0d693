package jobs

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"docflow/api/internal/models"
)

const notifyStream = "docflow:notify"

// TransitionEvent is what a committed status transition hands to the
// dispatcher. It is a snapshot: the jobs never read back the document.
type TransitionEvent struct {
	DocumentID string
	Filename   string
	Status     models.DocumentStatus
	ActorID    string
	ActorEmail string
	OwnerID    string
	OwnerEmail string
	Comment    *string
}

// AuditLogJob writes a structured audit record for the transition.
func AuditLogJob(log zerolog.Logger, event TransitionEvent) Job {
	return Job{
		Name: "audit-log",
		Run: func(ctx context.Context) error {
			entry := log.Info().
				Str("action", auditAction(event.Status)).
				Str("document_id", event.DocumentID).
				Str("filename", event.Filename).
				Str("actor_id", event.ActorID).
				Str("actor_email", event.ActorEmail).
				Str("owner_id", event.OwnerID)
			if event.Comment != nil {
				entry = entry.Str("comment", *event.Comment)
			}
			entry.Msg("audit")
			return nil
		},
	}
}

// NotifyOwnerJob publishes a notification event for the document owner to
// the redis stream a downstream notifier consumes. Best-effort: a publish
// failure is returned to the dispatcher, logged, and forgotten.
func NotifyOwnerJob(client *redis.Client, event TransitionEvent) Job {
	return Job{
		Name: "notify-owner",
		Run: func(ctx context.Context) error {
			if client == nil {
				return nil
			}
			values := map[string]any{
				"type":       "document_" + string(event.Status),
				"documentId": event.DocumentID,
				"filename":   event.Filename,
				"ownerEmail": event.OwnerEmail,
				"actorEmail": event.ActorEmail,
			}
			if event.Comment != nil {
				values["comment"] = *event.Comment
			}
			return client.XAdd(ctx, &redis.XAddArgs{
				Stream: notifyStream,
				Values: values,
			}).Err()
		},
	}
}

func auditAction(status models.DocumentStatus) string {
	switch status {
	case models.DocumentStatusApproved:
		return "DOCUMENT_APPROVED"
	case models.DocumentStatusRejected:
		return "DOCUMENT_REJECTED"
	default:
		return "DOCUMENT_" + string(status)
	}
}
