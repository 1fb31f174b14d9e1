package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/repo"
)

// actorFields are the payload keys that name who caused an event.
type actorFields struct {
	UserID     string `json:"userId"`
	UploadedBy string `json:"uploadedBy"`
	Reason     string `json:"reason"`
}

// ActivityLogHandler projects every event into the activity log, one row
// per event ID.
func ActivityLogHandler(db *gorm.DB, log zerolog.Logger) HandlerFunc {
	return func(ctx context.Context, ev domain.Event) error {
		var f actorFields
		if len(ev.Payload) > 0 {
			if err := json.Unmarshal(ev.Payload, &f); err != nil {
				return fmt.Errorf("decode payload of %s: %w", ev.ID, err)
			}
		}
		actor := f.UserID
		if actor == "" {
			actor = f.UploadedBy
		}

		written, err := repo.RecordActivity(ctx, db, &domain.ActivityLog{
			EventID:     ev.ID,
			Type:        ev.Type,
			AggregateID: ev.AggregateID,
			ActorID:     actor,
			Subject:     subject(ev.Type, ev.AggregateID, f.Reason),
		})
		if err != nil {
			return err
		}
		if written {
			log.Info().
				Str("event_id", ev.ID).
				Str("type", ev.Type).
				Str("aggregate_id", ev.AggregateID).
				Str("actor_id", actor).
				Msg("activity")
		}
		return nil
	}
}

func subject(typ, id, reason string) string {
	switch typ {
	case domain.EventThreadCreated:
		return "thread " + id + " started"
	case domain.EventThreadCompleted:
		return "thread " + id + " completed"
	case domain.EventThreadAbandoned:
		return "thread " + id + " abandoned"
	case domain.EventDocumentReady:
		return "document " + id + " ready"
	case domain.EventDocumentFailed:
		if reason != "" {
			return "document " + id + " failed: " + reason
		}
		return "document " + id + " failed"
	}
	return typ + " " + id
}
