// Package pointsaudit consumes points domain events and writes one
// structured audit line per committed change.
package pointsaudit

import (
	"encoding/json"
	"log/slog"

	"github.com/Black-And-White-Club/points-ledger/app/eventbus"
	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	"github.com/Black-And-White-Club/points-ledger/app/shared/attr"
	"github.com/ThreeDotsLabs/watermill/message"
)

type Consumer struct {
	logger *slog.Logger
}

func NewConsumer(logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{logger: logger.With(attr.String("component", "points_audit"))}
}

// Register adds one consumer handler per points topic to router.
func (c *Consumer) Register(router *message.Router, sub message.Subscriber) {
	router.AddNoPublisherHandler("points.audit.batch_applied", pointsdomain.TopicBatchApplied, sub, c.HandleBatchApplied)
	router.AddNoPublisherHandler("points.audit.honors_awarded", pointsdomain.TopicHonorsAwarded, sub, c.HandleHonorsAwarded)
	router.AddNoPublisherHandler("points.audit.honor_updated", pointsdomain.TopicHonorUpdated, sub, c.HandleHonorUpdated)
	router.AddNoPublisherHandler("points.audit.honor_deleted", pointsdomain.TopicHonorDeleted, sub, c.HandleHonorDeleted)
}

func (c *Consumer) HandleBatchApplied(msg *message.Message) error {
	var evt pointsdomain.BatchAppliedEvent
	if !c.decode(msg, &evt) {
		return nil
	}
	for _, r := range evt.Results {
		c.logger.InfoContext(msg.Context(), "Points applied",
			c.common(msg, evt.OrganizationID, evt.ActorID),
			attr.String("target_type", string(r.Type)),
			attr.Int64("target_id", r.ID),
			attr.Int("total_points", r.TotalPoints),
			attr.Int("members_credited", len(r.MemberTotals)),
			attr.Int("members_skipped", r.SkippedCount),
		)
	}
	return nil
}

func (c *Consumer) HandleHonorsAwarded(msg *message.Message) error {
	var evt pointsdomain.HonorsAwardedEvent
	if !c.decode(msg, &evt) {
		return nil
	}
	for _, r := range evt.Results {
		args := []any{
			c.common(msg, evt.OrganizationID, evt.ActorID),
			attr.Int64("participant_id", int64(r.ParticipantID)),
			attr.String("date", r.Date),
			attr.String("action", string(r.Action)),
		}
		if r.HonorID != nil {
			args = append(args, attr.Int64("honor_id", int64(*r.HonorID)))
		}
		if r.Points != nil {
			args = append(args, attr.Int("points", *r.Points))
		}
		c.logger.InfoContext(msg.Context(), "Honor awarded", args...)
	}
	return nil
}

func (c *Consumer) HandleHonorUpdated(msg *message.Message) error {
	var evt pointsdomain.HonorUpdatedEvent
	if !c.decode(msg, &evt) {
		return nil
	}
	c.logger.InfoContext(msg.Context(), "Honor updated",
		c.common(msg, evt.OrganizationID, evt.ActorID),
		attr.Int64("honor_id", int64(evt.Result.Honor.ID)),
		attr.Int64("participant_id", int64(evt.Result.Honor.ParticipantID)),
		attr.String("date", evt.Result.Honor.Date),
		attr.Int("points_redated", evt.Result.PointsRedated),
	)
	return nil
}

func (c *Consumer) HandleHonorDeleted(msg *message.Message) error {
	var evt pointsdomain.HonorDeletedEvent
	if !c.decode(msg, &evt) {
		return nil
	}
	c.logger.InfoContext(msg.Context(), "Honor deleted",
		c.common(msg, evt.OrganizationID, evt.ActorID),
		attr.Int64("honor_id", int64(evt.Result.HonorID)),
		attr.Int64("participant_id", int64(evt.Result.ParticipantID)),
		attr.String("date", evt.Result.Date),
		attr.Int("points_removed", evt.Result.PointsRemoved),
		attr.Int("value_removed", evt.Result.ValueRemoved),
	)
	return nil
}

// decode acks malformed payloads after logging them; redelivery cannot fix
// them.
func (c *Consumer) decode(msg *message.Message, dst any) bool {
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		c.logger.ErrorContext(msg.Context(), "Dropping malformed points event",
			attr.String("topic", msg.Metadata.Get(eventbus.MetadataTopic)),
			attr.String("message_uuid", msg.UUID),
			attr.Error(err),
		)
		return false
	}
	return true
}

func (c *Consumer) common(msg *message.Message, orgID pointsdomain.OrganizationID, actor pointsdomain.ActorID) slog.Attr {
	return slog.Group("audit",
		attr.OrganizationID(int64(orgID)),
		attr.ActorID(string(actor)),
		attr.String("correlation_id", msg.Metadata.Get(eventbus.MetadataCorrelationID)),
		attr.String("message_uuid", msg.UUID),
	)
}
