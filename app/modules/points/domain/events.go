package pointsdomain

// Topics of the domain events published after a write commits.
const (
	TopicBatchApplied  = "points.batch.applied.v1"
	TopicHonorsAwarded = "points.honors.awarded.v1"
	TopicHonorUpdated  = "points.honors.updated.v1"
	TopicHonorDeleted  = "points.honors.deleted.v1"
)

// Topics lists every points event topic.
var Topics = []string{TopicBatchApplied, TopicHonorsAwarded, TopicHonorUpdated, TopicHonorDeleted}

// BatchAppliedEvent is published after ApplyBatch commits.
type BatchAppliedEvent struct {
	OrganizationID OrganizationID   `json:"organization_id"`
	ActorID        ActorID          `json:"actor_id"`
	Results        []MutationResult `json:"results"`
}

// HonorsAwardedEvent is published after AwardHonors commits.
type HonorsAwardedEvent struct {
	OrganizationID OrganizationID     `json:"organization_id"`
	ActorID        ActorID            `json:"actor_id"`
	Results        []HonorAwardResult `json:"results"`
}

// HonorUpdatedEvent is published after UpdateHonor commits.
type HonorUpdatedEvent struct {
	OrganizationID OrganizationID    `json:"organization_id"`
	ActorID        ActorID           `json:"actor_id"`
	Result         HonorUpdateResult `json:"result"`
}

// HonorDeletedEvent is published after DeleteHonor commits.
type HonorDeletedEvent struct {
	OrganizationID OrganizationID    `json:"organization_id"`
	ActorID        ActorID           `json:"actor_id"`
	Result         HonorDeleteResult `json:"result"`
}
