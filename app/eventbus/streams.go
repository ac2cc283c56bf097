package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/points-ledger/app/shared/attr"
	"github.com/nats-io/nats.go/jetstream"
)

// EnsureStream creates the JetStream stream for subjects, or updates its
// subject list when it already exists.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name string, subjects []string, logger *slog.Logger) error {
	if name == "" || len(subjects) == 0 {
		return errors.New("jetstream stream name and subjects are required")
	}

	_, err := js.Stream(ctx, name)
	switch {
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, jetstream.StreamConfig{Name: name, Subjects: subjects}); err != nil {
			logger.Error("Failed to create JetStream stream", attr.String("stream", name), attr.Error(err))
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}
		logger.Info("Created JetStream stream", attr.String("stream", name))
	case err != nil:
		return fmt.Errorf("failed to check stream %s: %w", name, err)
	default:
		if _, err := js.UpdateStream(ctx, jetstream.StreamConfig{Name: name, Subjects: subjects}); err != nil {
			return fmt.Errorf("failed to update stream %s: %w", name, err)
		}
		logger.Info("JetStream stream up to date", attr.String("stream", name))
	}
	return nil
}
