package pointsrouter

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"
)

// replyingHandlers answers leaderboard requests with the subject they
// arrived on.
type replyingHandlers struct {
	fakeHandlers
}

func (h *replyingHandlers) HandleNATSLeaderboard(msg *nats.Msg) {
	_ = msg.Respond([]byte(msg.Subject))
}

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcnats.Run(ctx,
		"nats:2.10-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Server is ready"),
				wait.ForListeningPort("4222/tcp"),
			).WithDeadline(45*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestRouter_RequestReplyOverNATS(t *testing.T) {
	nc := startNATS(t)

	r := NewRouter(&replyingHandlers{}, nc, nil)
	require.NoError(t, r.Start())
	t.Cleanup(func() { _ = r.Stop() })

	reply, err := nc.Request(LeaderboardSubject, []byte(`{"organization_id":1}`), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, LeaderboardSubject, string(reply.Data))

	require.NoError(t, r.Stop())
	_, err = nc.Request(LeaderboardSubject, nil, 500*time.Millisecond)
	assert.ErrorIs(t, err, nats.ErrNoResponders)
}
