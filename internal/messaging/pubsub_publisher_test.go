//go:build integration

package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/illmade-knight/random-user/app"
	"github.com/illmade-knight/random-user/internal/messaging"
	"github.com/illmade-knight/random-user/pkg/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher struct {
	list []users.User
}

func (f staticFetcher) GetUsers(ctx context.Context, page, results int) ([]users.User, error) {
	return f.list, nil
}

func TestEventPublisher_Forward(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
	const projectID = "test-project"
	runID := uuid.NewString()

	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = psClient.Close() })

	topicID := "userlist-events-" + runID
	subID := "userlist-events-sub-" + runID
	createPubsubResources(t, ctx, psClient, projectID, topicID, subID)

	// Arrange: an App whose events are forwarded to the topic
	publisher := messaging.NewEventPublisher(psClient, topicID, logger)
	a := app.New(staticFetcher{list: []users.User{{ID: "a", DisplayName: "Mr A", Gender: users.GenderMale}}},
		users.NewInMemoryStore(), logger, app.Options{})
	a.Subscribe(publisher.Forward(ctx))

	// Act
	require.NoError(t, a.Refresh(ctx))
	publisher.Stop()

	// Assert: the final state_changed event carries the fetched user
	receiveCtx, stopReceive := context.WithTimeout(ctx, 30*time.Second)
	defer stopReceive()
	var found bool
	err = psClient.Subscriber(subID).Receive(receiveCtx, func(_ context.Context, msg *pubsub.Message) {
		msg.Ack()
		var ev struct {
			Type  string `json:"type"`
			State struct {
				Users []struct {
					ID string `json:"id"`
				} `json:"users"`
			} `json:"state"`
		}
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, ev.Type, msg.Attributes["type"])
		if ev.Type == string(app.EventStateChanged) && len(ev.State.Users) == 1 {
			assert.Equal(t, "a", ev.State.Users[0].ID)
			found = true
			stopReceive()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Receiving events failed: %v", err)
	}
	assert.True(t, found, "expected a state_changed event with the fetched user")
}

func TestEventPublisher_ForwardSurvivesCancellationAndStop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	logger := zerolog.New(zerolog.NewTestWriter(t))
	const projectID = "test-project"
	runID := uuid.NewString()

	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = psClient.Close() })

	topicID := "userlist-shutdown-" + runID
	subID := "userlist-shutdown-sub-" + runID
	createPubsubResources(t, ctx, psClient, projectID, topicID, subID)

	// Arrange: the forwarding context is already cancelled, as after SIGINT
	shutdownCtx, shutdown := context.WithCancel(ctx)
	shutdown()
	publisher := messaging.NewEventPublisher(psClient, topicID, logger)
	forward := publisher.Forward(shutdownCtx)

	before := app.Event{ID: uuid.New(), Seq: 1, Type: app.EventStateChanged}
	after := app.Event{ID: uuid.New(), Seq: 2, Type: app.EventStateChanged}

	// Act
	forward(before)
	publisher.Stop()
	forward(after)
	publisher.Stop()

	// Assert: the event forwarded before Stop is flushed, the later one is dropped
	receiveCtx, stopReceive := context.WithTimeout(ctx, 15*time.Second)
	defer stopReceive()
	var mu sync.Mutex
	seen := make(map[string]bool)
	err = psClient.Subscriber(subID).Receive(receiveCtx, func(_ context.Context, msg *pubsub.Message) {
		msg.Ack()
		var ev struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(msg.Data, &ev) != nil {
			return
		}
		mu.Lock()
		seen[ev.ID] = true
		mu.Unlock()
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Receiving events failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen[before.ID.String()], "event forwarded before stop should be published")
	assert.False(t, seen[after.ID.String()], "event forwarded after stop should be dropped")
}

func createPubsubResources(t *testing.T, ctx context.Context, client *pubsub.Client, projectID, topicID, subID string) {
	t.Helper()
	topicAdminClient := client.TopicAdminClient
	subAdminClient := client.SubscriptionAdminClient

	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err := topicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = topicAdminClient.DeleteTopic(context.Background(), &pubsubpb.DeleteTopicRequest{Topic: topicName})
	})

	subName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
	_, err = subAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:  subName,
		Topic: topicName,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = subAdminClient.DeleteSubscription(context.Background(), &pubsubpb.DeleteSubscriptionRequest{Subscription: subName})
	})
}
