//go:build integration

package e2e_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/illmade-knight/random-user/app"
	"github.com/illmade-knight/random-user/internal/api"
	"github.com/illmade-knight/random-user/internal/clients"
	"github.com/illmade-knight/random-user/internal/messaging"
	"github.com/illmade-knight/random-user/internal/metrics"
	firestorestorage "github.com/illmade-knight/random-user/internal/storage/firestore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstreamPages maps a page number to the (id, gender) pairs it serves.
// Page 2 repeats u2 to exercise deduplication across pages.
var upstreamPages = map[int][][2]string{
	1: {{"u1", "male"}, {"u2", "female"}, {"u3", "male"}},
	2: {{"u2", "female"}, {"u4", "female"}},
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		records := make([]map[string]any, 0)
		for _, p := range upstreamPages[page] {
			records = append(records, map[string]any{
				"gender": p[1],
				"name":   map[string]string{"title": "Dr", "first": "First-" + p[0], "last": "Last"},
				"login":  map[string]string{"uuid": p[0]},
				"email":  p[0] + "@example.com",
				"phone":  "555-0100",
				"picture": map[string]string{
					"large":     "https://randomuser.me/api/portraits/" + p[0] + ".jpg",
					"medium":    "https://randomuser.me/api/portraits/med/" + p[0] + ".jpg",
					"thumbnail": "https://randomuser.me/api/portraits/thumb/" + p[0] + ".jpg",
				},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": records})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFullApplicationFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)
	logger := zerolog.New(zerolog.NewTestWriter(t))
	const projectID = "test-project"
	runID := uuid.NewString()

	// 1. SETUP: Start Emulators
	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = psClient.Close() })

	firestoreConn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	fsClient, err := firestore.NewClient(ctx, projectID, firestoreConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsClient.Close() })

	topicID := "userlist-events-" + runID
	subID := "userlist-events-sub-" + runID
	createPubsubResources(t, ctx, psClient, projectID, topicID, subID)

	// 2. ARRANGE: Assemble the service the way main does
	upstream := newUpstream(t)
	collection := "random-users-" + runID
	store := firestorestorage.NewUserStore(fsClient, collection)
	userClient := clients.NewRandomUserClient(upstream.URL, "e2e", 5*time.Second, logger)
	collector := metrics.NewCollector()
	application := app.New(userClient, store, logger, app.Options{ResultsPerPage: 3, Metrics: collector})

	publisher := messaging.NewEventPublisher(psClient, topicID, logger)
	application.Subscribe(publisher.Forward(ctx))

	gin.SetMode(gin.TestMode)
	server := api.NewServer(application, collector.Handler(), logger)
	require.NoError(t, server.Start("127.0.0.1:0"))
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })
	baseURL := "http://" + server.Addr()

	post := func(path, body string) stateResponse {
		t.Helper()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, "POST %s", path)
		var st stateResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
		return st
	}

	// 3. ACT & ASSERT: refresh and fetch more through the API
	st := post("/refresh", "")
	assert.Equal(t, []string{"u1", "u2", "u3"}, st.ids())

	st = post("/fetch-more", "")
	assert.Equal(t, 2, st.Page)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, st.ids())

	// 4. Delete one user
	post("/mode", `{"value": "delete"}`)
	post("/selection/u2", "")
	st = post("/delete", "")
	assert.Equal(t, []string{"u1", "u3", "u4"}, st.ids())
	assert.Empty(t, st.Pending)

	// 5. VERIFY: Firestore holds the surviving users
	snaps, err := fsClient.Collection(collection).Documents(ctx).GetAll()
	require.NoError(t, err)
	assert.Len(t, snaps, 3)
	_, err = fsClient.Collection(collection).Doc("u2").Get(ctx)
	require.Error(t, err)

	// 6. VERIFY: the final state change reached Pub/Sub
	publisher.Stop()
	receiveCtx, stopReceive := context.WithTimeout(ctx, 30*time.Second)
	defer stopReceive()
	var mu sync.Mutex
	var sawDelete bool
	err = psClient.Subscriber(subID).Receive(receiveCtx, func(_ context.Context, msg *pubsub.Message) {
		msg.Ack()
		var ev struct {
			Type  string        `json:"type"`
			State stateResponse `json:"state"`
		}
		if json.Unmarshal(msg.Data, &ev) != nil {
			return
		}
		if ev.Type == string(app.EventStateChanged) && len(ev.State.Users) == 3 && ev.State.Mode == "delete" {
			mu.Lock()
			sawDelete = true
			mu.Unlock()
			stopReceive()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Receiving events failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, sawDelete, "expected the post-delete state on the event topic")
}

type stateResponse struct {
	Page    int      `json:"page"`
	Mode    string   `json:"mode"`
	Pending []string `json:"pending"`
	Users   []struct {
		ID string `json:"id"`
	} `json:"users"`
}

func (s stateResponse) ids() []string {
	ids := make([]string, 0, len(s.Users))
	for _, u := range s.Users {
		ids = append(ids, u.ID)
	}
	return ids
}

func createPubsubResources(t *testing.T, ctx context.Context, client *pubsub.Client, projectID, topicID, subID string) {
	t.Helper()
	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err := client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.TopicAdminClient.DeleteTopic(context.Background(), &pubsubpb.DeleteTopicRequest{Topic: topicName})
	})

	subName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{Name: subName, Topic: topicName})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.SubscriptionAdminClient.DeleteSubscription(context.Background(), &pubsubpb.DeleteSubscriptionRequest{Subscription: subName})
	})
}
