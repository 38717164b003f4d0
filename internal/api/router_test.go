package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/api"
	"github.com/ricirt/feedhub/internal/api/handler"
	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/idempotency"
	"github.com/ricirt/feedhub/internal/metrics"
	"github.com/ricirt/feedhub/internal/notify"
	"github.com/ricirt/feedhub/internal/presence"
	"github.com/ricirt/feedhub/internal/queue"
	"github.com/ricirt/feedhub/internal/ratelimiter"
	"github.com/ricirt/feedhub/internal/realtime"
	"github.com/ricirt/feedhub/internal/repository"
	"github.com/ricirt/feedhub/internal/service"
	"github.com/ricirt/feedhub/internal/timeline"
)

type server struct {
	h     http.Handler
	posts *repository.MockPostRepository
	jobs  *repository.MockJobRepository
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := zap.NewNop()

	users := repository.NewMockUserRepository()
	posts := repository.NewMockPostRepository()
	comments := repository.NewMockCommentRepository(posts)
	jobs := repository.NewMockJobRepository()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	broker := queue.NewBroker(jobs, 3, logger, m.OnEnqueued)
	ready := queue.NewReadyQueue(8)
	registry := presence.NewRegistry(logger, m.OnPresenceChange)
	hub := realtime.NewHub(registry, 8, logger)
	t.Cleanup(hub.Close)

	onDelivered, onDropped := m.NotifyHooks()
	dispatcher := notify.NewDispatcher(registry, hub, 4, logger, notify.Hooks{OnDelivered: onDelivered, OnDropped: onDropped})
	authors := timeline.NewAuthorCache(users, 16, time.Minute)

	service.NewJobHandlers(users, posts, comments, broker, dispatcher,
		idempotency.NewMemoryLedger(time.Hour), logger).Register(broker)

	h := api.NewRouter(api.Deps{
		Users: service.NewUserService(users, dispatcher, logger),
		Posts: service.NewPostService(posts, users, broker, dispatcher,
			ratelimiter.New(3, time.Minute, 16), 5*time.Second, logger, func() { m.PostsRateLimited.Inc() }),
		Comments: service.NewCommentService(comments, posts, users, authors, broker, logger),
		Feed:     timeline.NewAggregator(users, posts, comments, authors, logger),
		Broker:   broker,
		Ready:    ready,
		Presence: registry,
		Realtime: hub,
		Gatherer: reg,
		Checks: map[string]handler.Check{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
		CORSOrigins: []string{"*"},
	}, logger)
	return &server{h: h, posts: posts, jobs: jobs}
}

func (s *server) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func (s *server) createUser(t *testing.T, name string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/users", "", map[string]string{"username": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var u domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	return u.ID
}

func (s *server) seedPost(t *testing.T, id, authorID string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := s.posts.Insert(context.Background(), &domain.Post{ID: id, AuthorID: authorID, Content: "hello", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
}

func TestRouter_Health(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestRouter_ReadyReportsFailingCheck(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"postgres":"ok","redis":"connection refused"}`, rec.Body.String())
}

func TestRouter_EchoesCorrelationID(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "bad id")
	rec = httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.NotEqual(t, "bad id", rec.Header().Get("X-Correlation-ID"))
}

func TestRouter_WritesRequireCaller(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/posts", "", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_CreatePostIsAccepted(t *testing.T) {
	s := newServer(t)
	alice := s.createUser(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/v1/posts", alice, map[string]string{"content": "hi"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var ack service.CreatePostAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "Post will be created in 5 seconds", ack.Message)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+ack.JobID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job domain.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, domain.JobWaiting, job.State)
}

func TestRouter_CreatePostRateLimited(t *testing.T) {
	s := newServer(t)
	alice := s.createUser(t, "alice")

	for i := 0; i < 3; i++ {
		rec := s.do(t, http.MethodPost, "/api/v1/posts", alice, map[string]string{"content": "hi"})
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/api/v1/posts", alice, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRouter_ErrorMapping(t *testing.T) {
	s := newServer(t)
	alice := s.createUser(t, "alice")
	bob := s.createUser(t, "bob")
	s.seedPost(t, "p1", alice)

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   any
		want   int
	}{
		{"unknown post", http.MethodGet, "/api/v1/posts/missing", "", nil, http.StatusNotFound},
		{"self follow", http.MethodPost, "/api/v1/users/" + alice + "/follow", alice, nil, http.StatusUnprocessableEntity},
		{"follow unknown", http.MethodPost, "/api/v1/users/ghost/follow", alice, nil, http.StatusNotFound},
		{"edit others post", http.MethodPut, "/api/v1/posts/p1", bob, map[string]string{"content": "x"}, http.StatusForbidden},
		{"delete others post", http.MethodDelete, "/api/v1/posts/p1", bob, nil, http.StatusForbidden},
		{"empty comment", http.MethodPost, "/api/v1/posts/p1/comments", bob, map[string]string{"content": " "}, http.StatusUnprocessableEntity},
		{"blank username", http.MethodPost, "/api/v1/users", "", map[string]string{"username": ""}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.caller, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_BadJSON(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_FollowAndTimeline(t *testing.T) {
	s := newServer(t)
	alice := s.createUser(t, "alice")
	bob := s.createUser(t, "bob")
	s.seedPost(t, "p1", alice)

	rec := s.do(t, http.MethodPost, "/api/v1/users/"+alice+"/follow", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/timeline", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var feed []domain.PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, "alice", feed[0].Author.Username)

	rec = s.do(t, http.MethodGet, "/api/v1/users", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing []domain.UserListing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing, 1)
	assert.True(t, listing[0].IsFollowed)
}

func TestRouter_LikeUnlike(t *testing.T) {
	s := newServer(t)
	alice := s.createUser(t, "alice")
	s.seedPost(t, "p1", alice)

	rec := s.do(t, http.MethodPost, "/api/v1/posts/p1/like", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res domain.LikeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, domain.LikeResult{Liked: true, LikeCount: 1}, res)

	rec = s.do(t, http.MethodDelete, "/api/v1/posts/p1/like", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, domain.LikeResult{Liked: false, LikeCount: 0}, res)
}

func TestRouter_MineIsNotAPostID(t *testing.T) {
	s := newServer(t)
	alice := s.createUser(t, "alice")
	s.seedPost(t, "p1", alice)

	rec := s.do(t, http.MethodGet, "/api/v1/posts/mine", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []domain.PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)
}

func TestRouter_DeadLetteredListIsEmptyArray(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/jobs/dead?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRouter_MetricsSnapshot(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready_queue_depth":0,"live_connections":0}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/posts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
