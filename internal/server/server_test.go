package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/config"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cronSecret = "test-cron-secret"

// Thursday 2026-10-15, week of Monday 2026-10-12
var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type captureSink struct {
	mu  sync.Mutex
	got []domain.Notification
}

func (s *captureSink) Send(ctx context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Ledger.Backend = config.BackendMemory
	cfg.Ledger.Location = time.UTC
	cfg.Cron.Secret = cronSecret
	cfg.Reports.Concurrency = 4
	cfg.Server.AppBaseURL = "https://studio.example"
	return cfg
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

// SetupTestDB spins up a single-node MongoDB replica set (transactions need
// one) and returns a database handle.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	if err != nil {
		t.Fatalf("failed to start container: %s", err)
	}

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(endpoint).SetDirect(true))
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}

	t.Cleanup(func() {
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("failed to disconnect mongo: %v", err)
		}
		if err := container.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %v", err)
		}
	})
	return client.Database("test_ledger")
}

type apiClient struct {
	t   *testing.T
	app *fiber.App
}

func (a apiClient) do(method, path string, body interface{}, headers map[string]string) (int, map[string]interface{}, http.Header) {
	a.t.Helper()
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		bodyReader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, path, bodyReader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	var out map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(a.t, json.Unmarshal(raw, &out))
	} else if len(raw) > 0 {
		out = map[string]interface{}{"items": nil}
		var items []interface{}
		require.NoError(a.t, json.Unmarshal(raw, &items))
		out["items"] = items
	}
	return resp.StatusCode, out, resp.Header
}

// runLedgerFlow drives a member's package from 8/10 used to exhaustion and
// back through the HTTP surface, then generates and reads weekly reports.
func runLedgerFlow(t *testing.T, app *fiber.App, ownerID string, sink *captureSink) {
	api := apiClient{t: t, app: app}

	status, body, _ := api.do("GET", "/health", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	// Package
	status, body, _ = api.do("POST", "/v1/packages", map[string]interface{}{
		"owner_id":      ownerID,
		"total_lessons": 10,
		"used_lessons":  8,
	}, nil)
	require.Equal(t, http.StatusCreated, status, body)
	packageID := body["id"].(string)
	require.NotEmpty(t, packageID)

	status, body, _ = api.do("POST", "/v1/packages", map[string]interface{}{
		"owner_id":      ownerID,
		"total_lessons": 5,
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "active_package_exists", body["code"])

	lessonsPath := "/v1/packages/" + packageID + "/lessons"

	// Low credit: 1 left after this one
	correlation := map[string]string{"X-Correlation-ID": "corr-1"}
	status, body, _ = api.do("POST", lessonsPath, map[string]interface{}{
		"owner_id":  ownerID,
		"date":      "2026-10-14",
		"client_id": "01JBBBBBBBBBBBBBBBBBBBBBBB",
	}, correlation)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, float64(1), body["remaining"])
	assert.Equal(t, "low", body["level"])
	assert.Equal(t, 1, sink.count())

	// A retried request replays instead of double-counting
	status, body, headers := api.do("POST", lessonsPath, map[string]interface{}{
		"owner_id": ownerID,
		"date":     "2026-10-14",
	}, correlation)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "true", headers.Get("X-Idempotent-Replay"))
	assert.Equal(t, float64(1), body["remaining"])

	status, body, _ = api.do("POST", lessonsPath, map[string]interface{}{
		"owner_id": ownerID,
		"date":     "2026-10-14",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_attendance", body["code"])

	status, body, _ = api.do("POST", lessonsPath, map[string]interface{}{
		"owner_id": ownerID,
		"date":     "2026-10-16",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "future_date", body["code"])

	status, _, _ = api.do("POST", lessonsPath, map[string]interface{}{
		"owner_id": "someone-else",
		"date":     "2026-10-13",
	}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Last credit
	status, body, _ = api.do("POST", lessonsPath, map[string]interface{}{
		"owner_id": ownerID,
		"date":     "2026-10-15",
	}, nil)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, float64(0), body["remaining"])
	assert.Equal(t, "completed", body["status"])
	lastLessonID := body["lesson_id"].(string)
	assert.Equal(t, 1, sink.count())

	status, body, _ = api.do("POST", lessonsPath, map[string]interface{}{
		"owner_id": ownerID,
		"date":     "2026-10-13",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "capacity_exceeded", body["code"])

	// Undo
	status, _, _ = api.do("DELETE", "/v1/lessons/"+lastLessonID, nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = api.do("DELETE", "/v1/lessons/"+lastLessonID, nil, map[string]string{"X-Requested-By": "intruder"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body, _ = api.do("DELETE", lessonsPath+"/"+lastLessonID, nil, map[string]string{"X-Requested-By": ownerID})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(1), body["remaining"])

	status, body, _ = api.do("GET", "/v1/packages/"+packageID, nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["remaining"])
	assert.Equal(t, "low", body["level"])

	status, body, _ = api.do("GET", "/v1/members/"+ownerID+"/lessons?from=2026-10-01&to=2026-10-31", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)

	// Weekly reports
	status, _, _ = api.do("POST", "/v1/cron/weekly-reports", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _, _ = api.do("POST", "/v1/cron/weekly-reports", nil, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	auth := map[string]string{"Authorization": "Bearer " + cronSecret}
	for i := 0; i < 2; i++ {
		status, body, _ = api.do("POST", "/v1/cron/weekly-reports?as_of=2026-10-15", nil, auth)
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, float64(1), body["generated"])
		assert.Equal(t, float64(1), body["total"])
		assert.Equal(t, "2026-10-12", body["week_start"])
	}

	status, body, _ = api.do("GET", "/v1/members/"+ownerID+"/weekly-reports", nil, nil)
	require.Equal(t, http.StatusOK, status)
	reports := body["items"].([]interface{})
	require.Len(t, reports, 1)
	report := reports[0].(map[string]interface{})
	assert.Equal(t, float64(1), report["lessons_count"])
	assert.Equal(t, float64(1), report["consecutive_weeks"])
	assert.NotEmpty(t, report["message"])
}

func TestLedgerFlowInMemory(t *testing.T) {
	store := repository.NewMemoryLedgerStore()
	store.SetMemberActive("member-1", true)
	sink := &captureSink{}

	app := NewApp(AppDependencies{
		Config:      testConfig(),
		Store:       store,
		Members:     store,
		RedisClient: setupRedis(t),
		Sink:        sink,
		Now:         func() time.Time { return testNow },
	})

	runLedgerFlow(t, app, "member-1", sink)
}

func TestLedgerFlowMongo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db := SetupTestDB(t)
	members := repository.NewMongoMemberRepository(db)
	member := &domain.Member{Name: "Deniz", IsActive: true}
	require.NoError(t, members.Create(context.Background(), member))
	sink := &captureSink{}

	app := NewApp(AppDependencies{
		Config:      testConfig(),
		Store:       repository.NewMongoLedgerStore(db),
		Members:     members,
		RedisClient: setupRedis(t),
		Sink:        sink,
		PushTokens:  repository.NewMongoPushTokenRepository(db),
		Now:         func() time.Time { return testNow },
	})

	runLedgerFlow(t, app, member.ID, sink)

	api := apiClient{t: t, app: app}
	status, _, _ := api.do("POST", "/v1/members/"+member.ID+"/push-tokens", map[string]string{"token": "device-1"}, nil)
	assert.Equal(t, http.StatusNoContent, status)
}
