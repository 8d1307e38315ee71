package bootstrap

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/salon-booking-assistant/internal/audit"
	"github.com/wolfman30/salon-booking-assistant/internal/calendar"
	"github.com/wolfman30/salon-booking-assistant/internal/channels/line"
	appconfig "github.com/wolfman30/salon-booking-assistant/internal/config"
	"github.com/wolfman30/salon-booking-assistant/internal/conversation"
	"github.com/wolfman30/salon-booking-assistant/internal/events"
	"github.com/wolfman30/salon-booking-assistant/internal/notify"
	"github.com/wolfman30/salon-booking-assistant/internal/slots"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

func memoryConfig() *appconfig.Config {
	return &appconfig.Config{
		SalonName:              "Polish & Co.",
		SalonTimezone:          "UTC",
		BusinessStartHour:      10,
		BusinessEndHour:        20,
		SlotInterval:           30 * time.Minute,
		SlotDuration:           30 * time.Minute,
		BookingWindowDays:      30,
		TimesPerPage:           4,
		ConversationTTL:        30 * time.Minute,
		LockTTL:                30 * time.Second,
		LockWait:               time.Second,
		SlotStore:              "memory",
		ConversationStore:      "memory",
		LockStore:              "memory",
		LedgerStore:            "memory",
		CalendarProvider:       "memory",
		CalendarFailurePolicy:  appconfig.CalendarPolicyFailClosed,
		CalendarTimeout:        time.Second,
		EmailProvider:          "stub",
		LineChannelSecret:      "line-secret",
		LineChannelAccessToken: "line-token",
		AdminJWTSecret:         "admin-secret",
		AdminRateLimitRPS:      10,
		AdminRateLimitBurst:    10,
	}
}

type lineAPI struct {
	mu      sync.Mutex
	replies []line.ReplyRequest
}

func (l *lineAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req line.ReplyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		l.mu.Lock()
		l.replies = append(l.replies, req)
		l.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (l *lineAPI) last() line.ReplyRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replies[len(l.replies)-1]
}

func sendLine(t *testing.T, h http.Handler, secret, body string) int {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/line", bytes.NewReader([]byte(body)))
	req.Header.Set("X-Line-Signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestBuildMemoryAppServesLineWebhook(t *testing.T) {
	api := &lineAPI{}
	cfg := memoryConfig()
	cfg.LineAPIBaseURL = api.server(t).URL

	app, err := Build(context.Background(), cfg, logging.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer app.Close()

	code := sendLine(t, app.Handler, cfg.LineChannelSecret,
		`{"events":[{"type":"message","replyToken":"tok-1","source":{"type":"user","userId":"U1"},"message":{"id":"1","type":"text","text":"預約服務"}}]}`)
	require.Equal(t, http.StatusOK, code)

	reply := api.last()
	assert.Equal(t, "tok-1", reply.ReplyToken)
	require.Len(t, reply.Messages, 1)
	require.NotNil(t, reply.Messages[0].Template)
	assert.Equal(t, "Polish & Co.", reply.Messages[0].Template.Title)
	assert.Len(t, reply.Messages[0].Template.Actions, 3)

	state, err := app.Conversations.Get(context.Background(), "U1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, conversation.AwaitingService, state.Step)

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `salon_line_webhook_events_total{event_type="message",status="ok"} 1`)
}

func TestBuildRejectsUnsignedWebhook(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig(), logging.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer app.Close()

	code := sendLine(t, app.Handler, "wrong-secret", `{"events":[]}`)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestBuildRedisBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisAddr = mr.Addr()
	cfg.SlotStore = "redis"
	cfg.ConversationStore = "redis"
	cfg.LockStore = "redis"
	cfg.DedupStore = "redis"

	app, err := Build(context.Background(), cfg, logging.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer app.Close()

	_, isRedis := app.Conversations.(*conversation.RedisStore)
	assert.True(t, isRedis)

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildFailsOnMissingBackends(t *testing.T) {
	for name, mutate := range map[string]func(*appconfig.Config){
		"redis slots without redis":  func(c *appconfig.Config) { c.SlotStore = "redis" },
		"postgres ledger without db": func(c *appconfig.Config) { c.LedgerStore = "postgres" },
		"unknown lock store":         func(c *appconfig.Config) { c.LockStore = "etcd" },
		"unknown calendar":           func(c *appconfig.Config) { c.CalendarProvider = "outlook" },
		"sendgrid without key":       func(c *appconfig.Config) { c.EmailProvider = "sendgrid" },
		"postgres dedup without db":  func(c *appconfig.Config) { c.DedupStore = "postgres" },
		"unknown audit store":        func(c *appconfig.Config) { c.AuditStore = "s3" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := memoryConfig()
			mutate(cfg)
			_, err := Build(context.Background(), cfg, logging.Discard(), prometheus.NewRegistry())
			assert.Error(t, err)
		})
	}
}

func TestBuildSlotRegistryKinds(t *testing.T) {
	cfg := memoryConfig()
	reg, err := BuildSlotRegistry(cfg, Backends{})
	require.NoError(t, err)
	assert.IsType(t, &slots.MemoryRegistry{}, reg)

	_, err = BuildSlotRegistry(&appconfig.Config{SlotStore: "postgres"}, Backends{})
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestBuildDeduperKinds(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	d, err := BuildDeduper(&appconfig.Config{}, Backends{})
	require.NoError(t, err)
	assert.IsType(t, &events.MemoryDeduper{}, d)

	d, err = BuildDeduper(&appconfig.Config{DedupStore: "redis"}, Backends{Redis: client})
	require.NoError(t, err)
	assert.IsType(t, &events.RedisDeduper{}, d)

	d, err = BuildDeduper(&appconfig.Config{DedupStore: "none"}, Backends{})
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = BuildDeduper(&appconfig.Config{DedupStore: "kafka"}, Backends{})
	assert.Error(t, err)
}

func TestBuildAuditLogKinds(t *testing.T) {
	log, db, err := BuildAuditLog(&appconfig.Config{}, Backends{})
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.IsType(t, &audit.MemoryLog{}, log)

	log, _, err = BuildAuditLog(&appconfig.Config{AuditStore: "none"}, Backends{})
	require.NoError(t, err)
	assert.Nil(t, log)

	_, _, err = BuildAuditLog(&appconfig.Config{AuditStore: "postgres"}, Backends{})
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestBuildCalendarProviders(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	hours := BuildHours(cfg)

	cfg.CalendarProvider = "none"
	gw, err := BuildCalendar(ctx, cfg, hours, logging.Discard())
	require.NoError(t, err)
	_, err = gw.HasConflict(ctx, "2024-06-01", "10:00")
	assert.ErrorIs(t, err, calendar.ErrUnavailable)

	cfg.CalendarProvider = "google"
	cfg.GoogleCalendarID = ""
	gw, err = BuildCalendar(ctx, cfg, hours, logging.Discard())
	require.NoError(t, err)
	_, err = gw.HasConflict(ctx, "2024-06-01", "10:00")
	assert.ErrorIs(t, err, calendar.ErrUnavailable)
}

func TestBuildEmailSenderAuto(t *testing.T) {
	ctx := context.Background()

	sender, err := BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "auto"}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &notify.StubEmailSender{}, sender)

	sender, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "auto", SendGridAPIKey: "key", SendGridFromEmail: "bot@example.com"}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &notify.SendGridSender{}, sender)

	sender, err = BuildEmailSender(ctx, &appconfig.Config{
		EmailProvider:      "auto",
		SESFromEmail:       "bot@example.com",
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
	}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &notify.SESSender{}, sender)

	_, err = BuildEmailSender(ctx, &appconfig.Config{EmailProvider: "pigeon"}, logging.Discard())
	assert.Error(t, err)
}

func TestBuildHoursFromConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.BusinessStartHour, cfg.BusinessEndHour = 9, 11
	cfg.SlotInterval = time.Hour
	hours := BuildHours(cfg)
	assert.Equal(t, []string{"09:00", "10:00"}, hours.Times())
	assert.Equal(t, "UTC", hours.Location.String())
}

func TestRunMaintenanceStopsWithContext(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig(), logging.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.RunMaintenance(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("maintenance loop did not stop")
	}
}
