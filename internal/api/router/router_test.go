package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/salon-booking-assistant/internal/audit"
	"github.com/wolfman30/salon-booking-assistant/internal/booking"
	"github.com/wolfman30/salon-booking-assistant/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/salon-booking-assistant/internal/http/middleware"
	"github.com/wolfman30/salon-booking-assistant/internal/salon"
	"github.com/wolfman30/salon-booking-assistant/internal/slots"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

type noopCanceller struct{}

func (noopCanceller) CancelBooking(context.Context, string) (*booking.Booking, error) {
	return nil, nil
}

const adminSecret = "admin-secret"

func newTestRouter(t *testing.T, ledger *booking.MemoryLedger, limiter *httpmiddleware.RateLimiter) http.Handler {
	t.Helper()

	logger := logging.Discard()
	admin := handlers.NewAdminBookingsHandler(ledger, noopCanceller{}, slots.NewMemoryRegistry(),
		salon.DefaultDirectory(), salon.DefaultHours(time.UTC), logger)

	return New(&Config{
		Logger: logger,
		LineWebhook: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		AdminBookings:   admin,
		AdminAuthSecret: adminSecret,
		AdminRateLimit:  limiter,
	})
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "owner",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(adminSecret))
	require.NoError(t, err)
	return signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, booking.NewMemoryLedger(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterPublicRoutes(t *testing.T) {
	router := newTestRouter(t, booking.NewMemoryLedger(), nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/line", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhooks/line", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rr.Body.String())
}

func TestRouterAdminRequiresToken(t *testing.T) {
	ledger := booking.NewMemoryLedger()
	require.NoError(t, ledger.Create(context.Background(), booking.Booking{
		ID: uuid.New(), UserID: "U1", StaffID: "amy", Date: "2024-06-01", Time: "10:00",
	}))
	router := newTestRouter(t, ledger, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/bookings?date=2024-06-01", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/bookings?date=2024-06-01", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.BookingsListResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Total)
}

func TestRouterAdminRateLimit(t *testing.T) {
	router := newTestRouter(t, booking.NewMemoryLedger(), httpmiddleware.NewRateLimiter(0.001, 1))

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/admin/bookings?date=2024-06-01", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestRouterAdminDisabledWithoutSecret(t *testing.T) {
	router := New(&Config{Logger: logging.Discard()})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/bookings?date=2024-06-01", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterAdminAudit(t *testing.T) {
	logger := logging.Discard()
	admin := handlers.NewAdminBookingsHandler(booking.NewMemoryLedger(), noopCanceller{}, slots.NewMemoryRegistry(),
		salon.DefaultDirectory(), salon.DefaultHours(time.UTC), logger)
	router := New(&Config{Logger: logger, AdminBookings: admin, AdminAuthSecret: adminSecret})

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit?user_id=U1", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}
	assert.Equal(t, http.StatusNotFound, get().Code)

	log := audit.NewMemoryLog(10)
	require.NoError(t, log.LogEvent(context.Background(), audit.BookingEvent(audit.EventBookingConfirmed, "U1", booking.Booking{
		ID: uuid.New(), UserID: "U1", StaffID: "amy", Date: "2024-06-01", Time: "10:00",
	})))
	admin.SetAuditLog(log)

	rr := get()
	require.Equal(t, http.StatusOK, rr.Code)
	var resp handlers.AuditResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Total)
}
