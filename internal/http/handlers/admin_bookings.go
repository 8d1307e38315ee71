package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/salon-booking-assistant/internal/audit"
	"github.com/wolfman30/salon-booking-assistant/internal/booking"
	"github.com/wolfman30/salon-booking-assistant/internal/http/middleware"
	"github.com/wolfman30/salon-booking-assistant/internal/salon"
	"github.com/wolfman30/salon-booking-assistant/internal/slots"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

// BookingLister lists confirmed bookings for a day.
type BookingLister interface {
	ListByDate(ctx context.Context, date string) ([]booking.Booking, error)
}

// BookingCanceller cancels a user's confirmed booking.
type BookingCanceller interface {
	CancelBooking(ctx context.Context, userID string) (*booking.Booking, error)
}

// AdminBookingsHandler serves the salon's admin API.
type AdminBookingsHandler struct {
	ledger    BookingLister
	canceller BookingCanceller
	slots     slots.Registry
	directory *salon.Directory
	hours     salon.Hours
	audit     audit.Log
	logger    *logging.Logger
}

func NewAdminBookingsHandler(ledger BookingLister, canceller BookingCanceller, registry slots.Registry,
	directory *salon.Directory, hours salon.Hours, logger *logging.Logger) *AdminBookingsHandler {
	if ledger == nil || canceller == nil || registry == nil || directory == nil {
		panic("handlers: admin bookings handler requires ledger, canceller, registry and directory")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminBookingsHandler{
		ledger:    ledger,
		canceller: canceller,
		slots:     registry,
		directory: directory,
		hours:     hours,
		logger:    logger,
	}
}

// SetAuditLog enables GET /admin/audit.
func (h *AdminBookingsHandler) SetAuditLog(log audit.Log) {
	h.audit = log
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditResponse is returned by GET /admin/audit.
type AuditResponse struct {
	Events []audit.Event `json:"events"`
	Total  int           `json:"total"`
}

// BookingsListResponse is returned by GET /admin/bookings.
type BookingsListResponse struct {
	Date     string            `json:"date"`
	Bookings []booking.Booking `json:"bookings"`
	Total    int               `json:"total"`
}

// AvailabilitySlot is one grid time for a stylist.
type AvailabilitySlot struct {
	Time string `json:"time"`
	Free bool   `json:"free"`
}

// AvailabilityResponse is returned by GET /admin/staff/{staffID}/availability.
type AvailabilityResponse struct {
	StaffID   string             `json:"staff_id"`
	StaffName string             `json:"staff_name"`
	Date      string             `json:"date"`
	Slots     []AvailabilitySlot `json:"slots"`
}

// ListBookings handles GET /admin/bookings?date=YYYY-MM-DD.
func (h *AdminBookingsHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(r.URL.Query().Get("date"))
	if !ok {
		jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	list, err := h.ledger.ListByDate(r.Context(), date)
	if err != nil {
		h.logger.Error("admin: failed to list bookings", "date", date, "error", err)
		jsonError(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, BookingsListResponse{Date: date, Bookings: list, Total: len(list)})
}

// CancelBooking handles DELETE /admin/bookings/{userID}.
func (h *AdminBookingsHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		jsonError(w, "missing user id", http.StatusBadRequest)
		return
	}

	admin := middleware.AdminSubject(r.Context())
	b, err := h.canceller.CancelBooking(audit.WithActor(r.Context(), admin), userID)
	switch {
	case errors.Is(err, booking.ErrCancelAborted):
		jsonError(w, "calendar unavailable, booking kept", http.StatusServiceUnavailable)
		return
	case err != nil:
		h.logger.Error("admin: failed to cancel booking", "user_id", userID, "error", err)
		jsonError(w, "failed to cancel booking", http.StatusInternalServerError)
		return
	case b == nil:
		jsonError(w, "no booking for user", http.StatusNotFound)
		return
	}

	h.logger.Info("admin: booking cancelled",
		"admin", admin,
		"user_id", userID,
		"booking_id", b.ID.String(),
	)
	writeJSON(w, http.StatusOK, b)
}

// StaffAvailability handles GET /admin/staff/{staffID}/availability?date=.
func (h *AdminBookingsHandler) StaffAvailability(w http.ResponseWriter, r *http.Request) {
	staff, ok := h.directory.StaffByID(chi.URLParam(r, "staffID"))
	if !ok {
		jsonError(w, "unknown staff", http.StatusNotFound)
		return
	}
	date, ok := parseDate(r.URL.Query().Get("date"))
	if !ok {
		jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	times := h.hours.Times()
	resp := AvailabilityResponse{
		StaffID:   staff.ID,
		StaffName: staff.Name,
		Date:      date,
		Slots:     make([]AvailabilitySlot, 0, len(times)),
	}
	for _, t := range times {
		free, err := h.slots.IsStaffFree(r.Context(), staff.ID, slots.NewKey(date, t))
		if err != nil {
			h.logger.Error("admin: failed to read availability", "staff_id", staff.ID, "date", date, "time", t, "error", err)
			jsonError(w, "failed to read availability", http.StatusInternalServerError)
			return
		}
		resp.Slots = append(resp.Slots, AvailabilitySlot{Time: t, Free: free})
	}
	writeJSON(w, http.StatusOK, resp)
}

// AuditEvents handles GET /admin/audit?user_id=&type=&limit=&offset=.
func (h *AdminBookingsHandler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		jsonError(w, "audit log disabled", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), defaultAuditLimit)
	if err != nil || limit <= 0 {
		jsonError(w, "limit must be a positive number", http.StatusBadRequest)
		return
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		jsonError(w, "offset must not be negative", http.StatusBadRequest)
		return
	}

	events, err := h.audit.QueryEvents(r.Context(), audit.Filter{
		UserID:    strings.TrimSpace(q.Get("user_id")),
		EventType: audit.EventType(strings.TrimSpace(q.Get("type"))),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.logger.Error("admin: failed to query audit log", "error", err)
		jsonError(w, "failed to query audit log", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, AuditResponse{Events: events, Total: len(events)})
}

func queryInt(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func parseDate(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if _, err := time.Parse(salon.DateLayout, value); err != nil {
		return "", false
	}
	return value, true
}
