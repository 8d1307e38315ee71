package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/salon-booking-assistant/internal/salon"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// fakeCalendar serves the subset of the Calendar v3 events API used here.
type fakeCalendar struct {
	mu     sync.Mutex
	events map[string]*gcal.Event
	nextID int
	fail   bool
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		http.Error(w, `{"error":{"code":500,"message":"backend down"}}`, http.StatusInternalServerError)
		return
	}
	const prefix = "/calendar/v3/calendars/primary/events"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")
	switch {
	case r.Method == http.MethodGet && rest == "":
		f.list(w, r)
	case r.Method == http.MethodPost && rest == "":
		var ev gcal.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nextID++
		ev.Id = fmt.Sprintf("ev%d", f.nextID)
		ev.Status = "confirmed"
		f.events[ev.Id] = &ev
		_ = json.NewEncoder(w).Encode(&ev)
	case r.Method == http.MethodDelete && rest != "":
		if _, ok := f.events[rest]; !ok {
			http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
			return
		}
		delete(f.events, rest)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func (f *fakeCalendar) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minT, _ := time.Parse(time.RFC3339, q.Get("timeMin"))
	maxT, _ := time.Parse(time.RFC3339, q.Get("timeMax"))
	props := q["privateExtendedProperty"]

	out := &gcal.Events{Items: []*gcal.Event{}}
	for _, ev := range f.events {
		start, _ := time.Parse(time.RFC3339, ev.Start.DateTime)
		end, _ := time.Parse(time.RFC3339, ev.End.DateTime)
		if !(start.Before(maxT) && minT.Before(end)) {
			continue
		}
		if !matchesProps(ev, props) {
			continue
		}
		out.Items = append(out.Items, ev)
	}
	_ = json.NewEncoder(w).Encode(out)
}

func matchesProps(ev *gcal.Event, props []string) bool {
	for _, p := range props {
		k, v, _ := strings.Cut(p, "=")
		if privateProp(ev, k) != v {
			return false
		}
	}
	return true
}

func (f *fakeCalendar) addSalonEvent(start time.Time, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("ev%d", f.nextID)
	f.events[id] = &gcal.Event{
		Id:      id,
		Summary: "Staff meeting",
		Status:  "confirmed",
		Start:   &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &gcal.EventDateTime{DateTime: start.Add(d).Format(time.RFC3339)},
	}
}

func newTestGoogleGateway(t *testing.T) (*GoogleGateway, *fakeCalendar) {
	t.Helper()
	fake := &fakeCalendar{events: make(map[string]*gcal.Event)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	loc := time.FixedZone("CST", 8*3600)
	gw, err := NewGoogleGateway(context.Background(), GoogleConfig{
		CalendarID: "primary",
		Hours:      salon.DefaultHours(loc),
		SalonName:  "Test Nails",
	}, logging.Discard(),
		option.WithEndpoint(srv.URL+"/calendar/v3/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return gw, fake
}

func TestGoogleGatewayConflictIgnoresOwnEvents(t *testing.T) {
	gw, fake := newTestGoogleGateway(t)
	ctx := context.Background()

	conflict, err := gw.HasConflict(ctx, "2024-06-01", "10:00")
	require.NoError(t, err)
	assert.False(t, conflict)

	id, err := gw.AddEvent(ctx, Appointment{
		UserID: "U1", StaffID: "amy", StaffName: "Amy",
		Category: "Manicure", Service: "Gel Manicure",
		Date: "2024-06-01", Time: "10:00",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	conflict, err = gw.HasConflict(ctx, "2024-06-01", "10:00")
	require.NoError(t, err)
	assert.False(t, conflict, "events written by the service must not block the slot")

	loc := time.FixedZone("CST", 8*3600)
	fake.addSalonEvent(time.Date(2024, 6, 1, 11, 15, 0, 0, loc), time.Hour)

	conflict, err = gw.HasConflict(ctx, "2024-06-01", "11:00")
	require.NoError(t, err)
	assert.True(t, conflict)
	conflict, err = gw.HasConflict(ctx, "2024-06-01", "12:00")
	require.NoError(t, err)
	assert.True(t, conflict)
	conflict, err = gw.HasConflict(ctx, "2024-06-01", "12:30")
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestGoogleGatewayWritesTaggedEvent(t *testing.T) {
	gw, fake := newTestGoogleGateway(t)
	id, err := gw.AddEvent(context.Background(), Appointment{
		UserID: "U1", StaffID: "amy", StaffName: "Amy",
		Category: "Manicure", Service: "Gel Manicure",
		Date: "2024-06-01", Time: "10:00",
	})
	require.NoError(t, err)

	ev := fake.events[id]
	require.NotNil(t, ev)
	assert.Equal(t, "Gel Manicure - Amy", ev.Summary)
	assert.Equal(t, "2024-06-01T10:00:00+08:00", ev.Start.DateTime)
	assert.Equal(t, "2024-06-01T10:30:00+08:00", ev.End.DateTime)
	assert.Equal(t, SourceTag, ev.ExtendedProperties.Private["source"])
	assert.Equal(t, "amy", ev.ExtendedProperties.Private["staff_id"])
	assert.Contains(t, ev.Description, "Test Nails")
}

func TestGoogleGatewayRemoveEventByStaff(t *testing.T) {
	gw, fake := newTestGoogleGateway(t)
	ctx := context.Background()
	for _, staff := range []string{"amy", "bella"} {
		_, err := gw.AddEvent(ctx, Appointment{
			UserID: "U-" + staff, StaffID: staff, StaffName: staff,
			Service: "Gel Manicure", Date: "2024-06-01", Time: "10:00",
		})
		require.NoError(t, err)
	}

	found, err := gw.RemoveEvent(ctx, "2024-06-01", "10:00", "amy")
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, fake.events, 1)
	for _, ev := range fake.events {
		assert.Equal(t, "bella", ev.ExtendedProperties.Private["staff_id"])
	}

	found, err = gw.RemoveEvent(ctx, "2024-06-01", "10:00", "amy")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGoogleGatewaySurfacesFailures(t *testing.T) {
	gw, fake := newTestGoogleGateway(t)
	fake.mu.Lock()
	fake.fail = true
	fake.mu.Unlock()
	ctx := context.Background()

	_, err := gw.HasConflict(ctx, "2024-06-01", "10:00")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = gw.AddEvent(ctx, Appointment{StaffID: "amy", Date: "2024-06-01", Time: "10:00"})
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "insert", we.Op)

	_, err = gw.RemoveEvent(ctx, "2024-06-01", "10:00", "amy")
	require.ErrorAs(t, err, &we)
}

func TestNewGoogleGatewayRequiresCalendarID(t *testing.T) {
	_, err := NewGoogleGateway(context.Background(), GoogleConfig{}, nil, option.WithoutAuthentication())
	assert.Error(t, err)
}
