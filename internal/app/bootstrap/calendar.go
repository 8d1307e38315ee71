package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/salon-booking-assistant/internal/calendar"
	appconfig "github.com/wolfman30/salon-booking-assistant/internal/config"
	"github.com/wolfman30/salon-booking-assistant/internal/salon"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
	"google.golang.org/api/option"
)

// BuildCalendar wires the external calendar named by CALENDAR_PROVIDER and
// bounds every call by CALENDAR_TIMEOUT.
func BuildCalendar(ctx context.Context, cfg *appconfig.Config, hours salon.Hours, logger *logging.Logger) (calendar.Gateway, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var gw calendar.Gateway
	switch cfg.CalendarProvider {
	case "google":
		if strings.TrimSpace(cfg.GoogleCalendarID) == "" {
			logger.Warn("GOOGLE_CALENDAR_ID not set; calendar checks will report unavailable")
			gw = calendar.Unconfigured{}
			break
		}
		var opts []option.ClientOption
		switch {
		case cfg.GoogleCredentialsJSON != "":
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GoogleCredentialsJSON)))
		case cfg.GoogleCredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
		}
		if cfg.GoogleCalendarEndpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.GoogleCalendarEndpoint))
		}
		google, err := calendar.NewGoogleGateway(ctx, calendar.GoogleConfig{
			CalendarID: cfg.GoogleCalendarID,
			Hours:      hours,
			SalonName:  cfg.SalonName,
		}, logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: google calendar: %w", err)
		}
		gw = google
	case "memory":
		logger.Warn("using in-memory calendar; bookings will not reach an external calendar")
		gw = calendar.NewMemoryGateway(hours)
	case "none", "":
		gw = calendar.Unconfigured{}
	default:
		return nil, fmt.Errorf("bootstrap: unknown CALENDAR_PROVIDER %q", cfg.CalendarProvider)
	}
	return calendar.WithTimeout(gw, cfg.CalendarTimeout), nil
}
