package line

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/wolfman30/salon-booking-assistant/internal/booking"
)

// ErrUnknownPostback is returned for postback data this bot did not issue.
var ErrUnknownPostback = errors.New("line: unknown postback")

const (
	postbackBook     = "book"
	postbackCategory = "category"
	postbackService  = "service"
	postbackDate     = "date"
	postbackSlot     = "slot"
	postbackMore     = "more"
	postbackStaff    = "staff"
	postbackCancel   = "cancel"
	postbackQuery    = "query"
)

// EncodePostback renders an action as postback data. PickDate encodes only
// the action name; the datetime picker supplies the date in params.
func EncodePostback(a booking.Action) string {
	v := url.Values{}
	switch a := a.(type) {
	case booking.StartBooking:
		v.Set("action", postbackBook)
	case booking.PickCategory:
		v.Set("action", postbackCategory)
		v.Set("category", a.Category)
	case booking.PickService:
		v.Set("action", postbackService)
		v.Set("service", a.Service)
	case booking.PickDate:
		v.Set("action", postbackDate)
	case booking.PickSlot:
		v.Set("action", postbackSlot)
		v.Set("date", a.Date)
		v.Set("time", a.Time)
	case booking.MoreTimes:
		v.Set("action", postbackMore)
		v.Set("page", strconv.Itoa(a.Page))
	case booking.PickStaff:
		v.Set("action", postbackStaff)
		v.Set("staff", a.StaffID)
	case booking.Cancel:
		v.Set("action", postbackCancel)
	case booking.Query:
		v.Set("action", postbackQuery)
	default:
		return ""
	}
	return v.Encode()
}

// DecodePostback turns postback data (and datetime picker params) back into
// a booking action.
func DecodePostback(pb Postback) (booking.Action, error) {
	v, err := url.ParseQuery(pb.Data)
	if err != nil {
		return nil, fmt.Errorf("line: parse postback: %w", err)
	}

	switch v.Get("action") {
	case postbackBook:
		return booking.StartBooking{}, nil
	case postbackCategory:
		return booking.PickCategory{Category: v.Get("category")}, nil
	case postbackService:
		return booking.PickService{Service: v.Get("service")}, nil
	case postbackDate:
		date := pb.Params["date"]
		if date == "" {
			date = v.Get("date")
		}
		return booking.PickDate{Date: date}, nil
	case postbackSlot:
		return booking.PickSlot{Date: v.Get("date"), Time: v.Get("time")}, nil
	case postbackMore:
		page, err := strconv.Atoi(v.Get("page"))
		if err != nil || page < 0 {
			return nil, fmt.Errorf("%w: page %q", ErrUnknownPostback, v.Get("page"))
		}
		return booking.MoreTimes{Page: page}, nil
	case postbackStaff:
		return booking.PickStaff{StaffID: v.Get("staff")}, nil
	case postbackCancel:
		return booking.Cancel{}, nil
	case postbackQuery:
		return booking.Query{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPostback, pb.Data)
	}
}
