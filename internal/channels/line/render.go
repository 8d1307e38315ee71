package line

import (
	"fmt"
	"strings"

	"github.com/wolfman30/salon-booking-assistant/internal/booking"
)

// Messaging API limits.
const (
	maxMessagesPerReply = 5
	maxTemplateActions  = 4
	maxQuickReplyItems  = 13
	maxLabelRunes       = 20
	maxTitleRunes       = 40
	maxTemplateText     = 60
	maxAltTextRunes     = 400
)

// Renderer converts booking replies into LINE messages.
type Renderer struct {
	SalonName string
}

// Render converts replies in order. Output is capped at the five messages a
// single reply token accepts.
func (r Renderer) Render(replies []booking.Reply) []OutMessage {
	out := make([]OutMessage, 0, len(replies))
	for _, reply := range replies {
		if msg, ok := r.render(reply); ok {
			out = append(out, msg)
		}
	}
	if len(out) > maxMessagesPerReply {
		out = out[:maxMessagesPerReply]
	}
	return out
}

func (r Renderer) render(reply booking.Reply) (OutMessage, bool) {
	switch rep := reply.(type) {
	case booking.PromptForService:
		return r.servicePrompt(rep), true
	case booking.PromptForDate:
		return r.datePrompt(rep), true
	case booking.PromptForTime:
		return r.timePrompt(rep), true
	case booking.PromptForStaff:
		return r.staffPrompt(rep), true
	case booking.BookingConfirmed:
		return textMessage("Your booking is confirmed!\n" + describe(rep.Booking)), true
	case booking.BookingRejected:
		body := "Sorry, " + rep.Reason + "."
		if rep.Detail != "" {
			body += "\n" + rep.Detail
		}
		return textMessage(body), true
	case booking.BookingCancelled:
		if rep.Booking == nil {
			return textMessage("Your booking request has been cancelled."), true
		}
		return textMessage("Your booking has been cancelled.\n" + describe(*rep.Booking)), true
	case booking.BookingSummary:
		return textMessage("Your upcoming booking:\n" + describe(rep.Booking)), true
	case booking.NoBooking:
		return r.help("You have no upcoming booking."), true
	case booking.Help:
		return r.help(""), true
	default:
		return OutMessage{}, false
	}
}

func (r Renderer) servicePrompt(p booking.PromptForService) OutMessage {
	if p.Category == "" && len(p.Categories) > 0 {
		actions := make([]Action, 0, len(p.Categories))
		for _, c := range p.Categories {
			actions = append(actions, postbackAction(c, booking.PickCategory{Category: c}))
		}
		return choice("Service categories", r.SalonName, "Please choose a service category.", actions)
	}

	actions := make([]Action, 0, len(p.Services))
	for _, s := range p.Services {
		actions = append(actions, postbackAction(s, booking.PickService{Service: s}))
	}
	text := "Please choose a service."
	if p.Category != "" {
		text = "Please choose a " + p.Category + " service."
	}
	return choice("Services", p.Category, text, actions)
}

func (r Renderer) datePrompt(p booking.PromptForDate) OutMessage {
	picker := Action{
		Type:    "datetimepicker",
		Label:   "Pick a date",
		Data:    EncodePostback(booking.PickDate{}),
		Mode:    "date",
		Initial: p.Min,
		Min:     p.Min,
		Max:     p.Max,
	}
	return choice("Choose a date", p.Service, "When would you like to come in?",
		[]Action{picker, postbackAction("Cancel", booking.Cancel{})})
}

func (r Renderer) timePrompt(p booking.PromptForTime) OutMessage {
	if len(p.Options) == 0 {
		return textMessage(fmt.Sprintf("No open times on %s. Send \"cancel\" to start over.", p.Date))
	}
	actions := make([]Action, 0, len(p.Options))
	for _, t := range p.Options {
		actions = append(actions, postbackAction(t, booking.PickSlot{Date: p.Date, Time: t}))
	}
	msg := choice("Choose a time", p.Date, "Please choose a time.", actions)
	if p.HasMore {
		item := QuickReplyItem{Type: "action", Action: postbackAction("More times", booking.MoreTimes{Page: p.Page + 1})}
		if msg.QuickReply == nil {
			msg.QuickReply = &QuickReply{}
		}
		if len(msg.QuickReply.Items) < maxQuickReplyItems {
			msg.QuickReply.Items = append(msg.QuickReply.Items, item)
		}
	}
	return msg
}

func (r Renderer) staffPrompt(p booking.PromptForStaff) OutMessage {
	actions := make([]Action, 0, len(p.Staff))
	for _, s := range p.Staff {
		actions = append(actions, postbackAction(s.Name, booking.PickStaff{StaffID: s.ID}))
	}
	return choice("Choose a stylist", p.Date+" "+p.Time, "Who would you like to see?", actions)
}

func (r Renderer) help(prefix string) OutMessage {
	lines := []string{
		"Send 預約服務 (book) to make a booking.",
		"Send 查詢預約 (my booking) to see your booking.",
		"Send 取消預約 (cancel) to cancel.",
	}
	if prefix != "" {
		lines = append([]string{prefix}, lines...)
	}
	msg := textMessage(strings.Join(lines, "\n"))
	msg.QuickReply = &QuickReply{Items: []QuickReplyItem{
		{Type: "action", Action: Action{Type: "message", Label: "預約服務", Text: "預約服務"}},
		{Type: "action", Action: Action{Type: "message", Label: "查詢預約", Text: "查詢預約"}},
		{Type: "action", Action: Action{Type: "message", Label: "取消預約", Text: "取消預約"}},
	}}
	return msg
}

// choice uses a buttons template when the actions fit, otherwise a text
// message with quick reply buttons.
func choice(altText, title, text string, actions []Action) OutMessage {
	if len(actions) <= maxTemplateActions {
		return OutMessage{
			Type:    "template",
			AltText: truncate(altText, maxAltTextRunes),
			Template: &Template{
				Type:    "buttons",
				Title:   truncate(title, maxTitleRunes),
				Text:    truncate(text, maxTemplateText),
				Actions: actions,
			},
		}
	}
	if len(actions) > maxQuickReplyItems {
		actions = actions[:maxQuickReplyItems]
	}
	items := make([]QuickReplyItem, 0, len(actions))
	for _, a := range actions {
		items = append(items, QuickReplyItem{Type: "action", Action: a})
	}
	msg := textMessage(text)
	msg.QuickReply = &QuickReply{Items: items}
	return msg
}

func postbackAction(label string, a booking.Action) Action {
	return Action{
		Type:        "postback",
		Label:       truncate(label, maxLabelRunes),
		Data:        EncodePostback(a),
		DisplayText: label,
	}
}

func textMessage(text string) OutMessage {
	return OutMessage{Type: "text", Text: text}
}

func describe(b booking.Booking) string {
	return fmt.Sprintf("Service: %s\nDate: %s\nTime: %s\nStylist: %s", b.Service, b.Date, b.Time, b.StaffName)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
