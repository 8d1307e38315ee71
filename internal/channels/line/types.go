package line

// WebhookRequest is the body LINE posts to the webhook URL.
type WebhookRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is a single webhook event.
type Event struct {
	Type            string          `json:"type"`
	Mode            string          `json:"mode,omitempty"`
	Timestamp       int64           `json:"timestamp"`
	ReplyToken      string          `json:"replyToken,omitempty"`
	WebhookEventID  string          `json:"webhookEventId,omitempty"`
	DeliveryContext DeliveryContext `json:"deliveryContext"`
	Source          Source          `json:"source"`
	Message         *Message        `json:"message,omitempty"`
	Postback        *Postback       `json:"postback,omitempty"`
}

// DeliveryContext flags webhook redeliveries.
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// Source identifies who triggered the event.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Message is the content of a message event.
type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Postback is sent when a postback or datetime picker action is tapped.
type Postback struct {
	Data   string            `json:"data"`
	Params map[string]string `json:"params,omitempty"`
}

// ReplyRequest is the payload of the reply API.
type ReplyRequest struct {
	ReplyToken string       `json:"replyToken"`
	Messages   []OutMessage `json:"messages"`
}

// OutMessage is an outbound text or template message.
type OutMessage struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	AltText    string      `json:"altText,omitempty"`
	Template   *Template   `json:"template,omitempty"`
	QuickReply *QuickReply `json:"quickReply,omitempty"`
}

// Template is a buttons template.
type Template struct {
	Type    string   `json:"type"`
	Title   string   `json:"title,omitempty"`
	Text    string   `json:"text"`
	Actions []Action `json:"actions"`
}

// Action is a template or quick reply action.
type Action struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Data        string `json:"data,omitempty"`
	DisplayText string `json:"displayText,omitempty"`
	Text        string `json:"text,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Initial     string `json:"initial,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// QuickReply holds the buttons shown above the keyboard.
type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

type QuickReplyItem struct {
	Type   string `json:"type"`
	Action Action `json:"action"`
}

// ErrorResponse is returned by the messaging API on failure.
type ErrorResponse struct {
	Message string `json:"message"`
	Details []struct {
		Message  string `json:"message"`
		Property string `json:"property"`
	} `json:"details,omitempty"`
}
