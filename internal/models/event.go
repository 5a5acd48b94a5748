package models

// EventKind distinguishes the inbound webhook event shapes the bot handles.
type EventKind string

const (
	EventImage EventKind = "image"
	EventText  EventKind = "text"
)

// InboundEvent is a normalized chat event after webhook parsing.
// Postback selections arrive flattened as text events carrying the
// postback data payload.
type InboundEvent struct {
	Kind       EventKind `json:"kind"`
	SessionKey string    `json:"sessionKey"`
	ReplyToken string    `json:"replyToken"`
	MessageID  string    `json:"messageId,omitempty"`
	Text       string    `json:"text,omitempty"`
}

// ReplyKind distinguishes outgoing message shapes.
type ReplyKind string

const (
	ReplyText ReplyKind = "text"
	ReplyFlex ReplyKind = "flex"
)

// Reply is an outgoing message to be sent with the event's reply token.
type Reply struct {
	Kind    ReplyKind              `json:"kind"`
	Text    string                 `json:"text,omitempty"`
	AltText string                 `json:"altText,omitempty"`
	Flex    map[string]interface{} `json:"flex,omitempty"`
}

// NewTextReply builds a plain text reply.
func NewTextReply(text string) *Reply {
	return &Reply{Kind: ReplyText, Text: text}
}

// NewFlexReply builds a flex message reply with fallback alt text.
func NewFlexReply(altText string, contents map[string]interface{}) *Reply {
	return &Reply{Kind: ReplyFlex, AltText: altText, Flex: contents}
}
