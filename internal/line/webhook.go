// internal/line/webhook.go
package line

import (
	"encoding/json"
	"fmt"
	"strings"

	stderrors "splitbill-bot/internal/common/errors"
	"splitbill-bot/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// webhookSchema pins down the envelope shape we rely on before any
// field access happens.
const webhookSchema = `{
  "type": "object",
  "required": ["events"],
  "properties": {
    "destination": {"type": "string"},
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string"},
          "replyToken": {"type": "string"},
          "source": {
            "type": "object",
            "properties": {
              "type": {"type": "string"},
              "userId": {"type": "string"},
              "groupId": {"type": "string"},
              "roomId": {"type": "string"}
            }
          },
          "message": {
            "type": "object",
            "properties": {
              "id": {"type": "string"},
              "type": {"type": "string"},
              "text": {"type": "string"}
            }
          },
          "postback": {
            "type": "object",
            "properties": {
              "data": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

var webhookSchemaLoader = gojsonschema.NewStringLoader(webhookSchema)

type webhookEnvelope struct {
	Destination string         `json:"destination"`
	Events      []webhookEvent `json:"events"`
}

type webhookEvent struct {
	Type       string         `json:"type"`
	ReplyToken string         `json:"replyToken"`
	Source     webhookSource  `json:"source"`
	Message    webhookMessage `json:"message"`
	Postback   struct {
		Data string `json:"data"`
	} `json:"postback"`
}

type webhookSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
	RoomID  string `json:"roomId"`
}

type webhookMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// ParseEvents validates and flattens a webhook body into the event
// kinds the bot acts on. Follows, stickers and other event types are
// dropped silently. Postbacks become text events carrying their data
// payload so the conversation layer sees one input shape.
func ParseEvents(body []byte) ([]models.InboundEvent, error) {
	result, err := gojsonschema.Validate(webhookSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, stderrors.NewPayloadInvalidError(err.Error())
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, stderrors.NewPayloadInvalidError(strings.Join(details, "; "))
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, stderrors.NewPayloadInvalidError(err.Error())
	}

	events := make([]models.InboundEvent, 0, len(envelope.Events))
	for _, ev := range envelope.Events {
		key := sessionKeyFor(ev.Source)
		if key == "" || ev.ReplyToken == "" {
			continue
		}

		switch {
		case ev.Type == "message" && ev.Message.Type == "image":
			events = append(events, models.InboundEvent{
				Kind:       models.EventImage,
				SessionKey: key,
				ReplyToken: ev.ReplyToken,
				MessageID:  ev.Message.ID,
			})
		case ev.Type == "message" && ev.Message.Type == "text":
			events = append(events, models.InboundEvent{
				Kind:       models.EventText,
				SessionKey: key,
				ReplyToken: ev.ReplyToken,
				Text:       strings.TrimSpace(ev.Message.Text),
			})
		case ev.Type == "postback":
			events = append(events, models.InboundEvent{
				Kind:       models.EventText,
				SessionKey: key,
				ReplyToken: ev.ReplyToken,
				Text:       strings.TrimSpace(ev.Postback.Data),
			})
		}
	}

	return events, nil
}

// sessionKeyFor scopes a conversation to its chat: group and room
// chats share one session, direct chats are per user.
func sessionKeyFor(src webhookSource) string {
	switch {
	case src.GroupID != "":
		return fmt.Sprintf("group:%s", src.GroupID)
	case src.RoomID != "":
		return fmt.Sprintf("room:%s", src.RoomID)
	case src.UserID != "":
		return fmt.Sprintf("user:%s", src.UserID)
	default:
		return ""
	}
}
