// internal/line/client.go
package line

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"splitbill-bot/internal/common/config"
	stderrors "splitbill-bot/internal/common/errors"
	commonhttp "splitbill-bot/internal/common/http"
	"splitbill-bot/internal/common/logger"
	"splitbill-bot/internal/models"
)

// Client talks to the LINE Messaging API: replies to events, pushes
// messages and downloads message content.
type Client struct {
	cfg  config.LineConfig
	http *commonhttp.Client
	log  logger.Logger
}

func NewClient(cfg config.LineConfig, httpClient *commonhttp.Client, log logger.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: httpClient,
		log:  log.WithFields(map[string]interface{}{"component": "line-client"}),
	}
}

// Reply sends up to five messages against a reply token. Tokens are
// single use; a second call with the same token fails at the API.
func (c *Client) Reply(ctx context.Context, replyToken string, replies []*models.Reply) error {
	return c.send(ctx, "/v2/bot/message/reply", map[string]interface{}{
		"replyToken": replyToken,
		"messages":   buildMessages(replies),
	})
}

// Push sends messages to a chat directly, without a reply token. Used
// when no inbound event is being answered.
func (c *Client) Push(ctx context.Context, to string, replies []*models.Reply) error {
	return c.send(ctx, "/v2/bot/message/push", map[string]interface{}{
		"to":       to,
		"messages": buildMessages(replies),
	})
}

func (c *Client) send(ctx context.Context, path string, envelope map[string]interface{}) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return stderrors.NewReplySendFailedError(err)
	}

	resp, err := c.http.PostJSON(ctx, c.cfg.APIBaseURL+path, c.cfg.ChannelAccessToken, payload)
	if err != nil {
		return stderrors.NewReplySendFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Error("Message rejected by messaging API", map[string]interface{}{
			"path":   path,
			"status": resp.StatusCode,
			"body":   string(body),
		})
		return stderrors.NewReplySendFailedError(fmt.Errorf("send status %d", resp.StatusCode))
	}

	return nil
}

// FetchImage downloads the binary content of an image message.
func (c *Client) FetchImage(ctx context.Context, messageID string) ([]byte, error) {
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", c.cfg.ContentBaseURL, messageID)
	data, err := c.http.GetBytes(ctx, url, c.cfg.ChannelAccessToken)
	if err != nil {
		return nil, stderrors.NewImageFetchFailedError(messageID, err)
	}
	return data, nil
}

func buildMessages(replies []*models.Reply) []map[string]interface{} {
	messages := make([]map[string]interface{}, 0, len(replies))
	for _, r := range replies {
		messages = append(messages, buildMessage(r))
	}
	return messages
}

func buildMessage(r *models.Reply) map[string]interface{} {
	switch r.Kind {
	case models.ReplyFlex:
		return map[string]interface{}{
			"type":     "flex",
			"altText":  r.AltText,
			"contents": r.Flex,
		}
	default:
		return map[string]interface{}{
			"type": "text",
			"text": r.Text,
		}
	}
}
