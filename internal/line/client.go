package line

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/bot"
)

const (
	defaultAPIBase     = "https://api.line.me"
	defaultAPIDataBase = "https://api-data.line.me"
)

// Client calls the LINE Messaging API. It implements bot.Replier and the
// report topic's MediaFetcher.
type Client struct {
	channelToken string
	apiBase      string
	apiDataBase  string
	httpClient   *http.Client
}

// NewClient builds a client for the given channel access token.
func NewClient(channelToken string) *Client {
	return &Client{
		channelToken: channelToken,
		apiBase:      defaultAPIBase,
		apiDataBase:  defaultAPIDataBase,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBase overrides the endpoints, used by tests.
func NewClientWithBase(channelToken, apiBase, apiDataBase string) *Client {
	c := NewClient(channelToken)
	c.apiBase = apiBase
	c.apiDataBase = apiDataBase
	return c
}

type lineAction struct {
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
	Text  string `json:"text,omitempty"`
}

type lineQuickReplyItem struct {
	Type   string     `json:"type"`
	Action lineAction `json:"action"`
}

type lineQuickReply struct {
	Items []lineQuickReplyItem `json:"items"`
}

type lineColumn struct {
	Title   string       `json:"title,omitempty"`
	Text    string       `json:"text"`
	Actions []lineAction `json:"actions"`
}

type lineTemplate struct {
	Type    string       `json:"type"`
	Columns []lineColumn `json:"columns"`
}

type lineMessage struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	Title      string          `json:"title,omitempty"`
	Address    string          `json:"address,omitempty"`
	Latitude   float64         `json:"latitude,omitempty"`
	Longitude  float64         `json:"longitude,omitempty"`
	AltText    string          `json:"altText,omitempty"`
	Template   *lineTemplate   `json:"template,omitempty"`
	QuickReply *lineQuickReply `json:"quickReply,omitempty"`
}

func convertAction(item bot.QuickReply) lineAction {
	switch item.Kind {
	case bot.QuickReplyLocation:
		return lineAction{Type: "location", Label: item.Label}
	case bot.QuickReplyCamera:
		return lineAction{Type: "camera", Label: item.Label}
	case bot.QuickReplyCameraRoll:
		return lineAction{Type: "cameraRoll", Label: item.Label}
	default:
		return lineAction{Type: "message", Label: item.Label, Text: item.Text}
	}
}

func convertQuickReplies(items []bot.QuickReply) *lineQuickReply {
	if len(items) == 0 {
		return nil
	}
	converted := make([]lineQuickReplyItem, len(items))
	for i, item := range items {
		converted[i] = lineQuickReplyItem{Type: "action", Action: convertAction(item)}
	}
	return &lineQuickReply{Items: converted}
}

// convertMessage maps a bot message onto the wire format.
func convertMessage(message bot.Message) lineMessage {
	switch m := message.(type) {
	case bot.TextMessage:
		return lineMessage{
			Type:       "text",
			Text:       m.Text,
			QuickReply: convertQuickReplies(m.QuickReplies),
		}
	case bot.LocationMessage:
		return lineMessage{
			Type:      "location",
			Title:     m.Title,
			Address:   m.Address,
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
		}
	case bot.CarouselMessage:
		columns := make([]lineColumn, len(m.Columns))
		for i, col := range m.Columns {
			actions := make([]lineAction, len(col.Actions))
			for j, action := range col.Actions {
				actions[j] = convertAction(action)
			}
			columns[i] = lineColumn{Title: col.Title, Text: col.Text, Actions: actions}
		}
		return lineMessage{
			Type:     "template",
			AltText:  m.AltText,
			Template: &lineTemplate{Type: "carousel", Columns: columns},
		}
	default:
		return lineMessage{Type: "text", Text: ""}
	}
}

// Reply implements bot.Replier.
func (c *Client) Reply(replyToken string, messages []bot.Message) error {
	if len(messages) == 0 {
		return nil
	}
	converted := make([]lineMessage, len(messages))
	for i, message := range messages {
		converted[i] = convertMessage(message)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"replyToken": replyToken,
		"messages":   converted,
	})
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.apiBase+"/v2/bot/message/reply", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("reply API returned status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// FetchContent downloads a message's binary payload (report.MediaFetcher).
func (c *Client) FetchContent(messageID string) ([]byte, string, error) {
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", c.apiDataBase, messageID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build content request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("content API returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read content: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
