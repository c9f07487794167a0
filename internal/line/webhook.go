package line

import (
	"encoding/json"
	"fmt"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/bot"
)

// webhookPayload mirrors the LINE webhook request body.
type webhookPayload struct {
	Events []webhookEvent `json:"events"`
}

type webhookEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		Type    string `json:"type"`
		UserID  string `json:"userId"`
		GroupID string `json:"groupId"`
		RoomID  string `json:"roomId"`
	} `json:"source"`
	Message struct {
		Type      string  `json:"type"`
		ID        string  `json:"id"`
		Text      string  `json:"text"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Title     string  `json:"title"`
		Address   string  `json:"address"`
	} `json:"message"`
}

// sourceKey collapses the three source shapes into one dispatch key so
// group chats and rooms hold sessions independently from users.
func sourceKey(ev webhookEvent) string {
	switch {
	case ev.Source.UserID != "" && ev.Source.Type != "group" && ev.Source.Type != "room":
		return "user:" + ev.Source.UserID
	case ev.Source.GroupID != "":
		return "group:" + ev.Source.GroupID
	case ev.Source.RoomID != "":
		return "room:" + ev.Source.RoomID
	case ev.Source.UserID != "":
		return "user:" + ev.Source.UserID
	default:
		return "unknown"
	}
}

// ParseWebhook converts a webhook body into bot inputs. Unsupported event
// and message types are skipped, not rejected: LINE sends many event kinds
// a chat bot does not care about.
func ParseWebhook(body []byte) ([]interface{}, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}

	var inputs []interface{}
	for _, ev := range payload.Events {
		if ev.Type != "message" {
			continue
		}
		source := sourceKey(ev)
		switch ev.Message.Type {
		case "text":
			inputs = append(inputs, bot.TextInput{
				SourceID:   source,
				ReplyToken: ev.ReplyToken,
				Text:       ev.Message.Text,
			})
		case "location":
			inputs = append(inputs, bot.LocationInput{
				SourceID:   source,
				ReplyToken: ev.ReplyToken,
				Longitude:  ev.Message.Longitude,
				Latitude:   ev.Message.Latitude,
				Title:      ev.Message.Title,
				Address:    ev.Message.Address,
			})
		case "image":
			inputs = append(inputs, bot.ImageInput{
				SourceID:   source,
				ReplyToken: ev.ReplyToken,
				MessageID:  ev.Message.ID,
			})
		}
	}
	return inputs, nil
}
