package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/bot"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/line"
	"github.com/chiangyiyang/sr-twrw-line-bot/pkg/response"
)

// WebhookHandler receives LINE webhook callbacks, verifies them and feeds
// the events through the dispatcher.
type WebhookHandler struct {
	channelSecret string
	dispatcher    *bot.Dispatcher
	replier       bot.Replier
	logger        *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(channelSecret string, dispatcher *bot.Dispatcher, replier bot.Replier, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		channelSecret: channelSecret,
		dispatcher:    dispatcher,
		replier:       replier,
		logger:        logger,
	}
}

// HandleWebhook handles POST /webhook.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	signature := c.GetHeader("X-Line-Signature")
	if !line.ValidateSignature(h.channelSecret, signature, body) {
		response.Error(c, http.StatusBadRequest, "Invalid signature", nil)
		return
	}

	inputs, err := line.ParseWebhook(body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Malformed webhook payload", err)
		return
	}

	for _, input := range inputs {
		var reply *bot.Reply
		var replyToken string

		switch ev := input.(type) {
		case bot.TextInput:
			reply = h.dispatcher.DispatchText(ev)
			replyToken = ev.ReplyToken
		case bot.LocationInput:
			reply = h.dispatcher.DispatchLocation(ev)
			replyToken = ev.ReplyToken
		case bot.ImageInput:
			reply = h.dispatcher.DispatchImage(ev)
			replyToken = ev.ReplyToken
		}

		if reply == nil || replyToken == "" {
			continue
		}
		if err := h.replier.Reply(replyToken, reply.Messages); err != nil {
			h.logger.Error("failed to send reply", zap.Error(err))
		}
	}

	// Always acknowledge: LINE retries non-200 responses, and per-event
	// failures are not the platform's problem.
	response.Success(c, nil)
}
