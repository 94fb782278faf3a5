package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"persona_relay/internal/entities"
	"persona_relay/internal/infrastructure"
)

// Dispatcher handles one decoded delivery to completion.
type Dispatcher interface {
	Handle(ctx context.Context, raw entities.RawEvent) entities.DispatchOutcome
}

// WebhookHandler is the Telegram delivery endpoint. Every request gets exactly one response.
type WebhookHandler struct {
	dispatcher Dispatcher
	tracker    *infrastructure.DeliveryTracker
	log        zerolog.Logger
}

func NewWebhookHandler(dispatcher Dispatcher, tracker *infrastructure.DeliveryTracker, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, tracker: tracker, log: log}
}

func (h *WebhookHandler) HandleUpdate(c *gin.Context) {
	updateID := 0
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error().Interface("panic", rec).Int("update_id", updateID).Msg("webhook handler panicked")
			if h.tracker != nil {
				h.tracker.Forget(updateID)
			}
			h.respond(c, http.StatusInternalServerError, "Error")
		}
	}()

	if h.dispatcher == nil {
		h.respond(c, http.StatusInternalServerError, "Error: bot not initialized")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respond(c, http.StatusRequestEntityTooLarge, "Error")
			return
		}
		h.respond(c, http.StatusBadRequest, "Error")
		return
	}

	raw, err := DecodeUpdate(body)
	if err != nil {
		h.log.Warn().Err(err).Msg("rejecting webhook delivery")
		h.respond(c, http.StatusBadRequest, "Error")
		return
	}
	if raw == nil {
		// edits, callbacks, member updates and the like
		h.respond(c, http.StatusOK, "OK")
		return
	}
	updateID = raw.UpdateID

	if h.tracker != nil && !h.tracker.FirstDelivery(raw.UpdateID) {
		h.log.Debug().Int("update_id", raw.UpdateID).Msg("duplicate delivery ignored")
		h.respond(c, http.StatusOK, "OK")
		return
	}

	h.dispatcher.Handle(c.Request.Context(), *raw)
	h.respond(c, http.StatusOK, "OK")
}

func (h *WebhookHandler) respond(c *gin.Context, status int, body string) {
	infrastructure.WebhookRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	c.String(status, body)
}

// webAppEnvelope picks up message.web_app_data, which tgbotapi v5 does not decode.
type webAppEnvelope struct {
	Message *struct {
		WebAppData *struct {
			Data string `json:"data"`
		} `json:"web_app_data"`
	} `json:"message"`
}

// DecodeUpdate turns a Telegram update body into a RawEvent. It returns (nil, nil) for updates
// that carry no new message.
func DecodeUpdate(body []byte) (*entities.RawEvent, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrMalformedEvent, err)
	}
	var envelope webAppEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrMalformedEvent, err)
	}

	msg := update.Message
	if msg == nil {
		return nil, nil
	}
	if msg.Chat == nil {
		return nil, fmt.Errorf("%w: message without chat", entities.ErrMalformedEvent)
	}

	raw := &entities.RawEvent{
		UpdateID: update.UpdateID,
		TenantID: strconv.FormatInt(msg.Chat.ID, 10),
		ChatID:   msg.Chat.ID,
		Private:  msg.Chat.IsPrivate(),
		Text:     msg.Text,
	}
	if envelope.Message != nil && envelope.Message.WebAppData != nil {
		data := envelope.Message.WebAppData.Data
		raw.FormPayload = &data
	}
	return raw, nil
}
