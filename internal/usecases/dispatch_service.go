package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"persona_relay/internal/entities"
	"persona_relay/internal/infrastructure"
	"persona_relay/internal/interfaces"
	"persona_relay/internal/repository"
)

const (
	msgWelcomeReady     = "👋 Welcome back! Your API key is ready.\n\nAddress a character with @name, for example:\n@gojo hello\n\nSend /personas to see everyone."
	msgWelcomeNew       = "👋 Hi! To chat, register your Gemini API key first: tap the API key button below, or send /key <your key> here."
	msgWelcomeNewNoForm = "👋 Hi! To chat, register your Gemini API key first: send /key <your key> in this private chat."
	msgKeyMissing       = "You haven't set your Gemini API key yet.\nRegister it with the API key button or /key <your key>, then try again."
	msgGroupKeyMissing  = "This group has no Gemini API key yet. Keys are never accepted in group chats, so a bot administrator has to register one for this chat through the admin API (PUT /api/admin/tenants/<chat id>/credential)."
	msgKeyStored        = "✅ Your Gemini API key has been saved."
	msgKeyUsage         = "Usage: /key <your Gemini API key>"
	msgKeyPrivateOnly   = "For your safety, send /key only in a private chat with me."
	msgDegraded         = "⚠️ The service is degraded right now and your key can't be reached. Please try again later."
	msgProviderAuth     = "Gemini rejected your API key. Check it and register it again with /key or the API key button."
	msgProviderQuota    = "Your Gemini quota is exhausted. Try again later or check your plan."
	msgProviderDown     = "Gemini didn't answer in time. Please try again in a moment."
	msgLinkMissing      = "The companion form is not configured on this bot. Use /key <your key> in a private chat instead."
	msgHelp             = "Commands:\n/start - welcome and key setup\n/key <key> - register your Gemini API key (private chat only)\n/personas - list characters\n/link - companion form link\n/help - this message\n\nTo chat, start your message with @name, e.g. @gojo hello"
)

type DispatchConfig struct {
	PublicBaseURL   string
	ProviderTimeout time.Duration
}

// DispatchService classifies one delivery and performs its side effects. It keeps no state
// between deliveries apart from the rate limiter.
type DispatchService struct {
	credentials *repository.CredentialRepository
	personas    *PersonaRegistry
	classifier  *Classifier
	provider    interfaces.TextGenerator
	messenger   interfaces.Messenger
	limiter     *infrastructure.MessageRateLimiter
	log         zerolog.Logger

	formURL         string
	providerTimeout time.Duration
}

func NewDispatchService(
	credentials *repository.CredentialRepository,
	personas *PersonaRegistry,
	classifier *Classifier,
	provider interfaces.TextGenerator,
	messenger interfaces.Messenger,
	limiter *infrastructure.MessageRateLimiter,
	log zerolog.Logger,
	cfg DispatchConfig,
) *DispatchService {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if limiter == nil {
		limiter = infrastructure.NewMessageRateLimiter(0, 1)
	}
	return &DispatchService{
		credentials:     credentials,
		personas:        personas,
		classifier:      classifier,
		provider:        provider,
		messenger:       messenger,
		limiter:         limiter,
		log:             log,
		formURL:         FormURL(cfg.PublicBaseURL),
		providerTimeout: timeout,
	}
}

// Handle runs one delivery to completion. Side effects are finished when it returns, even if
// ctx is cancelled meanwhile.
func (s *DispatchService) Handle(ctx context.Context, raw entities.RawEvent) entities.DispatchOutcome {
	ctx = context.WithoutCancel(ctx)
	log := s.log.With().Str("tenant_id", raw.TenantID).Int("update_id", raw.UpdateID).Logger()

	ev, err := s.classifier.Classify(raw)
	var outcome entities.DispatchOutcome
	switch {
	case errors.Is(err, entities.ErrUnknownPersona):
		s.reply(ctx, log, ev.ChatID, fmt.Sprintf("Character '%s' not found. Send /personas to see who's available.", ev.PersonaName))
		outcome = entities.Failed(err)
	case err != nil:
		outcome = entities.Failed(err)
	default:
		switch ev.Kind {
		case entities.KindFormSubmission:
			outcome = s.storeCredential(ctx, log, ev, ev.FormPayload)
		case entities.KindCommand:
			outcome = s.handleCommand(ctx, log, ev)
		case entities.KindTextMessage:
			outcome = s.handleChat(ctx, log, ev)
		default:
			outcome = entities.Handled(entities.OutcomeIgnored)
		}
	}

	infrastructure.DispatchOutcomes.WithLabelValues(outcome.Kind.String(), entities.ReasonLabel(outcome.Reason)).Inc()
	log.Debug().Str("kind", ev.Kind.String()).Str("outcome", outcome.String()).Msg("delivery handled")
	return outcome
}

func (s *DispatchService) storeCredential(ctx context.Context, log zerolog.Logger, ev entities.InboundEvent, credential string) entities.DispatchOutcome {
	err := s.credentials.Set(ctx, ev.TenantID, credential)
	switch {
	case err == nil:
		log.Info().Msg("credential stored")
		s.reply(ctx, log, ev.ChatID, msgKeyStored)
		return entities.Handled(entities.OutcomeCredentialStored)
	case errors.Is(err, entities.ErrValidationFailed):
		s.reply(ctx, log, ev.ChatID, "❌ Invalid key: "+validationReason(err))
	case errors.Is(err, entities.ErrPersistenceUnavailable):
		log.Error().Err(err).Msg("credential store unavailable")
		s.reply(ctx, log, ev.ChatID, msgDegraded)
	default:
		log.Error().Err(err).Msg("credential store failed")
		s.reply(ctx, log, ev.ChatID, msgDegraded)
	}
	return entities.Failed(err)
}

func (s *DispatchService) handleCommand(ctx context.Context, log zerolog.Logger, ev entities.InboundEvent) entities.DispatchOutcome {
	switch ev.Command {
	case "start":
		return s.handleStart(ctx, log, ev)
	case "key":
		if !ev.Private {
			s.reply(ctx, log, ev.ChatID, msgKeyPrivateOnly)
			return entities.Failed(fmt.Errorf("%w: /key outside a private chat", entities.ErrValidationFailed))
		}
		if strings.TrimSpace(ev.CommandArgs) == "" {
			s.reply(ctx, log, ev.ChatID, msgKeyUsage)
			return entities.Failed(fmt.Errorf("%w: /key without argument", entities.ErrValidationFailed))
		}
		return s.storeCredential(ctx, log, ev, ev.CommandArgs)
	case "personas":
		names := s.personas.Names()
		for i, n := range names {
			names[i] = "@" + n
		}
		s.reply(ctx, log, ev.ChatID, "Available characters:\n"+strings.Join(names, "\n"))
	case "link":
		return s.handleLink(ctx, log, ev)
	default:
		s.reply(ctx, log, ev.ChatID, msgHelp)
	}
	return entities.Handled(entities.OutcomeCommandReplySent)
}

func (s *DispatchService) handleStart(ctx context.Context, log zerolog.Logger, ev entities.InboundEvent) entities.DispatchOutcome {
	_, err := s.credentials.Get(ctx, ev.TenantID)
	switch {
	case err == nil:
		s.replyWithForm(ctx, log, ev, msgWelcomeReady)
	case errors.Is(err, entities.ErrCredentialNotFound):
		switch {
		case !ev.Private:
			s.reply(ctx, log, ev.ChatID, msgGroupKeyMissing)
		case s.formURL == "":
			s.reply(ctx, log, ev.ChatID, msgWelcomeNewNoForm)
		default:
			s.replyWithForm(ctx, log, ev, msgWelcomeNew)
		}
	default:
		log.Error().Err(err).Msg("credential lookup failed")
		s.reply(ctx, log, ev.ChatID, msgDegraded)
		return entities.Failed(err)
	}
	return entities.Handled(entities.OutcomeCommandReplySent)
}

func (s *DispatchService) handleLink(ctx context.Context, log zerolog.Logger, ev entities.InboundEvent) entities.DispatchOutcome {
	if s.formURL == "" {
		s.reply(ctx, log, ev.ChatID, msgLinkMissing)
		return entities.Handled(entities.OutcomeCommandReplySent)
	}
	png, err := qrcode.Encode(s.formURL, qrcode.Medium, 256)
	if err != nil {
		log.Warn().Err(err).Msg("qr encode failed")
		s.reply(ctx, log, ev.ChatID, s.formURL)
		return entities.Handled(entities.OutcomeCommandReplySent)
	}
	if err := s.messenger.SendPhoto(ctx, ev.ChatID, s.formURL, png); err != nil {
		log.Warn().Err(err).Msg("send photo failed")
	}
	return entities.Handled(entities.OutcomeCommandReplySent)
}

func (s *DispatchService) handleChat(ctx context.Context, log zerolog.Logger, ev entities.InboundEvent) entities.DispatchOutcome {
	log = log.With().Str("persona", ev.PersonaName).Logger()

	credential, err := s.credentials.Get(ctx, ev.TenantID)
	switch {
	case errors.Is(err, entities.ErrCredentialNotFound):
		if ev.Private {
			s.replyWithForm(ctx, log, ev, msgKeyMissing)
		} else {
			s.reply(ctx, log, ev.ChatID, msgGroupKeyMissing)
		}
		return entities.Failed(err)
	case err != nil:
		log.Error().Err(err).Msg("credential lookup failed")
		s.reply(ctx, log, ev.ChatID, msgDegraded)
		return entities.Failed(err)
	}

	if !s.limiter.Allow(ev.TenantID) {
		wait := int(math.Ceil(s.limiter.WaitTime(ev.TenantID).Seconds()))
		if wait < 1 {
			wait = 1
		}
		s.reply(ctx, log, ev.ChatID, fmt.Sprintf("You're sending messages too fast. Try again in %d seconds.", wait))
		return entities.Failed(entities.ErrRateLimited)
	}

	text, err := s.generate(ctx, log, credential, Compose(ev.SystemPrompt, ev.MessageBody))
	if err != nil {
		kind, _ := entities.ProviderKind(err)
		log.Warn().Err(err).Str("failure", kind.String()).Msg("provider call failed")
		s.reply(ctx, log, ev.ChatID, providerFailureMessage(err))
		return entities.Failed(err)
	}

	s.reply(ctx, log, ev.ChatID, text)
	return entities.Handled(entities.OutcomeChatReplySent)
}

type generation struct {
	text string
	err  error
}

// generate waits at most providerTimeout for the provider. A call still running after that is
// left to finish on its own context and its result is only logged.
func (s *DispatchService) generate(ctx context.Context, log zerolog.Logger, credential, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*s.providerTimeout)
	done := make(chan generation, 1)
	start := time.Now()

	go func() {
		defer cancel()
		text, err := s.provider.GenerateText(callCtx, credential, prompt)
		done <- generation{text: text, err: err}
	}()

	timer := time.NewTimer(s.providerTimeout)
	defer timer.Stop()

	select {
	case g := <-done:
		result := "ok"
		if g.err != nil {
			kind, _ := entities.ProviderKind(g.err)
			result = kind.String()
		}
		infrastructure.ProviderDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
		return g.text, g.err
	case <-timer.C:
		infrastructure.ProviderDuration.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
		go func() {
			g := <-done
			log.Info().Err(g.err).Dur("elapsed", time.Since(start)).Msg("late provider result discarded")
		}()
		return "", entities.NewProviderError(entities.ProviderUnavailable, "timed out")
	}
}

func providerFailureMessage(err error) string {
	var pe *entities.ProviderError
	if !errors.As(err, &pe) {
		return msgProviderDown
	}
	switch pe.Kind {
	case entities.ProviderInvalidCredential:
		return msgProviderAuth
	case entities.ProviderQuotaExceeded:
		return msgProviderQuota
	case entities.ProviderUnavailable:
		return msgProviderDown
	default:
		return "Gemini Error: " + pe.Message
	}
}

// validationReason strips the sentinel prefix from a validation error.
func validationReason(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, entities.ErrValidationFailed.Error()+": "); i >= 0 {
		return msg[i+len(entities.ErrValidationFailed.Error())+2:]
	}
	return msg
}

// reply sends text and logs, but does not return, delivery failures.
func (s *DispatchService) reply(ctx context.Context, log zerolog.Logger, chatID int64, text string) {
	if err := s.messenger.SendMessage(ctx, chatID, text); err != nil {
		log.Warn().Err(err).Msg("send message failed")
	}
}

// replyWithForm attaches the companion form button. Telegram accepts web_app buttons only in
// private chats, so other chats get plain text.
func (s *DispatchService) replyWithForm(ctx context.Context, log zerolog.Logger, ev entities.InboundEvent, text string) {
	if s.formURL == "" || !ev.Private {
		s.reply(ctx, log, ev.ChatID, text)
		return
	}
	if err := s.messenger.SendMessageWithKeyboard(ctx, ev.ChatID, text, CredentialKeyboard(s.formURL)); err != nil {
		log.Warn().Err(err).Msg("send message failed")
	}
}
