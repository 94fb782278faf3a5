package usecases

import (
	"fmt"
	"strings"
	"unicode"

	"persona_relay/internal/entities"
)

// Classifier turns a raw delivery into an InboundEvent.
type Classifier struct {
	personas    *PersonaRegistry
	botUsername string // lower-case, without @
}

func NewClassifier(personas *PersonaRegistry, botUsername string) *Classifier {
	return &Classifier{
		personas:    personas,
		botUsername: strings.ToLower(strings.TrimPrefix(botUsername, "@")),
	}
}

// Classify applies, in order: form payload, leading "/" command, leading "@" persona address,
// otherwise ignorable. An address naming no registered persona returns ErrUnknownPersona along
// with the event so the caller can tell the user.
func (c *Classifier) Classify(raw entities.RawEvent) (entities.InboundEvent, error) {
	ev := entities.InboundEvent{
		TenantID: raw.TenantID,
		ChatID:   raw.ChatID,
		Private:  raw.Private,
		Kind:     entities.KindIgnorable,
	}

	if raw.FormPayload != nil {
		ev.Kind = entities.KindFormSubmission
		ev.FormPayload = *raw.FormPayload
		return ev, nil
	}

	text := raw.Text
	switch {
	case strings.HasPrefix(text, "/"):
		token, rest := splitFirstField(text)
		name := strings.ToLower(strings.TrimPrefix(token, "/"))
		if at := strings.IndexByte(name, '@'); at >= 0 {
			target := name[at+1:]
			if c.botUsername != "" && target != c.botUsername {
				return ev, nil // addressed to another bot in the same group
			}
			name = name[:at]
		}
		if name == "" {
			return ev, nil
		}
		ev.Kind = entities.KindCommand
		ev.Command = name
		ev.CommandArgs = rest
		return ev, nil

	case strings.HasPrefix(text, "@"):
		token, rest := splitFirstField(text)
		name := NormalizePersonaName(strings.TrimPrefix(token, "@"))
		if name == "" {
			return ev, nil
		}
		ev.PersonaName = name
		persona, err := c.personas.Resolve(name)
		if err != nil {
			return ev, fmt.Errorf("classify: %w", err)
		}
		ev.Kind = entities.KindTextMessage
		ev.SystemPrompt = persona.SystemPrompt
		ev.MessageBody = rest
		return ev, nil
	}

	return ev, nil
}

// splitFirstField splits s at its first whitespace run. rest has that run removed.
func splitFirstField(s string) (head, rest string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}
