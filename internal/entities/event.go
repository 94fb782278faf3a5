package entities

// RawEvent is one decoded webhook delivery before classification.
type RawEvent struct {
	UpdateID    int
	TenantID    string
	ChatID      int64
	Private     bool    // direct chat with the bot
	Text        string
	FormPayload *string // companion form submission, nil for plain text
}

type EventKind int

const (
	KindIgnorable EventKind = iota
	KindFormSubmission
	KindCommand
	KindTextMessage
)

func (k EventKind) String() string {
	switch k {
	case KindFormSubmission:
		return "structured-form-submission"
	case KindCommand:
		return "command"
	case KindTextMessage:
		return "text-message"
	default:
		return "ignorable"
	}
}

// InboundEvent is a classified delivery. Only the fields for Kind are set.
type InboundEvent struct {
	TenantID string
	ChatID   int64
	Private  bool
	Kind     EventKind

	// KindFormSubmission
	FormPayload string

	// KindCommand
	Command     string
	CommandArgs string

	// KindTextMessage
	PersonaName  string
	SystemPrompt string
	MessageBody  string
}
