package entities

import "fmt"

type OutcomeKind int

const (
	OutcomeIgnored OutcomeKind = iota
	OutcomeCredentialStored
	OutcomeChatReplySent
	OutcomeCommandReplySent
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCredentialStored:
		return "credential_stored"
	case OutcomeChatReplySent:
		return "chat_reply_sent"
	case OutcomeCommandReplySent:
		return "command_reply_sent"
	case OutcomeFailed:
		return "failed"
	default:
		return "ignored"
	}
}

// DispatchOutcome is the result of handling one delivery. Not persisted.
type DispatchOutcome struct {
	Kind   OutcomeKind
	Reason error
}

func Handled(kind OutcomeKind) DispatchOutcome {
	return DispatchOutcome{Kind: kind}
}

func Failed(reason error) DispatchOutcome {
	return DispatchOutcome{Kind: OutcomeFailed, Reason: reason}
}

func (o DispatchOutcome) String() string {
	if o.Reason != nil {
		return fmt.Sprintf("%s(%v)", o.Kind, o.Reason)
	}
	return o.Kind.String()
}
