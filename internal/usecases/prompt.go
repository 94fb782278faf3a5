package usecases

const (
	userTurnMarker  = "\n\nUser: "
	modelTurnMarker = "\nYou:"
)

// Compose builds the provider prompt: system instructions, the user turn, then the cue for the
// model's turn. No truncation happens here.
func Compose(systemPrompt, messageBody string) string {
	return systemPrompt + userTurnMarker + messageBody + modelTurnMarker
}
