package usecases

import (
	"strings"

	"persona_relay/internal/entities"
)

const credentialButtonText = "🔑 Set API Key"

// FormURL returns the companion form address for a public base URL, or "" when unset.
// A base without scheme is treated as https.
func FormURL(baseURL string) string {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return ""
	}
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/") + "/index.html"
}

// CredentialKeyboard opens the companion form as a Telegram Mini App.
func CredentialKeyboard(formURL string) [][]entities.Button {
	return [][]entities.Button{
		{{Text: credentialButtonText, WebAppURL: formURL}},
	}
}
