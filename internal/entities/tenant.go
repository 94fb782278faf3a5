package entities

// Tenant is one chat participant as seen by the credential store.
type Tenant struct {
	ID             string `json:"id"`
	HasCredential  bool   `json:"has_credential"`
	CredentialHint string `json:"credential_hint,omitempty"` // e.g. "AIza…9xQk", never the full secret
	LastPersona    string `json:"last_persona,omitempty"`    // reserved; turns are stateless so this stays empty
}

// Persona is a named system prompt template.
type Persona struct {
	Name         string `json:"name" yaml:"name"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
}

// Button is a reply keyboard button. WebAppURL opens a Telegram Mini App when set.
type Button struct {
	Text      string
	WebAppURL string
}
