package infrastructure

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"persona_relay/internal/entities"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiGateway calls the Gemini API with the caller's credential. It builds a new client for
// every call and keeps no credential between calls.
type GeminiGateway struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

type GeminiConfig struct {
	Model      string
	BaseURL    string       // optional, for proxies and tests
	HTTPClient *http.Client // optional, shared transport only
}

func NewGeminiGateway(cfg GeminiConfig) *GeminiGateway {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGateway{
		model:      model,
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
	}
}

func (g *GeminiGateway) Model() string {
	return g.model
}

func (g *GeminiGateway) GenerateText(ctx context.Context, credential, prompt string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", entities.NewProviderError(entities.ProviderInvalidCredential, "empty credential")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return "", classifyGeminiError(err, credential)
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", classifyGeminiError(err, credential)
	}

	text := resp.Text()
	if text == "" {
		reason := "empty response"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return "", entities.NewProviderError(entities.ProviderOpaque, reason)
	}
	return text, nil
}

func classifyGeminiError(err error, credential string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return entities.NewProviderError(entities.ProviderUnavailable, "request timed out")
	}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			return entities.NewProviderError(entities.ProviderUnavailable, RedactCredential(err.Error(), credential))
		}
		return entities.NewProviderError(entities.ProviderOpaque, RedactCredential(err.Error(), credential))
	}

	msg := RedactCredential(apiErr.Message, credential)
	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return entities.NewProviderError(entities.ProviderInvalidCredential, msg)
	case http.StatusBadRequest:
		lower := strings.ToLower(apiErr.Message)
		if strings.Contains(lower, "api key") || strings.Contains(lower, "api_key") {
			return entities.NewProviderError(entities.ProviderInvalidCredential, msg)
		}
	case http.StatusTooManyRequests:
		return entities.NewProviderError(entities.ProviderQuotaExceeded, msg)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return entities.NewProviderError(entities.ProviderUnavailable, msg)
	}
	return entities.NewProviderError(entities.ProviderOpaque, msg)
}

// RedactCredential removes every occurrence of credential from s.
func RedactCredential(s, credential string) string {
	if credential == "" {
		return s
	}
	return strings.ReplaceAll(s, credential, "[REDACTED]")
}
