package interfaces

import (
	"context"

	"persona_relay/internal/entities"
)

// TextGenerator sends one prompt to the generative-text provider using the given credential.
type TextGenerator interface {
	GenerateText(ctx context.Context, credential, prompt string) (string, error)
}

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, buttons [][]entities.Button) error
	SendPhoto(ctx context.Context, chatID int64, caption string, png []byte) error
}

// KVStore is a durable string store. Set on a single key must be atomic.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}

// Sealer encrypts values before they reach the KVStore.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
	IsSealed(value string) bool
}
