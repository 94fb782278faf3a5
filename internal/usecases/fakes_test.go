package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"persona_relay/internal/entities"
)

var errStoreDown = errors.New("connection refused")

type sentMessage struct {
	ChatID   int64
	Text     string
	Keyboard [][]entities.Button
	Photo    []byte
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	return m.err
}

func (m *fakeMessenger) SendMessageWithKeyboard(_ context.Context, chatID int64, text string, kb [][]entities.Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text, Keyboard: kb})
	return m.err
}

func (m *fakeMessenger) SendPhoto(_ context.Context, chatID int64, caption string, png []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: caption, Photo: png})
	return m.err
}

func (m *fakeMessenger) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *fakeMessenger) last() sentMessage {
	msgs := m.messages()
	if len(msgs) == 0 {
		return sentMessage{}
	}
	return msgs[len(msgs)-1]
}

type providerCall struct {
	Credential string
	Prompt     string
}

// fakeProvider answers with reply, or with the result of respond when set.
type fakeProvider struct {
	mu      sync.Mutex
	calls   []providerCall
	reply   string
	err     error
	delay   time.Duration
	respond func(credential, prompt string) (string, error)
}

func (p *fakeProvider) GenerateText(ctx context.Context, credential, prompt string) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, providerCall{Credential: credential, Prompt: prompt})
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if p.respond != nil {
		return p.respond(credential, prompt)
	}
	return p.reply, p.err
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) lastCall() providerCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return providerCall{}
	}
	return p.calls[len(p.calls)-1]
}

type unavailableStore struct{}

func (unavailableStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errStoreDown
}
func (unavailableStore) Set(context.Context, string, string) error { return errStoreDown }
func (unavailableStore) Ping(context.Context) error                { return errStoreDown }
func (unavailableStore) Close() error                              { return nil }
