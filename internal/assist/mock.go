package assist

import (
	"context"
	"sync"
)

// StaticProvider always answers with the same text. Useful for demos without API keys.
type StaticProvider struct {
	Text string
}

func (p StaticProvider) Name() string { return "static" }

func (p StaticProvider) Call(ctx context.Context, _ Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.Text, nil
}

// MockResponse is a canned answer for MockProvider.
type MockResponse struct {
	Text string
	Err  error
	// Block makes the call wait for ctx cancellation, simulating a hung upstream.
	Block bool
}

// MockProvider replays canned responses in FIFO order and records every prompt.
type MockProvider struct {
	name      string
	mu        sync.Mutex
	responses []MockResponse
	calls     []Prompt
}

// NewMockProvider creates a named mock with queued responses.
func NewMockProvider(name string, responses ...MockResponse) *MockProvider {
	return &MockProvider{name: name, responses: responses}
}

func (m *MockProvider) Name() string { return m.name }

// Call returns the next canned response, or ErrProviderUnavailable once the queue is empty.
func (m *MockProvider) Call(ctx context.Context, prompt Prompt) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, prompt)
	if len(m.responses) == 0 {
		m.mu.Unlock()
		return "", &ErrProviderUnavailable{Provider: m.name}
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	m.mu.Unlock()

	if resp.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if resp.Err != nil {
		return "", resp.Err
	}
	return resp.Text, nil
}

// CallCount returns the number of calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded prompts.
func (m *MockProvider) Calls() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Prompt, len(m.calls))
	copy(out, m.calls)
	return out
}
