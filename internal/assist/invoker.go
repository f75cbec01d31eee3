package assist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultAttemptTimeout bounds a single provider call.
	DefaultAttemptTimeout = 30 * time.Second
	// DefaultBackoff is the fixed pause between failed attempts.
	DefaultBackoff = 750 * time.Millisecond
	// DefaultMaxAttempts is the budget used by chat and explanations.
	DefaultMaxAttempts = 4
)

// InvokerConfig tunes the rotation policy.
type InvokerConfig struct {
	AttemptTimeout time.Duration
	Backoff        time.Duration
}

// Invoker rotates through an ordered provider list until one answers.
// It never returns an error: a false second result means every attempt failed.
type Invoker struct {
	providers []Provider
	timeout   time.Duration
	backoff   time.Duration
	nonce     func() string
}

// NewInvoker builds an invoker over providers, tried in order and wrapped modulo the list length.
func NewInvoker(providers []Provider, cfg InvokerConfig) *Invoker {
	timeout := cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	backoff := cfg.Backoff
	if backoff < 0 {
		backoff = 0
	}
	return &Invoker{
		providers: providers,
		timeout:   timeout,
		backoff:   backoff,
		nonce:     uuid.NewString,
	}
}

// Providers returns the logical names of the configured providers, in rotation order.
func (iv *Invoker) Providers() []string {
	names := make([]string, len(iv.providers))
	for i, p := range iv.providers {
		names[i] = p.Name()
	}
	return names
}

// Invoke sends a single-turn task with system instructions.
func (iv *Invoker) Invoke(ctx context.Context, task, system string, maxAttempts int) (string, bool) {
	return iv.InvokePrompt(ctx, NewPrompt(task, system), maxAttempts)
}

// InvokePrompt runs up to maxAttempts provider calls and returns the first non-blank text.
func (iv *Invoker) InvokePrompt(ctx context.Context, prompt Prompt, maxAttempts int) (string, bool) {
	if len(iv.providers) == 0 || maxAttempts <= 0 {
		fallbacksTotal.WithLabelValues(CallSiteFrom(ctx)).Inc()
		return "", false
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		provider := iv.providers[attempt%len(iv.providers)]
		text, err := iv.attempt(ctx, provider, withNonce(prompt, iv.nonce()))
		if err == nil {
			attemptsTotal.WithLabelValues(provider.Name(), "success").Inc()
			return text, true
		}
		attemptsTotal.WithLabelValues(provider.Name(), outcome(err)).Inc()
		log.Printf("assist: %s attempt %d/%d via %s failed: %v", CallSiteFrom(ctx), attempt+1, maxAttempts, provider.Name(), err)

		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(iv.backoff):
		}
	}

	fallbacksTotal.WithLabelValues(CallSiteFrom(ctx)).Inc()
	return "", false
}

// attempt runs one bounded call. The provider runs on its own goroutine so a call that
// ignores its context still cannot hold the invoker past the timeout.
func (iv *Invoker) attempt(ctx context.Context, p Provider, prompt Prompt) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		text, err := p.Call(callCtx, prompt)
		ch <- result{text: text, err: err}
	}()

	select {
	case <-callCtx.Done():
		attemptDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
		return "", callCtx.Err()
	case res := <-ch:
		attemptDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
		if res.err != nil {
			return "", res.err
		}
		text := strings.TrimSpace(res.text)
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	}
}

// withNonce appends a random token to the task so upstream caches never replay an answer.
func withNonce(p Prompt, nonce string) Prompt {
	out := p
	out.Messages = make([]Message, len(p.Messages))
	copy(out.Messages, p.Messages)
	if len(out.Messages) == 0 {
		out.Messages = []Message{{Role: RoleUser}}
	}
	last := &out.Messages[len(out.Messages)-1]
	last.Content = last.Content + "\n\n[request-id: " + nonce + "]"
	return out
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	default:
		return "error"
	}
}
