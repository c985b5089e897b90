package services

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestGenerateTextFallsBackToSecondProvider(t *testing.T) {
	primary := &fakeGenerator{name: "primary", fn: func(ctx context.Context, system, prompt string) (string, error) {
		return "", fmt.Errorf("primary down")
	}}
	secondary := &fakeGenerator{name: "secondary", fn: func(ctx context.Context, system, prompt string) (string, error) {
		return "보조 응답", nil
	}}

	client := NewLLMClient(&AIConfig{TimeoutSec: 1, MaxRetries: 4, RateLimitPerMin: 6000}, primary, secondary)
	text, err := client.GenerateText(context.Background(), "", "질문")
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if text != "보조 응답" {
		t.Errorf("text = %q, want fallback provider output", text)
	}
}

func TestGenerateTextTreatsEmptyAsFailure(t *testing.T) {
	calls := 0
	empty := &fakeGenerator{fn: func(ctx context.Context, system, prompt string) (string, error) {
		calls++
		return "   ", nil
	}}

	client := NewLLMClient(&AIConfig{TimeoutSec: 1, MaxRetries: 2, RateLimitPerMin: 6000}, empty)
	_, err := client.GenerateText(context.Background(), "", "질문")
	if err == nil {
		t.Fatal("expected an error for all-empty responses")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one per retry)", calls)
	}
}

func TestGenerateTextNoProviders(t *testing.T) {
	client := NewLLMClient(&AIConfig{TimeoutSec: 1, MaxRetries: 1, RateLimitPerMin: 6000})
	if _, err := client.GenerateText(context.Background(), "", "질문"); err == nil {
		t.Fatal("expected an error with no providers configured")
	}
}

func TestUnavailableWindow(t *testing.T) {
	client := NewLLMClient(&AIConfig{TimeoutSec: 1, MaxRetries: 1, RateLimitPerMin: 6000}, failingGenerator())

	if client.Unavailable() {
		t.Fatal("fresh client must not report unavailable")
	}

	client.recordFailure()
	if client.Unavailable() {
		t.Fatal("a recent failure must not trip the outage window")
	}

	client.mu.Lock()
	client.firstFailure = time.Now().Add(-outageWindow - time.Second)
	client.mu.Unlock()
	if !client.Unavailable() {
		t.Fatal("failures older than the window must report unavailable")
	}

	client.recordSuccess()
	if client.Unavailable() {
		t.Fatal("a success must clear the outage state")
	}
}
