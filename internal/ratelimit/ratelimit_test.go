package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/devon-ng/gatewaycore/internal/config"
)

func TestLimiter_AllowRespectsBurst(t *testing.T) {
	l := New(map[config.ProviderID]Config{
		config.ProviderOpenAI: {RequestsPerSecond: 1, Burst: 2},
	})

	if !l.Allow(config.ProviderOpenAI) {
		t.Fatal("first call should be allowed (within burst)")
	}
	if !l.Allow(config.ProviderOpenAI) {
		t.Fatal("second call should be allowed (within burst)")
	}
	if l.Allow(config.ProviderOpenAI) {
		t.Fatal("third call should be denied (burst exhausted)")
	}
}

func TestLimiter_UnconfiguredProviderIsUnrestricted(t *testing.T) {
	l := New(map[config.ProviderID]Config{})
	for i := 0; i < 100; i++ {
		if !l.Allow(config.ProviderAnthropic) {
			t.Fatal("unconfigured provider should never be throttled")
		}
	}
}

func TestLimiter_WaitReturnsContextError(t *testing.T) {
	l := New(map[config.ProviderID]Config{
		config.ProviderGemini: {RequestsPerSecond: 0.001, Burst: 1},
	})
	// Exhaust the single burst token.
	if !l.Allow(config.ProviderGemini) {
		t.Fatal("first call should be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, config.ProviderGemini); err == nil {
		t.Fatal("expected context deadline error waiting on an exhausted limiter")
	}
}
