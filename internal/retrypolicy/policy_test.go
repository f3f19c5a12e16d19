package retrypolicy

import (
	"testing"
	"time"

	"github.com/mksenin/notifyhub/internal/model"
)

func TestEngine_DefaultPolicies(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		channel    model.Channel
		maxRetries int
		base       time.Duration
	}{
		{model.ChannelEmail, 5, 2 * time.Second},
		{model.ChannelSMS, 3, 5 * time.Second},
		{model.ChannelPush, 4, 1 * time.Second},
		{model.ChannelSlack, 3, 10 * time.Second},
		{model.ChannelTelegram, 3, 10 * time.Second},
	}

	for _, tt := range tests {
		p := e.For(tt.channel)
		if p.MaxRetries != tt.maxRetries {
			t.Errorf("%s: max retries = %d, want %d", tt.channel, p.MaxRetries, tt.maxRetries)
		}
		if p.BaseDelay != tt.base {
			t.Errorf("%s: base delay = %v, want %v", tt.channel, p.BaseDelay, tt.base)
		}
	}
}

func TestPolicy_Delay_Exponential(t *testing.T) {
	p := Policy{MaxRetries: 5, BackoffType: BackoffExponential, BaseDelay: 2 * time.Second, MaxBackoff: 300 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
	}

	for _, tt := range tests {
		got := p.Delay(tt.attempt)
		if got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicy_Delay_ExponentialCap(t *testing.T) {
	p := Policy{MaxRetries: 4, BackoffType: BackoffExponential, BaseDelay: 1 * time.Second, MaxBackoff: 120 * time.Second}

	// 2^6 seconds = 64s, 2^7 = 128s > cap -> clamp to 120s.
	got := p.Delay(8)
	if got != 120*time.Second {
		t.Errorf("Delay(8) = %v, want clamp to 120s", got)
	}
}

func TestPolicy_Delay_Fixed(t *testing.T) {
	p := Policy{MaxRetries: 3, BackoffType: BackoffFixed, BaseDelay: 10 * time.Second}

	for attempt := 1; attempt <= 3; attempt++ {
		if got := p.Delay(attempt); got != 10*time.Second {
			t.Errorf("Delay(%d) = %v, want 10s fixed", attempt, got)
		}
	}
}

func TestPolicy_Delay_NeverExceedsCapOverKAttempts(t *testing.T) {
	p := Policy{MaxRetries: 10, BackoffType: BackoffExponential, BaseDelay: 2 * time.Second, MaxBackoff: 300 * time.Second}

	var total time.Duration
	const k = 6
	for attempt := 1; attempt <= k; attempt++ {
		total += p.Delay(attempt)
	}

	if total > k*p.MaxBackoff {
		t.Errorf("total delay %v exceeds k*cap = %v", total, k*p.MaxBackoff)
	}
}
