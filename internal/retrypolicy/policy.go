// Package retrypolicy computes per-channel retry caps and backoff delays.
// This is deliberately separate from the broker's own delivery-retry
// mechanism (see SPEC_FULL §9 "Per-channel retry outside the broker's
// retry"): the dispatcher drives every retry decision from here, leaving
// the broker's attempt counter fixed at one.
package retrypolicy

import (
	"time"

	"github.com/mksenin/notifyhub/internal/model"
)

// BackoffType selects how Delay grows between attempts.
type BackoffType string

const (
	BackoffExponential BackoffType = "exponential"
	BackoffFixed       BackoffType = "fixed"
)

// Policy is one channel's retry configuration.
type Policy struct {
	MaxRetries    int
	BackoffType   BackoffType
	BaseDelay     time.Duration
	MaxBackoff    time.Duration // zero means "use BaseDelay * 10"
}

// Delay returns the wait before retry attempt k (1-indexed among retries).
// The result never exceeds the policy's cap.
func (p Policy) Delay(k int) time.Duration {
	ceiling := p.MaxBackoff
	if ceiling == 0 {
		ceiling = p.BaseDelay * 10
	}

	if p.BackoffType == BackoffFixed {
		if p.BaseDelay > ceiling {
			return ceiling
		}
		return p.BaseDelay
	}

	// exponential: base * 2^(k-1), clamped to cap and protected against
	// overflow for large k.
	if k < 1 {
		k = 1
	}
	const maxShift = 32
	shift := k - 1
	if shift > maxShift {
		return ceiling
	}

	delay := p.BaseDelay << uint(shift)
	if delay <= 0 || delay > ceiling {
		return ceiling
	}
	return delay
}

// Engine looks up the Policy for a channel, falling back to defaults from
// SPEC_FULL §4.5 for unknown channels.
type Engine struct {
	policies map[model.Channel]Policy
}

// NewEngine builds an Engine pre-loaded with the spec's per-channel
// defaults. Callers may override individual channels with WithPolicy.
func NewEngine() *Engine {
	return &Engine{policies: defaultPolicies()}
}

func defaultPolicies() map[model.Channel]Policy {
	return map[model.Channel]Policy{
		model.ChannelEmail: {
			MaxRetries:  5,
			BackoffType: BackoffExponential,
			BaseDelay:   2 * time.Second,
			MaxBackoff:  300 * time.Second,
		},
		model.ChannelSMS: {
			MaxRetries:  3,
			BackoffType: BackoffExponential,
			BaseDelay:   5 * time.Second,
			MaxBackoff:  600 * time.Second,
		},
		model.ChannelPush: {
			MaxRetries:  4,
			BackoffType: BackoffExponential,
			BaseDelay:   1 * time.Second,
			MaxBackoff:  120 * time.Second,
		},
		model.ChannelSlack: {
			MaxRetries:  3,
			BackoffType: BackoffFixed,
			BaseDelay:   10 * time.Second,
		},
		model.ChannelTelegram: {
			MaxRetries:  3,
			BackoffType: BackoffFixed,
			BaseDelay:   10 * time.Second,
		},
	}
}

// WithPolicy overrides the policy for one channel and returns the engine
// for chaining.
func (e *Engine) WithPolicy(ch model.Channel, p Policy) *Engine {
	e.policies[ch] = p
	return e
}

// For returns the policy for ch, or the email policy as a sane default if
// ch is not recognized.
func (e *Engine) For(ch model.Channel) Policy {
	if p, ok := e.policies[ch]; ok {
		return p
	}
	return e.policies[model.ChannelEmail]
}

// MaxRetriesFor is a convenience accessor used when seeding a row's
// max_retries from the channel default.
func (e *Engine) MaxRetriesFor(ch model.Channel) int {
	return e.For(ch).MaxRetries
}
