// Package adapter defines the channel adapter contract every concrete
// delivery mechanism (email, sms, push, slack, telegram) must satisfy, and
// the mandatory Transient/Permanent/Misconfigured error classification that
// drives the dispatcher's retry policy.
package adapter

import "context"

// SendResult carries what the dispatcher needs to record on success.
type SendResult struct {
	MessageID        string
	ProviderResponse string
}

// Status is the read-only introspection surface used by health checks.
type Status struct {
	Configured bool
	Channel    string
	Extra      map[string]string
}

// Metadata carries adapter-specific sending options (cc/bcc, attachments,
// platform-specific push sub-payloads, etc). Keys are adapter-defined.
type Metadata map[string]any

// Adapter is the contract every channel implementation satisfies.
type Adapter interface {
	// Send delivers one message via this channel. On failure the returned
	// error must satisfy exactly one of IsTransient, IsPermanent or
	// IsMisconfigured (see errors.go).
	Send(ctx context.Context, recipient, subject, content string, meta Metadata) (SendResult, error)

	// Verify probes credentials/connectivity without sending a message.
	Verify(ctx context.Context) error

	// Status reports read-only configuration/health introspection.
	Status() Status
}
