// Package model holds the persistent domain types the dispatch engine
// operates on: notifications, their append-only logs, and the owning
// user/preferences records.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Channel is one of the delivery mechanisms the dispatcher knows how to
// reach.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
	ChannelSlack    Channel = "slack"
	ChannelTelegram Channel = "telegram"
)

// Priority controls hand-out order at the broker; higher priorities are
// served first.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Weight maps a priority to the AMQP priority value used when publishing.
// Unknown priorities fall back to normal.
func (p Priority) Weight() int {
	switch p {
	case PriorityUrgent:
		return 10
	case PriorityHigh:
		return 5
	case PriorityNormal:
		return 0
	case PriorityLow:
		return -5
	default:
		return 0
	}
}

// Status is the lifecycle state of a notification row. See SPEC_FULL §4.4
// for the full state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether status ends the dispatch lifecycle (sent, failed
// or cancelled). Only failed is ever left again: an explicit manual retry
// (notification.Service.RetryNotification) moves such a row back to queued.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// Notification is one row per (submission x channel).
type Notification struct {
	ID               uuid.UUID
	UserID           *uuid.UUID // optional owning principal
	Channel          Channel
	Recipient        string
	Subject          string // required for email, ignored elsewhere
	Content          string
	Status           Status
	Priority         Priority
	RetryCount       int
	MaxRetries       int
	ScheduledAt      time.Time
	LastProcessedAt  *time.Time
	SentAt           *time.Time
	LastErrorMessage string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
