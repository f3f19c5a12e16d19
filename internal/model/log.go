package model

import (
	"time"

	"github.com/google/uuid"
)

// LogStatus tags the kind of event a NotificationLog row records.
type LogStatus string

const (
	LogCreated        LogStatus = "created"
	LogQueued         LogStatus = "queued"
	LogProcessing     LogStatus = "processing"
	LogDelivered      LogStatus = "delivered"
	LogError          LogStatus = "error"
	LogRetryScheduled LogStatus = "retry_scheduled"
	LogFailed         LogStatus = "failed"
	LogCancelled      LogStatus = "cancelled"
	LogStallRecovered LogStatus = "stall_recovered"
)

// NotificationLog is an append-only record of one state transition or
// provider interaction for a notification. Rows are never updated or
// deleted by the dispatcher.
type NotificationLog struct {
	ID               uuid.UUID
	NotificationID   uuid.UUID
	Status           LogStatus
	Message          string
	ProviderResponse string // raw provider payload, optional
	ErrorDetails     string // plain error text, optional; not a structured payload
	CreatedAt        time.Time
}
