package models

import "time"

// Audit event types recorded by the dashboard.
const (
	EventStreamOpen       = "STREAM_OPEN"
	EventStreamError      = "STREAM_ERROR"
	EventFrameDropped     = "FRAME_DROPPED"
	EventSettingsApplied  = "SETTINGS_APPLIED"
	EventSettingsRejected = "SETTINGS_REJECTED"
	EventTransportError   = "TRANSPORT_ERROR"
	EventQuit             = "QUIT"
)

// DashboardEvent is a single audit log entry.
type DashboardEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // STREAM_OPEN | FRAME_DROPPED | SETTINGS_APPLIED | ...
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
