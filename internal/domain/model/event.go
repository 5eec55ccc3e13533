package model

import "time"

// AutomationEvent is an audit trail entry consumed only for observability.
type AutomationEvent struct {
	ID         string // ULID, sortable by time
	EventType  string // e.g. "job_enqueued", "converted"
	EntityType string // e.g. "lead", "request"
	EntityID   string
	Payload    map[string]interface{}
	CreatedAt  time.Time
}
