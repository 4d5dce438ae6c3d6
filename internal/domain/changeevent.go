package domain

import "time"

// ChangeEventKind tags the category of a recorded state transition.
type ChangeEventKind string

const (
	EventShelterThreshold ChangeEventKind = "SHELTER_THRESHOLD"
	EventSupplyLow        ChangeEventKind = "SUPPLY_LOW"
	EventAlertCreated     ChangeEventKind = "ALERT_CREATED"
	EventAlertResolved    ChangeEventKind = "ALERT_RESOLVED"
	EventIncidentCreated  ChangeEventKind = "INCIDENT_CREATED"
	EventIncidentAssigned ChangeEventKind = "INCIDENT_ASSIGNED"
	EventIncidentClosed   ChangeEventKind = "INCIDENT_CLOSED"
	EventNoteAdded        ChangeEventKind = "NOTE_ADDED"
)

// ActivityLogCap bounds the in-memory activity feed. The feed keeps the 50
// most recent events, newest first; the oldest entry is evicted first.
const ActivityLogCap = 50

// ChangeEvent is one entry in the bounded "what changed" activity feed.
type ChangeEvent struct {
	ID          string           `json:"id"`
	RecordedAt  time.Time        `json:"recordedAt"`
	Kind        ChangeEventKind  `json:"kind"`
	Severity    IncidentSeverity `json:"severity"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	EntityType  string           `json:"entityType"` // shelter, alert, incident
	EntityID    string           `json:"entityId"`
	Link        string           `json:"link"`
}
