package domain

import "time"

// IncidentSeverity is the workflow severity scale. It is distinct from the
// alert triage scale and derived from it at incident creation.
type IncidentSeverity string

const (
	IncidentLow      IncidentSeverity = "low"
	IncidentMedium   IncidentSeverity = "medium"
	IncidentHigh     IncidentSeverity = "high"
	IncidentCritical IncidentSeverity = "critical"
)

// IncidentSeverityFromAlert applies the fixed alert→incident severity map:
// critical→critical, error→high, warning→medium, info→low.
func IncidentSeverityFromAlert(s Severity) IncidentSeverity {
	switch s {
	case SeverityCritical:
		return IncidentCritical
	case SeverityError:
		return IncidentHigh
	case SeverityWarning:
		return IncidentMedium
	default:
		return IncidentLow
	}
}

// IncidentStatus is the workflow state machine. Incidents start open,
// move to investigating on first assignment, and close terminally.
type IncidentStatus string

const (
	IncidentOpen          IncidentStatus = "open"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentResolved      IncidentStatus = "resolved"
	IncidentClosed        IncidentStatus = "closed"
)

// Note is one append-only operator note on an incident.
type Note struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
}

// AuditEntry is an immutable record of one action taken against an
// incident. Every state-changing incident action appends exactly one.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
}

// RunbookStatus is the completion state of one runbook step.
type RunbookStatus string

const (
	RunbookTodo  RunbookStatus = "todo"
	RunbookDoing RunbookStatus = "doing"
	RunbookDone  RunbookStatus = "done"
)

// ValidRunbookStatus reports whether s is a defined runbook step status.
func ValidRunbookStatus(s RunbookStatus) bool {
	return s == RunbookTodo || s == RunbookDoing || s == RunbookDone
}

// RunbookStep is one checklist step in an incident's response runbook.
type RunbookStep struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Status RunbookStatus `json:"status"`
}

// DefaultRunbook returns the standard five-step response checklist attached
// to every new incident, all steps todo.
func DefaultRunbook() []RunbookStep {
	titles := []string{
		"Verify alert scope & counties",
		"Notify shelter coordinators in affected areas",
		"Review open shelters list for affected counties",
		"Prepare overflow site plan",
		"Post update & next check-in time",
	}
	steps := make([]RunbookStep, len(titles))
	for i, title := range titles {
		steps[i] = RunbookStep{ID: NewID(), Title: title, Status: RunbookTodo}
	}
	return steps
}

// Incident is one tracked response workflow. SourceAlertID back-references
// the alert that spawned it and is unique across the incident collection.
type Incident struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Severity      IncidentSeverity `json:"severity"`
	Status        IncidentStatus   `json:"status"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	AssignedTo    *string          `json:"assignedTo"`
	SourceAlertID *string          `json:"sourceAlertId"`
	Notes         []Note           `json:"notes"`
	AuditTrail    []AuditEntry     `json:"auditTrail"`
	Runbook       []RunbookStep    `json:"runbook"`
}

// Clone returns a deep copy of the incident so snapshots and copy-on-write
// updates never share backing storage with stored state.
func (i Incident) Clone() Incident {
	out := i
	out.AssignedTo = cloneString(i.AssignedTo)
	out.SourceAlertID = cloneString(i.SourceAlertID)
	out.Notes = append([]Note(nil), i.Notes...)
	out.AuditTrail = append([]AuditEntry(nil), i.AuditTrail...)
	out.Runbook = append([]RunbookStep(nil), i.Runbook...)
	return out
}
