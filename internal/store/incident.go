package store

import (
	"fmt"

	"github.com/couchcryptid/reliefops/internal/domain"
)

// Audit action names recorded by the incident workflow.
const (
	actionIncidentCreated = "incident_created"
	actionIncidentAssign  = "incident_assigned"
	actionNoteAdded       = "note_added"
	actionRunbookUpdated  = "runbook_step_updated"
	actionIncidentClosed  = "incident_closed"
)

// Incidents returns a deep copy of the incident collection, newest first.
func (s *Store) Incidents() []domain.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Incident, len(s.incidents))
	for i, inc := range s.incidents {
		out[i] = inc.Clone()
	}
	return out
}

// Incident returns a deep copy of one incident by id.
func (s *Store) Incident(id string) (domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inc := range s.incidents {
		if inc.ID == id {
			return inc.Clone(), nil
		}
	}
	return domain.Incident{}, fmt.Errorf("incident %q: %w", id, domain.ErrNotFound)
}

// CreateIncidentFromAlert creates an incident tracking the given alert and
// returns its id. The alert is looked up across both the live and sample
// collections; this lookup is the only place the two alert sources are
// combined. If an incident already references the alert, its id is
// returned unchanged; at most one incident exists per alert.
func (s *Store) CreateIncidentFromAlert(alertID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inc := range s.incidents {
		if inc.SourceAlertID != nil && *inc.SourceAlertID == alertID {
			return inc.ID, nil
		}
	}

	alert, ok := s.findAlertLocked(alertID)
	if !ok {
		return "", fmt.Errorf("alert %q: %w", alertID, domain.ErrNotFound)
	}

	now := s.clock.Now()
	sourceID := alert.ID
	inc := domain.Incident{
		ID:            domain.NewID(),
		Title:         fmt.Sprintf("Weather Incident: %s (%s)", alert.Title, s.region),
		Severity:      domain.IncidentSeverityFromAlert(alert.Severity),
		Status:        domain.IncidentOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
		SourceAlertID: &sourceID,
		Notes:         []domain.Note{},
		AuditTrail: []domain.AuditEntry{{
			ID:        domain.NewID(),
			Timestamp: now,
			Actor:     "system",
			Action:    actionIncidentCreated,
			Details:   fmt.Sprintf("Created from alert %s", alert.ID),
		}},
		Runbook: domain.DefaultRunbook(),
	}

	s.incidents = append([]domain.Incident{inc}, s.incidents...)
	s.countIncidentAction(actionIncidentCreated)
	s.updateIncidentGaugesLocked()
	s.logger.Info("incident created", "incident", inc.ID, "alert", alert.ID, "severity", inc.Severity)

	s.recordEventLocked(domain.ChangeEvent{
		Kind:        domain.EventIncidentCreated,
		Severity:    inc.Severity,
		Title:       "Incident created",
		Description: inc.Title,
		EntityType:  "incident",
		EntityID:    inc.ID,
		Link:        "/incidents/" + inc.ID,
	})
	return inc.ID, nil
}

// AssignIncident sets the incident's assignee. An open incident moves to
// investigating; any other status is left unchanged.
func (s *Store) AssignIncident(id, assignee string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateIncidentLocked(id, func(inc *domain.Incident) {
		inc.AssignedTo = &assignee
		if inc.Status == domain.IncidentOpen {
			inc.Status = domain.IncidentInvestigating
		}
		s.appendAuditLocked(inc, assignee, actionIncidentAssign, "Assigned to "+assignee)
		s.countIncidentAction(actionIncidentAssign)

		s.recordEventLocked(domain.ChangeEvent{
			Kind:        domain.EventIncidentAssigned,
			Severity:    inc.Severity,
			Title:       "Incident assigned",
			Description: fmt.Sprintf("%s assigned to %s", inc.Title, assignee),
			EntityType:  "incident",
			EntityID:    inc.ID,
			Link:        "/incidents/" + inc.ID,
		})
	})
}

// AddNote appends an operator note. Author defaults to "operator" when
// empty. Status is unchanged.
func (s *Store) AddNote(id, author, text string) error {
	if author == "" {
		author = "operator"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateIncidentLocked(id, func(inc *domain.Incident) {
		inc.Notes = append(inc.Notes, domain.Note{
			ID:        domain.NewID(),
			Timestamp: s.clock.Now(),
			Author:    author,
			Text:      text,
		})
		s.appendAuditLocked(inc, author, actionNoteAdded, "")
		s.countIncidentAction(actionNoteAdded)

		s.recordEventLocked(domain.ChangeEvent{
			Kind:        domain.EventNoteAdded,
			Severity:    domain.IncidentLow,
			Title:       "Note added",
			Description: fmt.Sprintf("%s noted on %s", author, inc.Title),
			EntityType:  "incident",
			EntityID:    inc.ID,
			Link:        "/incidents/" + inc.ID,
		})
	})
}

// UpdateRunbookStep sets one runbook step's completion status. Incident
// status is unchanged. Returns ErrNotFound when the incident or step does
// not exist and an error for an undefined status; neither failure appends
// an audit entry.
func (s *Store) UpdateRunbookStep(id, stepID string, status domain.RunbookStatus) error {
	if !domain.ValidRunbookStatus(status) {
		return fmt.Errorf("invalid runbook step status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfIncidentLocked(id)
	if idx < 0 {
		return fmt.Errorf("incident %q: %w", id, domain.ErrNotFound)
	}
	stepIdx := -1
	for i, step := range s.incidents[idx].Runbook {
		if step.ID == stepID {
			stepIdx = i
			break
		}
	}
	if stepIdx < 0 {
		return fmt.Errorf("runbook step %q: %w", stepID, domain.ErrNotFound)
	}

	inc := s.incidents[idx].Clone()
	inc.Runbook[stepIdx].Status = status
	s.appendAuditLocked(&inc, "operator", actionRunbookUpdated,
		fmt.Sprintf("%s → %s", inc.Runbook[stepIdx].Title, status))
	s.replaceIncidentLocked(idx, inc)
	s.countIncidentAction(actionRunbookUpdated)
	return nil
}

// CloseIncident forces the incident to closed regardless of prior state.
// Closing an already-closed incident leaves it closed but still appends an
// audit entry.
func (s *Store) CloseIncident(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateIncidentLocked(id, func(inc *domain.Incident) {
		inc.Status = domain.IncidentClosed
		s.appendAuditLocked(inc, "operator", actionIncidentClosed, "")
		s.countIncidentAction(actionIncidentClosed)

		s.recordEventLocked(domain.ChangeEvent{
			Kind:        domain.EventIncidentClosed,
			Severity:    inc.Severity,
			Title:       "Incident closed",
			Description: inc.Title,
			EntityType:  "incident",
			EntityID:    inc.ID,
			Link:        "/incidents/" + inc.ID,
		})
	})
}

// mutateIncidentLocked applies fn to a deep copy of the incident and swaps
// the copy into the collection, so an update to one incident never
// observably touches another. Caller holds the lock.
func (s *Store) mutateIncidentLocked(id string, fn func(*domain.Incident)) error {
	idx := s.indexOfIncidentLocked(id)
	if idx < 0 {
		return fmt.Errorf("incident %q: %w", id, domain.ErrNotFound)
	}
	inc := s.incidents[idx].Clone()
	fn(&inc)
	s.replaceIncidentLocked(idx, inc)
	return nil
}

func (s *Store) replaceIncidentLocked(idx int, inc domain.Incident) {
	inc.UpdatedAt = s.clock.Now()
	next := make([]domain.Incident, len(s.incidents))
	copy(next, s.incidents)
	next[idx] = inc
	s.incidents = next
	s.updateIncidentGaugesLocked()
}

func (s *Store) indexOfIncidentLocked(id string) int {
	for i, inc := range s.incidents {
		if inc.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) appendAuditLocked(inc *domain.Incident, actor, action, details string) {
	inc.AuditTrail = append(inc.AuditTrail, domain.AuditEntry{
		ID:        domain.NewID(),
		Timestamp: s.clock.Now(),
		Actor:     actor,
		Action:    action,
		Details:   details,
	})
}

// findAlertLocked searches live alerts first, then the sample fixture.
func (s *Store) findAlertLocked(id string) (domain.Alert, bool) {
	for _, a := range s.liveAlerts {
		if a.ID == id {
			return a, true
		}
	}
	for _, a := range s.sampleAlerts {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Alert{}, false
}

func (s *Store) countIncidentAction(action string) {
	if s.metrics != nil {
		s.metrics.IncidentActions.WithLabelValues(action).Inc()
	}
}

func (s *Store) updateIncidentGaugesLocked() {
	if s.metrics == nil {
		return
	}
	open := 0
	for _, inc := range s.incidents {
		if inc.Status != domain.IncidentClosed {
			open++
		}
	}
	s.metrics.IncidentsOpen.Set(float64(open))
}
