package domain

import (
	"sort"
	"time"
)

// Severity is the triage level of an alert. The triage order is
// critical < error < warning < info (critical sorts first).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// severityRank fixes the total triage order. Lower ranks sort first.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityError:    1,
	SeverityWarning:  2,
	SeverityInfo:     3,
}

// Rank returns the position of s in the triage order. Unknown severities
// rank after info.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// Valid reports whether s is one of the four defined severities.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// nwsSeverityMap translates NWS severity labels to the triage scale.
var nwsSeverityMap = map[string]Severity{
	"Extreme":  SeverityCritical,
	"Severe":   SeverityError,
	"Moderate": SeverityWarning,
	"Minor":    SeverityInfo,
	"Unknown":  SeverityInfo,
}

// MapNWSSeverity converts an NWS severity label to a Severity. Absent or
// unrecognized labels degrade to info rather than failing the record.
func MapNWSSeverity(label string) Severity {
	if s, ok := nwsSeverityMap[label]; ok {
		return s
	}
	return SeverityInfo
}

// Alert is a normalized weather or operational alert from any source.
// Pointer timestamp fields are nil until the corresponding lifecycle
// transition happens.
type Alert struct {
	ID               string     `json:"id"`
	Severity         Severity   `json:"severity"`
	SourceType       string     `json:"sourceType"`
	SourceID         string     `json:"sourceId"`
	Title            string     `json:"title"`
	Signal           string     `json:"signal"`
	Evidence         []string   `json:"evidence"`
	Impact           string     `json:"impact"`
	SuggestedActions []string   `json:"suggestedActions"`
	CreatedAt        time.Time  `json:"createdAt"`
	AcknowledgedAt   *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
	SnoozedUntil     *time.Time `json:"snoozedUntil,omitempty"`
}

// Clone returns a deep copy of the alert.
func (a Alert) Clone() Alert {
	out := a
	out.Evidence = append([]string(nil), a.Evidence...)
	out.SuggestedActions = append([]string(nil), a.SuggestedActions...)
	out.AcknowledgedAt = cloneTime(a.AcknowledgedAt)
	out.ResolvedAt = cloneTime(a.ResolvedAt)
	out.SnoozedUntil = cloneTime(a.SnoozedUntil)
	return out
}

// SortAlerts orders alerts by triage severity, then by CreatedAt descending.
// The sort is stable so equal elements keep their relative feed order.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
		}
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
}

// evidenceLimit caps how much of a source description is quoted as evidence.
const evidenceLimit = 200

// TruncateEvidence shortens a source narrative to at most 200 characters,
// appending an ellipsis when cut.
func TruncateEvidence(s string) string {
	if len(s) <= evidenceLimit {
		return s
	}
	return s[:evidenceLimit] + "..."
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
