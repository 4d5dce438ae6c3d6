package domain

import (
	"strings"
	"time"
)

// ShelterStatus describes the operational condition of a shelter.
type ShelterStatus string

const (
	ShelterOperational ShelterStatus = "operational"
	ShelterAtCapacity  ShelterStatus = "at-capacity"
	ShelterOverflow    ShelterStatus = "overflow"
	ShelterCritical    ShelterStatus = "critical"
)

// MedicalLevel is the level of medical care available at a shelter.
type MedicalLevel string

const (
	MedicalNone     MedicalLevel = "none"
	MedicalBasic    MedicalLevel = "basic"
	MedicalAdvanced MedicalLevel = "advanced"
	MedicalHospital MedicalLevel = "hospital"
)

// Supplies holds stock levels for a shelter. A nil field means the source
// did not report that supply, not that it is empty.
type Supplies struct {
	Water *int `json:"water"` // gallons
	Food  *int `json:"food"`  // meals
	Meds  *int `json:"meds"`  // units
	Fuel  *int `json:"fuel"`  // gallons
}

// ShelterIssue is a problem report scoped to one shelter.
type ShelterIssue struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"` // power, water, medical, capacity, supplies
	Severity    string     `json:"severity"`
	Description string     `json:"description"`
	ReportedAt  time.Time  `json:"reportedAt"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

// Shelter is a normalized shelter record. Every field a source cannot
// supply is nil, never a sentinel zero or false.
type Shelter struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	County        string         `json:"county"`
	City          *string        `json:"city,omitempty"`
	State         *string        `json:"state,omitempty"`
	Zip           *string        `json:"zip,omitempty"`
	Address       *string        `json:"address,omitempty"`
	Lat           float64        `json:"lat"`
	Lon           float64        `json:"lon"`
	CapacityTotal *int           `json:"capacityTotal"`
	CapacityUsed  *int           `json:"capacityUsed"`
	Status        ShelterStatus  `json:"status"`
	SourceStatus  *string        `json:"sourceStatus,omitempty"` // raw status string from the feed
	HasPower      *bool          `json:"hasPower"`
	HasWater      *bool          `json:"hasWater"`
	MedicalLevel  *MedicalLevel  `json:"medicalLevel"`
	LastUpdated   time.Time      `json:"lastUpdated"`
	IntakePerHour []int          `json:"intakePerHour"`
	Supplies      Supplies       `json:"supplies"`
	Issues        []ShelterIssue `json:"issues"`
}

// CapacityPercent returns the occupancy ratio as a percentage, or nil when
// either capacity field is unreported or total is not positive.
func (s Shelter) CapacityPercent() *float64 {
	if s.CapacityTotal == nil || s.CapacityUsed == nil || *s.CapacityTotal <= 0 {
		return nil
	}
	pct := float64(*s.CapacityUsed) / float64(*s.CapacityTotal) * 100
	return &pct
}

// Clone returns a deep copy of the shelter.
func (s Shelter) Clone() Shelter {
	out := s
	out.City = cloneString(s.City)
	out.State = cloneString(s.State)
	out.Zip = cloneString(s.Zip)
	out.Address = cloneString(s.Address)
	out.CapacityTotal = cloneInt(s.CapacityTotal)
	out.CapacityUsed = cloneInt(s.CapacityUsed)
	out.SourceStatus = cloneString(s.SourceStatus)
	out.HasPower = cloneBool(s.HasPower)
	out.HasWater = cloneBool(s.HasWater)
	if s.MedicalLevel != nil {
		lvl := *s.MedicalLevel
		out.MedicalLevel = &lvl
	}
	out.IntakePerHour = append([]int(nil), s.IntakePerHour...)
	out.Supplies = Supplies{
		Water: cloneInt(s.Supplies.Water),
		Food:  cloneInt(s.Supplies.Food),
		Meds:  cloneInt(s.Supplies.Meds),
		Fuel:  cloneInt(s.Supplies.Fuel),
	}
	out.Issues = make([]ShelterIssue, len(s.Issues))
	for i, issue := range s.Issues {
		issue.ResolvedAt = cloneTime(issue.ResolvedAt)
		out.Issues[i] = issue
	}
	return out
}

// DeriveShelterStatus computes a shelter's status from its capacity pair
// and, when the ratio is unavailable or unremarkable, the raw source status
// string. See the package documentation for the threshold table.
func DeriveShelterStatus(capacityUsed, capacityTotal *int, sourceStatus *string) ShelterStatus {
	status := mapSourceStatus(sourceStatus)

	if capacityUsed == nil || capacityTotal == nil || *capacityTotal <= 0 {
		return status
	}

	pct := float64(*capacityUsed) / float64(*capacityTotal) * 100
	switch {
	case pct > 95:
		return ShelterCritical
	case pct > 85:
		return ShelterAtCapacity
	case pct > 70:
		return ShelterOverflow
	default:
		return status
	}
}

func mapSourceStatus(sourceStatus *string) ShelterStatus {
	if sourceStatus == nil {
		return ShelterOperational
	}
	upper := strings.ToUpper(strings.TrimSpace(*sourceStatus))
	switch {
	case upper == "CLOSED":
		return ShelterCritical
	case strings.Contains(upper, "FULL"), strings.Contains(upper, "CAPACITY"):
		return ShelterAtCapacity
	default:
		return ShelterOperational
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
