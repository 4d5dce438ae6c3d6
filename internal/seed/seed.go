// Package seed generates the fixed-size sample dataset shown when live
// data mode is off. The generator is deterministic for a given rand source
// so tests and the seedgen CLI can reproduce a dataset from its seed.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/couchcryptid/reliefops/internal/domain"
)

const (
	shelterCount = 10
	alertCount   = 5
)

var counties = []string{
	"Miami-Dade",
	"Broward",
	"Palm Beach",
	"Monroe",
	"Collier",
	"Lee",
	"Hillsborough",
	"Orange",
	"Pinellas",
	"Duval",
}

var shelterNames = []string{
	"Community Center North",
	"High School Gymnasium",
	"Convention Center",
	"Sports Complex",
	"Elementary School",
	"Church Hall",
	"Recreation Center",
	"University Dormitory",
	"Fairgrounds Pavilion",
	"Municipal Building",
}

var medicalLevels = []domain.MedicalLevel{
	domain.MedicalNone,
	domain.MedicalBasic,
	domain.MedicalBasic,
	domain.MedicalAdvanced,
	domain.MedicalHospital,
}

var alertSeverities = []domain.Severity{
	domain.SeverityWarning,
	domain.SeverityError,
	domain.SeverityError,
	domain.SeverityCritical,
}

// Dataset is the generated sample fixture.
type Dataset struct {
	Shelters []domain.Shelter `json:"shelters"`
	Alerts   []domain.Alert   `json:"alerts"`
}

// Generate produces 10 sample shelters and 5 sample alerts referencing
// them. Ids are "sample-shelter-N" / "sample-alert-N"; timestamps fall
// within the few days before now.
func Generate(rng *rand.Rand, now time.Time) Dataset {
	shelters := make([]domain.Shelter, 0, shelterCount)
	for i := range shelterCount {
		shelters = append(shelters, generateShelter(rng, now, i+1))
	}

	alerts := make([]domain.Alert, 0, alertCount)
	for i := range alertCount {
		alerts = append(alerts, generateAlert(rng, now, i+1, shelters))
	}

	return Dataset{Shelters: shelters, Alerts: alerts}
}

func generateShelter(rng *rand.Rand, now time.Time, n int) domain.Shelter {
	capacityTotal := randomInt(rng, 50, 500)
	capacityUsed := randomInt(rng, 0, capacityTotal*9/10)
	hasPower := rng.Float64() > 0.15
	hasWater := rng.Float64() > 0.10
	medical := medicalLevels[rng.Intn(len(medicalLevels))]

	intake := make([]int, 24)
	for h := range intake {
		intake[h] = randomInt(rng, 0, 20)
	}

	water := randomInt(rng, 100, 5000)
	food := randomInt(rng, 200, 10000)
	meds := randomInt(rng, 50, 500)
	fuel := randomInt(rng, 50, 2000)

	return domain.Shelter{
		ID:            fmt.Sprintf("sample-shelter-%d", n),
		Name:          fmt.Sprintf("%s %d", shelterNames[rng.Intn(len(shelterNames))], n),
		County:        counties[rng.Intn(len(counties))],
		Lat:           25.5 + rng.Float64()*2,
		Lon:           -80.3 - rng.Float64()*2,
		CapacityTotal: &capacityTotal,
		CapacityUsed:  &capacityUsed,
		Status:        domain.DeriveShelterStatus(&capacityUsed, &capacityTotal, nil),
		HasPower:      &hasPower,
		HasWater:      &hasWater,
		MedicalLevel:  &medical,
		LastUpdated:   randomRecent(rng, now, 2),
		IntakePerHour: intake,
		Supplies: domain.Supplies{
			Water: &water,
			Food:  &food,
			Meds:  &meds,
			Fuel:  &fuel,
		},
		Issues: []domain.ShelterIssue{},
	}
}

func generateAlert(rng *rand.Rand, now time.Time, n int, shelters []domain.Shelter) domain.Alert {
	shelter := shelters[rng.Intn(len(shelters))]

	pct := 0
	if p := shelter.CapacityPercent(); p != nil {
		pct = int(*p + 0.5)
	}

	return domain.Alert{
		ID:         fmt.Sprintf("sample-alert-%d", n),
		Severity:   alertSeverities[rng.Intn(len(alertSeverities))],
		SourceType: "shelter",
		SourceID:   shelter.ID,
		Title:      fmt.Sprintf("Sample Alert %d: %s at %d%% capacity", n, shelter.Name, pct),
		Signal:     "Sample operational alert",
		Evidence: []string{
			fmt.Sprintf("Current capacity: %d/%d", *shelter.CapacityUsed, *shelter.CapacityTotal),
			fmt.Sprintf("Status: %s", shelter.Status),
		},
		Impact:           "This is sample data for demonstration purposes",
		SuggestedActions: []string{"Review shelter status", "Check capacity"},
		CreatedAt:        randomRecent(rng, now, 3),
	}
}

// randomInt returns a value in [min, max].
func randomInt(rng *rand.Rand, min, max int) int {
	return min + rng.Intn(max-min+1)
}

// randomRecent returns a timestamp up to maxDaysAgo days before now with a
// random time of day.
func randomRecent(rng *rand.Rand, now time.Time, maxDaysAgo int) time.Time {
	day := now.AddDate(0, 0, -randomInt(rng, 0, maxDaysAgo))
	return time.Date(day.Year(), day.Month(), day.Day(),
		randomInt(rng, 0, 23), randomInt(rng, 0, 59), randomInt(rng, 0, 59), 0, day.Location())
}
