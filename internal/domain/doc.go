// Package domain models disaster-relief operations data: shelters, weather
// alerts, response incidents, and the bounded activity feed.
//
// # Data Sources
//
// Shelters come from the FEMA National Shelter System open-shelters layer
// (gis.fema.gov ArcGIS, GeoJSON). Alerts come from the National Weather
// Service active-alerts API (api.weather.gov). Both sources are treated as
// untrusted collaborators: adapter packages normalize their records into the
// canonical shapes defined here, and any field a source cannot supply is a
// nil pointer, never a zero or false sentinel, so consumers can tell
// "zero" from "not reported".
//
// # Shelter Status Derivation
//
// When both capacity fields are reported and total is positive, status is a
// pure function of the occupancy ratio:
//
//	>95%  critical
//	>85%  at-capacity
//	>70%  overflow
//
// When the ratio is unavailable or at or below 70%, the raw source status
// string decides: CLOSED maps to critical, anything containing FULL or
// CAPACITY maps to at-capacity, OPEN (and everything else) to operational.
// See [DeriveShelterStatus].
//
// # Alert Severity
//
// NWS severity labels map to the four-level triage scale via a fixed table
// (Extreme→critical, Severe→error, Moderate→warning, Minor→info) with an
// "unrecognized → info" fallback. Triage order is critical < error <
// warning < info; see [Severity.Rank].
//
// # ID Conventions
//
// Alert and shelter ids carry a source prefix ("nws-", "fema-", "sample-")
// so merged views stay globally unique and live records can be told apart
// from fixture data. Workflow entities (incidents, notes, audit entries,
// change events) use random UUIDs; see [NewID].
package domain
