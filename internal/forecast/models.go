package forecast

import (
	"strings"
	"time"
)

// ZoneID identifies one of the fixed geographic forecast zones. The known set
// is supplied by configuration at startup and never discovered at runtime.
type ZoneID string

// DisplayName renders a zone slug as a human-readable name,
// e.g. "stevens-pass" -> "Stevens Pass".
func (z ZoneID) DisplayName() string {
	parts := strings.Split(string(z), "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// DangerLevel is the normalized ordinal avalanche danger scale.
type DangerLevel int

const (
	DangerUnknown DangerLevel = iota
	DangerLow
	DangerModerate
	DangerConsiderable
	DangerHigh
	DangerExtreme
)

var dangerLabels = map[DangerLevel]string{
	DangerUnknown:      "Unknown",
	DangerLow:          "Low",
	DangerModerate:     "Moderate",
	DangerConsiderable: "Considerable",
	DangerHigh:         "High",
	DangerExtreme:      "Extreme",
}

func (d DangerLevel) String() string {
	if label, ok := dangerLabels[d]; ok {
		return label
	}
	return "Unknown"
}

// ParseDangerLevel maps the source's textual danger vocabulary onto the
// ordinal scale. The match is case-insensitive.
func ParseDangerLevel(s string) (DangerLevel, bool) {
	for level, label := range dangerLabels {
		if level == DangerUnknown {
			continue
		}
		if strings.EqualFold(s, label) {
			return level, true
		}
	}
	return DangerUnknown, false
}

// ElevationBand is one of the three elevation bands the source rates
// independently.
type ElevationBand string

const (
	AboveTreeline ElevationBand = "above-treeline"
	NearTreeline  ElevationBand = "near-treeline"
	BelowTreeline ElevationBand = "below-treeline"
)

// Bands returns the elevation bands in top-down order. Every Record carries a
// rating for each of them.
func Bands() []ElevationBand {
	return []ElevationBand{AboveTreeline, NearTreeline, BelowTreeline}
}

// Record is the structured result of one successful scrape for one zone.
// A Record is all-or-nothing: every band rating and the summary are present,
// or the scrape failed. Records are never mutated after construction; a new
// scrape produces a new Record.
type Record struct {
	Zone    ZoneID                        `json:"zone"`
	Ratings map[ElevationBand]DangerLevel `json:"ratings"`

	// Summary is the narrative "bottom line" with source boilerplate stripped.
	Summary string `json:"summary"`

	// IssuedAt is the source's own publication timestamp. Zero when the
	// source timestamp could not be recovered from the page.
	IssuedAt time.Time `json:"issuedAt"`

	// FetchedAt is the wall-clock time the scrape completed.
	FetchedAt time.Time `json:"fetchedAt"`
}
