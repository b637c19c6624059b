// Package threat scores normalised telemetry events. The score is a lookup
// of severity weight times event-type weight; the resulting assessment also
// carries a confidence label and a "threat DNA" fingerprint used to correlate
// repeat activity.
package threat

import (
	"fmt"

	"github.com/jmerrifield20/rtcmas/internal/telemetry"
)

// Assessment is the scorer's verdict for a single event.
type Assessment struct {
	Event telemetry.Event `json:"event"`

	// RiskScore is severity weight × event weight (1–16 with the default tables).
	RiskScore int `json:"risk_score"`

	// ThreatDNA is "event_type:source:region:risk_score".
	ThreatDNA string `json:"threat_dna"`

	// Confidence is derived from RiskScore:
	//   0–5   → "low"
	//   6–11  → "medium"
	//   12+   → "high"
	Confidence string `json:"confidence"`
}

// Scorer turns a telemetry event into an Assessment.
type Scorer interface {
	Assess(e telemetry.Event) Assessment
}

// AssessAll runs s over events, preserving order.
func AssessAll(s Scorer, events []telemetry.Event) []Assessment {
	out := make([]Assessment, 0, len(events))
	for _, e := range events {
		out = append(out, s.Assess(e))
	}
	return out
}

// confidenceLabel maps a risk score to a confidence string.
func confidenceLabel(score int) string {
	switch {
	case score >= 12:
		return "high"
	case score >= 6:
		return "medium"
	default:
		return "low"
	}
}

func threatDNA(e telemetry.Event, score int) string {
	return fmt.Sprintf("%s:%s:%s:%d", e.EventType, e.Source, e.Region, score)
}
