// Package telemetry loads edge security telemetry and normalises it into
// events the threat scorer can consume.
package telemetry

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Event is one normalised telemetry record.
type Event struct {
	Timestamp   string `json:"timestamp"`
	Source      string `json:"source"`
	IPAddress   string `json:"ip_address"`
	EventType   string `json:"event_type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Region      string `json:"region"`
}

// Severity levels accepted by Normalize. Anything else is downgraded to low.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var validSeverities = map[string]bool{
	SeverityLow:      true,
	SeverityMedium:   true,
	SeverityHigh:     true,
	SeverityCritical: true,
}

// Normalize trims every field and applies the collector's defaults:
// severity, source and event type are lower-cased, unknown severities become
// "low", and the region is title-cased. Empty fields get their defaults.
// Invalid UTF-8 sequences are replaced with U+FFFD. Safe for concurrent use.
func Normalize(e Event) Event {
	// A cases.Caser keeps state between calls and must not be shared.
	titleCaser := cases.Title(language.Und)

	severity := strings.ToLower(orDefault(e.Severity, SeverityLow))
	if !validSeverities[severity] {
		severity = SeverityLow
	}

	return Event{
		Timestamp:   strings.TrimSpace(validUTF8(e.Timestamp)),
		Source:      strings.ToLower(orDefault(e.Source, "unknown")),
		IPAddress:   orDefault(e.IPAddress, "0.0.0.0"),
		EventType:   strings.ToLower(orDefault(e.EventType, "unknown")),
		Severity:    severity,
		Description: strings.TrimSpace(validUTF8(e.Description)),
		Region:      titleCaser.String(orDefault(e.Region, "unknown")),
	}
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(validUTF8(v))
	if v == "" {
		return def
	}
	return v
}

func validUTF8(v string) string {
	return strings.ToValidUTF8(v, "\uFFFD")
}
