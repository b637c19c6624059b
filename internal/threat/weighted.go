package threat

import "github.com/jmerrifield20/rtcmas/internal/telemetry"

// DefaultSeverityWeights weight each normalised severity level.
var DefaultSeverityWeights = map[string]int{
	telemetry.SeverityLow:      1,
	telemetry.SeverityMedium:   2,
	telemetry.SeverityHigh:     3,
	telemetry.SeverityCritical: 4,
}

// DefaultEventWeights weight each known event type. Unlisted types weigh 1.
var DefaultEventWeights = map[string]int{
	"failed_login":         1,
	"phishing":             2,
	"ddos":                 4,
	"data_exfiltration":    4,
	"malware":              3,
	"intrusion":            4,
	"ransomware":           4,
	"credential_stuffing":  3,
	"botnet":               2,
	"firmware_tamper":      3,
	"sql_injection":        2,
	"privilege_escalation": 3,
	"scada_probe":          4,
}

// WeightedScorer is the default Scorer. Both lookup tables fall back to a
// weight of 1 for keys they do not contain.
type WeightedScorer struct {
	severity map[string]int
	events   map[string]int
}

// NewWeightedScorer returns a WeightedScorer loaded with the default tables.
func NewWeightedScorer() *WeightedScorer {
	return NewWeightedScorerWith(DefaultSeverityWeights, DefaultEventWeights)
}

// NewWeightedScorerWith returns a WeightedScorer over custom tables. The maps
// are copied.
func NewWeightedScorerWith(severity, events map[string]int) *WeightedScorer {
	s := &WeightedScorer{
		severity: make(map[string]int, len(severity)),
		events:   make(map[string]int, len(events)),
	}
	for k, v := range severity {
		s.severity[k] = v
	}
	for k, v := range events {
		s.events[k] = v
	}
	return s
}

// Assess implements Scorer.
func (s *WeightedScorer) Assess(e telemetry.Event) Assessment {
	score := weight(s.severity, e.Severity) * weight(s.events, e.EventType)
	return Assessment{
		Event:      e,
		RiskScore:  score,
		ThreatDNA:  threatDNA(e, score),
		Confidence: confidenceLabel(score),
	}
}

func weight(table map[string]int, key string) int {
	if w, ok := table[key]; ok {
		return w
	}
	return 1
}
