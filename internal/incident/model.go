// Package incident persists scored incidents for the dashboard. The store is
// a read model: it is rebuilt from telemetry on every run, while the
// tamper-evident record of each decision lives in the ledger.
package incident

import "errors"

// ErrNotFound is returned when an incident does not exist.
var ErrNotFound = errors.New("incident not found")

// HighRiskThreshold is the risk score from which an incident counts as high risk.
const HighRiskThreshold = 12

// Incident is one scored telemetry event together with its containment
// decision and the ledger block that records it.
type Incident struct {
	ID            int64  `json:"id"`
	Timestamp     string `json:"timestamp"`
	Source        string `json:"source"`
	Region        string `json:"region"`
	EventType     string `json:"event_type"`
	Severity      string `json:"severity"`
	RiskScore     int    `json:"risk_score"`
	Confidence    string `json:"confidence"`
	ThreatDNA     string `json:"threat_dna"`
	Action        string `json:"action"`
	CorrelationID string `json:"correlation_id"`
	LedgerIndex   int    `json:"ledger_index"`
	BlockHash     string `json:"block_hash"`
}

// Count is one row of a grouped count (by severity or by region).
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Metrics are the headline numbers shown on the dashboard.
type Metrics struct {
	TotalIncidents    int `json:"total_incidents"`
	HighRiskIncidents int `json:"high_risk_incidents"`
	AutoContainment   int `json:"auto_containment"`
	UniqueSources     int `json:"unique_sources"`
}

// Summarize computes dashboard metrics over incidents.
func Summarize(incidents []Incident) Metrics {
	m := Metrics{TotalIncidents: len(incidents)}
	sources := make(map[string]struct{})
	for _, inc := range incidents {
		if inc.RiskScore >= HighRiskThreshold {
			m.HighRiskIncidents++
		}
		if inc.Action != "log_only" {
			m.AutoContainment++
		}
		sources[inc.Source] = struct{}{}
	}
	m.UniqueSources = len(sources)
	return m
}
