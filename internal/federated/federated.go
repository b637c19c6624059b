// Package federated builds privacy-preserving per-source summaries at the
// edge and aggregates them into a national overview, so raw events never
// leave the node that observed them.
package federated

import (
	"math"
	"sort"

	"github.com/jmerrifield20/rtcmas/internal/threat"
)

// SourceSummary is what a node shares about one telemetry source.
type SourceSummary struct {
	Count   int     `json:"count"`
	AvgRisk float64 `json:"avg_risk"`
	MaxRisk int     `json:"max_risk"`
}

// LocalUpdate maps source name to its summary.
type LocalUpdate map[string]SourceSummary

// NationalSummary is the aggregate across every participating source.
type NationalSummary struct {
	Participants    int     `json:"participants"`
	TotalEvents     int     `json:"total_events"`
	NationalAvgRisk float64 `json:"national_avg_risk"`
	MaxRisk         int     `json:"max_risk"`
}

// BuildLocalUpdate groups assessments by event source.
func BuildLocalUpdate(assessments []threat.Assessment) LocalUpdate {
	type acc struct {
		count, sum, max int
	}
	grouped := make(map[string]*acc)
	for _, a := range assessments {
		g, ok := grouped[a.Event.Source]
		if !ok {
			g = &acc{max: a.RiskScore}
			grouped[a.Event.Source] = g
		}
		g.count++
		g.sum += a.RiskScore
		if a.RiskScore > g.max {
			g.max = a.RiskScore
		}
	}

	update := make(LocalUpdate, len(grouped))
	for source, g := range grouped {
		update[source] = SourceSummary{
			Count:   g.count,
			AvgRisk: round2(float64(g.sum) / float64(g.count)),
			MaxRisk: g.max,
		}
	}
	return update
}

// Aggregate merges node updates. Each source in each update counts as one
// participant; the national average is weighted by event count.
func Aggregate(updates []LocalUpdate) NationalSummary {
	var (
		out      NationalSummary
		weighted float64
	)
	for _, node := range updates {
		sources := make([]string, 0, len(node))
		for s := range node {
			sources = append(sources, s)
		}
		sort.Strings(sources)

		for _, s := range sources {
			summary := node[s]
			out.Participants++
			out.TotalEvents += summary.Count
			weighted += summary.AvgRisk * float64(summary.Count)
			if summary.MaxRisk > out.MaxRisk {
				out.MaxRisk = summary.MaxRisk
			}
		}
	}
	if out.TotalEvents > 0 {
		out.NationalAvgRisk = round2(weighted / float64(out.TotalEvents))
	}
	return out
}

// round2 rounds to two decimals with ties to even, so 2.125 becomes 2.12.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
