// Package twin is the predictive cyber twin: a lightweight projection of the
// next 24 hours of threat activity from what has been observed so far.
package twin

import (
	"math"
	"sort"

	"github.com/jmerrifield20/rtcmas/internal/threat"
)

// Projection is the expected number of events of one type in the next 24h.
type Projection struct {
	EventType string  `json:"event_type"`
	Observed  int     `json:"observed"`
	AvgRisk   float64 `json:"avg_risk"`
	Growth    float64 `json:"growth"`
	Expected  int     `json:"expected"`
}

// growthFactor uses average observed risk as the trend proxy.
func growthFactor(avgRisk float64) float64 {
	switch {
	case avgRisk >= 12:
		return 1.35
	case avgRisk >= 6:
		return 1.15
	default:
		return 1.05
	}
}

// Project groups assessments by event type and scales each count by its
// growth factor, rounding half to even. Results are ordered by Expected
// descending, then EventType ascending.
func Project(assessments []threat.Assessment) []Projection {
	type acc struct {
		count, sum int
	}
	byType := make(map[string]*acc)
	for _, a := range assessments {
		g, ok := byType[a.Event.EventType]
		if !ok {
			g = &acc{}
			byType[a.Event.EventType] = g
		}
		g.count++
		g.sum += a.RiskScore
	}

	out := make([]Projection, 0, len(byType))
	for eventType, g := range byType {
		avg := float64(g.sum) / float64(g.count)
		growth := growthFactor(avg)
		out = append(out, Projection{
			EventType: eventType,
			Observed:  g.count,
			AvgRisk:   math.Round(avg*100) / 100,
			Growth:    growth,
			Expected:  int(math.RoundToEven(float64(g.count) * growth)),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Expected != out[j].Expected {
			return out[i].Expected > out[j].Expected
		}
		return out[i].EventType < out[j].EventType
	})
	return out
}
