// Package response holds the automated containment policy: the
// "smart contract" that maps a threat assessment to an action.
package response

import "github.com/jmerrifield20/rtcmas/internal/threat"

// Action is a containment decision.
type Action string

const (
	ActionIsolateSegment  Action = "isolate_network_segment"
	ActionBlockSource     Action = "block_source_and_raise_priority_alert"
	ActionAlertAndMonitor Action = "raise_alert_and_monitor"
	ActionLogOnly         Action = "log_only"
)

// Automated reports whether the action triggers containment beyond logging.
func (a Action) Automated() bool {
	return a != ActionLogOnly
}

func (a Action) String() string { return string(a) }

// Decide returns the containment action for an assessment.
//
//	risk ≥ 16 → isolate_network_segment
//	risk ≥ 12 → block_source_and_raise_priority_alert
//	risk ≥ 6  → raise_alert_and_monitor
//	otherwise → log_only
func Decide(a threat.Assessment) Action {
	switch {
	case a.RiskScore >= 16:
		return ActionIsolateSegment
	case a.RiskScore >= 12:
		return ActionBlockSource
	case a.RiskScore >= 6:
		return ActionAlertAndMonitor
	default:
		return ActionLogOnly
	}
}
