// Package pipeline wires telemetry through scoring, containment, the
// incident ledger and the incident store.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/rtcmas/internal/alert"
	"github.com/jmerrifield20/rtcmas/internal/federated"
	"github.com/jmerrifield20/rtcmas/internal/incident"
	"github.com/jmerrifield20/rtcmas/internal/ledger"
	"github.com/jmerrifield20/rtcmas/internal/response"
	"github.com/jmerrifield20/rtcmas/internal/telemetry"
	"github.com/jmerrifield20/rtcmas/internal/threat"
	"github.com/jmerrifield20/rtcmas/internal/twin"
)

// incidentPayload is the ledger record for one containment decision.
type incidentPayload struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	EventType string `json:"event_type"`
	RiskScore int    `json:"risk_score"`
	ThreatDNA string `json:"threat_dna"`
	Action    string `json:"action"`
}

// Summary describes the state of the pipeline after a seed.
type Summary struct {
	Records         int                       `json:"records"`
	LedgerValid     bool                      `json:"ledger_valid"`
	LedgerLength    int                       `json:"ledger_length"`
	LedgerRoot      string                    `json:"ledger_root"`
	NationalSummary federated.NationalSummary `json:"national_summary"`
	Projection      []twin.Projection         `json:"projection"`
}

// Dashboard is the data behind the dashboard page and /api/incidents.
type Dashboard struct {
	Incidents  []incident.Incident `json:"incidents"`
	Metrics    incident.Metrics    `json:"metrics"`
	BySeverity []incident.Count    `json:"by_severity"`
	ByRegion   []incident.Count    `json:"by_region"`
}

// IncidentDetail is one stored incident next to the ledger block that
// records it. Anchored reports whether the block still matches the incident.
type IncidentDetail struct {
	Incident incident.Incident `json:"incident"`
	Block    ledger.Block      `json:"block"`
	Anchored bool              `json:"anchored"`
}

// MetricsRecorder is an optional callback invoked for every processed event.
type MetricsRecorder func(action response.Action, riskScore int)

// Service processes telemetry. The ledger lives as long as the Service;
// the store may outlive it.
type Service struct {
	// mu serialises ingestion so ledger order and store order agree.
	mu          sync.Mutex
	ledger      *ledger.IncidentLedger
	repo        incident.Repository
	scorer      threat.Scorer
	alerts      *alert.Dispatcher
	assessments []threat.Assessment
	onMetrics   MetricsRecorder
	logger      *zap.Logger
}

// NewService creates a Service. A nil scorer uses threat.NewWeightedScorer.
func NewService(l *ledger.IncidentLedger, repo incident.Repository, scorer threat.Scorer, logger *zap.Logger) *Service {
	if scorer == nil {
		scorer = threat.NewWeightedScorer()
	}
	return &Service{
		ledger: l,
		repo:   repo,
		scorer: scorer,
		logger: logger,
	}
}

// SetDispatcher configures where automated containment alerts are sent.
func (s *Service) SetDispatcher(d *alert.Dispatcher) {
	s.alerts = d
}

// SetMetricsRecorder configures the metrics callback.
func (s *Service) SetMetricsRecorder(fn MetricsRecorder) {
	s.onMetrics = fn
}

// Ledger returns the incident ledger.
func (s *Service) Ledger() *ledger.IncidentLedger {
	return s.ledger
}

// Seed processes events in order. With reset, previously stored incidents
// are deleted first; the ledger is never truncated.
func (s *Service) Seed(ctx context.Context, events []telemetry.Event, reset bool) (Summary, error) {
	s.mu.Lock()
	if reset {
		if err := s.repo.Reset(ctx); err != nil {
			s.mu.Unlock()
			return Summary{}, fmt.Errorf("reset incident store: %w", err)
		}
		s.assessments = nil
	}
	for i, e := range events {
		if _, err := s.ingestLocked(ctx, e); err != nil {
			s.mu.Unlock()
			return Summary{}, fmt.Errorf("seed event %d: %w", i, err)
		}
	}
	s.mu.Unlock()

	summary := s.Summary()
	summary.Records = len(events)

	s.logger.Info("pipeline seeded",
		zap.Int("records", summary.Records),
		zap.Int("ledger_length", summary.LedgerLength),
		zap.Bool("ledger_valid", summary.LedgerValid),
	)
	return summary, nil
}

// Ingest processes a single event and returns the stored incident.
func (s *Service) Ingest(ctx context.Context, e telemetry.Event) (*incident.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestLocked(ctx, e)
}

func (s *Service) ingestLocked(ctx context.Context, e telemetry.Event) (*incident.Incident, error) {
	a := s.scorer.Assess(telemetry.Normalize(e))
	action := response.Decide(a)

	block, err := s.ledger.Append(incidentPayload{
		Timestamp: a.Event.Timestamp,
		Source:    a.Event.Source,
		EventType: a.Event.EventType,
		RiskScore: a.RiskScore,
		ThreatDNA: a.ThreatDNA,
		Action:    action.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("record incident in ledger: %w", err)
	}

	inc := &incident.Incident{
		Timestamp:     a.Event.Timestamp,
		Source:        a.Event.Source,
		Region:        a.Event.Region,
		EventType:     a.Event.EventType,
		Severity:      a.Event.Severity,
		RiskScore:     a.RiskScore,
		Confidence:    a.Confidence,
		ThreatDNA:     a.ThreatDNA,
		Action:        action.String(),
		CorrelationID: uuid.NewString(),
		LedgerIndex:   block.Index,
		BlockHash:     block.BlockHash,
	}
	// The block is already appended; a failed insert leaves it in the ledger
	// with no stored incident.
	if err := s.repo.Insert(ctx, inc); err != nil {
		return nil, fmt.Errorf("store incident: %w", err)
	}
	s.assessments = append(s.assessments, a)

	if s.onMetrics != nil {
		s.onMetrics(action, a.RiskScore)
	}
	if action.Automated() {
		s.logger.Info("automated containment",
			zap.String("action", action.String()),
			zap.String("source", inc.Source),
			zap.String("event_type", inc.EventType),
			zap.Int("risk_score", inc.RiskScore),
			zap.Int("ledger_index", inc.LedgerIndex),
		)
		s.alerts.Dispatch(alert.Alert{
			CorrelationID: inc.CorrelationID,
			EventType:     inc.EventType,
			Source:        inc.Source,
			Region:        inc.Region,
			RiskScore:     inc.RiskScore,
			Action:        inc.Action,
			LedgerIndex:   inc.LedgerIndex,
			BlockHash:     inc.BlockHash,
		})
	}
	return inc, nil
}

// Summary reports ledger state and the federated and projected views over
// every event processed since the last reset.
func (s *Service) Summary() Summary {
	s.mu.Lock()
	assessments := append([]threat.Assessment(nil), s.assessments...)
	s.mu.Unlock()

	head := s.ledger.Head()
	return Summary{
		Records:         len(assessments),
		LedgerValid:     s.ledger.Verify(),
		LedgerLength:    head.Index + 1,
		LedgerRoot:      head.BlockHash,
		NationalSummary: federated.Aggregate([]federated.LocalUpdate{federated.BuildLocalUpdate(assessments)}),
		Projection:      twin.Project(assessments),
	}
}

// Projection returns the next-24h threat projection.
func (s *Service) Projection() []twin.Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return twin.Project(s.assessments)
}

// Incident loads one stored incident and the ledger block it points at.
// It returns incident.ErrNotFound for an unknown id.
func (s *Service) Incident(ctx context.Context, id int64) (IncidentDetail, error) {
	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return IncidentDetail{}, err
	}
	detail := IncidentDetail{Incident: *inc}

	block, err := s.ledger.Get(inc.LedgerIndex)
	if err != nil {
		// The ledger was rebuilt since the incident was stored.
		return detail, nil
	}
	detail.Block = block

	var p incidentPayload
	if err := block.Decode(&p); err != nil {
		return detail, nil
	}
	detail.Anchored = block.BlockHash == inc.BlockHash && p == incidentPayload{
		Timestamp: inc.Timestamp,
		Source:    inc.Source,
		EventType: inc.EventType,
		RiskScore: inc.RiskScore,
		ThreatDNA: inc.ThreatDNA,
		Action:    inc.Action,
	}
	return detail, nil
}

// Dashboard reads the dashboard view from the incident store.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	incidents, err := s.repo.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	bySeverity, err := s.repo.CountBySeverity(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	byRegion, err := s.repo.CountByRegion(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Incidents:  incidents,
		Metrics:    incident.Summarize(incidents),
		BySeverity: bySeverity,
		ByRegion:   byRegion,
	}, nil
}

// Ping checks the incident store and the ledger.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("incident store: %w", err)
	}
	if err := s.ledger.Check(); err != nil {
		return err
	}
	return nil
}
