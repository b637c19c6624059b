package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jmerrifield20/rtcmas/internal/alert"
	"github.com/jmerrifield20/rtcmas/internal/config"
	"github.com/jmerrifield20/rtcmas/internal/dashboard"
	"github.com/jmerrifield20/rtcmas/internal/incident"
	"github.com/jmerrifield20/rtcmas/internal/ledger"
	"github.com/jmerrifield20/rtcmas/internal/pipeline"
	"github.com/jmerrifield20/rtcmas/internal/telemetry"
)

// app is the wired pipeline shared by serve, seed and export.
type app struct {
	ledger     *ledger.IncidentLedger
	repo       incident.Repository
	svc        *pipeline.Service
	dispatcher *alert.Dispatcher
}

// newApp opens the configured store and wires the pipeline around a fresh
// ledger. The caller must call close.
func newApp(ctx context.Context, c *config.Config, logger *zap.Logger) (*app, error) {
	repo, err := incident.Open(ctx, incident.StoreConfig{
		Driver:      c.Store.Driver,
		SQLitePath:  c.Store.SQLitePath,
		PostgresURL: c.Store.PostgresURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open incident store: %w", err)
	}

	l := ledger.New()
	svc := pipeline.NewService(l, repo, nil, logger)
	svc.SetMetricsRecorder(dashboard.RecordIncident)

	a := &app{ledger: l, repo: repo, svc: svc}
	if len(c.Alerts.WebhookURLs) > 0 {
		a.dispatcher = alert.NewDispatcher(alert.Config{
			URLs:    c.Alerts.WebhookURLs,
			Secret:  c.Alerts.Secret,
			Timeout: c.Alerts.Timeout,
		}, logger)
		a.dispatcher.SetMetricsRecorder(dashboard.RecordAlertDelivery)
		svc.SetDispatcher(a.dispatcher)
	}
	return a, nil
}

// seed loads the configured telemetry CSV and runs it through the pipeline.
// A missing CSV is logged and treated as no events.
func (a *app) seed(ctx context.Context, c *config.Config, logger *zap.Logger) (pipeline.Summary, error) {
	events, err := telemetry.CollectFile(c.Telemetry.CSVPath)
	if errors.Is(err, telemetry.ErrSourceNotFound) {
		logger.Warn("telemetry CSV not found, starting with an empty ledger", zap.String("path", c.Telemetry.CSVPath))
		events = nil
	} else if err != nil {
		return pipeline.Summary{}, err
	}

	summary, err := a.svc.Seed(ctx, events, c.Store.ForceRefresh)
	if err != nil {
		return pipeline.Summary{}, err
	}
	dashboard.SetLedgerBlocks(summary.LedgerLength)
	return summary, nil
}

func (a *app) close() {
	a.dispatcher.Wait()
	a.repo.Close()
}
