package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jmerrifield20/rtcmas/internal/dashboard"
	"github.com/jmerrifield20/rtcmas/internal/health"
	"github.com/jmerrifield20/rtcmas/internal/identity"
	"github.com/jmerrifield20/rtcmas/internal/ledgerrpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Seed the pipeline and serve the dashboard, REST API and gRPC ledger service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	summary, err := a.seed(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	logger.Info("ledger ready",
		zap.Int("records", summary.Records),
		zap.Int("length", summary.LedgerLength),
		zap.String("root", summary.LedgerRoot),
	)

	// ── Operator tokens ───────────────────────────────────────────────────────
	var tokens *identity.TokenIssuer
	if cfg.Auth.OperatorSecret != "" {
		tokens, err = identity.NewTokenIssuer([]byte(cfg.Auth.OperatorSecret), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
	}

	// ── Health ────────────────────────────────────────────────────────────────
	probes := []health.Probe{
		{Name: "ledger", Check: func(context.Context) error { return a.ledger.Check() }},
		{Name: "incident_store", Check: a.repo.Ping},
	}
	for i, url := range cfg.Alerts.WebhookURLs {
		probes = append(probes, health.HTTPProbe(fmt.Sprintf("alert_webhook_%d", i), url, nil))
	}
	checker := health.New(probes, health.Config{
		CheckInterval: cfg.Health.CheckInterval,
		FailThreshold: cfg.Health.FailThreshold,
	}, logger)
	checker.SetMetricsRecord(dashboard.RecordHealthCheck)
	checker.CheckAll(ctx)
	go checker.Start(ctx)

	// ── Dashboard ─────────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := dashboard.NewRouter(dashboard.RouterConfig{
		Pipeline:     a.svc,
		Ledger:       a.ledger,
		Tokens:       tokens,
		Checker:      checker,
		CORSOrigins:  cfg.Server.CORSOrigins,
		RateLimitRPS: cfg.Server.RateLimitRPS,
		Done:         ctx.Done(),
		Logger:       logger,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 3)
	go func() {
		logger.Info("dashboard listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("dashboard: %w", err)
		}
	}()

	// ── gRPC ledger service + gateway ─────────────────────────────────────────
	var (
		grpcSrv *grpc.Server
		gwSrv   *http.Server
	)
	if cfg.GRPC.Enabled {
		grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			return fmt.Errorf("gRPC listen on :%d: %w", cfg.GRPC.Port, err)
		}
		grpcSrv = ledgerrpc.NewGRPCServer(a.ledger, logger)
		go func() {
			logger.Info("ledger gRPC listening", zap.Int("port", cfg.GRPC.Port))
			if err := grpcSrv.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("gRPC: %w", err)
			}
		}()

		conn, err := grpc.NewClient(fmt.Sprintf("localhost:%d", cfg.GRPC.Port),
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("dial gRPC for gateway: %w", err)
		}
		defer conn.Close()

		gwMux, err := ledgerrpc.NewGateway(conn)
		if err != nil {
			return fmt.Errorf("register grpc-gateway: %w", err)
		}
		gwSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.GRPC.GatewayPort),
			Handler:           gwMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("ledger HTTP/JSON gateway listening", zap.Int("port", cfg.GRPC.GatewayPort))
			if err := gwSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("gateway: %w", err)
			}
		}()
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logger.Error("server failed", zap.Error(serveErr))
	}
	logger.Info("shutting down rtcmas...")

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	if gwSrv != nil {
		if err := gwSrv.Shutdown(shutCtx); err != nil {
			logger.Error("gateway shutdown error", zap.Error(err))
		}
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}

	logger.Info("rtcmas stopped", zap.Bool("ledger_valid", a.ledger.Verify()))
	return serveErr
}
