// Package alert notifies external systems about automated containment
// decisions by POSTing signed JSON to configured webhook URLs.
package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-RTCMAS-Signature"

const maxAttempts = 3

// Alert is the JSON body delivered to each webhook.
type Alert struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	EventType     string    `json:"event_type"`
	Source        string    `json:"source"`
	Region        string    `json:"region"`
	RiskScore     int       `json:"risk_score"`
	Action        string    `json:"action"`
	LedgerIndex   int       `json:"ledger_index"`
	BlockHash     string    `json:"block_hash"`
}

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Config configures a Dispatcher.
type Config struct {
	URLs    []string
	Secret  string
	Timeout time.Duration
}

// Dispatcher delivers alerts to every configured URL.
type Dispatcher struct {
	urls       []string
	secret     string
	httpClient *http.Client
	delays     []time.Duration
	onMetrics  MetricsRecorder
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A zero Timeout defaults to 10s.
func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		urls:       append([]string(nil), cfg.URLs...),
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		// Wait before attempts 2 and 3.
		delays: []time.Duration{1 * time.Second, 5 * time.Second},
		logger: logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (d *Dispatcher) SetMetricsRecorder(fn MetricsRecorder) {
	d.onMetrics = fn
}

// SetRetryDelays overrides the waits between attempts.
func (d *Dispatcher) SetRetryDelays(delays ...time.Duration) {
	d.delays = delays
}

// Enabled reports whether any webhook URL is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.urls) > 0
}

// Dispatch fans a out to every URL in the background. The caller's context
// is not used for delivery so alerts outlive the request that raised them;
// call Wait to drain.
func (d *Dispatcher) Dispatch(a Alert) {
	if !d.Enabled() {
		return
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Type == "" {
		a.Type = "containment"
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(a)
	if err != nil {
		d.logger.Error("alert: marshal", zap.Error(err))
		return
	}
	signature := Sign(body, d.secret)

	for _, url := range d.urls {
		d.wg.Add(1)
		go func(url string) {
			defer d.wg.Done()
			d.deliver(context.Background(), url, body, signature)
		}(url)
	}
}

// Wait blocks until every dispatched alert has been delivered or given up on.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}

// deliver sends body to url with retries.
func (d *Dispatcher) deliver(ctx context.Context, url string, body []byte, signature string) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && attempt-2 < len(d.delays) {
			time.Sleep(d.delays[attempt-2])
		}

		err := d.post(ctx, url, body, signature)
		if d.onMetrics != nil {
			d.onMetrics(err == nil)
		}
		if err == nil {
			return
		}

		d.logger.Warn("alert: delivery failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	d.logger.Error("alert: giving up", zap.String("url", url))
}

// post performs a single HTTP POST delivery.
func (d *Dispatcher) post(ctx context.Context, url string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the signature header value for body: "sha256=" followed by
// the hex HMAC-SHA256 keyed with secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
