package alert_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmerrifield20/rtcmas/internal/alert"
)

func TestDispatch_signsAndDelivers(t *testing.T) {
	var (
		mu       sync.Mutex
		received []alert.Alert
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, alert.Sign(body, "s3cret"), r.Header.Get(alert.SignatureHeader))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var a alert.Alert
		assert.NoError(t, json.Unmarshal(body, &a))
		mu.Lock()
		received = append(received, a)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := alert.NewDispatcher(alert.Config{URLs: []string{srv.URL, srv.URL}, Secret: "s3cret"}, zap.NewNop())
	var ok atomic.Int32
	d.SetMetricsRecorder(func(success bool) {
		if success {
			ok.Add(1)
		}
	})

	d.Dispatch(alert.Alert{EventType: "ddos", RiskScore: 16, Action: "isolate_network_segment", LedgerIndex: 1})
	d.Wait()

	require.Len(t, received, 2)
	assert.Equal(t, int32(2), ok.Load())
	a := received[0]
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "containment", a.Type)
	assert.Equal(t, "ddos", a.EventType)
	assert.Equal(t, 16, a.RiskScore)
	assert.False(t, a.Timestamp.IsZero())
}

func TestDispatch_retriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := alert.NewDispatcher(alert.Config{URLs: []string{srv.URL}}, zap.NewNop())
	d.SetRetryDelays(time.Millisecond, time.Millisecond)
	var outcomes []bool
	var mu sync.Mutex
	d.SetMetricsRecorder(func(success bool) {
		mu.Lock()
		outcomes = append(outcomes, success)
		mu.Unlock()
	})

	d.Dispatch(alert.Alert{Action: "block_source_ip"})
	d.Wait()

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []bool{false, false, true}, outcomes)
}

func TestDispatch_givesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := alert.NewDispatcher(alert.Config{URLs: []string{srv.URL}}, zap.NewNop())
	d.SetRetryDelays(0, 0)

	d.Dispatch(alert.Alert{Action: "block_source_ip"})
	d.Wait()

	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatch_disabled(t *testing.T) {
	d := alert.NewDispatcher(alert.Config{}, zap.NewNop())
	assert.False(t, d.Enabled())
	d.Dispatch(alert.Alert{})
	d.Wait()

	var nilDispatcher *alert.Dispatcher
	assert.False(t, nilDispatcher.Enabled())
	nilDispatcher.Dispatch(alert.Alert{})
	nilDispatcher.Wait()
}

func TestSign(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	got := alert.Sign([]byte("The quick brown fox jumps over the lazy dog"), "key")
	assert.Equal(t, "sha256=f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", got)
}
