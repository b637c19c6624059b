package telemetry_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmerrifield20/rtcmas/internal/telemetry"
)

const sampleCSV = `timestamp,source,ip_address,event_type,severity,description,region
2026-03-01T08:00:00Z, Edge-Gateway-01 ,10.0.0.5,DDoS,CRITICAL,SYN flood,north east
2026-03-01T08:05:00Z,scada-hmi,10.0.3.9,scada_probe,urgent,Modbus scan,
`

func TestCollect_normalisesRows(t *testing.T) {
	events, err := telemetry.Collect(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, telemetry.Event{
		Timestamp:   "2026-03-01T08:00:00Z",
		Source:      "edge-gateway-01",
		IPAddress:   "10.0.0.5",
		EventType:   "ddos",
		Severity:    "critical",
		Description: "SYN flood",
		Region:      "North East",
	}, events[0])

	// Unknown severity is downgraded and the empty region takes its default.
	assert.Equal(t, "low", events[1].Severity)
	assert.Equal(t, "Unknown", events[1].Region)
}

func TestCollect_missingColumnsUseDefaults(t *testing.T) {
	events, err := telemetry.Collect(strings.NewReader("timestamp,event_type\n2026-03-01T09:00:00Z,phishing\n"))
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "unknown", e.Source)
	assert.Equal(t, "0.0.0.0", e.IPAddress)
	assert.Equal(t, "phishing", e.EventType)
	assert.Equal(t, "low", e.Severity)
	assert.Equal(t, "Unknown", e.Region)
}

func TestCollect_emptyInput(t *testing.T) {
	events, err := telemetry.Collect(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCollect_headerOnly(t *testing.T) {
	events, err := telemetry.Collect(strings.NewReader("timestamp,source\n"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCollectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	events, err := telemetry.CollectFile(path)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestCollectFile_notFound(t *testing.T) {
	_, err := telemetry.CollectFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, telemetry.ErrSourceNotFound)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   telemetry.Event
		want telemetry.Event
	}{
		{
			name: "all empty",
			in:   telemetry.Event{},
			want: telemetry.Event{
				Source:    "unknown",
				IPAddress: "0.0.0.0",
				EventType: "unknown",
				Severity:  "low",
				Region:    "Unknown",
			},
		},
		{
			name: "mixed case",
			in: telemetry.Event{
				Source:    "FW-02",
				IPAddress: " 192.168.1.4 ",
				EventType: "Ransomware",
				Severity:  " High ",
				Region:    "SOUTH",
			},
			want: telemetry.Event{
				Source:    "fw-02",
				IPAddress: "192.168.1.4",
				EventType: "ransomware",
				Severity:  "high",
				Region:    "South",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, telemetry.Normalize(tt.in))
		})
	}
}

func TestNormalize_invalidUTF8(t *testing.T) {
	e := telemetry.Normalize(telemetry.Event{
		Source:      "gw-\xff",
		Description: "scan \xfe\xfe",
		Region:      "north\xc3",
	})
	for _, v := range []string{e.Source, e.Description, e.Region} {
		assert.True(t, utf8.ValidString(v), "field %q is not valid UTF-8", v)
	}
	assert.Equal(t, "gw-\ufffd", e.Source)
}

func TestNormalize_concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				e := telemetry.Normalize(telemetry.Event{Region: "north east"})
				assert.Equal(t, "North East", e.Region)
			}
		}()
	}
	wg.Wait()
}
