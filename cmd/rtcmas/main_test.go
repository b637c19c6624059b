package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmerrifield20/rtcmas/internal/config"
	"github.com/jmerrifield20/rtcmas/internal/ledger"
)

const testCSV = `timestamp,source,ip_address,event_type,severity,description,region
2026-03-01T08:00:00Z,edge-gw-01,10.0.0.5,ddos,critical,SYN flood,North
2026-03-01T08:02:00Z,edge-gw-01,10.0.0.5,ddos,high,UDP flood,North
2026-03-01T08:10:00Z,mail-relay,10.0.2.7,phishing,low,Credential lure,South
`

// testConfig returns defaults pointed at a temp CSV and a memory store.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())

	c, err := config.Load(config.New(""))
	require.NoError(t, err)

	csvPath := filepath.Join(t.TempDir(), "logs.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0o600))
	c.Telemetry.CSVPath = csvPath
	c.Store.Driver = "memory"
	return c
}

func TestApp_seed(t *testing.T) {
	c := testConfig(t)
	a, err := newApp(context.Background(), c, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	summary, err := a.seed(context.Background(), c, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, 4, summary.LedgerLength)
	assert.True(t, summary.LedgerValid)
	assert.Equal(t, a.ledger.Root(), summary.LedgerRoot)
}

func TestApp_seedMissingCSV(t *testing.T) {
	c := testConfig(t)
	c.Telemetry.CSVPath = filepath.Join(t.TempDir(), "absent.csv")

	a, err := newApp(context.Background(), c, zap.NewNop())
	require.NoError(t, err)
	defer a.close()

	summary, err := a.seed(context.Background(), c, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, summary.Records)
	assert.Equal(t, 1, summary.LedgerLength)
}

func TestNewApp_unknownDriver(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "oracle"
	_, err := newApp(context.Background(), c, zap.NewNop())
	require.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	c := testConfig(t)
	a, err := newApp(context.Background(), c, zap.NewNop())
	require.NoError(t, err)
	defer a.close()
	summary, err := a.seed(context.Background(), c, zap.NewNop())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, summary))
	out := buf.String()
	assert.Contains(t, out, "ledger_valid")
	assert.Contains(t, out, "EVENT TYPE")
	assert.Contains(t, out, "ddos")
	assert.Contains(t, out, summary.LedgerRoot)
}

func TestReportVerification(t *testing.T) {
	l := ledger.New()
	_, err := l.Append(map[string]any{"event_type": "ddos", "risk_score": 16})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, reportVerification(&buf, l.Snapshot()))
	assert.True(t, strings.HasPrefix(buf.String(), "OK  2 blocks"))

	tampered := l.Snapshot()
	tampered[1].Payload = []byte(`{"event_type":"ddos","risk_score":1}`)
	buf.Reset()
	require.ErrorIs(t, reportVerification(&buf, tampered), errChainInvalid)
	assert.Contains(t, buf.String(), "INVALID")

	buf.Reset()
	require.ErrorIs(t, reportVerification(&buf, nil), errChainInvalid)
}

func TestExportThenVerifyFile(t *testing.T) {
	cfg = testConfig(t)
	logger = zap.NewNop()

	blocks, err := loadBlocks(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	path := filepath.Join(t.TempDir(), "ledger.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, ledger.WriteSnapshot(f, blocks))
	require.NoError(t, f.Close())

	read, err := readSnapshotFile(path)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, reportVerification(&buf, read))
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = newLogger(config.LogConfig{Level: "loud"})
	require.Error(t, err)
}
