package ledger

import (
	"errors"
	"testing"
)

// threeBlockChain builds genesis + the two ddos incidents.
func threeBlockChain(t *testing.T) *IncidentLedger {
	t.Helper()
	l := New()
	for _, risk := range []int{16, 4} {
		if _, err := l.Append(map[string]any{
			"event_type": "ddos",
			"source":     "10.0.0.5",
			"risk_score": risk,
			"action":     "isolate_network_segment",
		}); err != nil {
			t.Fatal(err)
		}
	}
	if !l.Verify() {
		t.Fatalf("fresh chain invalid: %v", l.Check())
	}
	return l
}

func TestVerify_detectsTampering(t *testing.T) {
	tests := []struct {
		name    string
		tamper  func(b []Block)
		wantIdx int
	}{
		{"content hash of block 1", func(b []Block) { b[1].ContentHash = "ab12" }, 1},
		{"payload of block 1", func(b []Block) {
			b[1].Payload = []byte(`{"action":"log_only","event_type":"ddos","risk_score":16,"source":"10.0.0.5"}`)
		}, 1},
		{"previous hash of block 1", func(b []Block) { b[1].PreviousHash = b[0].ContentHash }, 1},
		{"timestamp of block 1", func(b []Block) { b[1].Timestamp = "1999-01-01T00:00:00.000000Z" }, 1},
		{"index of block 1", func(b []Block) { b[1].Index = 7 }, 1},
		{"block hash of block 1", func(b []Block) { b[1].BlockHash = b[2].BlockHash }, 1},
		{"genesis payload", func(b []Block) { b[0].Payload = []byte(`{"genesis":false}`) }, 0},
		{"genesis sentinel", func(b []Block) { b[0].PreviousHash = "00" }, 0},
		{"reordered blocks", func(b []Block) { b[1], b[2] = b[2], b[1] }, 1},
		{"payload no longer an object", func(b []Block) { b[2].Payload = []byte(`[1]`) }, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := threeBlockChain(t)
			tt.tamper(l.blocks)

			if l.Verify() {
				t.Fatal("Verify() returned true for a tampered chain")
			}
			var ierr *IntegrityError
			if err := l.Check(); !errors.As(err, &ierr) {
				t.Fatalf("expected *IntegrityError, got %v", err)
			}
			if ierr.Index != tt.wantIdx {
				t.Errorf("violation reported at block %d, want %d (%s)", ierr.Index, tt.wantIdx, ierr.Reason)
			}
		})
	}
}

func TestVerify_corruptContentHashWithoutRehash(t *testing.T) {
	l := threeBlockChain(t)
	l.blocks[1].ContentHash = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	if l.Verify() {
		t.Error("Verify() should be false after corrupting content_hash")
	}
	// Repeated calls keep reporting the same result.
	if l.Verify() {
		t.Error("Verify() changed its answer on a second call")
	}
}
