package ledger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmerrifield20/rtcmas/internal/ledger"
)

// steppingClock returns a clock that advances one second per call.
func steppingClock() ledger.Clock {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := t
		t = t.Add(time.Second)
		return now
	}
}

func ddosPayload(risk int) map[string]any {
	return map[string]any{
		"event_type": "ddos",
		"source":     "10.0.0.5",
		"risk_score": risk,
		"action":     "isolate_network_segment",
	}
}

func TestNew_genesisBlock(t *testing.T) {
	l := ledger.New(ledger.WithClock(steppingClock()))

	if n := l.Len(); n != 1 {
		t.Fatalf("expected 1 genesis block, got %d", n)
	}

	g, err := l.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if g.Index != 0 {
		t.Errorf("genesis index: got %d, want 0", g.Index)
	}
	if g.PreviousHash != ledger.GenesisPreviousHash {
		t.Errorf("genesis previous_hash: got %q, want %q", g.PreviousHash, ledger.GenesisPreviousHash)
	}
	if g.Timestamp != "2026-03-01T12:00:00.000000Z" {
		t.Errorf("genesis timestamp: got %q", g.Timestamp)
	}

	wantContent, err := ledger.ContentHash(map[string]any{"genesis": true})
	if err != nil {
		t.Fatal(err)
	}
	if g.ContentHash != wantContent {
		t.Errorf("genesis content_hash: got %q, want %q", g.ContentHash, wantContent)
	}
	if want := ledger.BlockHash(0, g.Timestamp, g.ContentHash, g.PreviousHash); g.BlockHash != want {
		t.Errorf("genesis block_hash: got %q, want recomputed %q", g.BlockHash, want)
	}
	if string(g.Payload) != `{"genesis":true}` {
		t.Errorf("genesis payload: got %s", g.Payload)
	}
}

func TestVerify_genesisOnlyChain(t *testing.T) {
	l := ledger.New()
	if !l.Verify() {
		t.Errorf("Verify() on genesis-only chain should pass: %v", l.Check())
	}
}

func TestAppend_chainsCorrectly(t *testing.T) {
	l := ledger.New(ledger.WithClock(steppingClock()))

	b1, err := l.Append(ddosPayload(16))
	if err != nil {
		t.Fatal(err)
	}
	genesis, _ := l.Get(0)
	if b1.Index != 1 {
		t.Errorf("b1.Index: got %d, want 1", b1.Index)
	}
	if b1.PreviousHash != genesis.BlockHash {
		t.Errorf("chain broken: b1.PreviousHash=%q, want genesis %q", b1.PreviousHash, genesis.BlockHash)
	}
	if !l.Verify() {
		t.Fatalf("Verify() after first append: %v", l.Check())
	}

	b2, err := l.Append(ddosPayload(4))
	if err != nil {
		t.Fatal(err)
	}
	if b2.PreviousHash != b1.BlockHash {
		t.Errorf("chain broken: b2.PreviousHash=%q, want b1.BlockHash=%q", b2.PreviousHash, b1.BlockHash)
	}
	if n := l.Len(); n != 3 { // genesis + 2
		t.Errorf("expected 3 blocks, got %d", n)
	}
	if !l.Verify() {
		t.Errorf("Verify() after second append: %v", l.Check())
	}
}

func TestAppend_monotonic(t *testing.T) {
	l := ledger.New(ledger.WithClock(steppingClock()))
	const n = 25
	for i := 0; i < n; i++ {
		if _, err := l.Append(map[string]any{"seq": i}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	chain := l.Snapshot()
	if len(chain) != n+1 {
		t.Fatalf("expected %d blocks, got %d", n+1, len(chain))
	}
	for i := 1; i <= n; i++ {
		if chain[i].Index != i {
			t.Errorf("chain[%d].Index = %d", i, chain[i].Index)
		}
		if chain[i].PreviousHash != chain[i-1].BlockHash {
			t.Errorf("chain[%d].PreviousHash does not link to chain[%d]", i, i-1)
		}
	}
	if root := l.Root(); root != chain[n].BlockHash {
		t.Errorf("Root(): got %q, want %q", root, chain[n].BlockHash)
	}
	if head := l.Head(); head.Index != n {
		t.Errorf("Head().Index: got %d, want %d", head.Index, n)
	}
}

func TestContentHash_orderIndependent(t *testing.T) {
	type reversed struct {
		B int `json:"b"`
		A int `json:"a"`
	}

	h1, err := ledger.ContentHash(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ledger.ContentHash(reversed{B: 2, A: 1})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("H({a,b}) != H({b,a}): %s vs %s", h1, h2)
	}

	again, _ := ledger.ContentHash(map[string]any{"b": 2, "a": 1})
	if again != h1 {
		t.Errorf("hashing twice produced different digests")
	}
}

func TestContentHash_nestedOrderIndependent(t *testing.T) {
	type inner struct {
		Z string `json:"z"`
		A string `json:"a"`
	}

	h1, err := ledger.ContentHash(map[string]any{
		"outer": inner{Z: "last", A: "first"},
		"list":  []any{inner{Z: "2", A: "1"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ledger.ContentHash(map[string]any{
		"list":  []any{map[string]any{"a": "1", "z": "2"}},
		"outer": map[string]any{"a": "first", "z": "last"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("nested key order changed the hash: %s vs %s", h1, h2)
	}
}

func TestContentHash_distinguishesValues(t *testing.T) {
	h1, _ := ledger.ContentHash(ddosPayload(16))
	h2, _ := ledger.ContentHash(ddosPayload(4))
	if h1 == h2 {
		t.Error("different payloads produced the same content hash")
	}
}

func TestContentHash_invalidUTF8DoesNotCollide(t *testing.T) {
	_, err1 := ledger.ContentHash(map[string]any{"source": "\xff"})
	_, err2 := ledger.ContentHash(map[string]any{"source": "\xfe"})
	if !errors.Is(err1, ledger.ErrSerialization) || !errors.Is(err2, ledger.ErrSerialization) {
		t.Fatalf("expected ErrSerialization, got %v and %v", err1, err2)
	}

	// A genuine replacement character is valid UTF-8 and still hashes.
	if _, err := ledger.ContentHash(map[string]any{"source": "\ufffd"}); err != nil {
		t.Errorf("U+FFFD rejected: %v", err)
	}
	// Byte slices encode as base64, so arbitrary bytes are fine.
	if _, err := ledger.ContentHash(map[string]any{"blob": []byte{0xff, 0xfe}}); err != nil {
		t.Errorf("byte slice rejected: %v", err)
	}
}

func TestAppend_serializationError(t *testing.T) {
	tests := []struct {
		name    string
		payload any
	}{
		{"nan", map[string]any{"risk": math.NaN()}},
		{"inf", map[string]any{"risk": math.Inf(1)}},
		{"channel", map[string]any{"ch": make(chan int)}},
		{"func", map[string]any{"fn": func() {}}},
		{"not an object", []int{1, 2, 3}},
		{"scalar", "incident"},
		{"nil", nil},
		{"invalid utf-8 value", map[string]any{"source": "\xff"}},
		{"invalid utf-8 key", map[string]any{"\xfe": "x"}},
		{"invalid utf-8 nested", map[string]any{"tags": []any{"ok", map[string]string{"k": "a\xc3"}}}},
		{"invalid utf-8 struct field", struct {
			Source string `json:"source"`
		}{"edge\xff"}},
		{"invalid utf-8 raw message", map[string]any{"raw": json.RawMessage("\"\xff\"")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ledger.New()
			root := l.Root()

			_, err := l.Append(tt.payload)
			if err == nil {
				t.Fatal("expected serialization error")
			}
			if !errors.Is(err, ledger.ErrSerialization) {
				t.Errorf("expected ErrSerialization, got %v", err)
			}
			var serr *ledger.SerializationError
			if !errors.As(err, &serr) {
				t.Errorf("expected *SerializationError, got %T", err)
			}
			if l.Len() != 1 || l.Root() != root {
				t.Error("failed append mutated the chain")
			}
		})
	}
}

func TestAppend_payloadIsCopied(t *testing.T) {
	l := ledger.New()
	payload := map[string]any{"source": "10.0.0.5", "tags": []any{"a"}}
	b, err := l.Append(payload)
	if err != nil {
		t.Fatal(err)
	}

	payload["source"] = "changed"
	payload["tags"].([]any)[0] = "z"

	got, err := l.Get(b.Index)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := got.Decode(&m); err != nil {
		t.Fatal(err)
	}
	if m["source"] != "10.0.0.5" {
		t.Errorf("ledger payload aliased producer data: source=%v", m["source"])
	}
	if !l.Verify() {
		t.Errorf("Verify() after producer mutation: %v", l.Check())
	}
}

func TestSnapshot_isIndependent(t *testing.T) {
	l := ledger.New()
	if _, err := l.Append(ddosPayload(16)); err != nil {
		t.Fatal(err)
	}

	before := l.Snapshot()
	snap := l.Snapshot()
	snap[1].Payload[2] = 'X'
	snap[1].ContentHash = "deadbeef"
	snap[0].BlockHash = ""

	if !l.Verify() {
		t.Fatalf("mutating a snapshot broke the ledger: %v", l.Check())
	}
	if after := l.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Error("ledger state changed after mutating a snapshot")
	}
}

func TestVerify_idempotent(t *testing.T) {
	l := ledger.New()
	for i := 0; i < 3; i++ {
		if _, err := l.Append(map[string]any{"n": i}); err != nil {
			t.Fatal(err)
		}
	}

	before := l.Snapshot()
	for i := 0; i < 5; i++ {
		if !l.Verify() {
			t.Fatalf("Verify() call %d returned false", i)
		}
	}
	if after := l.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Error("Verify() mutated the chain")
	}

	// Appends still work after repeated verification.
	b, err := l.Append(map[string]any{"n": 3})
	if err != nil {
		t.Fatal(err)
	}
	if b.PreviousHash != before[len(before)-1].BlockHash {
		t.Error("append after Verify() did not link to the tail")
	}
}

func TestGet_outOfRange(t *testing.T) {
	l := ledger.New()
	for _, idx := range []int{-1, 1, 99} {
		if _, err := l.Get(idx); !errors.Is(err, ledger.ErrIndexOutOfRange) {
			t.Errorf("Get(%d): expected ErrIndexOutOfRange, got %v", idx, err)
		}
	}
}

func TestAppend_concurrentProducersDoNotFork(t *testing.T) {
	l := ledger.New()
	const producers = 50

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := l.Append(map[string]any{"producer": n}); err != nil {
				t.Errorf("append %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	if n := l.Len(); n != producers+1 {
		t.Fatalf("expected %d blocks, got %d", producers+1, n)
	}
	if err := l.Check(); err != nil {
		t.Fatalf("concurrent appends broke the chain: %v", err)
	}

	seen := make(map[string]bool)
	for _, b := range l.Snapshot()[1:] {
		if seen[b.PreviousHash] {
			t.Fatalf("two blocks share previous_hash %s", b.PreviousHash)
		}
		seen[b.PreviousHash] = true
	}
}

func TestBlock_Decode(t *testing.T) {
	l := ledger.New()
	b, err := l.Append(ddosPayload(16))
	if err != nil {
		t.Fatal(err)
	}

	var got struct {
		EventType string `json:"event_type"`
		RiskScore int    `json:"risk_score"`
	}
	if err := b.Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.EventType != "ddos" || got.RiskScore != 16 {
		t.Errorf("Decode: got %+v", got)
	}
}

func TestSnapshot_exportRoundTrip(t *testing.T) {
	l := ledger.New(ledger.WithClock(steppingClock()))
	_, _ = l.Append(ddosPayload(16))
	_, _ = l.Append(ddosPayload(4))

	var buf bytes.Buffer
	if err := ledger.WriteSnapshot(&buf, l.Snapshot()); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	order := []string{`"index"`, `"timestamp"`, `"content_hash"`, `"payload"`, `"previous_hash"`, `"block_hash"`}
	last := -1
	for _, key := range order {
		pos := strings.Index(out, key)
		if pos <= last {
			t.Fatalf("export field %s out of order", key)
		}
		last = pos
	}

	blocks, err := ledger.ReadSnapshot(strings.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 exported blocks, got %d", len(blocks))
	}
	if err := ledger.VerifyBlocks(blocks); err != nil {
		t.Errorf("exported chain should verify: %v", err)
	}
}

func TestVerifyBlocks_detectsTamperedExport(t *testing.T) {
	l := ledger.New(ledger.WithClock(steppingClock()))
	_, _ = l.Append(ddosPayload(16))
	_, _ = l.Append(ddosPayload(4))

	var buf bytes.Buffer
	if err := ledger.WriteSnapshot(&buf, l.Snapshot()); err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(buf.String(), `"risk_score": 16`, `"risk_score": 1`, 1)

	blocks, err := ledger.ReadSnapshot(strings.NewReader(tampered))
	if err != nil {
		t.Fatal(err)
	}
	err = ledger.VerifyBlocks(blocks)
	if !errors.Is(err, ledger.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	var ierr *ledger.IntegrityError
	if errors.As(err, &ierr) && ierr.Index != 1 {
		t.Errorf("expected violation at block 1, got %d", ierr.Index)
	}
}

func TestVerifyBlocks_emptyChain(t *testing.T) {
	if err := ledger.VerifyBlocks(nil); !errors.Is(err, ledger.ErrIntegrity) {
		t.Errorf("expected integrity error for empty chain, got %v", err)
	}
}
