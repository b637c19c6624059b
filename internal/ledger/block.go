package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// GenesisPreviousHash is the PreviousHash of the genesis block. It marks
// "no predecessor" and is not the digest of anything.
const GenesisPreviousHash = "0"

// TimestampFormat is the layout of every block timestamp (always UTC).
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// genesisPayload is the fixed marker carried by block 0.
var genesisPayload = map[string]any{"genesis": true}

// Block is one hash-linked record in the ledger. The JSON field order is the
// stable export format.
type Block struct {
	Index        int             `json:"index"`
	Timestamp    string          `json:"timestamp"`
	ContentHash  string          `json:"content_hash"`
	Payload      json.RawMessage `json:"payload"`
	PreviousHash string          `json:"previous_hash"`
	BlockHash    string          `json:"block_hash"`
}

// Decode unmarshals the block payload into v.
func (b Block) Decode(v any) error {
	if err := json.Unmarshal(b.Payload, v); err != nil {
		return fmt.Errorf("decode payload of block %d: %w", b.Index, err)
	}
	return nil
}

func (b Block) clone() Block {
	cp := b
	cp.Payload = append(json.RawMessage(nil), b.Payload...)
	return cp
}

// ContentHash returns the lowercase hex SHA-256 of the canonical encoding of
// payload. Two payloads with the same keys and values hash identically no
// matter how they were built.
func ContentHash(payload any) (string, error) {
	canon, err := canonicalize(payload)
	if err != nil {
		return "", err
	}
	return sha256Sum(canon), nil
}

// BlockHash computes the hash binding a block's position, timestamp, content
// hash and predecessor. Neither hex digests nor timestamps contain '|', so the
// delimited form is unambiguous.
func BlockHash(index int, timestamp, contentHash, previousHash string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s", index, timestamp, contentHash, previousHash)
	return hex.EncodeToString(h.Sum(nil))
}

// formatTimestamp renders t in the ledger's UTC layout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// sha256Sum returns the hex-encoded SHA-256 digest of data.
func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
