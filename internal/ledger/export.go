package ledger

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteSnapshot encodes blocks as an indented JSON array in the stable export
// shape (index, timestamp, content_hash, payload, previous_hash, block_hash).
func WriteSnapshot(w io.Writer, blocks []Block) error {
	if blocks == nil {
		blocks = []Block{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(blocks); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes an exported snapshot. It does not verify the chain;
// pass the result to VerifyBlocks for that.
func ReadSnapshot(r io.Reader) ([]Block, error) {
	var blocks []Block
	if err := json.NewDecoder(r).Decode(&blocks); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return blocks, nil
}
