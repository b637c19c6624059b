package ledger

import "fmt"

// VerifyBlocks walks blocks in order and returns an *IntegrityError for the
// first block that breaks a chain invariant. It works on the live chain and on
// exported snapshots alike. The walk is O(n) and never mutates its input.
func VerifyBlocks(blocks []Block) error {
	if len(blocks) == 0 {
		return &IntegrityError{Index: 0, Reason: "chain has no genesis block"}
	}

	for i, b := range blocks {
		if b.Index != i {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("index is %d", b.Index)}
		}

		if i == 0 {
			if b.PreviousHash != GenesisPreviousHash {
				return &IntegrityError{Index: 0, Reason: fmt.Sprintf("genesis previous_hash is %q", b.PreviousHash)}
			}
		} else if b.PreviousHash != blocks[i-1].BlockHash {
			return &IntegrityError{Index: i, Reason: "previous_hash does not match predecessor block_hash"}
		}

		canon, err := canonicalizeJSON(b.Payload)
		if err != nil {
			return &IntegrityError{Index: i, Reason: "payload is not a canonical JSON object"}
		}
		if sha256Sum(canon) != b.ContentHash {
			return &IntegrityError{Index: i, Reason: "content_hash does not match payload"}
		}

		if BlockHash(b.Index, b.Timestamp, b.ContentHash, b.PreviousHash) != b.BlockHash {
			return &IntegrityError{Index: i, Reason: "block_hash does not match block fields"}
		}
	}
	return nil
}
