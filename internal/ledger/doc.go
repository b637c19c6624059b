// Package ledger implements the hash-chained incident ledger.
//
// The chain begins with a genesis block whose payload is {"genesis":true} and
// whose PreviousHash is the sentinel "0". Every later block binds its index,
// timestamp, payload content hash and the BlockHash of its predecessor, so
// altering or reordering any recorded incident is detectable via Verify.
//
// The ledger lives in memory for the lifetime of one run. Consumers only ever
// receive copies of blocks; the chain itself grows exclusively through Append.
package ledger
