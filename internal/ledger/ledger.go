package ledger

import (
	"sync"
	"time"
)

// Reader is the read-only view of the ledger handed to consumers (dashboard,
// reporting, RPC). Every method returns copies.
type Reader interface {
	// Len returns the number of blocks, genesis included.
	Len() int

	// Get returns the block at the given zero-based index.
	Get(index int) (Block, error)

	// Root returns the BlockHash of the tail block.
	Root() string

	// Snapshot returns every block in chain order.
	Snapshot() []Block

	// Verify reports whether every chain invariant holds.
	Verify() bool

	// Check walks the chain and returns the first violation, or nil.
	Check() error
}

// Clock supplies the current instant for block timestamps.
type Clock func() time.Time

// Option configures an IncidentLedger.
type Option func(*IncidentLedger)

// WithClock replaces the wall clock used for timestamps.
func WithClock(c Clock) Option {
	return func(l *IncidentLedger) {
		if c != nil {
			l.clock = c
		}
	}
}

// IncidentLedger is an in-memory, append-only, hash-chained ledger. It is safe
// for concurrent use: reading the tail, hashing and appending happen under one
// lock, so concurrent producers can never fork the chain.
type IncidentLedger struct {
	mu     sync.RWMutex
	blocks []Block
	clock  Clock
}

var _ Reader = (*IncidentLedger)(nil)

// New creates a ledger holding exactly one genesis block.
func New(opts ...Option) *IncidentLedger {
	l := &IncidentLedger{clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}

	payload, err := canonicalize(genesisPayload)
	if err != nil {
		// The genesis marker is a fixed literal; it always encodes.
		panic(err)
	}
	ts := formatTimestamp(l.clock())
	contentHash := sha256Sum(payload)
	l.blocks = append(l.blocks, Block{
		Index:        0,
		Timestamp:    ts,
		ContentHash:  contentHash,
		Payload:      payload,
		PreviousHash: GenesisPreviousHash,
		BlockHash:    BlockHash(0, ts, contentHash, GenesisPreviousHash),
	})
	return l
}

// Append records payload as a new block at the tail and returns a copy of it.
// payload may be a map or a struct but must encode to a JSON object; otherwise
// a *SerializationError is returned and the chain is left untouched.
func (l *IncidentLedger) Append(payload any) (Block, error) {
	canon, err := canonicalize(payload)
	if err != nil {
		return Block{}, err
	}
	contentHash := sha256Sum(canon)

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.blocks[len(l.blocks)-1]
	b := Block{
		Index:        len(l.blocks),
		Timestamp:    formatTimestamp(l.clock()),
		ContentHash:  contentHash,
		Payload:      canon,
		PreviousHash: prev.BlockHash,
	}
	b.BlockHash = BlockHash(b.Index, b.Timestamp, b.ContentHash, b.PreviousHash)
	l.blocks = append(l.blocks, b)
	return b.clone(), nil
}

// Len implements Reader.
func (l *IncidentLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// Get implements Reader.
func (l *IncidentLedger) Get(index int) (Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.blocks) {
		return Block{}, ErrIndexOutOfRange
	}
	return l.blocks[index].clone(), nil
}

// Head returns a copy of the tail block.
func (l *IncidentLedger) Head() Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blocks[len(l.blocks)-1].clone()
}

// Root implements Reader.
func (l *IncidentLedger) Root() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blocks[len(l.blocks)-1].BlockHash
}

// Snapshot implements Reader. Mutating the result never affects the ledger.
func (l *IncidentLedger) Snapshot() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Block, len(l.blocks))
	for i, b := range l.blocks {
		out[i] = b.clone()
	}
	return out
}

// Verify implements Reader.
func (l *IncidentLedger) Verify() bool {
	return l.Check() == nil
}

// Check implements Reader. It is a pure read and may be called at any time.
func (l *IncidentLedger) Check() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return VerifyBlocks(l.blocks)
}
