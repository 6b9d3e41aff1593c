package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrEmptyChain is returned by Restore when the replay log holds no blocks.
var ErrEmptyChain = errors.New("ledger: chain is empty")

// Ledger is the ordered, append-only block sequence. Blocks live in a slice and
// refer to each other by index; Append is the only mutation.
//
// Readers (Snapshot, Validate, Len, Last) share a read lock and never observe a
// block whose hash has been computed but which is not yet linked.
type Ledger struct {
	mu     sync.RWMutex
	codec  *Codec
	blocks []Block
	clock  func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the block timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New creates a ledger holding only the genesis block.
func New(codec *Codec, opts ...Option) *Ledger {
	l := &Ledger{codec: codec, clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}

	ts := l.now()
	payload := GenesisPayload(GenesisMessage)
	l.blocks = append(l.blocks, Block{
		Index:        0,
		Timestamp:    ts,
		Payload:      payload,
		PreviousHash: ZeroHash,
		Hash:         codec.Digest(0, ts, payload, ZeroHash),
	})
	return l
}

// Restore rebuilds a ledger from replayed blocks exactly as stored. Nothing is
// re-hashed; call Validate to learn whether the replayed chain is intact.
func Restore(codec *Codec, blocks []Block, opts ...Option) (*Ledger, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyChain
	}
	l := &Ledger{codec: codec, clock: time.Now, blocks: make([]Block, 0, len(blocks))}
	for _, opt := range opts {
		opt(l)
	}
	for _, b := range blocks {
		l.blocks = append(l.blocks, b.clone())
	}
	return l, nil
}

// Codec returns the codec blocks are hashed with.
func (l *Ledger) Codec() *Codec {
	return l.codec
}

// Append links payload after the current tip and returns a copy of the new
// block. It fails only for structurally invalid payloads.
func (l *Ledger) Append(payload Payload) (Block, error) {
	if err := payload.Validate(); err != nil {
		return Block{}, fmt.Errorf("append %q payload: %w", payload.Kind, err)
	}
	if payload.Kind == PayloadGenesis {
		return Block{}, fmt.Errorf("append genesis payload: %w", ErrInvalidPayload)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	last := l.blocks[len(l.blocks)-1]
	ts := l.now()
	if ts.Before(last.Timestamp) {
		ts = last.Timestamp
	}
	p := payload.clone()
	b := Block{
		Index:        last.Index + 1,
		Timestamp:    ts,
		Payload:      p,
		PreviousHash: last.Hash,
	}
	b.Hash = l.codec.Digest(b.Index, b.Timestamp, b.Payload, b.PreviousHash)
	l.blocks = append(l.blocks, b)
	return b.clone(), nil
}

// Len returns the number of blocks, genesis included.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// Last returns a copy of the tip.
func (l *Ledger) Last() Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blocks[len(l.blocks)-1].clone()
}

// Snapshot returns a point-in-time copy of the whole chain.
func (l *Ledger) Snapshot() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Block, len(l.blocks))
	for i, b := range l.blocks {
		out[i] = b.clone()
	}
	return out
}

// Since returns copies of the blocks with index >= from.
func (l *Ledger) Since(from int64) []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from >= int64(len(l.blocks)) {
		return nil
	}
	out := make([]Block, 0, int64(len(l.blocks))-from)
	for _, b := range l.blocks[from:] {
		out = append(out, b.clone())
	}
	return out
}

// Validate walks the whole chain and reports the first block whose hash,
// linkage, index or payload does not check out.
func (l *Ledger) Validate() ValidityReport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return validateBlocks(l.codec, l.blocks)
}

func (l *Ledger) now() time.Time {
	// Round(0) strips the monotonic reading so stored and restored timestamps compare equal.
	return l.clock().Round(0).UTC()
}
