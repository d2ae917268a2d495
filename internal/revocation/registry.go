package revocation

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
	psync "accredo/pkg/platform/sync"
)

// DefaultSlots is the fixed capacity of a revocation list created lazily on
// first reference. Indices are never reused, so a list is a consumable.
const DefaultSlots uint64 = 131072

// Registry owns allocation and mutation of bit-indexed revocation lists.
// Allocation is the single server-wide serialization point: no two concurrent
// callers ever receive the same index for a list.
type Registry interface {
	GetOrCreate(ctx context.Context, listID id.ListID) (ListInfo, error)
	Allocate(ctx context.Context, listID id.ListID) (uint64, error)
	SetRevoked(ctx context.Context, listID id.ListID, index uint64) error
	IsRevoked(ctx context.Context, listID id.ListID, index uint64) (bool, error)
	BuildPublicList(ctx context.Context, listID id.ListID) (PublicList, error)
}

// ListInfo is a read-only view of a list's allocation state.
type ListInfo struct {
	ListID        id.ListID
	TotalSlots    uint64
	NextFreeIndex uint64
}

// PublicList is the externally publishable snapshot of a revocation list,
// encoded as a gzip-compressed, base64 bitstring in StatusList2021 fashion.
type PublicList struct {
	ListID         id.ListID `json:"list_id"`
	TotalSlots     uint64    `json:"total_slots"`
	EncodedBitset  string    `json:"encoded_bitset"`
	GeneratedAt    time.Time `json:"generated_at"`
	RevokedIndices uint64    `json:"revoked_indices"`
}

type list struct {
	totalSlots    uint64
	nextFreeIndex uint64
	bits          []byte
	revokedCount  uint64
}

// InMemoryRegistry keeps revocation lists in process memory. A ShardedMutex
// keyed by list id serializes every read-modify-write on a list, which is what
// makes the allocation counter linearizable with no lost updates. The table
// mapping ids to lists has its own mutex: the sharded lock only serializes
// callers of the same list, not callers creating different lists.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	locks *psync.ShardedMutex
	lists map[id.ListID]*list
	slots uint64
}

// Option configures the InMemoryRegistry.
type Option func(*InMemoryRegistry)

// WithSlots overrides the fixed capacity of newly created lists.
// Useful for exhaustion tests; existing lists keep their creation-time size.
func WithSlots(slots uint64) Option {
	return func(r *InMemoryRegistry) {
		if slots > 0 {
			r.slots = slots
		}
	}
}

// NewInMemoryRegistry constructs an empty registry.
func NewInMemoryRegistry(opts ...Option) *InMemoryRegistry {
	r := &InMemoryRegistry{
		locks: psync.NewShardedMutex(),
		lists: make(map[id.ListID]*list),
		slots: DefaultSlots,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate lazily initializes a fixed-capacity list on first reference.
func (r *InMemoryRegistry) GetOrCreate(_ context.Context, listID id.ListID) (ListInfo, error) {
	if listID.IsNil() {
		return ListInfo{}, dErrors.New(dErrors.CodeInvalidInput, "list ID is required")
	}

	r.locks.Lock(listID.String())
	defer r.locks.Unlock(listID.String())

	l := r.getOrCreate(listID)
	return ListInfo{ListID: listID, TotalSlots: l.totalSlots, NextFreeIndex: l.nextFreeIndex}, nil
}

// Allocate hands out the next free index for the list. The counter is read and
// incremented under the per-list lock, so indices are unique and never reused,
// even after the owning credential is revoked.
func (r *InMemoryRegistry) Allocate(_ context.Context, listID id.ListID) (uint64, error) {
	if listID.IsNil() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "list ID is required")
	}

	r.locks.Lock(listID.String())
	defer r.locks.Unlock(listID.String())

	l := r.getOrCreate(listID)
	if l.nextFreeIndex >= l.totalSlots {
		return 0, dErrors.New(dErrors.CodeListExhausted,
			fmt.Sprintf("revocation list %s has no free slots", listID))
	}
	index := l.nextFreeIndex
	l.nextFreeIndex++
	return index, nil
}

// SetRevoked marks the index as revoked. Re-revoking an already-revoked index
// is a no-op, keeping revocation monotone under retries. Bits are never cleared.
func (r *InMemoryRegistry) SetRevoked(_ context.Context, listID id.ListID, index uint64) error {
	r.locks.Lock(listID.String())
	defer r.locks.Unlock(listID.String())

	l, ok := r.lookup(listID)
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("revocation list %s does not exist", listID))
	}
	if index >= l.totalSlots {
		return dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("index %d out of range for list %s", index, listID))
	}
	if !getBit(l.bits, index) {
		setBit(l.bits, index)
		l.revokedCount++
	}
	return nil
}

// IsRevoked reports whether the index has been revoked. An unknown list reads
// as not revoked: absence of a published bit is the non-revoked state.
func (r *InMemoryRegistry) IsRevoked(_ context.Context, listID id.ListID, index uint64) (bool, error) {
	r.locks.Lock(listID.String())
	defer r.locks.Unlock(listID.String())

	l, ok := r.lookup(listID)
	if !ok || index >= l.totalSlots {
		return false, nil
	}
	return getBit(l.bits, index), nil
}

// BuildPublicList produces a read-only snapshot for external publication.
func (r *InMemoryRegistry) BuildPublicList(_ context.Context, listID id.ListID) (PublicList, error) {
	r.locks.Lock(listID.String())
	defer r.locks.Unlock(listID.String())

	l, ok := r.lookup(listID)
	if !ok {
		return PublicList{}, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("revocation list %s does not exist", listID))
	}

	encoded, err := encodeBitset(l.bits)
	if err != nil {
		return PublicList{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode revocation bitset")
	}
	return PublicList{
		ListID:         listID,
		TotalSlots:     l.totalSlots,
		EncodedBitset:  encoded,
		GeneratedAt:    time.Now().UTC(),
		RevokedIndices: l.revokedCount,
	}, nil
}

// getOrCreate resolves the list record, creating it on first reference. The
// table mutex guards only the map; callers hold the per-list sharded lock for
// anything touching the record's contents.
func (r *InMemoryRegistry) getOrCreate(listID id.ListID) *list {
	r.mu.RLock()
	l, ok := r.lists[listID]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.lists[listID]; ok {
		return l
	}
	l = &list{
		totalSlots: r.slots,
		bits:       make([]byte, (r.slots+7)/8),
	}
	r.lists[listID] = l
	return l
}

func (r *InMemoryRegistry) lookup(listID id.ListID) (*list, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lists[listID]
	return l, ok
}

func setBit(bits []byte, index uint64) {
	bits[index/8] |= 1 << (index % 8)
}

func getBit(bits []byte, index uint64) bool {
	return bits[index/8]&(1<<(index%8)) != 0
}

func encodeBitset(bits []byte) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(bits); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeBitset reverses encodeBitset. Verifiers consuming a published list use
// it to check individual indices without talking to the registry.
func DecodeBitset(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode bitset: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decompress bitset: %w", err)
	}
	defer zr.Close() //nolint:errcheck
	var out bytes.Buffer
	if _, err := out.ReadFrom(zr); err != nil {
		return nil, fmt.Errorf("read bitset: %w", err)
	}
	return out.Bytes(), nil
}

// BitAt reports the revocation bit for an index in a decoded bitstring.
// Indices beyond the bitstring read as not revoked.
func BitAt(bits []byte, index uint64) bool {
	if index/8 >= uint64(len(bits)) {
		return false
	}
	return getBit(bits, index)
}
