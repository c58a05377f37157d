// Package sheap implements the "secure heap": a boundary-tagged,
// integrity-protected allocator that detects double-free, out-of-arena
// release, out-of-bound alignment-padding writes, external metadata
// corruption and double-release at the point of allocation and
// deallocation, per spec.md §4.E.
package sheap

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/ag00se/sheaperd-library/internal/assert"
	"github.com/ag00se/sheaperd-library/internal/memsurface"
	"github.com/ag00se/sheaperd-library/internal/osmutex"
)

// autoCreatedID is recorded on a free block created by a split or a
// coalesce, since no caller requested it directly.
const autoCreatedID uint32 = 0

// Ptr is an opaque handle to a payload within a Heap's arena. The zero
// value denotes "no pointer" (spec.md's null).
type Ptr uintptr

// Heap is one SHEAP instance: a single contiguous arena walked as a
// sequence of boundary-tagged blocks. The zero value is not usable; call
// New.
type Heap struct {
	cfg   Config
	arena memsurface.Backing
	size  uint32 // requested arena size; may be smaller than len(arena.Bytes())
	base  uintptr

	mu          *osmutex.Mutex
	allocGuard  osmutex.ReentryGuard
	freeGuard   osmutex.ReentryGuard
	structMu    sync.Mutex // guards stats/ring bookkeeping alongside the arena walk

	ring   *idRing
	stats  Statistics
	report *assert.Reporter

	initialized bool
}

// New allocates an arena of size bytes and initialises it as a single
// free block, per spec.md's Init contract. A strategy other than FirstFit
// reports InvalidAllocationStrategy and returns a non-nil error; a size
// of zero or too small to hold one minimal block reports InitInvalidSize.
func New(size uint32, reporter *assert.Reporter, opts ...Option) (*Heap, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.MinimumMallocSize < 4 {
		cfg.MinimumMallocSize = 4
	}

	if cfg.Strategy != FirstFit {
		reporter.Report(assert.InvalidAllocationStrategy, nil, "strategy %v is not implemented", cfg.Strategy)
		return nil, fmt.Errorf("sheap: unsupported allocation strategy %v", cfg.Strategy)
	}

	h := headerSize(cfg.ExtendedHeader)

	if size == 0 || uint64(size) < uint64(2*h)+4 {
		reporter.Report(assert.InitInvalidSize, map[string]any{"size": size}, "arena size %d too small for one block", size)
		return nil, fmt.Errorf("sheap: invalid arena size %d", size)
	}

	arena, err := memsurface.New(int(size))
	if err != nil {
		return nil, fmt.Errorf("sheap: allocate arena: %w", err)
	}

	buf := arena.Bytes()[:size]
	for i := range buf {
		buf[i] = cfg.OverwriteValue
	}

	heap := &Heap{
		cfg:         *cfg,
		arena:       arena,
		size:        size,
		base:        uintptr(unsafe.Pointer(&buf[0])),
		mu:          osmutex.New(cfg.MutexWaitTicks),
		ring:        newIDRing(cfg.PCLogSize),
		report:      reporter,
		initialized: true,
	}

	firstPayload := size - 2*h

	hdr := header{allocated: false, size: firstPayload, id: autoCreatedID, alignOffset: 0}
	heap.writeHeaderAt(0, hdr)
	heap.writeHeaderAt(heap.boundaryOffset(0, firstPayload), hdr)

	return heap, nil
}

// Close releases the backing arena memory.
func (h *Heap) Close() error {
	return h.arena.Close()
}

// Align rounds n up to a multiple of the heap's minimum allocation unit.
func (h *Heap) Align(n uint32) uint32 {
	unit := h.cfg.MinimumMallocSize
	return (n + unit - 1) / unit * unit
}

func (h *Heap) extended() bool { return h.cfg.ExtendedHeader }

func (h *Heap) headerSize() uint32 { return headerSize(h.extended()) }

// overhead returns the total bytes a block with the given payload size
// occupies including its header and boundary.
func (h *Heap) overhead(payload uint32) uint32 {
	return 2*h.headerSize() + payload
}

func (h *Heap) boundaryOffset(blockStart, payload uint32) uint32 {
	return blockStart + h.headerSize() + payload
}

func (h *Heap) payloadOffset(blockStart uint32) uint32 {
	return blockStart + h.headerSize()
}

func (h *Heap) arenaSize() uint32 { return h.size }

// bytes returns the arena's byte span, truncated to the heap's requested
// size (the backing store may over-allocate to a page boundary).
func (h *Heap) bytes() []byte { return h.arena.Bytes()[:h.size] }

func (h *Heap) readHeaderAt(offset uint32) header {
	sz := h.headerSize()
	return decodeHeader(h.bytes()[offset:offset+sz], h.extended())
}

func (h *Heap) writeHeaderAt(offset uint32, hdr header) {
	sz := h.headerSize()
	hdr.encode(h.bytes()[offset:offset+sz], h.extended())
}

func (h *Heap) ptrForOffset(offset uint32) Ptr {
	return Ptr(h.base + uintptr(offset))
}

// offsetForPtr validates that p lies within the arena's payload region
// and returns its byte offset.
func (h *Heap) offsetForPtr(p Ptr) (uint32, bool) {
	if p == 0 {
		return 0, false
	}

	addr := uintptr(p)
	if addr < h.base || addr >= h.base+uintptr(h.arenaSize()) {
		return 0, false
	}

	return uint32(addr - h.base), true
}

// acquire begins a mutating or walking entry point, honouring the
// no-OS/OS configuration choice, and returns a release func to defer
// immediately — guaranteeing release on every exit path, closing the
// "Open question" in spec.md §9.
func (h *Heap) acquire(ctx context.Context, guard *osmutex.ReentryGuard, overlapKind assert.Kind) (release func(), ok bool) {
	if h.cfg.NoOS {
		exit, entered := guard.TryEnter()
		if !entered {
			h.report.Report(overlapKind, nil, "reentrant call detected")
			return func() {}, false
		}

		return exit, true
	}

	release, err := h.mu.Acquired(ctx)
	if err != nil {
		h.report.Report(assert.MutexAcquireFailed, nil, "%v", err)
		return func() {}, false
	}

	return release, true
}

// Allocate implements spec.md §4.E's first-fit allocation algorithm.
func (h *Heap) Allocate(size uint32, id uint32) (Ptr, bool) {
	return h.allocate(size, id, false)
}

// Calloc behaves as Allocate but zero-fills the returned payload,
// including its alignment padding.
func (h *Heap) Calloc(n, size uint32, id uint32) (Ptr, bool) {
	total := n * size
	return h.allocate(total, id, true)
}

func (h *Heap) allocate(size uint32, id uint32, zero bool) (Ptr, bool) {
	release, ok := h.acquire(context.Background(), &h.allocGuard, assert.MallocCallOverlap)
	if !ok {
		return 0, false
	}
	defer release()

	h.structMu.Lock()
	h.ring.record(id)
	h.structMu.Unlock()

	if !h.initialized {
		h.report.Report(assert.NotInitialized, nil, "heap not initialized")
		return 0, false
	}

	if size == 0 {
		h.report.Report(assert.SizeZeroAlloc, nil, "allocate called with size 0")
		return 0, false
	}

	aligned := h.Align(size)

	var (
		offset uint32
		cand   header
		found  bool
	)

	for offset = 0; offset < h.arenaSize(); {
		cand = h.readHeaderAt(offset)
		if !cand.allocated && cand.size >= aligned {
			found = true
			break
		}

		offset += h.overhead(cand.size)
	}

	if !found {
		h.report.Report(assert.OutOfMemory, map[string]any{"size": size}, "no free block of size %d", aligned)
		return 0, false
	}

	if !cand.validCRC(h.extended()) {
		h.report.Report(assert.InvalidBlock, map[string]any{"offset": offset}, "candidate block at offset %d failed CRC", offset)
		return 0, false
	}

	pre := cand.size
	minAlloc := h.cfg.MinimumMallocSize
	threshold := h.overhead(aligned) + minAlloc + 2*h.headerSize()

	finalSize := aligned
	if pre < threshold {
		finalSize = pre
	}

	allocOffset := offset
	newHdr := header{
		allocated:   true,
		size:        finalSize,
		id:          id,
		alignOffset: uint16(finalSize - size),
	}
	h.writeHeaderAt(allocOffset, newHdr)
	h.writeHeaderAt(h.boundaryOffset(allocOffset, finalSize), newHdr)

	if finalSize < pre {
		freeStart := allocOffset + h.overhead(finalSize)
		freeSize := pre - h.overhead(finalSize)
		freeHdr := header{allocated: false, size: freeSize, id: autoCreatedID}
		h.writeHeaderAt(freeStart, freeHdr)
		h.writeHeaderAt(h.boundaryOffset(freeStart, freeSize), freeHdr)
	}

	h.structMu.Lock()
	h.stats.CurrentAllocations++
	h.stats.UserDataAllocated += uint64(size)
	h.stats.AlignedAllocated += uint64(finalSize)
	h.stats.TotalWithOverhead += uint64(h.overhead(finalSize))
	h.structMu.Unlock()

	payloadStart := h.payloadOffset(allocOffset)
	payload := h.bytes()[payloadStart : payloadStart+finalSize]

	fill := h.cfg.OverwriteValue
	if zero {
		fill = 0x00
	}

	if zero {
		for i := range payload {
			payload[i] = fill
		}
	}

	return h.ptrForOffset(payloadStart), true
}

// Free implements spec.md §4.E's free + coalesce algorithm.
func (h *Heap) Free(p Ptr, id uint32) bool {
	release, ok := h.acquire(context.Background(), &h.freeGuard, assert.FreeCallOverlap)
	if !ok {
		return false
	}
	defer release()

	h.structMu.Lock()
	h.ring.record(id)
	h.structMu.Unlock()

	if p == 0 {
		h.report.Report(assert.NullFree, nil, "free called with null pointer")
		return false
	}

	payloadOffset, inArena := h.offsetForPtr(p)
	if !inArena || payloadOffset < h.headerSize() {
		h.report.Report(assert.FreePtrNotInHeap, map[string]any{"ptr": uintptr(p)}, "pointer %#x is not within the heap", uintptr(p))
		return false
	}

	blockStart := payloadOffset - h.headerSize()
	hdr := h.readHeaderAt(blockStart)

	if !hdr.validCRC(h.extended()) {
		h.report.Report(assert.FreeInvalidHeader, map[string]any{"offset": blockStart}, "header CRC invalid at offset %d", blockStart)
		return false
	}

	boundaryOff := h.boundaryOffset(blockStart, hdr.size)
	if boundaryOff+h.headerSize() > h.arenaSize() {
		h.report.Report(assert.FreePtrNotInHeap, nil, "block at offset %d overruns the arena", blockStart)
		return false
	}

	boundary := h.readHeaderAt(boundaryOff)
	if !boundary.validCRC(h.extended()) {
		h.report.Report(assert.FreeInvalidBoundary, map[string]any{"offset": blockStart}, "boundary CRC invalid for block at offset %d (possible overrun from following block)", blockStart)
		return false
	}

	if h.cfg.FreeCheckUnalignedSize {
		requested := uint32(hdr.size) - uint32(hdr.alignOffset)
		padding := h.bytes()[payloadOffset+requested : payloadOffset+hdr.size]

		for _, b := range padding {
			if b != h.cfg.OverwriteValue {
				h.report.Report(assert.OutOfBoundWrite, map[string]any{"offset": blockStart}, "alignment padding modified for block at offset %d", blockStart)
				return false
			}
		}
	}

	if !hdr.allocated {
		h.report.Report(assert.DoubleFree, map[string]any{"offset": blockStart}, "block at offset %d already free", blockStart)
		return false
	}

	requested := uint32(hdr.size) - uint32(hdr.alignOffset)

	h.structMu.Lock()
	h.stats.CurrentAllocations--
	h.stats.UserDataAllocated -= uint64(requested)
	h.stats.AlignedAllocated -= uint64(hdr.size)
	h.stats.TotalWithOverhead -= uint64(h.overhead(hdr.size))
	h.structMu.Unlock()

	if h.cfg.OverwriteOnFree {
		payload := h.bytes()[payloadOffset : payloadOffset+hdr.size]
		for i := range payload {
			payload[i] = h.cfg.OverwriteValue
		}
	}

	finalStart := blockStart
	finalSize := hdr.size

	// Coalesce forward.
	nextStart := finalStart + h.overhead(finalSize)
	if nextStart+h.overhead(h.cfg.MinimumMallocSize) <= h.arenaSize() {
		next := h.readHeaderAt(nextStart)
		if !next.allocated {
			if !next.validCRC(h.extended()) {
				h.report.Report(assert.CoalescingNextInvalidCRC, map[string]any{"offset": nextStart}, "next block at offset %d failed CRC, not coalesced", nextStart)
			} else {
				h.clearRegion(finalStart+h.headerSize()+finalSize, nextStart+h.headerSize())
				finalSize = finalSize + next.size + 2*h.headerSize()
			}
		}
	}

	// Coalesce backward, using the preceding boundary tag. The free/allocated
	// bit is checked before the CRC, mirroring the forward path above, so a
	// corrupted boundary tag on a free-looking neighbor is still reported
	// instead of silently skipped.
	if finalStart >= h.headerSize() {
		prevBoundaryOff := finalStart - h.headerSize()
		prevBoundary := h.readHeaderAt(prevBoundaryOff)
		if !prevBoundary.allocated {
			if !prevBoundary.validCRC(h.extended()) {
				h.report.Report(assert.CoalescingPrevInvalidCRC, map[string]any{"offset": prevBoundaryOff}, "previous boundary at offset %d failed CRC, not coalesced", prevBoundaryOff)
			} else {
				prevStart := finalStart - h.overhead(prevBoundary.size)
				prevHdr := h.readHeaderAt(prevStart)

				if prevHdr.validCRC(h.extended()) && !prevHdr.allocated {
					h.clearRegion(prevStart+h.headerSize()+prevHdr.size, finalStart+h.headerSize())
					finalSize = prevHdr.size + finalSize + 2*h.headerSize()
					finalStart = prevStart
				} else {
					h.report.Report(assert.CoalescingPrevInvalidCRC, map[string]any{"offset": prevStart}, "previous header at offset %d failed CRC, not coalesced", prevStart)
				}
			}
		}
	}

	finalHdr := header{allocated: false, size: finalSize, id: autoCreatedID, alignOffset: 0}
	h.writeHeaderAt(finalStart, finalHdr)
	h.writeHeaderAt(h.boundaryOffset(finalStart, finalSize), finalHdr)

	return true
}

func (h *Heap) clearRegion(from, to uint32) {
	buf := h.bytes()
	for i := from; i < to; i++ {
		buf[i] = h.cfg.OverwriteValue
	}
}

// GetHeapStatistics copies the current statistics into out.
func (h *Heap) GetHeapStatistics(out *Statistics) {
	h.structMu.Lock()
	defer h.structMu.Unlock()

	*out = h.stats
}

// GetHeapSize returns the total arena size in bytes.
func (h *Heap) GetHeapSize() uint32 { return h.arenaSize() }

// GetAllocatedBytes returns the sum of user-requested bytes currently
// allocated.
func (h *Heap) GetAllocatedBytes() uint64 {
	h.structMu.Lock()
	defer h.structMu.Unlock()

	return h.stats.UserDataAllocated
}

// GetAllocatedBytesAligned returns the sum of aligned payload bytes
// currently allocated.
func (h *Heap) GetAllocatedBytesAligned() uint64 {
	h.structMu.Lock()
	defer h.structMu.Unlock()

	return h.stats.AlignedAllocated
}

// GetLatestAllocationIDs copies up to n of the most-recent non-zero
// caller ids into dest, newest first, and returns the count copied.
func (h *Heap) GetLatestAllocationIDs(dest []uint32, n int) int {
	h.structMu.Lock()
	defer h.structMu.Unlock()

	return h.ring.latest(dest, n)
}

// GetAllocationID validates that p points at an allocated, integrity-valid
// block and returns the id recorded at its last mutating call. Only
// available when the heap uses the extended header layout.
//
// GetAllocationID walks the same header/boundary bytes Allocate and Free
// mutate, so it acquires the heap mutex on entry like every other
// structurally-walking entry point; without it a concurrent Free could
// tear the header out from under this read.
func (h *Heap) GetAllocationID(p Ptr) (uint32, error) {
	if !h.extended() {
		return 0, fmt.Errorf("sheap: GetAllocationID requires the extended header layout")
	}

	release, ok := h.acquire(context.Background(), &h.freeGuard, assert.FreeCallOverlap)
	if !ok {
		return 0, fmt.Errorf("sheap: failed to acquire heap mutex")
	}
	defer release()

	payloadOffset, inArena := h.offsetForPtr(p)
	if !inArena || payloadOffset < h.headerSize() {
		return 0, fmt.Errorf("sheap: pointer not within the heap")
	}

	blockStart := payloadOffset - h.headerSize()
	hdr := h.readHeaderAt(blockStart)

	if !hdr.validCRC(true) {
		return 0, fmt.Errorf("sheap: block CRC invalid")
	}

	if !hdr.allocated {
		return 0, fmt.Errorf("sheap: pointer refers to a free block")
	}

	return hdr.id, nil
}
