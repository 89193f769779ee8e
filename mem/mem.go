// Package mem defines the physical-frame representation, the page-table
// entry encoding, and a concrete frame allocator standing in for the
// external alloc_frame/free_frame collaborator.
package mem

import (
	"sync"
	"unsafe"

	"github.com/riscvos/vmcore/defs"
	"github.com/riscvos/vmcore/limits"
)

/// Pa_t is a physical address: a frame number packed with flag bits,
/// matching biscuit's mem.Pa_t.
type Pa_t uint64

const ppnShift = 10

// PTE flag bits, symbolic rather than wire-bit-exact to any real ISA.
const (
	/// V marks an entry valid: either an internal node pointer or a
	/// resident leaf.
	V Pa_t = 1 << 0
	/// R grants read permission.
	R Pa_t = 1 << 1
	/// W grants write permission.
	W Pa_t = 1 << 2
	/// X grants execute permission.
	X Pa_t = 1 << 3
	/// U marks a page accessible from user mode.
	U Pa_t = 1 << 4
	/// PG marks a paged-out leaf: not valid, but still a user page
	/// known to the resident-set tracker, with contents in swap.
	PG Pa_t = 1 << 5

	flagMask = V | R | W | X | U | PG
)

/// RWX is the permission-bit subset of a PTE.
const RWX = R | W | X

/// MakePTE packs a frame address and flags into one entry.
func MakePTE(frame Pa_t, flags Pa_t) Pa_t {
	return (frame>>limits.PGSHIFT)<<ppnShift | (flags & flagMask)
}

/// Frame returns the frame address encoded in a PTE (bits 10..53 shifted
/// back to a page-aligned address), ignoring flags.
func (pte Pa_t) Frame() Pa_t {
	return (pte >> ppnShift) << limits.PGSHIFT
}

/// Flags returns the flag bits of a PTE.
func (pte Pa_t) Flags() Pa_t {
	return pte & flagMask
}

/// Valid reports whether V is set.
func (pte Pa_t) Valid() bool { return pte&V != 0 }

/// PagedOut reports whether PG is set.
func (pte Pa_t) PagedOut() bool { return pte&PG != 0 }

/// Leaf reports whether the entry has at least one of R, W, X — i.e. it
/// maps a page rather than pointing at a sub-table.
func (pte Pa_t) Leaf() bool { return pte&RWX != 0 }

/// Internal reports whether the entry is a valid pointer to a child
/// table: V set, no permission bits.
func (pte Pa_t) Internal() bool { return pte.Valid() && !pte.Leaf() }

/// Pmap_t is one page-table page: Fanout 64-bit entries.
type Pmap_t [limits.Fanout]Pa_t

/// FrameAllocator abstracts the external alloc_frame/free_frame
/// collaborator.
type FrameAllocator interface {
	/// AllocFrame returns a zeroed page-sized frame, or ok=false on OOM.
	AllocFrame() (Pa_t, bool)
	/// FreeFrame returns a frame to the allocator. Double-free panics.
	FreeFrame(Pa_t)
	/// Bytes returns the raw byte contents backing a frame, addressable
	/// for direct reads/writes (used by copyio and by the pager to
	/// write/read swap).
	Bytes(Pa_t) []byte
}

/// Arena is a fixed-capacity pool of simulated physical frames. It plays
/// the role biscuit's mem.Physmem_t free-list allocator plays for real
/// hardware pages, minus reference counting: every frame has exactly one
/// owner at a time, with no copy-on-write sharing.
type Arena struct {
	mu       sync.Mutex
	frames   [][limits.PGSIZE]byte
	freeList []uint32
	used     []bool
}

/// NewArena allocates a pool capable of handing out n frames.
func NewArena(n int) *Arena {
	a := &Arena{
		frames:   make([][limits.PGSIZE]byte, n),
		freeList: make([]uint32, n),
		used:     make([]bool, n),
	}
	for i := 0; i < n; i++ {
		a.freeList[i] = uint32(i)
	}
	return a
}

func (a *Arena) pa(idx uint32) Pa_t {
	return Pa_t(idx) << limits.PGSHIFT
}

func (a *Arena) idx(pa Pa_t) uint32 {
	return uint32(pa >> limits.PGSHIFT)
}

/// AllocFrame hands out a zeroed frame, or ok=false if the arena is
/// exhausted.
func (a *Arena) AllocFrame() (Pa_t, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.freeList) == 0 {
		return 0, false
	}
	idx := a.freeList[len(a.freeList)-1]
	a.freeList = a.freeList[:len(a.freeList)-1]
	a.used[idx] = true
	for i := range a.frames[idx] {
		a.frames[idx][i] = 0
	}
	return a.pa(idx), true
}

/// FreeFrame returns a frame to the pool. Freeing a frame not currently
/// allocated is a kernel programming error and panics, matching
/// biscuit's Dec_pmap/Refdown double-free checks.
func (a *Arena) FreeFrame(pa Pa_t) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := a.idx(pa)
	if int(idx) >= len(a.used) || !a.used[idx] {
		defs.Panicf("mem: double free or invalid frame %#x", pa)
	}
	a.used[idx] = false
	a.freeList = append(a.freeList, idx)
}

/// Bytes returns the raw page contents for pa.
func (a *Arena) Bytes(pa Pa_t) []byte {
	idx := a.idx(pa)
	return a.frames[idx][:]
}

/// Pmap reinterprets a frame's bytes as a page-table page. The frame must
/// have been allocated for use as a page-table page; callers are
/// responsible for that discipline, as in biscuit's pg2pmap.
func Pmap(fa FrameAllocator, pa Pa_t) *Pmap_t {
	b := fa.Bytes(pa)
	return (*Pmap_t)(unsafe.Pointer(&b[0]))
}

/// Rounddown aligns v down to the nearest multiple of PGSIZE.
func Rounddown(v int) int {
	return v &^ (limits.PGSIZE - 1)
}

/// Roundup aligns v up to the nearest multiple of PGSIZE.
func Roundup(v int) int {
	return Rounddown(v + limits.PGSIZE - 1)
}

/// PageOf returns the page-aligned virtual address containing va.
func PageOf(va uint) uint {
	return va &^ uint(limits.PGOFFSET)
}
