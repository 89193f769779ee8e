// Package pager implements the resident-set tracker and the paging
// daemon: victim selection, eviction to swap, and fault-in. Grounded on
// original_source/kernel/vm.c's filePages bookkeeping and
// get_page_to_swap/put_in_file/take_from_file, restyled in biscuit's idiom.
package pager

import (
	"github.com/riscvos/vmcore/defs"
	"github.com/riscvos/vmcore/limits"
	"github.com/riscvos/vmcore/mem"
	"github.com/riscvos/vmcore/swap"
	"github.com/riscvos/vmcore/vmlog"
)

/// Slot is one entry of the per-process resident-set table.
type Slot struct {
	/// Taken reports whether the slot is occupied by a user page.
	Taken bool
	/// VA is the page-aligned virtual address this slot covers.
	VA uint
	/// PTERef is a stable reference to the PTE covering VA. The arena
	/// backing page-table pages never relocates an allocated frame, so a
	/// raw pointer is as stable as an (arena, index) pair would be,
	/// without the extra indirection of looking one up on every access.
	PTERef *mem.Pa_t
	/// OnPhys reports whether the page is resident (true) or paged out
	/// (false).
	OnPhys bool
	/// SwapOffset is the swap-file slot index when OnPhys is false.
	SwapOffset int
}

/// ResidentSet is the fixed-capacity, per-process table of every user
/// page the process currently owns, resident or swapped out.
type ResidentSet struct {
	Slots         [limits.MAX_TOTAL_PAGES]Slot
	ResidentCount int
	TotalCount    int
}

/// Reserve installs a freshly grown, resident page into the table.
/// Returns ENOMEM if the table has no free slot; Grow and Clone treat that
/// return as an allocation failure and roll back.
func (rs *ResidentSet) Reserve(va uint, pteRef *mem.Pa_t) defs.Err_t {
	for i := range rs.Slots {
		if !rs.Slots[i].Taken {
			rs.Slots[i] = Slot{Taken: true, VA: va, PTERef: pteRef, OnPhys: true}
			rs.ResidentCount++
			rs.TotalCount++
			return 0
		}
	}
	return defs.ENOMEM
}

/// FindByVA returns the slot covering va, if any.
func (rs *ResidentSet) FindByVA(va uint) (*Slot, bool) {
	for i := range rs.Slots {
		if rs.Slots[i].Taken && rs.Slots[i].VA == va {
			return &rs.Slots[i], true
		}
	}
	return nil, false
}

// victim selects the eviction candidate by FIFO-from-the-top: scan from
// the highest slot index downward and pick the first resident slot. This
// is the exact scan direction of the original's get_page_to_swap.
func (rs *ResidentSet) victim() (*Slot, bool) {
	for i := len(rs.Slots) - 1; i >= 0; i-- {
		if rs.Slots[i].Taken && rs.Slots[i].OnPhys {
			return &rs.Slots[i], true
		}
	}
	return nil, false
}

// clear returns a slot to the empty state, decrementing the counts that
// applied to its prior state.
func (rs *ResidentSet) clear(s *Slot) {
	if s.OnPhys {
		rs.ResidentCount--
	}
	rs.TotalCount--
	*s = Slot{}
}

/// Release empties slot s (used by unmap) and decrements the counters that
/// applied to its prior state. It does not itself free the physical frame
/// or swap slot — the
/// caller (pmap.UnmapRange, which owns the frame allocator and swap slot
/// map) does that and then calls Release to update the resident-set
/// table and counters.
func (rs *ResidentSet) Release(s *Slot) {
	rs.clear(s)
}

/// TLBFlusher invalidates the local TLB, the external tlb_flush
/// collaborator.
type TLBFlusher func()

/// EvictOne selects a victim by FIFO-from-the-top policy, writes its
/// contents to swap, rewrites its PTE as paged-out, and frees its frame.
/// Panics if no resident slot exists — unreachable by construction, since
/// callers only invoke EvictOne when ResidentCount == MAX_PHYS_PAGES.
/// Also panics (via defs.Panicf) if the swap file is exhausted or the
/// write fails: both are treated as fatal to the process. assertLocked
/// is called first; callers pass their process's Proc_t.LockassertPmap.
func EvictOne(rs *ResidentSet, slots *swap.SlotMap, backend swap.Backend, fa mem.FrameAllocator, flush TLBFlusher, assertLocked func()) {
	assertLocked()
	victim, ok := rs.victim()
	if !ok {
		defs.Panicf("pager: evict-one invoked with no resident page")
	}
	offset, ok := slots.Acquire()
	if !ok {
		vmlog.Error("swap file exhausted", "va", victim.VA)
		defs.Panicf(defs.ESwapFull)
	}
	pte := *victim.PTERef
	frame := pte.Frame()
	if err := backend.WriteSlot(offset, fa.Bytes(frame)); err != nil {
		vmlog.Error("swap write failed", "va", victim.VA, "err", err)
		defs.Panicf("pager: swap write failed: %v", err)
	}
	*victim.PTERef = mem.MakePTE(0, mem.PG)
	victim.SwapOffset = offset
	victim.OnPhys = false
	flush()
	fa.FreeFrame(frame)
	rs.ResidentCount--
	vmlog.Debug("evicted page", "va", victim.VA, "swap_offset", offset)
}

/// FaultIn handles a page-not-present trap on a PG-flagged PTE: it
/// allocates a frame (evicting first if at the resident cap), reads the
/// page's contents back from swap, and rewrites the PTE resident.
/// Returns BadAddress-shaped defs.EFAULT if va has no matching
/// swapped-out slot (caller escalates to a segmentation fault) or
/// defs.ENOMEM if no frame could be allocated (caller kills the
/// process).
func FaultIn(rs *ResidentSet, slots *swap.SlotMap, backend swap.Backend, fa mem.FrameAllocator, flush TLBFlusher, va uint, assertLocked func()) defs.Err_t {
	assertLocked()
	slot, ok := rs.FindByVA(va)
	if !ok || slot.OnPhys {
		return defs.EFAULT
	}
	if rs.ResidentCount == limits.MAX_PHYS_PAGES {
		EvictOne(rs, slots, backend, fa, flush, assertLocked)
	}
	frame, ok := fa.AllocFrame()
	if !ok {
		return defs.ENOMEM
	}
	if err := backend.ReadSlot(slot.SwapOffset, fa.Bytes(frame)); err != nil {
		fa.FreeFrame(frame)
		defs.Panicf("pager: swap read failed: %v", err)
	}
	*slot.PTERef = mem.MakePTE(frame, mem.R|mem.W|mem.X|mem.U|mem.V)
	slots.Release(slot.SwapOffset)
	slot.SwapOffset = 0
	slot.OnPhys = true
	rs.ResidentCount++
	flush()
	vmlog.Debug("faulted in page", "va", va)
	return 0
}
