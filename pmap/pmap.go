// Package pmap implements the three-level page-table walker and the
// mapping primitives built on it. Grounded on original_source/kernel/
// vm.c's walk/walkaddr/mappages/uvmunmap/freewalk for exact semantics;
// naming and the PTE representation follow biscuit's mem package.
package pmap

import (
	"github.com/riscvos/vmcore/defs"
	"github.com/riscvos/vmcore/limits"
	"github.com/riscvos/vmcore/mem"
	"github.com/riscvos/vmcore/pager"
	"github.com/riscvos/vmcore/swap"
)

func levelShift(level int) uint {
	return limits.PGSHIFT + 9*uint(level)
}

func index(va uint, level int) uint {
	return (va >> levelShift(level)) & 0x1ff
}

/// Walk returns a reference to the level-0 PTE covering va, descending
/// (and, if alloc is true, extending) the three-level radix tree rooted
/// at root. It returns ok=false without allocating if alloc is false and
/// any level's entry is absent, or if alloc is true and the frame
/// allocator cannot provide a table page. It panics if va >= MAXVA — a
/// programming error, never a user fault. assertLocked is called first;
/// callers pass their process's Proc_t.LockassertPmap (or a no-op where
/// no process is at stake yet, e.g. boot-time identity mapping).
func Walk(root mem.Pa_t, va uint, alloc bool, fa mem.FrameAllocator, assertLocked func()) (*mem.Pa_t, bool) {
	assertLocked()
	if uint64(va) >= uint64(limits.MAXVA) {
		defs.Panicf("pmap: walk: va %#x >= MAXVA", va)
	}
	table := root
	for level := 2; level > 0; level-- {
		pm := mem.Pmap(fa, table)
		pte := &pm[index(va, level)]
		switch {
		case pte.Internal():
			table = pte.Frame()
		case pte.Valid():
			// a leaf where an internal pointer was expected
			return nil, false
		default:
			if !alloc {
				return nil, false
			}
			frame, ok := fa.AllocFrame()
			if !ok {
				return nil, false
			}
			*pte = mem.MakePTE(frame, mem.V)
			table = frame
		}
	}
	pm := mem.Pmap(fa, table)
	return &pm[index(va, 0)], true
}

/// WalkUser resolves va to the physical address of a resident,
/// user-accessible page, or ok=false if absent, not valid, or not
/// user-accessible. It never allocates, used by the cross-space copy
/// routines which must not fault in swapped-out pages.
func WalkUser(root mem.Pa_t, va uint, fa mem.FrameAllocator, assertLocked func()) (mem.Pa_t, bool) {
	ref, ok := Walk(root, va, false, fa, assertLocked)
	if !ok {
		return 0, false
	}
	pte := *ref
	if !pte.Valid() || pte&mem.U == 0 {
		return 0, false
	}
	return pte.Frame(), true
}

/// MapRange establishes mappings for every page covering [va, va+size).
/// va and size need not be page-aligned; the first and last pages are
/// determined by rounding down. Panics if a target entry is already
/// valid (remap is a programming error). On ENOMEM partway through, the
/// partial mappings remain installed — callers that cannot tolerate this
/// must UnmapRange the range afterwards.
func MapRange(root mem.Pa_t, va uint, size int, pa mem.Pa_t, perm mem.Pa_t, fa mem.FrameAllocator, assertLocked func()) defs.Err_t {
	assertLocked()
	if size <= 0 {
		defs.Panicf("pmap: map_range: non-positive size %d", size)
	}
	a := mem.PageOf(va)
	last := mem.PageOf(va + uint(size) - 1)
	for {
		ref, ok := Walk(root, a, true, fa, assertLocked)
		if !ok {
			return defs.ENOMEM
		}
		if ref.Valid() {
			defs.Panicf("pmap: map_range: remap at va=%#x", a)
		}
		*ref = mem.MakePTE(pa, perm|mem.V)
		if a == last {
			break
		}
		a += uint(limits.PGSIZE)
		pa += mem.Pa_t(limits.PGSIZE)
	}
	return 0
}

/// UnmapRange removes npages of mappings starting at the page-aligned
/// address va, releasing swap slots for paged-out leaves and (if doFree)
/// physical frames for resident leaves, and updating the resident-set
/// table accordingly. Panics if any page lacks a mapping, is a valid
/// entry that is not a leaf, or is neither V nor PG — unmapping a
/// non-existent mapping is a kernel programming error.
func UnmapRange(root mem.Pa_t, fa mem.FrameAllocator, rs *pager.ResidentSet, slots *swap.SlotMap, va uint, npages int, doFree bool, assertLocked func()) {
	assertLocked()
	if va%uint(limits.PGSIZE) != 0 {
		defs.Panicf("pmap: unmap_range: va %#x not page-aligned", va)
	}
	for a := va; a < va+uint(npages)*uint(limits.PGSIZE); a += uint(limits.PGSIZE) {
		ref, ok := Walk(root, a, false, fa, assertLocked)
		if !ok {
			defs.Panicf("pmap: unmap_range: no entry for va=%#x", a)
		}
		pte := *ref
		if !pte.Valid() && !pte.PagedOut() {
			defs.Panicf("pmap: unmap_range: va=%#x not mapped", a)
		}
		if pte.Valid() && !pte.Leaf() {
			defs.Panicf("pmap: unmap_range: va=%#x not a leaf", a)
		}

		if pte.PagedOut() {
			if slot, ok := rs.FindByVA(a); ok {
				slots.Release(slot.SwapOffset)
				rs.Release(slot)
			}
		} else {
			if doFree {
				fa.FreeFrame(pte.Frame())
			}
			if slot, ok := rs.FindByVA(a); ok {
				rs.Release(slot)
			}
		}
		*ref = 0
	}
}

/// FreeWalk recursively frees internal page-table pages. Any residual
/// leaf is a programming error and panics; FreeWalk must only be called
/// after every leaf has been unmapped.
func FreeWalk(root mem.Pa_t, fa mem.FrameAllocator, assertLocked func()) {
	assertLocked()
	pm := mem.Pmap(fa, root)
	for i := range pm {
		pte := pm[i]
		if pte.Internal() {
			FreeWalk(pte.Frame(), fa, assertLocked)
			pm[i] = 0
		} else if pte.Valid() {
			defs.Panicf("pmap: free_walk: residual leaf in page table")
		}
	}
	fa.FreeFrame(root)
}

/// ClearUser clears the U bit of the PTE covering va, used by exec to
/// install a stack guard page. Panics if va is unmapped.
func ClearUser(root mem.Pa_t, va uint, fa mem.FrameAllocator, assertLocked func()) {
	ref, ok := Walk(root, va, false, fa, assertLocked)
	if !ok || *ref == 0 {
		defs.Panicf("pmap: clear_user: va=%#x not mapped", va)
	}
	*ref &^= mem.U
}
