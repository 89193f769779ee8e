// Package as implements address-space lifecycle: Create, Grow, Shrink,
// Clone, and Destroy, plus ClearUser for the exec stack guard page. It is
// the layer that bridges pmap's and pager's explicit-root style onto
// proc.Proc_t, grounded on biscuit/src/vm/as.go's Vm_t locking discipline
// and original_source/kernel/vm.c's uvmalloc/uvmdealloc/uvmcopy/uvmfree/
// uvmclear for exact operation semantics.
package as

import (
	"github.com/riscvos/vmcore/defs"
	"github.com/riscvos/vmcore/limits"
	"github.com/riscvos/vmcore/mem"
	"github.com/riscvos/vmcore/pager"
	"github.com/riscvos/vmcore/pmap"
	"github.com/riscvos/vmcore/proc"
	"github.com/riscvos/vmcore/vmlog"
)

/// Create allocates the top-level page-table frame for a new, empty
/// address space and installs it as p.Root. p.Sz is left at 0.
func Create(p *proc.Proc_t) defs.Err_t {
	frame, ok := p.Frames.AllocFrame()
	if !ok {
		return defs.ENOMEM
	}
	p.Root = frame
	p.Sz = 0
	vmlog.Info("address space created", "pid", p.Pid)
	return 0
}

// growLocked implements Grow assuming p's VM lock is already held; it
// does not acquire the lock itself.
func growLocked(p *proc.Proc_t, oldSz, newSz int) (int, defs.Err_t) {
	if newSz <= oldSz {
		return oldSz, 0
	}
	start := mem.Roundup(oldSz)
	end := mem.Roundup(newSz)
	for a := start; a < end; a += limits.PGSIZE {
		if p.Resident.ResidentCount == limits.MAX_PHYS_PAGES {
			pager.EvictOne(&p.Resident, &p.SwapSlots, p.Swap, p.Frames, p.TLB, p.LockassertPmap)
			p.Stat.IncEvictions()
		}
		frame, ok := p.Frames.AllocFrame()
		if !ok {
			shrinkLocked(p, a, oldSz)
			return oldSz, defs.ENOMEM
		}
		if err := pmap.MapRange(p.Root, uint(a), limits.PGSIZE, frame, mem.R|mem.W|mem.X|mem.U, p.Frames, p.LockassertPmap); err != 0 {
			p.Frames.FreeFrame(frame)
			shrinkLocked(p, a, oldSz)
			return oldSz, err
		}
		ref, ok := pmap.Walk(p.Root, uint(a), false, p.Frames, p.LockassertPmap)
		if !ok {
			defs.Panicf("as: grow: pte missing immediately after map_range at va=%#x", a)
		}
		if err := p.Resident.Reserve(uint(a), ref); err != 0 {
			*ref = 0
			p.Frames.FreeFrame(frame)
			shrinkLocked(p, a, oldSz)
			return oldSz, defs.ENOMEM
		}
	}
	p.Sz = newSz
	p.Stat.IncGrows()
	vmlog.Debug("grow", "pid", p.Pid, "old_sz", oldSz, "new_sz", newSz)
	return newSz, 0
}

/// Grow extends the address space from oldSz to newSz, mapping and
/// resident-set-tracking a fresh page for each page boundary crossed,
/// evicting under the FIFO-from-top policy whenever the resident cap is
/// already reached. On any failure it rolls back to oldSz via Shrink and
/// returns the error.
func Grow(p *proc.Proc_t, oldSz, newSz int) (int, defs.Err_t) {
	p.LockPmap()
	defer p.UnlockPmap()
	return growLocked(p, oldSz, newSz)
}

// shrinkLocked implements Shrink assuming p's VM lock is already held.
func shrinkLocked(p *proc.Proc_t, oldSz, newSz int) int {
	if newSz >= oldSz {
		return oldSz
	}
	lo := mem.Roundup(newSz)
	hi := mem.Roundup(oldSz)
	if npages := (hi - lo) / limits.PGSIZE; npages > 0 {
		pmap.UnmapRange(p.Root, p.Frames, &p.Resident, &p.SwapSlots, uint(lo), npages, true, p.LockassertPmap)
	}
	p.Sz = newSz
	p.Stat.IncShrinks()
	vmlog.Debug("shrink", "pid", p.Pid, "old_sz", oldSz, "new_sz", newSz)
	return newSz
}

/// Shrink releases every page between newSz and oldSz, freeing frames and
/// swap slots as UnmapRange dictates.
func Shrink(p *proc.Proc_t, oldSz, newSz int) int {
	p.LockPmap()
	defer p.UnlockPmap()
	return shrinkLocked(p, oldSz, newSz)
}

/// Destroy tears down the entire address space: unmaps every page up to
/// sz, freeing frames and swap slots, then recursively frees the
/// page-table pages themselves. The Proc_t is unusable afterwards.
func Destroy(p *proc.Proc_t, sz int) {
	p.LockPmap()
	defer p.UnlockPmap()
	if npages := mem.Roundup(sz) / limits.PGSIZE; npages > 0 {
		pmap.UnmapRange(p.Root, p.Frames, &p.Resident, &p.SwapSlots, 0, npages, true, p.LockassertPmap)
	}
	pmap.FreeWalk(p.Root, p.Frames, p.LockassertPmap)
	vmlog.Info("address space destroyed", "pid", p.Pid)
}

/// ClearUser clears the U bit of the PTE covering va in p's address
/// space, used by exec to install a stack guard page below argv.
func ClearUser(p *proc.Proc_t, va uint) {
	p.LockPmap()
	defer p.UnlockPmap()
	pmap.ClearUser(p.Root, va, p.Frames, p.LockassertPmap)
}

// unwindClone removes whatever pages Clone has already installed in
// child, in [0, upTo), on a failure partway through.
func unwindClone(child *proc.Proc_t, upTo int) {
	if npages := upTo / limits.PGSIZE; npages > 0 {
		pmap.UnmapRange(child.Root, child.Frames, &child.Resident, &child.SwapSlots, 0, npages, true, child.LockassertPmap)
	}
}

/// Clone copies the first sz bytes of parent's address space into child,
/// which must already have an empty address space (as.Create) with its
/// own frame allocator and swap backend. Every resident page is copied
/// byte-for-byte into a fresh child frame; every swapped-out page is
/// first faulted into the parent (never copying raw swap bytes directly)
/// and then copied the same way. Eviction in the child follows the same
/// FIFO-from-top policy as Grow whenever its resident cap is reached
/// mid-copy. On failure, whatever was installed in child is unwound and
/// the error is returned; parent is left untouched except for pages
/// faulted in along the way, which is an accepted side effect of cloning
/// a partially swapped-out address space.
func Clone(parent, child *proc.Proc_t, sz int) defs.Err_t {
	parent.LockPmap()
	defer parent.UnlockPmap()
	child.LockPmap()
	defer child.UnlockPmap()

	for a := 0; a < sz; a += limits.PGSIZE {
		ref, ok := pmap.Walk(parent.Root, uint(a), false, parent.Frames, parent.LockassertPmap)
		if !ok {
			defs.Panicf("as: clone: missing parent pte at va=%#x", a)
		}
		pte := *ref
		if !pte.Valid() && !pte.PagedOut() {
			defs.Panicf("as: clone: parent page neither resident nor swapped at va=%#x", a)
		}
		if pte.PagedOut() {
			if err := pager.FaultIn(&parent.Resident, &parent.SwapSlots, parent.Swap, parent.Frames, parent.TLB, uint(a), parent.LockassertPmap); err != 0 {
				unwindClone(child, a)
				return err
			}
			parent.Stat.IncFaultIns()
			ref, _ = pmap.Walk(parent.Root, uint(a), false, parent.Frames, parent.LockassertPmap)
			pte = *ref
		}

		if child.Resident.ResidentCount == limits.MAX_PHYS_PAGES {
			pager.EvictOne(&child.Resident, &child.SwapSlots, child.Swap, child.Frames, child.TLB, child.LockassertPmap)
			child.Stat.IncEvictions()
		}
		frame, ok := child.Frames.AllocFrame()
		if !ok {
			unwindClone(child, a)
			return defs.ENOMEM
		}
		copy(child.Frames.Bytes(frame), parent.Frames.Bytes(pte.Frame()))

		perm := pte.Flags() & (mem.R | mem.W | mem.X | mem.U)
		if err := pmap.MapRange(child.Root, uint(a), limits.PGSIZE, frame, perm, child.Frames, child.LockassertPmap); err != 0 {
			child.Frames.FreeFrame(frame)
			unwindClone(child, a)
			return err
		}
		cref, ok := pmap.Walk(child.Root, uint(a), false, child.Frames, child.LockassertPmap)
		if !ok {
			defs.Panicf("as: clone: child pte missing immediately after map_range at va=%#x", a)
		}
		if err := child.Resident.Reserve(uint(a), cref); err != 0 {
			*cref = 0
			child.Frames.FreeFrame(frame)
			unwindClone(child, a)
			return defs.ENOMEM
		}
	}
	child.Sz = sz
	child.Stat.IncClones()
	vmlog.Debug("clone", "parent_pid", parent.Pid, "child_pid", child.Pid, "sz", sz)
	return 0
}
