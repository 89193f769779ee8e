// Package proc holds the process-level state the virtual memory core
// needs but does not own: the address-space root, the frame allocator,
// the resident-set table, the swap-file slot map and backend, and the
// lock serializing mutating VM operations.
//
// Proc_t is passed explicitly into every core entry point, replacing
// biscuit's implicit current_process() global lookup.
package proc

import (
	"sync"

	"github.com/riscvos/vmcore/defs"
	"github.com/riscvos/vmcore/mem"
	"github.com/riscvos/vmcore/pager"
	"github.com/riscvos/vmcore/swap"
)

/// Stats accumulates per-process paging counters, grounded on biscuit's
/// accnt.Accnt_t pattern: a mutex-guarded snapshot of running totals.
type Stats struct {
	mu        sync.Mutex
	Grows     int
	Shrinks   int
	Clones    int
	Evictions int
	FaultIns  int
}

/// Snapshot returns a consistent copy of the counters.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Grows: s.Grows, Shrinks: s.Shrinks, Clones: s.Clones,
		Evictions: s.Evictions, FaultIns: s.FaultIns}
}

func (s *Stats) bump(field *int) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

/// IncGrows records one completed Grow.
func (s *Stats) IncGrows() { s.bump(&s.Grows) }

/// IncShrinks records one completed Shrink.
func (s *Stats) IncShrinks() { s.bump(&s.Shrinks) }

/// IncClones records one completed Clone.
func (s *Stats) IncClones() { s.bump(&s.Clones) }

/// IncEvictions records one EvictOne.
func (s *Stats) IncEvictions() { s.bump(&s.Evictions) }

/// IncFaultIns records one FaultIn.
func (s *Stats) IncFaultIns() { s.bump(&s.FaultIns) }

/// Proc_t is one process's virtual-memory state: the address-space root,
/// the frame allocator it draws from, its resident-set table, its
/// swap-file slot map and I/O backend, and the lock that serializes every
/// mutating VM operation on it.
type Proc_t struct {
	sync.Mutex
	pgfltaken bool

	Pid    defs.Pid_t
	Root   mem.Pa_t
	Sz     int
	Frames mem.FrameAllocator

	Resident  pager.ResidentSet
	SwapSlots swap.SlotMap
	Swap      swap.Backend
	TLB       pager.TLBFlusher

	Stat Stats
}

/// New creates a process descriptor with the given identity, frame
/// allocator, and swap backend. The caller must set Root once the
/// address space has been created (as.Create), and may override TLB;
/// the default is a no-op, suitable for single-process unit tests.
func New(pid defs.Pid_t, fa mem.FrameAllocator, backend swap.Backend) *Proc_t {
	return &Proc_t{
		Pid:    pid,
		Frames: fa,
		Swap:   backend,
		TLB:    func() {},
	}
}

/// LockPmap acquires the process's VM lock and marks that page-table
/// manipulation is in progress, mirroring biscuit's Vm_t.Lock_pmap.
func (p *Proc_t) LockPmap() {
	p.Lock()
	p.pgfltaken = true
}

/// UnlockPmap releases the VM lock.
func (p *Proc_t) UnlockPmap() {
	p.pgfltaken = false
	p.Unlock()
}

/// LockassertPmap panics if the VM lock is not held, guarding entry
/// points that are only safe to call with it held.
func (p *Proc_t) LockassertPmap() {
	if !p.pgfltaken {
		defs.Panicf("proc: vm lock must be held")
	}
}
