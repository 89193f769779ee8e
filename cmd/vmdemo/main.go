// vmdemo exercises the virtual memory core end to end: growing an
// address space past the resident cap, touching pages that are and
// aren't swapped out, cloning a process, and tearing both down.
// Grounded on original_source/user/ourTests.c's SanityTest/forkTest/
// pageFaultTest scenarios, restyled as a single deterministic run
// instead of three separate test functions.
package main

import (
	"fmt"
	"os"

	"github.com/riscvos/vmcore/as"
	"github.com/riscvos/vmcore/copyio"
	"github.com/riscvos/vmcore/defs"
	"github.com/riscvos/vmcore/limits"
	"github.com/riscvos/vmcore/mem"
	"github.com/riscvos/vmcore/pager"
	"github.com/riscvos/vmcore/proc"
	"github.com/riscvos/vmcore/swap"
	"github.com/riscvos/vmcore/vmlog"
)

func must(what string, err defs.Err_t) {
	if err != 0 {
		fmt.Fprintf(os.Stderr, "%s: err=%d\n", what, err)
		os.Exit(1)
	}
}

func newProc(pid defs.Pid_t, fa mem.FrameAllocator) *proc.Proc_t {
	p := proc.New(pid, fa, swap.NewMemBackend())
	must("create", as.Create(p))
	return p
}

func main() {
	fa := mem.NewArena(limits.MAX_PHYS_PAGES * 3)
	parent := newProc(1, fa)

	fmt.Println("// allocate 20 pages //")
	sz, err := as.Grow(parent, 0, 20*limits.PGSIZE)
	must("grow", err)
	fmt.Printf("parent size now %d bytes (%d pages), %d pages resident, %d evicted so far\n",
		sz, sz/limits.PGSIZE, parent.Resident.ResidentCount, parent.Stat.Snapshot().Evictions)

	fmt.Println("// no fault expected: pages 0-2 were never victims of the FIFO-from-top scan //")
	for i := 0; i < 3; i++ {
		va := uint(i * limits.PGSIZE)
		buf := []byte{1}
		must("copy-out", copyio.CopyOut(parent, va, buf))
	}

	fmt.Println("// fault-in expected: pages 15-17 were swapped out as later pages pushed the resident set over its cap //")
	for i := 15; i < 18; i++ {
		va := uint(i * limits.PGSIZE)
		if slot, ok := parent.Resident.FindByVA(va); ok && !slot.OnPhys {
			vmlog.Info("page is swapped out, faulting in before touching it", "va", va)
			// CopyOut never faults in by design; the kernel's trap
			// handler would do this before retrying the access, so the
			// demo does the same explicitly.
			must("fault-in", faultInVia(parent, va))
		}
		buf := []byte{1}
		must("copy-out", copyio.CopyOut(parent, va, buf))
	}

	fmt.Println("// clone //")
	child := newProc(2, fa)
	must("clone", as.Clone(parent, child, sz))
	fmt.Printf("child size now %d bytes, %d pages resident, %d faulted in during clone\n",
		child.Sz, child.Resident.ResidentCount, parent.Stat.Snapshot().FaultIns)

	var got [1]byte
	va17 := uint(17 * limits.PGSIZE)
	if slot, ok := child.Resident.FindByVA(va17); ok && !slot.OnPhys {
		must("fault-in", faultInVia(child, va17))
	}
	must("copy-in", copyio.CopyIn(child, va17, got[:]))
	fmt.Printf("child page 17 reads back %d\n", got[0])

	fmt.Println("// shrink and destroy //")
	as.Shrink(parent, sz, 5*limits.PGSIZE)
	as.Destroy(parent, 5*limits.PGSIZE)
	as.Destroy(child, child.Sz)

	fmt.Println("finished demo successfully")
}

// faultInVia is a thin stand-in for the kernel's page-fault trap handler:
// a real kernel calls into pager.FaultIn from the trap path with the
// faulting va. The demo has no trap mechanism, so it checks and calls
// directly.
func faultInVia(p *proc.Proc_t, va uint) defs.Err_t {
	p.LockPmap()
	defer p.UnlockPmap()
	return pager.FaultIn(&p.Resident, &p.SwapSlots, p.Swap, p.Frames, p.TLB, va, p.LockassertPmap)
}
