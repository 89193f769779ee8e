package pager

import (
	"testing"

	"github.com/riscvos/vmcore/limits"
	"github.com/riscvos/vmcore/mem"
	"github.com/riscvos/vmcore/swap"
)

var noLock = func() {}

// fillResident reserves n resident slots at consecutive page-aligned
// virtual addresses, storing each page's PTE (with its freshly allocated
// frame) in ptes so the test can assert on eviction/fault-in without a
// real page table in the loop.
func fillResident(t *testing.T, rs *ResidentSet, fa mem.FrameAllocator, ptes []mem.Pa_t, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		frame, ok := fa.AllocFrame()
		if !ok {
			t.Fatalf("AllocFrame failed filling slot %d", i)
		}
		va := uint(i * limits.PGSIZE)
		ptes[i] = mem.MakePTE(frame, mem.R|mem.W|mem.U|mem.V)
		if err := rs.Reserve(va, &ptes[i]); err != 0 {
			t.Fatalf("Reserve(%d) failed: err=%d", i, err)
		}
	}
}

func TestVictimScansHighestIndexFirst(t *testing.T) {
	fa := mem.NewArena(limits.MAX_PHYS_PAGES + 4)
	var rs ResidentSet
	ptes := make([]mem.Pa_t, limits.MAX_TOTAL_PAGES)
	fillResident(t, &rs, fa, ptes, 4)

	victim, ok := rs.victim()
	if !ok {
		t.Fatal("victim() found nothing with resident pages present")
	}
	if victim.VA != uint(3*limits.PGSIZE) {
		t.Fatalf("victim VA = %#x, want the highest-index resident slot (%#x)", victim.VA, uint(3*limits.PGSIZE))
	}
}

func TestEvictOneWritesSwapAndClearsResident(t *testing.T) {
	fa := mem.NewArena(limits.MAX_PHYS_PAGES + 4)
	backend := swap.NewMemBackend()
	var slots swap.SlotMap
	var rs ResidentSet
	ptes := make([]mem.Pa_t, limits.MAX_TOTAL_PAGES)
	fillResident(t, &rs, fa, ptes, 3)

	flushed := false
	EvictOne(&rs, &slots, backend, fa, func() { flushed = true }, noLock)

	if !flushed {
		t.Fatal("EvictOne did not call the TLB flusher")
	}
	if rs.ResidentCount != 2 {
		t.Fatalf("ResidentCount = %d, want 2", rs.ResidentCount)
	}
	victimPTE := ptes[2]
	if victimPTE.Valid() || !victimPTE.PagedOut() {
		t.Fatalf("evicted PTE = %#x, want PG set and V clear", victimPTE)
	}
	if slots.InUse() != 1 {
		t.Fatalf("swap slots in use = %d, want 1", slots.InUse())
	}
}

func TestEvictOnePanicsWithNoResidentPage(t *testing.T) {
	fa := mem.NewArena(4)
	backend := swap.NewMemBackend()
	var slots swap.SlotMap
	var rs ResidentSet
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic evicting from an empty resident set")
		}
	}()
	EvictOne(&rs, &slots, backend, fa, func() {}, noLock)
}

func TestFaultInRoundTrip(t *testing.T) {
	fa := mem.NewArena(limits.MAX_PHYS_PAGES + 4)
	backend := swap.NewMemBackend()
	var slots swap.SlotMap
	var rs ResidentSet
	ptes := make([]mem.Pa_t, limits.MAX_TOTAL_PAGES)
	fillResident(t, &rs, fa, ptes, 2)

	// stamp a recognizable byte into the page about to be evicted, so we
	// can tell the fault-in actually round-tripped it through swap.
	victimFrame := ptes[1].Frame()
	fa.Bytes(victimFrame)[0] = 0x42

	EvictOne(&rs, &slots, backend, fa, func() {}, noLock)
	if err := FaultIn(&rs, &slots, backend, fa, func() {}, uint(1*limits.PGSIZE), noLock); err != 0 {
		t.Fatalf("FaultIn failed: err=%d", err)
	}

	pte := ptes[1]
	if !pte.Valid() || pte.PagedOut() {
		t.Fatalf("faulted-in PTE = %#x, want V set and PG clear", pte)
	}
	if got := fa.Bytes(pte.Frame())[0]; got != 0x42 {
		t.Fatalf("faulted-in page byte 0 = %#x, want 0x42", got)
	}
	if slots.InUse() != 0 {
		t.Fatalf("swap slots in use = %d after fault-in, want 0", slots.InUse())
	}
}

func TestFaultInMissingVAIsEFAULT(t *testing.T) {
	fa := mem.NewArena(4)
	backend := swap.NewMemBackend()
	var slots swap.SlotMap
	var rs ResidentSet
	err := FaultIn(&rs, &slots, backend, fa, func() {}, 0x1000, noLock)
	if err == 0 {
		t.Fatal("expected an error faulting in an address with no resident-set entry")
	}
}

func TestFaultInAlreadyResidentIsEFAULT(t *testing.T) {
	fa := mem.NewArena(limits.MAX_PHYS_PAGES + 4)
	backend := swap.NewMemBackend()
	var slots swap.SlotMap
	var rs ResidentSet
	ptes := make([]mem.Pa_t, limits.MAX_TOTAL_PAGES)
	fillResident(t, &rs, fa, ptes, 1)

	if err := FaultIn(&rs, &slots, backend, fa, func() {}, 0, noLock); err == 0 {
		t.Fatal("expected an error faulting in a page that is already resident")
	}
}
