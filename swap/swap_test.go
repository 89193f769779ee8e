package swap

import (
	"testing"

	"github.com/riscvos/vmcore/limits"
)

func TestSlotMapAcquireExhaustion(t *testing.T) {
	var m SlotMap
	seen := make(map[int]bool)
	for i := 0; i < limits.MAX_DISC_PAGES; i++ {
		slot, ok := m.Acquire()
		if !ok {
			t.Fatalf("Acquire failed on slot %d of %d", i, limits.MAX_DISC_PAGES)
		}
		if seen[slot] {
			t.Fatalf("Acquire returned slot %d twice", slot)
		}
		seen[slot] = true
	}
	if _, ok := m.Acquire(); ok {
		t.Fatal("Acquire succeeded past capacity")
	}
	if got := m.InUse(); got != limits.MAX_DISC_PAGES {
		t.Fatalf("InUse() = %d, want %d", got, limits.MAX_DISC_PAGES)
	}
}

func TestSlotMapReleaseReusable(t *testing.T) {
	var m SlotMap
	slot, _ := m.Acquire()
	m.Release(slot)
	if got := m.InUse(); got != 0 {
		t.Fatalf("InUse() = %d after release, want 0", got)
	}
	again, ok := m.Acquire()
	if !ok || again != slot {
		t.Fatalf("Acquire after release = (%d, %v), want (%d, true)", again, ok, slot)
	}
}

func TestMemBackendRoundTrip(t *testing.T) {
	b := NewMemBackend()
	want := make([]byte, limits.PGSIZE)
	for i := range want {
		want[i] = byte(i)
	}
	if err := b.WriteSlot(3, want); err != nil {
		t.Fatalf("WriteSlot: %v", err)
	}
	got := make([]byte, limits.PGSIZE)
	if err := b.ReadSlot(3, got); err != nil {
		t.Fatalf("ReadSlot: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestMemBackendSlotsIndependent(t *testing.T) {
	b := NewMemBackend()
	a := make([]byte, limits.PGSIZE)
	a[0] = 1
	b.WriteSlot(0, a)
	other := make([]byte, limits.PGSIZE)
	b.ReadSlot(1, other)
	if other[0] != 0 {
		t.Fatal("write to slot 0 leaked into slot 1")
	}
}
