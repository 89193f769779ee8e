package proc

import (
	"testing"

	"github.com/riscvos/vmcore/defs"
	"github.com/riscvos/vmcore/mem"
	"github.com/riscvos/vmcore/swap"
)

func TestLockassertPmapPanicsWithoutLock(t *testing.T) {
	p := New(1, mem.NewArena(1), swap.NewMemBackend())
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic asserting the lock without holding it")
		}
	}()
	p.LockassertPmap()
}

func TestLockUnlockPmap(t *testing.T) {
	p := New(1, mem.NewArena(1), swap.NewMemBackend())
	p.LockPmap()
	p.LockassertPmap() // must not panic
	p.UnlockPmap()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic asserting the lock after UnlockPmap")
		}
	}()
	p.LockassertPmap()
}

func TestStatsSnapshotIsIndependent(t *testing.T) {
	var s Stats
	s.IncGrows()
	s.IncGrows()
	s.IncEvictions()

	snap := s.Snapshot()
	if snap.Grows != 2 || snap.Evictions != 1 {
		t.Fatalf("snapshot = {Grows:%d Evictions:%d}, want Grows=2 Evictions=1", snap.Grows, snap.Evictions)
	}
	s.IncGrows()
	if snap.Grows != 2 {
		t.Fatal("snapshot mutated after further increments to the live counter")
	}
}

func TestNewDefaultsToNoOpFlusher(t *testing.T) {
	p := New(defs.Pid_t(7), mem.NewArena(1), swap.NewMemBackend())
	p.TLB() // must not panic
	if p.Pid != 7 {
		t.Fatalf("Pid = %d, want 7", p.Pid)
	}
}
