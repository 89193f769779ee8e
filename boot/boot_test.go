package boot

import (
	"testing"

	"github.com/riscvos/vmcore/limits"
	"github.com/riscvos/vmcore/mem"
	"github.com/riscvos/vmcore/pmap"
)

func TestKernelRegionsIncludesTrampolineAtTopOfVA(t *testing.T) {
	regions := KernelRegions(0x10000000, 0x10001000, 0x0c000000, 0x80000000, 0x100000, 0x80100000, 0x100000, 0x87000000)

	var tramp *Region
	for i := range regions {
		if regions[i].Name == "trampoline" {
			tramp = &regions[i]
		}
	}
	if tramp == nil {
		t.Fatal("KernelRegions did not include a trampoline region")
	}
	if tramp.VA != Trampoline {
		t.Fatalf("trampoline VA = %#x, want %#x", tramp.VA, Trampoline)
	}
	if tramp.VA+uint(tramp.Size) != uint(limits.MAXVA) {
		t.Fatalf("trampoline region does not end at MAXVA: VA=%#x size=%#x MAXVA=%#x", tramp.VA, tramp.Size, limits.MAXVA)
	}
}

func TestInstallBootMapMapsEveryRegion(t *testing.T) {
	fa := mem.NewArena(64)
	root, ok := fa.AllocFrame()
	if !ok {
		t.Fatal("AllocFrame failed for root")
	}

	regions := KernelRegions(0x10000000, 0x10001000, 0x0c000000, 0x80000000, limits.PGSIZE, 0x80100000, limits.PGSIZE, 0x87000000)
	if err := InstallBootMap(root, fa, regions); err != 0 {
		t.Fatalf("InstallBootMap failed: err=%d", err)
	}

	for _, r := range regions {
		ref, ok := pmap.Walk(root, r.VA, false, fa, func() {})
		if !ok {
			t.Fatalf("region %q: pte missing after InstallBootMap", r.Name)
		}
		if !ref.Valid() {
			t.Fatalf("region %q: pte not valid after InstallBootMap", r.Name)
		}
		if ref.Frame() != r.PA {
			t.Fatalf("region %q: pte frame = %#x, want %#x", r.Name, ref.Frame(), r.PA)
		}
		if ref.Flags()&mem.RWX != r.Perm&mem.RWX {
			t.Fatalf("region %q: pte perm = %#x, want %#x", r.Name, ref.Flags()&mem.RWX, r.Perm&mem.RWX)
		}
	}
}

func TestInstallBootMapPropagatesMapError(t *testing.T) {
	fa := mem.NewArena(1)
	root, ok := fa.AllocFrame()
	if !ok {
		t.Fatal("AllocFrame failed for root")
	}

	// the arena has no frames left for intermediate page tables, so
	// mapping any region must fail with ENOMEM rather than panic.
	regions := []Region{{Name: "uart", VA: 0x10000000, PA: 0x10000000, Size: limits.PGSIZE, Perm: mem.R | mem.W}}
	if err := InstallBootMap(root, fa, regions); err == 0 {
		t.Fatal("InstallBootMap succeeded with an exhausted arena, want ENOMEM")
	}
}
