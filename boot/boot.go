// Package boot installs the kernel's own identity-mapped regions into a
// fresh address space: MMIO device windows, the kernel text and data
// segments, and the trampoline page at the top of the address space.
// Grounded on original_source/kernel/vm.c's kvmmake/kvmmap.
package boot

import (
	"github.com/riscvos/vmcore/defs"
	"github.com/riscvos/vmcore/limits"
	"github.com/riscvos/vmcore/mem"
	"github.com/riscvos/vmcore/pmap"
)

/// Region describes one identity-mapped window to install: size bytes
/// starting at VA, backed by the frame at PA, with the given permission
/// bits.
type Region struct {
	Name string
	VA   uint
	PA   mem.Pa_t
	Size int
	Perm mem.Pa_t
}

/// Trampoline is the highest page of the address space, mapped
/// executable and read-only for trap entry/exit, exactly as
/// original_source/kernel/vm.c maps TRAMPOLINE.
const Trampoline uint = uint(limits.MAXVA) - uint(limits.PGSIZE)

/// KernelRegions returns the fixed set of kernel-side mappings a fresh
/// boot page table needs: the UART, the virtio MMIO disk window, the
/// PLIC, kernel text, and kernel data/RAM — identity-mapped, the same
/// shape as kvmmake, plus the trampoline page mapped from trampolinePA.
//
// uartPA, virtioPA, and plicPA are identity-mapped device windows; the
// caller supplies them rather than this package hardcoding a particular
// board's physical layout. textPA/textSize and dataPA/dataSize describe
// the kernel's own text and data segments, and trampolinePA the frame
// holding the trap-vector trampoline code.
func KernelRegions(uartPA, virtioPA, plicPA mem.Pa_t, textPA mem.Pa_t, textSize int, dataPA mem.Pa_t, dataSize int, trampolinePA mem.Pa_t) []Region {
	return []Region{
		{Name: "uart", VA: uint(uartPA), PA: uartPA, Size: limits.PGSIZE, Perm: mem.R | mem.W},
		{Name: "virtio0", VA: uint(virtioPA), PA: virtioPA, Size: limits.PGSIZE, Perm: mem.R | mem.W},
		{Name: "plic", VA: uint(plicPA), PA: plicPA, Size: 0x400000, Perm: mem.R | mem.W},
		{Name: "kernel-text", VA: uint(textPA), PA: textPA, Size: textSize, Perm: mem.R | mem.X},
		{Name: "kernel-data", VA: uint(dataPA), PA: dataPA, Size: dataSize, Perm: mem.R | mem.W},
		{Name: "trampoline", VA: Trampoline, PA: trampolinePA, Size: limits.PGSIZE, Perm: mem.R | mem.X},
	}
}

/// InstallBootMap maps every region into root, in order, returning the
/// first error encountered (without unwinding prior regions — boot-time
/// mapping failure is unrecoverable and the caller should panic, not
/// retry). There is no process yet to hold a VM lock, so the walker's
/// lock assertion is a no-op here.
func InstallBootMap(root mem.Pa_t, fa mem.FrameAllocator, regions []Region) defs.Err_t {
	noLock := func() {}
	for _, r := range regions {
		if err := pmap.MapRange(root, r.VA, r.Size, r.PA, r.Perm, fa, noLock); err != 0 {
			return err
		}
	}
	return 0
}
