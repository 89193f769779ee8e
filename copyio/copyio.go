// Package copyio implements the cross-address-space copy routines:
// CopyOut, CopyIn, CopyInStr. Grounded on biscuit/src/vm/userbuf.go's
// Userbuf_t._tx page-at-a-time splitting and original_source/kernel/
// vm.c's copyout/copyin/copyinstr.
package copyio

import (
	"github.com/riscvos/vmcore/defs"
	"github.com/riscvos/vmcore/limits"
	"github.com/riscvos/vmcore/mem"
	"github.com/riscvos/vmcore/pmap"
	"github.com/riscvos/vmcore/proc"
)

// pageRemain returns how many bytes of a page-sized frame remain from
// offset va to the next page boundary.
func pageRemain(va uint) int {
	return limits.PGSIZE - int(va&uint(limits.PGOFFSET))
}

/// CopyOut writes len(src) bytes from src into p's address space starting
/// at va, splitting the transfer at page boundaries. It never faults in a
/// swapped-out page: a copy that lands on PG-flagged memory is a bad
/// address, not a trigger for demand paging. It returns defs.EFAULT if
/// any page in range is absent, not resident, or not user-accessible.
func CopyOut(p *proc.Proc_t, va uint, src []byte) defs.Err_t {
	p.LockPmap()
	defer p.UnlockPmap()
	for len(src) > 0 {
		frame, ok := pmap.WalkUser(p.Root, mem.PageOf(va), p.Frames, p.LockassertPmap)
		if !ok {
			return defs.EFAULT
		}
		off := int(va & uint(limits.PGOFFSET))
		n := pageRemain(va)
		if n > len(src) {
			n = len(src)
		}
		copy(p.Frames.Bytes(frame)[off:off+n], src[:n])
		src = src[n:]
		va += uint(n)
	}
	return 0
}

/// CopyIn reads len(dst) bytes from p's address space starting at va into
/// dst, splitting at page boundaries, with the same no-fault-in,
/// EFAULT-on-absent behavior as CopyOut.
func CopyIn(p *proc.Proc_t, va uint, dst []byte) defs.Err_t {
	p.LockPmap()
	defer p.UnlockPmap()
	for len(dst) > 0 {
		frame, ok := pmap.WalkUser(p.Root, mem.PageOf(va), p.Frames, p.LockassertPmap)
		if !ok {
			return defs.EFAULT
		}
		off := int(va & uint(limits.PGOFFSET))
		n := pageRemain(va)
		if n > len(dst) {
			n = len(dst)
		}
		copy(dst[:n], p.Frames.Bytes(frame)[off:off+n])
		dst = dst[n:]
		va += uint(n)
	}
	return 0
}

/// CopyInStr reads a NUL-terminated string from p's address space
/// starting at va into buf, stopping at (and not including) the
/// terminator. It returns defs.ENAMETOOLONG if the terminator is not
/// found within len(buf) bytes, and defs.EFAULT under the same
/// absent-page conditions as CopyIn. The number of bytes written
/// (excluding the terminator) is returned as n.
func CopyInStr(p *proc.Proc_t, va uint, buf []byte) (n int, err defs.Err_t) {
	p.LockPmap()
	defer p.UnlockPmap()
	for n < len(buf) {
		frame, ok := pmap.WalkUser(p.Root, mem.PageOf(va), p.Frames, p.LockassertPmap)
		if !ok {
			return n, defs.EFAULT
		}
		off := int(va & uint(limits.PGOFFSET))
		page := p.Frames.Bytes(frame)[off:]
		max := pageRemain(va)
		for i := 0; i < max; i++ {
			if page[i] == 0 {
				return n, 0
			}
			if n >= len(buf) {
				return n, defs.ENAMETOOLONG
			}
			buf[n] = page[i]
			n++
			va++
		}
	}
	return n, defs.ENAMETOOLONG
}
