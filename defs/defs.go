// Package defs holds the types and error codes shared across the virtual
// memory core: a small negative-valued error code returned by value
// instead of an error interface.
package defs

import (
	"fmt"
	"runtime"
)

/// Err_t is a kernel-style error code: zero means success, otherwise one
/// of the negative constants below.
type Err_t int

const (
	/// EFAULT marks a BadAddress failure: copy_in/copy_out/copy_in_str
	/// walked off a mapped, user-accessible page.
	EFAULT Err_t = -1
	/// ENOMEM marks an OOM failure: no physical frame or page-table page
	/// was available. Recoverable by rollback in Grow/Clone.
	ENOMEM Err_t = -2
	/// ENAMETOOLONG marks a CopyInStr failure: no NUL was found within
	/// the caller's max.
	ENAMETOOLONG Err_t = -3
)

/// ESwapFull is not an Err_t: swap exhaustion during eviction is fatal to
/// the offending process, so it is surfaced as a panic via Panicf rather
/// than returned.
const ESwapFull = "swap file exhausted: no free swap slot for eviction"

/// Tid_t identifies a thread within a process.
type Tid_t int

/// Pid_t identifies a process.
type Pid_t int

/// Panicf aborts the kernel with a formatted message and the caller's
/// stack trace, used for every CorruptInvariant violation (remap of a
/// valid PTE, unmap of an absent mapping, freeing a page table that still
/// has leaves, walking past MAXVA).
func Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	trace := ""
	for {
		f, more := frames.Next()
		trace += fmt.Sprintf("\t<- %s:%d\n", f.File, f.Line)
		if !more {
			break
		}
	}
	panic(fmt.Sprintf("%s\n%s", msg, trace))
}
