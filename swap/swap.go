// Package swap implements the per-process swap-file slot map and the
// swap_write/swap_read external collaborators. A complete, testable repo
// needs a concrete backend instance, so this package supplies one
// grounded on biscuit/src/fs/blk.go's block-offset-indexed I/O shape.
package swap

import (
	"io"
	"os"
	"sync"

	"github.com/riscvos/vmcore/limits"
)

/// Backend is the swap_write/swap_read collaborator: page-sized I/O to a
/// per-process swap file addressed by slot.
type Backend interface {
	/// WriteSlot writes one page's worth of buf to the given slot.
	WriteSlot(slot int, buf []byte) error
	/// ReadSlot reads one page's worth of data from the given slot into
	/// buf.
	ReadSlot(slot int, buf []byte) error
	/// Close releases any resources backing the swap file. Its lifetime
	/// is exactly the owning process's lifetime.
	Close() error
}

/// FileBackend is a real per-process swap file on disk, slot-addressed,
/// no header or framing, exactly MAX_DISC_PAGES x PGSIZE bytes.
type FileBackend struct {
	f *os.File
}

/// NewFileBackend creates (or truncates) the swap file at path and
/// preallocates it to MAX_DISC_PAGES x PGSIZE bytes.
func NewFileBackend(path string) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	size := int64(limits.MAX_DISC_PAGES * limits.PGSIZE)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	return &FileBackend{f: f}, nil
}

func slotOffset(slot int) int64 {
	return int64(slot) * int64(limits.PGSIZE)
}

/// WriteSlot writes buf (exactly PGSIZE bytes) to the file at slot's
/// offset.
func (b *FileBackend) WriteSlot(slot int, buf []byte) error {
	_, err := b.f.WriteAt(buf[:limits.PGSIZE], slotOffset(slot))
	return err
}

/// ReadSlot reads PGSIZE bytes from the file at slot's offset into buf.
func (b *FileBackend) ReadSlot(slot int, buf []byte) error {
	_, err := io.ReadFull(io.NewSectionReader(b.f, slotOffset(slot), int64(limits.PGSIZE)), buf[:limits.PGSIZE])
	return err
}

/// Close closes the underlying file and removes it: the swap file's
/// lifetime is exactly the process's lifetime.
func (b *FileBackend) Close() error {
	name := b.f.Name()
	err := b.f.Close()
	os.Remove(name)
	return err
}

/// MemBackend is an in-memory swap backend for tests: a fixed array of
/// MAX_DISC_PAGES page-sized slots, allocated with the backend itself.
type MemBackend struct {
	mu    sync.Mutex
	slots [limits.MAX_DISC_PAGES][limits.PGSIZE]byte
}

/// NewMemBackend returns a ready-to-use in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{}
}

/// WriteSlot copies buf into the in-memory slot.
func (b *MemBackend) WriteSlot(slot int, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.slots[slot][:], buf)
	return nil
}

/// ReadSlot copies the in-memory slot into buf.
func (b *MemBackend) ReadSlot(slot int, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(buf, b.slots[slot][:])
	return nil
}

/// Close is a no-op for the in-memory backend.
func (b *MemBackend) Close() error { return nil }

/// SlotMap tracks which page-sized slots of the swap file are in use,
/// the data model's "fixed array of MAX_DISC_PAGES free/used markers".
type SlotMap struct {
	used [limits.MAX_DISC_PAGES]bool
}

/// Acquire finds and reserves a free slot. ok is false if the swap file
/// is exhausted; the caller decides how to react — eviction treats it as
/// fatal.
func (m *SlotMap) Acquire() (slot int, ok bool) {
	for i, u := range m.used {
		if !u {
			m.used[i] = true
			return i, true
		}
	}
	return 0, false
}

/// Release frees a slot for reuse.
func (m *SlotMap) Release(slot int) {
	m.used[slot] = false
}

/// InUse reports how many slots are currently occupied; it must always
/// equal the number of swapped-out entries across every resident-set
/// table drawing from this slot map.
func (m *SlotMap) InUse() int {
	n := 0
	for _, u := range m.used {
		if u {
			n++
		}
	}
	return n
}
