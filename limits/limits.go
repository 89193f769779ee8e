// Package limits holds the system-wide constants that bound the virtual
// memory core: page geometry, the maximum virtual address, and the
// per-process resident/swap caps.
package limits

/// PGSHIFT is the base-2 exponent of the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size in bytes of a single page.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks the in-page byte offset of a virtual address.
const PGOFFSET uint = uint(PGSIZE) - 1

/// MAXVA is one past the highest virtual address the walker accepts;
/// bits 38 and above of a virtual address must be zero.
const MAXVA uint = 1 << 38

/// MAX_PHYS_PAGES is the maximum number of resident frames a process may
/// hold at once.
const MAX_PHYS_PAGES int = 16

/// MAX_DISC_PAGES is the number of page-sized slots in a process's swap
/// file.
const MAX_DISC_PAGES int = 16

/// MAX_TOTAL_PAGES is the maximum number of pages (resident + swapped) a
/// process's resident-set table can track at once.
const MAX_TOTAL_PAGES int = MAX_PHYS_PAGES + MAX_DISC_PAGES

/// Fanout is the number of entries in one page-table page (one PTE per
/// slot of an index level).
const Fanout int = 512

/// Levels is the number of radix levels the walker descends (L2, L1, L0).
const Levels int = 3
