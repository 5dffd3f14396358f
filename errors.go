package gridentry

import "errors"

// ErrRemoved is returned by every in-lock operation once a cell has become
// obsolete. Callers must discard the cell and re-fetch a fresh one from
// the owning map.
var ErrRemoved = errors.New("gridentry: entry obsolete, re-fetch required")

// ErrFilterFailed is returned by a peek whose fail-fast filter rejected the
// current value. It is a sentinel, never a panic.
var ErrFilterFailed = errors.New("gridentry: filter rejected value")

// ErrNoValue indicates an operation that requires a present value (e.g.
// valueBytesUnlocked) was called while the value slot is empty.
var ErrNoValue = errors.New("gridentry: no value present")

// ErrLockNotHeld is a sanity-assert failure: a transactional
// caller invoked an operation that requires it to already hold the cell
// lock via its own bookkeeping, and it does not. This indicates a bug in
// the calling code, not a runtime condition a caller can recover from.
var ErrLockNotHeld = errors.New("gridentry: sanity check failed: lock not held by caller")

// errNoAllocator is returned internally when off-heap-values-only mode is
// configured but no OffheapAllocator was supplied.
var errNoAllocator = errors.New("gridentry: off-heap values configured without an allocator")
