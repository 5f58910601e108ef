package btree

import "errors"

// Error kinds, corresponding to the original C++ lab's ERROR_T enum
// (ErrCorruption ~ ERROR_INSANE, ErrNotImplemented ~ ERROR_UNIMPL) plus
// two kinds the original never needed: ErrConflict, for uniqueness
// enforcement it never did, and ErrOutOfRange, for codec bounds checks it
// left to undefined behavior.
var (
	ErrNoSpace        = errors.New("btree: no space: free list exhausted")
	ErrNonexistent    = errors.New("btree: key does not exist")
	ErrConflict       = errors.New("btree: key already exists")
	ErrOutOfRange     = errors.New("btree: slot index out of range")
	ErrCorruption     = errors.New("btree: tree structure is corrupt")
	ErrIOError        = errors.New("btree: underlying cache I/O error")
	ErrNotImplemented = errors.New("btree: operation not implemented")
)
