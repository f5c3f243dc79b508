package bptree

import "errors"

var (
	// ErrKeyNotFound reports absence from Get. Delete of an absent key is
	// a no-op, not an error.
	ErrKeyNotFound = errors.New("bptree: key not found")

	// ErrCorruptNode means a page decoded into something that is not a
	// valid node: bad type tag, key count beyond the order, or truncated
	// entries. The page store may be damaged; the engine never retries.
	ErrCorruptNode = errors.New("bptree: corrupt node page")

	// ErrCorruptOverflowChain means an overflow chain walk hit a freed,
	// reused or out-of-range page.
	ErrCorruptOverflowChain = errors.New("bptree: corrupt overflow chain")

	// ErrPageOverflow means an encoded node did not fit its page. Split
	// sizing guarantees this never happens; seeing it is a bug, not a
	// recoverable condition.
	ErrPageOverflow = errors.New("bptree: node does not fit page")

	ErrKeyTooLarge     = errors.New("bptree: key exceeds configured key size")
	ErrTreeClosed      = errors.New("bptree: tree is closed")
	ErrBatchOutOfOrder = errors.New("bptree: batch insert keys must be ascending and beyond existing keys")
)
