package wal_manager

import (
	"errors"
	"os"
	"sync"
)

/*

WAL File
────────────────────────────────────
| Record | Record | Record | ...   |
────────────────────────────────────

Each Record:
──────────────────────────────────────────────────────
| LSN (8) | PAGE (8) | LEN (4) | CRC (4) | DATA (LEN) |
──────────────────────────────────────────────────────

DATA is the snappy-compressed full page image. Every Commit ends its
batch with a marker record (PAGE = CommitPageID, LEN = 0); replay only
applies batches closed by a marker, so a torn final batch is discarded
whole instead of half-applied. The file is truncated to empty after a
successful checkpoint.

*/

const RecordHeaderSize = 24

// CommitPageID marks the record that closes a commit batch. Page ids of
// real pages are never negative.
const CommitPageID int64 = -1

var (
	// ErrCorrupt reports a damaged record that is not the torn tail of an
	// unclean shutdown: a checksum or sequence failure with further records
	// behind it. Replay refuses to continue past it.
	ErrCorrupt = errors.New("wal: corrupt record before end of log")

	ErrClosed = errors.New("wal: log is closed")
)

// WAL is an append-only log of page-write intents. Records are staged in
// memory by Append and only reach the file on Commit, so a failed operation
// never leaves half of its pages in the log.
type WAL struct {
	filePath string
	file     *os.File
	pageSize int
	lsn      uint64
	size     int64
	pending  []Record
	mu       sync.Mutex
}

// Record is one page-write intent.
type Record struct {
	LSN    uint64
	PageID int64
	Data   []byte // snappy-compressed page image
	CRC    uint32
}
