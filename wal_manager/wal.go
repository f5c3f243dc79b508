package wal_manager

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
)

// OpenWAL opens or creates the log file. It does not read the file; the
// tree runs Replay once right after opening and decides what to do with
// whatever the log holds.
func OpenWAL(path string, pageSize int) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("wal: stat %s: %w", path, err)
	}

	return &WAL{
		filePath: path,
		file:     file,
		pageSize: pageSize,
		size:     stat.Size(),
	}, nil
}

// Append stages a page image under the next sequence number. Nothing
// reaches the file until Commit.
func (w *WAL) Append(pageID int64, image []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrClosed
	}
	if len(image) != w.pageSize {
		return fmt.Errorf("wal: append page %d: image is %d bytes, page size is %d",
			pageID, len(image), w.pageSize)
	}

	data := snappy.Encode(nil, image)
	w.lsn++
	w.pending = append(w.pending, Record{
		LSN:    w.lsn,
		PageID: pageID,
		Data:   data,
		CRC:    calculateCRC(w.lsn, pageID, data),
	})
	return nil
}

// Commit writes all staged records plus a closing marker in one batch
// and fsyncs. This is the durability point of a tree mutation: replay
// ignores any batch whose marker never reached the file.
func (w *WAL) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrClosed
	}
	if len(w.pending) == 0 {
		return nil
	}

	var batch []byte
	for i := range w.pending {
		batch = append(batch, w.pending[i].Encode()...)
	}
	marker := Record{LSN: w.lsn + 1, PageID: CommitPageID}
	marker.CRC = calculateCRC(marker.LSN, marker.PageID, nil)
	batch = append(batch, marker.Encode()...)

	if _, err := w.file.WriteAt(batch, w.size); err != nil {
		return fmt.Errorf("wal: commit: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: commit sync: %w", err)
	}

	w.lsn = marker.LSN
	w.size += int64(len(batch))
	w.pending = w.pending[:0]
	return nil
}

// Rollback drops staged records. The sequence counter is rewound so the
// next operation reuses the numbers; the file never saw them.
func (w *WAL) Rollback() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lsn -= uint64(len(w.pending))
	w.pending = w.pending[:0]
}

// Replay reads the log from the start and calls apply for every page
// record of every committed batch, in sequence order. A batch counts as
// committed only when its closing marker is intact; a trailing batch cut
// off before its marker is the torn write of an unclean shutdown and is
// discarded whole, never half-applied. Damage with a valid marker
// anywhere behind it cannot be a torn write and fails with ErrCorrupt.
func (w *WAL) Replay(apply func(pageID int64, image []byte) error) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, ErrClosed
	}

	type staged struct {
		pageID int64
		image  []byte
	}
	var (
		offset       int64
		commitEnd    int64 // end of the last intact marker
		lastLSN      uint64
		committedLSN uint64 // sequence as of commitEnd
		applied      int
		batch        []staged
		header       = make([]byte, RecordHeaderSize)
	)

	fail := func(at int64) (int, error) {
		ok, err := w.markerAfter(at)
		if err != nil {
			return applied, err
		}
		if ok {
			return applied, fmt.Errorf("%w: damaged record at offset %d precedes a commit marker", ErrCorrupt, at)
		}
		return applied, w.truncateTail(commitEnd, committedLSN)
	}

	for offset < w.size {
		if _, err := w.file.ReadAt(header, offset); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return fail(offset)
			}
			return applied, fmt.Errorf("wal: replay read header at %d: %w", offset, err)
		}

		rec := Record{}
		rec.LSN = binary.BigEndian.Uint64(header[0:8])
		rec.PageID = int64(binary.BigEndian.Uint64(header[8:16]))
		dataLen := int64(binary.BigEndian.Uint32(header[16:20]))
		rec.CRC = binary.BigEndian.Uint32(header[20:24])

		recordEnd := offset + RecordHeaderSize + dataLen
		maxLen := int64(snappy.MaxEncodedLen(w.pageSize))

		bad := dataLen < 0 || dataLen > maxLen || recordEnd > w.size
		if !bad && rec.PageID == CommitPageID && dataLen != 0 {
			bad = true
		}
		if !bad {
			rec.Data = make([]byte, dataLen)
			if _, err := w.file.ReadAt(rec.Data, offset+RecordHeaderSize); err != nil {
				bad = true
			}
		}
		if !bad && (!rec.ValidateCRC() || rec.LSN != lastLSN+1) {
			bad = true
		}
		if bad {
			return fail(offset)
		}

		if rec.PageID == CommitPageID {
			for _, s := range batch {
				if err := apply(s.pageID, s.image); err != nil {
					return applied, fmt.Errorf("wal: replay apply page %d: %w", s.pageID, err)
				}
				applied++
			}
			batch = batch[:0]
			commitEnd = recordEnd
			committedLSN = rec.LSN
		} else {
			image, err := snappy.Decode(nil, rec.Data)
			if err != nil || len(image) != w.pageSize {
				return fail(offset)
			}
			batch = append(batch, staged{pageID: rec.PageID, image: image})
		}

		lastLSN = rec.LSN
		offset = recordEnd
	}

	if len(batch) > 0 {
		// Records arrived but their marker did not: the tail of an
		// interrupted commit.
		return applied, w.truncateTail(commitEnd, committedLSN)
	}
	w.lsn = lastLSN
	return applied, nil
}

// markerAfter reports whether an intact commit marker lies anywhere at or
// beyond offset from. It scans byte-by-byte because the damage that
// triggers it may have destroyed record framing; the marker's checksum
// keeps false positives out.
func (w *WAL) markerAfter(from int64) (bool, error) {
	if from >= w.size {
		return false, nil
	}
	tail := make([]byte, w.size-from)
	if _, err := w.file.ReadAt(tail, from); err != nil {
		return false, fmt.Errorf("wal: replay scan at %d: %w", from, err)
	}
	for off := 0; off+RecordHeaderSize <= len(tail); off++ {
		if int64(binary.BigEndian.Uint64(tail[off+8:off+16])) != CommitPageID {
			continue
		}
		if binary.BigEndian.Uint32(tail[off+16:off+20]) != 0 {
			continue
		}
		lsn := binary.BigEndian.Uint64(tail[off : off+8])
		crc := binary.BigEndian.Uint32(tail[off+20 : off+24])
		if crc == calculateCRC(lsn, CommitPageID, nil) {
			return true, nil
		}
	}
	return false, nil
}

func (w *WAL) truncateTail(validSize int64, lastLSN uint64) error {
	if err := w.file.Truncate(validSize); err != nil {
		return fmt.Errorf("wal: truncate torn tail: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync after tail truncate: %w", err)
	}
	w.size = validSize
	w.lsn = lastLSN
	return nil
}

// Truncate empties the log after a checkpoint and resets the sequence.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrClosed
	}
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("wal: truncate: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync after truncate: %w", err)
	}
	w.size = 0
	w.lsn = 0
	w.pending = w.pending[:0]
	return nil
}

// Size returns the bytes durably in the log, used for the automatic
// checkpoint trigger.
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *WAL) Empty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size == 0 && len(w.pending) == 0
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		w.file = nil
		return fmt.Errorf("wal: sync before close: %w", err)
	}
	err := w.file.Close()
	w.file = nil
	return err
}

