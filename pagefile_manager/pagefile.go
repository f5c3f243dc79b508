// Package pagefile provides the fixed-size block file underneath the B+ tree:
// page 0 is the header, every other page is addressed by id = offset / pageSize.
package pagefile

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// PageID addresses a fixed-size page within the store.
type PageID int64

var (
	ErrInvalidPage   = errors.New("pagefile: invalid page id")
	ErrCorruptHeader = errors.New("pagefile: corrupt header page")
	ErrClosed        = errors.New("pagefile: store is closed")
)

// Store is the persistence abstraction the tree reads and writes pages
// through. The disk implementation is DiskStore, MemStore keeps everything
// in memory for tests.
type Store interface {
	ReadPage(id PageID) ([]byte, error)
	WritePage(id PageID, data []byte) error
	NumPages() PageID
	PageSize() int
	Sync() error
	Close() error
}

// DiskStore is the file-backed Store.
type DiskStore struct {
	file     *os.File
	filePath string
	pageSize int
	numPages PageID
	mu       sync.RWMutex
}

// OpenDisk opens or creates a page file. The page size must match the one
// the file was created with; the caller checks that against the header.
func OpenDisk(path string, pageSize int) (*DiskStore, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pagefile: open %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("pagefile: stat %s: %w", path, err)
	}

	return &DiskStore{
		file:     file,
		filePath: path,
		pageSize: pageSize,
		numPages: PageID(stat.Size() / int64(pageSize)),
	}, nil
}

// ReadPage reads one page. Reading beyond the allocation frontier is a bug
// in the caller and fails with ErrInvalidPage.
func (s *DiskStore) ReadPage(id PageID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.file == nil {
		return nil, ErrClosed
	}
	if id < 0 || id >= s.numPages {
		return nil, fmt.Errorf("%w: read page %d of %d", ErrInvalidPage, id, s.numPages)
	}

	page := make([]byte, s.pageSize)
	if _, err := s.file.ReadAt(page, int64(id)*int64(s.pageSize)); err != nil {
		return nil, fmt.Errorf("pagefile: read page %d: %w", id, err)
	}
	return page, nil
}

// WritePage writes one full page image. Writing at or beyond the frontier
// extends the file; WAL replay relies on this when a crash rolled back file
// metadata for pages that were allocated but never checkpointed.
func (s *DiskStore) WritePage(id PageID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrClosed
	}
	if id < 0 {
		return fmt.Errorf("%w: write page %d", ErrInvalidPage, id)
	}
	if len(data) != s.pageSize {
		return fmt.Errorf("pagefile: write page %d: image is %d bytes, page size is %d",
			id, len(data), s.pageSize)
	}

	if _, err := s.file.WriteAt(data, int64(id)*int64(s.pageSize)); err != nil {
		return fmt.Errorf("pagefile: write page %d: %w", id, err)
	}
	if id >= s.numPages {
		s.numPages = id + 1
	}
	return nil
}

// NumPages returns the allocation frontier: the id the next grown page
// would get.
func (s *DiskStore) NumPages() PageID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.numPages
}

func (s *DiskStore) PageSize() int {
	return s.pageSize
}

// Sync flushes the file to stable storage.
func (s *DiskStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ErrClosed
	}
	return s.file.Sync()
}

func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		s.file = nil
		return fmt.Errorf("pagefile: sync before close: %w", err)
	}
	err := s.file.Close()
	s.file = nil
	return err
}
