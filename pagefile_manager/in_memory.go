package pagefile

import (
	"fmt"
	"sync"
)

// MemStore implements Store with a slice of pages. Tests use it to exercise
// the codec and cache without touching the filesystem.
type MemStore struct {
	pages    [][]byte
	pageSize int
	mu       sync.RWMutex
}

func NewMemStore(pageSize int) *MemStore {
	return &MemStore{pageSize: pageSize}
}

func (s *MemStore) ReadPage(id PageID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || int(id) >= len(s.pages) {
		return nil, fmt.Errorf("%w: read page %d of %d", ErrInvalidPage, id, len(s.pages))
	}
	return append([]byte(nil), s.pages[id]...), nil
}

func (s *MemStore) WritePage(id PageID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 {
		return fmt.Errorf("%w: write page %d", ErrInvalidPage, id)
	}
	if len(data) != s.pageSize {
		return fmt.Errorf("pagefile: write page %d: image is %d bytes, page size is %d",
			id, len(data), s.pageSize)
	}
	for int(id) >= len(s.pages) {
		s.pages = append(s.pages, make([]byte, s.pageSize))
	}
	s.pages[id] = append([]byte(nil), data...)
	return nil
}

func (s *MemStore) NumPages() PageID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PageID(len(s.pages))
}

func (s *MemStore) PageSize() int { return s.pageSize }

func (s *MemStore) Sync() error { return nil }

func (s *MemStore) Close() error { return nil }
