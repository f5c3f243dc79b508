package pagefile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Header is the tree metadata kept on page 0. It is mutated only under the
// writer role and persisted through the same WAL path as data pages.
type Header struct {
	RootPage     PageID
	PageSize     uint32
	Order        uint32
	KeySize      uint32
	ValueSize    uint32
	FreelistHead PageID
	NextPage     PageID
}

const (
	headerMagic   = 0x47524F56 // "GROV"
	headerVersion = 1

	// HeaderSize is the encoded length of the header within page 0.
	HeaderSize = 4 + 2 + 8 + 4 + 4 + 4 + 4 + 8 + 8
)

// EncodeHeader lays the header out at the start of a zeroed page image.
func EncodeHeader(h Header, pageSize int) []byte {
	page := make([]byte, pageSize)
	binary.LittleEndian.PutUint32(page[0:4], headerMagic)
	binary.LittleEndian.PutUint16(page[4:6], headerVersion)
	binary.LittleEndian.PutUint64(page[6:14], uint64(h.RootPage))
	binary.LittleEndian.PutUint32(page[14:18], h.PageSize)
	binary.LittleEndian.PutUint32(page[18:22], h.Order)
	binary.LittleEndian.PutUint32(page[22:26], h.KeySize)
	binary.LittleEndian.PutUint32(page[26:30], h.ValueSize)
	binary.LittleEndian.PutUint64(page[30:38], uint64(h.FreelistHead))
	binary.LittleEndian.PutUint64(page[38:46], uint64(h.NextPage))
	return page
}

// PeekHeader reads the header of an existing file without knowing its
// page size. ok is false when the file is missing or empty.
func PeekHeader(path string) (Header, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Header{}, false, nil
		}
		return Header{}, false, err
	}
	defer f.Close()

	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, buf)
	if n == 0 {
		return Header{}, false, nil
	}
	if err != nil {
		return Header{}, false, fmt.Errorf("%w: file holds only %d bytes", ErrCorruptHeader, n)
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return Header{}, false, err
	}
	return h, true, nil
}

// DecodeHeader parses page 0. A wrong magic number or version means the
// file is not one of ours (or is damaged) and open must fail outright.
func DecodeHeader(page []byte) (Header, error) {
	var h Header
	if len(page) < HeaderSize {
		return h, fmt.Errorf("%w: page is %d bytes, need %d", ErrCorruptHeader, len(page), HeaderSize)
	}
	if magic := binary.LittleEndian.Uint32(page[0:4]); magic != headerMagic {
		return h, fmt.Errorf("%w: bad magic %#x", ErrCorruptHeader, magic)
	}
	if version := binary.LittleEndian.Uint16(page[4:6]); version != headerVersion {
		return h, fmt.Errorf("%w: unsupported version %d", ErrCorruptHeader, version)
	}
	h.RootPage = PageID(binary.LittleEndian.Uint64(page[6:14]))
	h.PageSize = binary.LittleEndian.Uint32(page[14:18])
	h.Order = binary.LittleEndian.Uint32(page[18:22])
	h.KeySize = binary.LittleEndian.Uint32(page[22:26])
	h.ValueSize = binary.LittleEndian.Uint32(page[26:30])
	h.FreelistHead = PageID(binary.LittleEndian.Uint64(page[30:38]))
	h.NextPage = PageID(binary.LittleEndian.Uint64(page[38:46]))
	return h, nil
}
