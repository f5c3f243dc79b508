// Package serializer provides fixed-width key encodings whose byte order
// matches the natural order of the source type, so bytes.Compare over the
// encoded form sorts keys correctly without a custom comparator.
package serializer

import (
	"encoding/binary"
	"fmt"
)

// Serializer converts keys of one type to and from their encoded form.
// Encodings are fixed width; Size is the exact encoded length.
type Serializer[K any] interface {
	Serialize(key K) ([]byte, error)
	Deserialize(data []byte) (K, error)
	Size() int
}

// Int64 encodes signed integers as 8 big-endian bytes with the sign bit
// flipped, mapping the int64 order onto the unsigned byte order.
type Int64 struct{}

func (Int64) Serialize(key int64) ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(key)^(1<<63))
	return buf, nil
}

func (Int64) Deserialize(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("serializer: int64 key is %d bytes, want 8", len(data))
	}
	return int64(binary.BigEndian.Uint64(data) ^ (1 << 63)), nil
}

func (Int64) Size() int { return 8 }

// String encodes strings padded with zero bytes to a fixed width. Keys may
// not contain zero bytes, since padding could not be distinguished from
// content, and must fit the width.
type String struct {
	Width int
}

func (s String) Serialize(key string) ([]byte, error) {
	if len(key) > s.Width {
		return nil, fmt.Errorf("serializer: string key is %d bytes, width is %d", len(key), s.Width)
	}
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return nil, fmt.Errorf("serializer: string key contains a zero byte at %d", i)
		}
	}
	buf := make([]byte, s.Width)
	copy(buf, key)
	return buf, nil
}

func (s String) Deserialize(data []byte) (string, error) {
	if len(data) != s.Width {
		return "", fmt.Errorf("serializer: string key is %d bytes, want %d", len(data), s.Width)
	}
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}
	return string(data[:end]), nil
}

func (s String) Size() int { return s.Width }

// UUID passes 16-byte identifiers through unchanged. RFC 4122 byte order
// already sorts version-7 identifiers by time.
type UUID struct{}

func (UUID) Serialize(key [16]byte) ([]byte, error) {
	return append([]byte(nil), key[:]...), nil
}

func (UUID) Deserialize(data []byte) ([16]byte, error) {
	var key [16]byte
	if len(data) != 16 {
		return key, fmt.Errorf("serializer: uuid key is %d bytes, want 16", len(data))
	}
	copy(key[:], data)
	return key, nil
}

func (UUID) Size() int { return 16 }
