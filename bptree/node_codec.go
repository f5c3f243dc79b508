package bptree

import (
	"encoding/binary"
	"fmt"

	pagefile "GroveDB/pagefile_manager"
)

// Page layouts. All integers little-endian.
//
//	leaf:     tag(1) numKeys(2) next(8) entries...
//	          entry: keyLen(2) key overflow(8)
//	                 overflow == 0: valLen(4) val
//	                 overflow != 0: totalLen(8)
//	internal: tag(1) numKeys(2) children((numKeys+1)*8) keys: (keyLen(2) key)...
//	overflow: tag(1) next(8) payloadLen(4) payload
//	freelist: tag(1) next(8)
const (
	leafHeaderSize     = 1 + 2 + 8
	internalHeaderSize = 1 + 2
	overflowHeaderSize = 1 + 8 + 4
)

// encodeNode serializes a node to a full page image. A node that does not
// fit fails with ErrPageOverflow: split sizing is supposed to make that
// impossible, so callers treat it as fatal.
func encodeNode(node *Node, conf TreeConf) ([]byte, error) {
	page := make([]byte, conf.PageSize)
	page[0] = byte(node.nodeType)

	switch node.nodeType {
	case NodeLeaf:
		binary.LittleEndian.PutUint16(page[1:3], uint16(len(node.keys)))
		binary.LittleEndian.PutUint64(page[3:11], uint64(node.next))
		offset := leafHeaderSize
		for i, key := range node.keys {
			ref := node.vals[i]
			need := 2 + len(key) + 8
			if ref.overflow == 0 {
				need += 4 + len(ref.inline)
			} else {
				need += 8
			}
			if offset+need > conf.PageSize {
				return nil, fmt.Errorf("%w: leaf %d entry %d at offset %d", ErrPageOverflow, node.id, i, offset)
			}
			binary.LittleEndian.PutUint16(page[offset:], uint16(len(key)))
			offset += 2
			copy(page[offset:], key)
			offset += len(key)
			binary.LittleEndian.PutUint64(page[offset:], uint64(ref.overflow))
			offset += 8
			if ref.overflow == 0 {
				binary.LittleEndian.PutUint32(page[offset:], uint32(len(ref.inline)))
				offset += 4
				copy(page[offset:], ref.inline)
				offset += len(ref.inline)
			} else {
				binary.LittleEndian.PutUint64(page[offset:], ref.length)
				offset += 8
			}
		}

	case NodeInternal:
		binary.LittleEndian.PutUint16(page[1:3], uint16(len(node.keys)))
		offset := internalHeaderSize
		if offset+len(node.children)*8 > conf.PageSize {
			return nil, fmt.Errorf("%w: internal %d children", ErrPageOverflow, node.id)
		}
		for _, child := range node.children {
			binary.LittleEndian.PutUint64(page[offset:], uint64(child))
			offset += 8
		}
		for i, key := range node.keys {
			if offset+2+len(key) > conf.PageSize {
				return nil, fmt.Errorf("%w: internal %d key %d at offset %d", ErrPageOverflow, node.id, i, offset)
			}
			binary.LittleEndian.PutUint16(page[offset:], uint16(len(key)))
			offset += 2
			copy(page[offset:], key)
			offset += len(key)
		}

	case NodeOverflow:
		if overflowHeaderSize+len(node.payload) > conf.PageSize {
			return nil, fmt.Errorf("%w: overflow %d payload %d bytes", ErrPageOverflow, node.id, len(node.payload))
		}
		binary.LittleEndian.PutUint64(page[1:9], uint64(node.next))
		binary.LittleEndian.PutUint32(page[9:13], uint32(len(node.payload)))
		copy(page[overflowHeaderSize:], node.payload)

	case NodeFreelist:
		binary.LittleEndian.PutUint64(page[1:9], uint64(node.next))

	default:
		return nil, fmt.Errorf("%w: node %d has unknown type %d", ErrPageOverflow, node.id, node.nodeType)
	}

	return page, nil
}

// decodeNode deserializes a page image. Anything structurally out of range
// for the configured order fails with ErrCorruptNode.
func decodeNode(page []byte, id pagefile.PageID, conf TreeConf) (*Node, error) {
	if len(page) != conf.PageSize {
		return nil, fmt.Errorf("%w: page %d image is %d bytes, page size is %d",
			ErrCorruptNode, id, len(page), conf.PageSize)
	}

	node := &Node{id: id, nodeType: NodeType(page[0])}

	switch node.nodeType {
	case NodeLeaf:
		numKeys := int(binary.LittleEndian.Uint16(page[1:3]))
		if numKeys > conf.Order {
			return nil, fmt.Errorf("%w: leaf %d claims %d keys, order is %d",
				ErrCorruptNode, id, numKeys, conf.Order)
		}
		node.next = pagefile.PageID(binary.LittleEndian.Uint64(page[3:11]))
		node.keys = make([][]byte, 0, numKeys)
		node.vals = make([]valueRef, 0, numKeys)
		offset := leafHeaderSize
		for i := 0; i < numKeys; i++ {
			key, n, err := readPrefixed(page, offset, 2, conf.KeySize)
			if err != nil {
				return nil, fmt.Errorf("%w: leaf %d key %d: %w", ErrCorruptNode, id, i, err)
			}
			offset += n
			if offset+8 > len(page) {
				return nil, fmt.Errorf("%w: leaf %d entry %d truncated", ErrCorruptNode, id, i)
			}
			ref := valueRef{overflow: pagefile.PageID(binary.LittleEndian.Uint64(page[offset:]))}
			offset += 8
			if ref.overflow == 0 {
				val, n, err := readPrefixed(page, offset, 4, conf.ValueSize)
				if err != nil {
					return nil, fmt.Errorf("%w: leaf %d value %d: %w", ErrCorruptNode, id, i, err)
				}
				ref.inline = val
				offset += n
			} else {
				if offset+8 > len(page) {
					return nil, fmt.Errorf("%w: leaf %d overflow length %d truncated", ErrCorruptNode, id, i)
				}
				ref.length = binary.LittleEndian.Uint64(page[offset:])
				offset += 8
			}
			node.keys = append(node.keys, key)
			node.vals = append(node.vals, ref)
		}

	case NodeInternal:
		numKeys := int(binary.LittleEndian.Uint16(page[1:3]))
		if numKeys == 0 || numKeys > conf.Order {
			return nil, fmt.Errorf("%w: internal %d claims %d keys, order is %d",
				ErrCorruptNode, id, numKeys, conf.Order)
		}
		offset := internalHeaderSize
		node.children = make([]pagefile.PageID, 0, numKeys+1)
		for i := 0; i <= numKeys; i++ {
			if offset+8 > len(page) {
				return nil, fmt.Errorf("%w: internal %d child %d truncated", ErrCorruptNode, id, i)
			}
			node.children = append(node.children, pagefile.PageID(binary.LittleEndian.Uint64(page[offset:])))
			offset += 8
		}
		node.keys = make([][]byte, 0, numKeys)
		for i := 0; i < numKeys; i++ {
			key, n, err := readPrefixed(page, offset, 2, conf.KeySize)
			if err != nil {
				return nil, fmt.Errorf("%w: internal %d key %d: %w", ErrCorruptNode, id, i, err)
			}
			node.keys = append(node.keys, key)
			offset += n
		}

	case NodeOverflow:
		node.next = pagefile.PageID(binary.LittleEndian.Uint64(page[1:9]))
		payloadLen := int(binary.LittleEndian.Uint32(page[9:13]))
		if payloadLen > conf.PageSize-overflowHeaderSize {
			return nil, fmt.Errorf("%w: overflow %d claims %d payload bytes", ErrCorruptNode, id, payloadLen)
		}
		node.payload = append([]byte(nil), page[overflowHeaderSize:overflowHeaderSize+payloadLen]...)

	case NodeFreelist:
		node.next = pagefile.PageID(binary.LittleEndian.Uint64(page[1:9]))

	default:
		return nil, fmt.Errorf("%w: page %d has unknown type tag %d", ErrCorruptNode, id, page[0])
	}

	return node, nil
}

// readPrefixed reads a length-prefixed field, rejecting lengths beyond max
// or data running past the page.
func readPrefixed(page []byte, offset, prefixLen, max int) ([]byte, int, error) {
	if offset+prefixLen > len(page) {
		return nil, 0, fmt.Errorf("length prefix at %d truncated", offset)
	}
	var length int
	if prefixLen == 2 {
		length = int(binary.LittleEndian.Uint16(page[offset:]))
	} else {
		length = int(binary.LittleEndian.Uint32(page[offset:]))
	}
	if length > max {
		return nil, 0, fmt.Errorf("field length %d exceeds bound %d", length, max)
	}
	if offset+prefixLen+length > len(page) {
		return nil, 0, fmt.Errorf("field at %d runs past page end", offset)
	}
	data := append([]byte(nil), page[offset+prefixLen:offset+prefixLen+length]...)
	return data, prefixLen + length, nil
}
