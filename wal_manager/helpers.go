package wal_manager

import (
	"encoding/binary"
	"hash/crc32"
)

func (r *Record) Encode() []byte {
	buf := make([]byte, RecordHeaderSize+len(r.Data))
	binary.BigEndian.PutUint64(buf[0:8], r.LSN)
	binary.BigEndian.PutUint64(buf[8:16], uint64(r.PageID))
	binary.BigEndian.PutUint32(buf[16:20], uint32(len(r.Data)))
	binary.BigEndian.PutUint32(buf[20:24], r.CRC)
	copy(buf[24:], r.Data)
	return buf
}

func (r *Record) ValidateCRC() bool {
	return calculateCRC(r.LSN, r.PageID, r.Data) == r.CRC
}

// calculateCRC computes a CRC32 checksum over LSN, page id and data.
func calculateCRC(lsn uint64, pageID int64, data []byte) uint32 {
	hasher := crc32.NewIEEE()

	header := make([]byte, 16)
	binary.BigEndian.PutUint64(header[0:8], lsn)
	binary.BigEndian.PutUint64(header[8:16], uint64(pageID))
	hasher.Write(header)

	hasher.Write(data)
	return hasher.Sum32()
}
