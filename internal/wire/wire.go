package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 2
	kindEntry byte = 1
	kindBatch byte = 2

	itemHdr = 8 + 8 + 4 // id | gen | vlen
)

var (
	ErrCorrupt = errors.New("batchcache: corrupt entry")
	magic4     = [...]byte{'B', 'T', 'C', 'H'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | kind(1=entry) | id(i64 be) | gen(u64 be) | vlen(u32 be) | payload(vlen)
func EncodeEntry(id int64, gen uint64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + itemHdr + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)
	writeItem(&buf, Item{ID: id, Gen: gen, Payload: payload})
	return buf.Bytes()
}

// DecodeEntry returns the id and generation the entry was written for and
// its payload. The payload aliases b.
func DecodeEntry(b []byte) (id int64, gen uint64, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + itemHdr
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return 0, 0, nil, ErrCorrupt
	}
	it, off, ok := readItem(b, 6)
	if !ok || off != len(b) { // exact length; trailing bytes are corruption
		return 0, 0, nil, ErrCorrupt
	}
	return it.ID, it.Gen, it.Payload, nil
}

// Batch:
//
//	magic(4) | ver(1) | kind(2=batch) | n(u32 be)
//	id(i64 be) | gen(u64 be) | vlen(u32 be) | payload(vlen) * n
type Item struct {
	ID      int64
	Gen     uint64
	Payload []byte
}

func EncodeBatch(items []Item) []byte {
	total := 4 + 1 + 1 + 4
	for _, it := range items {
		total += itemHdr + len(it.Payload)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindBatch)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(items)))
	buf.Write(u4[:])

	for _, it := range items {
		writeItem(&buf, it)
	}
	return buf.Bytes()
}

func DecodeBatch(b []byte) ([]Item, error) {
	const hdr = 4 + 1 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindBatch {
		return nil, ErrCorrupt
	}

	off := 6
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// reject absurd counts before allocating
	if n > (len(b)-off)/itemHdr {
		return nil, ErrCorrupt
	}

	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		it, next, ok := readItem(b, off)
		if !ok {
			return nil, ErrCorrupt
		}
		items = append(items, it)
		off = next
	}
	if off != len(b) {
		return nil, ErrCorrupt
	}
	return items, nil
}

func writeItem(buf *bytes.Buffer, it Item) {
	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(it.ID))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], it.Gen)
	buf.Write(u8[:])
	binary.BigEndian.PutUint32(u4[:], uint32(len(it.Payload)))
	buf.Write(u4[:])
	buf.Write(it.Payload)
}

func readItem(b []byte, off int) (Item, int, bool) {
	if off+itemHdr > len(b) {
		return Item{}, 0, false
	}
	var it Item
	it.ID = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	it.Gen = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen > len(b)-off {
		return Item{}, 0, false
	}
	it.Payload = b[off : off+vlen]
	return it, off + vlen, true
}
