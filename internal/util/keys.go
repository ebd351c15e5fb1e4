package util

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
)

// BatchKey returns a deterministic key for a set of ids: the order of ids does
// not matter. The suffix is the first 16 hex chars of a SHA-256 over the
// sorted ids.
func BatchKey(prefix string, ids []int64) string {
	s := slices.Clone(ids)
	slices.Sort(s)
	h := sha256.New()
	var u8 [8]byte
	for _, id := range s {
		binary.BigEndian.PutUint64(u8[:], uint64(id))
		h.Write(u8[:])
	}
	return fmt.Sprintf("%s:%x", prefix, h.Sum(nil)[:8])
}

// EntryKey namespaces a single id.
func EntryKey(prefix string, id int64) string {
	return prefix + ":" + strconv.FormatInt(id, 10)
}
