package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func mustDecodeEntry(t *testing.T, b []byte) (int64, uint64, []byte) {
	t.Helper()
	id, gen, p, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}
	return id, gen, p
}

func mustDecodeBatch(t *testing.T, b []byte) []Item {
	t.Helper()
	it, err := DecodeBatch(b)
	if err != nil {
		t.Fatalf("DecodeBatch error: %v", err)
	}
	return it
}

func TestEntryEdgeIDs(t *testing.T) {
	cases := []struct {
		id      int64
		gen     uint64
		payload []byte
	}{
		{0, 0, nil},
		{-1, 1, []byte("neg")},
		{math.MaxInt64, math.MaxUint64, []byte{0, 1, 2}},
		{math.MinInt64, 7, []byte("min")},
	}
	for _, tc := range cases {
		id, gen, p := mustDecodeEntry(t, EncodeEntry(tc.id, tc.gen, tc.payload))
		if id != tc.id || gen != tc.gen {
			t.Fatalf("header mismatch: got %d/%d want %d/%d", id, gen, tc.id, tc.gen)
		}
		if !bytes.Equal(p, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", p, tc.payload)
		}
	}
}

func TestEntryRejectsTrailingBytes(t *testing.T) {
	enc := EncodeEntry(7, 0, []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, _, _, err := DecodeEntry(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestEntryCorruptHeadersAndLengths(t *testing.T) {
	enc := EncodeEntry(1, 2, []byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, _, _, err := DecodeEntry(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, _, _, err := DecodeEntry(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindBatch
	if _, _, _, err := DecodeEntry(badKind); err == nil {
		t.Fatalf("expected error on batch kind")
	}

	longLen := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(longLen[22:26], 1000)
	if _, _, _, err := DecodeEntry(longLen); err == nil {
		t.Fatalf("expected error on overlong vlen")
	}

	if _, _, _, err := DecodeEntry(enc[:10]); err == nil {
		t.Fatalf("expected error on truncated header")
	}
}

func TestBatchKeepsOrderAndPayloads(t *testing.T) {
	in := []Item{
		{ID: 3, Gen: 4, Payload: []byte("three")},
		{ID: 1, Payload: nil},
		{ID: -9, Gen: 1, Payload: []byte{0xff}},
	}
	out := mustDecodeBatch(t, EncodeBatch(in))
	if len(out) != len(in) {
		t.Fatalf("len=%d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].ID != in[i].ID || out[i].Gen != in[i].Gen || !bytes.Equal(out[i].Payload, in[i].Payload) {
			t.Fatalf("item %d: got %+v want %+v", i, out[i], in[i])
		}
	}
}

func TestBatchEmpty(t *testing.T) {
	if got := mustDecodeBatch(t, EncodeBatch(nil)); len(got) != 0 {
		t.Fatalf("expected no items, got %d", len(got))
	}
}

func TestBatchCorrupt(t *testing.T) {
	enc := EncodeBatch([]Item{{ID: 1, Payload: []byte("a")}, {ID: 2, Payload: []byte("bb")}})

	if _, err := DecodeBatch(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated payload")
	}
	if _, err := DecodeBatch(append(append([]byte(nil), enc...), 0)); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}

	huge := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(huge[6:10], math.MaxUint32)
	if _, err := DecodeBatch(huge); err == nil {
		t.Fatalf("expected error on absurd item count")
	}

	entry := EncodeEntry(1, 0, []byte("a"))
	if _, err := DecodeBatch(entry); err == nil {
		t.Fatalf("expected error decoding entry frame as batch")
	}
}
