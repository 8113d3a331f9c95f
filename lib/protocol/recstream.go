package protocol

import (
	"encoding/binary"

	"github.com/ValentinKolb/dctl/lib/arena"
)

// recordHeaderSize is the size of key_len + value_len in front of every record
const recordHeaderSize = 8

// recBufferHeaderSize is the size of db_id + total in front of the records of a RecBuffer
const recBufferHeaderSize = 8

// Record is one key/value pair of a record stream
type Record struct {
	Key   []byte
	Value []byte
}

// Len returns the encoded size of the record
func (r Record) Len() int {
	return recordHeaderSize + len(r.Key) + len(r.Value)
}

// AppendRecord appends the encoding of r to dst
func AppendRecord(dst []byte, r Record) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(r.Key)))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(r.Value)))
	dst = append(dst, r.Key...)
	return append(dst, r.Value...)
}

// --------------------------------------------------------------------------
// Iterator
// --------------------------------------------------------------------------

// RecordIterator walks a record stream (records without an outer count) front to back.
// Records returned by Record alias the stream.
//
//	it := NewRecordIterator(stream)
//	for it.Next() {
//		rec := it.Record()
//	}
//	if err := it.Err(); err != nil { ... }
type RecordIterator struct {
	stream []byte
	off    int
	rec    Record
	err    error
}

// NewRecordIterator creates an iterator over stream
func NewRecordIterator(stream []byte) *RecordIterator {
	return &RecordIterator{stream: stream}
}

// Next advances to the next record. It returns false at the end of the stream or on error.
func (it *RecordIterator) Next() bool {
	if it.err != nil || it.off == len(it.stream) {
		return false
	}
	rest := it.stream[it.off:]
	if len(rest) < recordHeaderSize {
		it.err = truncated("record header", recordHeaderSize, len(rest))
		return false
	}
	klen := binary.BigEndian.Uint32(rest)
	vlen := binary.BigEndian.Uint32(rest[4:])
	if klen > MaxBlobSize || vlen > MaxBlobSize {
		it.err = malformed("record lengths %d/%d exceed limit %d", klen, vlen, MaxBlobSize)
		return false
	}
	size := recordHeaderSize + int(klen) + int(vlen)
	if size > len(rest) {
		it.err = truncated("record", size, len(rest))
		return false
	}
	body := rest[recordHeaderSize:size]
	it.rec = Record{Key: body[:klen:klen], Value: body[klen:len(body):len(body)]}
	it.off += size
	return true
}

// Record returns the current record
func (it *RecordIterator) Record() Record {
	return it.rec
}

// Offset returns the number of bytes consumed so far
func (it *RecordIterator) Offset() int {
	return it.off
}

// Err returns the first error the iterator ran into
func (it *RecordIterator) Err() error {
	return it.err
}

// --------------------------------------------------------------------------
// Record Buffer Codec
// --------------------------------------------------------------------------

// recBufferCodec encodes db_id u32, total u32, records. total covers the whole buffer including its header.
type recBufferCodec struct{}

func (recBufferCodec) Len(v *RecBuffer) int {
	n := recBufferHeaderSize
	for _, r := range v.Records {
		n += r.Len()
	}
	return n
}

func (c recBufferCodec) Push(v *RecBuffer, buf []byte) int {
	total := c.Len(v)
	binary.BigEndian.PutUint32(buf, v.DBID)
	binary.BigEndian.PutUint32(buf[4:], uint32(total))
	out := buf[recBufferHeaderSize:recBufferHeaderSize]
	for _, r := range v.Records {
		out = AppendRecord(out, r)
	}
	return total
}

func (recBufferCodec) Pull(buf []byte, a *arena.Arena, v *RecBuffer) (int, error) {
	if len(buf) < recBufferHeaderSize {
		return 0, truncated("record buffer header", recBufferHeaderSize, len(buf))
	}
	dbID := binary.BigEndian.Uint32(buf)
	total := binary.BigEndian.Uint32(buf[4:])
	if total < recBufferHeaderSize {
		return 0, malformed("record buffer total %d below header size", total)
	}
	if uint64(total) > uint64(len(buf)) {
		return 0, truncated("record buffer", int(total), len(buf))
	}
	stream := buf[recBufferHeaderSize:total]

	// first pass counts and validates, so the slice is allocated exactly once
	count := 0
	it := NewRecordIterator(stream)
	for it.Next() {
		count++
	}
	if err := it.Err(); err != nil {
		// a record crossing the declared total is a length inconsistency, not a short buffer
		return 0, malformed("record buffer: %s", err)
	}

	var records []Record
	if count > 0 {
		var err error
		if records, err = arena.MakeSlice[Record](a, count); err != nil {
			return 0, err
		}
		it = NewRecordIterator(stream)
		for i := 0; it.Next(); i++ {
			rec := it.Record()
			if records[i].Key, err = copyBytes(a, rec.Key); err != nil {
				return 0, err
			}
			if records[i].Value, err = copyBytes(a, rec.Value); err != nil {
				return 0, err
			}
		}
	}

	v.DBID = dbID
	v.Records = records
	return int(total), nil
}

// copyBytes copies b into the arena, empty input yields nil
func copyBytes(a *arena.Arena, b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	out, err := a.Bytes(len(b))
	if err != nil {
		return nil, err
	}
	copy(out, b)
	return out, nil
}
