package store

import (
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Item rows are stored snappy-compressed, exactly as the teacher's
// kv.encode/kv.decode wrap every proto row. Compression is transparent:
// decode always yields back the identical bytes that were signed (spec
// P1), since snappy is lossless.
func encodeItemRow(row ItemRow) []byte {
	b := make([]byte, 8+8+len(row.Bytes))
	binary.BigEndian.PutUint64(b[0:8], uint64(row.TimestampMsUTC))
	binary.BigEndian.PutUint64(b[8:16], uint64(row.ReceivedMsUTC))
	copy(b[16:], row.Bytes)
	return snappy.Encode(nil, b)
}

func decodeItemRow(user, sig, stored []byte) (ItemRow, error) {
	b, err := snappy.Decode(nil, stored)
	if err != nil {
		return ItemRow{}, errors.Wrap(err, "could not decompress item row")
	}
	if len(b) < 16 {
		return ItemRow{}, errors.New("item row too short")
	}
	return ItemRow{
		User:           user,
		Signature:      sig,
		TimestampMsUTC: int64(binary.BigEndian.Uint64(b[0:8])),
		ReceivedMsUTC:  int64(binary.BigEndian.Uint64(b[8:16])),
		Bytes:          append([]byte(nil), b[16:]...),
	}, nil
}

func encodeProfileCacheEntry(sig []byte, timestamp int64) []byte {
	b := make([]byte, 64+8)
	copy(b, sig)
	binary.BigEndian.PutUint64(b[64:], uint64(timestamp))
	return b
}

func decodeProfileCacheEntry(b []byte) (sig []byte, timestamp int64) {
	sig = append([]byte(nil), b[:64]...)
	timestamp = int64(binary.BigEndian.Uint64(b[64:72]))
	return
}

func encodeAttachMetaEntry(size uint64, hash []byte) []byte {
	b := make([]byte, 8+len(hash))
	binary.BigEndian.PutUint64(b[0:8], size)
	copy(b[8:], hash)
	return b
}

func decodeAttachMetaEntry(b []byte) (size uint64, hash []byte) {
	size = binary.BigEndian.Uint64(b[0:8])
	hash = append([]byte(nil), b[8:]...)
	return
}
