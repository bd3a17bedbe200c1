package store

import "encoding/binary"

// Bucket layout. Every bucket lives in one bolt.DB file; there is no
// separate schema outside of these names and the version row.
var (
	itemsBucket       = []byte("items")        // key: user(32)+sig(64)      val: snappy(ts(8)+received(8)+item_bytes)
	itemTimeIndex     = []byte("item_time_ix")  // key: user(32)+ts(8)+sig(64) val: empty
	profileCacheBucket = []byte("profile_cache") // key: user(32)             val: sig(64)+ts(8); the display name is not cached
	followBucket      = []byte("follows")       // key: srcUser(32)+dstUser(32) val: display_name
	replyIndexBucket  = []byte("replies")       // key: toUser(32)+toSig(64)+fromUser(32)+fromSig(64) val: empty
	attachMetaBucket  = []byte("attach_meta")   // key: user(32)+sig(64)+name val: size(8)+hash(64)
	blobBucket        = []byte("blobs")         // key: hash(64 or 31 placeholder) val: contents (placeholder: created-at ms(8))
	serverUserBucket  = []byte("server_users")  // key: user(32)              val: onHomepage(1)+notes
	versionBucket     = []byte("version")       // key: "version"             val: uint32
	migrationBucket   = []byte("migrations")    // created but never written; the version row alone tracks migrations

	versionKey = []byte("version")
)

func allBuckets() [][]byte {
	return [][]byte{
		itemsBucket,
		itemTimeIndex,
		profileCacheBucket,
		followBucket,
		replyIndexBucket,
		attachMetaBucket,
		blobBucket,
		serverUserBucket,
		versionBucket,
		migrationBucket,
	}
}

// itemKey is the primary key for the items bucket: user then signature,
// so a bucket scan naturally groups by user.
func itemKey(user, sig []byte) []byte {
	k := make([]byte, 0, 32+64)
	k = append(k, user...)
	k = append(k, sig...)
	return k
}

// timeIndexKey orders a user's items by (timestamp, signature), the
// cursor pair pagination is defined over (spec §5's ordering guarantee).
func timeIndexKey(user []byte, timestampMsUTC int64, sig []byte) []byte {
	k := make([]byte, 0, 32+8+64)
	k = append(k, user...)
	k = append(k, encodeTimestamp(timestampMsUTC)...)
	k = append(k, sig...)
	return k
}

// encodeTimestamp renders a millisecond timestamp as a big-endian,
// order-preserving 8-byte key by biasing it into the unsigned range.
// timestamp_ms_utc is a signed 64-bit value; XORing the sign bit maps
// the signed ordering onto unsigned byte-lexicographic ordering.
func encodeTimestamp(ts int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(ts)^(1<<63))
	return b
}

func decodeTimestamp(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

func followKey(src, dst []byte) []byte {
	k := make([]byte, 0, 64)
	k = append(k, src...)
	k = append(k, dst...)
	return k
}

func replyKey(toUser, toSig, fromUser, fromSig []byte) []byte {
	k := make([]byte, 0, 32+64+32+64)
	k = append(k, toUser...)
	k = append(k, toSig...)
	k = append(k, fromUser...)
	k = append(k, fromSig...)
	return k
}

func attachMetaKey(user, sig []byte, name string) []byte {
	k := make([]byte, 0, 32+64+len(name))
	k = append(k, user...)
	k = append(k, sig...)
	k = append(k, []byte(name)...)
	return k
}
