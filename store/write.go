package store

import (
	"context"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/feoblog/feoblog/item"
)

// ItemRow is the in-memory shape of one stored Item, matching spec §3's
// ItemRow: (user, signature, timestamp, received, item_bytes).
type ItemRow struct {
	User           []byte
	Signature      []byte
	TimestampMsUTC int64
	ReceivedMsUTC  int64
	Bytes          []byte
}

// ErrAlreadyExists reports the unique (user, signature) conflict called
// out in spec §4.3.3 step 1.
var ErrAlreadyExists = errors.New("item already exists")

// SaveUserItem executes the write described in spec §4.3.3 atomically:
// insert the item row, then (depending on the decoded variant) update the
// profile cache and follow graph, the reply index, or the attachment-meta
// rows, all inside one bolt.Tx so a crash leaves no partial state.
func (s *Store) SaveUserItem(ctx context.Context, user, sig []byte, decoded *item.Item, raw []byte) error {
	_, span := trace.StartSpan(ctx, "store.SaveUserItem")
	defer span.End()

	row := ItemRow{
		User:           user,
		Signature:      sig,
		TimestampMsUTC: decoded.TimestampMsUTC,
		ReceivedMsUTC:  time.Now().UnixMilli(),
		Bytes:          raw,
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		key := itemKey(user, sig)
		items := tx.Bucket(itemsBucket)
		if items.Get(key) != nil {
			return ErrAlreadyExists
		}
		if err := items.Put(key, encodeItemRow(row)); err != nil {
			return errors.Wrap(err, "could not write item row")
		}
		if err := tx.Bucket(itemTimeIndex).Put(timeIndexKey(user, row.TimestampMsUTC, sig), nil); err != nil {
			return errors.Wrap(err, "could not write item time index")
		}
		return applyDerivedIndicesForItem(tx, row, decoded)
	})
}

// applyDerivedIndices decodes a previously-written item row and applies
// the same derived-index logic SaveUserItem applies at write time. Used
// by the migration replay path (migrate.go), which only has raw rows.
func applyDerivedIndices(tx *bolt.Tx, row ItemRow) error {
	decoded, err := item.Decode(row.Bytes)
	if err != nil {
		return errors.Wrap(err, "could not decode item during replay")
	}
	return applyDerivedIndicesForItem(tx, row, decoded)
}

func applyDerivedIndicesForItem(tx *bolt.Tx, row ItemRow, decoded *item.Item) error {
	switch {
	case decoded.Profile != nil:
		if err := applyProfile(tx, row, decoded.Profile); err != nil {
			return err
		}
	case decoded.Comment != nil:
		if err := applyComment(tx, row, decoded.Comment); err != nil {
			return err
		}
	}
	if decoded.Post != nil {
		if err := applyAttachmentMeta(tx, row, decoded.Post); err != nil {
			return err
		}
	}
	return nil
}

// applyProfile updates the profile cache and replaces the follow graph
// for row.User, but only if this profile is newer than the cached one
// (spec §4.3.3 step 2, and P5 profile monotonicity).
func applyProfile(tx *bolt.Tx, row ItemRow, profile *item.Profile) error {
	cacheBkt := tx.Bucket(profileCacheBucket)
	cached := cacheBkt.Get(row.User)
	if cached != nil {
		_, cachedTimestamp := decodeProfileCacheEntry(cached)
		if cachedTimestamp >= row.TimestampMsUTC {
			return nil
		}
	}

	followBkt := tx.Bucket(followBucket)
	cur := followBkt.Cursor()
	prefix := row.User
	for k, _ := cur.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = cur.Next() {
		if err := followBkt.Delete(k); err != nil {
			return errors.Wrap(err, "could not clear old follow row")
		}
	}

	// Re-inserting in declaration order means a later Follow for the same
	// user simply overwrites an earlier one's display name at the same
	// key (spec §3: "last wins").
	for _, f := range profile.Follows {
		if err := followBkt.Put(followKey(row.User, f.User), []byte(f.DisplayName)); err != nil {
			return errors.Wrap(err, "could not write follow row")
		}
	}

	return cacheBkt.Put(row.User, encodeProfileCacheEntry(row.Signature, row.TimestampMsUTC))
}

func applyComment(tx *bolt.Tx, row ItemRow, comment *item.Comment) error {
	toUser := comment.ReplyToUser[:]
	toSig := comment.ReplyToSignature[:]
	key := replyKey(toUser, toSig, row.User, row.Signature)
	return tx.Bucket(replyIndexBucket).Put(key, nil)
}

func applyAttachmentMeta(tx *bolt.Tx, row ItemRow, post *item.Post) error {
	bkt := tx.Bucket(attachMetaBucket)
	for _, f := range post.Attachments {
		key := attachMetaKey(row.User, row.Signature, f.Name)
		if bkt.Get(key) != nil {
			continue // idempotent on (user, signature, name)
		}
		if err := bkt.Put(key, encodeAttachMetaEntry(f.Size, f.Hash)); err != nil {
			return errors.Wrap(err, "could not write attachment meta row")
		}
	}
	return nil
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}
