package store

import (
	"context"
	"os"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// PruneOptions selects which classes of rows Prune considers for removal
// (spec §4.3.5).
type PruneOptions struct {
	Items       bool
	Attachments bool
	DryRun      bool
}

// PruneResult reports what Prune removed (or would remove, under
// DryRun), with counts and byte totals kept in their own fields —
// spec §9 calls out a source bug where the items byte-total ended up in
// the wrong output column; this type keeps them distinct on purpose.
type PruneResult struct {
	ItemsRemoved           int
	ItemBytesRemoved       int64
	AttachmentsRemoved     int
	AttachmentBytesRemoved int64
}

// Prune deletes items belonging to users outside the known-users view
// (and any attachment-meta rows that orphans), then deletes blob rows no
// longer referenced by any attachment-meta row, per spec §4.3.5. Under
// DryRun it only counts. Property P10: pruning never removes rows
// belonging to known users, and never removes a blob a surviving
// attachment-meta row still points to.
func (s *Store) Prune(ctx context.Context, opts PruneOptions) (*PruneResult, error) {
	_, span := trace.StartSpan(ctx, "store.Prune")
	defer span.End()

	result := &PruneResult{}
	changed := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		if opts.Items {
			if err := pruneItems(tx, opts.DryRun, result); err != nil {
				return err
			}
		}
		if opts.Attachments {
			if err := pruneAttachments(tx, opts.DryRun, result); err != nil {
				return err
			}
		}
		changed = !opts.DryRun && (result.ItemsRemoved > 0 || result.AttachmentsRemoved > 0)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		if err := s.Compact(ctx); err != nil {
			return result, errors.Wrap(err, "prune succeeded but compaction failed")
		}
	}
	return result, nil
}

func pruneItems(tx *bolt.Tx, dryRun bool, result *PruneResult) error {
	items := tx.Bucket(itemsBucket)
	type doomed struct {
		key  []byte
		row  ItemRow
	}
	var victims []doomed
	cur := items.Cursor()
	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		user := k[:32]
		if userKnown(tx, user) {
			continue
		}
		sig := k[32:96]
		row, err := decodeItemRow(append([]byte(nil), user...), append([]byte(nil), sig...), v)
		if err != nil {
			return errors.Wrap(err, "could not decode item row during prune")
		}
		result.ItemsRemoved++
		result.ItemBytesRemoved += int64(len(row.Bytes))
		victims = append(victims, doomed{key: append([]byte(nil), k...), row: row})
	}
	if dryRun {
		return nil
	}
	metaBkt := tx.Bucket(attachMetaBucket)
	timeBkt := tx.Bucket(itemTimeIndex)
	for _, v := range victims {
		if err := items.Delete(v.key); err != nil {
			return err
		}
		if err := timeBkt.Delete(timeIndexKey(v.row.User, v.row.TimestampMsUTC, v.row.Signature)); err != nil {
			return err
		}
		prefix := append(append([]byte(nil), v.row.User...), v.row.Signature...)
		mcur := metaBkt.Cursor()
		var metaKeys [][]byte
		for mk, _ := mcur.Seek(prefix); mk != nil && hasPrefix(mk, prefix); mk, _ = mcur.Next() {
			metaKeys = append(metaKeys, append([]byte(nil), mk...))
		}
		for _, mk := range metaKeys {
			if err := metaBkt.Delete(mk); err != nil {
				return err
			}
		}
	}
	return nil
}

func pruneAttachments(tx *bolt.Tx, dryRun bool, result *PruneResult) error {
	referenced := map[string]bool{}
	mcur := tx.Bucket(attachMetaBucket).Cursor()
	for k, v := mcur.First(); k != nil; k, v = mcur.Next() {
		_, hash := decodeAttachMetaEntry(v)
		referenced[string(hash)] = true
	}

	blobBkt := tx.Bucket(blobBucket)
	bcur := blobBkt.Cursor()
	var orphans [][]byte
	for k, v := bcur.First(); k != nil; k, v = bcur.Next() {
		if len(k) != sha512HashLen {
			continue // placeholder row, handled by SweepPlaceholders
		}
		if referenced[string(k)] {
			continue
		}
		result.AttachmentsRemoved++
		result.AttachmentBytesRemoved += int64(len(v))
		orphans = append(orphans, append([]byte(nil), k...))
	}
	if dryRun {
		return nil
	}
	for _, k := range orphans {
		if err := blobBkt.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

const sha512HashLen = 64

// Compact reclaims space left by deletes by rewriting the store into a
// fresh file and swapping it in. The boltdb package this store is built
// on (unlike its etcd-io/bbolt descendant) ships no built-in compaction
// command, so this walks every bucket into a new file itself.
func (s *Store) Compact(ctx context.Context) error {
	_, span := trace.StartSpan(ctx, "store.Compact")
	defer span.End()

	tmpPath := s.path + ".compact"
	_ = os.Remove(tmpPath)

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return errors.Wrap(err, "could not open compaction target")
	}

	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, b *bolt.Bucket) error {
				dstBkt, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return b.ForEach(func(k, v []byte) error {
					return dstBkt.Put(k, v)
				})
			})
		})
	})
	dst.Close()
	if err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "could not copy store during compaction")
	}

	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "could not close store before swapping compacted file")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return errors.Wrap(err, "could not swap in compacted store")
	}

	reopened, err := bolt.Open(s.path, 0600, nil)
	if err != nil {
		return errors.Wrap(err, "could not reopen store after compaction")
	}
	s.db = reopened
	return nil
}
