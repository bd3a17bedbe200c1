package store

import (
	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// migration is one (from, to, apply) step in the totally-ordered chain
// (spec §4.3.1). apply commits its own bolt.Update transactions (one per
// replay batch); Upgrade advances the version row in a separate
// transaction only after apply returns, so a crash mid-migration leaves
// the version row at the prior value.
type migration struct {
	from, to uint32
	apply    func(s *Store) error
}

// migrations is the ordered chain. Index 0 takes a store from version 0
// to version 1: the schema this package ships with already creates every
// bucket migration 0 would have added, so it only has to replay existing
// items to populate the reply index and attachment-meta index — the two
// derived tables spec §4.3.1 calls out by name. A store created by
// Create() starts at CurrentVersion already and never runs this chain;
// it exists for stores written by an older build of this binary.
var migrations = []migration{
	{
		from: 0,
		to:   1,
		apply: func(s *Store) error {
			return s.replayDerivedIndices()
		},
	},
}

// replayDerivedIndices rebuilds the reply index and attachment-meta index
// by decoding every stored item and re-running the derived-row half of
// SaveUserItem, in batches of ~1000 rows (spec §4.3.1).
func (s *Store) replayDerivedIndices() error {
	const batchSize = 1000
	var batch []ItemRow
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.db.Update(func(tx *bolt.Tx) error {
			for _, row := range batch {
				if err := applyDerivedIndices(tx, row); err != nil {
					return err
				}
			}
			return nil
		})
		batch = batch[:0]
		return err
	}

	var afterUser, afterSig []byte
	for {
		var page []ItemRow
		more := false
		err := s.allItemsPage(afterUser, afterSig, batchSize, func(row ItemRow) bool {
			page = append(page, row)
			return true
		})
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		batch = append(batch, page...)
		if err := flush(); err != nil {
			return errors.Wrap(err, "replaying items for migration")
		}
		last := page[len(page)-1]
		afterUser, afterSig = last.User, last.Signature
		more = len(page) == batchSize
		if !more {
			break
		}
	}
	return nil
}

// Upgrade runs every migration whose `from` is at or above the store's
// current version, in order, advancing the version row after each step.
// Running Upgrade twice is a no-op the second time (spec P9).
func (s *Store) Upgrade() error {
	for {
		current, err := s.Version()
		if err != nil {
			return err
		}
		if current >= CurrentVersion {
			return nil
		}
		var next *migration
		for i := range migrations {
			if migrations[i].from == current {
				next = &migrations[i]
				break
			}
		}
		if next == nil {
			return errors.Errorf("no migration registered from version %d", current)
		}
		log.WithField("from", next.from).WithField("to", next.to).Info("applying migration")
		if err := next.apply(s); err != nil {
			return errors.Wrapf(err, "migration %d->%d failed", next.from, next.to)
		}
		if err := s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(versionBucket).Put(versionKey, encodeVersion(next.to))
		}); err != nil {
			return errors.Wrap(err, "could not advance version row")
		}
	}
}
