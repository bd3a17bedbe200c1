package store

import (
	"context"
	"sort"

	"github.com/boltdb/bolt"
	"go.opencensus.io/trace"
)

// UsageRow is one line of the usage_by_user report (spec §4.3.6).
type UsageRow struct {
	User                []byte
	ItemCount           int
	ItemBytes           int64
	AttachmentCount     int
	AttachmentBytes     int64
}

// Total is the computed grand total used for sort order.
func (r UsageRow) Total() int64 { return r.ItemBytes + r.AttachmentBytes }

// UsageByUser aggregates per-user item and attachment totals, emitting
// rows in descending Total order. Attachments are deduplicated by
// (user, hash) so one blob referenced twice by the same user (under two
// different item/name combinations) counts once.
func (s *Store) UsageByUser(ctx context.Context) ([]UsageRow, error) {
	_, span := trace.StartSpan(ctx, "store.UsageByUser")
	defer span.End()

	type acc struct {
		itemCount  int
		itemBytes  int64
		attHashes  map[string]int64 // hash -> declared size
	}
	byUser := map[string]*acc{}
	order := []string{}
	get := func(user string) *acc {
		a, ok := byUser[user]
		if !ok {
			a = &acc{attHashes: map[string]int64{}}
			byUser[user] = a
			order = append(order, user)
		}
		return a
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		icur := tx.Bucket(itemsBucket).Cursor()
		for k, v := icur.First(); k != nil; k, v = icur.Next() {
			user := string(k[:32])
			row, err := decodeItemRow(k[:32], k[32:96], v)
			if err != nil {
				return err
			}
			a := get(user)
			a.itemCount++
			a.itemBytes += int64(len(row.Bytes))
		}

		mcur := tx.Bucket(attachMetaBucket).Cursor()
		for k, v := mcur.First(); k != nil; k, v = mcur.Next() {
			user := string(k[:32])
			size, hash := decodeAttachMetaEntry(v)
			a := get(user)
			a.attHashes[string(hash)] = int64(size)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]UsageRow, 0, len(order))
	for _, user := range order {
		a := byUser[user]
		var attBytes int64
		for _, size := range a.attHashes {
			attBytes += size
		}
		rows = append(rows, UsageRow{
			User:            []byte(user),
			ItemCount:       a.itemCount,
			ItemBytes:       a.itemBytes,
			AttachmentCount: len(a.attHashes),
			AttachmentBytes: attBytes,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Total() > rows[j].Total()
	})
	return rows, nil
}
