package store

import (
	"bytes"
	"context"

	"github.com/boltdb/bolt"
	"go.opencensus.io/trace"
)

// TimeSpanKind tags a TimeSpan as a before- or after-cursor (spec §4.3.2).
type TimeSpanKind int

const (
	SpanBefore TimeSpanKind = iota
	SpanAfter
)

// TimeSpan is the tagged Before(ts)/After(ts) cursor every paginated query
// takes. Before yields results ordered (timestamp, signature) descending,
// strictly less than Ts; After yields them ascending, strictly greater.
type TimeSpan struct {
	Kind TimeSpanKind
	Ts   int64
}

func Before(ts int64) TimeSpan { return TimeSpan{Kind: SpanBefore, Ts: ts} }
func After(ts int64) TimeSpan  { return TimeSpan{Kind: SpanAfter, Ts: ts} }

// RowFunc is the pagination callback: return false to stop early.
type RowFunc func(ItemRow) bool

// UserKnown reports whether user is in the known-users view: a
// server-user, or followed by at least one server-user. Never cached
// (spec §5): every call re-walks the server-user and follow buckets.
func (s *Store) UserKnown(ctx context.Context, user []byte) (bool, error) {
	_, span := trace.StartSpan(ctx, "store.UserKnown")
	defer span.End()

	known := false
	err := s.db.View(func(tx *bolt.Tx) error {
		known = userKnown(tx, user)
		return nil
	})
	return known, err
}

func userKnown(tx *bolt.Tx, user []byte) bool {
	if tx.Bucket(serverUserBucket).Get(user) != nil {
		return true
	}
	cur := tx.Bucket(serverUserBucket).Cursor()
	for su, _ := cur.First(); su != nil; su, _ = cur.Next() {
		followBkt := tx.Bucket(followBucket)
		if followBkt.Get(followKey(su, user)) != nil {
			return true
		}
	}
	return false
}

// knownUsers returns every user in the known-users view: server-users
// plus everyone any server-user follows, deduplicated.
func knownUsers(tx *bolt.Tx) [][]byte {
	seen := map[string][]byte{}
	suCur := tx.Bucket(serverUserBucket).Cursor()
	for su, _ := suCur.First(); su != nil; su, _ = suCur.Next() {
		dup := append([]byte(nil), su...)
		seen[string(dup)] = dup
	}
	followBkt := tx.Bucket(followBucket)
	fcur := followBkt.Cursor()
	for k, _ := fcur.First(); k != nil; k, _ = fcur.Next() {
		dst := append([]byte(nil), k[32:64]...)
		seen[string(dst)] = dst
	}
	out := make([][]byte, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	return out
}

// homepageUsers returns the server-users flagged on_homepage=true.
func homepageUsers(tx *bolt.Tx) [][]byte {
	var out [][]byte
	cur := tx.Bucket(serverUserBucket).Cursor()
	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		onHomepage, _ := decodeServerUserEntry(v)
		if onHomepage {
			out = append(out, append([]byte(nil), k...))
		}
	}
	return out
}

// HomepageItems streams items from on-homepage users (spec §4.3.2).
func (s *Store) HomepageItems(ctx context.Context, span TimeSpan, cb RowFunc) error {
	_, tspan := trace.StartSpan(ctx, "store.HomepageItems")
	defer tspan.End()
	return s.db.View(func(tx *bolt.Tx) error {
		return scanMerged(tx, homepageUsers(tx), span, cb)
	})
}

// UserItems streams one user's own items, gated on the known-users view.
func (s *Store) UserItems(ctx context.Context, user []byte, span TimeSpan, cb RowFunc) error {
	_, tspan := trace.StartSpan(ctx, "store.UserItems")
	defer tspan.End()
	return s.db.View(func(tx *bolt.Tx) error {
		if !userKnown(tx, user) {
			return nil
		}
		return scanMerged(tx, [][]byte{user}, span, cb)
	})
}

// UserFeedItems streams the union of viewer's own items and every user
// viewer follows. Implemented as a UNION ALL over per-follow index probes
// (one merge stream per followed user, scanMerged below), never a single
// grouped scan, so each stream stays on its own (user, timestamp) index
// range (spec §4.3.2).
func (s *Store) UserFeedItems(ctx context.Context, viewer []byte, span TimeSpan, cb RowFunc) error {
	_, tspan := trace.StartSpan(ctx, "store.UserFeedItems")
	defer tspan.End()
	return s.db.View(func(tx *bolt.Tx) error {
		var users [][]byte
		if userKnown(tx, viewer) {
			users = append(users, viewer)
		}
		followBkt := tx.Bucket(followBucket)
		cur := followBkt.Cursor()
		for k, _ := cur.Seek(viewer); k != nil && hasPrefix(k, viewer); k, _ = cur.Next() {
			dst := append([]byte(nil), k[32:64]...)
			if userKnown(tx, dst) {
				users = append(users, dst)
			}
		}
		return scanMerged(tx, users, span, cb)
	})
}

// ReplyItems streams comments whose reply index entry targets (toUser, toSig).
func (s *Store) ReplyItems(ctx context.Context, toUser, toSig []byte, before int64, cb RowFunc) error {
	_, tspan := trace.StartSpan(ctx, "store.ReplyItems")
	defer tspan.End()
	return s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(replyIndexBucket)
		prefix := append(append([]byte(nil), toUser...), toSig...)
		cur := bkt.Cursor()
		for k, _ := cur.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = cur.Next() {
			fromUser := k[96:128]
			fromSig := k[128:192]
			if !userKnown(tx, fromUser) {
				continue
			}
			row, err := lookupItem(tx, fromUser, fromSig)
			if err != nil {
				return err
			}
			if row == nil || row.TimestampMsUTC >= before {
				continue
			}
			if !cb(*row) {
				return nil
			}
		}
		return nil
	})
}

// UserItem looks up a single item, gated on the known-users view.
func (s *Store) UserItem(ctx context.Context, user, sig []byte) (*ItemRow, error) {
	_, span := trace.StartSpan(ctx, "store.UserItem")
	defer span.End()
	var row *ItemRow
	err := s.db.View(func(tx *bolt.Tx) error {
		if !userKnown(tx, user) {
			return nil
		}
		r, err := lookupItem(tx, user, sig)
		row = r
		return err
	})
	return row, err
}

// UserItemExists checks existence without materializing the row bytes.
func (s *Store) UserItemExists(ctx context.Context, user, sig []byte) (bool, error) {
	_, span := trace.StartSpan(ctx, "store.UserItemExists")
	defer span.End()
	exists := false
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(itemsBucket).Get(itemKey(user, sig)) != nil
		return nil
	})
	return exists, err
}

// UserProfile returns the item row the profile cache currently points at.
func (s *Store) UserProfile(ctx context.Context, user []byte) (*ItemRow, error) {
	_, span := trace.StartSpan(ctx, "store.UserProfile")
	defer span.End()
	var row *ItemRow
	err := s.db.View(func(tx *bolt.Tx) error {
		if !userKnown(tx, user) {
			return nil
		}
		cached := tx.Bucket(profileCacheBucket).Get(user)
		if cached == nil {
			return nil
		}
		sig, _ := decodeProfileCacheEntry(cached)
		r, err := lookupItem(tx, user, sig)
		row = r
		return err
	})
	return row, err
}

// lookupItem reads one item row without any visibility check.
func lookupItem(tx *bolt.Tx, user, sig []byte) (*ItemRow, error) {
	stored := tx.Bucket(itemsBucket).Get(itemKey(user, sig))
	if stored == nil {
		return nil, nil
	}
	row, err := decodeItemRow(append([]byte(nil), user...), append([]byte(nil), sig...), stored)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// allItemsPage is the stable-pagination scan over (user, signature) used
// only by migrations (spec §4.3.2's all_items).
func (s *Store) allItemsPage(afterUser, afterSig []byte, limit int, cb RowFunc) error {
	return s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(itemsBucket)
		cur := bkt.Cursor()
		var k, v []byte
		if afterUser == nil {
			k, v = cur.First()
		} else {
			k, v = cur.Seek(itemKey(afterUser, afterSig))
			if k != nil && bytes.Equal(k, itemKey(afterUser, afterSig)) {
				k, v = cur.Next()
			}
		}
		count := 0
		for ; k != nil && count < limit; k, v = cur.Next() {
			user := append([]byte(nil), k[:32]...)
			sig := append([]byte(nil), k[32:96]...)
			row, err := decodeItemRow(user, sig, v)
			if err != nil {
				return err
			}
			count++
			if !cb(row) {
				return nil
			}
		}
		return nil
	})
}

// scanMerged performs a streaming k-way merge of the per-user time-index
// scans in `users`, in the order TimeSpan requires, invoking cb in global
// (timestamp, signature) order across all of them.
func scanMerged(tx *bolt.Tx, users [][]byte, span TimeSpan, cb RowFunc) error {
	bkt := tx.Bucket(itemTimeIndex)
	streams := make([]*mergeStream, 0, len(users))
	for _, u := range users {
		ms := newMergeStream(bkt.Cursor(), u, span)
		if ms.key != nil {
			streams = append(streams, ms)
		}
	}
	descending := span.Kind == SpanBefore
	for {
		best := -1
		for i, ms := range streams {
			if ms.key == nil {
				continue
			}
			if best == -1 {
				best = i
				continue
			}
			cmp := bytes.Compare(ms.key[32:], streams[best].key[32:])
			if (descending && cmp > 0) || (!descending && cmp < 0) {
				best = i
			}
		}
		if best == -1 {
			return nil
		}
		s := streams[best]
		sig := append([]byte(nil), s.key[40:104]...)
		row, err := lookupItem(tx, s.user, sig)
		if err != nil {
			return err
		}
		s.advance()
		if row == nil {
			continue
		}
		if !cb(*row) {
			return nil
		}
	}
}

type mergeStream struct {
	user       []byte
	cur        *bolt.Cursor
	key        []byte
	descending bool
}

func newMergeStream(cur *bolt.Cursor, user []byte, span TimeSpan) *mergeStream {
	ms := &mergeStream{user: user, cur: cur, descending: span.Kind == SpanBefore}
	boundary := append(append([]byte(nil), user...), encodeTimestamp(span.Ts)...)
	k, _ := cur.Seek(boundary)
	if span.Kind == SpanBefore {
		pk, _ := cur.Prev()
		if pk != nil && hasPrefix(pk, user) {
			ms.key = append([]byte(nil), pk...)
		}
		return ms
	}
	// After(ts): skip forward past any entries at exactly ts.
	for k != nil && hasPrefix(k, user) && decodeTimestamp(k[32:40]) == span.Ts {
		k, _ = cur.Next()
	}
	if k != nil && hasPrefix(k, user) {
		ms.key = append([]byte(nil), k...)
	}
	return ms
}

func (ms *mergeStream) advance() {
	var nk []byte
	if ms.descending {
		nk, _ = ms.cur.Prev()
	} else {
		nk, _ = ms.cur.Next()
	}
	if nk != nil && hasPrefix(nk, ms.user) {
		ms.key = append([]byte(nil), nk...)
	} else {
		ms.key = nil
	}
}
