package store

import (
	"context"
	"testing"

	"github.com/boltdb/bolt"
	"github.com/stretchr/testify/require"

	"github.com/feoblog/feoblog/item"
)

func TestUpgradeReplaysDerivedIndices(t *testing.T) {
	s := freshStore(t)
	u := mustUser(1)
	require.NoError(t, s.AddServerUser(context.Background(), u, true, ""))

	origSig := mustSig(1)
	putItem(t, s, u, origSig, 1000, &item.Item{TimestampMsUTC: 1000, Post: &item.Post{Title: "orig"}})

	comment := &item.Item{TimestampMsUTC: 2000, Comment: &item.Comment{}}
	copy(comment.Comment.ReplyToUser[:], u)
	copy(comment.Comment.ReplyToSignature[:], origSig)
	putItem(t, s, u, mustSig(2), 2000, comment)

	// Wipe the derived reply index, then roll the version row back to 0
	// to simulate a store written before it existed.
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(replyIndexBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(replyIndexBucket); err != nil {
			return err
		}
		return tx.Bucket(versionBucket).Put(versionKey, encodeVersion(0))
	})
	require.NoError(t, err)

	var before []ItemRow
	err = s.ReplyItems(context.Background(), u, origSig, maxTs, func(r ItemRow) bool {
		before = append(before, r)
		return true
	})
	require.NoError(t, err)
	require.Empty(t, before)

	require.NoError(t, s.Upgrade())

	v, err := s.Version()
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, v)

	var after []ItemRow
	err = s.ReplyItems(context.Background(), u, origSig, maxTs, func(r ItemRow) bool {
		after = append(after, r)
		return true
	})
	require.NoError(t, err)
	require.Len(t, after, 1)

	// Running Upgrade again against an already-current store is a no-op (P9).
	require.NoError(t, s.Upgrade())
}
