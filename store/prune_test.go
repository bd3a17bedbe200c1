package store

import (
	"context"
	"crypto/sha512"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feoblog/feoblog/item"
)

func TestPruneDryRunCountsWithoutRemoving(t *testing.T) {
	s := freshStore(t)
	known := mustUser(1)
	unknown := mustUser(2)
	require.NoError(t, s.AddServerUser(context.Background(), known, true, ""))

	putItem(t, s, known, mustSig(1), 1000, &item.Item{TimestampMsUTC: 1000, Post: &item.Post{Title: "keep"}})
	putItem(t, s, unknown, mustSig(2), 1000, &item.Item{TimestampMsUTC: 1000, Post: &item.Post{Title: "drop"}})

	result, err := s.Prune(context.Background(), PruneOptions{Items: true, DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.ItemsRemoved)

	exists, err := s.UserItemExists(context.Background(), unknown, mustSig(2))
	require.NoError(t, err)
	require.True(t, exists, "dry run must not actually remove anything")
}

func TestPruneRemovesOnlyUnknownUsers(t *testing.T) {
	s := freshStore(t)
	known := mustUser(1)
	unknown := mustUser(2)
	require.NoError(t, s.AddServerUser(context.Background(), known, true, ""))

	putItem(t, s, known, mustSig(1), 1000, &item.Item{TimestampMsUTC: 1000, Post: &item.Post{Title: "keep"}})
	putItem(t, s, unknown, mustSig(2), 1000, &item.Item{TimestampMsUTC: 1000, Post: &item.Post{Title: "drop"}})

	result, err := s.Prune(context.Background(), PruneOptions{Items: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.ItemsRemoved)

	knownExists, err := s.UserItemExists(context.Background(), known, mustSig(1))
	require.NoError(t, err)
	require.True(t, knownExists)

	unknownExists, err := s.UserItemExists(context.Background(), unknown, mustSig(2))
	require.NoError(t, err)
	require.False(t, unknownExists)
}

func TestPruneAttachmentsRemovesOnlyOrphanedBlobs(t *testing.T) {
	s := freshStore(t)
	u := mustUser(1)
	require.NoError(t, s.AddServerUser(context.Background(), u, true, ""))

	referenced := sha512.Sum512([]byte("referenced"))
	orphan := sha512.Sum512([]byte("orphan"))

	putItem(t, s, u, mustSig(1), 1000, &item.Item{
		TimestampMsUTC: 1000,
		Post: &item.Post{
			Title:       "post",
			Attachments: []item.File{{Name: "a.bin", Size: 9, Hash: referenced[:]}},
		},
	})

	ph1, err := s.ReserveBlobPlaceholder(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.CommitBlobUpload(context.Background(), ph1, referenced[:], strings.NewReader("referenced")))

	ph2, err := s.ReserveBlobPlaceholder(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.CommitBlobUpload(context.Background(), ph2, orphan[:], strings.NewReader("orphan")))

	result, err := s.Prune(context.Background(), PruneOptions{Attachments: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.AttachmentsRemoved)

	exists, err := s.BlobExists(context.Background(), referenced[:])
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = s.BlobExists(context.Background(), orphan[:])
	require.NoError(t, err)
	require.False(t, exists)
}
