package store

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/binary"
	"testing"
	"time"

	"github.com/boltdb/bolt"
	"github.com/stretchr/testify/require"

	"github.com/feoblog/feoblog/item"
)

// backdatePlaceholder rewrites a reserved placeholder's creation timestamp
// directly, so tests can exercise SweepPlaceholders' grace-period cutoff
// without actually sleeping.
func backdatePlaceholder(t *testing.T, s *Store, placeholder []byte, when time.Time) {
	t.Helper()
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, uint64(when.UnixMilli()))
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobBucket).Put(placeholder, value)
	})
	require.NoError(t, err)
}

func TestTwoPhaseBlobUpload(t *testing.T) {
	s := freshStore(t)
	u := mustUser(1)
	sig := mustSig(1)
	require.NoError(t, s.AddServerUser(context.Background(), u, true, ""))

	content := []byte("attachment contents")
	sum := sha512.Sum512(content)

	it := &item.Item{
		TimestampMsUTC: 1000,
		Post: &item.Post{
			Title: "with attachment",
			Attachments: []item.File{
				{Name: "a.bin", Size: uint64(len(content)), Hash: sum[:]},
			},
		},
	}
	putItem(t, s, u, sig, 1000, it)

	meta, err := s.AttachmentMeta(context.Background(), u, sig, "a.bin")
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, sum[:], meta.Hash)

	exists, err := s.BlobExists(context.Background(), meta.Hash)
	require.NoError(t, err)
	require.False(t, exists)

	placeholder, err := s.ReserveBlobPlaceholder(context.Background())
	require.NoError(t, err)
	require.Len(t, placeholder, placeholderSize)

	err = s.CommitBlobUpload(context.Background(), placeholder, meta.Hash, bytes.NewReader(content))
	require.NoError(t, err)

	exists, err = s.BlobExists(context.Background(), meta.Hash)
	require.NoError(t, err)
	require.True(t, exists)

	got, err := s.GetBlob(context.Background(), meta.Hash)
	require.NoError(t, err)
	require.Equal(t, content, got)

	// The placeholder itself must no longer resolve as a blob.
	placeholderStillThere, err := s.BlobExists(context.Background(), placeholder)
	require.NoError(t, err)
	require.False(t, placeholderStillThere)
}

func TestCommitBlobUploadHashMismatch(t *testing.T) {
	s := freshStore(t)
	placeholder, err := s.ReserveBlobPlaceholder(context.Background())
	require.NoError(t, err)

	wrongHash := make([]byte, 64)
	err = s.CommitBlobUpload(context.Background(), placeholder, wrongHash, bytes.NewReader([]byte("nope")))
	require.ErrorIs(t, err, ErrHashMismatch)

	exists, err := s.BlobExists(context.Background(), placeholder)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSweepPlaceholdersRespectsGrace(t *testing.T) {
	s := freshStore(t)
	placeholder, err := s.ReserveBlobPlaceholder(context.Background())
	require.NoError(t, err)

	removed, err := s.SweepPlaceholders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, removed)

	// Directly age the row past the grace period rather than sleeping.
	backdatePlaceholder(t, s, placeholder, time.Now().Add(-48*time.Hour))

	removed, err = s.SweepPlaceholders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}
