package store

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"io"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// AttachMeta is one row of the attachment-meta table (spec §3).
type AttachMeta struct {
	User  []byte
	Sig   []byte
	Name  string
	Size  uint64
	Hash  []byte
}

// AttachmentMeta looks up the declared metadata for one attachment,
// gated on the known-users view.
func (s *Store) AttachmentMeta(ctx context.Context, user, sig []byte, name string) (*AttachMeta, error) {
	_, span := trace.StartSpan(ctx, "store.AttachmentMeta")
	defer span.End()
	var out *AttachMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		if !userKnown(tx, user) {
			return nil
		}
		raw := tx.Bucket(attachMetaBucket).Get(attachMetaKey(user, sig, name))
		if raw == nil {
			return nil
		}
		size, hash := decodeAttachMetaEntry(raw)
		out = &AttachMeta{User: user, Sig: sig, Name: name, Size: size, Hash: hash}
		return nil
	})
	return out, err
}

// BlobExists reports whether a real (non-placeholder) blob row exists
// under hash.
func (s *Store) BlobExists(ctx context.Context, hash []byte) (bool, error) {
	_, span := trace.StartSpan(ctx, "store.BlobExists")
	defer span.End()
	exists := false
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(blobBucket).Get(hash) != nil
		return nil
	})
	return exists, err
}

// GetBlob returns the full contents stored under hash, or nil if absent.
func (s *Store) GetBlob(ctx context.Context, hash []byte) ([]byte, error) {
	_, span := trace.StartSpan(ctx, "store.GetBlob")
	defer span.End()
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(blobBucket).Get(hash)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

const placeholderSize = 31

// placeholderGrace is how long an unclaimed placeholder row is allowed
// to live before SweepPlaceholders reclaims it (spec §5 "Cancellation &
// timeouts": a cancelled upload leaves only an unreachable placeholder).
const placeholderGrace = 24 * time.Hour

// ReserveBlobPlaceholder allocates a random 31-byte placeholder key,
// distinguishable from any real 64-byte SHA-512 hash (spec §4.3.4 step 1).
func (s *Store) ReserveBlobPlaceholder(ctx context.Context) ([]byte, error) {
	_, span := trace.StartSpan(ctx, "store.ReserveBlobPlaceholder")
	defer span.End()

	placeholder := make([]byte, placeholderSize)
	if _, err := rand.Read(placeholder); err != nil {
		return nil, errors.Wrap(err, "could not generate placeholder")
	}
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, uint64(time.Now().UnixMilli()))
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobBucket).Put(placeholder, value)
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not reserve blob placeholder")
	}
	return placeholder, nil
}

// ErrHashMismatch reports that a streamed upload's SHA-512 didn't match
// the declared hash (spec §4.3.4 step 3, property P6).
var ErrHashMismatch = errors.New("uploaded content does not match the declared hash")

// CommitBlobUpload reads body (chunked internally at ~32KiB, per spec
// §4.3.4 step 2), hashing it and buffering it in memory; the placeholder
// row holds only its creation time, never content. If the hash matches,
// one transaction deletes the placeholder and writes the content under
// the real hash key; otherwise it deletes the placeholder and returns
// ErrHashMismatch.
func (s *Store) CommitBlobUpload(ctx context.Context, placeholder []byte, expectedHash []byte, body io.Reader) error {
	_, span := trace.StartSpan(ctx, "store.CommitBlobUpload")
	defer span.End()

	hasher := sha512.New()
	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	tee := io.TeeReader(body, hasher)
	for {
		n, err := tee.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			s.discardPlaceholder(placeholder)
			return errors.Wrap(err, "reading upload body")
		}
	}

	sum := hasher.Sum(nil)
	if !bytes.Equal(sum, expectedHash) {
		s.discardPlaceholder(placeholder)
		return ErrHashMismatch
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(blobBucket)
		if err := bkt.Delete(placeholder); err != nil {
			return errors.Wrap(err, "could not clear placeholder")
		}
		// Uniqueness on the real key: if content already landed under this
		// hash (a concurrent upload of the same bytes), this simply
		// overwrites with identical content.
		return bkt.Put(expectedHash, buf.Bytes())
	})
}

func (s *Store) discardPlaceholder(placeholder []byte) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobBucket).Delete(placeholder)
	})
	if err != nil {
		log.WithField("op", "discardPlaceholder").WithError(err).Warn("could not remove failed-upload placeholder")
	}
}

// SweepPlaceholders removes placeholder rows older than placeholderGrace,
// left behind by uploads that never completed. Run once at `serve`
// startup and as the first step of `db prune`.
func (s *Store) SweepPlaceholders(ctx context.Context) (int, error) {
	_, span := trace.StartSpan(ctx, "store.SweepPlaceholders")
	defer span.End()

	cutoff := time.Now().Add(-placeholderGrace).UnixMilli()
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(blobBucket)
		cur := bkt.Cursor()
		var toDelete [][]byte
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if len(k) != placeholderSize {
				continue
			}
			if len(v) < 8 {
				continue
			}
			createdAt := int64(binary.BigEndian.Uint64(v[:8]))
			if createdAt < cutoff {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}
		for _, k := range toDelete {
			if err := bkt.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}
