// Package store implements the single-file embedded content store: items,
// attachment blobs, the profile cache, the follow graph, the reply index,
// and the server-user table, all inside one BoltDB file.
//
// The design mirrors the teacher's beacon-chain/db/kv package: a single
// *bolt.DB handle wrapped by a Store type, one bucket per logical table,
// and derived "index" buckets kept consistent by writing them inside the
// same bolt.Tx as the row they're derived from.
package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "store")

// ItemSizeLimit is the hard per-item byte ceiling (spec invariant I5).
const ItemSizeLimit = 32 * 1024

// CurrentVersion is the schema version a freshly created store is
// initialized at, and the version `upgrade()` brings older stores to.
const CurrentVersion = uint32(len(migrations))

// Store is a single-writer, many-reader handle on one feoblog data file.
// Bolt's own locking already serializes writers, so Store needs no
// additional mutex; concurrent callers share one *bolt.DB safely.
type Store struct {
	db   *bolt.DB
	path string
}

// Exists reports whether a store file already exists at path, without
// opening it.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Create initializes a brand-new store file. It fails if one already
// exists at path (spec §4.3.1: `create()` fails if present).
func Create(path string) (*Store, error) {
	if Exists(path) {
		return nil, errors.Errorf("store already exists at %s", path)
	}
	s, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(versionBucket).Put(versionKey, encodeVersion(CurrentVersion))
	}); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens an existing store file, failing if absent or if its schema
// version is behind CurrentVersion (spec §4.3.1: `open()` fails if
// version < latest).
func Open(path string) (*Store, error) {
	if !Exists(path) {
		return nil, errors.Errorf("no store found at %s", path)
	}
	s, err := open(path)
	if err != nil {
		return nil, err
	}
	version, err := s.Version()
	if err != nil {
		s.Close()
		return nil, err
	}
	if version < CurrentVersion {
		s.Close()
		return nil, errors.Errorf("store schema is at version %d, need %d; run `db upgrade`", version, CurrentVersion)
	}
	if version > CurrentVersion {
		s.Close()
		return nil, errors.Errorf("store schema version %d is newer than this binary understands (%d)", version, CurrentVersion)
	}
	return s, nil
}

// OpenForUpgrade opens an existing store file without the version check,
// so that Upgrade can run against it.
func OpenForUpgrade(path string) (*Store, error) {
	if !Exists(path) {
		return nil, errors.Errorf("no store found at %s", path)
	}
	return open(path)
}

func open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "could not create data directory")
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, errors.New("cannot obtain database lock, store may be in use by another process")
		}
		return nil, errors.Wrap(err, "could not open store")
	}
	s := &Store{db: db, path: path}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets() {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "could not create bucket %s", name)
			}
		}
		if tx.Bucket(versionBucket).Get(versionKey) == nil {
			return tx.Bucket(versionBucket).Put(versionKey, encodeVersion(0))
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path reports the file this store was opened from.
func (s *Store) Path() string {
	return s.path
}

// Version reads the schema version row. More than one row, or a missing
// row on an opened file, is a fatal inconsistency (spec §4.3.1).
func (s *Store) Version() (uint32, error) {
	var version uint32
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(versionBucket).Get(versionKey)
		if raw == nil {
			return errors.New("store has no version row")
		}
		version = decodeVersion(raw)
		return nil
	})
	return version, err
}

func encodeVersion(v uint32) []byte {
	b := make([]byte, 4)
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
	return b
}

func decodeVersion(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
