package store

import (
	"context"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// ServerUser is one row of the server-user table (spec §3): a principal
// granted direct posting permission on this server.
type ServerUser struct {
	User       []byte
	OnHomepage bool
	Notes      string
}

func encodeServerUserEntry(onHomepage bool, notes string) []byte {
	b := make([]byte, 1+len(notes))
	if onHomepage {
		b[0] = 1
	}
	copy(b[1:], notes)
	return b
}

func decodeServerUserEntry(b []byte) (onHomepage bool, notes string) {
	if len(b) == 0 {
		return false, ""
	}
	return b[0] != 0, string(b[1:])
}

// AddServerUser grants user direct posting permission.
func (s *Store) AddServerUser(ctx context.Context, user []byte, onHomepage bool, notes string) error {
	_, span := trace.StartSpan(ctx, "store.AddServerUser")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(serverUserBucket).Put(user, encodeServerUserEntry(onHomepage, notes))
	})
}

// RemoveServerUser revokes direct posting permission. It does not touch
// any items the user already posted; those remain visible only if some
// other server-user still follows them.
func (s *Store) RemoveServerUser(ctx context.Context, user []byte) error {
	_, span := trace.StartSpan(ctx, "store.RemoveServerUser")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(serverUserBucket)
		if bkt.Get(user) == nil {
			return errServerUserNotFound
		}
		return bkt.Delete(user)
	})
}

// ServerUser looks up one server-user's row.
func (s *Store) ServerUser(ctx context.Context, user []byte) (*ServerUser, error) {
	_, span := trace.StartSpan(ctx, "store.ServerUser")
	defer span.End()
	var out *ServerUser
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(serverUserBucket).Get(user)
		if raw == nil {
			return nil
		}
		onHomepage, notes := decodeServerUserEntry(raw)
		out = &ServerUser{User: append([]byte(nil), user...), OnHomepage: onHomepage, Notes: notes}
		return nil
	})
	return out, err
}

// ServerUserFunc is the server_users pagination callback.
type ServerUserFunc func(ServerUser) bool

// ServerUsers streams every server-user row in user-id order.
func (s *Store) ServerUsers(ctx context.Context, cb ServerUserFunc) error {
	_, span := trace.StartSpan(ctx, "store.ServerUsers")
	defer span.End()
	return s.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(serverUserBucket).Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			onHomepage, notes := decodeServerUserEntry(v)
			row := ServerUser{User: append([]byte(nil), k...), OnHomepage: onHomepage, Notes: notes}
			if !cb(row) {
				return nil
			}
		}
		return nil
	})
}

var errServerUserNotFound = errors.New("no such server user")
