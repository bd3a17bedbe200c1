package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerUserAddRemoveList(t *testing.T) {
	s := freshStore(t)
	u := mustUser(1)

	require.NoError(t, s.AddServerUser(context.Background(), u, true, "notes here"))

	row, err := s.ServerUser(context.Background(), u)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.True(t, row.OnHomepage)
	require.Equal(t, "notes here", row.Notes)

	var all []ServerUser
	err = s.ServerUsers(context.Background(), func(su ServerUser) bool {
		all = append(all, su)
		return true
	})
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, s.RemoveServerUser(context.Background(), u))
	row, err = s.ServerUser(context.Background(), u)
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestRemoveServerUserNotFound(t *testing.T) {
	s := freshStore(t)
	err := s.RemoveServerUser(context.Background(), mustUser(2))
	require.ErrorIs(t, err, errServerUserNotFound)
}
