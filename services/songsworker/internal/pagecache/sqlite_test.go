package pagecache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pages.sqlite")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "1", []byte("first")))
	require.NoError(t, s.Put(ctx, "1", []byte("second")))
	require.NoError(t, s.Close())

	// survives reopen
	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	page, ok, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", string(page))
}
