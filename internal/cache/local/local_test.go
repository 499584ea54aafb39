package local

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellixvulnteam/jolt/internal/cache"
)

func TestPutThenGetRoundTrips(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "abc123", bytes.NewReader([]byte("payload"))))

	var buf bytes.Buffer
	require.NoError(t, s.Get(ctx, "abc123", &buf))
	assert.Equal(t, "payload", buf.String())
}

func TestHasReportsAbsence(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ok, err := s.Has(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasReportsPresence(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "abc123", bytes.NewReader([]byte("payload"))))

	ok, err := s.Has(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	err = s.Get(context.Background(), "missing", &buf)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestPutOverwritesExistingIdentity(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "abc123", bytes.NewReader([]byte("first"))))
	require.NoError(t, s.Put(ctx, "abc123", bytes.NewReader([]byte("second"))))

	var buf bytes.Buffer
	require.NoError(t, s.Get(ctx, "abc123", &buf))
	assert.Equal(t, "second", buf.String())
}
