//go:build integration
// +build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/store"
	"github.com/taurimind/server/internal/testutil"
)

func TestPostgresRoundTrip_Integration(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.NewPostgres(testDB.Pool, log.NewNop())
	ctx := context.Background()

	_, _, exists, err := s.Load(ctx, "conversation/u1/c1/messages")
	require.NoError(t, err)
	assert.False(t, exists, "absent key should not exist")

	etag, err := s.Save(ctx, "conversation/u1/c1/messages", []byte(`{"messages":[]}`))
	require.NoError(t, err)
	assert.NotEmpty(t, etag)

	state, gotTag, exists, err := s.Load(ctx, "conversation/u1/c1/messages")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.JSONEq(t, `{"messages":[]}`, string(state))
	assert.Equal(t, etag, gotTag)
}

func TestPostgresUpsertChangesETag_Integration(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.NewPostgres(testDB.Pool, log.NewNop())
	ctx := context.Background()

	tag1, err := s.Save(ctx, "k", []byte(`{"n":1}`))
	require.NoError(t, err)
	tag2, err := s.Save(ctx, "k", []byte(`{"n":2}`))
	require.NoError(t, err)
	assert.NotEqual(t, tag1, tag2, "etag must change with content")

	tag3, err := s.Save(ctx, "k", []byte(`{"n":1}`))
	require.NoError(t, err)
	assert.Equal(t, tag1, tag3, "identical content must yield identical etag")
}

func TestPostgresClear_Integration(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	s := store.NewPostgres(testDB.Pool, log.NewNop())
	ctx := context.Background()

	_, err := s.Save(ctx, "k", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx, "k"))

	_, _, exists, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)

	// Clearing an absent key is not an error.
	assert.NoError(t, s.Clear(ctx, "never-saved"))
}
