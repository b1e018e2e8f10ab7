package credibility

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewStore("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestScore_UnknownSourceDefaults(t *testing.T) {
	store := newTestStore(t)

	score, err := store.Score(context.Background(), "random-blog")
	require.NoError(t, err)
	assert.Equal(t, DefaultScore, score)
}

func TestScore_SeededSources(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	score, err := store.Score(ctx, "reuters")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, score, 1e-9)

	score, err = store.Score(ctx, "twitter")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, score, 1e-9)
}

func TestRecordAccuracy_UpdatesScore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	score, err := store.RecordAccuracy(ctx, "newsite", 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	score, err = store.RecordAccuracy(ctx, "newsite", 0.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-9)

	got, err := store.Score(ctx, "newsite")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestRecordAccuracy_RejectsOutOfRange(t *testing.T) {
	store := newTestStore(t)

	_, err := store.RecordAccuracy(context.Background(), "src", 1.5)
	assert.Error(t, err)
	_, err = store.RecordAccuracy(context.Background(), "src", -0.1)
	assert.Error(t, err)
}
