package vector

import (
	"context"
	"testing"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(id, content string, emb ...float32) *models.Chunk {
	return &models.Chunk{ID: id, Source: "a.txt", Content: content, ChunkCount: 1, Embedding: emb}
}

func TestStore_CreateSaveOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	assert.False(t, Exists(dir))

	s, err := NewStore(dir, "memory", 2)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, []*models.Chunk{
		chunk("c1", "office hours", 3, 4),
		chunk("c2", "parking", 0, 1),
	}))
	require.NoError(t, s.Save())
	require.True(t, Exists(dir))

	opened, err := OpenStore(dir, "memory", 2)
	require.NoError(t, err)
	defer opened.Close()
	assert.Equal(t, 2, opened.Size())
	got := opened.Chunks()
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Nil(t, got[0].Embedding, "embeddings are kept in the vector file only")

	hits, err := opened.Search(ctx, []float32{6, 8}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "office hours", hits[0].Chunk.Content)
	assert.Equal(t, 1, hits[0].Rank)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
}

func TestStore_AppendAfterOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := NewStore(dir, "", 2)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, []*models.Chunk{chunk("c1", "one", 1, 0)}))
	require.NoError(t, s.Save())

	reopened, err := OpenStore(dir, "", 2)
	require.NoError(t, err)
	require.NoError(t, reopened.Add(ctx, []*models.Chunk{chunk("c2", "two", 1, 0)}))
	require.NoError(t, reopened.Save())

	final, err := OpenStore(dir, "memory", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, final.Size())

	hits, err := final.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1", hits[0].Chunk.ID, "equal scores keep insertion order")
	assert.Equal(t, "c2", hits[1].Chunk.ID)
}

func TestStore_Rejects(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(t.TempDir(), "memory", 2)
	require.NoError(t, err)

	assert.Error(t, s.Add(ctx, []*models.Chunk{chunk("c1", "no embedding")}))
	require.NoError(t, s.Add(ctx, []*models.Chunk{chunk("c1", "one", 1, 0)}))
	assert.Error(t, s.Add(ctx, []*models.Chunk{chunk("c1", "dup", 1, 0)}))
	assert.Equal(t, 1, s.Size())
}

func TestOpenStore_Mismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "memory", 2)
	require.NoError(t, err)
	require.NoError(t, s.Add(context.Background(), []*models.Chunk{chunk("c1", "one", 1, 0)}))
	require.NoError(t, s.Save())

	_, err = OpenStore(dir, "memory", 3)
	assert.Error(t, err)
	_, err = OpenStore(dir, "faiss", 2)
	assert.Error(t, err)
	_, err = OpenStore(t.TempDir(), "memory", 2)
	assert.Error(t, err)
}
