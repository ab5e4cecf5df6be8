package ingest_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptop-refresh/config"
	"laptop-refresh/ingest"
	"laptop-refresh/llamastack"
	"laptop-refresh/llamastack/llamastacktest"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func knowledgeConfig(dir string) config.KnowledgeConfig {
	return config.KnowledgeConfig{
		VectorDBID:     config.DefaultVectorDBID,
		EmbeddingModel: config.DefaultEmbeddingModel,
		ChunkSize:      config.DefaultChunkSize,
		DocsDir:        dir,
	}
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "second")
	writeFile(t, dir, "a.txt", "first")
	writeFile(t, dir, "nested/c.txt", "third")
	writeFile(t, dir, "notes.md", "not a text file")
	writeFile(t, dir, "drafts/d.txt", "ignored draft")
	writeFile(t, dir, "old.txt", "ignored file")
	writeFile(t, dir, ingest.IgnoreFile, "drafts/\nold.txt\n")

	docs, err := ingest.LoadDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "doc-1", docs[0].DocumentID)
	assert.Equal(t, "first", docs[0].Content)
	assert.Equal(t, "doc-2", docs[1].DocumentID)
	assert.Equal(t, "second", docs[1].Content)
	assert.Equal(t, "doc-3", docs[2].DocumentID)
	assert.Equal(t, "third", docs[2].Content)
	for _, doc := range docs {
		assert.Equal(t, "text/plain", doc.MimeType)
		assert.NotNil(t, doc.Metadata)
		assert.Empty(t, doc.Metadata)
	}
}

func TestLoadDocumentsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", "nothing to ingest")

	_, err := ingest.LoadDocuments(dir)
	assert.ErrorIs(t, err, ingest.ErrNoDocuments)

	_, err = ingest.LoadDocuments(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRunRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 8; i++ {
		writeFile(t, dir, fmt.Sprintf("%02d.txt", i), fmt.Sprintf("General policy page %d.", i))
	}
	refresh := "Laptops in Europe are refreshed every three years with the Lenovo ThinkPad T14."
	writeFile(t, dir, "07.txt", refresh)

	fake := llamastacktest.New(t)
	client := fake.Client(t)
	result, err := ingest.Run(context.Background(), client, knowledgeConfig(dir))
	require.NoError(t, err)
	assert.Equal(t, "faiss", result.ProviderID)
	require.Len(t, result.Documents, 8)

	db := fake.VectorDBs[config.DefaultVectorDBID]
	assert.Equal(t, "faiss", db.ProviderID)
	assert.Equal(t, "all-MiniLM-L6-v2", db.EmbeddingModel)
	assert.Equal(t, 1000, fake.ChunkSizes[config.DefaultVectorDBID])
	stored := fake.Documents[config.DefaultVectorDBID]
	require.Len(t, stored, 8)
	assert.Equal(t, "doc-7", stored[6].DocumentID)

	reply, err := client.InvokeTool(context.Background(), "knowledge_search", map[string]any{
		"query":         "ThinkPad refresh",
		"vector_db_ids": []string{config.DefaultVectorDBID},
	})
	require.NoError(t, err)
	require.Len(t, reply.Content, 3)
	assert.Equal(t, fmt.Sprintf("Result 1\nContent: %s\nMetadata: {'document_id': 'doc-7'}\n", refresh), reply.Content[1].Text)
}

type noVectorIO struct{}

func (noVectorIO) ListProviders(context.Context) ([]llamastack.Provider, error) {
	return []llamastack.Provider{{API: "inference", ProviderID: "vllm"}}, nil
}

func (noVectorIO) RegisterVectorDB(context.Context, string, string, string) error {
	return nil
}

func (noVectorIO) InsertDocuments(context.Context, string, []llamastack.Document, int) error {
	return nil
}

func TestRunWithoutVectorIOProvider(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "content")

	_, err := ingest.Run(context.Background(), noVectorIO{}, knowledgeConfig(dir))
	assert.ErrorIs(t, err, ingest.ErrNoVectorIOProvider)
}

func TestRunWithoutDocuments(t *testing.T) {
	fake := llamastacktest.New(t)
	_, err := ingest.Run(context.Background(), fake.Client(t), knowledgeConfig(t.TempDir()))
	assert.ErrorIs(t, err, ingest.ErrNoDocuments)
	assert.Contains(t, fake.VectorDBs, config.DefaultVectorDBID)
}
