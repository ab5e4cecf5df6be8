package llamastack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type Provider struct {
	API          string `json:"api"`
	ProviderID   string `json:"provider_id"`
	ProviderType string `json:"provider_type"`
}

type Document struct {
	DocumentID string         `json:"document_id"`
	Content    string         `json:"content"`
	MimeType   string         `json:"mime_type"`
	Metadata   map[string]any `json:"metadata"`
}

func (c *Client) ListProviders(ctx context.Context) ([]Provider, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/v1/providers", nil, &raw); err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	providers, err := listData[Provider](raw)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return providers, nil
}

func (c *Client) RegisterVectorDB(ctx context.Context, vectorDBID, providerID, embeddingModel string) error {
	request := struct {
		VectorDBID     string `json:"vector_db_id"`
		ProviderID     string `json:"provider_id"`
		EmbeddingModel string `json:"embedding_model"`
	}{vectorDBID, providerID, embeddingModel}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/vector-dbs", request, nil); err != nil {
		return fmt.Errorf("register vector db %s: %w", vectorDBID, err)
	}
	return nil
}

// InsertDocuments chunks and indexes documents through the RAG tool.
func (c *Client) InsertDocuments(ctx context.Context, vectorDBID string, documents []Document, chunkSizeInTokens int) error {
	for i := range documents {
		if documents[i].Metadata == nil {
			documents[i].Metadata = map[string]any{}
		}
	}
	request := struct {
		Documents         []Document `json:"documents"`
		VectorDBID        string     `json:"vector_db_id"`
		ChunkSizeInTokens int        `json:"chunk_size_in_tokens"`
	}{documents, vectorDBID, chunkSizeInTokens}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tool-runtime/rag-tool/insert", request, nil); err != nil {
		return fmt.Errorf("insert documents into %s: %w", vectorDBID, err)
	}
	return nil
}
