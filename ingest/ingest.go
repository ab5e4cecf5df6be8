// Package ingest loads the knowledge base documents into the platform's
// vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/iter"

	"laptop-refresh/config"
	"laptop-refresh/llamastack"
)

const (
	IgnoreFile = ".ragignore"
	MimeType   = "text/plain"
)

var (
	ErrNoVectorIOProvider = errors.New("no vector_io provider available")
	ErrNoDocuments        = errors.New("no documents to ingest")
)

// VectorStore is the part of the platform ingestion talks to.
type VectorStore interface {
	ListProviders(ctx context.Context) ([]llamastack.Provider, error)
	RegisterVectorDB(ctx context.Context, vectorDBID, providerID, embeddingModel string) error
	InsertDocuments(ctx context.Context, vectorDBID string, documents []llamastack.Document, chunkSizeInTokens int) error
}

type Result struct {
	ProviderID string
	VectorDBID string
	Documents  []llamastack.Document
}

// Run registers the corpus with the first vector_io provider and inserts
// every document found under cfg.DocsDir.
func Run(ctx context.Context, store VectorStore, cfg config.KnowledgeConfig) (*Result, error) {
	providerID, err := VectorIOProvider(ctx, store)
	if err != nil {
		return nil, err
	}
	log.Info().Str("provider", providerID).Str("vector_db", cfg.VectorDBID).Msg("registering vector db")
	if err := store.RegisterVectorDB(ctx, cfg.VectorDBID, providerID, cfg.EmbeddingModel); err != nil {
		return nil, err
	}

	documents, err := LoadDocuments(cfg.DocsDir)
	if err != nil {
		return nil, err
	}
	if err := store.InsertDocuments(ctx, cfg.VectorDBID, documents, cfg.ChunkSize); err != nil {
		return nil, err
	}
	log.Info().Int("documents", len(documents)).Str("vector_db", cfg.VectorDBID).Msg("documents ingested")
	return &Result{ProviderID: providerID, VectorDBID: cfg.VectorDBID, Documents: documents}, nil
}

func VectorIOProvider(ctx context.Context, store VectorStore) (string, error) {
	providers, err := store.ListProviders(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range providers {
		if p.API == "vector_io" {
			return p.ProviderID, nil
		}
	}
	return "", ErrNoVectorIOProvider
}

// LoadDocuments reads every .txt file under dir, in path order, skipping
// paths matched by dir/.ragignore. Ids are doc-1 to doc-N in that order.
func LoadDocuments(dir string) ([]llamastack.Document, error) {
	paths, err := listTextFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}

	contents, err := iter.MapErr(paths, func(path *string) (string, error) {
		data, err := os.ReadFile(filepath.Join(dir, *path))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", *path, err)
		}
		return string(data), nil
	})
	if err != nil {
		return nil, err
	}

	documents := make([]llamastack.Document, len(paths))
	for i, content := range contents {
		documents[i] = llamastack.Document{
			DocumentID: fmt.Sprintf("doc-%d", i+1),
			Content:    content,
			MimeType:   MimeType,
			Metadata:   map[string]any{},
		}
		log.Debug().Str("document", documents[i].DocumentID).Str("path", paths[i]).Msg("loaded document")
	}
	return documents, nil
}

// listTextFiles returns slash separated paths relative to dir.
func listTextFiles(dir string) ([]string, error) {
	matcher, err := loadIgnore(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".txt") {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func loadIgnore(dir string) (*ignore.GitIgnore, error) {
	path := filepath.Join(dir, IgnoreFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	matcher, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return matcher, nil
}
