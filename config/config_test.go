package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLAMA_STACK_HOST", "")
	t.Setenv("MODEL_ID", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPlatformURL, cfg.Platform.BaseURL)
	assert.Equal(t, 120*time.Second, cfg.Platform.Timeout)
	assert.Equal(t, DefaultModel, cfg.Agent.Model)
	assert.Equal(t, "meta-llama/Llama-3.1-8B-Instruct", cfg.Agent.RoutingModel)
	assert.Equal(t, "auto", cfg.Agent.ToolChoice)
	assert.Equal(t, 10, cfg.Agent.MaxInferIters)
	assert.True(t, cfg.Agent.KnowledgeSearch)
	assert.Equal(t, []string{AssetDBToolGroup, ServiceNowToolGroup}, cfg.Agent.ToolGroups)
	assert.Equal(t, DefaultVectorDBID, cfg.Knowledge.VectorDBID)
	assert.Equal(t, DefaultEmbeddingModel, cfg.Knowledge.EmbeddingModel)
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
	assert.Equal(t, "http://localhost:8321/v1/openai/v1", cfg.OpenAIBaseURL())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
platform:
  base_url: "http://10.1.2.128:8321"
  timeout: 30s
agent:
  model: "meta-llama/Llama-3.1-8B-Instruct"
  routing_model: "router-1b"
  knowledge_search: false
  toolgroups: []
knowledge:
  docs_dir: "./kb"
harness:
  show_rag_documents: true
  question_pause: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Run("file values", func(t *testing.T) {
		t.Setenv("LLAMA_STACK_HOST", "")
		t.Setenv("MODEL_ID", "")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "http://10.1.2.128:8321", cfg.Platform.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.Platform.Timeout)
		assert.Equal(t, "meta-llama/Llama-3.1-8B-Instruct", cfg.Agent.Model)
		assert.Equal(t, "router-1b", cfg.Agent.RoutingModel)
		assert.False(t, cfg.Agent.KnowledgeSearch)
		assert.Empty(t, cfg.Agent.ToolGroups)
		assert.Equal(t, "./kb", cfg.Knowledge.DocsDir)
		assert.True(t, cfg.Harness.ShowRAGDocuments)
		assert.Equal(t, 500*time.Millisecond, cfg.Harness.QuestionPause)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("LLAMA_STACK_HOST", "stack.internal:9000")
		t.Setenv("MODEL_ID", "my-model3")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "http://stack.internal:9000", cfg.Platform.BaseURL)
		assert.Equal(t, "my-model3", cfg.Agent.Model)
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPlatformURL(t *testing.T) {
	cases := map[string]string{
		"localhost:8321":         "http://localhost:8321",
		"10.1.2.128":             "http://10.1.2.128:8321",
		"http://example.com/":    "http://example.com",
		" https://stack:443 ":    "https://stack:443",
		"llama-stack.local:9999": "http://llama-stack.local:9999",
	}
	for in, want := range cases {
		assert.Equal(t, want, PlatformURL(in), in)
	}
}

func TestReadPrompt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  You are a laptop refresh assistant.\n"), 0o644))

	cfg := &Config{Agent: AgentConfig{PromptFile: path}}
	prompt, err := cfg.ReadPrompt()
	require.NoError(t, err)
	assert.Equal(t, "You are a laptop refresh assistant.", prompt)

	cfg.Agent.PromptFile = filepath.Join(t.TempDir(), "nope.txt")
	_, err = cfg.ReadPrompt()
	assert.Error(t, err)
}
