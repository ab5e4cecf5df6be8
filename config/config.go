package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPlatformURL     = "http://localhost:8321"
	DefaultModel           = "llama-4-scout-17b-16e-w4a16"
	DefaultRoutingModel    = "meta-llama/Llama-3.1-8B-Instruct"
	DefaultVectorDBID      = "laptop-refresh-knowledge-base"
	DefaultEmbeddingModel  = "all-MiniLM-L6-v2"
	DefaultChunkSize       = 1000
	DefaultMaxInferIters   = 10
	DefaultKnowledgeSearch = "builtin::rag/knowledge_search"
	AssetDBToolGroup       = "mcp::asset_database"
	ServiceNowToolGroup    = "mcp::servicenow"
)

// Config stores all configuration of the harness.
// The values are read by viper from an optional config file or environment variables.
type Config struct {
	Platform  PlatformConfig  `mapstructure:"platform"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Harness   HarnessConfig   `mapstructure:"harness"`
}

// PlatformConfig locates the orchestration platform.
type PlatformConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	APIKey  string        `mapstructure:"api_key"` // OpenAI-compatible endpoint key, any value works for llama stack
}

// AgentConfig is the agent configuration payload.
type AgentConfig struct {
	Model           string   `mapstructure:"model"`
	RoutingModel    string   `mapstructure:"routing_model"` // model of the tool-less routing agent
	PromptFile      string   `mapstructure:"prompt_file"`
	ToolChoice      string   `mapstructure:"tool_choice"`
	MaxInferIters   int      `mapstructure:"max_infer_iters"`
	KnowledgeSearch bool     `mapstructure:"knowledge_search"` // bind the RAG tool group to the agent
	ToolGroups      []string `mapstructure:"toolgroups"`
	Temperature     float32  `mapstructure:"temperature"`
}

// KnowledgeConfig describes the RAG corpus.
type KnowledgeConfig struct {
	VectorDBID     string `mapstructure:"vector_db_id"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	ChunkSize      int    `mapstructure:"chunk_size_in_tokens"`
	DocsDir        string `mapstructure:"docs_dir"`
}

// HarnessConfig controls the conversation driver.
type HarnessConfig struct {
	ShowRAGDocuments bool          `mapstructure:"show_rag_documents"`
	QuestionPause    time.Duration `mapstructure:"question_pause"`
	IterationPause   time.Duration `mapstructure:"iteration_pause"`
}

// Load reads configuration from configPath (when non-empty) and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LAPTOP_REFRESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("agent.model", "MODEL_ID", "LAPTOP_REFRESH_AGENT_MODEL")
	_ = v.BindEnv("platform.api_key", "OPENAI_API_KEY", "LAPTOP_REFRESH_PLATFORM_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// LLAMA_STACK_HOST is host:port without a scheme.
	if host := os.Getenv("LLAMA_STACK_HOST"); host != "" {
		cfg.Platform.BaseURL = PlatformURL(host)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("platform.base_url", DefaultPlatformURL)
	v.SetDefault("platform.timeout", 120*time.Second)
	v.SetDefault("platform.api_key", "dummy-key-for-llamastack")

	v.SetDefault("agent.model", DefaultModel)
	v.SetDefault("agent.routing_model", DefaultRoutingModel)
	v.SetDefault("agent.prompt_file", "prompt.txt")
	v.SetDefault("agent.tool_choice", "auto")
	v.SetDefault("agent.max_infer_iters", DefaultMaxInferIters)
	v.SetDefault("agent.knowledge_search", true)
	v.SetDefault("agent.toolgroups", []string{AssetDBToolGroup, ServiceNowToolGroup})
	v.SetDefault("agent.temperature", 0)

	v.SetDefault("knowledge.vector_db_id", DefaultVectorDBID)
	v.SetDefault("knowledge.embedding_model", DefaultEmbeddingModel)
	v.SetDefault("knowledge.chunk_size_in_tokens", DefaultChunkSize)
	v.SetDefault("knowledge.docs_dir", "./docs")

	v.SetDefault("harness.show_rag_documents", false)
	v.SetDefault("harness.question_pause", time.Duration(0))
	v.SetDefault("harness.iteration_pause", time.Duration(0))
}

func (c *Config) Validate() error {
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("agent.model is required")
	}
	if c.Agent.MaxInferIters <= 0 {
		return fmt.Errorf("agent.max_infer_iters must be > 0")
	}
	if c.Knowledge.ChunkSize <= 0 {
		return fmt.Errorf("knowledge.chunk_size_in_tokens must be > 0")
	}
	return nil
}

// PlatformURL turns a host[:port] into a platform base URL. A host given
// without a port gets the platform's default port 8321.
func PlatformURL(host string) string {
	host = strings.TrimSpace(host)
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	if !strings.Contains(host, ":") {
		host += ":8321"
	}
	return "http://" + host
}

// OpenAIBaseURL is the OpenAI-compatible endpoint served by the platform.
func (c *Config) OpenAIBaseURL() string {
	return strings.TrimRight(c.Platform.BaseURL, "/") + "/v1/openai/v1"
}

// ReadPrompt loads the agent's system instructions.
func (c *Config) ReadPrompt() (string, error) {
	data, err := os.ReadFile(c.Agent.PromptFile)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
