package cli

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"laptop-refresh/agent"
	"laptop-refresh/config"
	"laptop-refresh/harness"
	"laptop-refresh/ingest"
	"laptop-refresh/llamastack"
	mcpclient "laptop-refresh/mcp-client"
	"laptop-refresh/service"
)

// ScriptOptions are the flags shared by the conversation commands.
type ScriptOptions struct {
	Script     string `long:"script" description:"YAML script replacing the built-in one"`
	Iterations int    `long:"iterations" description:"override the script's iteration count"`
	Prompt     string `long:"prompt" description:"system prompt file, overrides agent.prompt_file"`
	Seed       int64  `long:"seed" description:"seed for script variables, 0 picks one"`
}

func (o ScriptOptions) script(builtin string) (*harness.Script, error) {
	var (
		script *harness.Script
		err    error
	)
	if o.Script != "" {
		script, err = harness.LoadScript(o.Script)
	} else {
		script, err = harness.BuiltinScript(builtin)
	}
	if err != nil {
		return nil, err
	}
	if o.Iterations > 0 {
		script.Iterations = o.Iterations
	}
	return script, nil
}

func (o ScriptOptions) prompt(cfg *config.Config) (string, error) {
	if o.Prompt != "" {
		cfg.Agent.PromptFile = o.Prompt
	}
	return cfg.ReadPrompt()
}

func (o ScriptOptions) driverOptions(cfg *config.Config) harness.Options {
	opts := harness.Options{
		ShowRAGDocuments: cfg.Harness.ShowRAGDocuments,
		QuestionPause:    cfg.Harness.QuestionPause,
		IterationPause:   cfg.Harness.IterationPause,
	}
	if o.Seed != 0 {
		opts.Rand = rand.New(rand.NewSource(o.Seed))
	}
	return opts
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func platformClient(cfg *config.Config) (*llamastack.Client, error) {
	return llamastack.New(cfg.Platform.BaseURL, cfg.Platform.Timeout, nil)
}

// RunFlowCmd drives the refresh conversation on a platform-hosted agent with
// the knowledge search and MCP tool groups.
type RunFlowCmd struct {
	ScriptOptions
	ShowRAGDocuments bool `long:"show-rag-documents" description:"print the documents retrieved by knowledge search"`

	root *Options
}

func (c *RunFlowCmd) Execute(_ []string) error {
	cfg, err := c.root.load()
	if err != nil {
		return err
	}
	if c.ShowRAGDocuments {
		cfg.Harness.ShowRAGDocuments = true
	}
	return c.root.runRemote(cfg, c.ScriptOptions, "refresh", true)
}

// RoutingCmd grades the routing agent, which has no tools and answers with a
// category label.
type RoutingCmd struct {
	ScriptOptions

	root *Options
}

func (c *RoutingCmd) Execute(_ []string) error {
	cfg, err := c.root.load()
	if err != nil {
		return err
	}
	return c.root.runRemote(cfg, c.ScriptOptions, "routing", false)
}

func (o *Options) runRemote(cfg *config.Config, opts ScriptOptions, builtin string, withTools bool) error {
	script, err := opts.script(builtin)
	if err != nil {
		return err
	}
	instructions, err := opts.prompt(cfg)
	if err != nil {
		return err
	}
	client, err := platformClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	platform, err := agent.NewRemotePlatform(ctx, client, agent.AgentConfig(cfg, instructions, withTools))
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	_, err = harness.NewDriver(platform, o.out, opts.driverOptions(cfg)).Run(ctx, script)
	return err
}

// LocalFlowCmd runs the in-process ReAct agent. Tools come from the
// platform's tool runtime and, when given, from MCP servers reached directly.
type LocalFlowCmd struct {
	ScriptOptions
	MCP []string `long:"mcp" description:"SSE endpoint of an MCP server serving tools directly (repeatable)"`

	root *Options
}

func (c *LocalFlowCmd) Execute(_ []string) error {
	cfg, err := c.root.load()
	if err != nil {
		return err
	}
	script, err := c.script("local")
	if err != nil {
		return err
	}
	instructions, err := c.prompt(cfg)
	if err != nil {
		return err
	}
	client, err := platformClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var source service.ToolSource = client
	if len(c.MCP) > 0 {
		mgr := mcpclient.NewClientMgr()
		defer func() {
			if err := mgr.Close(); err != nil {
				log.Warn().Err(err).Msg("close mcp clients")
			}
		}()
		for _, url := range c.MCP {
			if err := mgr.AddSSEClient(ctx, url); err != nil {
				return err
			}
		}
		source = service.NewToolSources(mgr, client)
	}

	platform, err := agent.NewLocalWorkflow(ctx, cfg, instructions, agent.NewOpenAIClient(cfg), source)
	if err != nil {
		return err
	}
	_, err = harness.NewDriver(platform, c.root.out, c.driverOptions(cfg)).Run(ctx, script)
	return err
}

// IngestCmd loads the text documents of the docs directory into the corpus.
type IngestCmd struct {
	DocsDir string `long:"docs-dir" description:"directory of .txt documents, overrides knowledge.docs_dir"`

	root *Options
}

func (c *IngestCmd) Execute(_ []string) error {
	cfg, err := c.root.load()
	if err != nil {
		return err
	}
	if c.DocsDir != "" {
		cfg.Knowledge.DocsDir = c.DocsDir
	}
	client, err := platformClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	result, err := ingest.Run(ctx, client, cfg.Knowledge)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.root.out, "Inserted %d documents into %s (provider %s)\n", len(result.Documents), result.VectorDBID, result.ProviderID)
	return nil
}
