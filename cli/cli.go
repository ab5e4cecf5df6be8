// Package cli is the harness command line: run-flow, routing, local-flow and
// ingest.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"laptop-refresh/config"
	"laptop-refresh/shared"
)

// Options is the root command. Its flags apply to every sub-command.
type Options struct {
	Config   string `short:"f" long:"config" description:"YAML config file"`
	LogLevel string `long:"log-level" choice:"DEBUG" choice:"INFO" choice:"WARNING" choice:"ERROR" default:"INFO" description:"log level"`

	RunFlow   RunFlowCmd   `command:"run-flow" description:"Drive the laptop refresh agent hosted by the platform"`
	Routing   RoutingCmd   `command:"routing" description:"Grade the tool-less routing agent"`
	LocalFlow LocalFlowCmd `command:"local-flow" description:"Drive the in-process ReAct agent against the platform's model"`
	Ingest    IngestCmd    `command:"ingest" description:"Load the knowledge base into the vector store"`

	out io.Writer
}

func newOptions(out io.Writer) *Options {
	opts := &Options{out: out}
	opts.RunFlow.root = opts
	opts.Routing.root = opts
	opts.LocalFlow.root = opts
	opts.Ingest.root = opts
	return opts
}

// load applies the log level and reads the configuration.
func (o *Options) load() (*config.Config, error) {
	if err := shared.SetLogLevel(o.LogLevel); err != nil {
		return nil, err
	}
	return config.Load(o.Config)
}

// Run parses args and executes the selected command. It returns the process
// exit code.
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

// run reports usage problems on errOut and command failures through the
// logger, each exactly once.
func run(args []string, out, errOut io.Writer) int {
	opts := newOptions(out)
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Fprintln(out, flagsErr.Message)
				return 0
			}
			fmt.Fprintln(errOut, flagsErr.Message)
			return 2
		}
		log.Error().Err(err).Msg("command failed")
		return 1
	}
	return 0
}
