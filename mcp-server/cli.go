package mcpserver

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"laptop-refresh/shared"
)

// Main parses args, then runs s until SIGINT or SIGTERM. It returns the
// process exit code.
func Main(s *Server, args []string, defaultPort int) int {
	opts := Options{Port: defaultPort}
	parser := flags.NewParser(&opts, flags.Default)
	parser.Name = s.Name()
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 2
	}
	if err := shared.SetLogLevel(opts.LogLevel); err != nil {
		log.Error().Err(err).Msg("invalid log level")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := s.Run(ctx, opts); err != nil {
		log.Error().Err(err).Str("server", s.Name()).Msg("run server failed")
		return 1
	}
	return 0
}
