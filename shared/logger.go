package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	wd, err := os.Getwd()
	if err != nil {
		wd = ""
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
		FormatCaller: func(i interface{}) string {
			path, _ := i.(string)
			relPath, err := filepath.Rel(wd, path)
			if err != nil || wd == "" {
				relPath = path
			}
			return fmt.Sprintf("[%s]", relPath)
		},
		NoColor: false,
	}
	log.Logger = zerolog.New(consoleWriter).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetLogLevel accepts the level names used by the command line flags
// (DEBUG, INFO, WARNING, ERROR) as well as zerolog's own names.
func SetLogLevel(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
	return nil
}
