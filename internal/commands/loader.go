// Package commands implements the sdkcore command line tool.
package commands

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/gaborage/sdkcore/config"
	"github.com/gaborage/sdkcore/logger"
)

// LoaderOptions are the flags shared by every command that reads client options.
type LoaderOptions struct {
	ConfigPath string
	EnvPrefix  string
	DotEnv     []string
}

func (o *LoaderOptions) load() (*config.Loader, error) {
	opts := []config.LoaderOption{config.WithEnvPrefix(o.EnvPrefix)}
	if o.ConfigPath != "" {
		opts = append(opts, config.WithFile(o.ConfigPath))
	}
	if len(o.DotEnv) > 0 {
		opts = append(opts, config.WithDotEnv(o.DotEnv...))
	}
	return config.NewLoader(opts...)
}

// newLogger writes to w using the loader's log section when verbose, and discards otherwise.
func newLogger(l *config.Loader, w io.Writer, verbose bool) logger.Logger {
	if !verbose {
		return logger.Nop()
	}
	s := l.Log()
	if s.Pretty {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	return logger.NewWithWriter(s.Level, w, nil)
}
