// Package commands implements the picoquery command line.
package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/pful/pico/entitystore"
	"github.com/pful/pico/internal/config"
)

const (
	flagConfig   = "config"
	flagCatalog  = "catalog"
	flagAlias    = "alias"
	flagBind     = "bind"
	flagStrict   = "strict"
	flagSkip     = "skip"
	flagLimit    = "limit"
	flagFile     = "file"
	flagEventual = "eventual"
)

// EngineFactory opens the engine selected by the database section. The returned func releases it.
type EngineFactory func(ctx context.Context, db config.Database, logger *slog.Logger) (entitystore.Engine, func(), error)

// Option configures NewApp.
type Option func(*settings)

type settings struct {
	stdout    io.Writer
	stderr    io.Writer
	newEngine EngineFactory
}

// WithOutput redirects command output and logs.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *settings) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

// WithEngineFactory replaces OpenEngine.
func WithEngineFactory(factory EngineFactory) Option {
	return func(s *settings) {
		s.newEngine = factory
	}
}

// NewApp builds the picoquery app.
func NewApp(options ...Option) *cli.App {
	s := &settings{newEngine: OpenEngine}
	for _, option := range options {
		option(s)
	}

	app := &cli.App{
		Name:  "picoquery",
		Usage: "Render query templates and run them against the entity store",
		Description: `Templates are the standard entity and group templates plus the ones declared
in the configuration file and in catalog files.

Bind values are read as JSON where possible, so 36 binds a number, '["a","b"]' a list
and ada the string "ada".

Example:
  picoquery --config pico.yml find --alias entity.by_type --bind APP_ID=app42 --bind TYPE=user`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "Configuration file",
				EnvVars: []string{"PICO_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:  flagCatalog,
				Usage: "Template catalog file, may be repeated",
			},
		},
		Commands: []*cli.Command{
			TemplatesCommand(),
			RenderCommand(),
			FindCommand(s.newEngine),
			ImportCommand(s.newEngine),
			InitSchemaCommand(s.newEngine),
		},
		DisableSliceFlagSeparator: true,
	}

	if s.stdout != nil {
		app.Writer = s.stdout
	}
	if s.stderr != nil {
		app.ErrWriter = s.stderr
	}

	return app
}
