// Command sweet-tools validates table schemas, renders their DDL and
// manages the schema registry from the command line.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/lychee-technology/sweet"
	"github.com/lychee-technology/sweet/internal"
	"go.uber.org/zap"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config   string `name:"config" short:"c" help:"Path to a JSON or YAML config file" type:"path" env:"SWEET_CONFIG"`
	LogLevel string `name:"log-level" help:"Override the configured log level"`
}

// load reads the config file and applies the global overrides.
func (g *Globals) load() (*sweet.Config, error) {
	cfg, err := sweet.LoadConfig(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}
	return cfg, nil
}

// CLI defines the command-line interface for sweet-tools.
var CLI struct {
	Globals

	Validate    ValidateCmd    `cmd:"" help:"Validate schema files against the meta-schema"`
	Compose     ComposeCmd     `cmd:"" help:"Print the composed meta-schema"`
	DDL         DDLCmd         `cmd:"" name:"ddl" help:"Print the CREATE TABLE statements for a schema file"`
	InitDB      InitDBCmd      `cmd:"" name:"init-db" help:"Create the schema registry table and register schema files"`
	Materialize MaterializeCmd `cmd:"" help:"Create tables for stored schemas in dependency order"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sweet-tools"),
		kong.Description("Schema registry and table materialization tools"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	cfg, err := CLI.Globals.load()
	ctx.FatalIfErrorf(err)

	logger, err := internal.NewLogger(cfg.Logging)
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	err = ctx.Run(cfg)
	ctx.FatalIfErrorf(err)
}
