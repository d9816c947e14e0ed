package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lychee-technology/sweet"
	"github.com/lychee-technology/sweet/factory"
	"github.com/lychee-technology/sweet/internal"
)

// MetaSchemaFlags override the configured meta-schema sources.
type MetaSchemaFlags struct {
	Base               string   `name:"base" help:"Base meta-schema file" type:"existingfile"`
	Extensions         []string `name:"extension" help:"Extension meta-schema file (repeatable)" type:"existingfile"`
	NoDefaultExtension bool     `name:"no-default-extension" help:"Validate against the base meta-schema only"`
}

func (f MetaSchemaFlags) apply(cfg sweet.MetaSchemaConfig) sweet.MetaSchemaConfig {
	if f.Base != "" {
		cfg.BasePath = f.Base
	}
	if len(f.Extensions) > 0 {
		cfg.ExtensionPaths = f.Extensions
	}
	if f.NoDefaultExtension {
		cfg.DisableDefaultExtension = true
	}
	return cfg
}

// ValidateCmd checks schema files without touching a database.
type ValidateCmd struct {
	MetaSchemaFlags `embed:""`

	Files []string `arg:"" help:"Schema files (.json, .yaml, .yml)" type:"existingfile"`
}

func (c *ValidateCmd) Run(cfg *sweet.Config) error {
	validator, err := factory.NewSchemaValidator(c.apply(cfg.MetaSchema))
	if err != nil {
		return err
	}
	return validateFiles(validator, c.Files, os.Stdout)
}

func validateFiles(validator *internal.SchemaValidator, files []string, w io.Writer) error {
	failed := 0
	for _, path := range files {
		if _, err := validator.Validate(sweet.FromPath(path)); err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s: %v\n", path, err)
			if se, ok := sweet.AsSweetError(err); ok {
				if violations, ok := se.Details["violations"].([]internal.Violation); ok {
					for _, v := range violations {
						fmt.Fprintf(w, "  %s: %s\n", v.Instance, v.Message)
					}
				}
			}
			continue
		}
		fmt.Fprintf(w, "ok   %s\n", path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d schema files are invalid", failed, len(files))
	}
	return nil
}

// ComposeCmd prints the meta-schema a validator would use.
type ComposeCmd struct {
	MetaSchemaFlags `embed:""`

	Out string `short:"o" help:"Write to file instead of stdout" type:"path"`
}

func (c *ComposeCmd) Run(cfg *sweet.Config) error {
	out, err := composeMetaSchema(c.apply(cfg.MetaSchema))
	if err != nil {
		return err
	}
	if c.Out == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(c.Out, out, 0o644)
}

func composeMetaSchema(cfg sweet.MetaSchemaConfig) ([]byte, error) {
	validator, err := factory.NewSchemaValidator(cfg)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(validator.MetaSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode meta-schema: %w", err)
	}
	return append(out, '\n'), nil
}

// DDLCmd renders the DDL for a schema file without a database.
type DDLCmd struct {
	MetaSchemaFlags `embed:""`

	File     string `arg:"" help:"Schema file" type:"existingfile"`
	Dialect  string `help:"Target dialect (sqlite, postgresql, duckdb)" default:"sqlite"`
	IDColumn string `name:"id-column" help:"Surrogate key column, empty for none" default:"id_"`
}

func (c *DDLCmd) Run(cfg *sweet.Config) error {
	validator, err := factory.NewSchemaValidator(c.apply(cfg.MetaSchema))
	if err != nil {
		return err
	}
	ddl, err := renderDDL(validator, c.File, c.Dialect, c.IDColumn)
	if err != nil {
		return err
	}
	fmt.Print(ddl)
	return nil
}

func renderDDL(validator *internal.SchemaValidator, path, dialectName, idColumn string) (string, error) {
	dialect, err := sweet.ParseDialect(dialectName)
	if err != nil {
		return "", err
	}
	canonical, err := validator.Validate(sweet.FromPath(path))
	if err != nil {
		return "", err
	}
	doc, err := internal.DecodeDocument(canonical)
	if err != nil {
		return "", err
	}
	model, err := internal.BuildTableModel(doc, dialect, idColumn)
	if err != nil {
		return "", err
	}
	stmts, err := internal.RenderCreateTable(model, dialect, nil)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, stmt := range stmts {
		b.WriteString(stmt)
		b.WriteString(";\n")
	}
	return b.String(), nil
}
