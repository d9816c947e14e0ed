package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lychee-technology/sweet"
	"github.com/lychee-technology/sweet/factory"
	"go.uber.org/zap"
)

// InitDBCmd creates the registry table and optionally registers a directory
// of schema files.
type InitDBCmd struct {
	SchemaDir string `name:"schema-dir" help:"Directory of schema files to register" type:"existingdir"`
}

func (c *InitDBCmd) Run(cfg *sweet.Config) error {
	ctx := context.Background()
	rt, err := factory.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if c.SchemaDir != "" {
		if _, err := registerSchemaDir(ctx, rt.Manager, c.SchemaDir, os.Stdout); err != nil {
			return err
		}
	}
	fmt.Println("Database initialized successfully.")
	return nil
}

// registerSchemaDir stores every schema file in dir. Schemas that are
// already registered are skipped.
func registerSchemaDir(ctx context.Context, mgr sweet.SchemaManager, dir string, w io.Writer) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read schema dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	registered := 0
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return registered, fmt.Errorf("read %s: %w", path, err)
		}
		rec, err := mgr.CreateSchema(ctx, raw)
		if sweet.ErrorCode(err) == sweet.ErrCodeSchemaAlreadyExists {
			zap.S().Infow("schema already registered", "file", path)
			fmt.Fprintf(w, "skip %s\n", path)
			continue
		}
		if err != nil {
			return registered, fmt.Errorf("register %s: %w", path, err)
		}
		registered++
		fmt.Fprintf(w, "registered %s as %q (id %d)\n", path, rec.Name, rec.ID)
	}
	return registered, nil
}

// MaterializeCmd creates the tables of stored schemas.
type MaterializeCmd struct {
	Schemas  []string `arg:"" help:"Schema ids or names"`
	IDColumn string   `name:"id-column" help:"Surrogate key column, empty for none" default:"id_"`
	Activate bool     `help:"Activate each schema after its table is created"`
}

func (c *MaterializeCmd) Run(cfg *sweet.Config) error {
	ctx := context.Background()
	rt, err := factory.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	return materialize(ctx, rt.Manager, c.Schemas, sweet.MaterializeOptions{IDColumn: c.IDColumn}, c.Activate, os.Stdout)
}

func materialize(ctx context.Context, mgr sweet.SchemaManager, keys []string, opts sweet.MaterializeOptions, activate bool, w io.Writer) error {
	sels := make([]sweet.SchemaSelector, 0, len(keys))
	for _, key := range keys {
		sels = append(sels, selectorFor(key))
	}

	models, err := mgr.CreateTablesFromSchemas(ctx, sels, opts)
	if err != nil {
		return err
	}
	for _, m := range models {
		fmt.Fprintf(w, "created table %s (%d columns)\n", m.Name, len(m.Columns))
	}

	if !activate {
		return nil
	}
	for _, sel := range sels {
		if _, err := mgr.ActivateSchema(ctx, sel); err != nil {
			return err
		}
	}
	return nil
}

// selectorFor treats an integer key as an id and anything else as a name.
func selectorFor(key string) sweet.SchemaSelector {
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		return sweet.ByID(id)
	}
	return sweet.ByName(key)
}
