// Package config loads the htables ini configuration used by the CLI.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/inovacc/htables/internal/application"
	"github.com/inovacc/htables/internal/connuri"
	"github.com/inovacc/htables/pkg/htables"
	"gopkg.in/ini.v1"
)

const (
	sectionDatabase = "database"
	sectionTables   = "tables"
)

type Database struct {
	URI     string `ini:"uri"`
	PoolMin int    `ini:"pool_min"`
	PoolMax int    `ini:"pool_max"`
	Debug   bool   `ini:"debug"`
	Codec   string `ini:"codec"`
	// Files is the bbolt file store path. Empty keeps large objects in memory.
	Files string `ini:"files"`
}

// Table maps a table name to its row kind.
type Table struct {
	Name string
	Kind string
}

type Config struct {
	Database Database
	Tables   []Table
}

// Default returns a configuration storing everything under the
// application directory, or the working directory when there is none.
func Default() *Config {
	dir, err := application.GetApplicationDirectory()
	if err != nil {
		dir = "."
	}

	return &Config{
		Database: Database{
			URI:     "sqlite://" + filepath.Join(dir, "data.db"),
			PoolMin: htables.DefaultPoolMin,
			PoolMax: htables.DefaultPoolMax,
			Codec:   htables.JSONCodec.Name(),
			Files:   filepath.Join(dir, "files.bolt"),
		},
	}
}

// Load reads the ini file at path on top of the defaults. A missing file
// yields the defaults when optional is set.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.apply(file); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Parse reads configuration from ini source, as accepted by ini.Load.
func Parse(source any) (*Config, error) {
	cfg := Default()

	file, err := ini.Load(source)
	if err != nil {
		return nil, err
	}

	if err := cfg.apply(file); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) apply(file *ini.File) error {
	database := file.Section(sectionDatabase)
	if err := database.StrictMapTo(&c.Database); err != nil {
		return err
	}

	// MapTo skips empty values, but an empty files key selects memory.
	if database.HasKey("files") {
		c.Database.Files = database.Key("files").String()
	}

	if file.HasSection(sectionTables) {
		for _, key := range file.Section(sectionTables).Keys() {
			c.Tables = append(c.Tables, Table{Name: key.Name(), Kind: key.Value()})
		}
	}

	return c.Validate()
}

// HasTable reports whether the [tables] section declares name.
func (c *Config) HasTable(name string) bool {
	for _, t := range c.Tables {
		if t.Name == name {
			return true
		}
	}

	return false
}

// Validate checks the values that can be checked without a database.
func (c *Config) Validate() error {
	if _, err := htables.CodecByName(c.Database.Codec); err != nil {
		return err
	}

	if c.Database.PoolMin < 0 || c.Database.PoolMax < 1 || c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("invalid pool size %d..%d", c.Database.PoolMin, c.Database.PoolMax)
	}

	_, err := c.Schema()

	return err
}

// Schema builds the table registry declared in the [tables] section.
func (c *Config) Schema() (*htables.Schema, error) {
	schema := htables.NewSchema()

	for _, t := range c.Tables {
		if _, err := schema.DefineTable(t.Kind, t.Name); err != nil {
			return nil, err
		}
	}

	return schema, nil
}

// Open binds the schema to the configured database. The returned close
// function releases the pool and the file store.
func (c *Config) Open(ctx context.Context, logger *slog.Logger) (*htables.SessionPool, func(), error) {
	schema, err := c.Schema()
	if err != nil {
		return nil, nil, err
	}

	codec, err := htables.CodecByName(c.Database.Codec)
	if err != nil {
		return nil, nil, err
	}

	opts := []htables.Option{
		htables.WithPoolSize(c.Database.PoolMin, c.Database.PoolMax),
		htables.WithDebug(c.Database.Debug),
		htables.WithCodec(codec),
		htables.WithLogger(logger),
	}

	scheme, err := connuri.Scheme(c.Database.URI)
	if err != nil {
		return nil, nil, err
	}

	var files *htables.BoltFileStore

	// PostgreSQL keeps large objects in the database itself.
	if scheme == connuri.SchemeSQLite && c.Database.Files != "" {
		if err := os.MkdirAll(filepath.Dir(c.Database.Files), 0o755); err != nil {
			return nil, nil, err
		}

		files, err = htables.OpenBoltFileStore(c.Database.Files)
		if err != nil {
			return nil, nil, err
		}

		opts = append(opts, htables.WithFileStore(files))
	}

	pool, err := schema.Open(ctx, c.Database.URI, opts...)
	if err != nil {
		if files != nil {
			_ = files.Close()
		}

		return nil, nil, err
	}

	closeFn := func() {
		pool.Close()

		if files != nil {
			if err := files.Close(); err != nil {
				logger.Warn("failed to close file store", "error", err)
			}
		}
	}

	return pool, closeFn, nil
}
