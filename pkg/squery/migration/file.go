package migration

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	errDuplicateVersion = errors.New("duplicate migration version")
	errEmptyMigration   = errors.New("migration has no statements")
)

type migrationFile struct {
	Migrations []struct {
		Version int64    `yaml:"version"`
		Up      []string `yaml:"up"`
	} `yaml:"migrations"`
}

// LoadFile reads migrations from a YAML file of the form
//
//	migrations:
//	  - version: 1
//	    up:
//	      - CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)
//
// Each step executes its statements in order as raw SQL.
func LoadFile(path string) (map[int64]Migrate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading migration file")
	}

	return Parse(data)
}

// LoadDir merges every .yaml and .yml file in dir, in file name order. A version
// defined by two files is an error.
func LoadDir(dir string) (map[int64]Migrate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "reading migration directory")
	}

	var names []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}

	slices.Sort(names)

	all := make(map[int64]Migrate)

	for _, name := range names {
		migrations, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "%s", name)
		}

		for v, m := range migrations {
			if _, ok := all[v]; ok {
				return nil, errors.Wrapf(errDuplicateVersion, "version %d in %s", v, name)
			}

			all[v] = m
		}
	}

	return all, nil
}

// Parse decodes the YAML accepted by LoadFile.
func Parse(data []byte) (map[int64]Migrate, error) {
	var doc migrationFile

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding migrations")
	}

	migrations := make(map[int64]Migrate, len(doc.Migrations))

	for _, m := range doc.Migrations {
		if _, ok := migrations[m.Version]; ok {
			return nil, errors.Wrapf(errDuplicateVersion, "version %d", m.Version)
		}

		stmts := make([]string, 0, len(m.Up))

		for _, s := range m.Up {
			if s = strings.TrimSpace(s); s != "" {
				stmts = append(stmts, s)
			}
		}

		if len(stmts) == 0 {
			return nil, errors.Wrapf(errEmptyMigration, "version %d", m.Version)
		}

		migrations[m.Version] = Migrate{UP: execAll(stmts)}
	}

	if err := validate(migrations); err != nil {
		return nil, err
	}

	return migrations, nil
}

func execAll(stmts []string) MigrateFunc {
	return func(ctx context.Context, d Datasource) error {
		for _, s := range stmts {
			if _, err := d.Tx.ExecContext(ctx, s); err != nil {
				return errors.Wrapf(err, "executing %q", s)
			}
		}

		return nil
	}
}
