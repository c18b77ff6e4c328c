package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"text/template"
	"time"
)

const timestampLayout = "20060102150405"

var (
	errNameEmpty   = errors.New("please provide the migration name")
	errNameInvalid = errors.New("migration name may only hold letters, digits and underscores")
	migNameRegex   = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

//nolint:gochecknoglobals // parsed once at startup.
var migrationTemplate = template.Must(template.New("migrationContent").Parse(
	`# This file was created by 'squery migrate create'.
# {{ .Name }}
migrations:
  - version: {{ .Version }}
    up:
      # write your statements here
      - SELECT 1
`))

// createMigration writes <dir>/<timestamp>_<name>.yaml. The timestamp is also the
// migration version, so files created later always run later.
func createMigration(dir, name string, now time.Time) (string, error) {
	if name == "" {
		return "", errNameEmpty
	}

	if !migNameRegex.MatchString(name) {
		return "", fmt.Errorf("%w: %q", errNameInvalid, name)
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("error while creating migration directory, err: %w", err)
	}

	stamp := now.Format(timestampLayout)
	path := filepath.Join(dir, stamp+"_"+name+".yaml")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("error while creating migration file, err: %w", err)
	}
	defer file.Close()

	err = migrationTemplate.Execute(file, struct {
		Name    string
		Version string
	}{Name: name, Version: stamp})
	if err != nil {
		return "", err
	}

	return path, nil
}
