package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	defaultFileName         = "/.env"
	defaultOverrideFileName = "/.local.env"
)

type logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// EnvLoader is a Config backed by process environment variables.
type EnvLoader struct {
	logger logger
}

// NewEnvFile loads <folder>/.env, then either <folder>/.<APP_ENV>.env or
// <folder>/.local.env on top of it. Variables already present in the process
// environment always win over file values.
func NewEnvFile(folder string, logger logger) Config {
	conf := &EnvLoader{logger: logger}
	conf.read(folder)

	return conf
}

func (e *EnvLoader) read(folder string) {
	var (
		defaultFile  = folder + defaultFileName
		overrideFile = folder + defaultOverrideFileName
		env          = e.Get("APP_ENV")
	)

	initialEnv := make(map[string]struct{})

	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				initialEnv[kv[:i]] = struct{}{}
				break
			}
		}
	}

	err := godotenv.Load(defaultFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Errorf("failed to load config from file: %v, Err: %v", defaultFile, err)
		} else {
			e.logger.Debugf("failed to load config from file: %v, Err: %v", defaultFile, err)
		}
	} else {
		e.logger.Infof("Loaded config from file: %v", defaultFile)
	}

	if env != "" {
		overrideFile = filepath.Join(folder, fmt.Sprintf(".%s.env", env))
	}

	overrides, err := godotenv.Read(overrideFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Errorf("failed to load config from file: %v, Err: %v", overrideFile, err)
		}

		return
	}

	for k, v := range overrides {
		if _, ok := initialEnv[k]; ok {
			continue
		}

		_ = os.Setenv(k, v)
	}

	e.logger.Infof("Loaded config from file: %v", overrideFile)
}

func (*EnvLoader) Get(key string) string {
	return os.Getenv(key)
}

func (*EnvLoader) GetOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}

	return defaultValue
}
