// Package config reads squery settings from the environment, optionally seeded
// from .env files.
package config

// Config is the read-only settings source handed to datasources.
type Config interface {
	Get(string) string
	GetOrDefault(string, string) string
}
