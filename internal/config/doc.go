// Package config provides the configuration for an ImCrawler run: the
// Config struct populated from CLI flags, its defaults and validation, the
// optional YAML site file with per-host overrides, and seed-list loading.
package config
