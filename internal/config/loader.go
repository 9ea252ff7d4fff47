package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the site configuration file looked up in the
	// current and home directories.
	DefaultConfigFile = ".imcrawler"

	// XDGConfigFile is the site configuration file name inside XDGConfigDir.
	XDGConfigFile = "config.yaml"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads a site configuration file.
//
// Unknown keys are rejected so that a misspelled option such as "pasword"
// fails loudly instead of crawling without credentials. An empty file is a
// valid, empty configuration. A missing file yields ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cf := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	if err := cf.validate(); err != nil {
		return nil, err
	}
	return cf, nil
}

// validate checks every entry the same way Config.Validate checks the
// global credential flags.
func (cf *File) validate() error {
	if cf.Defaults.Password != "" && cf.Defaults.Username == "" {
		return fmt.Errorf("defaults: %w", ErrPasswordWithoutUsername)
	}
	for host, site := range cf.Sites {
		if strings.TrimSpace(host) == "" {
			return errors.New("site entry with empty host name")
		}
		if site.Password != "" && site.Username == "" {
			return fmt.Errorf("site %s: %w", host, ErrPasswordWithoutUsername)
		}
	}
	return nil
}

// FindConfigFile returns the site configuration file to use.
//
// An explicit configPath is returned only if it exists. Otherwise the first
// existing file of ConfigSearchPaths wins. The empty string means no file.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		return firstExisting([]string{configPath})
	}
	return firstExisting(ConfigSearchPaths())
}

// ConfigSearchPaths lists where a site configuration file is looked for, in
// order: ./.imcrawler, ~/.imcrawler, then $XDG_CONFIG_HOME/imcrawler/config.yaml.
func ConfigSearchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return append(paths, filepath.Join(XDGConfigDir(), XDGConfigFile))
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
