package config

import (
	"net"
	"strings"
)

// SiteConfig holds per-host configuration. It applies to every request sent
// to the host, whether a page or an image.
type SiteConfig struct {
	// Username and Password are basic-auth credentials for this host.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Cookie is an HTTP cookie to send to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global crawl depth for seeds on this host.
	// nil keeps the global depth; an explicit 0 crawls only the seed page.
	Depth *int `yaml:"depth,omitempty"`
}

// File represents the structure of the .imcrawler configuration file.
type File struct {
	// Sites maps host names (e.g. "example.com" or "example.com:8080") to
	// their site-specific configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to all hosts unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged with defaults.
// The lookup is case-insensitive and falls back to the host without its port.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.lookup(host)
	if !ok {
		return result
	}

	if siteConfig.Username != "" {
		result.Username = siteConfig.Username
		result.Password = siteConfig.Password
	}
	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != nil {
		result.Depth = siteConfig.Depth
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	return result
}

func (cf *File) lookup(host string) (SiteConfig, bool) {
	host = strings.ToLower(host)
	for k, v := range cf.Sites {
		if strings.ToLower(k) == host {
			return v, true
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		for k, v := range cf.Sites {
			if strings.ToLower(k) == h {
				return v, true
			}
		}
	}
	return SiteConfig{}, false
}
