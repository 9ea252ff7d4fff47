package config

import (
	"bufio"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// LoadSeeds reads the seed list at path. Each non-empty line that does not
// start with '#' is one seed URL; seeds without a scheme get "http://".
// It returns ErrNoSeedFile if the file cannot be opened and ErrEmptySeedList
// if it holds no seeds.
func LoadSeeds(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided seed path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoSeedFile, path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var seeds []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, NormalizeSeed(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seed list %s: %w", path, err)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySeedList, path)
	}
	return seeds, nil
}

// NormalizeSeed prepends "http://" to a seed that has no scheme.
func NormalizeSeed(seed string) string {
	seed = strings.TrimSpace(seed)
	if strings.Contains(seed, "://") {
		return seed
	}
	return "http://" + seed
}

// DefaultOutputDir derives the output directory from the first seed: its
// registrable domain (example.co.uk for www.shop.example.co.uk), lowercased.
// Hosts without a public suffix such as IPs or localhost use the host name
// with a leading "www." removed. FallbackOutputDir is returned when the seed
// has no usable host.
func DefaultOutputDir(seed string) string {
	u, err := url.Parse(NormalizeSeed(seed))
	if err != nil {
		return FallbackOutputDir
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return FallbackOutputDir
	}
	if net.ParseIP(host) == nil {
		if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			return domain
		}
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.NewReplacer(":", "_", "[", "", "]", "").Replace(host)
	if host == "" {
		return FallbackOutputDir
	}
	return host
}
