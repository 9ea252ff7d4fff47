package config

import (
	"net"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTimeout bounds a single page or image request.
	DefaultTimeout = 10 * time.Second

	// DefaultDepth of 0 fetches only the seed page itself.
	DefaultDepth = 0

	// DefaultThrottle is the delay before each image download.
	DefaultThrottle = time.Duration(0)

	// DefaultRate of 0 means no global request rate cap.
	DefaultRate = 0.0

	// AppName is the application name used for XDG directory paths.
	AppName = "imcrawler"

	// DefaultUserAgent identifies the crawler in HTTP requests.
	DefaultUserAgent = "Mozilla/5.0 (compatible; ImCrawler/1.0.0)"

	// DefaultMaxPageSize limits how much of an HTML page is read.
	DefaultMaxPageSize = 10 * 1024 * 1024 // 10MB

	// DefaultMaxImageSize limits how much of an image body is read.
	// Larger images are treated as failed downloads.
	DefaultMaxImageSize = 50 * 1024 * 1024 // 50MB

	// MetadataFileName is the name of the CSV catalog inside the output directory.
	MetadataFileName = "metadata.csv"

	// FallbackOutputDir is used when no directory name can be derived from the first seed.
	FallbackOutputDir = "images"
)

// DefaultExtensions returns the image extensions accepted when --ext is not given.
// A fresh slice is returned on every call so callers may modify it.
func DefaultExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}
}

// DefaultThreads returns the default worker count, one per logical CPU.
func DefaultThreads() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 4
}

// Config holds all configuration options for a crawl run.
// It is populated from CLI flags and passed down explicitly; nothing in the
// crawler reads global state.
type Config struct {
	// SeedFile is the path to the seed list, one URL per line.
	SeedFile string

	// Seeds are the normalized seed URLs loaded from SeedFile.
	Seeds []string

	// OutputDir receives the images and metadata.csv.
	// When empty it is derived from the first seed (see DefaultOutputDir).
	OutputDir string

	// Threads is the number of seed sites crawled concurrently.
	Threads int

	// Extensions is the allow-list of image URL suffixes, lowercased with a
	// leading dot. An empty list accepts every image.
	Extensions []string

	// Depth is how many levels of same-origin links are followed from each seed.
	// Negative values crawl nothing.
	Depth int

	// Throttle is the delay applied before each image download.
	Throttle time.Duration

	// Username and Password are HTTP basic-auth credentials sent with every
	// request unless a site entry overrides them.
	Username string
	Password string

	// LogFile, when set, receives the log instead of stderr.
	LogFile string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Rate caps requests per second across all workers. Zero disables the cap.
	Rate float64

	// ProxyAddress is an optional SOCKS5 proxy in host:port form.
	ProxyAddress string

	// ConfigFilePath is the path to the site configuration file.
	// If empty, ConfigSearchPaths is tried in order.
	ConfigFilePath string

	// SiteConfigs holds per-host overrides loaded from the config file.
	SiteConfigs *File

	// DBDir is the directory holding the run-history database.
	DBDir string

	// SaveHistory records the run and its images in the history database.
	SaveHistory bool

	// JSONReport prints the summary as JSON. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the summary as Markdown. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile, when set, also receives the summary as Markdown.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// UserAgent is sent with every request.
	UserAgent string

	// MaxPageSize is the maximum number of HTML bytes read per page.
	MaxPageSize int64

	// MaxImageSize is the maximum number of bytes accepted per image.
	MaxImageSize int64
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Threads:      DefaultThreads(),
		Extensions:   DefaultExtensions(),
		Depth:        DefaultDepth,
		Throttle:     DefaultThrottle,
		Timeout:      DefaultTimeout,
		Rate:         DefaultRate,
		DBDir:        XDGDataDir(),
		SaveHistory:  true,
		UserAgent:    DefaultUserAgent,
		MaxPageSize:  DefaultMaxPageSize,
		MaxImageSize: DefaultMaxImageSize,
	}
}

// XDGDataDir returns the XDG data directory for ImCrawler.
// On Linux: ~/.local/share/imcrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for ImCrawler.
// On Linux: ~/.config/imcrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// MetadataPath returns the path of the metadata CSV for this run.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.OutputDir, MetadataFileName)
}

// Site returns the effective site configuration for host, merged with the
// file defaults. Without a config file it returns the zero SiteConfig.
func (c *Config) Site(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}

// CredentialsFor returns the basic-auth credentials to use for host.
// A site entry with a username wins over the global flags.
func (c *Config) CredentialsFor(host string) (username, password string, ok bool) {
	site := c.Site(host)
	if site.Username != "" {
		return site.Username, site.Password, true
	}
	if c.Username != "" {
		return c.Username, c.Password, true
	}
	return "", "", false
}

// DepthFor returns the crawl depth for a seed on host.
// A depth set in the site file, including 0, overrides the global value.
func (c *Config) DepthFor(host string) int {
	if d := c.Site(host).Depth; d != nil {
		return *d
	}
	return c.Depth
}

// Validate checks if the configuration is valid and returns the first
// problem found as one of the sentinel errors in this package.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}
	if c.Threads <= 0 {
		return ErrInvalidThreads
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Throttle < 0 {
		return ErrInvalidThrottle
	}
	if c.Rate < 0 {
		return ErrInvalidRate
	}
	if c.Password != "" && c.Username == "" {
		return ErrPasswordWithoutUsername
	}
	if c.ProxyAddress != "" {
		host, port, err := net.SplitHostPort(c.ProxyAddress)
		if err != nil || host == "" || port == "" {
			return ErrInvalidProxyAddress
		}
	}
	if c.MaxPageSize < 0 || c.MaxImageSize < 0 {
		return ErrInvalidMaxSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// NormalizeExtensions lowercases each extension, adds a missing leading dot
// and drops empties and duplicates. Entries may themselves be comma separated.
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range exts {
		for _, e := range strings.Split(raw, ",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			if seen[e] {
				continue
			}
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}
