package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Cookie:  "default=1",
			Headers: map[string]string{"Accept-Language": "en"},
		},
		Sites: map[string]SiteConfig{
			"Gallery.Example.com": {
				Username: "alice",
				Password: "pw",
				Depth:    intPtr(3),
				Headers:  map[string]string{"Referer": "https://gallery.example.com/"},
			},
			"localhost": {Cookie: "session=abc"},
		},
	}

	t.Run("returns defaults for unknown host", func(t *testing.T) {
		t.Parallel()
		sc := cf.GetSiteConfig("other.example.com")
		if sc.Cookie != "default=1" || sc.Depth != nil || sc.Username != "" {
			t.Errorf("unexpected site config: %+v", sc)
		}
	})

	t.Run("merges site entry case-insensitively", func(t *testing.T) {
		t.Parallel()
		sc := cf.GetSiteConfig("gallery.example.com")
		if sc.Username != "alice" || sc.Password != "pw" {
			t.Errorf("expected site credentials, got %q/%q", sc.Username, sc.Password)
		}
		if sc.Depth == nil || *sc.Depth != 3 {
			t.Errorf("expected depth 3, got %v", sc.Depth)
		}
		if sc.Cookie != "default=1" {
			t.Errorf("expected default cookie to remain, got %q", sc.Cookie)
		}
		if sc.Headers["Accept-Language"] != "en" || sc.Headers["Referer"] == "" {
			t.Errorf("expected merged headers, got %v", sc.Headers)
		}
	})

	t.Run("falls back to host without port", func(t *testing.T) {
		t.Parallel()
		sc := cf.GetSiteConfig("localhost:8080")
		if sc.Cookie != "session=abc" {
			t.Errorf("expected port-less match, got %q", sc.Cookie)
		}
	})

	t.Run("merging does not mutate defaults", func(t *testing.T) {
		t.Parallel()
		_ = cf.GetSiteConfig("gallery.example.com")
		if _, ok := cf.Defaults.Headers["Referer"]; ok {
			t.Error("defaults headers were modified")
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.imcrawler")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".imcrawler")

		content := `defaults:
  headers:
    Accept-Language: en
sites:
  photos.example.com:
    username: alice
    password: secret
    depth: 2
    cookie: "session=xyz"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.Headers["Accept-Language"] != "en" {
			t.Errorf("expected default header, got %v", cfg.Defaults.Headers)
		}
		site, ok := cfg.Sites["photos.example.com"]
		if !ok {
			t.Fatal("expected photos.example.com in sites")
		}
		if site.Username != "alice" || site.Password != "secret" || site.Depth == nil || *site.Depth != 2 {
			t.Errorf("unexpected site entry: %+v", site)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".imcrawler")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".imcrawler")
		if err := os.WriteFile(configPath, []byte("defaults:\n  depth: 1\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestLoadConfigFileValidation tests the checks applied after parsing.
func TestLoadConfigFileValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr bool
		errIs   error
	}{
		{name: "empty file", content: ""},
		{name: "explicit zero depth", content: "sites:\n  a.example.com:\n    depth: 0\n"},
		{name: "unknown key", content: "sites:\n  a.example.com:\n    pasword: x\n", wantErr: true},
		{name: "site password without username", content: "sites:\n  a.example.com:\n    password: x\n", wantErr: true, errIs: ErrPasswordWithoutUsername},
		{name: "default password without username", content: "defaults:\n  password: x\n", wantErr: true, errIs: ErrPasswordWithoutUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			configPath := filepath.Join(t.TempDir(), ".imcrawler")
			if err := os.WriteFile(configPath, []byte(tt.content), 0600); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			cf, err := LoadConfigFile(configPath)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if cf.Sites == nil {
					t.Error("expected Sites map to be initialized")
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.errIs != nil && !errors.Is(err, tt.errIs) {
				t.Errorf("expected %v, got %v", tt.errIs, err)
			}
		})
	}
}

// TestConfigFileExplicitZeroDepth tests that a site can turn link following off.
func TestConfigFileExplicitZeroDepth(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), ".imcrawler")
	content := "sites:\n  flat.example.com:\n    depth: 0\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	cf, err := LoadConfigFile(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := NewConfig()
	cfg.Depth = 3
	cfg.SiteConfigs = cf
	if got := cfg.DepthFor("flat.example.com"); got != 0 {
		t.Errorf("DepthFor(flat) = %d, want 0", got)
	}
	if got := cfg.DepthFor("other.example.com"); got != 3 {
		t.Errorf("DepthFor(other) = %d, want 3", got)
	}
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})

	t.Run("searches the XDG config dir last", func(t *testing.T) {
		t.Parallel()
		paths := ConfigSearchPaths()
		want := filepath.Join(XDGConfigDir(), XDGConfigFile)
		if len(paths) == 0 || paths[len(paths)-1] != want {
			t.Errorf("expected %q as the last search path, got %v", want, paths)
		}
	})

	t.Run("first existing file wins", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		home := filepath.Join(dir, DefaultConfigFile)
		xdgPath := filepath.Join(dir, "imcrawler", XDGConfigFile)
		if err := os.MkdirAll(filepath.Dir(xdgPath), 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(xdgPath, []byte("sites: {}\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := firstExisting([]string{home, xdgPath}); got != xdgPath {
			t.Errorf("expected XDG file %q, got %q", xdgPath, got)
		}

		if err := os.WriteFile(home, []byte("sites: {}\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := firstExisting([]string{home, xdgPath}); got != home {
			t.Errorf("expected home file %q, got %q", home, got)
		}
	})

	t.Run("directories are skipped", func(t *testing.T) {
		t.Parallel()
		if got := firstExisting([]string{t.TempDir()}); got != "" {
			t.Errorf("expected no match, got %q", got)
		}
	})
}
