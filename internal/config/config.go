package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the configuration file looked up next to the running executable.
const FileName = "config.txt"

// Recognised keys, one per Config field.
const (
	KeySearchAPIURL     = "SEARCH_API_URL"
	KeyDataFilePath     = "DATA_FILE_PATH"
	KeyTemplateFilePath = "TEMPLATE_FILE_PATH"
	KeyLoginAPIURL      = "LOGIN_API_URL"
	KeyLocationsAPIURL  = "LOCATIONS_API_URL"
)

// DefaultTemplate is written to disk whenever the configuration is missing or incomplete.
const DefaultTemplate = KeySearchAPIURL + "=https://venpaaapi.onimtaitsl.com/api/products/basic-search\n" +
	KeyDataFilePath + `=C:\barcode\venpaa_barcode.txt` + "\n" +
	KeyTemplateFilePath + `=C:\barcode\STIC33X21.btw` + "\n" +
	KeyLoginAPIURL + "=https://venpaaapi.onimtaitsl.com/api/login\n" +
	KeyLocationsAPIURL + "=https://venpaaapi.onimtaitsl.com/api/locations"

// DefaultDataDir is the directory the default DATA_FILE_PATH lives in.
const DefaultDataDir = `C:\barcode`

// ErrIncomplete is returned by Load when the file was missing, unreadable or incomplete
// and a fresh template has been written in its place.
var ErrIncomplete = errors.New("Configuration incomplete or file missing. A 'config.txt' has been created in the installation folder. Please verify the paths and restart the application.")

type Config struct {
	SearchAPIURL     string
	DataFilePath     string
	TemplateFilePath string
	LoginAPIURL      string
	LocationsAPIURL  string
}

// Store loads the configuration from a single file. It holds no parsed state:
// every Load reads the file again.
type Store struct {
	path    string
	dataDir string
}

// NewStore returns a Store reading from path. An empty path resolves to DefaultPath().
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path, dataDir: DefaultDataDir}
}

// WithDataDir sets the directory created during repair in place of DefaultDataDir.
func (s *Store) WithDataDir(dir string) *Store {
	s.dataDir = dir
	return s
}

// Path returns the file this store reads and repairs.
func (s *Store) Path() string {
	return s.path
}

// DefaultPath returns config.txt in the executable's directory, or in the working
// directory when the executable cannot be located.
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return FileName
	}
	return filepath.Join(filepath.Dir(exe), FileName)
}

// Load reads and parses the configuration file. The file is never written on success.
// On any failure the default template is written to Path(), the default data directory
// is created, and ErrIncomplete is returned.
func (s *Store) Load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err == nil {
		if cfg, ok := Parse(string(data)); ok {
			return cfg, nil
		}
		log.Printf("[config] %s is incomplete", s.path)
	} else {
		log.Printf("[config] read %s: %v", s.path, err)
	}

	s.repair()
	return nil, ErrIncomplete
}

// repair regenerates the template and the default data directory. Both writes are
// best effort; their errors are dropped on purpose so Load always reports ErrIncomplete.
func (s *Store) repair() {
	if err := os.WriteFile(s.path, []byte(DefaultTemplate), 0644); err != nil {
		log.Printf("[config] write template %s: %v (ignored)", s.path, err)
	} else {
		log.Printf("[config] wrote default template to %s", s.path)
	}
	_ = os.MkdirAll(s.dataDir, 0755) // best effort
}

// Parse reads KEY=VALUE lines. The first '=' splits key from value and both are trimmed.
// Unknown keys and lines without '=' are ignored. ok is true only when all five keys
// were present and SEARCH_API_URL is non-empty.
func Parse(content string) (*Config, bool) {
	var cfg Config
	fields := map[string]*string{
		KeySearchAPIURL:     &cfg.SearchAPIURL,
		KeyDataFilePath:     &cfg.DataFilePath,
		KeyTemplateFilePath: &cfg.TemplateFilePath,
		KeyLoginAPIURL:      &cfg.LoginAPIURL,
		KeyLocationsAPIURL:  &cfg.LocationsAPIURL,
	}
	seen := make(map[string]bool, len(fields))

	for _, line := range strings.Split(content, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		dst, known := fields[key]
		if !known {
			continue
		}
		*dst = strings.TrimSpace(value)
		seen[key] = true
	}

	if len(seen) != len(fields) || cfg.SearchAPIURL == "" {
		return nil, false
	}
	return &cfg, true
}

// String renders the configuration in file format.
func (c *Config) String() string {
	return fmt.Sprintf("%s=%s\n%s=%s\n%s=%s\n%s=%s\n%s=%s",
		KeySearchAPIURL, c.SearchAPIURL,
		KeyDataFilePath, c.DataFilePath,
		KeyTemplateFilePath, c.TemplateFilePath,
		KeyLoginAPIURL, c.LoginAPIURL,
		KeyLocationsAPIURL, c.LocationsAPIURL,
	)
}
