// Package config loads the TOML run configuration (arbor.toml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"arbor/internal/check"
	"arbor/internal/source"
)

// FileName is the configuration file searched for by Find.
const FileName = "arbor.toml"

var (
	// ErrInvalidThreads reports a thread count below one.
	ErrInvalidThreads = errors.New("thread count must be a positive integer")
	// ErrUnsupportedThreads reports a multi-threaded setting for an engine
	// that only runs on one goroutine.
	ErrUnsupportedThreads = errors.New("multi-threaded mode is not supported")
)

// Filter types accepted in [[filter]] tables.
const (
	FilterSuppressions = "suppressions"
	FilterSuppress     = "suppress"
	FilterSeverity     = "severity"
)

// Config is the decoded configuration.
type Config struct {
	Path    string         `toml:"-"`
	Root    string         `toml:"-"`
	Run     RunConfig      `toml:"run"`
	Checks  []CheckConfig  `toml:"check"`
	Filters []FilterConfig `toml:"filter"`
}

type RunConfig struct {
	Severity          string   `toml:"severity"`
	TabWidth          int      `toml:"tab_width"`
	Charset           string   `toml:"charset"`
	CheckerThreads    int      `toml:"checker_threads"`
	TreeWalkerThreads int      `toml:"tree_walker_threads"`
	CacheFile         string   `toml:"cache_file"`
	FileExtensions    []string `toml:"file_extensions"`
	BaseDir           string   `toml:"base_dir"`
}

type CheckConfig struct {
	Name       string         `toml:"name"`
	ID         string         `toml:"id"`
	Severity   string         `toml:"severity"`
	Tokens     []string       `toml:"tokens"`
	Properties map[string]any `toml:"properties"`
}

// FilterConfig is one [[filter]]. File is used by "suppressions"; the
// pattern fields by "suppress"; Min by "severity".
type FilterConfig struct {
	Type    string `toml:"type"`
	File    string `toml:"file"`
	Files   string `toml:"files"`
	Checks  string `toml:"checks"`
	Message string `toml:"message"`
	ID      string `toml:"id"`
	Query   string `toml:"query"`
	Min     string `toml:"min"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Severity:          check.SevError.String(),
			TabWidth:          source.DefaultTabWidth,
			Charset:           "UTF-8",
			CheckerThreads:    1,
			TreeWalkerThreads: 1,
			FileExtensions:    []string{"java"},
		},
	}
}

// Find searches startDir and its parents for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes and validates the file at path. Keys unknown to the schema
// are rejected; [check.properties] is free-form.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	cfg.Root = filepath.Dir(path)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that the decoder cannot.
func (c *Config) Validate() error {
	if _, err := check.ParseSeverity(c.Run.Severity); err != nil {
		return fmt.Errorf("[run].severity: %w", err)
	}
	if c.Run.TabWidth <= 0 {
		return fmt.Errorf("[run].tab_width must be positive, got %d", c.Run.TabWidth)
	}
	if _, err := ValidateThreads(c.Run.CheckerThreads, c.Run.TreeWalkerThreads); err != nil {
		return err
	}
	for i, ch := range c.Checks {
		if strings.TrimSpace(ch.Name) == "" {
			return fmt.Errorf("[[check]] #%d: missing name", i+1)
		}
		if ch.Severity != "" {
			if _, err := check.ParseSeverity(ch.Severity); err != nil {
				return fmt.Errorf("[[check]] %s: %w", ch.Name, err)
			}
		}
	}
	for i, f := range c.Filters {
		switch f.Type {
		case FilterSuppressions:
			if f.File == "" {
				return fmt.Errorf("[[filter]] #%d: suppressions filter needs file", i+1)
			}
		case FilterSuppress:
			if f.Files == "" && f.Checks == "" && f.Message == "" && f.ID == "" && f.Query == "" {
				return fmt.Errorf("[[filter]] #%d: suppress filter has no conditions", i+1)
			}
		case FilterSeverity:
			if _, err := check.ParseSeverity(f.Min); err != nil {
				return fmt.Errorf("[[filter]] #%d: %w", i+1, err)
			}
		default:
			return fmt.Errorf("[[filter]] #%d: unknown type %q", i+1, f.Type)
		}
	}
	return nil
}

// Threads is the validated pair of thread counts.
type Threads struct {
	Checker    int
	TreeWalker int
}

// ValidateThreads rejects counts below one.
func ValidateThreads(checker, treeWalker int) (Threads, error) {
	if checker < 1 {
		return Threads{}, fmt.Errorf("%w: checker_threads = %d", ErrInvalidThreads, checker)
	}
	if treeWalker < 1 {
		return Threads{}, fmt.Errorf("%w: tree_walker_threads = %d", ErrInvalidThreads, treeWalker)
	}
	return Threads{Checker: checker, TreeWalker: treeWalker}, nil
}

// Specs converts [[check]] tables into check specs; checks without a
// severity inherit [run].severity.
func (c *Config) Specs() ([]check.Spec, error) {
	def, err := check.ParseSeverity(c.Run.Severity)
	if err != nil {
		return nil, err
	}
	specs := make([]check.Spec, 0, len(c.Checks))
	for _, ch := range c.Checks {
		sev := def
		if ch.Severity != "" {
			if sev, err = check.ParseSeverity(ch.Severity); err != nil {
				return nil, fmt.Errorf("check %s: %w", ch.Name, err)
			}
		}
		specs = append(specs, check.Spec{
			Name:       ch.Name,
			ID:         ch.ID,
			Severity:   sev,
			Tokens:     ch.Tokens,
			Properties: check.Properties(ch.Properties),
		})
	}
	return specs, nil
}

// Resolve makes a path from the configuration relative to its directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Accepts reports whether path has one of the configured extensions.
// An empty list accepts everything.
func (c *Config) Accepts(path string) bool {
	if len(c.Run.FileExtensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return slices.Contains(c.Run.FileExtensions, ext)
}
