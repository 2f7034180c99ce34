// Package config loads the project profile: the languages to build, the
// framework adapters to apply, where artifacts go, and what to skip.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvOutputDir  = "SPASHTA_OUTPUT_DIR"
	EnvFrameworks = "SPASHTA_FRAMEWORKS"
	EnvLanguages  = "SPASHTA_LANGUAGES"
	EnvWorkers    = "SPASHTA_WORKERS"
)

// DefaultOutputDir is the artifact directory relative to the project root.
const DefaultOutputDir = ".spashta"

// profileNames are looked up, in order, inside the output directory.
var profileNames = []string{"profile.yaml", "profile.yml", "profile.json"}

// Exclude lists directories and file name globs that discovery skips.
type Exclude struct {
	Dirs     []string `yaml:"dirs" json:"dirs"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// Cache configures the fragment cache.
type Cache struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
}

// History configures the run history store.
type History struct {
	Keep int `yaml:"keep" json:"keep" validate:"gte=0"`
}

// Profile is the project profile.
type Profile struct {
	ProjectRoot string   `yaml:"project_root" json:"project_root" validate:"required"`
	Languages   []string `yaml:"languages" json:"languages" validate:"required,min=1,dive,required"`
	Frameworks  []string `yaml:"frameworks" json:"frameworks" validate:"dive,required"`
	OutputDir   string   `yaml:"output_dir" json:"output_dir" validate:"required"`
	Exclude     Exclude  `yaml:"exclude" json:"exclude"`
	SchemaPath  string   `yaml:"schema_path" json:"schema_path"`
	RulesDir    string   `yaml:"rules_dir" json:"rules_dir"`
	Workers     int      `yaml:"workers" json:"workers" validate:"gte=0,lte=256"`
	Cache       Cache    `yaml:"cache" json:"cache"`
	History     History  `yaml:"history" json:"history"`

	// Source is the file the profile was read from, empty for defaults.
	Source string `yaml:"-" json:"source,omitempty"`
}

// Default returns the profile used when a project has none.
func Default(root string) *Profile {
	return &Profile{
		ProjectRoot: root,
		Languages:   []string{"python", "html", "css"},
		Frameworks:  []string{},
		OutputDir:   DefaultOutputDir,
		Exclude: Exclude{
			Dirs:     []string{".git", ".hg", ".venv", "venv", "node_modules", "__pycache__", DefaultOutputDir},
			Patterns: []string{},
		},
		Cache:   Cache{Enabled: true},
		History: History{Keep: 20},
	}
}

// Load reads the profile for root. path names the profile file; when empty
// the output directory is searched and defaults apply if nothing is found.
// A .env file in root is loaded first, then SPASHTA_* variables override
// file values.
func Load(root, path string) (*Profile, error) {
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	p := Default(root)
	if path == "" {
		path = findProfile(root)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		p.Source = path
	}

	if err := applyEnv(p); err != nil {
		return nil, err
	}
	if p.ProjectRoot == "" {
		p.ProjectRoot = root
	} else if !filepath.IsAbs(p.ProjectRoot) {
		p.ProjectRoot = filepath.Join(root, p.ProjectRoot)
	}
	if p.SchemaPath != "" {
		p.SchemaPath = resolve(p.ProjectRoot, p.SchemaPath)
	}
	if p.RulesDir != "" {
		p.RulesDir = resolve(p.ProjectRoot, p.RulesDir)
	}
	return p, nil
}

func findProfile(root string) string {
	dir := filepath.Join(root, DefaultOutputDir)
	if env := os.Getenv(EnvOutputDir); env != "" {
		dir = resolve(root, env)
	}
	for _, name := range profileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func applyEnv(p *Profile) error {
	if v := os.Getenv(EnvOutputDir); v != "" {
		p.OutputDir = v
	}
	if v, ok := os.LookupEnv(EnvFrameworks); ok {
		p.Frameworks = splitList(v)
	}
	if v := os.Getenv(EnvLanguages); v != "" {
		p.Languages = splitList(v)
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvWorkers, err)
		}
		p.Workers = n
	}
	return nil
}

func splitList(v string) []string {
	out := []string{}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// OutputPath returns the absolute artifact directory.
func (p *Profile) OutputPath() string {
	return resolve(p.ProjectRoot, p.OutputDir)
}

// CachePath returns the fragment cache directory.
func (p *Profile) CachePath() string {
	if p.Cache.Dir != "" {
		return resolve(p.ProjectRoot, p.Cache.Dir)
	}
	return filepath.Join(p.OutputPath(), "cache")
}

// HistoryPath returns the SQLite history database path.
func (p *Profile) HistoryPath() string {
	return filepath.Join(p.OutputPath(), "history.db")
}

// Skip reports whether discovery should ignore rel, a slash-separated path
// relative to the project root.
func (e Exclude) Skip(rel string, isDir bool) bool {
	base := filepath.Base(filepath.FromSlash(rel))
	if isDir {
		for _, d := range e.Dirs {
			if base == d || rel == d {
				return true
			}
		}
		return false
	}
	for _, pattern := range e.Patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
