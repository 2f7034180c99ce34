package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allBuilders = []string{"css", "html", "python"}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_DefaultsWithoutProfile(t *testing.T) {
	root := t.TempDir()
	p, err := Load(root, "")
	require.NoError(t, err)

	assert.Equal(t, root, p.ProjectRoot)
	assert.Equal(t, []string{"python", "html", "css"}, p.Languages)
	assert.Empty(t, p.Frameworks)
	assert.Equal(t, filepath.Join(root, ".spashta"), p.OutputPath())
	assert.Equal(t, filepath.Join(root, ".spashta", "cache"), p.CachePath())
	assert.Equal(t, filepath.Join(root, ".spashta", "history.db"), p.HistoryPath())
	assert.True(t, p.Cache.Enabled)
	assert.Empty(t, p.Source)

	r, err := Validate(p, allBuilders)
	require.NoError(t, err)
	assert.True(t, r.Passed())
}

func TestLoad_ProfileYAML(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ".spashta", "profile.yaml")
	writeFile(t, path, `
languages: [python]
frameworks: [django]
output_dir: build/ckg
exclude:
  dirs: [migrations]
  patterns: ["*_test.py"]
workers: 4
cache:
  enabled: false
history:
  keep: 3
`)
	p, err := Load(root, "")
	require.NoError(t, err)

	assert.Equal(t, path, p.Source)
	assert.Equal(t, []string{"python"}, p.Languages)
	assert.Equal(t, []string{"django"}, p.Frameworks)
	assert.Equal(t, filepath.Join(root, "build", "ckg"), p.OutputPath())
	assert.Equal(t, []string{"migrations"}, p.Exclude.Dirs)
	assert.Equal(t, 4, p.Workers)
	assert.False(t, p.Cache.Enabled)
	assert.Equal(t, 3, p.History.Keep)
}

func TestLoad_ProfileJSON(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "custom.json")
	writeFile(t, path, `{"project_root": "src", "languages": ["html", "css"], "frameworks": []}`)

	p, err := Load(root, path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src"), p.ProjectRoot)
	assert.Equal(t, []string{"html", "css"}, p.Languages)
}

func TestLoad_EnvOverrides(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".spashta", "profile.yaml"), "frameworks: [flask]\nworkers: 2\n")
	t.Setenv(EnvFrameworks, "django, fastapi")
	t.Setenv(EnvLanguages, "python")
	t.Setenv(EnvWorkers, "8")

	p, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"django", "fastapi"}, p.Frameworks)
	assert.Equal(t, []string{"python"}, p.Languages)
	assert.Equal(t, 8, p.Workers)
}

func TestLoad_DotEnv(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), EnvOutputDir+"=out\n")
	t.Setenv(EnvOutputDir, "")
	os.Unsetenv(EnvOutputDir)

	p, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "out"), p.OutputPath())
}

func TestLoad_Errors(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "bad.yaml")
	writeFile(t, bad, "languages: [python\n")

	_, err := Load(root, bad)
	assert.Error(t, err)

	_, err = Load(root, filepath.Join(root, "missing.yaml"))
	assert.Error(t, err)

	t.Setenv(EnvWorkers, "many")
	_, err = Load(root, "")
	assert.Error(t, err)
}

func TestValidate_Governance(t *testing.T) {
	t.Parallel()

	p := Default(t.TempDir())
	p.Languages = []string{"python", "cobol", "python"}
	p.Frameworks = []string{"django", "rails"}
	p.Workers = -1

	r, err := Validate(p, allBuilders)
	require.ErrorIs(t, err, ErrInvalidProfile)
	assert.False(t, r.Passed())

	var issues []string
	for _, v := range r.Violations {
		issues = append(issues, v.Issue+" "+v.Key)
	}
	assert.Equal(t, []string{
		"Invalid field (gte) Profile.Workers",
		"No Builder For Language languages[1]",
		"Duplicate Language languages[2]",
		"No Adapter For Framework frameworks[1]",
	}, issues)
}

func TestValidate_RequiresLanguages(t *testing.T) {
	t.Parallel()

	p := Default(t.TempDir())
	p.Languages = nil
	r, err := Validate(p, allBuilders)
	require.Error(t, err)
	require.Len(t, r.Violations, 1)
	assert.Equal(t, "Profile.Languages", r.Violations[0].Key)
}

func TestExclude_Skip(t *testing.T) {
	t.Parallel()

	e := Exclude{Dirs: []string{"node_modules", "app/legacy"}, Patterns: []string{"*.min.css", "tests/*.py"}}
	tests := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{"node_modules", true, true},
		{"web/node_modules", true, true},
		{"app/legacy", true, true},
		{"app", true, false},
		{"static/site.min.css", false, true},
		{"static/site.css", false, false},
		{"tests/test_views.py", false, true},
		{"app/views.py", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Skip(tt.rel, tt.isDir), tt.rel)
	}
}
