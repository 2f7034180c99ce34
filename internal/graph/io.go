package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNoArtifact is returned when an optional artifact does not exist.
var ErrNoArtifact = errors.New("graph: artifact not found")

// Encode renders v as indented JSON without HTML escaping, terminated by a
// newline. Output is deterministic for a given value.
func Encode(v any) ([]byte, error) {
	if f, ok := v.(*Fragment); ok {
		f.normalize()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON atomically writes v to path, creating parent directories.
func WriteJSON(path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("graph: encode %s: %w", path, err)
	}
	return WriteFile(path, data)
}

// WriteFile atomically replaces path with data through a temp file and
// rename in the same directory.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("graph: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("graph: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("graph: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("graph: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("graph: rename %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes the JSON file at path into v. A missing file yields
// ErrNoArtifact.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoArtifact, path)
		}
		return fmt.Errorf("graph: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("graph: parse %s: %w", path, err)
	}
	return nil
}

// ReadGraph loads a graph document from path.
func ReadGraph(path string) (*Graph, error) {
	g := New()
	if err := ReadJSON(path, g); err != nil {
		return nil, err
	}
	return g, nil
}

// ReadFragment loads a fragment document from path.
func ReadFragment(path string) (*Fragment, error) {
	var f Fragment
	if err := ReadJSON(path, &f); err != nil {
		return nil, err
	}
	f.normalize()
	return &f, nil
}
