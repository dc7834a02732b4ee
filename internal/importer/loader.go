package importer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDir reads every .yaml, .yml and .json sheet document under root.
// Files that fail to parse or validate are logged and skipped.
func LoadDir(root string) ([]Bundle, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("loading seeds: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("loading seeds: %s is not a directory", root)
	}

	var bundles []Bundle
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}

		if !isDocument(path) {
			return nil
		}
		b, err := LoadFile(path)
		if err != nil {
			slog.Warn("skipping invalid seed file", "path", path, "error", err)
			return nil
		}
		bundles = append(bundles, b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading seeds: %w", err)
	}

	slog.Info("seed files loaded", "root", root, "sheets", len(bundles))
	return bundles, nil
}

func isDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadFile reads one sheet document, choosing the decoder by extension.
func LoadFile(path string) (Bundle, error) {
	var (
		b   Bundle
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err = loadYAML(path)
	case ".json":
		b, err = loadJSON(path)
	default:
		return Bundle{}, fmt.Errorf("%s: unsupported file type", path)
	}
	if err != nil {
		return Bundle{}, err
	}
	b.Source = path
	return b, nil
}

func loadJSON(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, err
	}
	return ParseJSON(data)
}

// loadYAML decodes the file generically and re-encodes it as JSON so seeds
// go through the same schema and decoder as uploads.
func loadYAML(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Bundle{}, fmt.Errorf("decode yaml: %w", err)
	}
	if doc == nil {
		return Bundle{}, fmt.Errorf("empty document")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return Bundle{}, fmt.Errorf("convert yaml: %w", err)
	}
	return ParseJSON(raw)
}
