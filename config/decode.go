package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files whose extension has no decoder.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// SupportedExtension reports whether ext (with leading dot) can be decoded.
func SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".toml", ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

// Decode parses data according to ext into a nested map.
func Decode(data []byte, ext string) (map[string]any, error) {
	values := make(map[string]any)

	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&values); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, err
		}
	case ".json":
		if len(bytes.TrimSpace(data)) == 0 {
			return values, nil
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	if values == nil {
		values = make(map[string]any)
	}
	return normalizeMap(values), nil
}

// DecodeFile reads name from fsys and decodes it by extension.
func DecodeFile(fsys fs.FS, name string) (map[string]any, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}

	values, err := Decode(data, path.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return values, nil
}
