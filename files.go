package translationmanager

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/pitabwire/translation-manager/config"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// fileExtension maps an export format onto the extension files are written with.
func fileExtension(format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return ".json", nil
	case FormatYAML, "yml":
		return ".yaml", nil
	case FormatTOML:
		return ".toml", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// decodeTranslations reads a language file into dotted keys.
func decodeTranslations(content []byte, name string) (map[string]string, error) {
	values, err := config.Decode(content, path.Ext(name))
	if err != nil {
		return nil, err
	}

	out := make(map[string]string)
	flatten("", values, out)
	return out, nil
}

func flatten(prefix string, value any, out map[string]string) {
	join := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}

	switch v := value.(type) {
	case nil:
	case map[string]any:
		for k, child := range v {
			flatten(join(k), child, out)
		}
	case []map[string]any:
		for i, child := range v {
			flatten(join(strconv.Itoa(i)), child, out)
		}
	case []any:
		for i, child := range v {
			flatten(join(strconv.Itoa(i)), child, out)
		}
	case string:
		out[prefix] = v
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

// tree keeps nested translations in insertion order. Values are strings or *tree.
type tree struct {
	keys   []string
	values map[string]any
}

func newTree() *tree {
	return &tree{values: make(map[string]any)}
}

func (t *tree) put(key string, value any) {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// set stores value under a dotted key. A key whose parent already holds a
// string is kept literally at the top level; a key naming a subtree replaces it.
func (t *tree) set(key, value string) {
	parts := strings.Split(key, ".")
	node := t

	for _, part := range parts[:len(parts)-1] {
		existing, ok := node.values[part]
		if !ok {
			child := newTree()
			node.put(part, child)
			node = child
			continue
		}

		child, isTree := existing.(*tree)
		if !isTree {
			t.put(key, value)
			return
		}
		node = child
	}

	node.put(parts[len(parts)-1], value)
}

func (t *tree) sort() {
	slices.Sort(t.keys)
	for _, v := range t.values {
		if child, ok := v.(*tree); ok {
			child.sort()
		}
	}
}

func (t *tree) toMap() map[string]any {
	out := make(map[string]any, len(t.keys))
	for _, k := range t.keys {
		if child, ok := t.values[k].(*tree); ok {
			out[k] = child.toMap()
			continue
		}
		out[k] = t.values[k]
	}
	return out
}

func (t *tree) yamlNode() *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range t.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		if child, ok := t.values[k].(*tree); ok {
			node.Content = append(node.Content, keyNode, child.yamlNode())
			continue
		}
		value, _ := t.values[k].(string)
		node.Content = append(node.Content, keyNode, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
	}
	return node
}

func (t *tree) writeJSON(buf *bytes.Buffer, depth int) error {
	if len(t.keys) == 0 {
		buf.WriteString("{}")
		return nil
	}

	indent := strings.Repeat("    ", depth+1)
	buf.WriteString("{\n")
	for i, k := range t.keys {
		buf.WriteString(indent)
		if err := writeJSONString(buf, k); err != nil {
			return err
		}
		buf.WriteString(": ")

		if child, ok := t.values[k].(*tree); ok {
			if err := child.writeJSON(buf, depth+1); err != nil {
				return err
			}
		} else {
			value, _ := t.values[k].(string)
			if err := writeJSONString(buf, value); err != nil {
				return err
			}
		}

		if i < len(t.keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString(strings.Repeat("    ", depth))
	buf.WriteByte('}')
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// encodeTranslations renders t in format.
func encodeTranslations(t *tree, format string) ([]byte, error) {
	var buf bytes.Buffer

	switch strings.ToLower(format) {
	case FormatJSON:
		if err := t.writeJSON(&buf, 0); err != nil {
			return nil, err
		}
		buf.WriteByte('\n')
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(t.yamlNode()); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(t.toMap()); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return buf.Bytes(), nil
}
