// Package cliconfig backs the wirdbot config and doctor commands. It edits
// the config file through dot paths and inspects the effective runtime
// configuration without starting the bot.
package cliconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wirdbot/wirdbot/internal/config"
)

// Get returns the effective value at a dot path, after defaults, config
// file, and environment overrides have been applied.
func Get(path string) (any, error) {
	keys, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	cur := any(m)
	for i, key := range keys {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s is not an object", strings.Join(keys[:i], "."))
		}
		val, ok := node[key]
		if !ok {
			return nil, fmt.Errorf("no value at %s", strings.Join(keys[:i+1], "."))
		}
		cur = val
	}
	return cur, nil
}

// Set writes a value into the config file at a dot path, creating
// intermediate objects as needed. The value is parsed as JSON when it
// parses, and stored as a plain string otherwise, so booleans, numbers,
// and whole arrays round-trip without quoting gymnastics.
func Set(path, value string) error {
	keys, err := splitPath(path)
	if err != nil {
		return err
	}
	raw, cfgPath, err := loadFileMap()
	if err != nil {
		return err
	}
	node := raw
	for i, key := range keys[:len(keys)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			if _, exists := node[key]; exists {
				return fmt.Errorf("%s is not an object", strings.Join(keys[:i+1], "."))
			}
			child = map[string]any{}
			node[key] = child
		}
		node = child
	}
	node[keys[len(keys)-1]] = parseValue(value)
	return saveFileMap(cfgPath, raw)
}

// Unset removes a value from the config file. Runtime defaults and
// environment overrides are unaffected.
func Unset(path string) error {
	keys, err := splitPath(path)
	if err != nil {
		return err
	}
	raw, cfgPath, err := loadFileMap()
	if err != nil {
		return err
	}
	node := raw
	for i, key := range keys[:len(keys)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			return fmt.Errorf("no value at %s", strings.Join(keys[:i+1], "."))
		}
		node = child
	}
	leaf := keys[len(keys)-1]
	if _, ok := node[leaf]; !ok {
		return fmt.Errorf("no value at %s", strings.Join(keys, "."))
	}
	delete(node, leaf)
	return saveFileMap(cfgPath, raw)
}

// Entry is one leaf of the effective configuration.
type Entry struct {
	Path  string
	Value string
}

// List flattens the effective configuration into sorted dot-path entries.
// Arrays are rendered whole as JSON.
func List() ([]Entry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	flatten("", m, &entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Sensitive reports whether a path holds a credential that listings
// should redact.
func Sensitive(path string) bool {
	leaf := path
	if i := strings.LastIndex(path, "."); i >= 0 {
		leaf = path[i+1:]
	}
	switch strings.ToLower(leaf) {
	case "token", "apikey", "secret", "password":
		return true
	}
	return false
}

func flatten(prefix string, node map[string]any, out *[]Entry) {
	for key, val := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if child, ok := val.(map[string]any); ok {
			flatten(path, child, out)
			continue
		}
		data, err := json.Marshal(val)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", val))
		}
		*out = append(*out, Entry{Path: path, Value: string(data)})
	}
}

func splitPath(path string) ([]string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("empty config path")
	}
	keys := strings.Split(trimmed, ".")
	for _, key := range keys {
		if key == "" {
			return nil, fmt.Errorf("invalid config path %q", path)
		}
	}
	return keys, nil
}

func parseValue(value string) any {
	var v any
	if err := json.Unmarshal([]byte(value), &v); err == nil {
		return v
	}
	return value
}

func toMap(cfg *config.Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// loadFileMap reads the raw config file as a generic map so edits preserve
// keys this build does not know about. A missing file starts empty.
func loadFileMap() (map[string]any, string, error) {
	path, err := config.ConfigPath()
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, path, nil
	}
	if err != nil {
		return nil, "", err
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", path, err)
	}
	return m, path, nil
}

func saveFileMap(path string, m map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
