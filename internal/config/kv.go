package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appDirName       = "latencybar"
	settingsFileName = "settings.yaml"
)

// DefaultSettingsPath returns $XDG_CONFIG_HOME/latencybar/settings.yaml, or
// the platform user config directory when XDG_CONFIG_HOME is unset.
func DefaultSettingsPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("locate config directory: %w", err)
		}
		base = dir
	}
	return filepath.Join(base, appDirName, settingsFileName), nil
}

// FileKV is a KV persisted as a flat YAML map.
type FileKV struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// OpenFileKV loads path. A missing file yields an empty store.
func OpenFileKV(path string) (*FileKV, error) {
	kv := &FileKV{path: path}
	if err := kv.Reload(); err != nil {
		return nil, err
	}
	return kv, nil
}

// Path returns the backing file.
func (kv *FileKV) Path() string {
	return kv.path
}

// Reload re-reads the backing file.
func (kv *FileKV) Reload() error {
	values, err := readYAMLMap(kv.path)
	if err != nil {
		return err
	}
	kv.mu.Lock()
	kv.values = values
	kv.mu.Unlock()
	return nil
}

// Get returns the value stored under key.
func (kv *FileKV) Get(key string) (string, bool) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.values[key]
	return v, ok
}

// Set stores value under key and writes the file.
func (kv *FileKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if cur, ok := kv.values[key]; ok && cur == value {
		return nil
	}
	next := make(map[string]string, len(kv.values)+1)
	for k, v := range kv.values {
		next[k] = v
	}
	next[key] = value
	if err := writeYAMLMap(kv.path, next); err != nil {
		return err
	}
	kv.values = next
	return nil
}

// Entries returns a copy of every stored pair.
func (kv *FileKV) Entries() map[string]string {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	out := make(map[string]string, len(kv.values))
	for k, v := range kv.values {
		out[k] = v
	}
	return out
}

func readYAMLMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return values, nil
}

func writeYAMLMap(path string, values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// MemoryKV is an in-memory KV.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV returns a store seeded with values.
func NewMemoryKV(values map[string]string) *MemoryKV {
	kv := &MemoryKV{values: make(map[string]string, len(values))}
	for k, v := range values {
		kv.values[k] = v
	}
	return kv
}

func (kv *MemoryKV) Get(key string) (string, bool) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.values[key]
	return v, ok
}

func (kv *MemoryKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return nil
}

// Entries returns a copy of every stored pair.
func (kv *MemoryKV) Entries() map[string]string {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	out := make(map[string]string, len(kv.values))
	for k, v := range kv.values {
		out[k] = v
	}
	return out
}
