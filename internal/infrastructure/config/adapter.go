package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

// AdapterConfig is the host-side adapter configuration.
type AdapterConfig struct {
	// Card loads a single card instead of trip invites.
	Card string `json:"card" yaml:"card" toml:"card"`
	// T, PG, TWT and G are ';' separated invite, public group, twitter
	// and group lists.
	T   string `json:"t" yaml:"t" toml:"t"`
	PG  string `json:"pg" yaml:"pg" toml:"pg"`
	TWT string `json:"twt" yaml:"twt" toml:"twt"`
	G   string `json:"g" yaml:"g" toml:"g"`

	HideEvents  bool `json:"hideEvents" yaml:"hideEvents" toml:"hideEvents"`
	HideUpdates bool `json:"hideUpdates" yaml:"hideUpdates" toml:"hideUpdates"`

	DemoDriversCount int `json:"demoDriversCount" yaml:"demoDriversCount" toml:"demoDriversCount"`

	// Interfaces maps ext operation names to script sources.
	Interfaces map[string]string `json:"interfaces" yaml:"interfaces" toml:"interfaces"`
	// Initialize is a script run with the channel name once connected.
	Initialize string `json:"initialize" yaml:"initialize" toml:"initialize"`
}

// AdapterFile is the on-disk layout: {adapter: {...}, viewer: {...}}.
type AdapterFile struct {
	Adapter AdapterConfig          `json:"adapter" yaml:"adapter" toml:"adapter"`
	Viewer  map[string]interface{} `json:"viewer" yaml:"viewer" toml:"viewer"`
}

// InterfaceNames returns the configured ext names in sorted order.
func (c AdapterConfig) InterfaceNames() []string {
	names := make([]string, 0, len(c.Interfaces))
	for name := range c.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the adapter configuration.
func (f *AdapterFile) Validate() error {
	for _, name := range f.Adapter.InterfaceNames() {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("interface with empty name")
		}
		if strings.TrimSpace(f.Adapter.Interfaces[name]) == "" {
			return fmt.Errorf("interface %q has no script", name)
		}
	}
	if f.Adapter.DemoDriversCount < 0 {
		return fmt.Errorf("demoDriversCount must not be negative")
	}
	return nil
}

// LoadAdapter reads an adapter file. The format follows the extension:
// .yaml/.yml, .toml or .json. An empty path yields an empty configuration.
func LoadAdapter(path string) (*AdapterFile, error) {
	if path == "" {
		return &AdapterFile{Viewer: map[string]interface{}{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read adapter config: %w", err)
	}

	file, err := ParseAdapter(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// ParseAdapter decodes adapter configuration in the format named by ext.
func ParseAdapter(ext string, data []byte) (*AdapterFile, error) {
	var file AdapterFile

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	case ".json":
		if err := sonic.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if file.Viewer == nil {
		file.Viewer = map[string]interface{}{}
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}
