// Package config loads the site configuration and resolves the settings of
// one namespace along its override chain.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/facade/api"
)

// Filenames are the configuration files looked for, in order, when no
// explicit path is given.
var Filenames = []string{"facade.hcl", "facade.toml", "facade.yaml", "facade.yml", "facade.json"}

// Find returns the first configuration file present in dir.
func Find(dir string) (string, bool) {
	for _, name := range Filenames {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Load reads a configuration file. The decoder is chosen by extension:
// .hcl and .json use HCL, .toml uses TOML and .yaml/.yml use YAML.
func Load(path string) (*api.Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes data, using filename only to pick the format and to label
// diagnostics.
func Parse(filename string, data []byte) (*api.Site, error) {
	var site api.Site
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".hcl", ".json":
		if err := hclsimple.Decode(filename, data, nil, &site); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &site); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &site); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err := validate(&site); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &site, nil
}

func validate(site *api.Site) error {
	seen := make(map[string]bool)
	for _, ns := range site.Namespaces {
		if ns.Name == "" {
			return fmt.Errorf("namespace without a name")
		}
		if seen[ns.Name] {
			return fmt.Errorf("namespace %q declared twice", ns.Name)
		}
		seen[ns.Name] = true
	}
	return nil
}
