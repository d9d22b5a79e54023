// Package normalize translates ticket payloads from external trackers into
// ATILA's ticket schema using a per-platform field map.
package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed platform_map.yaml
var defaultPlatformMap []byte

// PlatformMap maps platform name -> ATILA field -> source path.
type PlatformMap map[string]map[string]string

// DefaultPlatformMap returns the built-in map for github, jira and azure_devops.
func DefaultPlatformMap() PlatformMap {
	m, err := ParsePlatformMap(defaultPlatformMap)
	if err != nil {
		panic(fmt.Sprintf("normalize: built-in platform map: %v", err))
	}
	return m
}

// LoadPlatformMap reads a platform map from a YAML file. An empty path
// returns the built-in map.
func LoadPlatformMap(path string) (PlatformMap, error) {
	if path == "" {
		return DefaultPlatformMap(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("normalize: read %s: %w", path, err)
	}
	return ParsePlatformMap(data)
}

// ParsePlatformMap parses YAML into a PlatformMap. Platform names are
// lower-cased.
func ParsePlatformMap(data []byte) (PlatformMap, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("normalize: parse platform map: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("normalize: platform map is empty")
	}
	m := make(PlatformMap, len(raw))
	for name, rules := range raw {
		m[strings.ToLower(strings.TrimSpace(name))] = rules
	}
	return m, nil
}

// Platforms returns the supported platform names, sorted.
func (m PlatformMap) Platforms() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rules returns the field rules for a platform, matched case-insensitively.
func (m PlatformMap) Rules(platform string) (map[string]string, bool) {
	rules, ok := m[strings.ToLower(strings.TrimSpace(platform))]
	return rules, ok
}
