package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// Load reads YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	return cfg, data, nil
}

// Parse decodes and validates a strategy document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode strategy yaml: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDir loads every *.yaml / *.yml in dir, sorted by strategy id
func LoadDir(dir string) ([]*Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var configs []*Config
	seen := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}

		cfg, _, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[cfg.Meta.StrategyID]; dup {
			return nil, fmt.Errorf("duplicate strategy_id %q in %s and %s", cfg.Meta.StrategyID, prev, name)
		}
		seen[cfg.Meta.StrategyID] = name
		configs = append(configs, cfg)
	}

	sortByID(configs)
	return configs, nil
}

// Presets returns the built-in variants (abaa, baa, daa, gtaa, paa, vaa)
func Presets() ([]*Config, error) {
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		return nil, err
	}

	configs := make([]*Config, 0, len(entries))
	for _, e := range entries {
		data, err := presetFS.ReadFile("presets/" + e.Name())
		if err != nil {
			return nil, err
		}
		cfg, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", e.Name(), err)
		}
		configs = append(configs, cfg)
	}

	sortByID(configs)
	return configs, nil
}

// Preset returns one built-in variant by strategy id
func Preset(id string) (*Config, error) {
	data, err := presetFS.ReadFile("presets/" + strings.ToLower(id) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown preset %q", id)
	}
	return Parse(data)
}

// Find returns the config with the given id
func Find(configs []*Config, id string) (*Config, bool) {
	for _, c := range configs {
		if strings.EqualFold(c.Meta.StrategyID, id) {
			return c, true
		}
	}
	return nil, false
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewDecisionSnapshot creates a snapshot for audit
func NewDecisionSnapshot(cfg *Config, yamlData []byte) (*DecisionSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &DecisionSnapshot{
		ConfigHash: hash,
		ConfigYAML: string(yamlData),
		StrategyID: cfg.Meta.StrategyID,
		Version:    cfg.Meta.Version,
		CreatedAt:  time.Now(),
	}, nil
}

func sortByID(configs []*Config) {
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].Meta.StrategyID < configs[j].Meta.StrategyID
	})
}
