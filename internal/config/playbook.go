package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Playbook is a standalone scenario/benchmark definition file the desk can
// swap without touching the main configuration: a list of scenario shocks
// and the correlation benchmarks to evaluate them against.
type Playbook struct {
	Scenarios []ScenarioConfig   `yaml:"scenarios"`
	Targets   []CorrelationEntry `yaml:"correlation_targets"`
}

// LoadPlaybook reads a scenario playbook from a YAML file and merges it
// into the configuration, replacing any inline scenarios and targets.
func (c *Config) LoadPlaybook(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read playbook %s: %w", path, err)
	}

	var playbook Playbook
	if err := yaml.Unmarshal(data, &playbook); err != nil {
		return fmt.Errorf("failed to parse playbook %s: %w", path, err)
	}

	for i, scenario := range playbook.Scenarios {
		if scenario.Label == "" {
			return fmt.Errorf("playbook %s: scenarios[%d] has no label", path, i)
		}
	}
	for i, target := range playbook.Targets {
		if target.Symbol == "" {
			return fmt.Errorf("playbook %s: correlation_targets[%d] has no symbol", path, i)
		}
	}

	if len(playbook.Scenarios) > 0 {
		c.Scenarios = playbook.Scenarios
	}
	if len(playbook.Targets) > 0 {
		c.Correlation.Targets = playbook.Targets
	}
	return nil
}

// ExportPlaybook serializes the configured scenarios and benchmarks to
// YAML, for seeding a new playbook file from the running configuration.
func (c *Config) ExportPlaybook() ([]byte, error) {
	playbook := Playbook{
		Scenarios: c.Scenarios,
		Targets:   c.Correlation.Targets,
	}
	data, err := yaml.Marshal(&playbook)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal playbook: %w", err)
	}
	return data, nil
}
