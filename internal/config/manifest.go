package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes the on-chain surface the indexer watches: the
// deployed contracts with their ABI fragments, and the jobs that index
// events from them.
type Manifest struct {
	Contracts map[string]ContractManifest `yaml:"contracts"`
	Jobs      []JobManifest               `yaml:"jobs"`
}

type ContractManifest struct {
	Address string `yaml:"address"`
	ABI     string `yaml:"abi"`
}

// JobManifest binds a named job to one contract and the subset of its
// events the job consumes. Zero-valued overrides fall back to the
// process-wide indexer settings.
type JobManifest struct {
	Name            string   `yaml:"name"`
	Contract        string   `yaml:"contract"`
	Events          []string `yaml:"events"`
	Cadence         string   `yaml:"cadence"`
	Confirmations   *int64   `yaml:"confirmations"`
	MaxBlocksPerRun int64    `yaml:"max_blocks_per_run"`
}

func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contracts manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse contracts manifest: %w", err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid contracts manifest: %w", err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Contracts) == 0 {
		return fmt.Errorf("no contracts defined")
	}
	if len(m.Jobs) == 0 {
		return fmt.Errorf("no jobs defined")
	}

	for name, c := range m.Contracts {
		if c.Address == "" {
			return fmt.Errorf("contract %s: address is required", name)
		}
		if c.ABI == "" {
			return fmt.Errorf("contract %s: abi is required", name)
		}
	}

	seen := make(map[string]bool, len(m.Jobs))
	for _, j := range m.Jobs {
		if j.Name == "" {
			return fmt.Errorf("job with empty name")
		}
		if seen[j.Name] {
			return fmt.Errorf("duplicate job %s", j.Name)
		}
		seen[j.Name] = true

		if _, ok := m.Contracts[j.Contract]; !ok {
			return fmt.Errorf("job %s: unknown contract %q", j.Name, j.Contract)
		}
		if len(j.Events) == 0 {
			return fmt.Errorf("job %s: no events listed", j.Name)
		}
		if j.Cadence == "" {
			return fmt.Errorf("job %s: cadence is required", j.Name)
		}
		if j.Confirmations != nil && *j.Confirmations < 0 {
			return fmt.Errorf("job %s: confirmations must be >= 0", j.Name)
		}
		if j.MaxBlocksPerRun < 0 {
			return fmt.Errorf("job %s: max_blocks_per_run must be >= 0", j.Name)
		}
	}
	return nil
}
