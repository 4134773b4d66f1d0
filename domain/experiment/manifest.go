package experiment

import (
	"mpcal/domain/core"
)

// Manifest records what is needed to replay a run: the seed, the
// configuration fingerprint and the code version.
type Manifest struct {
	RunID       core.RunID      `json:"run_id"`
	Seed        int64           `json:"seed"`
	ConfigHash  core.ConfigHash `json:"config_hash"`
	CodeVersion string          `json:"code_version"`
	GridSize    int             `json:"grid_size"`
	Sources     []string        `json:"sources"`
	Strategies  []string        `json:"strategies"`
	CreatedAt   core.Timestamp  `json:"created_at"`
}

// NewManifest creates a manifest with a fresh run id
func NewManifest(seed int64, configHash core.ConfigHash, codeVersion string, grid Grid, sources, strategies []string) *Manifest {
	return &Manifest{
		RunID:       core.RunID(core.NewID()),
		Seed:        seed,
		ConfigHash:  configHash,
		CodeVersion: codeVersion,
		GridSize:    grid.Size(),
		Sources:     sources,
		Strategies:  strategies,
		CreatedAt:   core.Now(),
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("manifest", "run_id cannot be empty")
	}
	if m.ConfigHash == "" {
		return core.NewValidationError("manifest", "config_hash cannot be empty")
	}
	if m.CodeVersion == "" {
		return core.NewValidationError("manifest", "code_version cannot be empty")
	}
	return nil
}
