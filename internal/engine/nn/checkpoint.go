package nn

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Metadata keys written into checkpoint headers.
const (
	MetaConfig = "config"
	MetaRunID  = "run_id"
	MetaEpoch  = "epoch"
)

// Save writes every parameter and the model config to a safetensors file.
// Extra metadata entries are stored alongside the config.
func (m *Model) Save(path string, metadata map[string]string) error {
	cfg, err := json.Marshal(m.cfg)
	if err != nil {
		return fmt.Errorf("nn: encode config: %w", err)
	}
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[MetaConfig] = string(cfg)

	params := m.Params()
	tensors := make([]tensorEntry, len(params))
	for i, p := range params {
		tensors[i] = tensorEntry{name: p.Name, shape: p.Shape, data: p.Value}
	}
	if err := writeSafetensors(path, tensors, meta); err != nil {
		return fmt.Errorf("nn: save %s: %w", path, err)
	}
	return nil
}

// Load rebuilds a model from a checkpoint written by Save and returns the
// stored metadata.
func Load(path string) (*Model, map[string]string, error) {
	tensors, meta, err := readSafetensors(path)
	if err != nil {
		return nil, nil, fmt.Errorf("nn: load %s: %w", path, err)
	}
	raw, ok := meta[MetaConfig]
	if !ok {
		return nil, nil, fmt.Errorf("nn: load %s: checkpoint has no model config", path)
	}
	var cfg Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, nil, fmt.Errorf("nn: load %s: decode config: %w", path, err)
	}
	m, err := New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("nn: load %s: %w", path, err)
	}
	for _, p := range m.Params() {
		t, ok := tensors[p.Name]
		if !ok {
			return nil, nil, fmt.Errorf("nn: load %s: missing tensor %s", path, p.Name)
		}
		if !slices.Equal(t.shape, p.Shape) {
			return nil, nil, fmt.Errorf("%w: tensor %s has shape %v, want %v", ErrShapeMismatch, p.Name, t.shape, p.Shape)
		}
		copy(p.Value, t.data)
	}
	return m, meta, nil
}
