package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact bundles everything needed to re-score wallets without refitting:
// the forest, the scaler, and the feature column order they were fitted on.
type Artifact struct {
	Version      int              `json:"version"`
	TrainedAt    time.Time        `json:"trainedAt"`
	FeatureNames []string         `json:"featureNames"`
	Scaler       *StandardScaler  `json:"scaler"`
	Forest       *IsolationForest `json:"forest"`
}

const artifactVersion = 1

// NewArtifact wraps a fitted scaler and forest for persistence.
func NewArtifact(featureNames []string, scaler *StandardScaler, forest *IsolationForest) *Artifact {
	return &Artifact{
		Version:      artifactVersion,
		TrainedAt:    time.Now().UTC(),
		FeatureNames: featureNames,
		Scaler:       scaler,
		Forest:       forest,
	}
}

// Save writes the artifact as indented JSON, creating parent directories.
func (a *Artifact) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

// LoadArtifact reads a previously saved artifact.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var a Artifact
	if err := json.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if a.Scaler == nil || a.Forest == nil || len(a.Forest.Roots) == 0 {
		return nil, fmt.Errorf("model file %s is incomplete", path)
	}
	return &a, nil
}
