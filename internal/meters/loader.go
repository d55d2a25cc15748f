package meters

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk meter taxonomy. Replacing the builtin table is all
// or nothing; partial overrides would make calibration provenance murky.
type File struct {
	Version string       `yaml:"version" json:"version"`
	Meters  []Definition `yaml:"meters" json:"meters"`
}

// Load reads a meter taxonomy file and returns the registry, the raw
// bytes, and the canonical hash. KnownFields(true) makes typos and stale
// fields fail immediately instead of silently dropping criteria.
func Load(path string) (*Registry, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read meters file: %w", err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("decode meters file: %w", err)
	}
	if f.Version == "" {
		return nil, data, fmt.Errorf("meters file: version missing")
	}

	reg, err := NewRegistry(f.Meters)
	if err != nil {
		return nil, data, err
	}
	return reg, data, nil
}

// Hash generates the canonical hash of a definition set. Struct marshal
// keeps field order deterministic, so the hash is reproducible.
func Hash(defs []Definition) (string, error) {
	jsonBytes, err := json.Marshal(defs)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// LoadOrDefault loads path when it exists and falls back to the builtin
// taxonomy otherwise.
func LoadOrDefault(path string) (*Registry, string, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			reg, _, err := Load(path)
			if err != nil {
				return nil, "", err
			}
			hash, err := Hash(reg.All())
			if err != nil {
				return nil, "", err
			}
			return reg, hash, nil
		}
	}
	reg := Default()
	hash, err := Hash(reg.All())
	if err != nil {
		return nil, "", err
	}
	return reg, hash, nil
}
