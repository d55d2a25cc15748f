package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// Save writes a sealed calibration table to path as indented JSON.
// The write goes through a temp file and rename so the previous artifact
// survives a crash mid-write.
func Save(path string, table *contracts.CalibrationTable) error {
	if table == nil {
		return fmt.Errorf("save calibration: nil table")
	}
	if table.Checksum == "" {
		return fmt.Errorf("save calibration: table is not sealed")
	}

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".calibration-*.json")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace artifact: %w", err)
	}

	return nil
}

// Load reads a calibration table from path and rejects anything invalid
// or tampered with. A corrupt artifact fails here instead of producing
// silently wrong scores.
func Load(path string) (*contracts.CalibrationTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var table contracts.CalibrationTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse calibration artifact: %w", err)
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration artifact: %w", err)
	}
	if err := table.VerifyChecksum(); err != nil {
		return nil, fmt.Errorf("calibration artifact %s: %w", filepath.Base(path), err)
	}

	return &table, nil
}
