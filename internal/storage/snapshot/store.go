// Package snapshot persists run snapshots to the local filesystem.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwseok/lotto645-harvester/internal/aggregate"
)

// latestName is the stable file name the API and CLI read back.
const latestName = "snapshot.json"

// ErrNoSnapshot is returned by Load when no snapshot has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot saved")

// Config captures the parameters for the filesystem snapshot store.
type Config struct {
	// Dir is the directory where snapshots will be stored.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Store writes snapshots to the local filesystem. Each save replaces the
// stable snapshot.json atomically and leaves a round-stamped copy beside it
// so earlier harvests remain inspectable.
type Store struct {
	dir string
}

// New creates a filesystem-backed snapshot store.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}

	info, err := os.Stat(cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.Dir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create snapshot directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat snapshot directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("snapshot directory path is not a directory")
	}

	testFile := filepath.Join(cfg.Dir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("snapshot directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{dir: cfg.Dir}, nil
}

// Save persists the snapshot. The stable file is replaced via a temp file and
// rename so readers never observe a partial write.
func (s *Store) Save(ctx context.Context, snap *aggregate.Snapshot) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("snapshot is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	latest := filepath.Join(s.dir, latestName)
	if err := os.Rename(tmpPath, latest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to replace snapshot: %w", err)
	}

	stamped := filepath.Join(s.dir, fmt.Sprintf("snapshot-%d.json", snap.Meta.LatestRound))
	if err := os.WriteFile(stamped, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write stamped snapshot: %w", err)
	}

	return latest, nil
}

// Load reads back the most recently saved snapshot.
func (s *Store) Load(ctx context.Context) (*aggregate.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, latestName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap aggregate.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
