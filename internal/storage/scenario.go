package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/icusim/icu-sim/pkg/scenario"
)

// Scenario operations (filesystem-backed). Case files live either at
// <dir>/<id>/scenario.json or flat at <dir>/<id>.json.

func (r *RedisStorage) scenarioPath(id string) (string, error) {
	nested := filepath.Join(r.scenarioDir, id, "scenario.json")
	if _, err := os.Stat(nested); err == nil {
		return nested, nil
	}
	flat := filepath.Join(r.scenarioDir, id+".json")
	if _, err := os.Stat(flat); err == nil {
		return flat, nil
	}
	return "", ErrScenarioNotFound
}

func (r *RedisStorage) GetScenario(ctx context.Context, id string) (*scenario.Scenario, error) {
	path, err := r.scenarioPath(id)
	if err != nil {
		r.logger.Warn("Scenario file not found", "id", id, "dir", r.scenarioDir)
		return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s scenario.Scenario
	if err := json.Unmarshal(file, &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScenarioFormat, id, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScenarioFormat, id, err)
	}

	return &s, nil
}

// ListScenarios enumerates available case summaries. Unreadable or
// malformed entries are skipped with a warning; direct load reports
// them as errors instead.
func (r *RedisStorage) ListScenarios(ctx context.Context) ([]scenario.Summary, error) {
	entries, err := os.ReadDir(r.scenarioDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	summaries := make([]scenario.Summary, 0, len(entries))
	for _, entry := range entries {
		var path string
		switch {
		case entry.IsDir():
			path = filepath.Join(r.scenarioDir, entry.Name(), "scenario.json")
		case filepath.Ext(entry.Name()) == ".json":
			path = filepath.Join(r.scenarioDir, entry.Name())
		default:
			continue
		}

		file, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("Failed to read scenario file", "path", path, "error", err)
			continue
		}

		var s scenario.Scenario
		if err := json.Unmarshal(file, &s); err != nil {
			r.logger.Warn("Failed to unmarshal scenario file", "path", path, "error", err)
			continue
		}
		if err := s.Validate(); err != nil {
			r.logger.Warn("Skipping invalid scenario", "path", path, "error", err)
			continue
		}

		summaries = append(summaries, s.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries, nil
}
