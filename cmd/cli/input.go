package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/rules"
)

func readDomain(path string) (*model.Domain, error) {
	if path == "" {
		return nil, fmt.Errorf("a domain file must be specified")
	}
	domain, err := model.InputFromJson(path)
	if err != nil {
		return nil, fmt.Errorf("cannot parse domain file: %w", err)
	}
	return domain, nil
}

// readGraph returns an empty graph when no file is given
func readGraph(path string) (rules.Graph, error) {
	if path == "" {
		return rules.Graph{}, nil
	}
	return rules.GraphFromJson(path)
}

// readGrid accepts either a bare grid or the {grid, stats} document the generate command writes
func readGrid(path string) (model.Grid, error) {
	if path == "" {
		return model.Grid{}, fmt.Errorf("a grid file must be specified")
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return model.Grid{}, fmt.Errorf("cannot read grid file: %w", err)
	}

	var wrapped struct {
		Grid *model.Grid `json:"grid"`
	}
	if err := json.Unmarshal(bytes, &wrapped); err == nil && wrapped.Grid != nil {
		return *wrapped.Grid, nil
	}
	var grid model.Grid
	if err := json.Unmarshal(bytes, &grid); err != nil {
		return model.Grid{}, fmt.Errorf("cannot parse grid file: %w", err)
	}
	return grid, nil
}
