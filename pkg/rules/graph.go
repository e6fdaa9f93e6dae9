package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
)

type Operator string

const (
	And Operator = "and"
	Or  Operator = "or"
	Not Operator = "not"
)

type Parameter struct {
	Label string `json:"label" mapstructure:"label"`
	Value any    `json:"value" mapstructure:"value"`
}

// Rule is a node of the rule graph as authored in the builder; parameters stay loosely typed until Compile
type Rule struct {
	Id         string      `json:"id" mapstructure:"id"`
	Name       string      `json:"name" mapstructure:"name"`
	Kind       Kind        `json:"type" mapstructure:"type"`
	Template   string      `json:"template,omitempty" mapstructure:"template"`
	Parameters []Parameter `json:"parameters" mapstructure:"parameters"`
}

func (rule Rule) Param(label string) (any, bool) {
	for _, parameter := range rule.Parameters {
		if equalLabels(parameter.Label, label) {
			return parameter.Value, true
		}
	}
	return nil, false
}

type Connection struct {
	Id       string   `json:"id" mapstructure:"id"`
	From     string   `json:"from" mapstructure:"from"`
	To       string   `json:"to" mapstructure:"to"`
	Operator Operator `json:"type" mapstructure:"type"`
}

// Graph mirrors the builder's export format: blocks, connections and free-form metadata
type Graph struct {
	Rules       []Rule         `json:"blocks" mapstructure:"blocks"`
	Connections []Connection   `json:"connections" mapstructure:"connections"`
	Metadata    map[string]any `json:"metadata,omitempty" mapstructure:"metadata"`
}

func GraphFromJson(file string) (Graph, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return Graph{}, fmt.Errorf("cannot read rule graph file: %w", err)
	}
	return GraphFromBytes(bytes)
}

func GraphFromBytes(bytes []byte) (Graph, error) {
	var inputJson map[string]any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return Graph{}, fmt.Errorf("cannot parse rule graph json: %w", err)
	}

	var graph Graph
	if err := mapstructure.Decode(inputJson, &graph); err != nil {
		return Graph{}, fmt.Errorf("cannot decode rule graph: %w", err)
	}
	return graph, nil
}
