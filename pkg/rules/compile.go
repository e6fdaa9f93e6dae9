package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/samber/lo"
)

// Node is a compiled rule: its template, resolved parameters and outgoing connections sorted by connection id
type Node struct {
	Rule     Rule
	Template Template
	Params   Params
	Edges    []Edge
}

type Edge struct {
	Connection string
	Operator   Operator
	Target     int
}

// Program is a validated rule graph ready for evaluation. Roots are the nodes no connection points to; each root
// must hold, every other node only matters through the expressions of its parents.
type Program struct {
	Nodes []Node
	Roots []int
}

func (program *Program) Node(id string) (Node, bool) {
	return lo.Find(program.Nodes, func(node Node) bool { return node.Rule.Id == id })
}

// ClassPriorities returns the highest priority rank given to each class by class-priority rules
func (program *Program) ClassPriorities() map[string]int {
	priorities := make(map[string]int)
	if program == nil {
		return priorities
	}
	for _, node := range program.Nodes {
		if params, ok := node.Params.(ClassPriority); ok {
			priorities[params.Class] = max(priorities[params.Class], params.Priority.Rank())
		}
	}
	return priorities
}

// Validate checks the graph against the domain and returns every configuration error found, in a stable order
func Validate(graph Graph, domain *model.Domain) []ConfigError {
	_, errs := compile(graph, domain)
	return errs
}

// Compile validates the graph and resolves it into a Program; validation failures come back as ConfigErrors
func Compile(graph Graph, domain *model.Domain) (*Program, error) {
	program, errs := compile(graph, domain)
	if len(errs) > 0 {
		return nil, ConfigErrors(errs)
	}
	return program, nil
}

func compile(graph Graph, domain *model.Domain) (*Program, []ConfigError) {
	errs := make([]ConfigError, 0)
	program := &Program{
		Nodes: make([]Node, 0, len(graph.Rules)),
		Roots: make([]int, 0),
	}

	//** Nodes
	indices := make(map[string]int)
	for _, rule := range graph.Rules {
		if rule.Id == "" {
			errs = append(errs, ConfigError{Code: CodeMalformedParameter, Message: fmt.Sprintf("rule %q has no id", rule.Name)})
			continue
		}
		if _, ok := indices[rule.Id]; ok {
			errs = append(errs, ConfigError{Rule: rule.Id, Code: CodeDuplicateRule, Message: "rule id is used more than once"})
			continue
		}

		template, ok := templateOf(rule)
		if !ok {
			errs = append(errs, ConfigError{Rule: rule.Id, Code: CodeUnknownTemplate, Message: fmt.Sprintf("no rule template matches %q", lo.Ternary(rule.Template != "", rule.Template, rule.Name))})
			continue
		}

		params, paramErrs := resolveParams(rule, template, domain)
		errs = append(errs, paramErrs...)

		indices[rule.Id] = len(program.Nodes)
		program.Nodes = append(program.Nodes, Node{Rule: rule, Template: template, Params: params})
	}

	//** Connections
	connections := slices.Clone(graph.Connections)
	slices.SortStableFunc(connections, func(a, b Connection) int { return strings.Compare(a.Id, b.Id) })
	incoming := make(map[int]bool)
	for _, connection := range connections {
		operator := Operator(strings.ToLower(string(connection.Operator)))
		if !slices.Contains([]Operator{And, Or, Not}, operator) {
			errs = append(errs, ConfigError{Connection: connection.Id, Code: CodeUnknownOperator, Message: fmt.Sprintf("unknown operator %q", connection.Operator)})
			continue
		}
		from, fromOk := indices[connection.From]
		to, toOk := indices[connection.To]
		if !fromOk || !toOk {
			missing := make([]string, 0, 2)
			if !fromOk {
				missing = append(missing, fmt.Sprintf("%q", connection.From))
			}
			if !toOk {
				missing = append(missing, fmt.Sprintf("%q", connection.To))
			}
			message := fmt.Sprintf("rule %v does not exist", missing[0])
			if len(missing) == 2 {
				message = fmt.Sprintf("rules %v and %v do not exist", missing[0], missing[1])
			}
			errs = append(errs, ConfigError{Connection: connection.Id, Code: CodeUnknownEndpoint, Message: message})
			continue
		}
		if from == to {
			errs = append(errs, ConfigError{Connection: connection.Id, Rule: connection.From, Code: CodeSelfConnection, Message: "a rule cannot be connected to itself"})
			continue
		}

		program.Nodes[from].Edges = append(program.Nodes[from].Edges, Edge{Connection: connection.Id, Operator: operator, Target: to})
		incoming[to] = true
	}

	//** Cycles
	errs = append(errs, findCycles(program)...)

	for i := range program.Nodes {
		if !incoming[i] {
			program.Roots = append(program.Roots, i)
		}
	}
	slices.SortFunc(program.Roots, func(a, b int) int {
		return strings.Compare(program.Nodes[a].Rule.Id, program.Nodes[b].Rule.Id)
	})

	return program, errs
}

func templateOf(rule Rule) (Template, bool) {
	if rule.Template != "" {
		return TemplateById(rule.Template)
	}
	if template, ok := TemplateById(rule.Id); ok {
		return template, true
	}
	return TemplateByName(rule.Name)
}

// findCycles reports one error per back edge found by a depth-first search started from every node in id order
func findCycles(program *Program) []ConfigError {
	const (
		unvisited = iota
		visiting
		visited
	)
	errs := make([]ConfigError, 0)
	states := make([]int, len(program.Nodes))
	path := make([]int, 0)

	var visit func(node int)
	visit = func(node int) {
		states[node] = visiting
		path = append(path, node)
		for _, edge := range program.Nodes[node].Edges {
			switch states[edge.Target] {
			case unvisited:
				visit(edge.Target)
			case visiting:
				start := slices.Index(path, edge.Target)
				names := lo.Map(path[start:], func(i int, _ int) string { return program.Nodes[i].Rule.Id })
				errs = append(errs, ConfigError{
					Rule:       program.Nodes[edge.Target].Rule.Id,
					Connection: edge.Connection,
					Code:       CodeCycle,
					Message:    fmt.Sprintf("connections form a cycle: %v -> %v", strings.Join(names, " -> "), program.Nodes[edge.Target].Rule.Id),
				})
			}
		}
		path = path[:len(path)-1]
		states[node] = visited
	}

	order := lo.Range(len(program.Nodes))
	slices.SortFunc(order, func(a, b int) int { return strings.Compare(program.Nodes[a].Rule.Id, program.Nodes[b].Rule.Id) })
	for _, node := range order {
		if states[node] == unvisited {
			visit(node)
		}
	}
	return errs
}
