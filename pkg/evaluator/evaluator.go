package evaluator

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/rules"
	"github.com/samber/lo"
)

// Evaluator checks grids against a compiled rule program. It only reads its program and domain, so one
// Evaluator may serve concurrent callers.
type Evaluator struct {
	program *rules.Program
	domain  *model.Domain
	profile Profile
}

type Option func(evaluator *Evaluator)

func WithProfile(profile Profile) Option {
	return func(evaluator *Evaluator) {
		evaluator.profile = profile
	}
}

// New builds an evaluator; a nil program evaluates only the hard and built-in checks
func New(program *rules.Program, domain *model.Domain, options ...Option) *Evaluator {
	if program == nil {
		program = &rules.Program{}
	}
	evaluator := &Evaluator{
		program: program,
		domain:  domain,
		profile: ProfileBalanced,
	}
	for _, option := range options {
		option(evaluator)
	}
	return evaluator
}

// Evaluate returns every violation of the grid: hard constraints, built-in checks and rule graph roots
func Evaluate(grid model.Grid, program *rules.Program, domain *model.Domain) []Violation {
	return New(program, domain).Evaluate(grid)
}

// EvaluateGraph compiles the graph first, configuration errors are returned before any evaluation happens
func EvaluateGraph(grid model.Grid, graph rules.Graph, domain *model.Domain) ([]Violation, error) {
	program, err := rules.Compile(graph, domain)
	if err != nil {
		return nil, err
	}
	return Evaluate(grid, program, domain), nil
}

func (evaluator *Evaluator) Profile() Profile {
	return evaluator.profile
}

func (evaluator *Evaluator) Evaluate(grid model.Grid) []Violation {
	return evaluator.Report(grid).Violations
}

type Report struct {
	Violations   []Violation `json:"violations"`
	Hard         int         `json:"hard"`
	Soft         int         `json:"soft"`
	Weighted     float64     `json:"weighted"`
	MaxWeighted  float64     `json:"maxWeighted"`
	Satisfaction float64     `json:"satisfaction"` // In [0, 1]
}

func (evaluator *Evaluator) Report(grid model.Grid) Report {
	s := newSchedule(grid)
	violations := make([]Violation, 0)
	capacity := 0.0

	//** Hard constraints
	hard, known, performed := hardChecks(s, evaluator.domain)
	violations = append(violations, hard...)
	capacity += float64(performed) * HardWeight

	//** Built-in checks
	builtin, builtinCounts := builtinChecks(s, known, evaluator.domain)
	violations = append(violations, builtin...)
	for rule, count := range builtinCounts {
		capacity += float64(count) * evaluator.profile.Weight(Violation{Kind: builtinKinds[rule], Severity: builtinSeverities[rule]})
	}

	//** Rule graph
	memo, visited := make(map[int]outcome), make(map[int]bool)
	for _, root := range evaluator.program.Roots {
		result := evaluator.expression(root, s, memo)
		violations = append(violations, result.violations...)
		capacity += evaluator.capacity(root, memo, visited)
	}

	violations = normalize(violations)
	weighted := lo.SumBy(violations, evaluator.profile.Weight)
	satisfaction := 1.0
	if capacity > 0 {
		satisfaction = min(max(1-weighted/capacity, 0), 1)
	}
	hardCount := lo.CountBy(violations, func(violation Violation) bool { return violation.Hard })
	return Report{
		Violations:   violations,
		Hard:         hardCount,
		Soft:         len(violations) - hardCount,
		Weighted:     weighted,
		MaxWeighted:  capacity,
		Satisfaction: satisfaction,
	}
}

// Score returns the weighted violations of a candidate schedule; search code calls it on unversioned snapshots
func (evaluator *Evaluator) Score(assignments []model.Assignment) float64 {
	return evaluator.Report(model.RestoreGrid(uuid.Nil, assignments)).Weighted
}

// expression evaluates a node and folds in its outgoing connections in connection id order:
// AND requires both sides, OR either side and NOT requires the left side and the negation of the target
func (evaluator *Evaluator) expression(index int, s *schedule, memo map[int]outcome) outcome {
	if result, ok := memo[index]; ok {
		return result
	}

	node := evaluator.program.Nodes[index]
	result := predicates[node.Template.Id](node, s, evaluator.domain)
	for _, edge := range node.Edges {
		target := evaluator.expression(edge.Target, s, memo)
		switch edge.Operator {
		case rules.And:
			result = and(result, target)
		case rules.Or:
			result = or(result, target)
		case rules.Not:
			result = and(result, negate(evaluator.program.Nodes[edge.Target], target))
		}
	}

	memo[index] = result
	return result
}

// capacity sums the weight a node and every node it reaches would carry if each of their checks failed
func (evaluator *Evaluator) capacity(root int, memo map[int]outcome, visited map[int]bool) float64 {
	var walk func(index int) float64
	walk = func(index int) float64 {
		if visited[index] {
			return 0
		}
		visited[index] = true
		node := evaluator.program.Nodes[index]
		total := float64(memo[index].checks) * evaluator.profile.Weight(Violation{Kind: node.Template.Kind, Template: node.Template.Id, Severity: node.Template.Severity})
		for _, edge := range node.Edges {
			total += walk(edge.Target)
		}
		return total
	}
	return walk(root)
}

func and(left, right outcome) outcome {
	return outcome{
		holds:      left.holds && right.holds,
		violations: append(append([]Violation{}, left.violations...), right.violations...),
		witnesses:  append(append([]model.Assignment{}, left.witnesses...), right.witnesses...),
		checks:     left.checks,
	}
}

func or(left, right outcome) outcome {
	result := outcome{
		holds:     left.holds || right.holds,
		witnesses: append(append([]model.Assignment{}, left.witnesses...), right.witnesses...),
		checks:    left.checks,
	}
	if !result.holds {
		result.violations = append(append([]Violation{}, left.violations...), right.violations...)
	}
	return result
}

// negate turns a holding target into violations: one per witness, or a single one when the target has none
func negate(node rules.Node, target outcome) outcome {
	if !target.holds {
		return outcome{holds: true, checks: target.checks}
	}

	description := rules.Describe(node.Rule)
	violations := make([]Violation, 0, max(len(target.witnesses), 1))
	if len(target.witnesses) == 0 {
		violations = append(violations, violationOf(node, "", fmt.Sprintf("negated rule holds: %v", description)))
	}
	for _, witness := range target.witnesses {
		violations = append(violations, violationOf(node, witness.String(), fmt.Sprintf("negated rule holds at %v: %v", witness.Slot, description), witness))
	}
	return outcome{holds: false, violations: violations, checks: target.checks}
}
