package evaluator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/rules"
)

// Rule identities of the checks that run regardless of the rule graph
const (
	ClassDoubleBooking   = "hard:class-double-booking"
	TeacherDoubleBooking = "hard:teacher-double-booking"
	RoomDoubleBooking    = "hard:room-double-booking"
	BreakSlot            = "hard:break-slot"
	UnknownReference     = "hard:unknown-reference"

	TeacherOverload    = "builtin:teacher-overload"
	TeacherUnavailable = "builtin:teacher-unavailable"
	TeacherUnqualified = "builtin:teacher-unqualified"
	RoomKindMismatch   = "builtin:room-kind"
	RoomCapacity       = "builtin:room-capacity"
)

// KindRoom tags the built-in room checks, rule graph kinds never use it
const KindRoom rules.Kind = "room"

type Violation struct {
	Rule        string             `json:"rule"`
	Template    string             `json:"template,omitempty"`
	Kind        rules.Kind         `json:"kind,omitempty"`
	Severity    rules.Severity     `json:"severity"`
	Hard        bool               `json:"hard"`
	Assignments []model.Assignment `json:"assignments"`
	Description string             `json:"description"`
	Scope       string             `json:"scope,omitempty"` // Resource the violation is about, e.g. a teacher and a day
}

func (violation Violation) String() string {
	return fmt.Sprintf("[%v] %v: %v", violation.Severity, violation.Rule, violation.Description)
}

// Identity names a violation across evaluations of different grids: two reports share an identity when the same
// rule fails on the same resource, however many lessons or periods the failure involves
func (violation Violation) Identity() string {
	if violation.Scope == "" {
		return violation.key()
	}
	return fmt.Sprintf("%v|%v|%v", violation.Rule, violation.Severity, violation.Scope)
}

func (violation Violation) key() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "%v|%v|", violation.Rule, violation.Description)
	for _, assignment := range violation.Assignments {
		builder.WriteString(assignment.String())
		builder.WriteByte('|')
	}
	return builder.String()
}

// compareViolations orders by severity descending, then rule id, first assignment and description
func compareViolations(a, b Violation) int {
	if a.Severity.Rank() != b.Severity.Rank() {
		return b.Severity.Rank() - a.Severity.Rank()
	}
	if comparison := strings.Compare(a.Rule, b.Rule); comparison != 0 {
		return comparison
	}
	switch {
	case len(a.Assignments) == 0 && len(b.Assignments) > 0:
		return -1
	case len(a.Assignments) > 0 && len(b.Assignments) == 0:
		return 1
	case len(a.Assignments) > 0 && len(b.Assignments) > 0:
		if comparison := model.CompareAssignments(a.Assignments[0], b.Assignments[0]); comparison != 0 {
			return comparison
		}
	}
	return strings.Compare(a.Description, b.Description)
}

// normalize drops duplicates reached through several parents and sorts deterministically
func normalize(violations []Violation) []Violation {
	seen := make(map[string]bool, len(violations))
	unique := make([]Violation, 0, len(violations))
	for _, violation := range violations {
		key := violation.key()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, violation)
	}
	slices.SortStableFunc(unique, compareViolations)
	return unique
}
