package evaluator

import (
	"fmt"
	"slices"

	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/rules"
	"github.com/samber/lo"
)

// outcome is the result of evaluating a rule, or a composition of rules, on a schedule.
// Witnesses are the assignments that make a rule hold; negations report them as violations.
type outcome struct {
	holds      bool
	violations []Violation
	witnesses  []model.Assignment
	checks     int
}

type predicate func(node rules.Node, s *schedule, domain *model.Domain) outcome

var predicates = map[string]predicate{
	rules.MaxDailyHoursTemplate:       maxDailyHours,
	rules.TeacherAvailabilityTemplate: teacherAvailability,
	rules.SubjectSpacingTemplate:      subjectSpacing,
	rules.ConsecutivePeriodsTemplate:  consecutivePeriods,
	rules.NoFirstPeriodTemplate:       noFirstPeriod,
	rules.SubjectInPeriodTemplate:     subjectInPeriod,
	rules.TeacherBreakTemplate:        teacherBreak,
	rules.LabBookingTemplate:          labBooking,
	rules.ClassPriorityTemplate:       classPriority,
}

func violationOf(node rules.Node, scope, description string, assignments ...model.Assignment) Violation {
	return Violation{
		Rule:        node.Rule.Id,
		Template:    node.Template.Id,
		Kind:        node.Template.Kind,
		Severity:    node.Template.Severity,
		Assignments: assignments,
		Description: description,
		Scope:       scope,
	}
}

func failing(violations []Violation, checks int) outcome {
	return outcome{holds: len(violations) == 0, violations: violations, checks: max(checks, 1)}
}

// teachersOf returns the single teacher a rule targets or every teacher when it targets none
func teachersOf(teacher string, domain *model.Domain) []model.Teacher {
	if teacher == "" {
		return domain.Teachers
	}
	found, _ := domain.Teacher(teacher)
	return []model.Teacher{found}
}

func subjectName(domain *model.Domain, id string) string {
	subject, _ := domain.Subject(id)
	return subject.Name
}

func maxDailyHours(node rules.Node, s *schedule, domain *model.Domain) outcome {
	params := node.Params.(rules.MaxDailyHours)
	violations := make([]Violation, 0)
	checks := 0
	for _, teacher := range teachersOf(params.Teacher, domain) {
		for _, day := range model.Days {
			checks++
			lessons := s.teacherDay(teacher.Id, day)
			if len(lessons) > params.MaxHours {
				violations = append(violations, violationOf(node, scope(teacher.Id, day),
					fmt.Sprintf("%v teaches %d periods on %v, more than %d", teacher.Name, len(lessons), day, params.MaxHours),
					lessons...))
			}
		}
	}
	return failing(violations, checks)
}

func teacherAvailability(node rules.Node, s *schedule, domain *model.Domain) outcome {
	params := node.Params.(rules.TeacherAvailability)
	teacher, _ := domain.Teacher(params.Teacher)
	violations := make([]Violation, 0)
	for _, assignment := range s.byTeacher[params.Teacher] {
		if assignment.Slot == params.Slot {
			violations = append(violations, violationOf(node, scope(params.Teacher, params.Slot),
				fmt.Sprintf("%v must be free at %v", teacher.Name, params.Slot),
				assignment))
		}
	}
	return failing(violations, 1)
}

func subjectSpacing(node rules.Node, s *schedule, domain *model.Domain) outcome {
	params := node.Params.(rules.SubjectSpacing)
	name := subjectName(domain, params.Subject)
	violations := make([]Violation, 0)
	checks := 0
	for _, class := range domain.Classes {
		lessons := s.classSubject(class.Id, params.Subject)
		for i := 1; i < len(lessons); i++ {
			previous, current := lessons[i-1], lessons[i]
			checks++
			switch params.Unit {
			case rules.SpacingDays:
				if gap := int(current.Slot.Day) - int(previous.Slot.Day) - 1; gap < params.MinGap {
					violations = append(violations, violationOf(node, scope(class.Id, params.Subject, previous.Slot.Day, current.Slot.Day),
						fmt.Sprintf("%v lessons of %v are %d days apart, at least %d required", name, class.Name, max(gap, 0), params.MinGap),
						previous, current))
				}
			default:
				if current.Slot.Day != previous.Slot.Day {
					continue
				}
				if gap := current.Slot.Period - previous.Slot.Period - 1; gap < params.MinGap {
					violations = append(violations, violationOf(node, scope(class.Id, params.Subject, current.Slot.Day),
						fmt.Sprintf("%v lessons of %v are %d periods apart on %v, at least %d required", name, class.Name, max(gap, 0), current.Slot.Day, params.MinGap),
						previous, current))
				}
			}
		}
	}
	return failing(violations, checks)
}

func consecutivePeriods(node rules.Node, s *schedule, domain *model.Domain) outcome {
	params := node.Params.(rules.ConsecutivePeriods)
	name := subjectName(domain, params.Subject)
	violations := make([]Violation, 0)
	checks := 0
	for _, class := range domain.Classes {
		lessons := s.classSubject(class.Id, params.Subject)
		if len(lessons) == 0 {
			continue
		}
		// A class with fewer lessons than Count can at best take them all in one block
		required := min(params.Count, len(lessons))
		for _, block := range runs(lessons, domain.PeriodsPerDay, params.SameDay) {
			checks++
			if len(block) < required {
				violations = append(violations, violationOf(node, scope(class.Id, params.Subject),
					fmt.Sprintf("%v of %v has a block of %d periods starting %v, at least %d required", name, class.Name, len(block), block[0].Slot, required),
					block...))
			}
		}
	}
	return failing(violations, checks)
}

func noFirstPeriod(node rules.Node, s *schedule, domain *model.Domain) outcome {
	params := node.Params.(rules.NoFirstPeriod)
	name := subjectName(domain, params.Subject)
	violations := make([]Violation, 0)
	lessons := s.bySubject[params.Subject]
	for _, assignment := range lessons {
		if assignment.Slot.Period == 0 && slices.Contains(params.Days, assignment.Slot.Day) {
			violations = append(violations, violationOf(node, scope(assignment.Class, params.Subject, assignment.Slot.Day),
				fmt.Sprintf("%v of %v is scheduled in the first period on %v", name, assignment.Class, assignment.Slot.Day),
				assignment))
		}
	}
	return failing(violations, len(lessons))
}

func subjectInPeriod(node rules.Node, s *schedule, domain *model.Domain) outcome {
	params := node.Params.(rules.SubjectInPeriod)
	witnesses := lo.Filter(s.bySubject[params.Subject], func(assignment model.Assignment, _ int) bool {
		return assignment.Slot.Period == params.Period && slices.Contains(params.Days, assignment.Slot.Day)
	})
	if len(witnesses) > 0 {
		return outcome{holds: true, witnesses: witnesses, checks: 1}
	}
	return outcome{
		holds: false,
		violations: []Violation{violationOf(node, params.Subject,
			fmt.Sprintf("%v is never scheduled in period %d", subjectName(domain, params.Subject), params.Period+1))},
		checks: 1,
	}
}

func teacherBreak(node rules.Node, s *schedule, domain *model.Domain) outcome {
	params := node.Params.(rules.TeacherBreak)
	violations := make([]Violation, 0)
	checks := 0
	for _, teacher := range teachersOf(params.Teacher, domain) {
		for _, day := range model.Days {
			lessons := s.teacherDay(teacher.Id, day)
			for i := 1; i < len(lessons); i++ {
				checks++
				previous, current := lessons[i-1], lessons[i]
				if gap := current.Slot.Period - previous.Slot.Period - 1; gap >= 0 && gap < params.MinPeriods {
					violations = append(violations, violationOf(node, scope(teacher.Id, day),
						fmt.Sprintf("%v has %d free periods between %v and %v, at least %d required", teacher.Name, gap, previous.Slot, current.Slot, params.MinPeriods),
						previous, current))
				}
			}
		}
	}
	return failing(violations, checks)
}

func labBooking(node rules.Node, s *schedule, domain *model.Domain) outcome {
	params := node.Params.(rules.LabBooking)
	name := subjectName(domain, params.Subject)
	room, _ := domain.Room(params.Room)
	violations := make([]Violation, 0)
	checks := 0
	for _, class := range domain.Classes {
		lessons := s.classSubject(class.Id, params.Subject)
		if len(lessons) == 0 {
			continue
		}
		inLab := make([]model.Assignment, 0, len(lessons))
		for _, assignment := range lessons {
			checks++
			if assignment.Room != params.Room {
				violations = append(violations, violationOf(node, scope(class.Id, params.Subject, assignment.Slot),
					fmt.Sprintf("%v of %v must take place in %v", name, class.Name, room.Name),
					assignment))
				continue
			}
			inLab = append(inLab, assignment)
		}

		required := min(params.Duration, len(lessons))
		for _, block := range runs(inLab, domain.PeriodsPerDay, true) {
			if len(block) < required {
				violations = append(violations, violationOf(node, scope(class.Id, params.Subject, params.Room),
					fmt.Sprintf("%v of %v books %v for %d periods starting %v, %d consecutive periods required", name, class.Name, room.Name, len(block), block[0].Slot, required),
					block...))
			}
		}
	}
	return failing(violations, checks)
}

func classPriority(rules.Node, *schedule, *model.Domain) outcome {
	return outcome{holds: true}
}
