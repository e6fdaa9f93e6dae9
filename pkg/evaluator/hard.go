package evaluator

import (
	"fmt"
	"strings"

	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/rules"
)

var conflictRules = map[model.ConflictType]string{
	model.ClassConflict:   ClassDoubleBooking,
	model.TeacherConflict: TeacherDoubleBooking,
	model.RoomConflict:    RoomDoubleBooking,
}

// hardChecks flags double bookings, break slots and references to entities the domain does not know.
// Assignments with unknown references are returned separately so the built-in checks can skip them.
func hardChecks(s *schedule, domain *model.Domain) (violations []Violation, known []model.Assignment, checks int) {
	violations = make([]Violation, 0)
	known = make([]model.Assignment, 0, len(s.assignments))

	for _, conflict := range s.grid.HardConflicts() {
		violations = append(violations, Violation{
			Rule:        conflictRules[conflict.Type],
			Severity:    rules.SeverityHigh,
			Hard:        true,
			Assignments: conflict.Assignments,
			Description: fmt.Sprintf("%v %q is booked %d times at %v", conflict.Type, conflict.Resource, len(conflict.Assignments), conflict.Slot),
			Scope:       scope(conflict.Resource, conflict.Slot),
		})
	}

	for _, assignment := range s.assignments {
		missing := make([]string, 0)
		if !domain.HasClass(assignment.Class) {
			missing = append(missing, fmt.Sprintf("class %q", assignment.Class))
		}
		if !domain.HasSubject(assignment.Subject) {
			missing = append(missing, fmt.Sprintf("subject %q", assignment.Subject))
		}
		if !domain.HasTeacher(assignment.Teacher) {
			missing = append(missing, fmt.Sprintf("teacher %q", assignment.Teacher))
		}
		if !domain.HasRoom(assignment.Room) {
			missing = append(missing, fmt.Sprintf("room %q", assignment.Room))
		}
		if len(missing) > 0 {
			violations = append(violations, Violation{
				Rule:        UnknownReference,
				Severity:    rules.SeverityHigh,
				Hard:        true,
				Assignments: []model.Assignment{assignment},
				Description: fmt.Sprintf("assignment references unknown %v", joinList(missing)),
				Scope:       assignment.String(),
			})
		} else {
			known = append(known, assignment)
		}

		if !domain.Assignable(assignment.Slot) {
			violations = append(violations, Violation{
				Rule:        BreakSlot,
				Severity:    rules.SeverityHigh,
				Hard:        true,
				Assignments: []model.Assignment{assignment},
				Description: fmt.Sprintf("%v is not an assignable slot", assignment.Slot),
				Scope:       assignment.String(),
			})
		}
	}

	// Class, teacher and room uniqueness, slot validity and references per assignment
	return violations, known, 5 * len(s.assignments)
}

// builtinChecks runs the domain checks every grid is held to: weekly load, availability, qualification and rooms
func builtinChecks(s *schedule, known []model.Assignment, domain *model.Domain) (violations []Violation, checks map[string]int) {
	violations = make([]Violation, 0)
	checks = make(map[string]int)

	for _, teacher := range domain.Teachers {
		if teacher.MaxWeeklyHours == 0 {
			continue
		}
		checks[TeacherOverload]++
		load := s.grid.TeacherLoad(teacher.Id)
		if load > teacher.MaxWeeklyHours {
			violations = append(violations, Violation{
				Rule:        TeacherOverload,
				Kind:        rules.KindTeacher,
				Severity:    rules.SeverityHigh,
				Assignments: s.byTeacher[teacher.Id],
				Description: fmt.Sprintf("%v teaches %d periods, above the weekly maximum of %d", teacher.Name, load, teacher.MaxWeeklyHours),
				Scope:       teacher.Id,
			})
		}
	}

	for _, assignment := range known {
		teacher, _ := domain.Teacher(assignment.Teacher)
		subject, _ := domain.Subject(assignment.Subject)
		class, _ := domain.Class(assignment.Class)
		room, _ := domain.Room(assignment.Room)
		single := []model.Assignment{assignment}

		checks[TeacherUnavailable]++
		if !domain.TeacherAvailable(teacher.Id, assignment.Slot) {
			violations = append(violations, Violation{
				Rule:        TeacherUnavailable,
				Kind:        rules.KindTeacher,
				Severity:    rules.SeverityHigh,
				Assignments: single,
				Description: fmt.Sprintf("%v is unavailable at %v", teacher.Name, assignment.Slot),
				Scope:       assignment.String(),
			})
		}

		checks[TeacherUnqualified]++
		if !domain.Qualified(teacher.Id, subject.Id) {
			violations = append(violations, Violation{
				Rule:        TeacherUnqualified,
				Kind:        rules.KindTeacher,
				Severity:    rules.SeverityHigh,
				Assignments: single,
				Description: fmt.Sprintf("%v is not qualified to teach %v", teacher.Name, subject.Name),
				Scope:       assignment.String(),
			})
		}

		checks[RoomKindMismatch]++
		if !domain.Suits(subject, room) {
			violations = append(violations, Violation{
				Rule:        RoomKindMismatch,
				Kind:        KindRoom,
				Severity:    rules.SeverityMedium,
				Assignments: single,
				Description: fmt.Sprintf("%v needs a %v room, %v is a %v", subject.Name, subject.RoomKind, room.Name, orDefault(room.Kind, "plain room")),
				Scope:       assignment.String(),
			})
		}

		checks[RoomCapacity]++
		if !domain.Fits(class, room) {
			violations = append(violations, Violation{
				Rule:        RoomCapacity,
				Kind:        KindRoom,
				Severity:    rules.SeverityMedium,
				Assignments: single,
				Description: fmt.Sprintf("%v has %d students, %v seats %d", class.Name, class.Students, room.Name, room.Capacity),
				Scope:       assignment.String(),
			})
		}
	}

	return violations, checks
}

// Kinds and severities of the built-in checks, used to weigh the checks a grid passed
var builtinKinds = map[string]rules.Kind{
	TeacherOverload:    rules.KindTeacher,
	TeacherUnavailable: rules.KindTeacher,
	TeacherUnqualified: rules.KindTeacher,
	RoomKindMismatch:   KindRoom,
	RoomCapacity:       KindRoom,
}

var builtinSeverities = map[string]rules.Severity{
	TeacherOverload:    rules.SeverityHigh,
	TeacherUnavailable: rules.SeverityHigh,
	TeacherUnqualified: rules.SeverityHigh,
	RoomKindMismatch:   rules.SeverityMedium,
	RoomCapacity:       rules.SeverityMedium,
}

// scope joins the parts naming the resource a violation is about
func scope(parts ...any) string {
	var builder strings.Builder
	for i, part := range parts {
		if i > 0 {
			builder.WriteByte('|')
		}
		fmt.Fprint(&builder, part)
	}
	return builder.String()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	result := items[0]
	for _, item := range items[1 : len(items)-1] {
		result += ", " + item
	}
	return result + " and " + items[len(items)-1]
}
