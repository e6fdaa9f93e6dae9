package generator

import (
	"cmp"
	"slices"
	"strings"

	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/samber/lo"
)

// unit is one period a class must be taught of a subject
type unit struct {
	class    string
	subject  string
	index    int      // k-th period of the (class, subject) requirement
	teachers []string // Qualified teachers, the class's homeroom teacher first
	rooms    []string // Suitable rooms smallest first, every room when none suits
	priority int      // Class priority rank given by class-priority rules
	options  int      // Slot-teacher pairs open to the unit on an empty board
}

func (u unit) lesson(placement placement) model.Assignment {
	return model.Assignment{
		Class:   u.class,
		Subject: u.subject,
		Teacher: placement.teacher,
		Room:    placement.room,
		Slot:    placement.slot,
	}
}

// expandUnits turns every class requirement into one unit per required period
func expandUnits(domain *model.Domain, priorities map[string]int) []unit {
	slots := domain.AssignableSlots()
	units := make([]unit, 0, domain.TotalRequiredPeriods())

	for _, class := range domain.Classes {
		for _, requirement := range domain.Requirements(class.Id) {
			teachers := lo.Map(domain.QualifiedTeachers(requirement.Subject), func(teacher model.Teacher, _ int) string { return teacher.Id })
			slices.SortStableFunc(teachers, func(a, b string) int {
				return cmp.Compare(lo.Ternary(a == class.Homeroom, 0, 1), lo.Ternary(b == class.Homeroom, 0, 1))
			})

			rooms := lo.Map(domain.SuitableRooms(requirement.Subject, class.Id), func(room model.Room, _ int) string { return room.Id })
			if len(rooms) == 0 {
				rooms = lo.Map(domain.Rooms, func(room model.Room, _ int) string { return room.Id })
			}

			options := 0
			for _, teacher := range teachers {
				options += lo.CountBy(slots, func(slot model.Slot) bool { return domain.TeacherAvailable(teacher, slot) })
			}

			for k := range requirement.Periods {
				units = append(units, unit{
					class:    class.Id,
					subject:  requirement.Subject,
					index:    k,
					teachers: teachers,
					rooms:    rooms,
					priority: priorities[class.Id],
					options:  options,
				})
			}
		}
	}
	return units
}

// heuristicOrder returns the unit indices most constrained first; ties go to higher priority classes and then to
// a stable id order
func heuristicOrder(units []unit) []int {
	order := lo.Range(len(units))
	slices.SortStableFunc(order, func(a, b int) int {
		ua, ub := units[a], units[b]
		if ua.options != ub.options {
			return cmp.Compare(ua.options, ub.options)
		}
		if ua.priority != ub.priority {
			return cmp.Compare(ub.priority, ua.priority)
		}
		if comparison := strings.Compare(ua.class, ub.class); comparison != 0 {
			return comparison
		}
		if comparison := strings.Compare(ua.subject, ub.subject); comparison != 0 {
			return comparison
		}
		return cmp.Compare(ua.index, ub.index)
	})
	return order
}
