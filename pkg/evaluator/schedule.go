package evaluator

import (
	"slices"

	"github.com/limaJavier/timetable-engine/pkg/model"
)

// schedule indexes a grid's assignments the ways the predicates read them; every list is ordered by slot
type schedule struct {
	grid           model.Grid
	assignments    []model.Assignment
	byTeacher      map[string][]model.Assignment
	byClassSubject map[[2]string][]model.Assignment
	bySubject      map[string][]model.Assignment
}

func newSchedule(grid model.Grid) *schedule {
	s := &schedule{
		grid:           grid,
		assignments:    grid.Assignments(),
		byTeacher:      make(map[string][]model.Assignment),
		byClassSubject: make(map[[2]string][]model.Assignment),
		bySubject:      make(map[string][]model.Assignment),
	}
	for _, assignment := range s.assignments {
		s.byTeacher[assignment.Teacher] = append(s.byTeacher[assignment.Teacher], assignment)
		key := [2]string{assignment.Class, assignment.Subject}
		s.byClassSubject[key] = append(s.byClassSubject[key], assignment)
		s.bySubject[assignment.Subject] = append(s.bySubject[assignment.Subject], assignment)
	}
	bySlot := func(a, b model.Assignment) int {
		if comparison := model.CompareSlots(a.Slot, b.Slot); comparison != 0 {
			return comparison
		}
		return model.CompareAssignments(a, b)
	}
	for _, assignments := range s.byTeacher {
		slices.SortFunc(assignments, bySlot)
	}
	for _, assignments := range s.bySubject {
		slices.SortFunc(assignments, bySlot)
	}
	return s
}

// teacherDay returns the teacher's assignments on the day, ordered by period
func (s *schedule) teacherDay(teacher string, day model.Day) []model.Assignment {
	lessons := make([]model.Assignment, 0)
	for _, assignment := range s.byTeacher[teacher] {
		if assignment.Slot.Day == day {
			lessons = append(lessons, assignment)
		}
	}
	return lessons
}

func (s *schedule) classSubject(class, subject string) []model.Assignment {
	return s.byClassSubject[[2]string{class, subject}]
}

// runs splits slot-ordered lessons into maximal blocks of adjacent periods. With sameDay unset a block may
// continue from the last period of a day into the first period of the next one.
func runs(lessons []model.Assignment, periodsPerDay int, sameDay bool) [][]model.Assignment {
	blocks := make([][]model.Assignment, 0)
	position := func(slot model.Slot) int { return int(slot.Day)*periodsPerDay + slot.Period }
	for i, lesson := range lessons {
		if i > 0 {
			previous := lessons[i-1].Slot
			adjacent := position(lesson.Slot) == position(previous)+1
			if sameDay {
				adjacent = adjacent && lesson.Slot.Day == previous.Day
			}
			if adjacent {
				blocks[len(blocks)-1] = append(blocks[len(blocks)-1], lesson)
				continue
			}
		}
		blocks = append(blocks, []model.Assignment{lesson})
	}
	return blocks
}
