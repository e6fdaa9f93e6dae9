package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var ErrAssignmentNotFound = errors.New("assignment not found in grid")

type Assignment struct {
	Class   string `json:"class" mapstructure:"class"`
	Subject string `json:"subject" mapstructure:"subject"`
	Teacher string `json:"teacher" mapstructure:"teacher"`
	Room    string `json:"room" mapstructure:"room"`
	Slot    Slot   `json:"slot" mapstructure:"slot"`
}

func (assignment Assignment) String() string {
	return fmt.Sprintf("%v: %v~%v in %v at %v", assignment.Class, assignment.Subject, assignment.Teacher, assignment.Room, assignment.Slot)
}

// CompareAssignments orders by class, slot, subject, teacher and room
func CompareAssignments(a, b Assignment) int {
	if comparison := strings.Compare(a.Class, b.Class); comparison != 0 {
		return comparison
	}
	if comparison := CompareSlots(a.Slot, b.Slot); comparison != 0 {
		return comparison
	}
	if comparison := strings.Compare(a.Subject, b.Subject); comparison != 0 {
		return comparison
	}
	if comparison := strings.Compare(a.Teacher, b.Teacher); comparison != 0 {
		return comparison
	}
	return strings.Compare(a.Room, b.Room)
}

type classSlot struct {
	class string
	slot  Slot
}

// Grid is an immutable schedule version. Every mutation returns a new Grid with a fresh version, the receiver
// is never modified, so a Grid may be shared between goroutines freely.
type Grid struct {
	version     uuid.UUID
	assignments []Assignment
	byClassSlot map[classSlot][]int
}

func NewGrid(assignments []Assignment) Grid {
	return RestoreGrid(uuid.New(), assignments)
}

// RestoreGrid rebuilds a grid under a known version, e.g. after a round trip through the UI
func RestoreGrid(version uuid.UUID, assignments []Assignment) Grid {
	sorted := slices.Clone(assignments)
	slices.SortFunc(sorted, CompareAssignments)

	byClassSlot := make(map[classSlot][]int, len(sorted))
	for i, assignment := range sorted {
		key := classSlot{assignment.Class, assignment.Slot}
		byClassSlot[key] = append(byClassSlot[key], i)
	}

	return Grid{
		version:     version,
		assignments: sorted,
		byClassSlot: byClassSlot,
	}
}

func (grid Grid) Version() uuid.UUID {
	return grid.version
}

func (grid Grid) Len() int {
	return len(grid.assignments)
}

// Assignments returns a copy of the assignments in canonical order
func (grid Grid) Assignments() []Assignment {
	return slices.Clone(grid.assignments)
}

func (grid Grid) At(class string, slot Slot) []Assignment {
	return lo.Map(grid.byClassSlot[classSlot{class, slot}], func(i int, _ int) Assignment {
		return grid.assignments[i]
	})
}

func (grid Grid) Contains(assignment Assignment) bool {
	return lo.SomeBy(grid.byClassSlot[classSlot{assignment.Class, assignment.Slot}], func(i int) bool {
		return grid.assignments[i] == assignment
	})
}

func (grid Grid) ByClass(class string) []Assignment {
	return lo.Filter(grid.assignments, func(assignment Assignment, _ int) bool { return assignment.Class == class })
}

func (grid Grid) ByTeacher(teacher string) []Assignment {
	return lo.Filter(grid.assignments, func(assignment Assignment, _ int) bool { return assignment.Teacher == teacher })
}

func (grid Grid) ByRoom(room string) []Assignment {
	return lo.Filter(grid.assignments, func(assignment Assignment, _ int) bool { return assignment.Room == room })
}

// TeacherLoad returns the teacher's assigned weekly hours
func (grid Grid) TeacherLoad(teacher string) int {
	return lo.CountBy(grid.assignments, func(assignment Assignment) bool { return assignment.Teacher == teacher })
}

// TeacherBusy checks whether the teacher already teaches at the slot
func (grid Grid) TeacherBusy(teacher string, slot Slot) bool {
	return lo.SomeBy(grid.assignments, func(assignment Assignment) bool {
		return assignment.Teacher == teacher && assignment.Slot == slot
	})
}

// RoomBusy checks whether the room is already in use at the slot
func (grid Grid) RoomBusy(room string, slot Slot) bool {
	return lo.SomeBy(grid.assignments, func(assignment Assignment) bool {
		return assignment.Room == room && assignment.Slot == slot
	})
}

func (grid Grid) Add(assignments ...Assignment) Grid {
	return NewGrid(slices.Concat(grid.assignments, assignments))
}

func (grid Grid) Remove(assignment Assignment) (Grid, error) {
	index := slices.Index(grid.assignments, assignment)
	if index < 0 {
		return Grid{}, fmt.Errorf("%w: %v", ErrAssignmentNotFound, assignment)
	}
	return NewGrid(slices.Delete(slices.Clone(grid.assignments), index, index+1)), nil
}

func (grid Grid) Replace(from, to Assignment) (Grid, error) {
	index := slices.Index(grid.assignments, from)
	if index < 0 {
		return Grid{}, fmt.Errorf("%w: %v", ErrAssignmentNotFound, from)
	}
	assignments := slices.Clone(grid.assignments)
	assignments[index] = to
	return NewGrid(assignments), nil
}

// Diff returns the assignments only present in the receiver and those only present in other
func (grid Grid) Diff(other Grid) (removed, added []Assignment) {
	removed, added = lo.Difference(grid.assignments, other.assignments)
	return removed, added
}

type ConflictType string

const (
	ClassConflict   ConflictType = "class"
	TeacherConflict ConflictType = "teacher"
	RoomConflict    ConflictType = "room"
)

// Conflict is a double booking: several assignments share a class, teacher or room at one slot
type Conflict struct {
	Type        ConflictType
	Resource    string
	Slot        Slot
	Assignments []Assignment
}

// HardConflicts returns every double booking of classes, teachers and rooms, in a deterministic order
func (grid Grid) HardConflicts() []Conflict {
	type key struct {
		resource string
		slot     Slot
	}
	conflicts := make([]Conflict, 0)

	collect := func(conflictType ConflictType, resource func(Assignment) string) {
		groups := make(map[key][]Assignment)
		keys := make([]key, 0)
		for _, assignment := range grid.assignments {
			k := key{resource(assignment), assignment.Slot}
			if _, ok := groups[k]; !ok {
				keys = append(keys, k)
			}
			groups[k] = append(groups[k], assignment)
		}
		slices.SortFunc(keys, func(a, b key) int {
			if comparison := strings.Compare(a.resource, b.resource); comparison != 0 {
				return comparison
			}
			return CompareSlots(a.slot, b.slot)
		})
		for _, k := range keys {
			if len(groups[k]) > 1 {
				conflicts = append(conflicts, Conflict{Type: conflictType, Resource: k.resource, Slot: k.slot, Assignments: groups[k]})
			}
		}
	}

	collect(ClassConflict, func(assignment Assignment) string { return assignment.Class })
	collect(TeacherConflict, func(assignment Assignment) string { return assignment.Teacher })
	collect(RoomConflict, func(assignment Assignment) string { return assignment.Room })
	return conflicts
}

type gridJson struct {
	Version     uuid.UUID    `json:"version"`
	Assignments []Assignment `json:"assignments"`
}

func (grid Grid) MarshalJSON() ([]byte, error) {
	assignments := grid.assignments
	if assignments == nil {
		assignments = []Assignment{}
	}
	return json.Marshal(gridJson{Version: grid.version, Assignments: assignments})
}

func (grid *Grid) UnmarshalJSON(bytes []byte) error {
	var decoded gridJson
	if err := json.Unmarshal(bytes, &decoded); err != nil {
		return err
	}
	if decoded.Version == uuid.Nil {
		decoded.Version = uuid.New()
	}
	*grid = RestoreGrid(decoded.Version, decoded.Assignments)
	return nil
}
