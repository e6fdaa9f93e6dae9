package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
)

const DaysPerWeek = 5

var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}

var dayNames = [DaysPerWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

func (day Day) String() string {
	if day < 0 || int(day) >= DaysPerWeek {
		return fmt.Sprintf("Day(%d)", int(day))
	}
	return dayNames[day]
}

func (day Day) Valid() bool {
	return day >= Monday && day <= Friday
}

// ParseDay accepts full names ("Monday") and three letter abbreviations ("mon"), case-insensitive.
func ParseDay(value string) (Day, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for i, name := range dayNames {
		lowered := strings.ToLower(name)
		if value == lowered || value == lowered[:3] {
			return Day(i), nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", value)
}

func (day Day) MarshalJSON() ([]byte, error) {
	if !day.Valid() {
		return json.Marshal(int(day))
	}
	return json.Marshal(day.String())
}

// UnmarshalJSON accepts both day names and zero-based day numbers
func (day *Day) UnmarshalJSON(bytes []byte) error {
	var name string
	if err := json.Unmarshal(bytes, &name); err == nil {
		parsed, err := ParseDay(name)
		if err != nil {
			return err
		}
		*day = parsed
		return nil
	}

	var number int
	if err := json.Unmarshal(bytes, &number); err != nil {
		return fmt.Errorf("day must be a name or a number: %w", err)
	}
	*day = Day(number)
	return nil
}

// Slot identifies a (day, period) cell of the weekly grid. Periods are zero-based.
type Slot struct {
	Day    Day `json:"day" mapstructure:"day"`
	Period int `json:"period" mapstructure:"period"`
}

func (slot Slot) String() string {
	return fmt.Sprintf("%v P%d", slot.Day, slot.Period+1)
}

func CompareSlots(a, b Slot) int {
	if a.Day != b.Day {
		return int(a.Day) - int(b.Day)
	}
	return a.Period - b.Period
}

type TimeSlot struct {
	Slot
	Break bool `json:"break"`
}

type Category string

const (
	CategoryCore     Category = "core"
	CategoryScience  Category = "science"
	CategoryArts     Category = "arts"
	CategoryPhysical Category = "physical"
	CategoryElective Category = "elective"
)

type Subject struct {
	Id            string   `json:"id" mapstructure:"id" validate:"required"`
	Name          string   `json:"name" mapstructure:"name"`
	Category      Category `json:"category" mapstructure:"category" validate:"omitempty,oneof=core science arts physical elective"`
	WeeklyPeriods int      `json:"weeklyPeriods" mapstructure:"weeklyPeriods" validate:"min=0"`
	RoomKind      string   `json:"roomKind,omitempty" mapstructure:"roomKind"` // Empty when any room will do
}

type Teacher struct {
	Id             string   `json:"id" mapstructure:"id" validate:"required"`
	Name           string   `json:"name" mapstructure:"name"`
	MaxWeeklyHours int      `json:"maxWeeklyHours" mapstructure:"maxWeeklyHours" validate:"min=0"` // Zero means no weekly cap
	Subjects       []string `json:"subjects" mapstructure:"subjects"`
	Unavailable    []Slot   `json:"unavailable,omitempty" mapstructure:"unavailable"`
}

type Requirement struct {
	Subject  string `json:"subject" mapstructure:"subject" validate:"required"`
	Periods  int    `json:"periods" mapstructure:"periods" validate:"min=0"` // Zero falls back to the subject's weekly periods
	Elective bool   `json:"elective,omitempty" mapstructure:"elective"`
}

type ClassSection struct {
	Id           string        `json:"id" mapstructure:"id" validate:"required"`
	Name         string        `json:"name" mapstructure:"name"`
	Grade        string        `json:"grade,omitempty" mapstructure:"grade"`
	Students     int           `json:"students" mapstructure:"students" validate:"min=0"`
	Requirements []Requirement `json:"requirements" mapstructure:"requirements" validate:"dive"`
	Homeroom     string        `json:"homeroom,omitempty" mapstructure:"homeroom"`
}

type Room struct {
	Id       string `json:"id" mapstructure:"id" validate:"required"`
	Name     string `json:"name" mapstructure:"name"`
	Kind     string `json:"kind,omitempty" mapstructure:"kind"`
	Capacity int    `json:"capacity" mapstructure:"capacity" validate:"min=0"` // Zero means unbounded
}

// Domain is an immutable snapshot of the entities a timetable assigns. It must be built with NewDomain,
// which validates the input and prepares the lookup indices; afterwards it is safe for concurrent reads.
type Domain struct {
	PeriodsPerDay int
	PeriodMinutes int
	Subjects      []Subject
	Teachers      []Teacher
	Classes       []ClassSection
	Rooms         []Room
	Breaks        []Slot

	subjects     map[string]int
	teachers     map[string]int
	classes      map[string]int
	rooms        map[string]int
	breaks       map[Slot]bool
	unavailable  map[string]map[Slot]bool
	qualified    map[string]map[string]bool
	requirements map[string][]Requirement
}

func (domain *Domain) Subject(id string) (Subject, bool) {
	index, ok := domain.subjects[id]
	if !ok {
		return Subject{}, false
	}
	return domain.Subjects[index], true
}

func (domain *Domain) Teacher(id string) (Teacher, bool) {
	index, ok := domain.teachers[id]
	if !ok {
		return Teacher{}, false
	}
	return domain.Teachers[index], true
}

func (domain *Domain) Class(id string) (ClassSection, bool) {
	index, ok := domain.classes[id]
	if !ok {
		return ClassSection{}, false
	}
	return domain.Classes[index], true
}

func (domain *Domain) Room(id string) (Room, bool) {
	index, ok := domain.rooms[id]
	if !ok {
		return Room{}, false
	}
	return domain.Rooms[index], true
}

func (domain *Domain) HasSubject(id string) bool {
	_, ok := domain.subjects[id]
	return ok
}

func (domain *Domain) HasTeacher(id string) bool {
	_, ok := domain.teachers[id]
	return ok
}

func (domain *Domain) HasClass(id string) bool {
	_, ok := domain.classes[id]
	return ok
}

func (domain *Domain) HasRoom(id string) bool {
	_, ok := domain.rooms[id]
	return ok
}

// Index positions, used by search code that keeps per-entity arrays
func (domain *Domain) TeacherIndex(id string) (int, bool) {
	index, ok := domain.teachers[id]
	return index, ok
}

func (domain *Domain) ClassIndex(id string) (int, bool) {
	index, ok := domain.classes[id]
	return index, ok
}

func (domain *Domain) RoomIndex(id string) (int, bool) {
	index, ok := domain.rooms[id]
	return index, ok
}

func (domain *Domain) InRange(slot Slot) bool {
	return slot.Day.Valid() && slot.Period >= 0 && slot.Period < domain.PeriodsPerDay
}

func (domain *Domain) IsBreak(slot Slot) bool {
	return domain.breaks[slot]
}

// Assignable reports whether lessons may be placed in the slot at all
func (domain *Domain) Assignable(slot Slot) bool {
	return domain.InRange(slot) && !domain.IsBreak(slot)
}

// Slots returns the whole week, day-major, breaks included
func (domain *Domain) Slots() []TimeSlot {
	slots := make([]TimeSlot, 0, DaysPerWeek*domain.PeriodsPerDay)
	for _, day := range Days {
		for period := range domain.PeriodsPerDay {
			slot := Slot{Day: day, Period: period}
			slots = append(slots, TimeSlot{Slot: slot, Break: domain.IsBreak(slot)})
		}
	}
	return slots
}

// AssignableSlots returns every non-break slot, day-major
func (domain *Domain) AssignableSlots() []Slot {
	slots := make([]Slot, 0, DaysPerWeek*domain.PeriodsPerDay)
	for _, timeSlot := range domain.Slots() {
		if !timeSlot.Break {
			slots = append(slots, timeSlot.Slot)
		}
	}
	return slots
}

// TeacherAvailable checks whether the teacher has not declared the slot as unavailable
func (domain *Domain) TeacherAvailable(teacher string, slot Slot) bool {
	return !domain.unavailable[teacher][slot]
}

// Qualified checks whether the teacher is allowed to teach the subject
func (domain *Domain) Qualified(teacher, subject string) bool {
	return domain.qualified[teacher][subject]
}

// QualifiedTeachers returns the teachers able to teach the subject, ordered by id
func (domain *Domain) QualifiedTeachers(subject string) []Teacher {
	teachers := make([]Teacher, 0)
	for _, teacher := range domain.Teachers {
		if domain.qualified[teacher.Id][subject] {
			teachers = append(teachers, teacher)
		}
	}
	slices.SortFunc(teachers, func(a, b Teacher) int { return strings.Compare(a.Id, b.Id) })
	return teachers
}

// Fits checks whether the class fits in the room
func (domain *Domain) Fits(class ClassSection, room Room) bool {
	return room.Capacity == 0 || class.Students <= room.Capacity
}

// Suits checks whether the room satisfies the subject's special-room requirement
func (domain *Domain) Suits(subject Subject, room Room) bool {
	return subject.RoomKind == "" || strings.EqualFold(subject.RoomKind, room.Kind)
}

// SuitableRooms returns rooms meeting the subject's requirement and the class size, smallest first
func (domain *Domain) SuitableRooms(subjectId, classId string) []Room {
	subject, ok := domain.Subject(subjectId)
	if !ok {
		return nil
	}
	class, ok := domain.Class(classId)
	if !ok {
		return nil
	}
	rooms := make([]Room, 0)
	for _, room := range domain.Rooms {
		if domain.Suits(subject, room) && domain.Fits(class, room) {
			rooms = append(rooms, room)
		}
	}
	slices.SortStableFunc(rooms, func(a, b Room) int {
		if a.Capacity != b.Capacity {
			return a.Capacity - b.Capacity
		}
		return strings.Compare(a.Id, b.Id)
	})
	return rooms
}

// Requirements returns the class's curriculum with resolved period counts; entries with zero periods are dropped
func (domain *Domain) Requirements(class string) []Requirement {
	return domain.requirements[class]
}

// RequiredPeriods returns how many weekly periods the class needs for the subject
func (domain *Domain) RequiredPeriods(class, subject string) int {
	for _, requirement := range domain.requirements[class] {
		if requirement.Subject == subject {
			return requirement.Periods
		}
	}
	return 0
}

func (domain *Domain) TotalRequiredPeriods() int {
	total := 0
	for _, requirements := range domain.requirements {
		for _, requirement := range requirements {
			total += requirement.Periods
		}
	}
	return total
}

// TotalTeacherHours sums the weekly caps of capped teachers
func (domain *Domain) TotalTeacherHours() int {
	total := 0
	for _, teacher := range domain.Teachers {
		total += teacher.MaxWeeklyHours
	}
	return total
}

// Raw returns the input the domain was built from
func (domain *Domain) Raw() RawDomain {
	return RawDomain{
		PeriodsPerDay: domain.PeriodsPerDay,
		PeriodMinutes: domain.PeriodMinutes,
		Breaks:        slices.Clone(domain.Breaks),
		Subjects:      slices.Clone(domain.Subjects),
		Teachers:      slices.Clone(domain.Teachers),
		Classes:       slices.Clone(domain.Classes),
		Rooms:         slices.Clone(domain.Rooms),
	}
}
