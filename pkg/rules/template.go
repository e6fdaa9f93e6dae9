package rules

import (
	"slices"
	"strings"
)

type Kind string

const (
	KindTime     Kind = "time"
	KindTeacher  Kind = "teacher"
	KindSubject  Kind = "subject"
	KindGrouping Kind = "grouping"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank orders severities, higher is more severe
func (severity Severity) Rank() int {
	switch severity {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

type ParamType string

const (
	Integer   ParamType = "integer"
	Enum      ParamType = "enum"
	EnumSet   ParamType = "enumSet"
	Boolean   ParamType = "boolean"
	EntityRef ParamType = "entity"
	Text      ParamType = "text"
)

type EntityKind string

const (
	TeacherEntity EntityKind = "teacher"
	ClassEntity   EntityKind = "class"
	SubjectEntity EntityKind = "subject"
	RoomEntity    EntityKind = "room"
)

type ParamSpec struct {
	Label    string     `json:"label"`
	Type     ParamType  `json:"type"`
	Entity   EntityKind `json:"entity,omitempty"`
	Options  []string   `json:"options,omitempty"`
	Min      int        `json:"min"`
	Max      int        `json:"max,omitempty"` // Zero means unbounded
	Optional bool       `json:"optional,omitempty"`
	Default  any        `json:"default,omitempty"`
}

type Template struct {
	Id          string      `json:"id"`
	Name        string      `json:"name"`
	Kind        Kind        `json:"kind"`
	Description string      `json:"description"`
	Severity    Severity    `json:"severity"`
	Params      []ParamSpec `json:"params"`
}

func (template Template) Param(label string) (ParamSpec, bool) {
	for _, spec := range template.Params {
		if strings.EqualFold(spec.Label, label) {
			return spec, true
		}
	}
	return ParamSpec{}, false
}

const (
	MaxDailyHoursTemplate       = "max-daily-hours"
	TeacherAvailabilityTemplate = "teacher-availability"
	SubjectSpacingTemplate      = "subject-spacing"
	ConsecutivePeriodsTemplate  = "consecutive-periods"
	NoFirstPeriodTemplate       = "no-first-period"
	SubjectInPeriodTemplate     = "subject-in-period"
	TeacherBreakTemplate        = "teacher-break"
	LabBookingTemplate          = "lab-booking"
	ClassPriorityTemplate       = "class-priority"
)

var dayOptions = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

var templates = []Template{
	{
		Id:          MaxDailyHoursTemplate,
		Name:        "Max Daily Hours",
		Kind:        KindTime,
		Description: "Limit maximum teaching hours per day",
		Severity:    SeverityHigh,
		Params: []ParamSpec{
			{Label: "Max Hours", Type: Integer, Min: 1, Default: 6},
			{Label: "Apply To", Type: Enum, Options: []string{"All Teachers", "Specific Teacher"}, Default: "All Teachers"},
			{Label: "Teacher", Type: EntityRef, Entity: TeacherEntity, Optional: true},
		},
	},
	{
		Id:          TeacherAvailabilityTemplate,
		Name:        "Teacher Availability",
		Kind:        KindTeacher,
		Description: "Keep a teacher free at a given day and period",
		Severity:    SeverityHigh,
		Params: []ParamSpec{
			{Label: "Teacher", Type: EntityRef, Entity: TeacherEntity},
			{Label: "Day", Type: Enum, Options: dayOptions},
			{Label: "Time Slot", Type: Integer, Min: 1},
		},
	},
	{
		Id:          SubjectSpacingTemplate,
		Name:        "Subject Spacing",
		Kind:        KindSubject,
		Description: "Minimum gap between same subject",
		Severity:    SeverityMedium,
		Params: []ParamSpec{
			{Label: "Subject", Type: EntityRef, Entity: SubjectEntity},
			{Label: "Min Gap", Type: Integer, Min: 0, Default: 1},
			{Label: "Unit", Type: Enum, Options: []string{"Periods", "Hours", "Days"}, Default: "Periods"},
		},
	},
	{
		Id:          ConsecutivePeriodsTemplate,
		Name:        "Consecutive Periods",
		Kind:        KindGrouping,
		Description: "Group periods together",
		Severity:    SeverityMedium,
		Params: []ParamSpec{
			{Label: "Subject", Type: EntityRef, Entity: SubjectEntity},
			{Label: "Count", Type: Integer, Min: 2, Default: 2},
			{Label: "Same Day", Type: Boolean, Default: true},
		},
	},
	{
		Id:          NoFirstPeriodTemplate,
		Name:        "No First Period",
		Kind:        KindTime,
		Description: "Avoid scheduling in first period",
		Severity:    SeverityLow,
		Params: []ParamSpec{
			{Label: "Subject", Type: EntityRef, Entity: SubjectEntity},
			{Label: "Days", Type: EnumSet, Options: dayOptions, Optional: true},
		},
	},
	{
		Id:          SubjectInPeriodTemplate,
		Name:        "Subject In Period",
		Kind:        KindTime,
		Description: "Schedule a subject in a given period",
		Severity:    SeverityLow,
		Params: []ParamSpec{
			{Label: "Subject", Type: EntityRef, Entity: SubjectEntity},
			{Label: "Period", Type: Integer, Min: 1, Default: 1},
			{Label: "Days", Type: EnumSet, Options: dayOptions, Optional: true},
		},
	},
	{
		Id:          TeacherBreakTemplate,
		Name:        "Teacher Break",
		Kind:        KindTeacher,
		Description: "Ensure minimum break time",
		Severity:    SeverityMedium,
		Params: []ParamSpec{
			{Label: "Teacher", Type: EntityRef, Entity: TeacherEntity, Optional: true},
			{Label: "Min Break", Type: Integer, Min: 0, Default: 30},
			{Label: "Unit", Type: Enum, Options: []string{"Minutes", "Periods"}, Default: "Minutes"},
		},
	},
	{
		Id:          LabBookingTemplate,
		Name:        "Lab Booking",
		Kind:        KindSubject,
		Description: "Reserve a lab for consecutive periods",
		Severity:    SeverityHigh,
		Params: []ParamSpec{
			{Label: "Lab", Type: EntityRef, Entity: RoomEntity},
			{Label: "Subject", Type: EntityRef, Entity: SubjectEntity},
			{Label: "Duration", Type: Integer, Min: 1, Default: 2},
		},
	},
	{
		Id:          ClassPriorityTemplate,
		Name:        "Class Priority",
		Kind:        KindGrouping,
		Description: "Schedule a class before the others",
		Severity:    SeverityLow,
		Params: []ParamSpec{
			{Label: "Class", Type: EntityRef, Entity: ClassEntity},
			{Label: "Priority", Type: Enum, Options: []string{"High", "Medium", "Low"}, Default: "Medium"},
			{Label: "Reason", Type: Text, Optional: true},
		},
	},
}

// Templates returns the rule library
func Templates() []Template {
	return slices.Clone(templates)
}

func TemplateById(id string) (Template, bool) {
	index := slices.IndexFunc(templates, func(template Template) bool { return template.Id == id })
	if index < 0 {
		return Template{}, false
	}
	return templates[index], true
}

func TemplateByName(name string) (Template, bool) {
	index := slices.IndexFunc(templates, func(template Template) bool { return strings.EqualFold(template.Name, name) })
	if index < 0 {
		return Template{}, false
	}
	return templates[index], true
}
