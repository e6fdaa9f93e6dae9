package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

// Params is the resolved, strongly typed parameter set of one rule
type Params interface {
	TemplateId() string
}

// MaxDailyHours caps the periods a teacher teaches per day; an empty Teacher applies to every teacher
type MaxDailyHours struct {
	MaxHours int
	Teacher  string
}

// TeacherAvailability keeps a teacher free at one slot
type TeacherAvailability struct {
	Teacher string
	Slot    model.Slot
}

type SpacingUnit string

const (
	SpacingPeriods SpacingUnit = "periods"
	SpacingDays    SpacingUnit = "days"
)

// SubjectSpacing requires MinGap free periods (or days) between two lessons of the subject for a class
type SubjectSpacing struct {
	Subject string
	MinGap  int
	Unit    SpacingUnit
}

// ConsecutivePeriods requires the subject's lessons of a class to come in runs of at least Count periods
type ConsecutivePeriods struct {
	Subject string
	Count   int
	SameDay bool
}

type NoFirstPeriod struct {
	Subject string
	Days    []model.Day
}

// SubjectInPeriod holds when the subject is taught at Period on any of Days
type SubjectInPeriod struct {
	Subject string
	Period  int
	Days    []model.Day
}

// TeacherBreak requires MinPeriods free periods between two lessons of the same teacher on a day
type TeacherBreak struct {
	Teacher    string
	MinPeriods int
}

// LabBooking requires every lesson of the subject to use the lab, in runs of Duration periods
type LabBooking struct {
	Room     string
	Subject  string
	Duration int
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (priority Priority) Rank() int {
	switch priority {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	}
	return 0
}

// ClassPriority is a scheduling hint for the generator and always holds
type ClassPriority struct {
	Class    string
	Priority Priority
	Reason   string
}

func (MaxDailyHours) TemplateId() string { return MaxDailyHoursTemplate }
func (TeacherAvailability) TemplateId() string { return TeacherAvailabilityTemplate }
func (SubjectSpacing) TemplateId() string { return SubjectSpacingTemplate }
func (ConsecutivePeriods) TemplateId() string { return ConsecutivePeriodsTemplate }
func (NoFirstPeriod) TemplateId() string { return NoFirstPeriodTemplate }
func (SubjectInPeriod) TemplateId() string { return SubjectInPeriodTemplate }
func (TeacherBreak) TemplateId() string { return TeacherBreakTemplate }
func (LabBooking) TemplateId() string { return LabBookingTemplate }
func (ClassPriority) TemplateId() string { return ClassPriorityTemplate }

var decoders = map[string]func(reader *paramReader) Params{
	MaxDailyHoursTemplate: func(reader *paramReader) Params {
		params := MaxDailyHours{MaxHours: reader.integer("Max Hours")}
		teacher := reader.entity("Teacher")
		if reader.enum("Apply To") == "Specific Teacher" {
			if teacher == "" {
				reader.fail("Teacher", CodeMalformedParameter, "a teacher is required when the rule applies to a specific teacher")
			}
			params.Teacher = teacher
		}
		return params
	},
	TeacherAvailabilityTemplate: func(reader *paramReader) Params {
		return TeacherAvailability{
			Teacher: reader.entity("Teacher"),
			Slot: model.Slot{
				Day:    reader.day("Day"),
				Period: reader.period("Time Slot"),
			},
		}
	},
	SubjectSpacingTemplate: func(reader *paramReader) Params {
		params := SubjectSpacing{
			Subject: reader.entity("Subject"),
			MinGap:  reader.integer("Min Gap"),
			Unit:    SpacingPeriods,
		}
		switch reader.enum("Unit") {
		case "Hours":
			params.MinGap = reader.minutesToPeriods(params.MinGap * 60)
		case "Days":
			params.Unit = SpacingDays
		}
		return params
	},
	ConsecutivePeriodsTemplate: func(reader *paramReader) Params {
		return ConsecutivePeriods{
			Subject: reader.entity("Subject"),
			Count:   reader.integer("Count"),
			SameDay: reader.boolean("Same Day"),
		}
	},
	NoFirstPeriodTemplate: func(reader *paramReader) Params {
		return NoFirstPeriod{
			Subject: reader.entity("Subject"),
			Days:    reader.days("Days"),
		}
	},
	SubjectInPeriodTemplate: func(reader *paramReader) Params {
		return SubjectInPeriod{
			Subject: reader.entity("Subject"),
			Period:  reader.period("Period"),
			Days:    reader.days("Days"),
		}
	},
	TeacherBreakTemplate: func(reader *paramReader) Params {
		params := TeacherBreak{
			Teacher:    reader.entity("Teacher"),
			MinPeriods: reader.integer("Min Break"),
		}
		if reader.enum("Unit") == "Minutes" {
			params.MinPeriods = reader.minutesToPeriods(params.MinPeriods)
		}
		return params
	},
	LabBookingTemplate: func(reader *paramReader) Params {
		return LabBooking{
			Room:     reader.entity("Lab"),
			Subject:  reader.entity("Subject"),
			Duration: reader.integer("Duration"),
		}
	},
	ClassPriorityTemplate: func(reader *paramReader) Params {
		return ClassPriority{
			Class:    reader.entity("Class"),
			Priority: Priority(reader.enum("Priority")),
			Reason:   reader.text("Reason"),
		}
	},
}

// resolveParams turns the rule's loosely typed parameters into the template's Params; every problem found is
// reported, never a raw conversion error
func resolveParams(rule Rule, template Template, domain *model.Domain) (Params, []ConfigError) {
	reader := &paramReader{rule: rule, template: template, domain: domain}
	params := decoders[template.Id](reader)
	if len(reader.errs) > 0 {
		return nil, reader.errs
	}
	return params, nil
}

type paramReader struct {
	rule     Rule
	template Template
	domain   *model.Domain
	errs     []ConfigError
}

func (reader *paramReader) fail(label string, code ErrorCode, format string, args ...any) {
	reader.errs = append(reader.errs, ConfigError{
		Rule:    reader.rule.Id,
		Param:   label,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// value returns the raw value or the ParamSpec default; ok is false when neither is present
func (reader *paramReader) value(label string) (value any, spec ParamSpec, ok bool) {
	spec, found := reader.template.Param(label)
	if !found {
		panic(fmt.Sprintf("template %v has no parameter %q", reader.template.Id, label))
	}

	value, present := reader.rule.Param(label)
	if present && !blank(value) {
		return value, spec, true
	}
	if spec.Default != nil {
		return spec.Default, spec, true
	}
	if !spec.Optional {
		reader.fail(label, CodeMalformedParameter, "missing required parameter")
	}
	return nil, spec, false
}

func (reader *paramReader) integer(label string) int {
	value, spec, ok := reader.value(label)
	if !ok {
		return 0
	}

	if text, isText := value.(string); isText {
		value = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(text)), "period"))
	}
	var number int
	if !numeric(value) {
		reader.fail(label, CodeMalformedParameter, "expected an integer, got %v", value)
		return 0
	}
	if err := mapstructure.WeakDecode(value, &number); err != nil {
		reader.fail(label, CodeMalformedParameter, "expected an integer, got %v", value)
		return 0
	}
	if floating, isFloat := value.(float64); isFloat && floating != math.Trunc(floating) {
		reader.fail(label, CodeMalformedParameter, "expected an integer, got %v", value)
		return 0
	}

	if number < spec.Min || (spec.Max > 0 && number > spec.Max) {
		reader.fail(label, CodeOutOfRange, "%v lies outside the allowed range", number)
		return 0
	}
	return number
}

// period reads a one-based period and returns it zero-based
func (reader *paramReader) period(label string) int {
	period := reader.integer(label)
	if period == 0 {
		return 0
	}
	if period > reader.domain.PeriodsPerDay {
		reader.fail(label, CodeOutOfRange, "period %v exceeds the %v periods of a day", period, reader.domain.PeriodsPerDay)
		return 0
	}
	return period - 1
}

func (reader *paramReader) minutesToPeriods(minutes int) int {
	return int(math.Ceil(float64(minutes) / float64(reader.domain.PeriodMinutes)))
}

func (reader *paramReader) boolean(label string) bool {
	value, _, ok := reader.value(label)
	if !ok {
		return false
	}
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "yes":
			return true
		case "false", "no":
			return false
		}
	}
	reader.fail(label, CodeMalformedParameter, "expected a boolean, got %v", value)
	return false
}

// numeric accepts numbers and decimal strings; booleans, lists and maps are malformed integers
func numeric(value any) bool {
	switch typed := value.(type) {
	case json.Number:
		return true
	case string:
		_, err := strconv.ParseFloat(typed, 64)
		return err == nil
	default:
		switch reflect.ValueOf(value).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		}
		return false
	}
}

func (reader *paramReader) text(label string) string {
	value, _, ok := reader.value(label)
	if !ok {
		return ""
	}
	return fmt.Sprint(value)
}

// enum returns the canonical option matching the value
func (reader *paramReader) enum(label string) string {
	value, spec, ok := reader.value(label)
	if !ok {
		return ""
	}
	text, isText := value.(string)
	if !isText {
		reader.fail(label, CodeMalformedParameter, "expected one of %v, got %v", spec.Options, value)
		return ""
	}
	option, found := lo.Find(spec.Options, func(option string) bool { return strings.EqualFold(option, strings.TrimSpace(text)) })
	if !found {
		reader.fail(label, CodeMalformedParameter, "expected one of %v, got %q", spec.Options, text)
		return ""
	}
	return option
}

func (reader *paramReader) day(label string) model.Day {
	option := reader.enum(label)
	if option == "" {
		return 0
	}
	day, _ := model.ParseDay(option)
	return day
}

// days reads a set of day names, given as a list or a comma separated string; an empty set means every day
func (reader *paramReader) days(label string) []model.Day {
	value, spec, ok := reader.value(label)
	if !ok {
		return slices.Clone(model.Days)
	}

	var names []string
	switch typed := value.(type) {
	case string:
		names = strings.Split(typed, ",")
	default:
		if err := mapstructure.WeakDecode(value, &names); err != nil {
			reader.fail(label, CodeMalformedParameter, "expected a list of %v, got %v", spec.Options, value)
			return nil
		}
	}

	days := make([]model.Day, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		day, err := model.ParseDay(name)
		if err != nil {
			reader.fail(label, CodeMalformedParameter, "expected a list of %v, got %q", spec.Options, name)
			continue
		}
		days = append(days, day)
	}
	if len(days) == 0 {
		return slices.Clone(model.Days)
	}
	slices.Sort(days)
	return slices.Compact(days)
}

// entity resolves a reference given by id or, as the builder's selects do, by name
func (reader *paramReader) entity(label string) string {
	value, spec, ok := reader.value(label)
	if !ok {
		return ""
	}
	reference, isText := value.(string)
	if !isText {
		reader.fail(label, CodeMalformedParameter, "expected a %v reference, got %v", spec.Entity, value)
		return ""
	}
	reference = strings.TrimSpace(reference)

	id, found := lookupEntity(reader.domain, spec.Entity, reference)
	if !found {
		reader.fail(label, CodeDanglingReference, "%v %q does not exist", spec.Entity, reference)
		return ""
	}
	return id
}

func lookupEntity(domain *model.Domain, kind EntityKind, reference string) (string, bool) {
	type entity struct{ id, name string }
	var entities []entity
	switch kind {
	case TeacherEntity:
		entities = lo.Map(domain.Teachers, func(teacher model.Teacher, _ int) entity { return entity{teacher.Id, teacher.Name} })
	case ClassEntity:
		entities = lo.Map(domain.Classes, func(class model.ClassSection, _ int) entity { return entity{class.Id, class.Name} })
	case SubjectEntity:
		entities = lo.Map(domain.Subjects, func(subject model.Subject, _ int) entity { return entity{subject.Id, subject.Name} })
	case RoomEntity:
		entities = lo.Map(domain.Rooms, func(room model.Room, _ int) entity { return entity{room.Id, room.Name} })
	}

	if found, ok := lo.Find(entities, func(e entity) bool { return e.id == reference }); ok {
		return found.id, true
	}
	if found, ok := lo.Find(entities, func(e entity) bool { return strings.EqualFold(e.name, reference) }); ok {
		return found.id, true
	}
	return "", false
}

func blank(value any) bool {
	if value == nil {
		return true
	}
	if text, ok := value.(string); ok {
		return strings.TrimSpace(text) == ""
	}
	return false
}

func equalLabels(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
