package evaluator

import (
	"errors"
	"testing"

	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/rules"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDomain(t *testing.T) *model.Domain {
	t.Helper()
	domain, err := model.NewDomain(model.RawDomain{
		PeriodsPerDay: 6,
		Breaks:        []model.Slot{{Day: model.Monday, Period: 3}},
		Subjects: []model.Subject{
			{Id: "math", Name: "Mathematics", Category: model.CategoryCore, WeeklyPeriods: 4},
			{Id: "pe", Name: "Physical Education", Category: model.CategoryPhysical, WeeklyPeriods: 2, RoomKind: "gym"},
			{Id: "science", Name: "Science", Category: model.CategoryScience, WeeklyPeriods: 2, RoomKind: "lab"},
			{Id: "art", Name: "Art", Category: model.CategoryArts, WeeklyPeriods: 1},
		},
		Teachers: []model.Teacher{
			{Id: "smith", Name: "Ms. Smith", MaxWeeklyHours: 10, Subjects: []string{"math"}},
			{Id: "davis", Name: "Ms. Davis", MaxWeeklyHours: 10, Subjects: []string{"pe", "art"}},
			{Id: "brown", Name: "Dr. Brown", MaxWeeklyHours: 3, Subjects: []string{"science"}, Unavailable: []model.Slot{{Day: model.Tuesday, Period: 0}}},
			{Id: "wilson", Name: "Mr. Wilson", Subjects: []string{"math", "science"}},
		},
		Classes: []model.ClassSection{
			{Id: "7A", Name: "7A", Students: 20, Requirements: []model.Requirement{{Subject: "math"}, {Subject: "pe"}, {Subject: "science"}, {Subject: "art"}}},
			{Id: "7B", Name: "7B", Students: 35, Requirements: []model.Requirement{{Subject: "math"}}},
		},
		Rooms: []model.Room{
			{Id: "r1", Name: "Room 1", Kind: "classroom", Capacity: 30},
			{Id: "r2", Name: "Room 2", Kind: "classroom", Capacity: 40},
			{Id: "gym", Name: "Gym", Kind: "gym", Capacity: 60},
			{Id: "lab", Name: "Lab", Kind: "lab", Capacity: 25},
		},
	})
	require.NoError(t, err)
	return domain
}

func at(class, subject, teacher, room string, day model.Day, period int) model.Assignment {
	return model.Assignment{Class: class, Subject: subject, Teacher: teacher, Room: room, Slot: model.Slot{Day: day, Period: period}}
}

func compile(t *testing.T, domain *model.Domain, graph rules.Graph) *rules.Program {
	t.Helper()
	program, err := rules.Compile(graph, domain)
	require.NoError(t, err)
	return program
}

func single(id, template string, parameters ...rules.Parameter) rules.Graph {
	return rules.Graph{Rules: []rules.Rule{{Id: id, Name: id, Template: template, Parameters: parameters}}}
}

func p(label string, value any) rules.Parameter {
	return rules.Parameter{Label: label, Value: value}
}

func ruleIds(violations []Violation) []string {
	return lo.Map(violations, func(violation Violation, _ int) string { return violation.Rule })
}

// cleanGrid satisfies every hard constraint and built-in check of testDomain
func cleanGrid() model.Grid {
	return model.NewGrid([]model.Assignment{
		at("7A", "math", "smith", "r1", model.Monday, 0),
		at("7A", "math", "smith", "r1", model.Tuesday, 0),
		at("7A", "pe", "davis", "gym", model.Monday, 1),
		at("7A", "science", "brown", "lab", model.Wednesday, 1),
		at("7A", "science", "brown", "lab", model.Wednesday, 2),
		at("7A", "art", "davis", "r1", model.Thursday, 4),
		at("7B", "math", "wilson", "r2", model.Monday, 0),
	})
}

func TestEvaluateCleanGrid(t *testing.T) {
	//** Arrange
	domain := testDomain(t)

	//** Act
	report := New(nil, domain).Report(cleanGrid())

	//** Assert
	assert.Empty(t, report.Violations)
	assert.Equal(t, 1.0, report.Satisfaction)
	assert.Zero(t, report.Weighted)
	assert.Positive(t, report.MaxWeighted)
}

func TestEvaluateHardConstraints(t *testing.T) {
	//** Arrange
	domain := testDomain(t)
	grid := model.NewGrid([]model.Assignment{
		at("7A", "math", "smith", "r1", model.Monday, 0),
		at("7B", "math", "smith", "r1", model.Monday, 0),
		at("7A", "art", "davis", "r2", model.Monday, 3),
		at("7A", "latin", "davis", "r2", model.Friday, 0),
	})

	//** Act
	violations := Evaluate(grid, nil, domain)

	//** Assert
	hard := lo.Filter(violations, func(violation Violation, _ int) bool { return violation.Hard })
	assert.Equal(t, []string{BreakSlot, RoomDoubleBooking, TeacherDoubleBooking, UnknownReference}, ruleIds(hard))
	assert.True(t, lo.EveryBy(hard, func(violation Violation) bool { return violation.Severity == rules.SeverityHigh }))
	assert.Contains(t, hard[3].Description, `subject "latin"`)
}

func TestEvaluateBuiltinChecks(t *testing.T) {
	//** Arrange
	domain := testDomain(t)
	// Brown is unavailable on Tuesday's first period and capped at 3 periods, Smith does not teach PE, the PE
	// lesson is outside the gym and 7B does not fit in r1
	grid := model.NewGrid([]model.Assignment{
		at("7A", "science", "brown", "lab", model.Tuesday, 0),
		at("7A", "science", "brown", "lab", model.Tuesday, 1),
		at("7A", "science", "brown", "lab", model.Tuesday, 2),
		at("7A", "science", "brown", "lab", model.Tuesday, 4),
		at("7A", "pe", "smith", "r1", model.Friday, 0),
		at("7B", "math", "smith", "r1", model.Friday, 1),
	})

	//** Act
	violations := Evaluate(grid, nil, domain)

	//** Assert
	assert.Equal(t, []string{
		TeacherOverload,
		TeacherUnavailable,
		TeacherUnqualified,
		RoomCapacity,
		RoomKindMismatch,
	}, ruleIds(violations))
	assert.Len(t, violations[0].Assignments, 4)
	assert.Equal(t, rules.SeverityMedium, violations[3].Severity)
}

func TestPredicates(t *testing.T) {
	domain := testDomain(t)

	tests := []struct {
		name       string
		graph      rules.Graph
		grid       []model.Assignment
		violations int
	}{
		{
			name:  "Max daily hours exceeded",
			graph: single("max", rules.MaxDailyHoursTemplate, p("Max Hours", 1)),
			grid: []model.Assignment{
				at("7A", "math", "smith", "r1", model.Monday, 0),
				at("7B", "math", "smith", "r2", model.Monday, 1),
			},
			violations: 1,
		},
		{
			name:  "Max daily hours for another teacher",
			graph: single("max", rules.MaxDailyHoursTemplate, p("Max Hours", 1), p("Apply To", "Specific Teacher"), p("Teacher", "davis")),
			grid: []model.Assignment{
				at("7A", "math", "smith", "r1", model.Monday, 0),
				at("7B", "math", "smith", "r2", model.Monday, 1),
			},
			violations: 0,
		},
		{
			name:       "Teacher kept free",
			graph:      single("free", rules.TeacherAvailabilityTemplate, p("Teacher", "smith"), p("Day", "Monday"), p("Time Slot", 1)),
			grid:       []model.Assignment{at("7A", "math", "smith", "r1", model.Monday, 0)},
			violations: 1,
		},
		{
			name:  "Subject spacing in periods",
			graph: single("spacing", rules.SubjectSpacingTemplate, p("Subject", "math"), p("Min Gap", 1)),
			grid: []model.Assignment{
				at("7A", "math", "smith", "r1", model.Monday, 0),
				at("7A", "math", "smith", "r1", model.Monday, 1),
				at("7A", "math", "smith", "r1", model.Monday, 4),
				at("7A", "math", "smith", "r1", model.Tuesday, 0),
			},
			violations: 1,
		},
		{
			name:  "Subject spacing in days",
			graph: single("spacing", rules.SubjectSpacingTemplate, p("Subject", "math"), p("Min Gap", 1), p("Unit", "Days")),
			grid: []model.Assignment{
				at("7A", "math", "smith", "r1", model.Monday, 0),
				at("7A", "math", "smith", "r1", model.Tuesday, 0),
				at("7A", "math", "smith", "r1", model.Thursday, 0),
			},
			violations: 1,
		},
		{
			name:  "Consecutive periods on the same day",
			graph: single("double", rules.ConsecutivePeriodsTemplate, p("Subject", "science"), p("Count", 2)),
			grid: []model.Assignment{
				at("7A", "science", "brown", "lab", model.Monday, 5),
				at("7A", "science", "brown", "lab", model.Tuesday, 0),
			},
			violations: 2,
		},
		{
			name:  "Consecutive periods across days",
			graph: single("double", rules.ConsecutivePeriodsTemplate, p("Subject", "science"), p("Count", 2), p("Same Day", false)),
			grid: []model.Assignment{
				at("7A", "science", "brown", "lab", model.Monday, 5),
				at("7A", "science", "brown", "lab", model.Tuesday, 0),
			},
			violations: 0,
		},
		{
			name:  "No first period on selected days",
			graph: single("late", rules.NoFirstPeriodTemplate, p("Subject", "pe"), p("Days", []any{"Monday"})),
			grid: []model.Assignment{
				at("7A", "pe", "davis", "gym", model.Monday, 0),
				at("7A", "pe", "davis", "gym", model.Tuesday, 0),
			},
			violations: 1,
		},
		{
			name:  "Teacher break",
			graph: single("rest", rules.TeacherBreakTemplate, p("Teacher", "smith"), p("Min Break", 1), p("Unit", "Periods")),
			grid: []model.Assignment{
				at("7A", "math", "smith", "r1", model.Monday, 0),
				at("7B", "math", "smith", "r2", model.Monday, 1),
				at("7B", "math", "smith", "r2", model.Monday, 4),
			},
			violations: 1,
		},
		{
			name:  "Lab booking outside the lab and too short",
			graph: single("lab", rules.LabBookingTemplate, p("Lab", "lab"), p("Subject", "science"), p("Duration", 2)),
			grid: []model.Assignment{
				at("7A", "science", "brown", "r1", model.Monday, 0),
				at("7A", "science", "brown", "lab", model.Tuesday, 1),
			},
			violations: 2,
		},
		{
			name:       "Class priority always holds",
			graph:      single("vip", rules.ClassPriorityTemplate, p("Class", "7A"), p("Priority", "High")),
			grid:       []model.Assignment{at("7A", "math", "smith", "r1", model.Monday, 0)},
			violations: 0,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			//** Arrange
			program := compile(t, domain, test.graph)
			rule := test.graph.Rules[0].Id

			//** Act
			violations := Evaluate(model.NewGrid(test.grid), program, domain)

			//** Assert
			ruled := lo.Filter(violations, func(violation Violation, _ int) bool { return violation.Rule == rule })
			assert.Len(t, ruled, test.violations)
		})
	}
}

func TestNegatedSubjectInPeriod(t *testing.T) {
	//** Arrange
	domain := testDomain(t)
	graph := rules.Graph{
		Rules: []rules.Rule{
			{Id: "anchor", Template: rules.ClassPriorityTemplate, Parameters: []rules.Parameter{p("Class", "7A")}},
			{Id: "pe-first", Template: rules.SubjectInPeriodTemplate, Parameters: []rules.Parameter{p("Subject", "pe"), p("Period", 1)}},
		},
		Connections: []rules.Connection{{Id: "c1", From: "anchor", To: "pe-first", Operator: rules.Not}},
	}
	program := compile(t, domain, graph)

	t.Run("PE in period 1 violates", func(t *testing.T) {
		grid := model.NewGrid([]model.Assignment{at("7A", "pe", "davis", "gym", model.Wednesday, 0)})

		violations := Evaluate(grid, program, domain)

		require.Len(t, violations, 1)
		assert.Equal(t, "pe-first", violations[0].Rule)
		assert.Equal(t, grid.Assignments(), violations[0].Assignments)
	})

	t.Run("PE elsewhere holds", func(t *testing.T) {
		grid := model.NewGrid([]model.Assignment{at("7A", "pe", "davis", "gym", model.Wednesday, 1)})

		violations := Evaluate(grid, program, domain)

		assert.Empty(t, violations)
	})
}

func TestComposition(t *testing.T) {
	domain := testDomain(t)
	graph := rules.Graph{
		Rules: []rules.Rule{
			{Id: "a", Template: rules.NoFirstPeriodTemplate, Parameters: []rules.Parameter{p("Subject", "pe")}},
			{Id: "b", Template: rules.NoFirstPeriodTemplate, Parameters: []rules.Parameter{p("Subject", "art")}},
		},
	}
	peFirst := at("7A", "pe", "davis", "gym", model.Monday, 0)
	artFirst := at("7A", "art", "davis", "r1", model.Tuesday, 0)

	t.Run("OR fails only when both sides fail", func(t *testing.T) {
		graph.Connections = []rules.Connection{{Id: "c1", From: "a", To: "b", Operator: rules.Or}}
		program := compile(t, domain, graph)

		assert.Empty(t, Evaluate(model.NewGrid([]model.Assignment{peFirst}), program, domain))
		assert.Equal(t, []string{"a", "b"}, ruleIds(Evaluate(model.NewGrid([]model.Assignment{peFirst, artFirst}), program, domain)))
	})

	t.Run("AND fails when either side fails", func(t *testing.T) {
		graph.Connections = []rules.Connection{{Id: "c1", From: "a", To: "b", Operator: rules.And}}
		program := compile(t, domain, graph)

		assert.Equal(t, []string{"b"}, ruleIds(Evaluate(model.NewGrid([]model.Assignment{artFirst}), program, domain)))
	})

	t.Run("Unconnected rules are roots", func(t *testing.T) {
		graph.Connections = nil
		program := compile(t, domain, graph)

		assert.Equal(t, []string{"a"}, ruleIds(Evaluate(model.NewGrid([]model.Assignment{peFirst}), program, domain)))
	})
}

func TestEvaluateDeterminism(t *testing.T) {
	//** Arrange
	domain := testDomain(t)
	program := compile(t, domain, rules.Graph{Rules: []rules.Rule{
		{Id: "late", Template: rules.NoFirstPeriodTemplate, Parameters: []rules.Parameter{p("Subject", "math")}},
		{Id: "max", Template: rules.MaxDailyHoursTemplate, Parameters: []rules.Parameter{p("Max Hours", 1)}},
	}})
	grid := model.NewGrid([]model.Assignment{
		at("7A", "math", "smith", "r1", model.Monday, 0),
		at("7B", "math", "smith", "r2", model.Monday, 1),
		at("7B", "math", "smith", "r2", model.Monday, 2),
		at("7A", "math", "smith", "r1", model.Tuesday, 0),
		at("7B", "math", "smith", "r1", model.Tuesday, 0),
	})

	//** Act
	first := Evaluate(grid, program, domain)
	second := Evaluate(grid, program, domain)

	//** Assert
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, compareViolations(first[i-1], first[i]), 0)
	}
	assert.Equal(t, RoomDoubleBooking, first[0].Rule)
}

func TestEvaluateGraphConfigError(t *testing.T) {
	domain := testDomain(t)
	graph := single("late", rules.NoFirstPeriodTemplate, p("Subject", "latin"))

	violations, err := EvaluateGraph(cleanGrid(), graph, domain)

	assert.Nil(t, violations)
	assert.True(t, errors.Is(err, rules.ErrDanglingReference))
}

func TestProfiles(t *testing.T) {
	//** Arrange
	domain := testDomain(t)
	program := compile(t, domain, single("rest", rules.TeacherBreakTemplate, p("Min Break", 1), p("Unit", "Periods")))
	grid := model.NewGrid([]model.Assignment{
		at("7A", "math", "smith", "r1", model.Monday, 0),
		at("7B", "math", "smith", "r2", model.Monday, 1),
	})

	//** Act
	balanced := New(program, domain).Report(grid)
	teacherFirst := New(program, domain, WithProfile(ProfileTeacherPriority)).Report(grid)

	//** Assert
	assert.Equal(t, 4.0, balanced.Weighted)
	assert.Equal(t, 12.0, teacherFirst.Weighted)
	assert.Less(t, balanced.Satisfaction, 1.0)
	assert.Equal(t, balanced.Violations, teacherFirst.Violations)
	assert.True(t, ProfileTimeEfficiency.Valid())
	assert.False(t, Profile("fastest").Valid())
}

func TestViolationIdentity(t *testing.T) {
	domain := testDomain(t)
	program := compile(t, domain, single("daily", rules.MaxDailyHoursTemplate, p("Max Hours", 1)))
	three := model.NewGrid([]model.Assignment{
		at("7A", "math", "smith", "r1", model.Tuesday, 0),
		at("7B", "math", "smith", "r2", model.Tuesday, 1),
		at("7A", "math", "smith", "r1", model.Tuesday, 2),
	})
	two, err := three.Remove(at("7A", "math", "smith", "r1", model.Tuesday, 2))
	require.NoError(t, err)

	t.Run("Shrinking keeps the identity", func(t *testing.T) {
		//** Act
		before := Evaluate(three, program, domain)
		after := Evaluate(two, program, domain)

		//** Assert
		require.Len(t, before, 1)
		require.Len(t, after, 1)
		assert.NotEqual(t, before[0].Description, after[0].Description)
		assert.Equal(t, before[0].Identity(), after[0].Identity())
	})

	t.Run("Another day is another identity", func(t *testing.T) {
		moved := two.Add(at("7A", "math", "smith", "r1", model.Friday, 0), at("7B", "math", "smith", "r2", model.Friday, 1))

		violations := Evaluate(moved, program, domain)

		require.Len(t, violations, 2)
		assert.NotEqual(t, violations[0].Identity(), violations[1].Identity())
	})

	t.Run("Double booking of three lessons", func(t *testing.T) {
		booked := model.NewGrid([]model.Assignment{
			at("7A", "math", "smith", "r1", model.Monday, 0),
			at("7B", "math", "smith", "r2", model.Monday, 0),
			at("7A", "art", "smith", "gym", model.Monday, 0),
		})
		shrunk, err := booked.Remove(at("7A", "art", "smith", "gym", model.Monday, 0))
		require.NoError(t, err)

		before := lo.Filter(Evaluate(booked, &rules.Program{}, domain), func(v Violation, _ int) bool { return v.Rule == TeacherDoubleBooking })
		after := lo.Filter(Evaluate(shrunk, &rules.Program{}, domain), func(v Violation, _ int) bool { return v.Rule == TeacherDoubleBooking })

		require.Len(t, before, 1)
		require.Len(t, after, 1)
		assert.Equal(t, before[0].Identity(), after[0].Identity())
	})
}
