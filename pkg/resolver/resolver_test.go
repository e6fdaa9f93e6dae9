package resolver

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/limaJavier/timetable-engine/pkg/evaluator"
	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/rules"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDomain(t *testing.T) *model.Domain {
	t.Helper()
	domain, err := model.NewDomain(model.RawDomain{
		PeriodsPerDay: 4,
		Breaks:        []model.Slot{{Day: model.Monday, Period: 2}},
		Subjects: []model.Subject{
			{Id: "math", Name: "Mathematics", Category: model.CategoryCore, WeeklyPeriods: 3},
			{Id: "science", Name: "Science", Category: model.CategoryScience, WeeklyPeriods: 2, RoomKind: "lab"},
		},
		Teachers: []model.Teacher{
			{Id: "smith", Name: "Ms. Smith", MaxWeeklyHours: 10, Subjects: []string{"math"}},
			{Id: "wilson", Name: "Mr. Wilson", MaxWeeklyHours: 10, Subjects: []string{"math"}},
			{Id: "brown", Name: "Dr. Brown", MaxWeeklyHours: 2, Subjects: []string{"science"}, Unavailable: []model.Slot{{Day: model.Tuesday, Period: 0}}},
		},
		Classes: []model.ClassSection{
			{Id: "7A", Students: 20, Requirements: []model.Requirement{{Subject: "math"}, {Subject: "science"}}},
			{Id: "7B", Students: 20, Requirements: []model.Requirement{{Subject: "math"}}},
		},
		Rooms: []model.Room{
			{Id: "r1", Kind: "classroom", Capacity: 30},
			{Id: "r2", Kind: "classroom", Capacity: 30},
			{Id: "lab", Kind: "lab", Capacity: 25},
		},
	})
	require.NoError(t, err)
	return domain
}

func at(class, subject, teacher, room string, day model.Day, period int) model.Assignment {
	return model.Assignment{Class: class, Subject: subject, Teacher: teacher, Room: room, Slot: model.Slot{Day: day, Period: period}}
}

func violation(t *testing.T, violations []evaluator.Violation, rule string) evaluator.Violation {
	t.Helper()
	found, ok := lo.Find(violations, func(violation evaluator.Violation) bool { return violation.Rule == rule })
	require.True(t, ok, "no %v violation in %v", rule, violations)
	return found
}

// assertSound checks that every suggestion applies cleanly and leaves no hard conflict behind
func assertSound(t *testing.T, resolver *Resolver, grid model.Grid, suggestions []Suggestion) {
	t.Helper()
	for _, suggestion := range suggestions {
		assert.Equal(t, grid.Version(), suggestion.Base)
		assert.GreaterOrEqual(t, suggestion.Confidence, 0)
		assert.LessOrEqual(t, suggestion.Confidence, 100)

		next, err := resolver.Apply(grid, suggestion)
		require.NoError(t, err, suggestion.Description)
		assert.Empty(t, lo.Filter(next.HardConflicts(), func(conflict model.Conflict, _ int) bool {
			return slices.Contains(conflict.Assignments, suggestion.To)
		}), suggestion.Description)
		assert.True(t, next.Contains(suggestion.To))
		assert.False(t, next.Contains(suggestion.From))
	}
	assert.True(t, slices.IsSortedFunc(suggestions, compareSuggestions))
}

func TestProposeTeacherDoubleBooking(t *testing.T) {
	//** Arrange
	domain := testDomain(t)
	resolver := New(domain, WithLimit(0))
	grid := model.NewGrid([]model.Assignment{
		at("7A", "math", "smith", "r1", model.Monday, 0),
		at("7B", "math", "smith", "r2", model.Monday, 0),
	})
	target := violation(t, resolver.evaluator.Evaluate(grid), evaluator.TeacherDoubleBooking)

	//** Act
	suggestions := resolver.Propose(target, grid)

	//** Assert
	require.NotEmpty(t, suggestions)
	assertSound(t, resolver, grid, suggestions)

	types := lo.Uniq(lo.Map(suggestions, func(suggestion Suggestion, _ int) Type { return suggestion.Type }))
	assert.ElementsMatch(t, []Type{Reschedule, Substitute}, types)

	for _, suggestion := range suggestions {
		assert.GreaterOrEqual(t, suggestion.Resolved, 1, suggestion.Description)
		if suggestion.Type == Substitute {
			assert.Equal(t, "wilson", suggestion.To.Teacher)
			assert.Equal(t, suggestion.From.Slot, suggestion.To.Slot)
		}
	}

	t.Run("Reschedule picks the nearest free slot", func(t *testing.T) {
		reschedule, ok := lo.Find(suggestions, func(suggestion Suggestion) bool {
			return suggestion.Type == Reschedule && suggestion.From.Class == "7A"
		})
		require.True(t, ok)
		assert.Equal(t, model.Slot{Day: model.Monday, Period: 1}, reschedule.To.Slot)
		assert.Equal(t, "r1", reschedule.To.Room)
	})

	t.Run("Proposals are deterministic", func(t *testing.T) {
		assert.Equal(t, suggestions, resolver.Propose(target, grid))
	})
}

func TestProposeRooms(t *testing.T) {
	domain := testDomain(t)
	resolver := New(domain, WithLimit(0))

	t.Run("Room double booking", func(t *testing.T) {
		//** Arrange
		grid := model.NewGrid([]model.Assignment{
			at("7A", "math", "smith", "r1", model.Monday, 0),
			at("7B", "math", "wilson", "r1", model.Monday, 0),
		})
		target := violation(t, resolver.evaluator.Evaluate(grid), evaluator.RoomDoubleBooking)

		//** Act
		suggestions := resolver.Propose(target, grid)

		//** Assert
		require.NotEmpty(t, suggestions)
		assertSound(t, resolver, grid, suggestions)
		changes := lo.Filter(suggestions, func(suggestion Suggestion, _ int) bool { return suggestion.Type == RoomChange })
		require.NotEmpty(t, changes)
		for _, change := range changes {
			assert.NotEqual(t, "r1", change.To.Room)
			assert.Equal(t, change.From.Slot, change.To.Slot)
		}
	})

	t.Run("Room kind mismatch", func(t *testing.T) {
		//** Arrange
		grid := model.NewGrid([]model.Assignment{at("7A", "science", "brown", "r1", model.Monday, 1)})
		target := violation(t, resolver.evaluator.Evaluate(grid), evaluator.RoomKindMismatch)

		//** Act
		suggestions := resolver.Propose(target, grid)

		//** Assert
		require.Len(t, suggestions, 1)
		assert.Equal(t, RoomChange, suggestions[0].Type)
		assert.Equal(t, "lab", suggestions[0].To.Room)
		assert.Equal(t, 1, suggestions[0].Resolved)
		assert.Equal(t, 0, suggestions[0].Introduced)
		assertSound(t, resolver, grid, suggestions)
	})
}

func TestProposeSoftViolation(t *testing.T) {
	//** Arrange
	domain := testDomain(t)
	graph := rules.Graph{Rules: []rules.Rule{{
		Id:         "daily",
		Name:       "Max Daily Hours",
		Template:   rules.MaxDailyHoursTemplate,
		Parameters: []rules.Parameter{{Label: "Max Hours", Value: 1}},
	}}}
	program, err := rules.Compile(graph, domain)
	require.NoError(t, err)
	resolver := New(domain, WithProgram(program), WithLimit(0))
	grid := model.NewGrid([]model.Assignment{
		at("7A", "math", "smith", "r1", model.Monday, 0),
		at("7B", "math", "smith", "r2", model.Monday, 1),
	})
	target := violation(t, resolver.evaluator.Evaluate(grid), "daily")

	//** Act
	suggestions := resolver.Propose(target, grid)

	//** Assert
	require.NotEmpty(t, suggestions)
	assertSound(t, resolver, grid, suggestions)
	for _, suggestion := range suggestions {
		assert.Equal(t, Redistribute, suggestion.Type)
		assert.NotEqual(t, model.Monday, suggestion.To.Slot.Day)
		assert.Equal(t, 1, suggestion.Resolved)
	}

	next, err := resolver.Apply(grid, suggestions[0])
	require.NoError(t, err)
	assert.Empty(t, resolver.evaluator.Evaluate(next))
}

func TestProposeShrinksViolation(t *testing.T) {
	//** Arrange
	domain := testDomain(t)
	graph := rules.Graph{Rules: []rules.Rule{{
		Id:         "daily",
		Name:       "Max Daily Hours",
		Template:   rules.MaxDailyHoursTemplate,
		Parameters: []rules.Parameter{{Label: "Max Hours", Value: 1}},
	}}}
	program, err := rules.Compile(graph, domain)
	require.NoError(t, err)
	resolver := New(domain, WithProgram(program), WithLimit(0))
	grid := model.NewGrid([]model.Assignment{
		at("7A", "math", "smith", "r1", model.Tuesday, 0),
		at("7B", "math", "smith", "r2", model.Tuesday, 1),
		at("7A", "math", "smith", "r1", model.Tuesday, 3),
	})
	target := violation(t, resolver.evaluator.Evaluate(grid), "daily")

	//** Act
	suggestions := resolver.Propose(target, grid)

	//** Assert
	require.NotEmpty(t, suggestions)
	for _, suggestion := range suggestions {
		assert.Equal(t, 0, suggestion.Resolved, suggestion.Description)
		assert.Equal(t, 0, suggestion.Introduced, suggestion.Description)
		assert.Equal(t, "resolves 0 violation(s), introduces 0", suggestion.Impact)
		assert.LessOrEqual(t, suggestion.Confidence, 50, "a move that leaves the day over the cap earns no resolution bonus")

		next, err := resolver.Apply(grid, suggestion)
		require.NoError(t, err)
		still := lo.ContainsBy(resolver.evaluator.Evaluate(next), func(v evaluator.Violation) bool {
			return v.Identity() == target.Identity()
		})
		assert.True(t, still, "Tuesday stays over the cap after %v", suggestion.Description)
	}
}

func TestProposeNothingToMove(t *testing.T) {
	domain := testDomain(t)
	grid := model.NewGrid([]model.Assignment{at("7C", "math", "smith", "r1", model.Monday, 0)})
	target := violation(t, New(domain).evaluator.Evaluate(grid), evaluator.UnknownReference)

	assert.Empty(t, Propose(target, grid, domain))
}

func TestApply(t *testing.T) {
	//** Arrange
	domain := testDomain(t)
	resolver := New(domain)
	assignments := []model.Assignment{
		at("7A", "math", "smith", "r1", model.Monday, 0),
		at("7B", "math", "smith", "r2", model.Monday, 0),
	}
	grid := model.NewGrid(assignments)
	suggestions := resolver.Propose(violation(t, resolver.evaluator.Evaluate(grid), evaluator.TeacherDoubleBooking), grid)
	require.NotEmpty(t, suggestions)
	suggestion := suggestions[0]

	t.Run("Applied", func(t *testing.T) {
		next, err := resolver.Apply(grid, suggestion)

		require.NoError(t, err)
		assert.NotEqual(t, grid.Version(), next.Version())
		assert.Empty(t, next.HardConflicts())
		assert.Equal(t, 2, grid.Len())
		assert.True(t, grid.Contains(suggestion.From), "the original grid is untouched")
	})

	cases := map[string]struct {
		grid     model.Grid
		expected error
	}{
		"Grid version changed": {
			grid:     grid.Add(at("7A", "math", "wilson", "r2", model.Friday, 3)),
			expected: model.ErrStaleVersion,
		},
		"Source assignment gone": {
			grid:     model.RestoreGrid(grid.Version(), lo.Without(assignments, suggestion.From)),
			expected: model.ErrAssignmentNotFound,
		},
		"Target taken": {
			grid: model.RestoreGrid(grid.Version(), append(slices.Clone(assignments),
				at(suggestion.To.Class, "science", "brown", suggestion.To.Room, suggestion.To.Slot.Day, suggestion.To.Slot.Period))),
			expected: ErrWouldConflict,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := resolver.Apply(tc.grid, suggestion)

			var staleErr *StaleSuggestionError
			require.True(t, errors.As(err, &staleErr))
			assert.Equal(t, suggestion.Id, staleErr.Suggestion)
			assert.True(t, errors.Is(err, tc.expected))
		})
	}
}

func TestCommitConcurrently(t *testing.T) {
	//** Arrange
	domain := testDomain(t)
	resolver := New(domain, WithLimit(0))
	grid := model.NewGrid([]model.Assignment{
		at("7A", "math", "smith", "r1", model.Monday, 0),
		at("7B", "math", "smith", "r2", model.Monday, 0),
	})
	store := model.NewStore(grid, 0)
	suggestions := resolver.Propose(violation(t, resolver.evaluator.Evaluate(grid), evaluator.TeacherDoubleBooking), grid)
	require.GreaterOrEqual(t, len(suggestions), 2)

	//** Act
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = resolver.Commit(store, suggestions[i])
		}(i)
	}
	wg.Wait()

	//** Assert
	failed := lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	require.Len(t, failed, 1)
	var staleErr *StaleSuggestionError
	assert.True(t, errors.As(failed[0], &staleErr))
	assert.True(t, errors.Is(failed[0], model.ErrStaleVersion))

	current := store.Current()
	assert.NotEqual(t, grid.Version(), current.Version())
	assert.Empty(t, current.HardConflicts())
	revisions, position := store.Versions()
	assert.Len(t, revisions, 2)
	assert.Equal(t, 1, position)
}

func TestSuggestionIds(t *testing.T) {
	base := uuid.New()
	from := at("7A", "math", "smith", "r1", model.Monday, 0)
	to := at("7A", "math", "smith", "r1", model.Monday, 1)

	assert.Equal(t, suggestionId(base, Reschedule, from, to), suggestionId(base, Reschedule, from, to))
	assert.NotEqual(t, suggestionId(base, Reschedule, from, to), suggestionId(uuid.New(), Reschedule, from, to))
	assert.NotEqual(t, suggestionId(base, Reschedule, from, to), suggestionId(base, Redistribute, from, to))
}

func TestConfidence(t *testing.T) {
	resolving := confidence(true, 1, 0, 1, 0)
	partial := confidence(false, 1, 0, 1, 0)
	costly := confidence(true, 1, 2, 1, 0)
	far := confidence(true, 1, 0, 1, 10)

	assert.Greater(t, resolving, partial)
	assert.Greater(t, resolving, costly)
	assert.Greater(t, resolving, far)
	assert.Equal(t, 100, confidence(true, 10, 0, 1, 0))
	assert.Equal(t, 0, confidence(false, 0, 10, 0, 10))
}
