package generator

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRun(t *testing.T, domain *model.Domain) *run {
	t.Helper()
	units := expandUnits(domain, nil)
	r := &run{
		domain: domain,
		units:  units,
		order:  heuristicOrder(units),
		budget: 100,
		logger: zap.NewNop(),
	}
	return r.branch(11)
}

func TestIndexer(t *testing.T) {
	indexer := indexer{slots: 30, units: 32}
	seen := make(map[uint64]bool)

	for unit := range indexer.units {
		for slot := range indexer.slots {
			//** Act
			index := indexer.Index(unit, slot)
			gotUnit, gotSlot := indexer.Attributes(index)

			//** Assert
			assert.False(t, seen[index], "index %v is used twice", index)
			assert.GreaterOrEqual(t, index, uint64(1))
			assert.LessOrEqual(t, index, indexer.Variables())
			assert.Equal(t, unit, gotUnit)
			assert.Equal(t, slot, gotSlot)
			seen[index] = true
		}
	}
}

func TestAssignRooms(t *testing.T) {
	slot := model.Slot{Day: model.Tuesday, Period: 2}
	units := []unit{
		{class: "7A", subject: "science", rooms: []string{"lab"}},
		{class: "7B", subject: "math", rooms: []string{"r1", "lab"}},
		{class: "7C", subject: "science", rooms: []string{"lab"}},
		{class: "7D", subject: "math", rooms: []string{"r1", "r2"}},
	}

	t.Run("Complete matching", func(t *testing.T) {
		//** Act
		matches, err := assignRooms([]int{0, 1, 3}, units, slot)

		//** Assert
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, roomMatch{unit: 0, room: "lab"}, matches[0])
		assert.Equal(t, 1, matches[1].unit)
		assert.Equal(t, "r1", matches[1].room)
		assert.Equal(t, 3, matches[2].unit)
		assert.Equal(t, "r2", matches[2].room)
	})

	t.Run("Partial matching", func(t *testing.T) {
		//** Act
		matches, err := assignRooms([]int{0, 1, 2}, units, slot)

		//** Assert
		var unassignable unassignableError
		require.True(t, errors.As(err, &unassignable))
		assert.Equal(t, slot, unassignable.slot)
		assert.Len(t, matches, 2)
		rooms := make([]string, 0)
		for _, match := range matches {
			rooms = append(rooms, match.room)
		}
		assert.ElementsMatch(t, []string{"lab", "r1"}, rooms)
	})
}

func TestConstraintState(t *testing.T) {
	//** Arrange
	domain := cappedDomain(t)
	r := testRun(t, domain)

	//** Act
	state := newConstraintState(r)

	//** Assert
	allocated := 0
	for i, teacher := range state.teachers {
		if teacher == "" {
			assert.Empty(t, state.candidates[i])
			continue
		}
		allocated++
		assert.Len(t, state.candidates[i], len(domain.AssignableSlots()))
	}
	assert.Equal(t, 5, allocated, "the weekly cap bounds the allocation")

	t.Run("Clauses are built deterministically", func(t *testing.T) {
		constraints := []func(state constraintState) [][]int64{
			completenessConstraints,
			uniquenessConstraints,
			classConstraints,
			teacherConstraints,
			roomConstraints,
		}

		first, explicit := buildSat(state.indexer.Variables(), constraints, state)
		second, _ := buildSat(state.indexer.Variables(), constraints, state)

		assert.Equal(t, first, second)
		assert.Len(t, explicit, 5*len(domain.AssignableSlots()))
		assert.True(t, slices.IsSortedFunc(first.Clauses, func(a, b []int64) int { return slices.Compare(a, b) }))
	})
}

func TestCrossover(t *testing.T) {
	//** Arrange
	r := &run{rng: rand.New(rand.NewPCG(1, 2))}
	parent1 := []int{0, 1, 2, 3, 4, 5, 6, 7}
	parent2 := []int{7, 6, 5, 4, 3, 2, 1, 0}
	child := make([]int, len(parent1))
	used := make([]bool, len(parent1))

	for range 50 {
		//** Act
		crossover(r, parent1, parent2, child, used)

		//** Assert
		sorted := slices.Clone(child)
		slices.Sort(sorted)
		assert.Equal(t, parent1, sorted, "child %v is not a permutation", child)
	}
}

func TestTournament(t *testing.T) {
	r := &run{rng: rand.New(rand.NewPCG(3, 4))}
	scores := []solution{{cost: 5}, {cost: 1}, {cost: 9}}

	wins := 0
	for range 200 {
		if tournament(r, scores) == 1 {
			wins++
		}
	}

	assert.Greater(t, wins, 100)
}
