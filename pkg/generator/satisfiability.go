package generator

import (
	"context"
	"errors"
	"slices"

	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/sat"
	"github.com/onsi/gomega/matchers/support/goraph/bipartitegraph"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type unassignableError struct {
	slot model.Slot
}

func (err unassignableError) Error() string {
	return "not all lessons at " + err.slot.String() + " can be assigned a room"
}

// indexer gives a unique SAT variable to every (unit, slot) pair and back
type indexer struct {
	slots uint64
	units uint64
}

func (indexer indexer) Index(unit, slot uint64) uint64 {
	return slot + indexer.slots*unit + 1
}

func (indexer indexer) Attributes(index uint64) (unit, slot uint64) {
	index = index - 1
	slot = index % indexer.slots
	unit = index / indexer.slots
	return unit, slot
}

func (indexer indexer) Variables() uint64 {
	return indexer.slots * indexer.units
}

type constraintState struct {
	indexer    indexer
	units      []unit
	teachers   []string // Teacher allocated to each unit, empty when the unit stays out of the instance
	candidates [][]int  // Slot indices open to each unit
}

// constraintProgramming encodes the timetable as a SAT instance with teachers allocated up front: every unit takes
// exactly one of its teacher's available slots, and no class, teacher or single-room subject is used twice in a
// slot. Rooms are matched per slot afterwards. The greedy schedule is kept when the solver finds nothing better.
type constraintProgramming struct{}

func (constraintProgramming) search(ctx context.Context, r *run) (solution, int) {
	//** Baseline
	baseline := newBoard(r.domain, r.units)
	iterations := greedy(ctx, baseline, r.order, nil)
	best := r.score(baseline)
	if ctx.Err() != nil || len(r.units) == 0 {
		return best, iterations
	}

	//** Build SAT instance
	state := newConstraintState(r)
	constraints := []func(state constraintState) [][]int64{
		completenessConstraints,
		uniquenessConstraints,
		classConstraints,
		teacherConstraints,
		roomConstraints,
	}
	satInstance, explicitVariables := buildSat(state.indexer.Variables(), constraints, state)

	//** Solve SAT instance
	satSolution, err := r.solver.Solve(ctx, satInstance)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			r.logger.Warn("sat solver failed, keeping the greedy schedule", zap.Error(err))
		}
		return best, iterations
	}
	if satSolution == nil {
		r.logger.Info("sat instance is unsatisfiable, keeping the greedy schedule",
			zap.Uint64("variables", satInstance.Variables),
			zap.Int("clauses", len(satInstance.Clauses)),
		)
		return best, iterations
	}

	// Filter solution by taking only positive and explicit variables
	positives := lo.Filter(satSolution, func(variable int64, _ int) bool {
		return variable > 0 && explicitVariables[variable]
	})

	//** Decode with room matching and repair
	b := newBoard(r.domain, r.units)
	for _, lesson := range roomAssignment(positives, state, r) {
		b.place(lesson.unit, lesson.placement)
	}
	iterations += greedy(ctx, b, r.order, nil)

	if candidate := r.score(b); candidate.better(best) {
		best = candidate
	}
	r.logger.Debug("constraint programming finished",
		zap.Uint64("variables", satInstance.Variables),
		zap.Int("clauses", len(satInstance.Clauses)),
		zap.Float64("cost", best.cost),
	)
	return best, iterations + 1
}

// newConstraintState allocates one teacher per unit, keeping a class's subject with one teacher while their
// weekly maximum allows it
func newConstraintState(r *run) constraintState {
	slots := r.domain.AssignableSlots()
	state := constraintState{
		indexer:    indexer{slots: uint64(model.DaysPerWeek * r.domain.PeriodsPerDay), units: uint64(len(r.units))},
		units:      r.units,
		teachers:   make([]string, len(r.units)),
		candidates: make([][]int, len(r.units)),
	}

	load := make(map[string]int)
	allocated := make(map[classSubject]string)
	hasCapacity := func(teacher string) bool {
		t, _ := r.domain.Teacher(teacher)
		return t.MaxWeeklyHours == 0 || load[teacher] < t.MaxWeeklyHours
	}
	for _, i := range r.order {
		u := r.units[i]
		key := classSubject{u.class, u.subject}
		preferred := append([]string{allocated[key]}, u.teachers...)
		teacher, found := lo.Find(preferred, func(teacher string) bool {
			return teacher != "" && hasCapacity(teacher) && slices.Contains(u.teachers, teacher) &&
				lo.SomeBy(slots, func(slot model.Slot) bool { return r.domain.TeacherAvailable(teacher, slot) })
		})
		if !found {
			continue
		}
		load[teacher]++
		allocated[key] = teacher
		state.teachers[i] = teacher
		for _, slot := range slots {
			if r.domain.TeacherAvailable(teacher, slot) {
				state.candidates[i] = append(state.candidates[i], int(slot.Day)*r.domain.PeriodsPerDay+slot.Period)
			}
		}
	}
	return state
}

func completenessConstraints(state constraintState) [][]int64 {
	clauses := make([][]int64, 0, len(state.units))
	for i, candidates := range state.candidates {
		if len(candidates) == 0 {
			continue
		}
		clause := lo.Map(candidates, func(slot int, _ int) int64 { return int64(state.indexer.Index(uint64(i), uint64(slot))) })
		clauses = append(clauses, clause)
	}
	return clauses
}

func uniquenessConstraints(state constraintState) [][]int64 {
	clauses := make([][]int64, 0)
	for i, candidates := range state.candidates {
		for a := 0; a < len(candidates)-1; a++ {
			for b := a + 1; b < len(candidates); b++ {
				clauses = append(clauses, []int64{
					-int64(state.indexer.Index(uint64(i), uint64(candidates[a]))),
					-int64(state.indexer.Index(uint64(i), uint64(candidates[b]))),
				})
			}
		}
	}
	return clauses
}

func classConstraints(state constraintState) [][]int64 {
	return exclusionConstraints(state, func(u unit, _ string) (string, bool) { return u.class, true })
}

func teacherConstraints(state constraintState) [][]int64 {
	return exclusionConstraints(state, func(_ unit, teacher string) (string, bool) { return teacher, true })
}

// roomConstraints keeps units that can only use one room apart
func roomConstraints(state constraintState) [][]int64 {
	return exclusionConstraints(state, func(u unit, _ string) (string, bool) {
		if len(u.rooms) != 1 {
			return "", false
		}
		return u.rooms[0], true
	})
}

// exclusionConstraints forbids two units sharing a resource from taking the same slot
func exclusionConstraints(state constraintState, resource func(u unit, teacher string) (string, bool)) [][]int64 {
	groups := make(map[string][]int)
	keys := make([]string, 0)
	for i, u := range state.units {
		if state.teachers[i] == "" {
			continue
		}
		key, ok := resource(u, state.teachers[i])
		if !ok {
			continue
		}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], i)
	}

	clauses := make([][]int64, 0)
	for _, key := range keys {
		members := groups[key]
		for a := 0; a < len(members)-1; a++ {
			for b := a + 1; b < len(members); b++ {
				first, second := members[a], members[b]
				for _, slot := range state.candidates[first] {
					if !slices.Contains(state.candidates[second], slot) {
						continue
					}
					clauses = append(clauses, []int64{
						-int64(state.indexer.Index(uint64(first), uint64(slot))),
						-int64(state.indexer.Index(uint64(second), uint64(slot))),
					})
				}
			}
		}
	}
	return clauses
}

func buildSat(variables uint64, constraints []func(state constraintState) [][]int64, state constraintState) (satInstance sat.SAT, explicitVariables map[int64]bool) {
	satInstance = sat.SAT{
		Variables: variables,
		Clauses:   [][]int64{},
	}

	explicitVariables = make(map[int64]bool) // Variables that are explicitly stated in the clauses
	constraintsChannel := make(chan [][]int64)

	for _, constraint := range constraints {
		go func(constraint func(state constraintState) [][]int64) {
			constraintsChannel <- constraint(state)
		}(constraint)
	}

	collectedConstraints := 0
	for clauses := range constraintsChannel {
		for _, clause := range clauses {
			for _, variable := range clause {
				if variable > 0 {
					explicitVariables[variable] = true
				}
			}
		}
		satInstance.Clauses = append(satInstance.Clauses, clauses...)

		if collectedConstraints++; collectedConstraints == len(constraints) {
			close(constraintsChannel)
		}
	}

	// Goroutines finish in any order
	slices.SortStableFunc(satInstance.Clauses, func(a, b []int64) int { return slices.Compare(a, b) })
	return satInstance, explicitVariables
}

type decodedLesson struct {
	unit      int
	placement placement
}

// roomAssignment matches the lessons sharing each slot with rooms; a slot whose lessons cannot all get a room
// keeps the largest matching and leaves the rest to the repair pass
func roomAssignment(positives sat.SATSolution, state constraintState, r *run) []decodedLesson {
	bySlot := make(map[uint64][]int)
	slotOrder := make([]uint64, 0)
	for _, variable := range positives {
		i, slot := state.indexer.Attributes(uint64(variable))
		if int(i) >= len(state.units) || state.teachers[i] == "" {
			continue
		}
		if _, ok := bySlot[slot]; !ok {
			slotOrder = append(slotOrder, slot)
		}
		bySlot[slot] = append(bySlot[slot], int(i))
	}
	slices.Sort(slotOrder)

	lessons := make([]decodedLesson, 0, len(positives))
	for _, slotIndex := range slotOrder {
		units := bySlot[slotIndex]
		slot := model.Slot{Day: model.Day(int(slotIndex) / r.domain.PeriodsPerDay), Period: int(slotIndex) % r.domain.PeriodsPerDay}

		assignments, err := assignRooms(units, state.units, slot)
		if err != nil {
			r.logger.Debug("partial room matching", zap.Error(err))
		}
		for _, assignment := range assignments {
			lessons = append(lessons, decodedLesson{
				unit:      assignment.unit,
				placement: placement{slot: slot, teacher: state.teachers[assignment.unit], room: assignment.room},
			})
		}
	}
	return lessons
}

type roomMatch struct {
	unit int
	room string
}

func assignRooms(lessons []int, units []unit, slot model.Slot) ([]roomMatch, error) {
	rooms := lo.Uniq(lo.FlatMap(lessons, func(i int, _ int) []string { return units[i].rooms }))
	slices.Sort(rooms)

	// Build neighbors predicate based on each unit's suitable rooms
	neighbors := func(lessonAny any, roomAny any) (bool, error) {
		return slices.Contains(units[lessonAny.(int)].rooms, roomAny.(string)), nil
	}

	lessonsAny, roomsAny := lo.Map(lessons, func(lesson int, _ int) any { return lesson }), lo.Map(rooms, func(room string, _ int) any { return room })

	graph, err := bipartitegraph.NewBipartiteGraph(lessonsAny, roomsAny, neighbors)
	if err != nil {
		return nil, err
	}

	matching := graph.LargestMatching()
	assignments := make([]roomMatch, 0, len(matching))
	for _, edge := range matching {
		lessonIndex, roomIndex := edge.Node1, edge.Node2-len(lessons)
		assignments = append(assignments, roomMatch{unit: lessons[lessonIndex], room: rooms[roomIndex]})
	}
	slices.SortFunc(assignments, func(a, b roomMatch) int { return a.unit - b.unit })

	// Check the matching is a maximum one
	if len(assignments) < len(lessons) {
		return assignments, unassignableError{slot: slot}
	}
	return assignments, nil
}
