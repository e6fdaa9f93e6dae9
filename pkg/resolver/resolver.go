package resolver

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/limaJavier/timetable-engine/pkg/evaluator"
	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/rules"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const DefaultLimit = 5

// Resolver proposes and applies grid mutations for violations. Propose only reads; Apply returns a new grid and
// Commit serializes applies through a Store.
type Resolver struct {
	domain    *model.Domain
	program   *rules.Program
	profile   evaluator.Profile
	evaluator *evaluator.Evaluator
	logger    *zap.Logger
	limit     int
}

type Option func(resolver *Resolver)

// WithProgram scores suggestions against a compiled rule graph as well as the built-in checks
func WithProgram(program *rules.Program) Option {
	return func(resolver *Resolver) {
		if program != nil {
			resolver.program = program
		}
	}
}

func WithProfile(profile evaluator.Profile) Option {
	return func(resolver *Resolver) {
		resolver.profile = profile
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(resolver *Resolver) {
		if logger != nil {
			resolver.logger = logger
		}
	}
}

// WithLimit caps how many suggestions Propose returns; zero or less returns all
func WithLimit(limit int) Option {
	return func(resolver *Resolver) {
		resolver.limit = limit
	}
}

func New(domain *model.Domain, options ...Option) *Resolver {
	resolver := &Resolver{
		domain:  domain,
		program: &rules.Program{},
		profile: evaluator.ProfileBalanced,
		logger:  zap.NewNop(),
		limit:   DefaultLimit,
	}
	for _, option := range options {
		option(resolver)
	}
	resolver.evaluator = evaluator.New(resolver.program, domain, evaluator.WithProfile(resolver.profile))
	return resolver
}

// Propose suggests mutations for the violation with a default resolver
func Propose(violation evaluator.Violation, grid model.Grid, domain *model.Domain, options ...Option) []Suggestion {
	return New(domain, options...).Propose(violation, grid)
}

type mutation struct {
	kind     Type
	from     model.Assignment
	to       model.Assignment
	distance int
}

// Propose lists feasible single-assignment mutations for the violation, best first. Every suggestion keeps the grid
// free of hard conflicts; the list is empty when nothing can be moved.
func (resolver *Resolver) Propose(violation evaluator.Violation, grid model.Grid) []Suggestion {
	before := resolver.evaluator.Report(grid)
	beforeIds := identities(before.Violations)
	target := violation.Identity()

	suggestions := make([]Suggestion, 0)
	seen := make(map[string]bool)
	for _, m := range resolver.mutations(violation, grid) {
		id := m.from.String() + "|" + m.to.String()
		if seen[id] {
			continue
		}
		seen[id] = true

		next, err := grid.Replace(m.from, m.to)
		if err != nil {
			continue
		}
		after := resolver.evaluator.Report(next)
		if after.Hard > before.Hard {
			continue
		}
		afterIds := identities(after.Violations)

		resolved := lo.CountBy(lo.Keys(beforeIds), func(id string) bool { return !afterIds[id] })
		introduced := lo.CountBy(lo.Keys(afterIds), func(id string) bool { return !beforeIds[id] })
		suggestions = append(suggestions, Suggestion{
			Id:          suggestionId(grid.Version(), m.kind, m.from, m.to),
			Type:        m.kind,
			Base:        grid.Version(),
			From:        m.from,
			To:          m.to,
			Confidence:  confidence(!afterIds[target], resolved, introduced, resolver.headroom(next, m.to), m.distance),
			Resolved:    resolved,
			Introduced:  introduced,
			Impact:      impact(resolved, introduced),
			Description: describe(m.kind, m.from, m.to),
		})
	}

	slices.SortFunc(suggestions, compareSuggestions)
	if resolver.limit > 0 && len(suggestions) > resolver.limit {
		suggestions = suggestions[:resolver.limit]
	}
	resolver.logger.Debug("suggestions proposed", zap.String("rule", violation.Rule), zap.Int("suggestions", len(suggestions)))
	return suggestions
}

// Apply performs the suggestion on the grid atomically. It fails with *StaleSuggestionError when the grid is not
// the version the suggestion was computed on, the source assignment is gone or the target would be double booked.
func (resolver *Resolver) Apply(grid model.Grid, suggestion Suggestion) (model.Grid, error) {
	stale := func(reason string, err error) error {
		return &StaleSuggestionError{Suggestion: suggestion.Id, Reason: reason, Err: err}
	}

	if grid.Version() != suggestion.Base {
		return model.Grid{}, stale(fmt.Sprintf("grid is at version %v, suggestion was computed on %v", grid.Version(), suggestion.Base), model.ErrStaleVersion)
	}
	if !grid.Contains(suggestion.From) {
		return model.Grid{}, stale(fmt.Sprintf("%v is no longer in the grid", suggestion.From), model.ErrAssignmentNotFound)
	}
	if blockers := resolver.blockers(grid, suggestion.From, suggestion.To); len(blockers) > 0 {
		return model.Grid{}, stale(strings.Join(blockers, "; "), ErrWouldConflict)
	}
	return grid.Replace(suggestion.From, suggestion.To)
}

// Commit applies the suggestion to the store's current grid. Of several commits computed on the same version only
// the first succeeds; the others get *StaleSuggestionError.
func (resolver *Resolver) Commit(store *model.Store, suggestion Suggestion) (model.Grid, error) {
	grid, err := store.Update(suggestion.Base, string(suggestion.Type)+": "+suggestion.Description, func(current model.Grid) (model.Grid, error) {
		return resolver.Apply(current, suggestion)
	})
	var staleErr *StaleSuggestionError
	if errors.Is(err, model.ErrStaleVersion) && !errors.As(err, &staleErr) {
		err = &StaleSuggestionError{Suggestion: suggestion.Id, Reason: "grid changed since the suggestion was proposed", Err: err}
	}
	if err != nil {
		resolver.logger.Warn("suggestion rejected", zap.Stringer("suggestion", suggestion.Id), zap.Error(err))
		return model.Grid{}, err
	}
	resolver.logger.Info("suggestion committed",
		zap.Stringer("suggestion", suggestion.Id),
		zap.String("type", string(suggestion.Type)),
		zap.Stringer("version", grid.Version()),
	)
	return grid, nil
}

//** Mutations

func (resolver *Resolver) mutations(violation evaluator.Violation, grid model.Grid) []mutation {
	mutations := make([]mutation, 0)
	for _, assignment := range violation.Assignments {
		if !grid.Contains(assignment) {
			continue
		}
		switch violation.Rule {
		case evaluator.TeacherDoubleBooking, evaluator.TeacherUnavailable:
			mutations = append(mutations, resolver.reschedule(grid, assignment)...)
			mutations = append(mutations, resolver.substitute(grid, assignment)...)
		case evaluator.ClassDoubleBooking, evaluator.BreakSlot:
			mutations = append(mutations, resolver.reschedule(grid, assignment)...)
		case evaluator.RoomDoubleBooking:
			mutations = append(mutations, resolver.roomChange(grid, assignment)...)
			mutations = append(mutations, resolver.reschedule(grid, assignment)...)
		case evaluator.RoomCapacity, evaluator.RoomKindMismatch:
			mutations = append(mutations, resolver.roomChange(grid, assignment)...)
		case evaluator.TeacherOverload, evaluator.TeacherUnqualified:
			mutations = append(mutations, resolver.substitute(grid, assignment)...)
		case evaluator.UnknownReference:
			// Nothing to move until the domain knows the entity
		default:
			mutations = append(mutations, resolver.redistribute(grid, assignment)...)
		}
	}
	return mutations
}

// reschedule moves the assignment to the nearest slot where it fits, keeping its room when the room is free
func (resolver *Resolver) reschedule(grid model.Grid, assignment model.Assignment) []mutation {
	slots := resolver.domain.AssignableSlots()
	slices.SortStableFunc(slots, func(a, b model.Slot) int {
		return cmp.Compare(distance(assignment.Slot, a), distance(assignment.Slot, b))
	})
	for _, slot := range slots {
		if slot == assignment.Slot {
			continue
		}
		if to, ok := resolver.placeAt(grid, assignment, slot); ok {
			return []mutation{{kind: Reschedule, from: assignment, to: to, distance: distance(assignment.Slot, slot)}}
		}
	}
	return nil
}

// redistribute moves the assignment to the days where its class has the fewest lessons
func (resolver *Resolver) redistribute(grid model.Grid, assignment model.Assignment) []mutation {
	const days = 2
	load := make([]int, model.DaysPerWeek)
	for _, lesson := range grid.ByClass(assignment.Class) {
		if lesson.Slot.Day.Valid() {
			load[lesson.Slot.Day]++
		}
	}
	order := slices.Clone(model.Days)
	slices.SortStableFunc(order, func(a, b model.Day) int { return cmp.Compare(load[a], load[b]) })

	mutations := make([]mutation, 0, days)
	for _, day := range order {
		if day == assignment.Slot.Day || load[day] >= resolver.assignablePeriods(day) {
			continue
		}
		periods := lo.Range(resolver.domain.PeriodsPerDay)
		slices.SortStableFunc(periods, func(a, b int) int {
			return cmp.Compare(abs(a-assignment.Slot.Period), abs(b-assignment.Slot.Period))
		})
		for _, period := range periods {
			slot := model.Slot{Day: day, Period: period}
			if to, ok := resolver.placeAt(grid, assignment, slot); ok {
				mutations = append(mutations, mutation{kind: Redistribute, from: assignment, to: to, distance: distance(assignment.Slot, slot)})
				break
			}
		}
		if len(mutations) == days {
			break
		}
	}
	return mutations
}

// substitute hands the assignment to another qualified teacher who is free and below their weekly maximum
func (resolver *Resolver) substitute(grid model.Grid, assignment model.Assignment) []mutation {
	mutations := make([]mutation, 0)
	for _, teacher := range resolver.domain.QualifiedTeachers(assignment.Subject) {
		if teacher.Id == assignment.Teacher {
			continue
		}
		if teacher.MaxWeeklyHours > 0 && grid.TeacherLoad(teacher.Id) >= teacher.MaxWeeklyHours {
			continue
		}
		to := assignment
		to.Teacher = teacher.Id
		if len(resolver.blockers(grid, assignment, to)) == 0 {
			mutations = append(mutations, mutation{kind: Substitute, from: assignment, to: to})
		}
	}
	return mutations
}

// roomChange moves the assignment to a free room meeting its subject's room kind and its class size
func (resolver *Resolver) roomChange(grid model.Grid, assignment model.Assignment) []mutation {
	mutations := make([]mutation, 0)
	for _, room := range resolver.domain.SuitableRooms(assignment.Subject, assignment.Class) {
		if room.Id == assignment.Room {
			continue
		}
		to := assignment
		to.Room = room.Id
		if len(resolver.blockers(grid, assignment, to)) == 0 {
			mutations = append(mutations, mutation{kind: RoomChange, from: assignment, to: to})
		}
	}
	return mutations
}

// placeAt moves the assignment to the slot, in its own room when free and otherwise in the first suitable free one
func (resolver *Resolver) placeAt(grid model.Grid, assignment model.Assignment, slot model.Slot) (model.Assignment, bool) {
	rooms := append([]string{assignment.Room}, lo.Map(resolver.domain.SuitableRooms(assignment.Subject, assignment.Class), func(room model.Room, _ int) string { return room.Id })...)
	for _, room := range rooms {
		to := assignment
		to.Slot, to.Room = slot, room
		if len(resolver.blockers(grid, assignment, to)) == 0 {
			return to, true
		}
	}
	return model.Assignment{}, false
}

//** Feasibility

// blockers lists the hard constraints the assignment to would break in place of from
func (resolver *Resolver) blockers(grid model.Grid, from, to model.Assignment) []string {
	domain := resolver.domain
	blockers := make([]string, 0)
	if !domain.HasClass(to.Class) || !domain.HasSubject(to.Subject) || !domain.HasTeacher(to.Teacher) || !domain.HasRoom(to.Room) {
		blockers = append(blockers, fmt.Sprintf("%v references an unknown entity", to))
	}
	if !domain.Assignable(to.Slot) {
		blockers = append(blockers, fmt.Sprintf("%v is not an assignable slot", to.Slot))
	}
	if !domain.Qualified(to.Teacher, to.Subject) {
		blockers = append(blockers, fmt.Sprintf("%v is not qualified for %v", to.Teacher, to.Subject))
	}
	if !domain.TeacherAvailable(to.Teacher, to.Slot) {
		blockers = append(blockers, fmt.Sprintf("%v is unavailable at %v", to.Teacher, to.Slot))
	}

	for _, other := range grid.Assignments() {
		if other == from || other.Slot != to.Slot {
			continue
		}
		if other.Class == to.Class {
			blockers = append(blockers, fmt.Sprintf("class %v is busy at %v", to.Class, to.Slot))
		}
		if other.Teacher == to.Teacher {
			blockers = append(blockers, fmt.Sprintf("teacher %v is busy at %v", to.Teacher, to.Slot))
		}
		if other.Room == to.Room {
			blockers = append(blockers, fmt.Sprintf("room %v is busy at %v", to.Room, to.Slot))
		}
	}
	return blockers
}

// headroom in [0, 1] averages the free rooms at the target slot and the teacher's spare weekly hours
func (resolver *Resolver) headroom(grid model.Grid, to model.Assignment) float64 {
	rooms := len(resolver.domain.Rooms)
	if rooms == 0 {
		return 0
	}
	busy := lo.CountBy(grid.Assignments(), func(assignment model.Assignment) bool { return assignment.Slot == to.Slot })
	roomHeadroom := float64(max(rooms-busy, 0)) / float64(rooms)

	teacherHeadroom := 1.0
	if teacher, ok := resolver.domain.Teacher(to.Teacher); ok && teacher.MaxWeeklyHours > 0 {
		teacherHeadroom = float64(max(teacher.MaxWeeklyHours-grid.TeacherLoad(to.Teacher), 0)) / float64(teacher.MaxWeeklyHours)
	}
	return (roomHeadroom + teacherHeadroom) / 2
}

func (resolver *Resolver) assignablePeriods(day model.Day) int {
	return lo.CountBy(resolver.domain.AssignableSlots(), func(slot model.Slot) bool { return slot.Day == day })
}

// confidence rewards fixing the target violation, every other violation removed and the headroom left at the
// target; it penalizes new violations and the distance of a move
func confidence(targetResolved bool, resolved, introduced int, headroom float64, distance int) int {
	score := 30.0
	if targetResolved {
		score += 30
	}
	score += 5 * float64(min(resolved, 4))
	score -= 10 * float64(introduced)
	score += 20 * headroom
	score -= float64(min(distance, 10))
	return int(min(max(score, 0), 100))
}

// distance counts days apart as a full day of periods
func distance(a, b model.Slot) int {
	return 10*abs(int(a.Day)-int(b.Day)) + abs(a.Period-b.Period)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// identities collects the violated rule and resource pairs of a report; a violation that only shrinks keeps its identity
func identities(violations []evaluator.Violation) map[string]bool {
	return lo.SliceToMap(violations, func(v evaluator.Violation) (string, bool) { return v.Identity(), true })
}
