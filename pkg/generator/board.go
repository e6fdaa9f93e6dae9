package generator

import (
	"cmp"
	"maps"
	"slices"

	"github.com/limaJavier/timetable-engine/pkg/model"
)

type placement struct {
	slot    model.Slot
	teacher string
	room    string
}

type classSubject struct {
	class   string
	subject string
}

// board is the mutable schedule a search works on. A board never holds a double booking, a lesson in a break,
// a teacher outside their availability or above their weekly maximum: every placement goes through canPlace.
// Boards are private to one search branch; clone before handing one to another goroutine.
type board struct {
	domain     *model.Domain
	units      []unit
	placed     []bool
	placements []placement
	assigned   int

	//** Assistance matrices: entity index x slot index
	classAssistance   [][]bool
	teacherAssistance [][]bool
	roomAssistance    [][]bool

	teacherLoad []int
	teacherDay  [][]int                         // teacher index x day
	classDay    [][]int                         // class index x day
	subjectDay  map[classSubject][]int          // lessons per day
	taughtBy    map[classSubject]map[string]int // teacher continuity
}

func newBoard(domain *model.Domain, units []unit) *board {
	slots := model.DaysPerWeek * domain.PeriodsPerDay
	matrix := func(rows int) [][]bool {
		result := make([][]bool, rows)
		for i := range result {
			result[i] = make([]bool, slots)
		}
		return result
	}
	days := func(rows int) [][]int {
		result := make([][]int, rows)
		for i := range result {
			result[i] = make([]int, model.DaysPerWeek)
		}
		return result
	}

	return &board{
		domain:            domain,
		units:             units,
		placed:            make([]bool, len(units)),
		placements:        make([]placement, len(units)),
		classAssistance:   matrix(len(domain.Classes)),
		teacherAssistance: matrix(len(domain.Teachers)),
		roomAssistance:    matrix(len(domain.Rooms)),
		teacherLoad:       make([]int, len(domain.Teachers)),
		teacherDay:        days(len(domain.Teachers)),
		classDay:          days(len(domain.Classes)),
		subjectDay:        make(map[classSubject][]int),
		taughtBy:          make(map[classSubject]map[string]int),
	}
}

func (b *board) clone() *board {
	deep := func(matrix [][]bool) [][]bool {
		result := make([][]bool, len(matrix))
		for i, row := range matrix {
			result[i] = slices.Clone(row)
		}
		return result
	}
	deepInt := func(matrix [][]int) [][]int {
		result := make([][]int, len(matrix))
		for i, row := range matrix {
			result[i] = slices.Clone(row)
		}
		return result
	}

	copied := &board{
		domain:            b.domain,
		units:             b.units,
		placed:            slices.Clone(b.placed),
		placements:        slices.Clone(b.placements),
		assigned:          b.assigned,
		classAssistance:   deep(b.classAssistance),
		teacherAssistance: deep(b.teacherAssistance),
		roomAssistance:    deep(b.roomAssistance),
		teacherLoad:       slices.Clone(b.teacherLoad),
		teacherDay:        deepInt(b.teacherDay),
		classDay:          deepInt(b.classDay),
		subjectDay:        make(map[classSubject][]int, len(b.subjectDay)),
		taughtBy:          make(map[classSubject]map[string]int, len(b.taughtBy)),
	}
	for key, counts := range b.subjectDay {
		copied.subjectDay[key] = slices.Clone(counts)
	}
	for key, teachers := range b.taughtBy {
		copied.taughtBy[key] = maps.Clone(teachers)
	}
	return copied
}

func (b *board) slotIndex(slot model.Slot) int {
	return int(slot.Day)*b.domain.PeriodsPerDay + slot.Period
}

// canPlace checks every constraint a board guarantees for the unit at the placement
func (b *board) canPlace(i int, p placement) bool {
	u := b.units[i]
	if b.placed[i] || !b.domain.Assignable(p.slot) || !slices.Contains(u.teachers, p.teacher) || !slices.Contains(u.rooms, p.room) {
		return false
	}
	class, _ := b.domain.ClassIndex(u.class)
	teacher, _ := b.domain.TeacherIndex(p.teacher)
	room, _ := b.domain.RoomIndex(p.room)
	slot := b.slotIndex(p.slot)

	return !b.classAssistance[class][slot] &&
		!b.teacherAssistance[teacher][slot] &&
		!b.roomAssistance[room][slot] &&
		b.domain.TeacherAvailable(p.teacher, p.slot) &&
		b.withinLoad(teacher)
}

func (b *board) withinLoad(teacher int) bool {
	maximum := b.domain.Teachers[teacher].MaxWeeklyHours
	return maximum == 0 || b.teacherLoad[teacher] < maximum
}

// place puts the unit at the placement; it reports false and leaves the board untouched when canPlace fails
func (b *board) place(i int, p placement) bool {
	if !b.canPlace(i, p) {
		return false
	}
	b.mark(i, p, true)
	b.placed[i], b.placements[i] = true, p
	b.assigned++
	return true
}

func (b *board) remove(i int) (placement, bool) {
	if !b.placed[i] {
		return placement{}, false
	}
	p := b.placements[i]
	b.mark(i, p, false)
	b.placed[i], b.placements[i] = false, placement{}
	b.assigned--
	return p, true
}

func (b *board) mark(i int, p placement, busy bool) {
	u := b.units[i]
	class, _ := b.domain.ClassIndex(u.class)
	teacher, _ := b.domain.TeacherIndex(p.teacher)
	room, _ := b.domain.RoomIndex(p.room)
	slot, day := b.slotIndex(p.slot), int(p.slot.Day)
	delta := 1
	if !busy {
		delta = -1
	}

	b.classAssistance[class][slot] = busy
	b.teacherAssistance[teacher][slot] = busy
	b.roomAssistance[room][slot] = busy
	b.teacherLoad[teacher] += delta
	b.teacherDay[teacher][day] += delta
	b.classDay[class][day] += delta

	key := classSubject{u.class, u.subject}
	if b.subjectDay[key] == nil {
		b.subjectDay[key] = make([]int, model.DaysPerWeek)
	}
	b.subjectDay[key][day] += delta
	if b.taughtBy[key] == nil {
		b.taughtBy[key] = make(map[string]int)
	}
	b.taughtBy[key][p.teacher] += delta
}

// options lists every placement open to the unit, best first. Lessons of a subject are spread over the week,
// class and teacher days are balanced and a class keeps the teacher it already has for the subject. jitter,
// when set, perturbs the ranking so restarts explore different schedules.
func (b *board) options(i int, jitter func() float64) []placement {
	u := b.units[i]
	class, _ := b.domain.ClassIndex(u.class)
	key := classSubject{u.class, u.subject}
	current := b.continuity(key)

	type ranked struct {
		placement placement
		score     float64
		slot      int
		teacher   int
	}
	candidates := make([]ranked, 0)

	for _, slot := range b.domain.AssignableSlots() {
		index := b.slotIndex(slot)
		if b.classAssistance[class][index] {
			continue
		}
		for order, teacherId := range u.teachers {
			teacher, _ := b.domain.TeacherIndex(teacherId)
			if b.teacherAssistance[teacher][index] || !b.domain.TeacherAvailable(teacherId, slot) || !b.withinLoad(teacher) {
				continue
			}
			room, found := b.freeRoom(u, index)
			if !found {
				continue
			}

			score := 10*float64(b.subjectCount(key, slot.Day)) +
				float64(b.classDay[class][slot.Day]) +
				float64(b.teacherDay[teacher][slot.Day])/2
			if current != "" && current != teacherId {
				score += 20
			}
			if jitter != nil {
				score += jitter()
			}
			candidates = append(candidates, ranked{
				placement: placement{slot: slot, teacher: teacherId, room: room},
				score:     score,
				slot:      index,
				teacher:   order,
			})
		}
	}

	slices.SortStableFunc(candidates, func(x, y ranked) int {
		if comparison := cmp.Compare(x.score, y.score); comparison != 0 {
			return comparison
		}
		if x.slot != y.slot {
			return cmp.Compare(x.slot, y.slot)
		}
		return cmp.Compare(x.teacher, y.teacher)
	})

	result := make([]placement, len(candidates))
	for j, candidate := range candidates {
		result[j] = candidate.placement
	}
	return result
}

func (b *board) freeRoom(u unit, slot int) (string, bool) {
	for _, roomId := range u.rooms {
		room, _ := b.domain.RoomIndex(roomId)
		if !b.roomAssistance[room][slot] {
			return roomId, true
		}
	}
	return "", false
}

func (b *board) subjectCount(key classSubject, day model.Day) int {
	counts := b.subjectDay[key]
	if counts == nil {
		return 0
	}
	return counts[day]
}

// continuity returns the teacher already teaching most periods of the class's subject
func (b *board) continuity(key classSubject) string {
	best, most := "", 0
	for teacher, count := range b.taughtBy[key] {
		if count > most || (count == most && count > 0 && teacher < best) {
			best, most = teacher, count
		}
	}
	return best
}

func (b *board) assignments() []model.Assignment {
	assignments := make([]model.Assignment, 0, b.assigned)
	for i, placed := range b.placed {
		if placed {
			assignments = append(assignments, b.units[i].lesson(b.placements[i]))
		}
	}
	return assignments
}

func (b *board) unassigned() int {
	return len(b.units) - b.assigned
}
