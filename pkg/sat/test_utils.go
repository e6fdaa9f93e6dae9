package sat

import (
	"math/rand/v2"
	"slices"
)

// GenerateSATInstance builds a random instance that the returned planted model satisfies
func GenerateSATInstance(random *rand.Rand, literals uint64, clauses int) (SAT, SATSolution) {
	planted := make(SATSolution, literals)
	for j := range literals {
		planted[j] = int64(j + 1)
		if random.Float32() < 0.5 {
			planted[j] = -planted[j]
		}
	}

	satInstance := SAT{
		Variables: literals,
		Clauses:   make([][]int64, clauses),
	}
	for i := range clauses {
		satInstance.Clauses[i] = make([]int64, 0, 3)
		for j := range literals {
			if random.Float32() < 3/float32(literals) {
				var sign int64 = 1
				if random.Float32() < 0.5 {
					sign = -1
				}
				satInstance.Clauses[i] = append(satInstance.Clauses[i], sign*(1+int64(j)))
			}
		}

		// Every clause keeps one literal of the planted model
		kept := planted[random.Int64N(int64(literals))]
		index := slices.IndexFunc(satInstance.Clauses[i], func(literal int64) bool { return literal == kept || literal == -kept })
		if index >= 0 {
			satInstance.Clauses[i][index] = kept
		} else {
			satInstance.Clauses[i] = append(satInstance.Clauses[i], kept)
		}
	}

	return satInstance, planted
}

func AssertSATSolution(satInstance SAT, satSolution SATSolution) bool {
	// Make sure there are no duplicates nor contradictions
	literals := make(map[int64]bool)
	for _, literal := range satSolution {
		if literals[literal] || literals[-literal] {
			return false
		}
		literals[literal] = true
	}

	// Check that all clauses are satisfied
	for _, clause := range satInstance.Clauses {
		satisfied := false
		for _, literal := range clause {
			if literals[literal] {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}

	return true
}
