package generator

import (
	"context"
	"slices"

	"go.uber.org/zap"
)

const (
	populationSize = 16
	tournamentSize = 3
	mutationRate   = 0.3
)

// geneticSearch evolves unit orderings. A chromosome is a permutation of the units, decoded by placing them
// greedily in that order; parents are picked by tournament, combined by order crossover and mutated by swaps.
// The best chromosome always survives, so the heuristic ordering seeded in the first generation bounds the result.
type geneticSearch struct{}

func (geneticSearch) search(ctx context.Context, r *run) (solution, int) {
	n := len(r.units)
	if n == 0 {
		return r.score(newBoard(r.domain, r.units)), 0
	}

	decode := func(chromosome []int) solution {
		b := newBoard(r.domain, r.units)
		greedy(ctx, b, chromosome, nil)
		return r.score(b)
	}

	//** Initial population: the heuristic order and shuffles of it
	population := make([][]int, populationSize)
	scores := make([]solution, populationSize)
	for k := range population {
		population[k] = slices.Clone(r.order)
		if k > 0 {
			r.rng.Shuffle(n, func(i, j int) { population[k][i], population[k][j] = population[k][j], population[k][i] })
		}
		scores[k] = decode(population[k])
	}
	iterations := populationSize
	best := 0
	for k := range scores {
		if scores[k].better(scores[best]) {
			best = k
		}
	}
	elite, eliteScore := slices.Clone(population[best]), scores[best]

	generations := 0
	used := make([]bool, n)
	for iterations < r.budget && ctx.Err() == nil {
		next := make([][]int, 0, populationSize)
		nextScores := make([]solution, 0, populationSize)
		next = append(next, slices.Clone(elite))
		nextScores = append(nextScores, eliteScore)

		for len(next) < populationSize && iterations < r.budget && ctx.Err() == nil {
			parent1 := population[tournament(r, scores)]
			parent2 := population[tournament(r, scores)]
			child := make([]int, n)
			crossover(r, parent1, parent2, child, used)
			if r.rng.Float64() < mutationRate {
				i, j := r.rng.IntN(n), r.rng.IntN(n)
				child[i], child[j] = child[j], child[i]
			}

			score := decode(child)
			iterations++
			if score.better(eliteScore) {
				elite, eliteScore = slices.Clone(child), score
			}
			next, nextScores = append(next, child), append(nextScores, score)
		}
		population, scores = next, nextScores
		generations++
	}

	r.logger.Debug("genetic search finished",
		zap.Int("generations", generations),
		zap.Int("evaluations", iterations),
		zap.Float64("cost", eliteScore.cost),
	)
	return eliteScore, iterations
}

func tournament(r *run, scores []solution) int {
	best := r.rng.IntN(len(scores))
	for range tournamentSize - 1 {
		challenger := r.rng.IntN(len(scores))
		if scores[challenger].better(scores[best]) {
			best = challenger
		}
	}
	return best
}

// crossover copies a random slice of parent1 into the child and fills the rest with parent2's genes in order
func crossover(r *run, parent1, parent2, child []int, used []bool) {
	n := len(parent1)
	for i := range used {
		used[i] = false
	}
	start, end := r.rng.IntN(n), r.rng.IntN(n)
	if start > end {
		start, end = end, start
	}
	for i := start; i <= end; i++ {
		child[i] = parent1[i]
		used[child[i]] = true
	}
	j := 0
	for i := range n {
		if i >= start && i <= end {
			continue
		}
		for j < n && used[parent2[j]] {
			j++
		}
		if j < n {
			child[i] = parent2[j]
			used[child[i]] = true
			j++
		}
	}
}
