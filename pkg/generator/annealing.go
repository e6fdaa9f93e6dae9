package generator

import (
	"context"
	"math"

	"go.uber.org/zap"
)

const (
	initialTemperature = 50.0
	finalTemperature   = 0.1
	neighbourhood      = 5 // Moves pick among a unit's best few placements
)

// simulatedAnnealing starts from the greedy schedule and moves one unit per iteration to one of its best open
// placements, unassigned units included. Worse schedules are accepted with the Metropolis probability under a
// geometrically cooling temperature.
type simulatedAnnealing struct{}

func (simulatedAnnealing) search(ctx context.Context, r *run) (solution, int) {
	b := newBoard(r.domain, r.units)
	greedy(ctx, b, r.order, nil)
	current := r.score(b)
	best := current
	if len(r.units) == 0 {
		return best, 0
	}

	temperature := initialTemperature
	cooling := math.Pow(finalTemperature/initialTemperature, 1/float64(r.budget))
	iterations, accepted := 0, 0
	for ; iterations < r.budget && ctx.Err() == nil; iterations++ {
		i := r.rng.IntN(len(r.units))
		previous, wasPlaced := b.remove(i)
		options := b.options(i, r.jitter)
		if len(options) == 0 {
			if wasPlaced {
				b.place(i, previous)
			}
			continue
		}

		b.place(i, options[r.rng.IntN(min(len(options), neighbourhood))])
		candidate := r.score(b)
		delta := candidate.cost - current.cost
		if delta <= 0 || r.rng.Float64() < math.Exp(-delta/temperature) {
			current = candidate
			accepted++
			if current.better(best) {
				best = current
			}
		} else {
			b.remove(i)
			if wasPlaced {
				b.place(i, previous)
			}
		}
		temperature *= cooling
	}

	r.logger.Debug("simulated annealing finished",
		zap.Int("iterations", iterations),
		zap.Int("accepted", accepted),
		zap.Float64("cost", best.cost),
	)
	return best, iterations
}
