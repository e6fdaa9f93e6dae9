package generator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/limaJavier/timetable-engine/pkg/evaluator"
	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/rules"
	"github.com/limaJavier/timetable-engine/pkg/sat"
	"go.uber.org/zap"
)

// Stats summarizes a generation run. Percentages lie in [0, 100].
type Stats struct {
	TotalPeriods       int           `json:"totalPeriods"`
	Assigned           int           `json:"assigned"`
	Unassigned         int           `json:"unassigned"`
	Satisfaction       float64       `json:"satisfaction"`
	TeacherUtilization float64       `json:"teacherUtilization"`
	RoomUtilization    float64       `json:"roomUtilization"`
	Iterations         int           `json:"iterations"`    // Summed over restarts
	Elapsed            time.Duration `json:"elapsed"`
	Conflicts          int           `json:"conflicts"`     // Violations left in the grid
	WeightedScore      float64       `json:"weightedScore"` // Weighted violations plus ShortfallWeight per unassigned period
	Restarts           int           `json:"restarts"`
	Cancelled          bool          `json:"cancelled"`
	Algorithm          Algorithm     `json:"algorithm"`
}

type Generator struct {
	seed    uint64
	logger  *zap.Logger
	solver  sat.SATSolver
	workers int
}

type Option func(generator *Generator)

// WithSeed fixes the random source; two runs with the same seed and input return the same grid
func WithSeed(seed uint64) Option {
	return func(generator *Generator) {
		generator.seed = seed
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(generator *Generator) {
		if logger != nil {
			generator.logger = logger
		}
	}
}

func WithSolver(solver sat.SATSolver) Option {
	return func(generator *Generator) {
		if solver != nil {
			generator.solver = solver
		}
	}
}

// WithWorkers sets how many restarts the highQuality level runs; each restart works on a private board
func WithWorkers(workers int) Option {
	return func(generator *Generator) {
		if workers > 0 {
			generator.workers = workers
		}
	}
}

func New(options ...Option) *Generator {
	generator := &Generator{
		seed:    uint64(time.Now().UnixNano()),
		logger:  zap.NewNop(),
		solver:  sat.NewGophersatSolver(),
		workers: max(runtime.NumCPU(), 2),
	}
	for _, option := range options {
		option(generator)
	}
	return generator
}

// Generate builds a timetable with a default generator
func Generate(ctx context.Context, domain *model.Domain, graph rules.Graph, config Config) (model.Grid, Stats, error) {
	return New().Generate(ctx, domain, graph, config)
}

// Generate validates its inputs and searches for the timetable with the lowest weighted score. Invalid input is
// the only error: an infeasible domain yields the best partial grid with the shortfall in Stats, and a cancelled
// context yields the best grid found so far with Stats.Cancelled set.
func (generator *Generator) Generate(ctx context.Context, domain *model.Domain, graph rules.Graph, config Config) (model.Grid, Stats, error) {
	start := time.Now()

	//** Fail fast
	if domain == nil {
		return model.Grid{}, Stats{}, errors.New("generate: nil domain")
	}
	if err := config.Validate(); err != nil {
		return model.Grid{}, Stats{}, err
	}
	program, err := rules.Compile(graph, domain)
	if err != nil {
		return model.Grid{}, Stats{}, fmt.Errorf("generate: %w", err)
	}

	logger := generator.logger.With(
		zap.String("algorithm", string(config.Algorithm)),
		zap.String("quality", string(config.Quality)),
		zap.String("profile", string(config.Profile)),
	)

	units := expandUnits(domain, program.ClassPriorities())
	base := &run{
		domain:    domain,
		units:     units,
		order:     heuristicOrder(units),
		evaluator: evaluator.New(program, domain, evaluator.WithProfile(config.Profile)),
		budget:    config.MaxIterations,
		solver:    generator.solver,
		logger:    logger,
	}
	logger.Info("generation started", zap.Int("periods", len(units)), zap.Int("rules", len(program.Nodes)))

	//** Search
	best, iterations, restarts := generator.search(ctx, base.branch(generator.seed), config)

	//** Stats
	grid := model.NewGrid(best.assignments)
	report := base.evaluator.Report(grid)
	stats := Stats{
		TotalPeriods:       len(units),
		Assigned:           grid.Len(),
		Unassigned:         len(units) - grid.Len(),
		Satisfaction:       100 * report.Satisfaction,
		TeacherUtilization: teacherUtilization(domain, grid),
		RoomUtilization:    roomUtilization(domain, grid),
		Iterations:         iterations,
		Elapsed:            time.Since(start),
		Conflicts:          len(report.Violations),
		WeightedScore:      report.Weighted + ShortfallWeight*float64(len(units)-grid.Len()),
		Restarts:           restarts,
		Cancelled:          ctx.Err() != nil,
		Algorithm:          config.Algorithm,
	}

	logger.Info("generation finished",
		zap.Int("assigned", stats.Assigned),
		zap.Int("unassigned", stats.Unassigned),
		zap.Float64("weightedScore", stats.WeightedScore),
		zap.Int("iterations", stats.Iterations),
		zap.Duration("elapsed", stats.Elapsed),
		zap.Bool("cancelled", stats.Cancelled),
	)
	if stats.Unassigned > 0 {
		logger.Warn("timetable is incomplete", zap.Int("unassigned", stats.Unassigned))
	}
	return grid, stats, nil
}

// search runs the quality level: fast is one greedy pass, standard one run of the algorithm and highQuality
// parallel restarts of it next to the greedy pass, keeping the lowest score
func (generator *Generator) search(ctx context.Context, r *run, config Config) (solution, int, int) {
	switch config.Quality {
	case Fast:
		best, iterations := firstFit{}.search(ctx, r)
		return best, iterations, 0
	case Standard:
		best, iterations := strategies[config.Algorithm].search(ctx, r)
		return best, iterations, 0
	}

	type outcome struct {
		solution   solution
		iterations int
	}
	outcomes := make([]outcome, generator.workers+1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		best, iterations := firstFit{}.search(ctx, r.branch(generator.seed))
		outcomes[0] = outcome{best, iterations}
	}()
	for restart := 1; restart <= generator.workers; restart++ {
		wg.Add(1)
		go func(restart int) {
			defer wg.Done()
			branch := r.branch(generator.seed + uint64(restart))
			// Every restart after the first explores a perturbed unit order
			if restart > 1 {
				perturb(branch)
			}
			best, iterations := strategies[config.Algorithm].search(ctx, branch)
			outcomes[restart] = outcome{best, iterations}
		}(restart)
	}
	wg.Wait()

	// Merged in restart order so equal scores resolve the same way on every run
	best, iterations := noSolution, 0
	for _, outcome := range outcomes {
		iterations += outcome.iterations
		if outcome.solution.better(best) {
			best = outcome.solution
		}
	}
	return best, iterations, generator.workers
}

// perturb swaps a few neighbouring units of the branch's order
func perturb(r *run) {
	order := make([]int, len(r.order))
	copy(order, r.order)
	for range len(order) / 4 {
		if len(order) < 2 {
			break
		}
		i := r.rng.IntN(len(order) - 1)
		order[i], order[i+1] = order[i+1], order[i]
	}
	r.order = order
}

func teacherUtilization(domain *model.Domain, grid model.Grid) float64 {
	capacity := 0
	for _, teacher := range domain.Teachers {
		capacity += teacherCapacity(domain, teacher)
	}
	if capacity == 0 {
		return 0
	}
	return 100 * float64(grid.Len()) / float64(capacity)
}

// teacherCapacity is the weekly maximum, or every slot the teacher is available in when there is none
func teacherCapacity(domain *model.Domain, teacher model.Teacher) int {
	available := 0
	for _, slot := range domain.AssignableSlots() {
		if domain.TeacherAvailable(teacher.Id, slot) {
			available++
		}
	}
	if teacher.MaxWeeklyHours == 0 {
		return available
	}
	return min(teacher.MaxWeeklyHours, available)
}

func roomUtilization(domain *model.Domain, grid model.Grid) float64 {
	capacity := len(domain.Rooms) * len(domain.AssignableSlots())
	if capacity == 0 {
		return 0
	}
	return 100 * float64(grid.Len()) / float64(capacity)
}
