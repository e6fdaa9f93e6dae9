package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/limaJavier/timetable-engine/pkg/evaluator"
	"github.com/limaJavier/timetable-engine/pkg/generator"
	"github.com/limaJavier/timetable-engine/pkg/sat"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newGenerator builds the engine described by the engine section of the config
func (a *app) newGenerator() (*generator.Generator, error) {
	solver, err := sat.NewSolver(a.config.Engine.Solver)
	if err != nil {
		return nil, err
	}
	options := []generator.Option{
		generator.WithLogger(a.logger),
		generator.WithSolver(solver),
		generator.WithWorkers(a.config.Engine.Workers),
	}
	if a.config.Engine.Seed != 0 {
		options = append(options, generator.WithSeed(a.config.Engine.Seed))
	}
	return generator.New(options...), nil
}

func (a *app) generateCommand() *cobra.Command {
	var (
		domainPath, rulesPath, out string
		algorithm, quality         string
		profile, solver            string
		iterations                 int
		seed                       uint64
		timeout                    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a timetable for a domain and rule graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			//** Flags override the config file
			cfg := a.config.Generator
			flags := cmd.Flags()
			if flags.Changed("algorithm") {
				cfg.Algorithm = generator.Algorithm(algorithm)
			}
			if flags.Changed("quality") {
				cfg.Quality = generator.Quality(quality)
			}
			if flags.Changed("profile") {
				cfg.Profile = evaluator.Profile(profile)
			}
			if flags.Changed("iterations") {
				cfg.MaxIterations = iterations
			}
			if flags.Changed("solver") {
				a.config.Engine.Solver = solver
			}
			if flags.Changed("seed") {
				a.config.Engine.Seed = seed
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			//** Input
			domain, err := readDomain(domainPath)
			if err != nil {
				return err
			}
			graph, err := readGraph(rulesPath)
			if err != nil {
				return err
			}

			//** Generation
			engine, err := a.newGenerator()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			grid, stats, err := engine.Generate(ctx, domain, graph, cfg)
			if err != nil {
				return fmt.Errorf("an error occurred during timetable construction: %w", err)
			}

			//** Output
			bytes, err := json.MarshalIndent(map[string]any{"grid": grid, "stats": stats}, "", "  ")
			if err != nil {
				return fmt.Errorf("an error occurred while building output json: %w", err)
			}
			if err := writeOutput(cmd, out, bytes); err != nil {
				return err
			}
			a.logger.Info("timetable written",
				zap.Int("assigned", stats.Assigned),
				zap.Int("unassigned", stats.Unassigned),
				zap.Float64("satisfaction", stats.Satisfaction),
				zap.Duration("elapsed", stats.Elapsed),
			)
			if stats.Unassigned > 0 {
				return fmt.Errorf("%w: %d of %d periods unassigned", errIncomplete, stats.Unassigned, stats.TotalPeriods)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&domainPath, "domain", "d", "", "path to the domain file")
	flags.StringVarP(&rulesPath, "rules", "r", "", "path to the rule graph file")
	flags.StringVarP(&out, "out", "o", "", "path to the file where the output will be written; if empty, it'll be written into the standard output")
	flags.StringVarP(&algorithm, "algorithm", "a", "", fmt.Sprintf("search algorithm, one of %v", generator.Algorithms))
	flags.StringVarP(&quality, "quality", "q", "", fmt.Sprintf("quality level, one of %v", generator.Qualities))
	flags.StringVarP(&profile, "profile", "p", "", fmt.Sprintf("constraint weight profile, one of %v", evaluator.Profiles))
	flags.StringVar(&solver, "solver", "", fmt.Sprintf("SAT solver used by constraintProgramming, one of %v", sat.Solvers))
	flags.IntVarP(&iterations, "iterations", "i", 0, "maximum iterations of the search")
	flags.Uint64Var(&seed, "seed", 0, "random seed; runs with the same seed and input produce the same timetable")
	flags.DurationVarP(&timeout, "timeout", "t", 0, "stop the search after this long and keep the best timetable found")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}
