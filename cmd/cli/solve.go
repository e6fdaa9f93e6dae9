package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/limaJavier/timetable-engine/pkg/sat"
	"github.com/spf13/cobra"
)

// solveCommand runs the configured SAT backend on a DIMACS file, which helps to reproduce a constraintProgramming
// instance outside of the engine
func (a *app) solveCommand() *cobra.Command {
	var solverName string

	cmd := &cobra.Command{
		Use:   "solve <file.cnf>",
		Short: "Solve a DIMACS CNF instance with a SAT backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if solverName == "" {
				solverName = a.config.Engine.Solver
			}
			solver, err := sat.NewSolver(solverName)
			if err != nil {
				return err
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("cannot open instance: %w", err)
			}
			defer file.Close()
			instance, err := sat.ParseDIMACS(file)
			if err != nil {
				return err
			}

			solution, err := solver.Solve(cmd.Context(), instance)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if solution == nil {
				fmt.Fprintln(out, "s UNSATISFIABLE")
				return nil
			}
			literals := make([]string, 0, len(solution)+1)
			for _, literal := range solution {
				literals = append(literals, fmt.Sprint(literal))
			}
			literals = append(literals, "0")
			fmt.Fprintln(out, "s SATISFIABLE")
			fmt.Fprintln(out, "v", strings.Join(literals, " "))
			return nil
		},
	}

	cmd.Flags().StringVar(&solverName, "solver", "", fmt.Sprintf("SAT solver, one of %v", sat.Solvers))
	return cmd
}
