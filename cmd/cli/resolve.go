package main

import (
	"encoding/json"
	"fmt"

	"github.com/limaJavier/timetable-engine/pkg/evaluator"
	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/resolver"
	"github.com/limaJavier/timetable-engine/pkg/rules"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) resolveCommand() *cobra.Command {
	var (
		domainPath, rulesPath, gridPath, out string
		violation, rounds                    int
		auto                                 bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Suggest fixes for the violations of a timetable",
		Long: "Lists the suggestions for one violation of the timetable. With --auto the best suggestion for the first " +
			"hard violation is committed repeatedly until none is left or no suggestion applies",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := readDomain(domainPath)
			if err != nil {
				return err
			}
			graph, err := readGraph(rulesPath)
			if err != nil {
				return err
			}
			grid, err := readGrid(gridPath)
			if err != nil {
				return err
			}
			program, err := rules.Compile(graph, domain)
			if err != nil {
				return err
			}
			profile := a.config.Generator.Profile
			engine := resolver.New(domain,
				resolver.WithProgram(program),
				resolver.WithProfile(profile),
				resolver.WithLimit(a.config.Engine.SuggestionCap),
				resolver.WithLogger(a.logger),
			)
			check := evaluator.New(program, domain, evaluator.WithProfile(profile))

			if !auto {
				violations := check.Evaluate(grid)
				if violation < 0 || violation >= len(violations) {
					return fmt.Errorf("violation %d does not exist, the timetable has %d", violation, len(violations))
				}
				bytes, err := json.MarshalIndent(engine.Propose(violations[violation], grid), "", "  ")
				if err != nil {
					return err
				}
				return writeOutput(cmd, out, bytes)
			}

			store := model.NewStore(grid, a.config.Engine.HistoryLimit)
			for range rounds {
				current := store.Current()
				target, found := firstHard(check.Evaluate(current))
				if !found {
					break
				}
				suggestions := engine.Propose(target, current)
				if len(suggestions) == 0 {
					a.logger.Warn("no suggestion for violation", zap.String("violation", target.String()))
					break
				}
				if _, err := engine.Commit(store, suggestions[0]); err != nil {
					return err
				}
			}

			revisions, _ := store.Versions()
			for _, revision := range revisions[1:] {
				fmt.Fprintf(cmd.ErrOrStderr(), "%v %v\n", revision.Version, revision.Label)
			}
			bytes, err := json.MarshalIndent(store.Current(), "", "  ")
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, bytes)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&domainPath, "domain", "d", "", "path to the domain file")
	flags.StringVarP(&rulesPath, "rules", "r", "", "path to the rule graph file")
	flags.StringVarP(&gridPath, "grid", "g", "", "path to the timetable file")
	flags.StringVarP(&out, "out", "o", "", "path to the output file; if empty, it'll be written into the standard output")
	flags.IntVarP(&violation, "violation", "v", 0, "index of the violation to resolve, in evaluation order")
	flags.BoolVar(&auto, "auto", false, "commit the best suggestion for each hard violation")
	flags.IntVar(&rounds, "rounds", 20, "maximum suggestions committed by --auto")
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("grid")
	return cmd
}

func firstHard(violations []evaluator.Violation) (evaluator.Violation, bool) {
	for _, violation := range violations {
		if violation.Hard {
			return violation, true
		}
	}
	return evaluator.Violation{}, false
}
