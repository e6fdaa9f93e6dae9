package main

import (
	"encoding/json"
	"fmt"

	"github.com/limaJavier/timetable-engine/pkg/evaluator"
	"github.com/limaJavier/timetable-engine/pkg/rules"
	"github.com/spf13/cobra"
)

func (a *app) evaluateCommand() *cobra.Command {
	var domainPath, rulesPath, gridPath, profile string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Report the violations of a timetable",
		Args:  cobra.NoArgs,
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
			weights := a.config.Generator.Profile
			if profile != "" {
				weights = evaluator.Profile(profile)
			}
			if !weights.Valid() {
				return fmt.Errorf("unknown weight profile %q, expected one of %v", weights, evaluator.Profiles)
			}

			program, err := rules.Compile(graph, domain)
			if err != nil {
				return err
			}
			report := evaluator.New(program, domain, evaluator.WithProfile(weights)).Report(grid)

			bytes, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			return writeOutput(cmd, "", bytes)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&domainPath, "domain", "d", "", "path to the domain file")
	flags.StringVarP(&rulesPath, "rules", "r", "", "path to the rule graph file")
	flags.StringVarP(&gridPath, "grid", "g", "", "path to the timetable file")
	flags.StringVarP(&profile, "profile", "p", "", fmt.Sprintf("constraint weight profile, one of %v", evaluator.Profiles))
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("grid")
	return cmd
}

func (a *app) validateCommand() *cobra.Command {
	var domainPath, rulesPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a rule graph against a domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := readDomain(domainPath)
			if err != nil {
				return err
			}
			graph, err := readGraph(rulesPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, rules.Summary(graph))
			errs := rules.Validate(graph, domain)
			for _, err := range errs {
				fmt.Fprintf(out, "- %v\n", err)
			}
			if len(errs) > 0 {
				return rules.ConfigErrors(errs)
			}
			fmt.Fprintln(out, "rule graph is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&domainPath, "domain", "d", "", "path to the domain file")
	cmd.Flags().StringVarP(&rulesPath, "rules", "r", "", "path to the rule graph file")
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("rules")
	return cmd
}
