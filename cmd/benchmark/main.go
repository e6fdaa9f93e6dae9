package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/limaJavier/timetable-engine/pkg/generator"
	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/rules"
	"github.com/limaJavier/timetable-engine/pkg/sat"
	"github.com/samber/lo"
)

const MB float64 = 1024 * 1024

type TestMetadata struct {
	Name     string
	Subjects int
	Teachers int
	Classes  int
	Rooms    int
	Periods  int
}

type BenchmarkResult struct {
	Test      TestMetadata
	Algorithm generator.Algorithm
	Quality   generator.Quality
	Solver    string
	Duration  time.Duration
	Memory    float64 // MB allocated during the run
	Stats     generator.Stats
}

type benchmarkCase struct {
	test   TestMetadata
	domain *model.Domain
	graph  rules.Graph
}

func main() {
	directory := flag.String("dir", "../../testdata", "directory holding the domain files (*.json); a sibling rules.json is used as rule graph")
	out := flag.String("out", "benchmark_results.csv", "path to the CSV file")
	solverName := flag.String("solver", sat.Gophersat, fmt.Sprintf("SAT solver, one of %v", sat.Solvers))
	iterations := flag.Int("iterations", 1000, "maximum iterations per run")
	seed := flag.Uint64("seed", 1, "random seed")
	timeout := flag.Duration("timeout", time.Minute, "time limit per run")
	flag.Parse()

	solver, err := sat.NewSolver(*solverName)
	if err != nil {
		log.Fatal(err)
	}
	cases, err := getCases(*directory)
	if err != nil {
		log.Fatal(err)
	}
	engine := generator.New(generator.WithSeed(*seed), generator.WithSolver(solver))

	results := make([]BenchmarkResult, 0, len(cases)*len(generator.Algorithms)*len(generator.Qualities))
	for _, test := range cases {
		for _, algorithm := range generator.Algorithms {
			for _, quality := range generator.Qualities {
				fmt.Printf("Benchmarking test \"%v\" with algorithm \"%v\" and quality \"%v\"\n", test.test.Name, algorithm, quality)
				config := generator.DefaultConfig()
				config.Algorithm = algorithm
				config.Quality = quality
				config.MaxIterations = *iterations

				result, err := measure(engine, test, config, *timeout)
				if err != nil {
					log.Fatalf("an error occurred at test \"%v\" using algorithm \"%v\": %v", test.test.Name, algorithm, err)
				}
				result.Solver = *solverName
				results = append(results, result)
			}
		}
	}

	file, err := os.Create(*out)
	if err != nil {
		log.Fatalf("cannot create CSV file: %v", err)
	}
	defer file.Close()
	if err := toCsv(file, results); err != nil {
		log.Fatal(err)
	}
}

// getCases loads every domain file of the directory except the rule graph itself
func getCases(directory string) ([]benchmarkCase, error) {
	graph, err := rules.GraphFromJson(filepath.Join(directory, "rules.json"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(directory, "*.json"))
	if err != nil {
		return nil, err
	}
	files = lo.Filter(files, func(file string, _ int) bool { return filepath.Base(file) != "rules.json" })
	slices.Sort(files)

	cases := make([]benchmarkCase, 0, len(files))
	for _, file := range files {
		domain, err := model.InputFromJson(file)
		if err != nil {
			return nil, fmt.Errorf("cannot parse input file %v: %w", file, err)
		}
		cases = append(cases, benchmarkCase{test: metadata(file, domain), domain: domain, graph: graph})
	}
	return cases, nil
}

func metadata(name string, domain *model.Domain) TestMetadata {
	return TestMetadata{
		Name:     name,
		Subjects: len(domain.Subjects),
		Teachers: len(domain.Teachers),
		Classes:  len(domain.Classes),
		Rooms:    len(domain.Rooms),
		Periods:  domain.TotalRequiredPeriods(),
	}
}

func measure(engine *generator.Generator, test benchmarkCase, config generator.Config, timeout time.Duration) (BenchmarkResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	start := time.Now()
	_, stats, err := engine.Generate(ctx, test.domain, test.graph, config)
	duration := time.Since(start)
	runtime.ReadMemStats(&after)
	if err != nil {
		return BenchmarkResult{}, err
	}

	return BenchmarkResult{
		Test:      test.test,
		Algorithm: config.Algorithm,
		Quality:   config.Quality,
		Duration:  duration,
		Memory:    float64(after.TotalAlloc-before.TotalAlloc) / MB,
		Stats:     stats,
	}, nil
}

func toCsv(writer io.Writer, results []BenchmarkResult) error {
	csvWriter := csv.NewWriter(writer)

	header := []string{"Test", "Subjects", "Teachers", "Classes", "Rooms", "Periods", "Algorithm", "Quality", "Solver", "Duration(ms)", "Memory(MB)", "Assigned", "Unassigned", "Satisfaction(%)", "WeightedScore", "Iterations", "Cancelled"}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("cannot write CSV header: %w", err)
	}
	for _, result := range results {
		if err := csvWriter.Write(record(result)); err != nil {
			return fmt.Errorf("cannot write CSV record: %w", err)
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func record(result BenchmarkResult) []string {
	return []string{
		result.Test.Name,
		fmt.Sprintf("%d", result.Test.Subjects),
		fmt.Sprintf("%d", result.Test.Teachers),
		fmt.Sprintf("%d", result.Test.Classes),
		fmt.Sprintf("%d", result.Test.Rooms),
		fmt.Sprintf("%d", result.Test.Periods),
		string(result.Algorithm),
		string(result.Quality),
		result.Solver,
		fmt.Sprintf("%d", result.Duration.Milliseconds()),
		fmt.Sprintf("%.1f", result.Memory),
		fmt.Sprintf("%d", result.Stats.Assigned),
		fmt.Sprintf("%d", result.Stats.Unassigned),
		fmt.Sprintf("%.1f", result.Stats.Satisfaction),
		fmt.Sprintf("%.1f", result.Stats.WeightedScore),
		fmt.Sprintf("%d", result.Stats.Iterations),
		fmt.Sprintf("%v", result.Stats.Cancelled),
	}
}
