package generator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/limaJavier/timetable-engine/pkg/evaluator"
)

var ErrInvalidConfig = errors.New("invalid generator config")

type Algorithm string

const (
	Backtracking          Algorithm = "backtracking"
	SimulatedAnnealing    Algorithm = "simulatedAnnealing"
	GeneticSearch         Algorithm = "geneticSearch"
	ConstraintProgramming Algorithm = "constraintProgramming"
)

var Algorithms = []Algorithm{Backtracking, SimulatedAnnealing, GeneticSearch, ConstraintProgramming}

type Quality string

const (
	Fast        Quality = "fast"
	Standard    Quality = "standard"
	HighQuality Quality = "highQuality"
)

var Qualities = []Quality{Fast, Standard, HighQuality}

// Config holds exactly the options a user picks before generating
type Config struct {
	Algorithm     Algorithm         `json:"algorithm" mapstructure:"algorithm"`
	MaxIterations int               `json:"maxIterations" mapstructure:"maxIterations"`
	Profile       evaluator.Profile `json:"constraintWeightProfile" mapstructure:"constraintWeightProfile"`
	Quality       Quality           `json:"qualityLevel" mapstructure:"qualityLevel"`
}

func DefaultConfig() Config {
	return Config{
		Algorithm:     Backtracking,
		MaxIterations: 1000,
		Profile:       evaluator.ProfileBalanced,
		Quality:       Standard,
	}
}

func (config Config) Validate() error {
	if !slices.Contains(Algorithms, config.Algorithm) {
		return fmt.Errorf("%w: unknown algorithm %q, expected one of %v", ErrInvalidConfig, config.Algorithm, Algorithms)
	}
	if config.MaxIterations <= 0 {
		return fmt.Errorf("%w: maxIterations must be positive, got %d", ErrInvalidConfig, config.MaxIterations)
	}
	if !config.Profile.Valid() {
		return fmt.Errorf("%w: unknown weight profile %q, expected one of %v", ErrInvalidConfig, config.Profile, evaluator.Profiles)
	}
	if !slices.Contains(Qualities, config.Quality) {
		return fmt.Errorf("%w: unknown quality level %q, expected one of %v", ErrInvalidConfig, config.Quality, Qualities)
	}
	return nil
}
