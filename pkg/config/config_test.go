package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/limaJavier/timetable-engine/pkg/evaluator"
	"github.com/limaJavier/timetable-engine/pkg/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	//** Act
	cfg, err := Load("")

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, generator.DefaultConfig(), cfg.Generator)
	assert.Equal(t, "gophersat", cfg.Engine.Solver)
	assert.Equal(t, 4, cfg.Engine.Workers)
}

func TestLoadFile(t *testing.T) {
	//** Arrange
	path := writeConfig(t, `
server:
  port: 9090
log:
  format: console
generator:
  algorithm: geneticSearch
  maxIterations: 250
  constraintWeightProfile: teacherPriority
  qualityLevel: highQuality
engine:
  solver: gini
  seed: 17
`)

	//** Act
	cfg, err := Load(path)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, generator.Config{
		Algorithm:     generator.GeneticSearch,
		MaxIterations: 250,
		Profile:       evaluator.ProfileTeacherPriority,
		Quality:       generator.HighQuality,
	}, cfg.Generator)
	assert.Equal(t, "gini", cfg.Engine.Solver)
	assert.Equal(t, uint64(17), cfg.Engine.Seed)

	t.Run("Environment overrides the file", func(t *testing.T) {
		t.Setenv("TIMETABLE_SERVER_PORT", "7070")
		t.Setenv("TIMETABLE_LOG_LEVEL", "debug")

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Log.Level)
	})
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"port":      "server:\n  port: 70000\n",
		"format":    "log:\n  format: xml\n",
		"workers":   "engine:\n  workers: 0\n",
		"algorithm": "generator:\n  algorithm: tabu\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}

	t.Run("Generator errors keep their sentinel", func(t *testing.T) {
		_, err := Load(writeConfig(t, "generator:\n  maxIterations: -1\n"))
		assert.True(t, errors.Is(err, generator.ErrInvalidConfig))
	})

	t.Run("Missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
