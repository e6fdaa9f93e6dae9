package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/limaJavier/timetable-engine/pkg/evaluator"
	"github.com/limaJavier/timetable-engine/pkg/generator"
	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/resolver"
	"github.com/limaJavier/timetable-engine/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

type fixture struct {
	router *gin.Engine
	domain json.RawMessage
	graph  json.RawMessage
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	domain, err := os.ReadFile("../../testdata/school.json")
	require.NoError(t, err)
	graph, err := os.ReadFile("../../testdata/rules.json")
	require.NoError(t, err)

	server := NewServer(WithGenerator(generator.New(generator.WithSeed(1), generator.WithWorkers(2))))
	return fixture{router: NewRouter(server, gin.TestMode, 1<<20), domain: domain, graph: graph}
}

func (f fixture) post(t *testing.T, path string, body map[string]any) (int, envelope) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, request)

	var response envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response), recorder.Body.String())
	return recorder.Code, response
}

func lesson(class, subject, teacher, room string, day model.Day, period int) model.Assignment {
	return model.Assignment{Class: class, Subject: subject, Teacher: teacher, Room: room, Slot: model.Slot{Day: day, Period: period}}
}

// doubleBooked has t-smith teaching both classes on Monday morning
func doubleBooked() model.Grid {
	return model.NewGrid([]model.Assignment{
		lesson("10A", "math", "t-smith", "r101", model.Monday, 0),
		lesson("10B", "math", "t-smith", "r102", model.Monday, 0),
	})
}

func TestValidateRules(t *testing.T) {
	f := newFixture(t)

	t.Run("Valid graph", func(t *testing.T) {
		//** Act
		code, response := f.post(t, "/api/v1/rules/validate", map[string]any{"domain": f.domain, "graph": f.graph})

		//** Assert
		require.Equal(t, http.StatusOK, code)
		var data struct {
			Valid  bool                `json:"valid"`
			Errors []rules.ConfigError `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(response.Data, &data))
		assert.True(t, data.Valid)
		assert.Empty(t, data.Errors)
	})

	t.Run("Dangling reference", func(t *testing.T) {
		graph := rules.Graph{Rules: []rules.Rule{{
			Id:         "late",
			Name:       "No First Period",
			Template:   rules.NoFirstPeriodTemplate,
			Parameters: []rules.Parameter{{Label: "Subject", Value: "Latin"}},
		}}}

		code, response := f.post(t, "/api/v1/rules/validate", map[string]any{"domain": f.domain, "graph": graph})

		require.Equal(t, http.StatusOK, code)
		var data struct {
			Valid  bool                `json:"valid"`
			Errors []rules.ConfigError `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(response.Data, &data))
		assert.False(t, data.Valid)
		require.NotEmpty(t, data.Errors)
		assert.Equal(t, rules.CodeDanglingReference, data.Errors[0].Code)
	})

	t.Run("Missing domain", func(t *testing.T) {
		code, _ := f.post(t, "/api/v1/rules/validate", map[string]any{"graph": f.graph})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Invalid domain", func(t *testing.T) {
		domain := map[string]any{
			"periodsPerDay": 6,
			"subjects":      []any{},
			"teachers":      []any{map[string]any{"id": "t1", "subjects": []string{"latin"}}},
		}

		code, response := f.post(t, "/api/v1/rules/validate", map[string]any{"domain": domain})

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "invalid domain", response.Message)
	})
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t)

	t.Run("Double booking", func(t *testing.T) {
		//** Act
		code, response := f.post(t, "/api/v1/evaluate", map[string]any{"domain": f.domain, "graph": f.graph, "grid": doubleBooked()})

		//** Assert
		require.Equal(t, http.StatusOK, code)
		var report evaluator.Report
		require.NoError(t, json.Unmarshal(response.Data, &report))
		assert.Equal(t, 1, report.Hard)
		found := false
		for _, violation := range report.Violations {
			found = found || violation.Rule == evaluator.TeacherDoubleBooking
		}
		assert.True(t, found)
	})

	t.Run("Missing grid", func(t *testing.T) {
		code, _ := f.post(t, "/api/v1/evaluate", map[string]any{"domain": f.domain})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Unknown profile", func(t *testing.T) {
		code, _ := f.post(t, "/api/v1/evaluate", map[string]any{"domain": f.domain, "grid": doubleBooked(), "profile": "aggressive"})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Rule graph error", func(t *testing.T) {
		graph := rules.Graph{Connections: []rules.Connection{{Id: "c1", From: "a", To: "b", Operator: rules.And}}}

		code, response := f.post(t, "/api/v1/evaluate", map[string]any{"domain": f.domain, "graph": graph, "grid": doubleBooked()})

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "invalid rule graph", response.Message)
	})
}

func TestGenerate(t *testing.T) {
	f := newFixture(t)

	t.Run("Generated", func(t *testing.T) {
		//** Act
		code, response := f.post(t, "/api/v1/generate", map[string]any{
			"domain": f.domain,
			"graph":  f.graph,
			"config": map[string]any{"algorithm": "simulatedAnnealing", "qualityLevel": "fast"},
		})

		//** Assert
		require.Equal(t, http.StatusOK, code)
		var data struct {
			Grid  model.Grid      `json:"grid"`
			Stats generator.Stats `json:"stats"`
		}
		require.NoError(t, json.Unmarshal(response.Data, &data))
		assert.Equal(t, 32, data.Grid.Len())
		assert.Empty(t, data.Grid.HardConflicts())
		assert.Equal(t, 0, data.Stats.Unassigned)
		assert.Equal(t, generator.SimulatedAnnealing, data.Stats.Algorithm)
	})

	t.Run("Invalid config", func(t *testing.T) {
		code, _ := f.post(t, "/api/v1/generate", map[string]any{
			"domain": f.domain,
			"config": map[string]any{"algorithm": "tabu"},
		})
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestConflicts(t *testing.T) {
	//** Arrange
	f := newFixture(t)
	grid := doubleBooked()
	domain, err := model.DomainFromBytes(f.domain)
	require.NoError(t, err)
	violations := evaluator.Evaluate(grid, &rules.Program{}, domain)
	require.NotEmpty(t, violations)

	//** Act
	code, response := f.post(t, "/api/v1/conflicts/propose", map[string]any{
		"domain":    f.domain,
		"graph":     f.graph,
		"grid":      grid,
		"violation": violations[0],
	})

	//** Assert
	require.Equal(t, http.StatusOK, code)
	var proposed struct {
		Suggestions []resolver.Suggestion `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(response.Data, &proposed))
	require.NotEmpty(t, proposed.Suggestions)
	suggestion := proposed.Suggestions[0]
	assert.Equal(t, grid.Version(), suggestion.Base)

	t.Run("Applied", func(t *testing.T) {
		code, response := f.post(t, "/api/v1/conflicts/apply", map[string]any{"domain": f.domain, "grid": grid, "suggestion": suggestion})

		require.Equal(t, http.StatusOK, code)
		var applied struct {
			Grid model.Grid `json:"grid"`
		}
		require.NoError(t, json.Unmarshal(response.Data, &applied))
		assert.Empty(t, applied.Grid.HardConflicts())
		assert.NotEqual(t, grid.Version(), applied.Grid.Version())
	})

	t.Run("Stale grid", func(t *testing.T) {
		stale := model.RestoreGrid(uuid.New(), grid.Assignments())

		code, _ := f.post(t, "/api/v1/conflicts/apply", map[string]any{"domain": f.domain, "grid": stale, "suggestion": suggestion})

		assert.Equal(t, http.StatusConflict, code)
	})

	t.Run("Missing violation", func(t *testing.T) {
		code, _ := f.post(t, "/api/v1/conflicts/propose", map[string]any{"domain": f.domain, "grid": grid})
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestReadEndpoints(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/health", "/api/v1/rules/templates"} {
		t.Run(path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			f.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusOK, recorder.Code)
		})
	}

	t.Run("Templates", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		f.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/rules/templates", nil))

		var response envelope
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		var templates []rules.Template
		require.NoError(t, json.Unmarshal(response.Data, &templates))
		assert.Len(t, templates, len(rules.Templates()))
	})
}
