package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/limaJavier/timetable-engine/pkg/evaluator"
	"github.com/limaJavier/timetable-engine/pkg/generator"
	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/resolver"
	"github.com/limaJavier/timetable-engine/pkg/rules"
	"go.uber.org/zap"
)

// Server answers the UI's engine calls. It keeps no state between requests: every request carries the domain,
// the rule graph and, where needed, the grid it works on.
type Server struct {
	generator *generator.Generator
	defaults  generator.Config
	timeout   time.Duration
	limit     int
	logger    *zap.Logger
}

type Option func(server *Server)

func WithGenerator(generator *generator.Generator) Option {
	return func(server *Server) {
		server.generator = generator
	}
}

// WithDefaults sets the generator options used for fields a generate request leaves out
func WithDefaults(config generator.Config) Option {
	return func(server *Server) {
		server.defaults = config
	}
}

// WithTimeout bounds a generation request; the best grid found when it expires is returned
func WithTimeout(timeout time.Duration) Option {
	return func(server *Server) {
		server.timeout = timeout
	}
}

func WithSuggestionLimit(limit int) Option {
	return func(server *Server) {
		server.limit = limit
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(server *Server) {
		server.logger = logger
	}
}

func NewServer(options ...Option) *Server {
	server := &Server{
		defaults: generator.DefaultConfig(),
		timeout:  2 * time.Minute,
		limit:    resolver.DefaultLimit,
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		option(server)
	}
	if server.generator == nil {
		server.generator = generator.New(generator.WithLogger(server.logger))
	}
	return server
}

type request struct {
	Domain     json.RawMessage      `json:"domain" binding:"required"`
	Graph      json.RawMessage      `json:"graph"`
	Grid       *model.Grid          `json:"grid"`
	Config     json.RawMessage      `json:"config"`
	Profile    evaluator.Profile    `json:"profile" binding:"omitempty,oneof=balanced teacherPriority roomOptimization timeEfficiency"`
	Violation  *evaluator.Violation `json:"violation"`
	Suggestion *resolver.Suggestion `json:"suggestion"`
}

type input struct {
	request
	domain *model.Domain
	graph  rules.Graph
}

// bind decodes the request body and its domain and rule graph
func (server *Server) bind(c *gin.Context) (input, error) {
	var in input
	if err := c.ShouldBindJSON(&in.request); err != nil {
		return input{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	domain, err := model.DomainFromBytes(in.Domain)
	if err != nil {
		return input{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	in.domain = domain

	if len(in.Graph) > 0 && string(in.Graph) != "null" {
		if in.graph, err = rules.GraphFromBytes(in.Graph); err != nil {
			return input{}, fmt.Errorf("%w: %w", errBadRequest, err)
		}
	}
	if in.Profile == "" {
		in.Profile = server.defaults.Profile
	}
	return in, nil
}

func requireField(present bool, field string) error {
	if !present {
		return fmt.Errorf("%w: %v is required", errBadRequest, field)
	}
	return nil
}

// Templates lists the rule templates the builder offers
// GET /api/v1/rules/templates
func (server *Server) Templates(c *gin.Context) {
	ok(c, rules.Templates())
}

// ValidateRules checks a rule graph against the domain
// POST /api/v1/rules/validate
func (server *Server) ValidateRules(c *gin.Context) {
	in, err := server.bind(c)
	if err != nil {
		fail(c, err)
		return
	}
	errs := rules.Validate(in.graph, in.domain)
	ok(c, gin.H{"valid": len(errs) == 0, "errors": errs, "summary": rules.Summary(in.graph)})
}

// Evaluate reports the violations of a grid
// POST /api/v1/evaluate
func (server *Server) Evaluate(c *gin.Context) {
	in, err := server.bind(c)
	if err == nil {
		err = requireField(in.Grid != nil, "grid")
	}
	if err != nil {
		fail(c, err)
		return
	}

	program, err := rules.Compile(in.graph, in.domain)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, evaluator.New(program, in.domain, evaluator.WithProfile(in.Profile)).Report(*in.Grid))
}

// Generate builds a timetable
// POST /api/v1/generate
func (server *Server) Generate(c *gin.Context) {
	in, err := server.bind(c)
	if err != nil {
		fail(c, err)
		return
	}

	config := server.defaults
	if len(in.Config) > 0 && string(in.Config) != "null" {
		if err := json.Unmarshal(in.Config, &config); err != nil {
			fail(c, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), server.timeout)
	defer cancel()
	grid, stats, err := server.generator.Generate(ctx, in.domain, in.graph, config)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"grid": grid, "stats": stats})
}

// Propose suggests fixes for one violation of the grid
// POST /api/v1/conflicts/propose
func (server *Server) Propose(c *gin.Context) {
	in, err := server.bind(c)
	if err == nil {
		err = requireField(in.Grid != nil, "grid")
	}
	if err == nil {
		err = requireField(in.Violation != nil, "violation")
	}
	if err != nil {
		fail(c, err)
		return
	}

	program, err := rules.Compile(in.graph, in.domain)
	if err != nil {
		fail(c, err)
		return
	}
	suggestions := resolver.New(in.domain,
		resolver.WithProgram(program),
		resolver.WithProfile(in.Profile),
		resolver.WithLimit(server.limit),
		resolver.WithLogger(server.logger),
	).Propose(*in.Violation, *in.Grid)
	ok(c, gin.H{"suggestions": suggestions})
}

// Apply performs a suggestion on the grid it was proposed for
// POST /api/v1/conflicts/apply
func (server *Server) Apply(c *gin.Context) {
	in, err := server.bind(c)
	if err == nil {
		err = requireField(in.Grid != nil, "grid")
	}
	if err == nil {
		err = requireField(in.Suggestion != nil, "suggestion")
	}
	if err != nil {
		fail(c, err)
		return
	}

	grid, err := resolver.New(in.domain, resolver.WithLogger(server.logger)).Apply(*in.Grid, *in.Suggestion)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"grid": grid})
}
