package predictdb

import (
	"log/slog"

	"predictd/internal/composer"
	"predictd/internal/predictor"
)

// EngineConfig tunes an engine instance.
type EngineConfig struct {
	// CandidateLimit caps the candidates loaded per query.
	CandidateLimit int

	// MaxIterations bounds consecutive accepted continuations; zero or
	// negative means unbounded.
	MaxIterations int

	// Logger receives engine diagnostics; nil uses slog.Default.
	Logger *slog.Logger
}

// DefaultCandidateLimit is used when the config does not set one.
const DefaultCandidateLimit = 10

// Engine is a predictor.Engine backed by a prediction database. Predict
// stages candidates for the query; CreatePredictSegment materializes them as
// the trailing prediction segment.
type Engine struct {
	db  *DB
	cfg EngineConfig
	log *slog.Logger

	staged []composer.Candidate
}

// NewEngine creates an engine over db.
func NewEngine(db *DB, cfg EngineConfig) *Engine {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultCandidateLimit
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{db: db, cfg: cfg, log: log}
}

// Predict looks up continuations of query and stages them. Returns false,
// leaving any previously staged result alone, when the lookup fails or
// produces nothing.
func (e *Engine) Predict(ctx *composer.Context, query string) bool {
	cands, err := e.db.Lookup(query, e.cfg.CandidateLimit)
	if err != nil {
		e.log.Warn("prediction lookup failed", "query", query, "error", err)
		return false
	}
	if len(cands) == 0 {
		return false
	}
	e.staged = make([]composer.Candidate, len(cands))
	for i, text := range cands {
		e.staged[i] = composer.Candidate{Text: text, Type: composer.CommitTypePrediction}
	}
	return true
}

// CreatePredictSegment appends the staged candidates as a prediction-tagged
// segment at the tail of ctx's composition. The segment spans the empty
// range at the end of the input buffer.
func (e *Engine) CreatePredictSegment(ctx *composer.Context) {
	end := ctx.InputLen()
	seg := composer.NewSegment(end, end)
	seg.AddTag(composer.TagPrediction)
	seg.SetCandidates(e.staged)
	ctx.Composition().PushBack(seg)
}

// Clear drops the staged prediction.
func (e *Engine) Clear() {
	e.staged = nil
}

// MaxIterations returns the configured continuation bound.
func (e *Engine) MaxIterations() int {
	return e.cfg.MaxIterations
}

// Source adapts a DB into a predictor.EngineSource handing out one engine
// per session ticket.
type Source struct {
	db  *DB
	cfg EngineConfig
}

// NewSource creates an engine source over db.
func NewSource(db *DB, cfg EngineConfig) *Source {
	return &Source{db: db, cfg: cfg}
}

// Acquire returns a fresh engine for the ticket. Engines share the database
// but stage predictions independently.
func (s *Source) Acquire(predictor.Ticket) (predictor.Engine, error) {
	return NewEngine(s.db, s.cfg), nil
}
