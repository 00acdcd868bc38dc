package predictor

import (
	"fmt"

	"predictd/internal/composer"
)

// EngineSource supplies one prediction engine instance per session ticket.
// Implementations may share underlying resources (a database pool, a cached
// model) between the engines they hand out.
type EngineSource interface {
	Acquire(ticket Ticket) (Engine, error)
}

// Ticket identifies one composition session being wired up.
type Ticket struct {
	// SchemaID names the active input schema.
	SchemaID string
}

// Factory builds controllers bound to engines from a shared source.
type Factory struct {
	source EngineSource
}

// NewFactory creates a factory over the given engine source.
func NewFactory(source EngineSource) *Factory {
	return &Factory{source: source}
}

// Create acquires an engine for the ticket and binds a new controller to it.
func (f *Factory) Create(ticket Ticket, ctx *composer.Context, cfg Config) (*Predictor, error) {
	engine, err := f.source.Acquire(ticket)
	if err != nil {
		return nil, fmt.Errorf("acquire prediction engine: %w", err)
	}
	return New(ctx, engine, cfg), nil
}
