// Package etl names the shape of an orthogonal extract/transform/load
// pipeline (SPEC_FULL.md §1: "An orthogonal ETL pipeline ... explicitly out
// of scope"). Only the interfaces are declared — no Actor, Pipeline, or
// PluginHost implementation ships here.
package etl

import "context"

// Record is one unit of data flowing through a Pipeline.
type Record struct {
	Source string
	Data   map[string]any
}

// Actor is one stage of a Pipeline: extract, transform, or load.
type Actor interface {
	// Run processes in and returns the records to pass to the next stage.
	Run(ctx context.Context, in []Record) ([]Record, error)
}

// Pipeline chains Actors together and drives a batch of Records through
// each in turn.
type Pipeline interface {
	// Stages returns the ordered Actors this Pipeline runs.
	Stages() []Actor
	// Run drives in through every stage, in order.
	Run(ctx context.Context, in []Record) ([]Record, error)
}

// PluginHost loads and invokes WebAssembly transform/load plugins, letting
// a Pipeline delegate a stage to untrusted third-party code.
type PluginHost interface {
	// LoadPlugin compiles and instantiates the module at path, returning an
	// Actor backed by its exported entry point.
	LoadPlugin(ctx context.Context, path string) (Actor, error)
}
