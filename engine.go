// Package raedu is the top-level entry point of the relational-algebra
// engine: Parse builds an AST from RA source text, Evaluate interprets an
// AST against an environment, and Run composes the two (spec §6's
// language-neutral Core API). The shape follows the teacher's top-level
// engine.go: a small Config struct plus thin methods that wire the
// sub-packages together, with structured logging via logrus.
package raedu

import (
	"github.com/sirupsen/logrus"

	"github.com/ewudata/ra-edu-toolkit/ast"
	"github.com/ewudata/ra-edu-toolkit/eval"
	"github.com/ewudata/ra-edu-toolkit/raparse"
	"github.com/ewudata/ra-edu-toolkit/relation"
	"github.com/ewudata/ra-edu-toolkit/trace"
)

// Config bounds one evaluation's cost, mirroring the teacher's
// engine.Config (VersionPostfix, IsReadOnly, ...): a handful of knobs the
// caller sets once and that every Run/Evaluate call honors.
type Config struct {
	// MaxRows aborts an evaluation whose intermediate result would exceed
	// this many rows. Zero means unlimited (spec §5: "bounded only by
	// input size; caller enforces limits").
	MaxRows int
	// MaxPreview caps the rows carried in each trace.Record.Preview. Zero
	// defaults to 10 (spec §4.5).
	MaxPreview int
	// Logger receives one structured Debug line per evaluated AST node.
	// A nil Logger defaults to a Warn-level logrus.Logger (silent unless
	// something unusual happens).
	Logger *logrus.Logger
}

// Engine is a configured entry point over a fixed Config. It holds no
// environment or evaluation state of its own — every call supplies its
// own Environment, so a single Engine is safe to reuse and to share across
// concurrent evaluations (spec §5: "share no mutable state").
type Engine struct {
	Config Config
}

// New returns an Engine with the given Config.
func New(cfg Config) *Engine {
	return &Engine{Config: cfg}
}

// Parse parses source into an AST, or returns a *raerrors.ParseError.
func Parse(source string) (ast.Node, error) {
	return raparse.Parse(source)
}

// Evaluate interprets node against env, returning the result relation and
// the trace accumulated while producing it. On error, the trace returned
// is whatever was recorded before the failing node (spec §7).
func (en *Engine) Evaluate(node ast.Node, env relation.Environment) (relation.Relation, trace.Trace, error) {
	evaluator := eval.New(env)
	evaluator.Config = eval.Config{MaxRows: en.Config.MaxRows, MaxPreview: en.Config.MaxPreview}
	if en.Config.Logger != nil {
		evaluator.Log = en.Config.Logger
	}
	return evaluator.Evaluate(node)
}

// Run parses source and evaluates it against env in one call (spec §6).
func (en *Engine) Run(source string, env relation.Environment) (relation.Relation, trace.Trace, error) {
	node, err := Parse(source)
	if err != nil {
		return relation.Relation{}, nil, err
	}
	return en.Evaluate(node, env)
}

// Evaluate is a package-level convenience that evaluates node against env
// using DefaultConfig(), for callers that do not need a reusable Engine.
func Evaluate(node ast.Node, env relation.Environment) (relation.Relation, trace.Trace, error) {
	return New(DefaultConfig()).Evaluate(node, env)
}

// Run is a package-level convenience combining Parse and Evaluate with
// DefaultConfig().
func Run(source string, env relation.Environment) (relation.Relation, trace.Trace, error) {
	return New(DefaultConfig()).Run(source, env)
}

// DefaultConfig returns the spec's defaults: no row cap, 10-row previews,
// warn-level logging.
func DefaultConfig() Config {
	return Config{MaxRows: 0, MaxPreview: 10}
}
