// Package eval implements the Evaluator of spec §4.4: a recursive
// interpreter over package ast's operator tree that reads from a
// relation.Environment, builds a relation.Relation for each node, and
// appends one trace.Record per node visited in post-order.
package eval

import (
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ewudata/ra-edu-toolkit/ast"
	"github.com/ewudata/ra-edu-toolkit/predicate"
	"github.com/ewudata/ra-edu-toolkit/raerrors"
	"github.com/ewudata/ra-edu-toolkit/relation"
	"github.com/ewudata/ra-edu-toolkit/trace"
)

// Config bounds the cost of one evaluation, per spec §5 ("caller enforces
// limits").
type Config struct {
	// MaxRows aborts evaluation if any intermediate relation would exceed
	// this many rows. Zero means unlimited.
	MaxRows int
	// MaxPreview caps how many rows trace.Record.Preview carries. Zero
	// defaults to 10, per spec §4.5.
	MaxPreview int
}

// DefaultConfig returns the spec's default bounds (no row cap, 10-row
// previews).
func DefaultConfig() Config {
	return Config{MaxRows: 0, MaxPreview: 10}
}

// Evaluator holds everything one call to Evaluate needs: the read-only
// environment, the trace recorder it is filling in, and the ambient
// logging/tracing collaborators.
type Evaluator struct {
	Env    relation.Environment
	Config Config
	Log    *logrus.Logger
	Tracer opentracing.Tracer

	rec *trace.Recorder
}

// New returns an Evaluator over env with default configuration, a
// logrus.Logger at Warn level (silent on the happy path, following the
// teacher's auth/audit.go convention of taking a *logrus.Logger rather
// than the package-level logger), and opentracing's no-op tracer.
func New(env relation.Environment) *Evaluator {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return &Evaluator{
		Env:    env,
		Config: DefaultConfig(),
		Log:    log,
		Tracer: opentracing.NoopTracer{},
	}
}

// Evaluate walks ast into a relation.Relation, returning the trace
// accumulated so far even when it returns a non-nil error (spec §7:
// "partial traces are explicitly permitted").
func (e *Evaluator) Evaluate(node ast.Node) (relation.Relation, trace.Trace, error) {
	if e.rec == nil {
		e.rec = trace.NewRecorder()
	}
	if e.Log == nil {
		e.Log = logrus.StandardLogger()
	}
	if e.Tracer == nil {
		e.Tracer = opentracing.NoopTracer{}
	}

	span := e.Tracer.StartSpan("relalg.evaluate")
	defer span.Finish()

	rel, err := e.visit(span, node)
	return rel, e.rec.Trace(), err
}

func (e *Evaluator) checkRowLimit(rel relation.Relation) error {
	if e.Config.MaxRows > 0 && len(rel.Rows) > e.Config.MaxRows {
		return raerrors.ErrRowLimitExceeded.New(e.Config.MaxRows)
	}
	return nil
}

func (e *Evaluator) previewLimit() int {
	if e.Config.MaxPreview > 0 {
		return e.Config.MaxPreview
	}
	return 10
}

func (e *Evaluator) visit(parent opentracing.Span, node ast.Node) (relation.Relation, error) {
	switch n := node.(type) {
	case ast.Relation:
		return e.visitRelation(parent, n)
	case ast.Project:
		return e.visitProject(parent, n)
	case ast.Select:
		return e.visitSelect(parent, n)
	case ast.Rename:
		return e.visitRename(parent, n)
	case ast.Join:
		return e.visitJoin(parent, n)
	case ast.Product:
		return e.visitProduct(parent, n)
	case ast.Union:
		return e.visitUnion(parent, n)
	case ast.Difference:
		return e.visitDifference(parent, n)
	case ast.Intersection:
		return e.visitIntersection(parent, n)
	case ast.Division:
		return e.visitDivision(parent, n)
	default:
		return relation.Relation{}, fmt.Errorf("eval: unsupported node type %T", node)
	}
}

func (e *Evaluator) startSpan(parent opentracing.Span, op string) opentracing.Span {
	return e.Tracer.StartSpan("relalg."+op, opentracing.ChildOf(spanContext(parent)))
}

func spanContext(parent opentracing.Span) opentracing.SpanContext {
	if parent == nil {
		return nil
	}
	return parent.Context()
}

func (e *Evaluator) logNode(op string, rel relation.Relation) {
	e.Log.WithFields(logrus.Fields{"op": op, "rows_after": len(rel.Rows)}).Debug("evaluated relational-algebra node")
}

func (e *Evaluator) visitRelation(parent opentracing.Span, n ast.Relation) (relation.Relation, error) {
	span := e.startSpan(parent, "rel")
	defer span.Finish()

	rel, ok := e.Env.Lookup(n.Name)
	if !ok {
		available := e.Env.Names()
		return relation.Relation{}, raerrors.ErrUnknownRelation.New(n.Name, joinOrNone(available))
	}
	out := rel.AliasAs(n.Name)
	if err := e.checkRowLimit(out); err != nil {
		return relation.Relation{}, err
	}

	e.rec.Append(trace.Record{
		Op:           "rel",
		Detail:       map[string]any{"relation": n.Name},
		OutputSchema: out.Schema,
		Delta:        &trace.Delta{RowsAfter: len(out.Rows)},
		Preview:      out.Preview(e.previewLimit()),
	})
	e.logNode("rel", out)
	span.SetTag("ra.op", "rel")
	span.SetTag("ra.rows_after", len(out.Rows))
	return out, nil
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "<none>"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

func (e *Evaluator) visitProject(parent opentracing.Span, n ast.Project) (relation.Relation, error) {
	span := e.startSpan(parent, "π")
	defer span.Finish()

	sub, err := e.visit(span, n.Sub)
	if err != nil {
		return relation.Relation{}, err
	}
	for _, a := range n.Attrs {
		if !sub.HasAttr(a) {
			return relation.Relation{}, raerrors.ErrMissingAttribute.New(a, sub.SchemaString())
		}
	}
	out := sub.Project(n.Attrs)
	if err := e.checkRowLimit(out); err != nil {
		return relation.Relation{}, err
	}

	before := len(sub.Rows)
	e.rec.Append(trace.Record{
		Op:           "π",
		Detail:       map[string]any{"attrs": n.Attrs},
		InputSchema:  sub.Schema,
		OutputSchema: out.Schema,
		Delta: &trace.Delta{
			RowsBefore: &before,
			RowsAfter:  len(out.Rows),
			Note:       "Projection drops non-listed attributes and removes duplicates.",
		},
		Preview: out.Preview(e.previewLimit()),
	})
	e.logNode("π", out)
	span.SetTag("ra.op", "π")
	span.SetTag("ra.rows_after", len(out.Rows))
	return out, nil
}

func (e *Evaluator) visitSelect(parent opentracing.Span, n ast.Select) (relation.Relation, error) {
	span := e.startSpan(parent, "σ")
	defer span.Finish()

	sub, err := e.visit(span, n.Sub)
	if err != nil {
		return relation.Relation{}, err
	}

	expr, err := predicate.Parse(n.Cond)
	if err != nil {
		return relation.Relation{}, errors.Wrap(raerrors.ErrPredicate.New(err.Error()), "σ")
	}

	kept := make([]relation.Row, 0, len(sub.Rows))
	for _, row := range sub.Rows {
		ok, err := predicate.Eval(expr, predicate.Bindings{Cells: row.Cells, Aliases: sub.Aliases})
		if err != nil {
			return relation.Relation{}, errors.Wrap(raerrors.ErrPredicate.New(err.Error()), "σ")
		}
		if ok {
			kept = append(kept, row)
		}
	}
	out := relation.Relation{Schema: sub.Schema, Rows: kept, Aliases: sub.Aliases}
	if err := e.checkRowLimit(out); err != nil {
		return relation.Relation{}, err
	}

	before := len(sub.Rows)
	e.rec.Append(trace.Record{
		Op:           "σ",
		Detail:       map[string]any{"cond": n.Cond},
		InputSchema:  sub.Schema,
		OutputSchema: out.Schema,
		Delta: &trace.Delta{
			RowsBefore: &before,
			RowsAfter:  len(out.Rows),
			Note:       "Selection keeps rows satisfying the predicate; schema unchanged.",
		},
		Preview: out.Preview(e.previewLimit()),
	})
	e.logNode("σ", out)
	span.SetTag("ra.op", "σ")
	span.SetTag("ra.rows_after", len(out.Rows))
	return out, nil
}

func (e *Evaluator) visitRename(parent opentracing.Span, n ast.Rename) (relation.Relation, error) {
	span := e.startSpan(parent, "ρ")
	defer span.Finish()

	sub, err := e.visit(span, n.Sub)
	if err != nil {
		return relation.Relation{}, err
	}

	alias := n.Alias
	pairs := n.Pairs
	if alias == "" && len(pairs) > 0 && !sub.HasAttr(pairs[0][0]) {
		// Legacy form (spec §4.4.4 / SPEC_FULL.md supplemented feature #1):
		// a bare {old->new} pair whose "old" does not name a real attribute
		// is reinterpreted as the relation-alias name "new".
		alias = pairs[0][1]
		pairs = pairs[1:]
	}

	out, err := sub.Rename(pairs, alias)
	if err != nil {
		return relation.Relation{}, err
	}
	if err := e.checkRowLimit(out); err != nil {
		return relation.Relation{}, err
	}

	renamePairs := make([][]string, len(pairs))
	for i, p := range pairs {
		renamePairs[i] = []string{p[0], p[1]}
	}
	detail := map[string]any{"renames": renamePairs}
	if alias != "" {
		detail["relation"] = alias
	}
	e.rec.Append(trace.Record{
		Op:           "ρ",
		Detail:       detail,
		InputSchema:  sub.Schema,
		OutputSchema: out.Schema,
		Delta:        &trace.Delta{RowsAfter: len(out.Rows)},
		Preview:      out.Preview(e.previewLimit()),
	})
	e.logNode("ρ", out)
	span.SetTag("ra.op", "ρ")
	span.SetTag("ra.rows_after", len(out.Rows))
	return out, nil
}

func (e *Evaluator) visitJoin(parent opentracing.Span, n ast.Join) (relation.Relation, error) {
	op := "⋈"
	if n.Theta != nil {
		op = "⋈_θ"
	}
	span := e.startSpan(parent, op)
	defer span.Finish()

	left, err := e.visit(span, n.Left)
	if err != nil {
		return relation.Relation{}, err
	}
	right, err := e.visit(span, n.Right)
	if err != nil {
		return relation.Relation{}, err
	}

	var out relation.Relation
	var detail map[string]any
	if n.Theta != nil {
		product, err := left.Cross(right)
		if err != nil {
			return relation.Relation{}, err
		}
		expr, err := predicate.Parse(*n.Theta)
		if err != nil {
			return relation.Relation{}, errors.Wrap(raerrors.ErrPredicate.New(err.Error()), "⋈_θ")
		}
		kept := make([]relation.Row, 0, len(product.Rows))
		for _, row := range product.Rows {
			ok, err := predicate.Eval(expr, predicate.Bindings{Cells: row.Cells, Aliases: product.Aliases})
			if err != nil {
				return relation.Relation{}, errors.Wrap(raerrors.ErrPredicate.New(err.Error()), "⋈_θ")
			}
			if ok {
				kept = append(kept, row)
			}
		}
		out = relation.Relation{Schema: product.Schema, Rows: kept, Aliases: product.Aliases}
		detail = map[string]any{"cond": *n.Theta}
	} else {
		common := relation.CommonAttrs(left.Schema, right.Schema)
		if len(common) == 0 {
			out, err = left.Cross(right)
			detail = map[string]any{"on_common_names": true, "common_attrs": []string{}}
		} else {
			out, err = left.EquiJoin(common, right)
			detail = map[string]any{"on_common_names": true, "common_attrs": common}
		}
		if err != nil {
			return relation.Relation{}, err
		}
	}
	if err := e.checkRowLimit(out); err != nil {
		return relation.Relation{}, err
	}

	e.rec.Append(trace.Record{
		Op:           op,
		Detail:       detail,
		InputSchema:  &trace.SchemaPair{Left: left.Schema, Right: right.Schema},
		OutputSchema: out.Schema,
		Delta:        &trace.Delta{RowsAfter: len(out.Rows)},
		Preview:      out.Preview(e.previewLimit()),
	})
	e.logNode(op, out)
	span.SetTag("ra.op", op)
	span.SetTag("ra.rows_after", len(out.Rows))
	return out, nil
}

func (e *Evaluator) visitProduct(parent opentracing.Span, n ast.Product) (relation.Relation, error) {
	span := e.startSpan(parent, "×")
	defer span.Finish()

	left, err := e.visit(span, n.Left)
	if err != nil {
		return relation.Relation{}, err
	}
	right, err := e.visit(span, n.Right)
	if err != nil {
		return relation.Relation{}, err
	}
	out, err := left.Cross(right)
	if err != nil {
		return relation.Relation{}, err
	}
	if err := e.checkRowLimit(out); err != nil {
		return relation.Relation{}, err
	}

	e.rec.Append(trace.Record{
		Op:           "×",
		InputSchema:  &trace.SchemaPair{Left: left.Schema, Right: right.Schema},
		OutputSchema: out.Schema,
		Delta:        &trace.Delta{RowsAfter: len(out.Rows)},
		Preview:      out.Preview(e.previewLimit()),
	})
	e.logNode("×", out)
	span.SetTag("ra.op", "×")
	span.SetTag("ra.rows_after", len(out.Rows))
	return out, nil
}

func (e *Evaluator) visitUnion(parent opentracing.Span, n ast.Union) (relation.Relation, error) {
	span := e.startSpan(parent, "∪")
	defer span.Finish()

	left, err := e.visit(span, n.Left)
	if err != nil {
		return relation.Relation{}, err
	}
	right, err := e.visit(span, n.Right)
	if err != nil {
		return relation.Relation{}, err
	}
	if !relation.SameSchema(left.Schema, right.Schema) {
		return relation.Relation{}, raerrors.ErrUnionIncompatible.New(left.SchemaString(), right.SchemaString())
	}

	out := left.ConcatRows(right).Dedupe()
	out.Aliases = relation.CombineAliases(out.Schema, left.Aliases, right.Aliases)
	if err := e.checkRowLimit(out); err != nil {
		return relation.Relation{}, err
	}

	e.rec.Append(trace.Record{
		Op:           "∪",
		InputSchema:  &trace.SchemaPair{Left: left.Schema, Right: right.Schema},
		OutputSchema: out.Schema,
		Delta:        &trace.Delta{RowsAfter: len(out.Rows)},
		Preview:      out.Preview(e.previewLimit()),
	})
	e.logNode("∪", out)
	span.SetTag("ra.op", "∪")
	span.SetTag("ra.rows_after", len(out.Rows))
	return out, nil
}

func (e *Evaluator) visitDifference(parent opentracing.Span, n ast.Difference) (relation.Relation, error) {
	span := e.startSpan(parent, "−")
	defer span.Finish()

	left, err := e.visit(span, n.Left)
	if err != nil {
		return relation.Relation{}, err
	}
	right, err := e.visit(span, n.Right)
	if err != nil {
		return relation.Relation{}, err
	}
	if !relation.SameSchema(left.Schema, right.Schema) {
		return relation.Relation{}, raerrors.ErrDifferenceIncompatible.New(left.SchemaString(), right.SchemaString())
	}

	out := left.Difference(right)
	if err := e.checkRowLimit(out); err != nil {
		return relation.Relation{}, err
	}

	e.rec.Append(trace.Record{
		Op:           "−",
		InputSchema:  &trace.SchemaPair{Left: left.Schema, Right: right.Schema},
		OutputSchema: out.Schema,
		Delta:        &trace.Delta{RowsAfter: len(out.Rows)},
		Preview:      out.Preview(e.previewLimit()),
	})
	e.logNode("−", out)
	span.SetTag("ra.op", "−")
	span.SetTag("ra.rows_after", len(out.Rows))
	return out, nil
}

func (e *Evaluator) visitIntersection(parent opentracing.Span, n ast.Intersection) (relation.Relation, error) {
	span := e.startSpan(parent, "∩")
	defer span.Finish()

	left, err := e.visit(span, n.Left)
	if err != nil {
		return relation.Relation{}, err
	}
	right, err := e.visit(span, n.Right)
	if err != nil {
		return relation.Relation{}, err
	}
	if !relation.SameSchema(left.Schema, right.Schema) {
		return relation.Relation{}, raerrors.ErrIntersectionIncompatible.New(left.SchemaString(), right.SchemaString())
	}

	out := left.Intersect(right)
	if err := e.checkRowLimit(out); err != nil {
		return relation.Relation{}, err
	}

	e.rec.Append(trace.Record{
		Op:           "∩",
		InputSchema:  &trace.SchemaPair{Left: left.Schema, Right: right.Schema},
		OutputSchema: out.Schema,
		Delta:        &trace.Delta{RowsAfter: len(out.Rows)},
		Preview:      out.Preview(e.previewLimit()),
	})
	e.logNode("∩", out)
	span.SetTag("ra.op", "∩")
	span.SetTag("ra.rows_after", len(out.Rows))
	return out, nil
}

func (e *Evaluator) visitDivision(parent opentracing.Span, n ast.Division) (relation.Relation, error) {
	span := e.startSpan(parent, "÷")
	defer span.Finish()

	dividend, err := e.visit(span, n.Left)
	if err != nil {
		return relation.Relation{}, err
	}
	divisor, err := e.visit(span, n.Right)
	if err != nil {
		return relation.Relation{}, err
	}

	divisorSet := make(map[string]bool, len(divisor.Schema))
	for _, a := range divisor.Schema {
		divisorSet[a] = true
	}
	for _, a := range divisor.Schema {
		if !dividend.HasAttr(a) {
			return relation.Relation{}, raerrors.ErrDivisionIncompatible.New(divisor.SchemaString(), dividend.SchemaString())
		}
	}
	var quotientAttrs []string
	for _, a := range dividend.Schema {
		if !divisorSet[a] {
			quotientAttrs = append(quotientAttrs, a)
		}
	}
	if len(quotientAttrs) == 0 {
		return relation.Relation{}, raerrors.ErrDivisionEmptyQuotient.New()
	}

	candidates := dividend.Project(quotientAttrs)
	required := divisor.Project(divisor.Schema)

	var out relation.Relation
	if len(required.Rows) == 0 {
		out = candidates
	} else {
		fullCols := append(append([]string(nil), quotientAttrs...), divisor.Schema...)
		actual := dividend.Project(fullCols)
		idx := relation.NewRowIndex(actual)

		kept := make([]relation.Row, 0, len(candidates.Rows))
		for _, q := range candidates.Rows {
			satisfiesAll := true
			for _, r := range required.Rows {
				combined := make(map[string]any, len(fullCols))
				for _, a := range quotientAttrs {
					combined[a] = q.Cells[a]
				}
				for _, a := range divisor.Schema {
					combined[a] = r.Cells[a]
				}
				if !idx.Contains(combined) {
					satisfiesAll = false
					break
				}
			}
			if satisfiesAll {
				kept = append(kept, q)
			}
		}
		out = relation.Relation{Schema: quotientAttrs, Rows: kept, Aliases: candidates.Aliases}
	}
	if err := e.checkRowLimit(out); err != nil {
		return relation.Relation{}, err
	}

	e.rec.Append(trace.Record{
		Op:           "÷",
		Detail:       map[string]any{"quotient_attrs": quotientAttrs, "divisor_attrs": divisor.Schema},
		InputSchema:  &trace.SchemaPair{Left: dividend.Schema, Right: divisor.Schema},
		OutputSchema: out.Schema,
		Delta:        &trace.Delta{RowsAfter: len(out.Rows)},
		Preview:      out.Preview(e.previewLimit()),
	})
	e.logNode("÷", out)
	span.SetTag("ra.op", "÷")
	span.SetTag("ra.rows_after", len(out.Rows))
	return out, nil
}
