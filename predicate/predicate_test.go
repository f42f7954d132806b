package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewudata/ra-edu-toolkit/raerrors"
)

func TestParse_SimpleComparison(t *testing.T) {
	expr, err := Parse("age > 18")
	require.NoError(t, err)
	cmp, ok := expr.(Compare)
	require.True(t, ok)
	assert.Equal(t, CmpGt, cmp.Op)
	assert.Equal(t, Ident{Attr: "age"}, cmp.Left)
	assert.Equal(t, NumberLit{Value: 18}, cmp.Right)
}

func TestParse_QualifiedIdentifier(t *testing.T) {
	expr, err := Parse("s.name = \"ada\"")
	require.NoError(t, err)
	cmp := expr.(Compare)
	assert.Equal(t, Ident{Alias: "s", Attr: "name"}, cmp.Left)
	assert.Equal(t, StringLit{Value: "ada"}, cmp.Right)
}

func TestParse_AndOrNotPrecedenceAndParens(t *testing.T) {
	expr, err := Parse("a = 1 and b = 2 or not (c = 3)")
	require.NoError(t, err)
	or, ok := expr.(Or)
	require.True(t, ok)
	require.Len(t, or.Operands, 2)
	_, ok = or.Operands[0].(And)
	assert.True(t, ok)
	_, ok = or.Operands[1].(Not)
	assert.True(t, ok)
}

func TestParse_BareBooleanLiteral(t *testing.T) {
	expr, err := Parse("true")
	require.NoError(t, err)
	assert.Equal(t, BoolLiteral{Value: true}, expr)

	expr, err = Parse("false")
	require.NoError(t, err)
	assert.Equal(t, BoolLiteral{Value: false}, expr)
}

func TestParse_TrailingInputIsAnError(t *testing.T) {
	_, err := Parse("a = 1 b = 2")
	require.Error(t, err)
	perr, ok := err.(*raerrors.ParseError)
	require.True(t, ok)
	require.True(t, raerrors.ErrParse.Is(perr.Unwrap()))
}

func TestParse_MissingOperandIsAnError(t *testing.T) {
	_, err := Parse("a =")
	require.Error(t, err)
	perr, ok := err.(*raerrors.ParseError)
	require.True(t, ok)
	require.True(t, raerrors.ErrParse.Is(perr.Unwrap()))
}

func TestEval_CrossDomainComparisonIsFalse(t *testing.T) {
	expr, err := Parse("a = b")
	require.NoError(t, err)
	ok, err := Eval(expr, Bindings{Cells: map[string]any{"a": 1.0, "b": "1"}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEval_AbsentOperandIsFalse(t *testing.T) {
	expr, err := Parse("a = 1")
	require.NoError(t, err)
	ok, err := Eval(expr, Bindings{Cells: map[string]any{"a": nil}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEval_StringOrdering(t *testing.T) {
	expr, err := Parse("name < \"bo\"")
	require.NoError(t, err)
	ok, err := Eval(expr, Bindings{Cells: map[string]any{"name": "ada"}})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_AmbiguousUnqualifiedAttribute(t *testing.T) {
	expr, err := Parse("id = 1")
	require.NoError(t, err)
	_, err = Eval(expr, Bindings{
		Cells:   map[string]any{"id": 1.0},
		Aliases: map[string][]string{"a": {"id"}, "b": {"id"}},
	})
	require.Error(t, err)
	require.True(t, raerrors.ErrAmbiguousAttribute.Is(err))
}

func TestEval_QualifiedReferenceResolvesThroughAlias(t *testing.T) {
	expr, err := Parse("s.id = 1")
	require.NoError(t, err)
	ok, err := Eval(expr, Bindings{
		Cells:   map[string]any{"id": 1.0},
		Aliases: map[string][]string{"s": {"id"}},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_AndShortCircuits(t *testing.T) {
	expr, err := Parse("a = 1 and b = 2")
	require.NoError(t, err)
	// b is never bound; a false left operand must short-circuit before b
	// is resolved, or this would fail with ErrUndefinedAttribute instead.
	ok, err := Eval(expr, Bindings{Cells: map[string]any{"a": 2.0}})
	require.NoError(t, err)
	assert.False(t, ok)
}
