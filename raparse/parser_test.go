package raparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewudata/ra-edu-toolkit/ast"
	"github.com/ewudata/ra-edu-toolkit/raerrors"
)

func TestParse_ProjectionOverRelation(t *testing.T) {
	node, err := Parse("π{name, id}(students)")
	require.NoError(t, err)
	proj, ok := node.(ast.Project)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "id"}, proj.Attrs)
	assert.Equal(t, ast.Relation{Name: "students"}, proj.Sub)
}

func TestParse_AsciiSynonymsMatchGlyphs(t *testing.T) {
	glyph, err := Parse("σ{id = 1}(students)")
	require.NoError(t, err)
	ascii, err := Parse("sigma{id = 1}(students)")
	require.NoError(t, err)
	assert.Equal(t, glyph, ascii)
}

func TestParse_NaturalJoinAndThetaJoin(t *testing.T) {
	node, err := Parse("students ⋈ enroll")
	require.NoError(t, err)
	j, ok := node.(ast.Join)
	require.True(t, ok)
	assert.Nil(t, j.Theta)

	node, err = Parse("students ⋈{students.id = enroll.sid} enroll")
	require.NoError(t, err)
	j, ok = node.(ast.Join)
	require.True(t, ok)
	require.NotNil(t, j.Theta)
	assert.Equal(t, "students.id = enroll.sid", *j.Theta)
}

func TestParse_RenameWithAliasAndPairs(t *testing.T) {
	node, err := Parse("ρ e2{sid->id}(enroll)")
	require.NoError(t, err)
	r, ok := node.(ast.Rename)
	require.True(t, ok)
	assert.Equal(t, "e2", r.Alias)
	assert.Equal(t, [][2]string{{"sid", "id"}}, r.Pairs)
}

func TestParse_LeftAssociativeBinaryChain(t *testing.T) {
	node, err := Parse("a ∪ b ∪ c")
	require.NoError(t, err)
	outer, ok := node.(ast.Union)
	require.True(t, ok)
	inner, ok := outer.Left.(ast.Union)
	require.True(t, ok)
	assert.Equal(t, ast.Relation{Name: "a"}, inner.Left)
	assert.Equal(t, ast.Relation{Name: "b"}, inner.Right)
	assert.Equal(t, ast.Relation{Name: "c"}, outer.Right)
}

func TestParse_ReservedKeywordCannotBeARelationName(t *testing.T) {
	_, err := Parse("join")
	require.Error(t, err)
	perr, ok := err.(*raerrors.ParseError)
	require.True(t, ok)
	require.True(t, raerrors.ErrParse.Is(perr.Unwrap()))
}

func TestParse_UnterminatedBraceIsAnError(t *testing.T) {
	_, err := Parse("σ{id = 1(students)")
	require.Error(t, err)
	perr, ok := err.(*raerrors.ParseError)
	require.True(t, ok)
	require.True(t, raerrors.ErrParse.Is(perr.Unwrap()))
}

func TestParse_ParenthesizedSubexpressionAllowsNestedUnary(t *testing.T) {
	node, err := Parse("π{name}(σ{id = 1}(students))")
	require.NoError(t, err)
	proj, ok := node.(ast.Project)
	require.True(t, ok)
	_, ok = proj.Sub.(ast.Select)
	assert.True(t, ok)
}
