package raedu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewudata/ra-edu-toolkit/raerrors"
	"github.com/ewudata/ra-edu-toolkit/relation"
)

func TestRun_ParsesAndEvaluatesInOneCall(t *testing.T) {
	env := relation.NewEnvironment()
	env.Put("students", relation.FromColumns("students", []string{"id", "name"}, []map[string]any{
		{"id": 1, "name": "ada"},
		{"id": 2, "name": "bo"},
	}))

	rel, tr, err := Run(`π{name}(students)`, env)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, rel.Schema)
	assert.Len(t, rel.Rows, 2)
	require.Len(t, tr, 2)
	assert.Equal(t, "rel", tr[0].Op)
	assert.Equal(t, "π", tr[1].Op)
}

func TestRun_ParseErrorShortCircuitsBeforeEvaluation(t *testing.T) {
	env := relation.NewEnvironment()
	_, tr, err := Run(`π{(students)`, env)
	require.Error(t, err)
	assert.Nil(t, tr)
	perr, ok := err.(*raerrors.ParseError)
	require.True(t, ok)
	require.True(t, raerrors.ErrParse.Is(perr.Unwrap()))
}

func TestEngine_ConfigBoundsRowCount(t *testing.T) {
	env := relation.NewEnvironment()
	env.Put("students", relation.FromColumns("students", []string{"id"}, []map[string]any{
		{"id": 1}, {"id": 2}, {"id": 3},
	}))
	en := New(Config{MaxRows: 2})
	_, _, err := en.Run("students", env)
	require.Error(t, err)
	require.True(t, raerrors.ErrRowLimitExceeded.Is(err))
}
