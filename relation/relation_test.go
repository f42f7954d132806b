package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func studentsFixture() Relation {
	return FromColumns("students", []string{"id", "name"}, []map[string]any{
		{"id": 1, "name": "ada"},
		{"id": 2, "name": "bo"},
	})
}

func TestFromColumns_LowercasesSchemaAndSeedsProvenance(t *testing.T) {
	rel := studentsFixture()
	assert.Equal(t, []string{"id", "name"}, rel.Schema)
	require.Len(t, rel.Rows, 2)
	assert.Equal(t, []ProvenanceTag{{Relation: "students", RowIndex: 0}}, rel.Rows[0].Prov)
	assert.Equal(t, map[string][]string{"students": {"id", "name"}}, rel.Aliases)
}

func TestProject_DropsColumnsAndDedupes(t *testing.T) {
	rel := FromColumns("students", []string{"id", "name"}, []map[string]any{
		{"id": 1, "name": "ada"},
		{"id": 2, "name": "ada"},
	})
	got := rel.Project([]string{"name"})
	assert.Equal(t, []string{"name"}, got.Schema)
	require.Len(t, got.Rows, 1)
	v, ok := got.Rows[0].Get("name")
	require.True(t, ok)
	assert.Equal(t, "ada", v)
	// provenance of the deduped row carries both source rows
	assert.Len(t, got.Rows[0].Prov, 2)
}

func TestRename_RenamesColumnAndRejectsMissing(t *testing.T) {
	rel := studentsFixture()
	renamed, err := rel.Rename([][2]string{{"name", "fullname"}}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "fullname"}, renamed.Schema)
	v, ok := renamed.Rows[0].Get("fullname")
	require.True(t, ok)
	assert.Equal(t, "ada", v)

	_, err = rel.Rename([][2]string{{"nope", "x"}}, "")
	require.Error(t, err)
}

func TestRename_CollisionIsRejected(t *testing.T) {
	rel := studentsFixture()
	_, err := rel.Rename([][2]string{{"id", "name"}}, "")
	require.Error(t, err)
}

func TestRename_ExplicitAliasReplacesAliasMap(t *testing.T) {
	rel := studentsFixture()
	renamed, err := rel.Rename(nil, "s2")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"s2": {"id", "name"}}, renamed.Aliases)
}

func TestCross_SuffixesCollidingRightAttributes(t *testing.T) {
	a := studentsFixture()
	b := FromColumns("mentors", []string{"id", "name"}, []map[string]any{
		{"id": 9, "name": "zed"},
	})
	got, err := a.Cross(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "id_r", "name_r"}, got.Schema)
	assert.Len(t, got.Rows, 2)
}

func TestEquiJoin_MatchesOnCommonAttributes(t *testing.T) {
	enroll := FromColumns("enroll", []string{"sid", "cid"}, []map[string]any{
		{"sid": 1, "cid": "cs1"},
		{"sid": 2, "cid": "cs2"},
	})
	students := studentsFixture()
	renamed, err := students.Rename([][2]string{{"id", "sid"}}, "")
	require.NoError(t, err)
	got, err := renamed.EquiJoin([]string{"sid"}, enroll)
	require.NoError(t, err)
	assert.Equal(t, []string{"sid", "name", "cid"}, got.Schema)
	assert.Len(t, got.Rows, 2)
}

func TestIntersectAndDifference(t *testing.T) {
	a := FromColumns("a", []string{"x"}, []map[string]any{{"x": 1}, {"x": 2}})
	b := FromColumns("b", []string{"x"}, []map[string]any{{"x": 2}, {"x": 3}})

	inter := a.Intersect(b)
	require.Len(t, inter.Rows, 1)
	v, _ := inter.Rows[0].Get("x")
	assert.Equal(t, 2, v)

	diff := a.Difference(b)
	require.Len(t, diff.Rows, 1)
	v, _ = diff.Rows[0].Get("x")
	assert.Equal(t, 1, v)
}

func TestIntersectAndDifference_DuplicateLeftRowsConcatenateProvenance(t *testing.T) {
	a := FromColumns("a", []string{"x"}, []map[string]any{{"x": 1}, {"x": 1}, {"x": 2}})
	b := FromColumns("b", []string{"x"}, []map[string]any{{"x": 1}})

	inter := a.Intersect(b)
	require.Len(t, inter.Rows, 1)
	v, _ := inter.Rows[0].Get("x")
	assert.Equal(t, 1, v)
	// two distinct a-rows (x=1) plus the matched b-row.
	assert.Len(t, inter.Rows[0].Prov, 3)

	diff := a.Difference(b)
	require.Len(t, diff.Rows, 1)
	v, _ = diff.Rows[0].Get("x")
	assert.Equal(t, 2, v)
	assert.Len(t, diff.Rows[0].Prov, 1)

	// exercise the non-excluded duplicate case too: neither a-row (x=1)
	// would be matched by an empty b, so both surviving provenance tags
	// must reach the single collapsed output row.
	diffNoMatch := a.Difference(Empty([]string{"x"}))
	require.Len(t, diffNoMatch.Rows, 2)
	for _, row := range diffNoMatch.Rows {
		v, _ := row.Get("x")
		if v == 1 {
			assert.Len(t, row.Prov, 2)
		} else {
			assert.Len(t, row.Prov, 1)
		}
	}
}

func TestRowIndex_Contains(t *testing.T) {
	rel := FromColumns("req", []string{"cid"}, []map[string]any{{"cid": "cs1"}, {"cid": "cs2"}})
	idx := NewRowIndex(rel)
	assert.True(t, idx.Contains(map[string]any{"cid": "cs1"}))
	assert.False(t, idx.Contains(map[string]any{"cid": "cs9"}))
}

func TestDedupe_MergesEqualTuplesAndConcatenatesProvenance(t *testing.T) {
	rel := Relation{
		Schema: []string{"x"},
		Rows: []Row{
			{Cells: map[string]any{"x": 1}, Prov: []ProvenanceTag{{Relation: "a", RowIndex: 0}}},
			{Cells: map[string]any{"x": 1}, Prov: []ProvenanceTag{{Relation: "a", RowIndex: 1}}},
		},
	}
	got := rel.Dedupe()
	require.Len(t, got.Rows, 1)
	assert.Len(t, got.Rows[0].Prov, 2)
}
