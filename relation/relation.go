// Package relation implements the columnar table value at the bottom of
// the engine (spec §3, §4.1): an ordered attribute schema, a row sequence,
// a per-row provenance trail, and the pure combinators the evaluator
// composes (project, rename, cross, equiJoin, dedupe, concatRows).
//
// Relation values are immutable: every combinator returns a fresh
// Relation and never mutates its receiver or argument.
package relation

import (
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure"

	"github.com/ewudata/ra-edu-toolkit/raerrors"
)

// ProvenanceTag names one base-relation row that contributed to a result row.
type ProvenanceTag struct {
	Relation string
	RowIndex int
}

// Row is one tuple of a Relation: a cell value per schema attribute plus
// the provenance trail accumulated by the operators that produced it.
// Cells are keyed by lowercase attribute name; absent values are nil.
type Row struct {
	Cells map[string]any
	Prov  []ProvenanceTag
}

// Get returns the cell value for attr and whether it is present (as
// opposed to simply absent-but-present, which also returns ok=true with a
// nil value — every schema attribute has a slot in every row per spec §3).
func (r Row) Get(attr string) (any, bool) {
	v, ok := r.Cells[strings.ToLower(attr)]
	return v, ok
}

func cloneCells(c map[string]any) map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func cloneProv(p []ProvenanceTag) []ProvenanceTag {
	out := make([]ProvenanceTag, len(p))
	copy(out, p)
	return out
}

func concatProv(a, b []ProvenanceTag) []ProvenanceTag {
	out := make([]ProvenanceTag, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// Relation is the table value: an ordered schema, a row sequence, and a
// mapping from alias name to the subset of schema attributes that
// originated under that alias (spec §3).
type Relation struct {
	Schema  []string
	Rows    []Row
	Aliases map[string][]string
}

// Empty returns a relation with the given schema and no rows.
func Empty(schema []string) Relation {
	return Relation{Schema: append([]string(nil), schema...), Rows: nil, Aliases: map[string][]string{}}
}

// FromColumns builds a base Relation from an ordered schema and a slice of
// rows given as attribute->value maps, seeding each row's provenance with
// a single tag (relName, rowIndex) per spec §3 "Base relation lookup".
func FromColumns(relName string, schema []string, rows []map[string]any) Relation {
	lowerSchema := make([]string, len(schema))
	for i, a := range schema {
		lowerSchema[i] = strings.ToLower(a)
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		cells := make(map[string]any, len(lowerSchema))
		for _, a := range lowerSchema {
			v, ok := r[a]
			if !ok {
				v = r[strings.ToUpper(a)]
			}
			cells[a] = v
		}
		out[i] = Row{Cells: cells, Prov: []ProvenanceTag{{Relation: relName, RowIndex: i}}}
	}
	return Relation{
		Schema:  lowerSchema,
		Rows:    out,
		Aliases: map[string][]string{strings.ToLower(relName): append([]string(nil), lowerSchema...)},
	}
}

// HasAttr reports whether attr (case-insensitive) is part of the schema.
func (rel Relation) HasAttr(attr string) bool {
	attr = strings.ToLower(attr)
	for _, a := range rel.Schema {
		if a == attr {
			return true
		}
	}
	return false
}

// SchemaString renders the schema as "[a, b, c]" for error messages.
func (rel Relation) SchemaString() string {
	return "[" + strings.Join(rel.Schema, ", ") + "]"
}

// Project returns a new relation restricted to attrs, in the given order,
// deduplicated under schema-tuple equality with provenance merged across
// duplicate rows in first-seen order (spec §4.4.2).
func (rel Relation) Project(attrs []string) Relation {
	lower := make([]string, len(attrs))
	for i, a := range attrs {
		lower[i] = strings.ToLower(a)
	}
	rows := make([]Row, 0, len(rel.Rows))
	for _, r := range rel.Rows {
		cells := make(map[string]any, len(lower))
		for _, a := range lower {
			cells[a] = r.Cells[a]
		}
		rows = append(rows, Row{Cells: cells, Prov: cloneProv(r.Prov)})
	}
	out := Relation{Schema: lower, Rows: rows, Aliases: restrictAliases(rel.Aliases, lower)}
	return out.Dedupe()
}

// restrictAliases keeps only the attributes of each alias that still exist
// in cols, dropping an alias entirely if none of its attributes survive.
func restrictAliases(aliases map[string][]string, cols []string) map[string][]string {
	colSet := make(map[string]bool, len(cols))
	for _, c := range cols {
		colSet[c] = true
	}
	out := map[string][]string{}
	for alias, attrs := range aliases {
		var kept []string
		for _, a := range attrs {
			if colSet[a] {
				kept = append(kept, a)
			}
		}
		if len(kept) > 0 {
			out[alias] = kept
		}
	}
	return out
}

// Rename applies ordered (old,new) column renames, requiring each old to
// exist in the current schema and each new to not collide. If alias is
// non-empty, aliases collapses to {alias: schema-after}, discarding prior
// bindings (spec §4.4.4).
func (rel Relation) Rename(pairs [][2]string, alias string) (Relation, error) {
	schema := append([]string(nil), rel.Schema...)
	index := map[string]int{}
	for i, a := range schema {
		index[a] = i
	}
	renameMap := map[string]string{}
	for _, p := range pairs {
		oldName, newName := strings.ToLower(p[0]), strings.ToLower(p[1])
		i, ok := index[oldName]
		if !ok {
			return Relation{}, raerrors.ErrMissingAttribute.New(oldName, rel.SchemaString())
		}
		if _, exists := index[newName]; exists && newName != oldName {
			return Relation{}, raerrors.ErrRenameCollision.New(newName)
		}
		schema[i] = newName
		delete(index, oldName)
		index[newName] = i
		renameMap[oldName] = newName
	}

	rows := make([]Row, len(rel.Rows))
	for i, r := range rel.Rows {
		cells := make(map[string]any, len(schema))
		for old, v := range r.Cells {
			n, ok := renameMap[old]
			if !ok {
				n = old
			}
			cells[n] = v
		}
		rows[i] = Row{Cells: cells, Prov: cloneProv(r.Prov)}
	}

	aliases := rel.Aliases
	if alias != "" {
		aliases = map[string][]string{strings.ToLower(alias): append([]string(nil), schema...)}
	} else {
		remapped := map[string][]string{}
		for a, cols := range rel.Aliases {
			nc := make([]string, len(cols))
			for i, c := range cols {
				if n, ok := renameMap[c]; ok {
					nc[i] = n
				} else {
					nc[i] = c
				}
			}
			remapped[a] = nc
		}
		aliases = remapped
	}
	return Relation{Schema: schema, Rows: rows, Aliases: aliases}, nil
}

// AliasAs sets aliases to {name: schema}, discarding prior bindings. Used
// by base relation lookup and by ρ's relation-only form.
func (rel Relation) AliasAs(name string) Relation {
	out := rel
	out.Aliases = map[string][]string{strings.ToLower(name): append([]string(nil), rel.Schema...)}
	return out
}

// ConcatRows appends other's rows after rel's rows, without deduplication.
// Schemas are assumed identical by the caller (union/difference/
// intersection verify this before calling).
func (rel Relation) ConcatRows(other Relation) Relation {
	rows := make([]Row, 0, len(rel.Rows)+len(other.Rows))
	rows = append(rows, rel.Rows...)
	rows = append(rows, other.Rows...)
	return Relation{Schema: rel.Schema, Rows: rows, Aliases: rel.Aliases}
}

// rowKey returns a hash of a row's cell values in schema order, used as
// the dedupe bucket key. Exact equality within a bucket is still checked
// with equalCells to guard against hash collisions.
func rowKey(schema []string, cells map[string]any) uint64 {
	vals := make([]any, len(schema))
	for i, a := range schema {
		vals[i] = cells[a]
	}
	h, err := hashstructure.Hash(vals, nil)
	if err != nil {
		// Hashing only fails on unsupported kinds (channels, funcs), which
		// never appear in cell values; fall back to a constant bucket so
		// equalCells still decides correctness, just without hash fan-out.
		return 0
	}
	return h
}

func equalCells(schema []string, a, b map[string]any) bool {
	for _, attr := range schema {
		if !equalValue(a[attr], b[attr]) {
			return false
		}
	}
	return true
}

// equalValue implements spec §4.4's set-equality rule: exact type+value,
// no coercion, with two absent (nil) cells considered equal.
func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

// Dedupe merges rows equal under schema-tuple equality, concatenating
// provenance tags in first-seen order (spec §4.1, §4.4.2).
func (rel Relation) Dedupe() Relation {
	type bucket struct {
		cells map[string]any
		prov  []ProvenanceTag
	}
	buckets := map[uint64][]*bucket{}
	order := make([]uint64, 0, len(rel.Rows))

	for _, r := range rel.Rows {
		k := rowKey(rel.Schema, r.Cells)
		existing := buckets[k]
		merged := false
		for _, b := range existing {
			if equalCells(rel.Schema, b.cells, r.Cells) {
				b.prov = concatProv(b.prov, r.Prov)
				merged = true
				break
			}
		}
		if !merged {
			if len(existing) == 0 {
				order = append(order, k)
			}
			buckets[k] = append(existing, &bucket{cells: cloneCells(r.Cells), prov: cloneProv(r.Prov)})
		}
	}

	rows := make([]Row, 0, len(rel.Rows))
	for _, k := range order {
		for _, b := range buckets[k] {
			rows = append(rows, Row{Cells: b.cells, Prov: b.prov})
		}
	}
	return Relation{Schema: rel.Schema, Rows: rows, Aliases: rel.Aliases}
}

// Cross returns the full cartesian product of rel and other. Attribute
// names shared between the two sides are disambiguated by suffixing the
// right side's copy with "_r" (spec §4.4.6, §4.4.7). If the suffixed name
// is already in rel's schema, Cross returns ErrSchemaCollision; a suffixed
// name that matches another attribute of other is not checked.
func (rel Relation) Cross(other Relation) (Relation, error) {
	leftSet := map[string]bool{}
	for _, a := range rel.Schema {
		leftSet[a] = true
	}
	rightSchema := make([]string, len(other.Schema))
	rightRename := map[string]string{}
	for i, a := range other.Schema {
		if leftSet[a] {
			suffixed := a + "_r"
			if leftSet[suffixed] {
				return Relation{}, raerrors.ErrSchemaCollision.New(suffixed)
			}
			rightSchema[i] = suffixed
			rightRename[a] = suffixed
		} else {
			rightSchema[i] = a
		}
	}
	schema := append(append([]string(nil), rel.Schema...), rightSchema...)

	rows := make([]Row, 0, len(rel.Rows)*len(other.Rows))
	for _, l := range rel.Rows {
		for _, r := range other.Rows {
			cells := make(map[string]any, len(schema))
			for k, v := range l.Cells {
				cells[k] = v
			}
			for k, v := range r.Cells {
				if n, ok := rightRename[k]; ok {
					cells[n] = v
				} else {
					cells[k] = v
				}
			}
			rows = append(rows, Row{Cells: cells, Prov: concatProv(l.Prov, r.Prov)})
		}
	}
	out := Relation{
		Schema:  schema,
		Rows:    rows,
		Aliases: CombineAliases(schema, rel.Aliases, remapAliases(other.Aliases, rightRename)),
	}
	return out, nil
}

func remapAliases(aliases map[string][]string, rename map[string]string) map[string][]string {
	if len(rename) == 0 {
		return aliases
	}
	out := map[string][]string{}
	for alias, cols := range aliases {
		nc := make([]string, len(cols))
		for i, c := range cols {
			if n, ok := rename[c]; ok {
				nc[i] = n
			} else {
				nc[i] = c
			}
		}
		out[alias] = nc
	}
	return out
}

// CombineAliases merges left and right alias maps, keeping only attributes
// that survive into outputCols -- grounded on the original implementation's
// _combine_aliases (checks both the bare and "_r"-suffixed spelling).
func CombineAliases(outputCols []string, left, right map[string][]string) map[string][]string {
	colSet := make(map[string]bool, len(outputCols))
	for _, c := range outputCols {
		colSet[c] = true
	}
	out := map[string][]string{}
	store := func(src map[string][]string) {
		for alias, cols := range src {
			var mapped []string
			for _, c := range cols {
				switch {
				case colSet[c]:
					mapped = append(mapped, c)
				case colSet[c+"_r"]:
					mapped = append(mapped, c+"_r")
				}
			}
			if len(mapped) > 0 {
				out[strings.ToLower(alias)] = mapped
			}
		}
	}
	store(left)
	store(right)
	return out
}

// EquiJoin computes the natural join of rel and other on the attributes
// named in common, producing schema rel.Schema ++ (other.Schema - common).
func (rel Relation) EquiJoin(common []string, other Relation) (Relation, error) {
	commonSet := make(map[string]bool, len(common))
	for _, c := range common {
		commonSet[c] = true
	}
	var rightRest []string
	for _, a := range other.Schema {
		if !commonSet[a] {
			rightRest = append(rightRest, a)
		}
	}
	for _, a := range rightRest {
		for _, l := range rel.Schema {
			if a == l {
				return Relation{}, raerrors.ErrSchemaCollision.New(a)
			}
		}
	}
	schema := append(append([]string(nil), rel.Schema...), rightRest...)

	index := map[uint64][]Row{}
	for _, r := range other.Rows {
		k := rowKey(common, r.Cells)
		index[k] = append(index[k], r)
	}

	rows := make([]Row, 0)
	for _, l := range rel.Rows {
		k := rowKey(common, l.Cells)
		for _, r := range index[k] {
			if !equalCells(common, l.Cells, r.Cells) {
				continue
			}
			cells := make(map[string]any, len(schema))
			for k2, v := range l.Cells {
				cells[k2] = v
			}
			for _, a := range rightRest {
				cells[a] = r.Cells[a]
			}
			rows = append(rows, Row{Cells: cells, Prov: concatProv(l.Prov, r.Prov)})
		}
	}
	out := Relation{
		Schema:  schema,
		Rows:    rows,
		Aliases: CombineAliases(schema, rel.Aliases, other.Aliases),
	}
	return out, nil
}

// CommonAttrs returns the attributes shared by both schemas, in the order
// they appear in a's schema, for natural-join common-attribute discovery.
func CommonAttrs(a, b []string) []string {
	bSet := make(map[string]bool, len(b))
	for _, x := range b {
		bSet[x] = true
	}
	var out []string
	for _, x := range a {
		if bSet[x] {
			out = append(out, x)
		}
	}
	return out
}

// SameSchema reports whether two schemas are identical, in order.
func SameSchema(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// groupByTuple collects rel's rows into schema-tuple-equality groups, in
// first-seen key order, concatenating provenance across every row that
// collapses into the same group -- the same collect-then-merge shape
// Dedupe() uses, reused here so Intersect/Difference don't silently drop
// the provenance of anything but the first A-row for a repeated value.
type rowGroup struct {
	cells map[string]any
	prov  []ProvenanceTag
}

func groupByTuple(schema []string, rows []Row) (groups map[uint64][]*rowGroup, order []uint64) {
	groups = map[uint64][]*rowGroup{}
	order = make([]uint64, 0, len(rows))
	for _, r := range rows {
		k := rowKey(schema, r.Cells)
		var g *rowGroup
		for _, cand := range groups[k] {
			if equalCells(schema, cand.cells, r.Cells) {
				g = cand
				break
			}
		}
		if g == nil {
			g = &rowGroup{cells: cloneCells(r.Cells)}
			if len(groups[k]) == 0 {
				order = append(order, k)
			}
			groups[k] = append(groups[k], g)
		}
		g.prov = concatProv(g.prov, r.Prov)
	}
	return groups, order
}

// Intersect returns rows appearing in both rel and other (identical
// schemas required by the caller). When two or more distinct rel rows
// share a cell-value tuple, they collapse into one output row whose
// provenance concatenates every contributing rel row plus every matched
// other row (spec §4.4.10).
func (rel Relation) Intersect(other Relation) Relation {
	otherBuckets := map[uint64][]Row{}
	for _, r := range other.Rows {
		k := rowKey(other.Schema, r.Cells)
		otherBuckets[k] = append(otherBuckets[k], r)
	}

	groups, order := groupByTuple(rel.Schema, rel.Rows)
	rows := make([]Row, 0, len(rel.Rows))
	for _, k := range order {
		for _, g := range groups[k] {
			var matchedProv []ProvenanceTag
			matched := false
			for _, r := range otherBuckets[k] {
				if equalCells(rel.Schema, g.cells, r.Cells) {
					matchedProv = concatProv(matchedProv, r.Prov)
					matched = true
				}
			}
			if matched {
				rows = append(rows, Row{Cells: g.cells, Prov: concatProv(g.prov, matchedProv)})
			}
		}
	}
	return Relation{Schema: rel.Schema, Rows: rows, Aliases: CombineAliases(rel.Schema, rel.Aliases, other.Aliases)}
}

// Difference returns rows of rel absent from other (identical schemas
// required by the caller). When two or more distinct rel rows share a
// cell-value tuple, they collapse into one surviving output row whose
// provenance concatenates every contributing rel row (spec §4.4.9).
func (rel Relation) Difference(other Relation) Relation {
	otherKeys := map[uint64][]map[string]any{}
	for _, r := range other.Rows {
		k := rowKey(other.Schema, r.Cells)
		otherKeys[k] = append(otherKeys[k], r.Cells)
	}

	groups, order := groupByTuple(rel.Schema, rel.Rows)
	rows := make([]Row, 0, len(rel.Rows))
	for _, k := range order {
		for _, g := range groups[k] {
			excluded := false
			for _, cells := range otherKeys[k] {
				if equalCells(rel.Schema, g.cells, cells) {
					excluded = true
					break
				}
			}
			if !excluded {
				rows = append(rows, Row{Cells: g.cells, Prov: g.prov})
			}
		}
	}
	return Relation{Schema: rel.Schema, Rows: rows, Aliases: CombineAliases(rel.Schema, rel.Aliases, other.Aliases)}
}

// RowIndex is a hash-based membership index over schema-tuple equality,
// used by division to test whether a (quotient, divisor) pair occurs in
// the dividend (spec §4.4.11).
type RowIndex struct {
	schema  []string
	buckets map[uint64][]map[string]any
}

// NewRowIndex builds a RowIndex over rel's rows, keyed by rel.Schema.
func NewRowIndex(rel Relation) *RowIndex {
	idx := &RowIndex{schema: rel.Schema, buckets: map[uint64][]map[string]any{}}
	for _, r := range rel.Rows {
		k := rowKey(rel.Schema, r.Cells)
		idx.buckets[k] = append(idx.buckets[k], r.Cells)
	}
	return idx
}

// Contains reports whether cells (keyed on the same attribute names as the
// indexed relation's schema) matches a row in the index.
func (idx *RowIndex) Contains(cells map[string]any) bool {
	k := rowKey(idx.schema, cells)
	for _, c := range idx.buckets[k] {
		if equalCells(idx.schema, c, cells) {
			return true
		}
	}
	return false
}

// Preview renders up to limit rows as attribute->value maps, in schema
// order of keys (map key order is not guaranteed by Go but the schema
// slice tells callers how to order columns when rendering), with no
// provenance — used by the trace recorder (spec §4.5).
func (rel Relation) Preview(limit int) []map[string]any {
	n := len(rel.Rows)
	if n > limit {
		n = limit
	}
	out := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		out[i] = cloneCells(rel.Rows[i].Cells)
	}
	return out
}

// SortedSchemaKeys is a small helper for deterministic error messages that
// enumerate a schema or an environment's relation names.
func SortedSchemaKeys(m map[string]Relation) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
