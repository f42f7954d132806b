// Package ast defines the typed operator tree produced by the RA parser
// (spec §4.3) and consumed by the evaluator (spec §4.4). Node values are
// immutable data, never executed directly — evaluation lives in package
// eval, mirroring the teacher's separation of a plan-node tree (sql/plan)
// from the row-execution engine that walks it.
package ast

// Node is any RA operator-tree node.
type Node interface{ node() }

// Relation references a base relation by name (spec §4.4.1).
type Relation struct {
	Name string
}

// Project is π{attrs}(Sub) (spec §4.4.2).
type Project struct {
	Attrs []string
	Sub   Node
}

// Select is σ{Cond}(Sub) (spec §4.4.3). Cond is the verbatim predicate
// source text between the braces; it is parsed lazily by package predicate
// at evaluation time so that a malformed condition in a subtree that is
// never reached does not fail parsing of the whole expression.
type Select struct {
	Cond string
	Sub  Node
}

// Rename is ρ[Alias][{Pairs}](Sub) (spec §4.3, §4.4.4). Alias is "" when
// no relation-alias form was given; Pairs is nil when no attribute-rename
// braces were given.
type Rename struct {
	Alias string
	Pairs [][2]string
	Sub   Node
}

// Join is a binary join: Theta == nil means natural join (⋈), non-nil
// means θ-join (⋈{cond}) with Theta holding the verbatim predicate text
// (spec §4.4.5, §4.4.6).
type Join struct {
	Left, Right Node
	Theta       *string
}

// Product is A × B (spec §4.4.7).
type Product struct{ Left, Right Node }

// Union is A ∪ B (spec §4.4.8).
type Union struct{ Left, Right Node }

// Difference is A − B (spec §4.4.9).
type Difference struct{ Left, Right Node }

// Intersection is A ∩ B (spec §4.4.10).
type Intersection struct{ Left, Right Node }

// Division is A ÷ B (spec §4.4.11).
type Division struct{ Left, Right Node }

func (Relation) node()     {}
func (Project) node()      {}
func (Select) node()       {}
func (Rename) node()       {}
func (Join) node()         {}
func (Product) node()      {}
func (Union) node()        {}
func (Difference) node()   {}
func (Intersection) node() {}
func (Division) node()     {}
