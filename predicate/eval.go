// Package predicate implements the closed-universe boolean expression
// sub-language used by σ and θ-join (spec §4.2): a recursive-descent
// parser plus an interpreter that evaluates a condition against a single
// row's attribute bindings. There is no host-language eval and no
// arbitrary function call support — only the operators the grammar
// names are recognized (spec §4.2 "Security contract").
package predicate

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/ewudata/ra-edu-toolkit/raerrors"
)

// Bindings is the row context a predicate is evaluated against: the flat
// attribute->value map of the current row, plus the alias->attributes
// map used to resolve qualified references and to detect ambiguous
// unqualified ones (spec §4.2 "Lookup").
type Bindings struct {
	Cells   map[string]any
	Aliases map[string][]string
}

// unqualifiedOwners counts how many aliases claim attr, for the
// ambiguity check in spec §4.2: "if multiple attributes share the
// unqualified name across aliases, the lookup is ambiguous".
func (b Bindings) unqualifiedOwners(attr string) int {
	n := 0
	for _, attrs := range b.Aliases {
		for _, a := range attrs {
			if a == attr {
				n++
				break
			}
		}
	}
	if n == 0 {
		// Not claimed by any alias (e.g. evaluated before any rename), but
		// still present directly on the row: treat as a single owner.
		if _, ok := b.Cells[attr]; ok {
			return 1
		}
		return 0
	}
	return n
}

func (b Bindings) resolve(t Ident) (any, error) {
	if t.Alias != "" {
		attrs, ok := b.Aliases[t.Alias]
		if !ok {
			return nil, raerrors.ErrUndefinedAttribute.New(t.Alias + "." + t.Attr)
		}
		found := false
		for _, a := range attrs {
			if a == t.Attr {
				found = true
				break
			}
		}
		if !found {
			return nil, raerrors.ErrUndefinedAttribute.New(t.Alias + "." + t.Attr)
		}
		v, ok := b.Cells[t.Attr]
		if !ok {
			return nil, raerrors.ErrUndefinedAttribute.New(t.Alias + "." + t.Attr)
		}
		return v, nil
	}

	switch b.unqualifiedOwners(t.Attr) {
	case 0:
		return nil, raerrors.ErrUndefinedAttribute.New(t.Attr)
	case 1:
		return b.Cells[t.Attr], nil
	default:
		return nil, raerrors.ErrAmbiguousAttribute.New(t.Attr)
	}
}

// Eval evaluates expr against bindings and returns its boolean result.
// AND/OR short-circuit per spec §4.2.
func Eval(expr Expr, bindings Bindings) (bool, error) {
	switch e := expr.(type) {
	case BoolLiteral:
		return e.Value, nil
	case Not:
		v, err := Eval(e.Operand, bindings)
		if err != nil {
			return false, err
		}
		return !v, nil
	case And:
		for _, op := range e.Operands {
			v, err := Eval(op, bindings)
			if err != nil {
				return false, err
			}
			if !v {
				return false, nil
			}
		}
		return true, nil
	case Or:
		for _, op := range e.Operands {
			v, err := Eval(op, bindings)
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil
	case Compare:
		return evalCompare(e, bindings)
	default:
		return false, raerrors.ErrUnsupportedOperator.New(expr)
	}
}

func termValue(t Term, bindings Bindings) (any, error) {
	switch v := t.(type) {
	case StringLit:
		return v.Value, nil
	case NumberLit:
		return v.Value, nil
	case BoolLit:
		return v.Value, nil
	case Ident:
		return bindings.resolve(v)
	default:
		return nil, raerrors.ErrUnsupportedOperator.New(t)
	}
}

// domain classifies a coerced operand for the "common comparable domain"
// rule in spec §4.2.
type domain int

const (
	domAbsent domain = iota
	domNumber
	domString
	domBool
)

func classify(v any) (domain, any) {
	switch x := v.(type) {
	case nil:
		return domAbsent, nil
	case bool:
		return domBool, x
	case string:
		return domString, x
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		f, _ := cast.ToFloat64E(x)
		return domNumber, f
	default:
		s, err := cast.ToStringE(x)
		if err != nil {
			return domAbsent, nil
		}
		return domString, s
	}
}

// evalCompare implements spec §4.2's comparison semantics: both operands
// coerced to a common domain (number<->number, string<->string,
// bool<->bool); cross-domain comparisons or an absent operand evaluate to
// false for both equality and ordering; '=' and '==' are synonyms.
func evalCompare(c Compare, bindings Bindings) (bool, error) {
	lv, err := termValue(c.Left, bindings)
	if err != nil {
		return false, err
	}
	rv, err := termValue(c.Right, bindings)
	if err != nil {
		return false, err
	}

	ld, lc := classify(lv)
	rd, rc := classify(rv)

	if ld == domAbsent || rd == domAbsent {
		return false, nil
	}
	if ld != rd {
		return false, nil
	}

	switch ld {
	case domBool:
		lb, rb := lc.(bool), rc.(bool)
		switch c.Op {
		case CmpEq:
			return lb == rb, nil
		case CmpNeq:
			return lb != rb, nil
		default:
			return false, nil
		}
	case domString:
		ls, rs := lc.(string), rc.(string)
		return compareOrdered(c.Op, strings.Compare(ls, rs)), nil
	case domNumber:
		lf, rf := lc.(float64), rc.(float64)
		var cmp int
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		default:
			cmp = 0
		}
		return compareOrdered(c.Op, cmp), nil
	default:
		return false, nil
	}
}

func compareOrdered(op CmpOp, cmp int) bool {
	switch op {
	case CmpEq:
		return cmp == 0
	case CmpNeq:
		return cmp != 0
	case CmpLt:
		return cmp < 0
	case CmpLe:
		return cmp <= 0
	case CmpGt:
		return cmp > 0
	case CmpGe:
		return cmp >= 0
	}
	return false
}
