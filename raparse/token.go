package raparse

// Kind identifies a lexical token class of the RA surface syntax
// (spec §4.3). Unicode glyphs and their ASCII synonyms lex to the same
// Kind; which spelling was used is never observable past the lexer.
type Kind int

const (
	EOF Kind = iota
	IDENT
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	COMMA
	ARROW // "->"

	PI    // π, pi
	SIGMA // σ, sigma
	RHO   // ρ, rho

	JOIN       // ⋈, join
	CROSS      // ×, x, cross, *
	UNION      // ∪, union
	DIFF       // −, -, diff
	INTERSECT  // ∩, intersect
	DIVISION   // ÷, /, div
)

var kindNames = map[Kind]string{
	EOF: "EOF", IDENT: "identifier", LPAREN: "'('", RPAREN: "')'",
	LBRACE: "'{'", RBRACE: "'}'", COMMA: "','", ARROW: "'->'",
	PI: "π", SIGMA: "σ", RHO: "ρ", JOIN: "⋈", CROSS: "×",
	UNION: "∪", DIFF: "−", INTERSECT: "∩", DIVISION: "÷",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "?"
}

// IsBinOp reports whether k is one of the single-precedence left-assoc
// binary operators of spec §4.3.
func (k Kind) IsBinOp() bool {
	switch k {
	case JOIN, CROSS, UNION, DIFF, INTERSECT, DIVISION:
		return true
	default:
		return false
	}
}

// Token is one lexical unit with its byte offset for error reporting.
type Token struct {
	Kind   Kind
	Text   string
	Offset int
}
