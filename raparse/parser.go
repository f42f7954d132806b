// Package raparse tokenizes and parses RA source text into the operator
// tree defined in package ast (spec §4.3): Unicode glyphs and ASCII
// synonyms, a single left-associative precedence level for the binary
// operators, and π/σ/ρ prefix forms with brace-delimited arguments.
package raparse

import (
	"fmt"
	"strings"

	"github.com/ewudata/ra-edu-toolkit/ast"
	"github.com/ewudata/ra-edu-toolkit/raerrors"
)

// Parser drives a single lookahead token over the source string,
// mirroring package predicate's parser at the surface-syntax scale.
type Parser struct {
	src string
	pos int
	tok Token
}

// Parse parses src into an ast.Node, or returns a *raerrors.ParseError
// naming the first offending token's line, column, and a caret excerpt.
func Parse(src string) (ast.Node, error) {
	p := &Parser{src: src}
	if err := p.advance(); err != nil {
		return nil, err
	}
	node, err := p.parseBinary()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != EOF {
		return nil, p.errorf("unexpected trailing input %q", p.tok.Text)
	}
	return node, nil
}

func (p *Parser) advance() error {
	tok, newPos, err := nextToken(p.src, p.pos)
	if err != nil {
		return p.errorAt(newPos, "%s", err.Error())
	}
	p.tok = tok
	p.pos = newPos
	return nil
}

func (p *Parser) lineCol(offset int) (int, int, string) {
	line, col := 1, 1
	lastNL := -1
	for i := 0; i < offset && i < len(p.src); i++ {
		if p.src[i] == '\n' {
			line++
			lastNL = i
			col = 1
		} else {
			col++
		}
	}
	lineStart := lastNL + 1
	lineEnd := strings.IndexByte(p.src[lineStart:], '\n')
	var lineText string
	if lineEnd < 0 {
		lineText = p.src[lineStart:]
	} else {
		lineText = p.src[lineStart : lineStart+lineEnd]
	}
	return line, col, lineText
}

func (p *Parser) errorAt(offset int, format string, args ...any) *raerrors.ParseError {
	line, col, text := p.lineCol(offset)
	return raerrors.NewParseError(fmt.Sprintf(format, args...), line, col, raerrors.Caret(text, col))
}

func (p *Parser) errorf(format string, args ...any) *raerrors.ParseError {
	return p.errorAt(p.tok.Offset, format, args...)
}

// parseBinary implements `binary := unary ( BINOP [braceCond] unary )*`,
// left-associative, single precedence level (spec §4.3).
func (p *Parser) parseBinary() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind.IsBinOp() {
		op := p.tok.Kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		var theta *string
		if op == JOIN && p.tok.Kind == LBRACE {
			body, err := p.consumeBraceBody()
			if err != nil {
				return nil, err
			}
			theta = &body
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = combineBinary(op, left, right, theta)
	}
	return left, nil
}

func combineBinary(op Kind, left, right ast.Node, theta *string) ast.Node {
	switch op {
	case JOIN:
		return ast.Join{Left: left, Right: right, Theta: theta}
	case CROSS:
		return ast.Product{Left: left, Right: right}
	case UNION:
		return ast.Union{Left: left, Right: right}
	case DIFF:
		return ast.Difference{Left: left, Right: right}
	case INTERSECT:
		return ast.Intersection{Left: left, Right: right}
	case DIVISION:
		return ast.Division{Left: left, Right: right}
	}
	return nil
}

// parseUnary implements `unary := projection | selection | rename | atom`.
func (p *Parser) parseUnary() (ast.Node, error) {
	switch p.tok.Kind {
	case PI:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind != LBRACE {
			return nil, p.errorf("expected '{' after π")
		}
		body, err := p.consumeBraceBody()
		if err != nil {
			return nil, err
		}
		attrs, err := splitIdentList(body)
		if err != nil {
			return nil, p.errorf("%s", err.Error())
		}
		sub, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return ast.Project{Attrs: attrs, Sub: sub}, nil

	case SIGMA:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind != LBRACE {
			return nil, p.errorf("expected '{' after σ")
		}
		body, err := p.consumeBraceBody()
		if err != nil {
			return nil, err
		}
		sub, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return ast.Select{Cond: strings.TrimSpace(body), Sub: sub}, nil

	case RHO:
		if err := p.advance(); err != nil {
			return nil, err
		}
		var alias string
		if p.tok.Kind == IDENT {
			alias = strings.ToLower(p.tok.Text)
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		var pairs [][2]string
		if p.tok.Kind == LBRACE {
			body, err := p.consumeBraceBody()
			if err != nil {
				return nil, err
			}
			pairs, err = parseRenamePairs(body)
			if err != nil {
				return nil, p.errorf("%s", err.Error())
			}
		}
		sub, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return ast.Rename{Alias: alias, Pairs: pairs, Sub: sub}, nil

	default:
		return p.parseAtom()
	}
}

// parseAtom implements `atom := identifier | '(' expr ')'`.
func (p *Parser) parseAtom() (ast.Node, error) {
	switch p.tok.Kind {
	case LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		node, err := p.parseBinary()
		if err != nil {
			return nil, err
		}
		if p.tok.Kind != RPAREN {
			return nil, p.errorf("expected ')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return node, nil
	case IDENT:
		name := strings.ToLower(p.tok.Text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.Relation{Name: name}, nil
	default:
		return nil, p.errorf("expected a relation name or '(', got %s", p.tok.Kind)
	}
}

// consumeBraceBody assumes p.tok.Kind == LBRACE and p.pos already points
// just past the opening brace (per nextToken's contract); it scans the
// matching close, advances past it, and leaves p.tok on the following
// token.
func (p *Parser) consumeBraceBody() (string, error) {
	body, newPos, err := scanBraceBody(p.src, p.pos)
	if err != nil {
		return "", p.errorAt(p.tok.Offset, "%s", err.Error())
	}
	p.pos = newPos
	if err := p.advance(); err != nil {
		return "", err
	}
	return body, nil
}

func splitIdentList(body string) ([]string, error) {
	parts := strings.Split(body, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return nil, fmt.Errorf("empty attribute name in projection list")
		}
		out = append(out, p)
	}
	return out, nil
}

func parseRenamePairs(body string) ([][2]string, error) {
	parts := strings.Split(body, ",")
	out := make([][2]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		idx := strings.Index(p, "->")
		if idx < 0 {
			return nil, fmt.Errorf("expected 'old->new' in rename pair %q", p)
		}
		oldName := strings.ToLower(strings.TrimSpace(p[:idx]))
		newName := strings.ToLower(strings.TrimSpace(p[idx+2:]))
		if oldName == "" || newName == "" {
			return nil, fmt.Errorf("expected 'old->new' in rename pair %q", p)
		}
		out = append(out, [2]string{oldName, newName})
	}
	return out, nil
}
