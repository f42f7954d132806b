package predicate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ewudata/ra-edu-toolkit/raerrors"
)

// Parser is a recursive-descent parser for the predicate grammar in
// spec §4.2, mirroring the RA surface parser's structure at a smaller
// scale: one lookahead token, one method per grammar production.
type Parser struct {
	src string
	lex *Lexer
	tok Token
	err error
}

// Parse parses src as a predicate condition and returns its AST, or a
// *raerrors.ParseError describing the first offending token.
func Parse(src string) (Expr, error) {
	p := &Parser{src: src, lex: NewLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != EOF {
		return nil, p.errorf("unexpected trailing input %q", p.tok.Text)
	}
	return expr, nil
}

func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		p.tok = Token{Offset: p.lex.pos}
		return p.errorf("%s", err.Error())
	}
	p.tok = tok
	return nil
}

func (p *Parser) lineCol(offset int) (int, int, string) {
	line := 1
	col := 1
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

func (p *Parser) errorf(format string, args ...any) *raerrors.ParseError {
	line, col, text := p.lineCol(p.tok.Offset)
	msg := fmt.Sprintf(format, args...)
	return raerrors.NewParseError(msg, line, col, raerrors.Caret(text, col))
}

func (p *Parser) parseOr() (Expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []Expr{first}
	for p.tok.Kind == OR {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return Or{Operands: operands}, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	operands := []Expr{first}
	for p.tok.Kind == AND {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return And{Operands: operands}, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.tok.Kind == NOT {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not{Operand: inner}, nil
	}
	if p.tok.Kind == LPAREN {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.Kind != RPAREN {
			return nil, p.errorf("expected ')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parseCmp()
}

func (p *Parser) parseCmp() (Expr, error) {
	if p.tok.Kind == TRUE {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !p.startsCmpOp() {
			return BoolLiteral{Value: true}, nil
		}
		return p.finishCmp(BoolLit{Value: true})
	}
	if p.tok.Kind == FALSE {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !p.startsCmpOp() {
			return BoolLiteral{Value: false}, nil
		}
		return p.finishCmp(BoolLit{Value: false})
	}

	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return p.finishCmp(left)
}

func (p *Parser) startsCmpOp() bool {
	switch p.tok.Kind {
	case EQ, NEQ, LT, LE, GT, GE:
		return true
	default:
		return false
	}
}

func (p *Parser) finishCmp(left Term) (Expr, error) {
	if !p.startsCmpOp() {
		return nil, p.errorf("expected comparison operator, got %s", p.tok.Kind)
	}
	op := cmpOpFor(p.tok.Kind)
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return Compare{Op: op, Left: left, Right: right}, nil
}

func cmpOpFor(k Kind) CmpOp {
	switch k {
	case EQ:
		return CmpEq
	case NEQ:
		return CmpNeq
	case LT:
		return CmpLt
	case LE:
		return CmpLe
	case GT:
		return CmpGt
	case GE:
		return CmpGe
	}
	return CmpEq
}

func (p *Parser) parseTerm() (Term, error) {
	switch p.tok.Kind {
	case STRING:
		v := p.tok.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return StringLit{Value: v}, nil
	case NUMBER:
		f, err := strconv.ParseFloat(p.tok.Text, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", p.tok.Text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return NumberLit{Value: f}, nil
	case TRUE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return BoolLit{Value: true}, nil
	case FALSE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return BoolLit{Value: false}, nil
	case IDENT:
		name := strings.ToLower(p.tok.Text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind == DOT {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.Kind != IDENT {
				return nil, p.errorf("expected identifier after '.'")
			}
			attr := strings.ToLower(p.tok.Text)
			if err := p.advance(); err != nil {
				return nil, err
			}
			return Ident{Alias: name, Attr: attr}, nil
		}
		return Ident{Attr: name}, nil
	default:
		return nil, p.errorf("expected a value, got %s", p.tok.Kind)
	}
}
