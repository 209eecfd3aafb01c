package recql

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Parser parses recql queries into an AST.
type Parser struct {
	lexer   *Lexer
	current Token
}

// Parse parses input and returns the AST root. A blank query returns a nil
// node, which matches every record.
func Parse(input string) (Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	p := &Parser{lexer: NewLexer(input)}
	p.advance()
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, xerrors.Errorf("unexpected token %q", p.current.Value)
	}
	return node, nil
}

func (p *Parser) advance() {
	p.current = p.lexer.NextToken()
}

// parseOr handles OR expressions (lowest precedence).
func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Node, error) {
	if p.current.Type == TokenNot {
		p.advance()
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return NotExpr{Expr: expr}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Node, error) {
	switch p.current.Type {
	case TokenLParen:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current.Type != TokenRParen {
			return nil, xerrors.Errorf("expected ')' but got %q", p.current.Value)
		}
		p.advance()
		return expr, nil

	case TokenString:
		value := p.current.Value
		p.advance()
		return MatchExpr{Value: value, Op: "CONTAINS"}, nil

	case TokenIdent:
		name := p.current.Value
		p.advance()

		op, ok := comparison(p.current.Type)
		if !ok {
			// Bare word searches the opType.
			return MatchExpr{Value: name, Op: "CONTAINS"}, nil
		}
		field, known := lookupField(name)
		if !known {
			return nil, xerrors.Errorf("unknown field %q", name)
		}
		p.advance()
		return p.parseValue(field, op)

	case TokenEOF:
		return nil, xerrors.New("unexpected end of query")

	default:
		return nil, xerrors.Errorf("unexpected token %q", p.current.Value)
	}
}

func comparison(t TokenType) (string, bool) {
	switch t {
	case TokenColon:
		return "=", true
	case TokenNeq:
		return "!=", true
	case TokenGt:
		return ">", true
	case TokenGte:
		return ">=", true
	case TokenLt:
		return "<", true
	case TokenLte:
		return "<=", true
	}
	return "", false
}

// parseValue parses the literal after a comparison operator.
func (p *Parser) parseValue(field Field, op string) (Node, error) {
	if p.current.Type != TokenIdent && p.current.Type != TokenString {
		return nil, xerrors.Errorf("expected value after '%s%s' but got %q", field, op, p.current.Value)
	}
	expr := MatchExpr{Key: field, Value: p.current.Value, Op: op}
	p.advance()

	if field.Numeric() {
		n, err := strconv.ParseInt(expr.Value, 10, 64)
		if err != nil {
			return nil, xerrors.Errorf("field %s needs an integer, got %q", field, expr.Value)
		}
		expr.Num = n
		return expr, nil
	}
	if op != "=" && op != "!=" {
		return nil, xerrors.Errorf("field %s only supports ':' and '!='", field)
	}
	return expr, nil
}
