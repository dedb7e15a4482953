package traversal

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
)

// ArgKind tells which field of an Arg is set
type ArgKind int

const (
	ArgString ArgKind = iota
	ArgNumber
	ArgTraversal
)

// Arg is one argument of a step call
type Arg struct {
	Kind ArgKind
	Str  string
	Num  int64
	Sub  []Call
	Pos  int
}

// Call is one parsed step: name(args...)
type Call struct {
	Name string
	Args []Arg
	Pos  int
}

// Parser converts tokens into step calls
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser initializes a new Parser
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses a complete traversal
func (p *Parser) Parse() ([]Call, error) {
	log := logrus.WithField("component", "Parser")
	if p.peek().Type == TokenEOF {
		return nil, syntaxErrorf(0, "empty template")
	}
	calls, err := p.traversal()
	if err != nil {
		log.WithError(err).Debug("Failed to parse template")
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, syntaxErrorf(tok.Pos, "unexpected %s %q after traversal", tok.Type, tok.Value)
	}
	log.WithField("steps", len(calls)).Debug("Parsing complete")
	return calls, nil
}

// traversal parses step { "." step }
func (p *Parser) traversal() ([]Call, error) {
	var calls []Call
	for {
		call, err := p.step()
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
		if !p.accept(TokenSymbol, ".") {
			return calls, nil
		}
	}
}

// step parses IDENT "(" [ arg { "," arg } ] ")"
func (p *Parser) step() (Call, error) {
	tok := p.peek()
	if !p.expect(TokenIdentifier, "") {
		return Call{}, syntaxErrorf(tok.Pos, "expected step name, got %s %q", tok.Type, tok.Value)
	}
	call := Call{Name: tok.Value, Pos: tok.Pos}
	if !p.expect(TokenSymbol, "(") {
		return Call{}, syntaxErrorf(p.peek().Pos, "expected ( after %s", call.Name)
	}
	if p.accept(TokenSymbol, ")") {
		return call, nil
	}
	for {
		arg, err := p.arg()
		if err != nil {
			return Call{}, err
		}
		call.Args = append(call.Args, arg)
		if p.accept(TokenSymbol, ",") {
			continue
		}
		if !p.expect(TokenSymbol, ")") {
			return Call{}, syntaxErrorf(p.peek().Pos, "expected , or ) in arguments of %s", call.Name)
		}
		return call, nil
	}
}

// arg parses STRING | NUMBER | "__" "." traversal
func (p *Parser) arg() (Arg, error) {
	tok := p.peek()
	switch tok.Type {
	case TokenString:
		p.pos++
		return Arg{Kind: ArgString, Str: tok.Value, Pos: tok.Pos}, nil
	case TokenNumber:
		p.pos++
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return Arg{}, syntaxErrorf(tok.Pos, "invalid number %q", tok.Value)
		}
		return Arg{Kind: ArgNumber, Num: n, Str: tok.Value, Pos: tok.Pos}, nil
	case TokenIdentifier:
		if tok.Value != "__" {
			return Arg{}, syntaxErrorf(tok.Pos, "unexpected identifier %q, nested traversals start with __", tok.Value)
		}
		p.pos++
		if !p.expect(TokenSymbol, ".") {
			return Arg{}, syntaxErrorf(p.peek().Pos, "expected . after __")
		}
		sub, err := p.traversal()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgTraversal, Sub: sub, Pos: tok.Pos}, nil
	default:
		return Arg{}, syntaxErrorf(tok.Pos, "expected argument, got %s %q", tok.Type, tok.Value)
	}
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// expect checks and consumes a token; an empty value matches any token of the type
func (p *Parser) expect(tokenType TokenType, value string) bool {
	current := p.peek()
	if current.Type != tokenType || (value != "" && current.Value != value) {
		logrus.WithFields(logrus.Fields{
			"component": "Parser",
			"pos":       current.Pos,
			"expected":  fmt.Sprintf("%v:%s", tokenType, value),
			"current":   fmt.Sprintf("%v:%s", current.Type, current.Value),
		}).Trace("Expected token not matched")
		return false
	}
	p.pos++
	return true
}

// accept consumes the token if it matches
func (p *Parser) accept(tokenType TokenType, value string) bool {
	current := p.peek()
	if current.Type == tokenType && current.Value == value {
		p.pos++
		return true
	}
	return false
}

// ParseTemplate tokenizes and parses a rendered template
func ParseTemplate(template string) ([]Call, error) {
	tokens, err := NewTokenizer(template).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}
