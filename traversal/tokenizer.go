package traversal

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

// TokenType defines types of tokens
type TokenType int

const (
	TokenIdentifier TokenType = iota
	TokenString
	TokenNumber
	TokenSymbol
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenIdentifier:
		return "identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenSymbol:
		return "symbol"
	case TokenEOF:
		return "end of template"
	default:
		return "unknown"
	}
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Tokenizer breaks a rendered template into tokens
type Tokenizer struct {
	input  string
	pos    int
	tokens []Token
}

// NewTokenizer initializes a new Tokenizer
func NewTokenizer(input string) *Tokenizer {
	return &Tokenizer{
		input:  input,
		tokens: []Token{},
	}
}

// Tokenize processes the template into tokens
func (t *Tokenizer) Tokenize() ([]Token, error) {
	log := logrus.WithField("component", "Tokenizer")
	for t.pos < len(t.input) {
		c := t.input[t.pos]
		var err error
		switch {
		case unicode.IsSpace(rune(c)):
			t.pos++
		case isIdentStart(c):
			t.readIdentifier()
		case c == '\'' || c == '"':
			err = t.readString(c)
		case c >= '0' && c <= '9', c == '-' && t.pos+1 < len(t.input) && t.input[t.pos+1] >= '0' && t.input[t.pos+1] <= '9':
			t.readNumber()
		default:
			err = t.readSymbol()
		}
		if err != nil {
			log.WithError(err).Debug("Tokenization failed")
			return nil, err
		}
	}
	t.tokens = append(t.tokens, Token{Type: TokenEOF, Pos: t.pos})

	if log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		tokenList := make([]string, len(t.tokens))
		for i, token := range t.tokens {
			tokenList[i] = fmt.Sprintf("%v:%s", token.Type, token.Value)
		}
		log.WithField("tokens", strings.Join(tokenList, ", ")).Trace("Tokens produced")
	}
	return t.tokens, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// readIdentifier reads a step name or the anonymous traversal marker __
func (t *Tokenizer) readIdentifier() {
	start := t.pos
	for t.pos < len(t.input) && isIdentPart(t.input[t.pos]) {
		t.pos++
	}
	t.tokens = append(t.tokens, Token{Type: TokenIdentifier, Value: t.input[start:t.pos], Pos: start})
}

// readString reads a quoted string. A backslash escapes the next byte.
func (t *Tokenizer) readString(quote byte) error {
	start := t.pos
	t.pos++ // opening quote
	var b strings.Builder
	for t.pos < len(t.input) {
		c := t.input[t.pos]
		switch {
		case c == '\\' && t.pos+1 < len(t.input):
			b.WriteByte(t.input[t.pos+1])
			t.pos += 2
		case c == quote:
			t.pos++
			t.tokens = append(t.tokens, Token{Type: TokenString, Value: b.String(), Pos: start})
			return nil
		default:
			b.WriteByte(c)
			t.pos++
		}
	}
	return syntaxErrorf(start, "unterminated string")
}

// readNumber reads an integer literal
func (t *Tokenizer) readNumber() {
	start := t.pos
	if t.input[t.pos] == '-' {
		t.pos++
	}
	for t.pos < len(t.input) && t.input[t.pos] >= '0' && t.input[t.pos] <= '9' {
		t.pos++
	}
	t.tokens = append(t.tokens, Token{Type: TokenNumber, Value: t.input[start:t.pos], Pos: start})
}

// readSymbol reads punctuation
func (t *Tokenizer) readSymbol() error {
	switch c := t.input[t.pos]; c {
	case '(', ')', ',', '.':
		t.tokens = append(t.tokens, Token{Type: TokenSymbol, Value: string(c), Pos: t.pos})
		t.pos++
		return nil
	default:
		return syntaxErrorf(t.pos, "unexpected character %q", c)
	}
}
