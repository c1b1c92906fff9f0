package backend

import (
	"strings"
	"unicode"

	esquery "github.com/Aman-CERP/synexpand/internal/query"
)

// The query_string subset understood here is what the rewriter emits plus
// what users typically type: bare words, quoted phrases, field:value,
// parentheses, AND / OR, backslash escapes and * ? wildcards. Anything else
// is read as literal text and left to the analyzer.

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind     tokenKind
	field    string
	text     string
	wildcard bool
}

// lex splits query_string text into tokens.
func lex(s string) []token {
	runes := []rune(s)
	var toks []token

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen})
			i++
		case r == '"':
			text, next, ok := readPhrase(runes, i)
			if !ok {
				tok, n := readWord(runes, i)
				toks = append(toks, tok)
				i = n
				continue
			}
			toks = append(toks, token{kind: tokPhrase, text: text})
			i = next
		default:
			tok, n := readWord(runes, i)
			i = n
			if tok.field != "" && tok.text == "" && i < len(runes) && runes[i] == '"' {
				if text, next, ok := readPhrase(runes, i); ok {
					toks = append(toks, token{kind: tokPhrase, field: tok.field, text: text})
					i = next
					continue
				}
			}
			switch {
			case tok.field == "" && !tok.wildcard && tok.text == "AND":
				tok = token{kind: tokAnd}
			case tok.field == "" && !tok.wildcard && tok.text == "OR":
				tok = token{kind: tokOr}
			case tok.field == "" && !tok.wildcard && tok.text == "&&":
				tok = token{kind: tokAnd}
			case tok.field == "" && !tok.wildcard && tok.text == "||":
				tok = token{kind: tokOr}
			}
			if tok.kind != tokWord || tok.text != "" {
				toks = append(toks, tok)
			}
		}
	}
	return toks
}

// readPhrase reads a quoted phrase starting at runes[start] == '"'.
func readPhrase(runes []rune, start int) (string, int, bool) {
	var sb strings.Builder
	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 < len(runes) {
				i++
				sb.WriteRune(runes[i])
			}
		case '"':
			return sb.String(), i + 1, true
		default:
			sb.WriteRune(runes[i])
		}
	}
	return "", start, false
}

// readWord reads a bare word. An unescaped colon after a non-empty prefix
// splits it into field and text.
func readWord(runes []rune, start int) (token, int) {
	var sb strings.Builder
	tok := token{kind: tokWord}
	i := start
	for ; i < len(runes); i++ {
		r := runes[i]
		if unicode.IsSpace(r) || r == '(' || r == ')' {
			break
		}
		switch {
		case r == '\\':
			if i+1 < len(runes) {
				i++
				sb.WriteRune(runes[i])
			}
		case r == ':' && tok.field == "" && sb.Len() > 0:
			tok.field = sb.String()
			sb.Reset()
			if i+1 < len(runes) && runes[i+1] == '"' {
				tok.text = ""
				return tok, i + 1
			}
		case r == '*' || r == '?':
			tok.wildcard = true
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	tok.text = sb.String()
	return tok, i
}

// node is a parsed query_string expression.
type node interface{}

type leafNode struct {
	field    string
	text     string
	phrase   bool
	wildcard bool
}

type boolNode struct {
	op       esquery.Operator
	children []node
}

// parse builds an expression tree. AND binds tighter than OR; adjacent
// clauses without an operator are joined with defaultOp.
func parse(s string, defaultOp esquery.Operator) node {
	p := &parser{toks: lex(s), defaultOp: defaultOp}
	return p.sequence(false)
}

type parser struct {
	toks      []token
	pos       int
	defaultOp esquery.Operator
}

func (p *parser) sequence(nested bool) node {
	var items []node
	var ops []esquery.Operator
	var pending esquery.Operator

	push := func(n node) {
		if n == nil {
			return
		}
		if len(items) > 0 {
			op := pending
			if op == "" {
				op = p.defaultOp
			}
			ops = append(ops, op)
		}
		items = append(items, n)
		pending = ""
	}

loop:
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		p.pos++
		switch tok.kind {
		case tokRParen:
			if nested {
				break loop
			}
		case tokAnd:
			if len(items) > 0 {
				pending = esquery.OperatorAnd
			}
		case tokOr:
			if len(items) > 0 {
				pending = esquery.OperatorOr
			}
		case tokLParen:
			push(p.sequence(true))
		case tokPhrase:
			push(&leafNode{field: tok.field, text: tok.text, phrase: true})
		case tokWord:
			push(&leafNode{field: tok.field, text: tok.text, wildcard: tok.wildcard})
		}
	}

	return group(items, ops)
}

// group applies precedence: runs joined by AND become conjunctions, which
// are then OR-ed.
func group(items []node, ops []esquery.Operator) node {
	if len(items) == 0 {
		return nil
	}

	var disjuncts []node
	current := []node{items[0]}
	for i, op := range ops {
		if op == esquery.OperatorAnd {
			current = append(current, items[i+1])
			continue
		}
		disjuncts = append(disjuncts, collapse(esquery.OperatorAnd, current))
		current = []node{items[i+1]}
	}
	disjuncts = append(disjuncts, collapse(esquery.OperatorAnd, current))
	return collapse(esquery.OperatorOr, disjuncts)
}

func collapse(op esquery.Operator, children []node) node {
	if len(children) == 1 {
		return children[0]
	}
	return &boolNode{op: op, children: children}
}
