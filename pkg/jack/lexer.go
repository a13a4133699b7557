package jack

import (
	"fmt"
	"io"
	"os"

	pc "github.com/prataprc/goparsec"
)

// ----------------------------------------------------------------------------
// Token

// TokenKind classifies a lexeme per the Jack grammar's five terminal categories.
type TokenKind string

const (
	KeywordToken TokenKind = "keyword"
	SymbolToken  TokenKind = "symbol"
	IntToken     TokenKind = "integerConstant"
	StringToken  TokenKind = "stringConstant"
	IdentToken   TokenKind = "identifier"
)

// Token is a single lexeme together with the category the grammar needs to disambiguate
// it (e.g. the symbol "-" parses differently depending on whether it's a unary or binary
// operator, but that's a parser concern — the lexer just reports what it saw).
type Token struct {
	Kind  TokenKind
	Value string
}

var jackKeywords = map[string]bool{
	"class": true, "constructor": true, "function": true, "method": true,
	"field": true, "static": true, "var": true,
	"int": true, "char": true, "boolean": true, "void": true,
	"true": true, "false": true, "null": true, "this": true,
	"let": true, "do": true, "if": true, "else": true, "while": true, "return": true,
}

// ----------------------------------------------------------------------------
// Parser Combinator(s)

// This section defines the Parser Combinator(s) for every token of the Jack language.
//
// Unlike the VM and Assembler grammars (which describe entire instructions), this one
// only describes individual tokens: the Jack grammar is context-sensitive enough (nested
// expressions without operator precedence, two call forms, etc.) that driving it purely
// through parser combinators would mean re-deriving recursive descent by hand anyway.
// So the combinators here do the lexing, and Parser (parser.go) does the rest by hand
// over the resulting token stream — single-token lookahead, same as the textbook compiler.
var ast = pc.NewAST("jack_tokens", 0)

var (
	// Comments are stripped by stripComments before the source ever reaches the
	// combinators (see below), so this grammar only has to describe tokens.
	pTokens = ast.ManyUntil("tokens", nil, pToken, pc.End())

	pToken = ast.OrdChoice("token", nil, pKeyword, pSymbol, pIntConst, pStringConst, pIdent)

	// Keywords are tried before a generic identifier and bounded with \b so "iffy" isn't
	// mis-lexed as keyword "if" followed by identifier "fy".
	pKeyword = pc.Token(`(class|constructor|function|method|field|static|var|int|char|boolean|void|true|false|null|this|let|do|if|else|while|return)\b`, "KEYWORD")

	pSymbol = pc.Token(`[{}()\[\].,;+\-*/&|<>=~]`, "SYMBOL")

	pIntConst = pc.Token(`[0-9]+`, "INT_CONST")

	// [^"] already matches newlines (a Jack string constant may embed one, per spec);
	// only the closing quote terminates the token.
	pStringConst = pc.Token(`"[^"]*"`, "STRING_CONST")

	pIdent = pc.Token(`[A-Za-z_][A-Za-z0-9_]*`, "IDENT")
)

// stripComments removes both Jack comment forms ('//' line comments and '/* ... */'
// block comments, including the '/** ... */' doc form) before the token grammar ever
// sees the source. Block comments nest: '/*' increments a depth counter and '*/'
// decrements it, so "/* outer /* inner */ tail */" is one comment, not one comment
// followed by stray code (mirrors the reference lexer's block_comment()). Reaching
// EOF with depth > 0 is a lex error. String constants are copied through verbatim so
// a '//' or '/*' inside one is never mistaken for a comment.
func stripComments(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src))
	i := 0
	for i < len(src) {
		switch {
		case src[i] == '"':
			out = append(out, src[i])
			i++
			for i < len(src) && src[i] != '"' {
				out = append(out, src[i])
				i++
			}
			if i >= len(src) {
				return nil, fmt.Errorf("jack: unterminated string constant")
			}
			out = append(out, src[i])
			i++

		case src[i] == '/' && i+1 < len(src) && src[i+1] == '/':
			i += 2
			for i < len(src) && src[i] != '\n' {
				i++
			}

		case src[i] == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			depth := 1
			for depth > 0 {
				if i >= len(src) {
					return nil, fmt.Errorf("jack: unterminated block comment (unclosed nesting depth %d)", depth)
				}
				switch {
				case src[i] == '/' && i+1 < len(src) && src[i+1] == '*':
					depth++
					i += 2
				case src[i] == '*' && i+1 < len(src) && src[i+1] == '/':
					depth--
					i += 2
				default:
					i++
				}
			}
			out = append(out, ' ')

		default:
			out = append(out, src[i])
			i++
		}
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// Lexer

// Lexer turns Jack source text into a flat Token stream, stripping both comment forms
// ('//' line comments and '/* ... */' block comments, including the '/** ... */' doc
// comment form used by the Jack standard library).
//
// It uses a parser combinator (like the VM/Assembler front ends) and reads up the same
// feature flags (as env vars):
// - PARSEC_DEBUG: Verbose logging to inspect which of the PCs gets triggered and match
// - EXPORT_AST:   Exports in the DEBUG_FOLDER a Graphviz representation of the token tree
// - PRINT_AST:    Print on the stdout a textual representation of the token tree
type Lexer struct{ reader io.Reader }

// NewLexer returns a Lexer reading from r.
func NewLexer(r io.Reader) Lexer {
	return Lexer{reader: r}
}

// Tokenize reads all of the Lexer's input and returns its Token stream.
func (l *Lexer) Tokenize() ([]Token, error) {
	content, err := io.ReadAll(l.reader)
	if err != nil {
		return nil, fmt.Errorf("cannot read from 'io.Reader': %s", err)
	}

	stripped, err := stripComments(content)
	if err != nil {
		return nil, err
	}

	root, success := l.fromSource(stripped)
	if !success {
		return nil, fmt.Errorf("failed to tokenize input content")
	}

	return l.fromAST(root)
}

func (l *Lexer) fromSource(source []byte) (pc.Queryable, bool) {
	if os.Getenv("PARSEC_DEBUG") != "" {
		ast.SetDebug()
	}

	root, _ := ast.Parsewith(pTokens, pc.NewScanner(source))

	if os.Getenv("EXPORT_AST") != "" {
		file, _ := os.Create(fmt.Sprintf("%s/debug.ast.dot", os.Getenv("DEBUG_FOLDER")))
		defer file.Close()
		file.Write([]byte(ast.Dotstring("\"Jack Tokens\"")))
	}
	if os.Getenv("PRINT_AST") != "" {
		ast.Prettyprint()
	}

	return root, true
}

// fromAST walks the flat token tree, converting leaves to Token.
func (l *Lexer) fromAST(root pc.Queryable) ([]Token, error) {
	if root.GetName() != "tokens" {
		return nil, fmt.Errorf("expected node 'tokens', found %s", root.GetName())
	}

	tokens := make([]Token, 0, len(root.GetChildren()))
	for _, child := range root.GetChildren() {
		switch child.GetName() {
		case "KEYWORD":
			tokens = append(tokens, Token{Kind: KeywordToken, Value: child.GetValue()})
		case "SYMBOL":
			tokens = append(tokens, Token{Kind: SymbolToken, Value: child.GetValue()})
		case "INT_CONST":
			tokens = append(tokens, Token{Kind: IntToken, Value: child.GetValue()})
		case "STRING_CONST":
			raw := child.GetValue()
			tokens = append(tokens, Token{Kind: StringToken, Value: raw[1 : len(raw)-1]})
		case "IDENT":
			value := child.GetValue()
			if jackKeywords[value] {
				tokens = append(tokens, Token{Kind: KeywordToken, Value: value})
			} else {
				tokens = append(tokens, Token{Kind: IdentToken, Value: value})
			}
		default:
			return nil, fmt.Errorf("unrecognized token node '%s'", child.GetName())
		}
	}

	return tokens, nil
}
